package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/MrWong99/voicekey/internal/app"
	"github.com/MrWong99/voicekey/internal/config"
)

const defaultConfigPath = "voicekey.yaml"

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:   "voicekey",
		Short: "Voice-controlled keyboard, mouse and media actions",
		Long: `voicekey listens to a microphone while push-to-talk is held, recognises
short spoken commands and replays them as HID reports on a host computer.

Commands are matched against a built-in Russian and English phrase table.
The action transport is either a remote HID bridge over WebSocket or a
dry-run logger.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&g.configPath, "config", "c", defaultConfigPath, "path to the YAML configuration file")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "override server.log_level (debug, info, warn, error)")

	root.AddCommand(
		newRunCmd(g),
		newMatchCmd(g),
		newAnalyzeCmd(g),
		newDevicesCmd(),
		newVersionCmd(),
	)
	return root
}

// loadConfig reads the configuration file. A missing default file yields the
// built-in defaults; a missing file given explicitly is an error.
func (g *globalFlags) loadConfig(cmd *cobra.Command) (*config.Config, bool, error) {
	cfg, err := config.Load(g.configPath)
	switch {
	case err == nil:
	case errors.Is(err, fs.ErrNotExist) && !cmd.Flags().Changed("config"):
		cfg = &config.Config{}
		config.ApplyDefaults(cfg)
		if err := config.Validate(cfg); err != nil {
			return nil, false, err
		}
		return g.override(cfg, false)
	case errors.Is(err, fs.ErrNotExist):
		return nil, false, fmt.Errorf("config file %q not found", g.configPath)
	default:
		return nil, false, err
	}
	return g.override(cfg, true)
}

func (g *globalFlags) override(cfg *config.Config, fromFile bool) (*config.Config, bool, error) {
	if g.logLevel != "" {
		lvl := config.LogLevel(g.logLevel)
		if !lvl.IsValid() {
			return nil, false, fmt.Errorf("--log-level %q is invalid; valid values: debug, info, warn, error", g.logLevel)
		}
		cfg.Server.LogLevel = lvl
	}
	return cfg, fromFile, nil
}

// newLogger installs a text handler on stderr whose level is held in the
// returned LevelVar.
func newLogger(level config.LogLevel) *slog.LevelVar {
	lv := &slog.LevelVar{}
	lv.Set(app.SlogLevel(level))
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lv})))
	return lv
}
