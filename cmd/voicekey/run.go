package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"

	"github.com/MrWong99/voicekey/internal/app"
	"github.com/MrWong99/voicekey/internal/config"
	"github.com/MrWong99/voicekey/internal/observe"
)

const shutdownTimeout = 15 * time.Second

func newRunCmd(g *globalFlags) *cobra.Command {
	var (
		source    string
		file      string
		trigger   string
		transport string
		url       string
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Capture audio and dispatch recognised commands",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, fromFile, err := g.loadConfig(cmd)
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("source") {
				cfg.Audio.Source = source
			}
			if flags.Changed("file") {
				cfg.Audio.File = file
			}
			if flags.Changed("trigger") {
				cfg.Control.Trigger = trigger
			}
			if flags.Changed("transport") {
				cfg.Actions.Transport = transport
			}
			if flags.Changed("url") {
				cfg.Actions.URL = url
			}
			if err := config.Validate(cfg); err != nil {
				return err
			}
			return run(cmd.Context(), g.configPath, fromFile, cfg)
		},
	}
	f := cmd.Flags()
	f.StringVar(&source, "source", "", "override audio.source (portaudio, file)")
	f.StringVar(&file, "file", "", "override audio.file")
	f.StringVar(&trigger, "trigger", "", "override control.trigger (hotkey, stdin, always)")
	f.StringVar(&transport, "transport", "", "override actions.transport (ws, log)")
	f.StringVar(&url, "url", "", "override actions.url")
	return cmd
}

func run(parent context.Context, configPath string, watch bool, cfg *config.Config) error {
	if parent == nil {
		parent = context.Background()
	}
	levelVar := newLogger(cfg.Server.LogLevel)

	slog.Info("voicekey starting",
		"config", configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
		"version", Version,
	)

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	shutdownOTel, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceVersion: Version})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics, err := observe.NewMetrics(otel.GetMeterProvider())
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}

	// ── Providers ─────────────────────────────────────────────────────────────
	providers, err := app.BuildProviders(ctx, cfg, app.DefaultRegistry())
	if err != nil {
		return fmt.Errorf("build providers: %w", err)
	}

	application, err := app.New(ctx, cfg, providers,
		app.WithMetrics(metrics),
		app.WithLevelVar(levelVar),
	)
	if err != nil {
		return err
	}

	// ── Hot reload ────────────────────────────────────────────────────────────
	if watch {
		w, err := config.NewWatcher(configPath, application.ApplyConfig)
		if err != nil {
			slog.Warn("config hot reload disabled", "err", err)
		} else {
			defer w.Stop()
		}
	}

	slog.Info("ready; hold the push-to-talk control and speak",
		"trigger", cfg.Control.Trigger,
		"hotkey", cfg.Control.Hotkey,
	)

	runErr := application.Run(ctx)
	if runErr != nil && errors.Is(runErr, context.Canceled) {
		runErr = nil
	}
	if runErr != nil {
		slog.Error("run error", "err", runErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := application.Shutdown(shutdownCtx); err != nil {
		return errors.Join(runErr, fmt.Errorf("shutdown: %w", err))
	}
	st := application.Status()
	slog.Info("goodbye",
		"sessions", st.Pipeline.Sessions,
		"results", st.Pipeline.Results,
		"dispatched", st.Pipeline.Dispatched,
	)
	return runErr
}
