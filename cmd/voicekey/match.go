package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MrWong99/voicekey/internal/action"
	"github.com/MrWong99/voicekey/internal/action/transport/logonly"
	"github.com/MrWong99/voicekey/internal/app"
	"github.com/MrWong99/voicekey/internal/command"
	"github.com/MrWong99/voicekey/internal/config"
)

func newMatchCmd(g *globalFlags) *cobra.Command {
	var (
		fuzzy      bool
		threshold  float64
		confidence float64
		dispatch   bool
	)
	cmd := &cobra.Command{
		Use:   "match <text>",
		Short: "Match text against the command table",
		Long: `match runs the command matcher on the given text and prints the command
it maps to. With --dispatch the command is also executed against the dry-run
transport, printing the HID reports it would send.`,
		Example: `  voicekey match "сделай громче"
  voicekey match --fuzzy "volum up"
  voicekey match --dispatch "двигай вниз 3"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := g.loadConfig(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("fuzzy") {
				cfg.Commands.Fuzzy = fuzzy
			}
			if cmd.Flags().Changed("threshold") {
				cfg.Commands.FuzzyThreshold = threshold
			}
			return match(cmd, cfg, strings.Join(args, " "), confidence, dispatch)
		},
	}
	f := cmd.Flags()
	f.BoolVar(&fuzzy, "fuzzy", false, "enable fuzzy matching")
	f.Float64Var(&threshold, "threshold", config.DefaultFuzzyThreshold, "fuzzy similarity threshold")
	f.Float64Var(&confidence, "confidence", 1, "recognizer confidence to attach to the text")
	f.BoolVar(&dispatch, "dispatch", false, "execute the command against the dry-run transport")
	return cmd
}

func match(cmd *cobra.Command, cfg *config.Config, text string, confidence float64, dispatch bool) error {
	out := cmd.OutOrStdout()
	m := app.NewMatcher(cfg.Commands)

	c, ok := m.Match(text, confidence)
	if !ok {
		fmt.Fprintf(out, "no command matched %q\n", text)
		return nil
	}
	printCommand(out, c)

	if !dispatch {
		return nil
	}
	logger := slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				return slog.Attr{}
			}
			return a
		},
	}))
	act := cfg.Actions
	d, err := action.New(logonly.New(logonly.WithLogger(logger)),
		action.WithSettleDelay(act.Settle()),
		action.WithMoveStep(act.MoveStep),
		action.WithLockSequence(act.Lock...),
		action.WithSleepSequence(act.Sleep...),
	)
	if err != nil {
		return err
	}
	return d.Dispatch(cmd.Context(), c)
}

func printCommand(w io.Writer, c command.Command) {
	fmt.Fprintf(w, "type:       %s\n", c.Type)
	fmt.Fprintf(w, "action:     %s\n", c.Action)
	fmt.Fprintf(w, "token:      %s\n", c.Token)
	if c.Param != 0 {
		fmt.Fprintf(w, "param:      %d\n", c.Param)
	}
	fmt.Fprintf(w, "phrase:     %s\n", c.Phrase)
	fmt.Fprintf(w, "confidence: %.2f\n", c.Confidence)
	if c.Fuzzy {
		fmt.Fprintln(w, "fuzzy:      yes")
	}
}
