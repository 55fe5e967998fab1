package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/MrWong99/voicekey/internal/app"
	"github.com/MrWong99/voicekey/internal/config"
	"github.com/MrWong99/voicekey/internal/recognizer"
	"github.com/MrWong99/voicekey/pkg/audio"
	"github.com/MrWong99/voicekey/pkg/types"
)

func newAnalyzeCmd(g *globalFlags) *cobra.Command {
	var (
		decoder string
		dumpDir string
	)
	cmd := &cobra.Command{
		Use:   "analyze <file.wav>",
		Short: "Run a WAV recording through the recognizer offline",
		Long: `analyze feeds a WAV recording through the signal conditioner, the voice
activity detector and the configured decoder, then prints every recognised
utterance with the command it maps to and the conditioner and detector
statistics. No actions are dispatched.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := g.loadConfig(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("decoder") {
				cfg.Decoder = config.DecoderConfig{Name: decoder, Language: cfg.Recognizer.Language}
			}
			if dumpDir != "" {
				cfg.Recognizer.DumpDir = dumpDir
			}
			if err := config.Validate(cfg); err != nil {
				return err
			}
			newLogger(cfg.Server.LogLevel)
			return analyze(cmd.Context(), cmd.OutOrStdout(), afero.NewOsFs(), cfg, args[0])
		},
	}
	f := cmd.Flags()
	f.StringVar(&decoder, "decoder", "", "override decoder.name (fallbacks are dropped)")
	f.StringVar(&dumpDir, "dump-dir", "", "write every utterance as a WAV file into this directory")
	return cmd
}

func analyze(ctx context.Context, out io.Writer, fs afero.Fs, cfg *config.Config, path string) (err error) {
	samples, rate, err := audio.ReadWAV(fs, path)
	if err != nil {
		return err
	}
	if rate != cfg.Audio.SampleRate {
		rs, err := audio.NewResampler(rate, cfg.Audio.SampleRate)
		if err != nil {
			return err
		}
		if samples, err = rs.Process(samples); err != nil {
			return err
		}
		slog.Debug("resampled input", "from", rate, "to", cfg.Audio.SampleRate)
	}

	reg := app.DefaultRegistry()
	var closers []io.Closer
	defer func() {
		for _, c := range closers {
			err = errors.Join(err, c.Close())
		}
	}()
	dec, err := app.BuildDecoder(cfg.Decoder, reg, &closers)
	if err != nil {
		return err
	}
	det, err := reg.CreateDetector(cfg)
	if err != nil {
		return err
	}

	var results []recognizer.Result
	rec, err := recognizer.New(app.RecognizerConfig(cfg),
		recognizer.WithDecoder(dec),
		recognizer.WithDetector(det),
		recognizer.WithDumpFS(fs),
		recognizer.WithCallback(func(r recognizer.Result) { results = append(results, r) }),
	)
	if err != nil {
		return err
	}
	if err := rec.Start(); err != nil {
		return err
	}

	frameLen := cfg.Audio.FrameSamples
	var seq uint64
	for off := 0; off < len(samples); off += frameLen {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(off+frameLen, len(samples))
		seq++
		frame := audio.Frame{
			Samples:    samples[off:end],
			SampleRate: cfg.Audio.SampleRate,
			Seq:        seq,
			Timestamp:  stampOf(off, cfg.Audio.SampleRate),
		}
		if err := rec.ProcessAudio(ctx, frame); err != nil {
			slog.Warn("frame rejected", "seq", seq, "err", err)
		}
	}
	if err := rec.EndUtterance(ctx); err != nil && !errors.Is(err, types.ErrInvalidState) {
		return err
	}
	if err := rec.Stop(); err != nil {
		return err
	}

	printAnalysis(out, cfg, path, len(samples), results, rec.Stats())
	return nil
}

func stampOf(offset, rate int) time.Duration {
	return time.Duration(offset) * time.Second / time.Duration(rate)
}

func printAnalysis(w io.Writer, cfg *config.Config, path string, n int, results []recognizer.Result, st recognizer.Stats) {
	m := app.NewMatcher(cfg.Commands)

	fmt.Fprintf(w, "%s: %s at %d Hz\n", path, stampOf(n, cfg.Audio.SampleRate).Round(time.Millisecond), cfg.Audio.SampleRate)
	fmt.Fprintf(w, "utterances: %d\n", len(results))
	for i, r := range results {
		cmd, ok := m.Match(r.Text, r.Confidence)
		target := "(no command)"
		if ok {
			target = fmt.Sprintf("%s %s", cmd.Type, cmd.Token)
		}
		fmt.Fprintf(w, "  %2d  %8s  %6s  %.2f  %-32q -> %s\n",
			i+1,
			r.Timestamp.Round(time.Millisecond),
			r.Duration.Round(time.Millisecond),
			r.Confidence,
			r.Text,
			target,
		)
	}
	fmt.Fprintf(w, "frames: %d processed; speech starts %d, max-length cuts %d, decode errors %d, empty %d\n",
		st.FramesProcessed, st.SpeechStarts, st.MaxLengthCuts, st.DecodeErrors, st.EmptyResults)
	fmt.Fprintf(w, "dsp: peak %.3f, rms %.4f, dc %.4f, gain %.2f, clipped %d\n",
		st.DSP.PeakLevel, st.DSP.RMS, st.DSP.DCOffset, st.DSP.CurrentGain, st.DSP.ClippedSamples)
	fmt.Fprintf(w, "vad: voice %d / silence %d frames, noise floor %.4f, threshold %.4f, calibrated %v\n",
		st.VAD.VoiceFrames, st.VAD.SilenceFrames, st.VAD.NoiseFloor, st.VAD.Threshold, st.VAD.Calibrated)
}
