package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"github.com/MrWong99/voicekey/internal/action"
	"github.com/MrWong99/voicekey/internal/action/transport/logonly"
	"github.com/MrWong99/voicekey/internal/action/transport/ws"
	"github.com/MrWong99/voicekey/internal/config"
	"github.com/MrWong99/voicekey/internal/control"
	"github.com/MrWong99/voicekey/internal/control/hotkey"
	"github.com/MrWong99/voicekey/internal/resilience"
	"github.com/MrWong99/voicekey/pkg/audio/capture"
	"github.com/MrWong99/voicekey/pkg/audio/capture/file"
	micsource "github.com/MrWong99/voicekey/pkg/audio/capture/portaudio"
	"github.com/MrWong99/voicekey/pkg/provider/stt"
	oaistt "github.com/MrWong99/voicekey/pkg/provider/stt/openai"
	"github.com/MrWong99/voicekey/pkg/provider/stt/placeholder"
	"github.com/MrWong99/voicekey/pkg/provider/stt/whisper"
	"github.com/MrWong99/voicekey/pkg/provider/vad"
	"github.com/MrWong99/voicekey/pkg/provider/vad/energy"
	"github.com/MrWong99/voicekey/pkg/provider/vad/webrtc"
)

// DefaultRegistry returns a registry with every built-in provider factory.
func DefaultRegistry() *config.Registry {
	reg := config.NewRegistry()
	RegisterBuiltinProviders(reg)
	return reg
}

// RegisterBuiltinProviders wires all built-in provider factories into reg.
func RegisterBuiltinProviders(reg *config.Registry) {
	// ── Decoders ──────────────────────────────────────────────────────────────

	reg.RegisterDecoder("placeholder", func(dc config.DecoderConfig) (stt.Decoder, error) {
		return placeholder.New(dc.Language), nil
	})

	reg.RegisterDecoder("whisper", func(dc config.DecoderConfig) (stt.Decoder, error) {
		var opts []whisper.Option
		if dc.Model != "" {
			opts = append(opts, whisper.WithModel(dc.Model))
		}
		if dc.Language != "" {
			opts = append(opts, whisper.WithLanguage(dc.Language))
		}
		return whisper.NewServer(dc.BaseURL, opts...)
	})

	reg.RegisterDecoder("whisper-native", func(dc config.DecoderConfig) (stt.Decoder, error) {
		var opts []whisper.NativeOption
		if dc.Language != "" {
			opts = append(opts, whisper.WithNativeLanguage(dc.Language))
		}
		return whisper.NewNative(dc.Model, opts...)
	})

	reg.RegisterDecoder("openai", func(dc config.DecoderConfig) (stt.Decoder, error) {
		key := dc.APIKey
		if key == "" {
			key = os.Getenv("OPENAI_API_KEY")
		}
		var opts []oaistt.Option
		if dc.Model != "" {
			opts = append(opts, oaistt.WithModel(dc.Model))
		}
		if dc.BaseURL != "" {
			opts = append(opts, oaistt.WithBaseURL(dc.BaseURL))
		}
		if dc.Language != "" {
			opts = append(opts, oaistt.WithLanguage(dc.Language))
		}
		return oaistt.New(key, opts...)
	})

	// ── VAD ───────────────────────────────────────────────────────────────────

	reg.RegisterDetector("energy", func(cfg *config.Config) (vad.Detector, error) {
		return energy.New(VADConfig(cfg))
	})

	reg.RegisterDetector("webrtc", func(cfg *config.Config) (vad.Detector, error) {
		return webrtc.New(VADConfig(cfg), webrtc.WithMode(cfg.VAD.WebRTCMode))
	})

	// ── Capture ───────────────────────────────────────────────────────────────

	reg.RegisterSource("portaudio", func(ac config.AudioConfig) (capture.Source, error) {
		src, err := micsource.New(micsource.Config{
			Device:       ac.Device,
			SampleRate:   ac.CaptureRate,
			FrameSamples: ac.FrameSamples,
		})
		if err != nil {
			return nil, err
		}
		return resampled(src, ac.SampleRate)
	})

	reg.RegisterSource("file", func(ac config.AudioConfig) (capture.Source, error) {
		src, err := file.Open(ac.File, file.WithRealtime(ac.Realtime))
		if err != nil {
			return nil, err
		}
		return resampled(src, ac.SampleRate)
	})

	// ── Triggers ──────────────────────────────────────────────────────────────

	reg.RegisterTrigger("hotkey", func(cc config.ControlConfig) (control.Trigger, error) {
		return hotkey.New(cc.Hotkey)
	})
	reg.RegisterTrigger("stdin", func(config.ControlConfig) (control.Trigger, error) {
		return control.NewStdin(os.Stdin), nil
	})
	reg.RegisterTrigger("always", func(config.ControlConfig) (control.Trigger, error) {
		return control.AlwaysOn{}, nil
	})

	// ── Transports ────────────────────────────────────────────────────────────

	reg.RegisterTransport("ws", func(ctx context.Context, ac config.ActionsConfig) (action.Transport, error) {
		return ws.Dial(ctx, ac.URL)
	})
	reg.RegisterTransport("log", func(context.Context, config.ActionsConfig) (action.Transport, error) {
		return logonly.New(), nil
	})

	for _, kind := range []string{"decoder", "vad", "audio", "trigger", "transport"} {
		slog.Debug("registered providers", "kind", kind, "names", reg.Names(kind))
	}
}

// resampled wraps src so it delivers rate, closing src on failure.
func resampled(src capture.Source, rate int) (capture.Source, error) {
	out, err := capture.NewResampled(src, rate)
	if err != nil {
		return nil, errors.Join(err, src.Close())
	}
	return out, nil
}

// BuildProviders instantiates all providers named in cfg using the registry.
// A decoder with fallbacks is wrapped in a [resilience.DecoderFallback]. On
// failure every provider created so far is closed, newest first.
func BuildProviders(ctx context.Context, cfg *config.Config, reg *config.Registry) (_ *Providers, err error) {
	ps := &Providers{}
	var closers []io.Closer
	defer func() {
		if err == nil {
			return
		}
		for _, c := range slices.Backward(closers) {
			if cerr := c.Close(); cerr != nil {
				slog.Warn("close after failed build", "err", cerr)
			}
		}
	}()

	if ps.Decoder, err = BuildDecoder(cfg.Decoder, reg, &closers); err != nil {
		return nil, err
	}
	if ps.Detector, err = reg.CreateDetector(cfg); err != nil {
		return nil, fmt.Errorf("create vad %q: %w", cfg.VAD.Engine, err)
	}
	if ps.Trigger, err = reg.CreateTrigger(cfg.Control); err != nil {
		return nil, fmt.Errorf("create trigger %q: %w", cfg.Control.Trigger, err)
	}
	if ps.Source, err = reg.CreateSource(cfg.Audio); err != nil {
		return nil, fmt.Errorf("create audio source %q: %w", cfg.Audio.Source, err)
	}
	closers = append(closers, ps.Source)
	if ps.Transport, err = reg.CreateTransport(ctx, cfg.Actions); err != nil {
		return nil, fmt.Errorf("create transport %q: %w", cfg.Actions.Transport, err)
	}

	slog.Info("providers created",
		"audio", cfg.Audio.Source,
		"vad", cfg.VAD.Engine,
		"decoder", cfg.Decoder.Name,
		"trigger", cfg.Control.Trigger,
		"transport", cfg.Actions.Transport,
	)
	return ps, nil
}

// BuildDecoder creates the decoder chain described by dc. Decoders that
// implement io.Closer are appended to closers.
func BuildDecoder(dc config.DecoderConfig, reg *config.Registry, closers *[]io.Closer) (stt.Decoder, error) {
	create := func(d config.DecoderConfig) (stt.Decoder, error) {
		dec, err := reg.CreateDecoder(d)
		if err != nil {
			return nil, fmt.Errorf("create decoder %q: %w", d.Name, err)
		}
		if c, ok := dec.(io.Closer); ok && closers != nil {
			*closers = append(*closers, c)
		}
		return dec, nil
	}

	primary, err := create(dc)
	if err != nil {
		return nil, err
	}
	if dc.Fallback == nil {
		return primary, nil
	}

	chain := resilience.NewDecoderFallback(primary, dc.Name, resilience.FallbackConfig{})
	for fb := dc.Fallback; fb != nil; fb = fb.Fallback {
		dec, err := create(*fb)
		if err != nil {
			return nil, err
		}
		chain.AddFallback(fb.Name, dec)
	}
	return chain, nil
}
