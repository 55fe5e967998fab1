package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/MrWong99/voicekey/internal/action"
)

// ValidProviderNames lists the built-in provider names per kind. Used by
// [Validate] to warn about unrecognised names; third-party factories may
// still be registered under other names.
var ValidProviderNames = map[string][]string{
	"audio":     {"portaudio", "file"},
	"vad":       {"energy", "webrtc"},
	"decoder":   {"placeholder", "whisper", "whisper-native", "openai"},
	"trigger":   {"hotkey", "stdin", "always"},
	"transport": {"ws", "log"},
}

// Load reads the YAML configuration file at path from the OS filesystem.
func Load(path string) (*Config, error) {
	return LoadFs(afero.NewOsFs(), path)
}

// LoadFs reads the YAML configuration file at path from fs and returns a
// defaulted, validated [Config].
func LoadFs(fs afero.Fs, path string) (*Config, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults and
// validates the result. An empty document yields the default config.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg, after [ApplyDefaults], contains a coherent set
// of values. It returns a joined error listing all validation failures
// found and logs warnings for suspicious but usable settings.
func Validate(cfg *Config) error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	// Server
	if !cfg.Server.LogLevel.IsValid() {
		fail("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel)
	}

	// Provider names
	validateProviderName("audio", cfg.Audio.Source)
	validateProviderName("vad", cfg.VAD.Engine)
	validateProviderName("trigger", cfg.Control.Trigger)
	validateProviderName("transport", cfg.Actions.Transport)
	for d := &cfg.Decoder; d != nil; d = d.Fallback {
		validateProviderName("decoder", d.Name)
	}

	// Audio
	a := cfg.Audio
	if a.SampleRate < 0 || a.CaptureRate < 0 || a.FrameSamples < 0 {
		fail("audio.sample_rate, audio.capture_rate and audio.frame_samples must be positive")
	}
	if a.Source == "file" && a.File == "" {
		fail("audio.file is required when audio.source is file")
	}
	if a.Source != "file" && a.File != "" {
		slog.Warn("audio.file is set but audio.source is not file; the file is ignored", "source", a.Source)
	}

	// DSP
	d := cfg.DSP
	if d.FilterOrder < 2 {
		fail("dsp.filter_order %d must be at least 2", d.FilterOrder)
	}
	if d.CutoffHz <= 0 || (a.SampleRate > 0 && d.CutoffHz >= float64(a.SampleRate)/2) {
		fail("dsp.cutoff_hz %.1f is out of range (0, %d)", d.CutoffHz, a.SampleRate/2)
	}
	if d.TargetRMS <= 0 || d.TargetRMS > 1 {
		fail("dsp.target_rms %.3f is out of range (0, 1]", d.TargetRMS)
	}
	if d.AttackMS <= 0 || d.ReleaseMS <= 0 {
		fail("dsp.attack_ms and dsp.release_ms must be positive")
	}

	// VAD
	v := cfg.VAD
	if v.Threshold <= 0 || v.Threshold >= 1 {
		fail("vad.threshold %.3f is out of range (0, 1)", v.Threshold)
	}
	if v.MinVoiceFrames < 1 || v.SilenceFrames < 1 || v.CalibrationFrames < 1 {
		fail("vad.min_voice_frames, vad.silence_frames and vad.calibration_frames must be positive")
	}
	if v.WebRTCMode < 0 || v.WebRTCMode > 3 {
		fail("vad.webrtc_mode %d is out of range [0, 3]", v.WebRTCMode)
	}

	// Recognizer
	r := cfg.Recognizer
	if r.ConfidenceThreshold < 0 || r.ConfidenceThreshold > 1 {
		fail("recognizer.confidence_threshold %.2f is out of range [0, 1]", r.ConfidenceThreshold)
	}
	if r.MaxRecordingMS < 0 || r.ResultQueue < 0 || r.PublishTimeoutMS < 0 || r.ResultTimeoutMS < 0 {
		fail("recognizer durations and queue sizes must not be negative")
	}

	// Decoder chain
	depth := 0
	for dc := &cfg.Decoder; dc != nil; dc = dc.Fallback {
		prefix := "decoder"
		if depth > 0 {
			prefix = fmt.Sprintf("decoder.fallback[%d]", depth)
		}
		switch dc.Name {
		case "whisper-native":
			if dc.Model == "" {
				fail("%s.model (model file path) is required for whisper-native", prefix)
			}
		case "whisper":
			if dc.BaseURL == "" {
				fail("%s.base_url is required for the whisper server decoder", prefix)
			}
		case "openai":
			if dc.APIKey == "" {
				slog.Warn("decoder api_key is empty; requests will rely on OPENAI_API_KEY", "decoder", prefix)
			}
		}
		depth++
	}

	// Commands
	if c := cfg.Commands; c.FuzzyThreshold <= 0 || c.FuzzyThreshold > 1 {
		fail("commands.fuzzy_threshold %.2f is out of range (0, 1]", c.FuzzyThreshold)
	}

	// Actions
	act := cfg.Actions
	if act.Transport == "ws" && act.URL == "" {
		fail("actions.url is required when actions.transport is ws")
	}
	if act.SettleMS < 0 || act.MoveStep < 0 || act.BreakerFailures < 0 || act.BreakerResetMS < 0 {
		fail("actions timings, move_step and breaker settings must not be negative")
	}
	if _, err := action.ParseSequence(act.Lock); err != nil {
		fail("actions.lock: %w", err)
	}
	if _, err := action.ParseSequence(act.Sleep); err != nil {
		fail("actions.sleep: %w", err)
	}

	// Pipeline
	p := cfg.Pipeline
	if p.FrameQueue < 1 || p.CommandQueue < 1 {
		fail("pipeline.frame_queue and pipeline.command_queue must be positive")
	}
	if p.FrameWaitMS < 0 || p.CommandWaitMS < 0 {
		fail("pipeline wait times must not be negative")
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
