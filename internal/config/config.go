// Package config provides the configuration schema, loader, hot-reload
// watcher and provider registry for voicekey.
package config

import "time"

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Audio      AudioConfig      `yaml:"audio"`
	DSP        DSPConfig        `yaml:"dsp"`
	VAD        VADConfig        `yaml:"vad"`
	Recognizer RecognizerConfig `yaml:"recognizer"`
	Decoder    DecoderConfig    `yaml:"decoder"`
	Commands   CommandsConfig   `yaml:"commands"`
	Control    ControlConfig    `yaml:"control"`
	Actions    ActionsConfig    `yaml:"actions"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
}

// ServerConfig holds the status server and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address of the health, metrics and status
	// endpoints (e.g., ":9090"). Empty disables the server.
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity. Applied immediately on hot reload.
	LogLevel LogLevel `yaml:"log_level"`
}

// AudioConfig selects and tunes the capture source.
type AudioConfig struct {
	// Source names the capture source: "portaudio" or "file".
	Source string `yaml:"source"`

	// Device selects a microphone by name substring. Empty uses the default.
	Device string `yaml:"device"`

	// File is the WAV path for the "file" source.
	File string `yaml:"file"`

	// Realtime paces the file source to its sample rate.
	Realtime bool `yaml:"realtime"`

	// SampleRate is the pipeline rate in Hz.
	SampleRate int `yaml:"sample_rate"`

	// CaptureRate is the device rate in Hz. When it differs from SampleRate
	// the source is resampled.
	CaptureRate int `yaml:"capture_rate"`

	// FrameSamples is the capture read size.
	FrameSamples int `yaml:"frame_samples"`
}

// DSPConfig tunes the signal conditioner. The stage switches are pointers so
// an omitted key keeps the default (enabled) while false disables it.
type DSPConfig struct {
	HighPass    *bool   `yaml:"high_pass"`
	FilterOrder int     `yaml:"filter_order"`
	CutoffHz    float64 `yaml:"cutoff_hz"`
	AGC         *bool   `yaml:"agc"`
	TargetRMS   float64 `yaml:"target_rms"`
	AttackMS    float64 `yaml:"attack_ms"`
	ReleaseMS   float64 `yaml:"release_ms"`
}

// VADConfig selects and tunes the voice activity detector.
type VADConfig struct {
	// Engine is "energy" or "webrtc".
	Engine            string  `yaml:"engine"`
	Threshold         float64 `yaml:"threshold"`
	MinVoiceFrames    int     `yaml:"min_voice_frames"`
	SilenceFrames     int     `yaml:"silence_frames"`
	CalibrationFrames int     `yaml:"calibration_frames"`

	// WebRTCMode is the webrtc aggressiveness from 1 to 3. Zero selects the
	// default; the library's least aggressive mode 0 is not reachable.
	WebRTCMode int `yaml:"webrtc_mode"`
}

// RecognizerConfig tunes the recognition orchestrator.
type RecognizerConfig struct {
	Language string `yaml:"language"`

	// ConfidenceThreshold drops results below it before matching.
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`

	MaxRecordingMS   int `yaml:"max_recording_ms"`
	ResultQueue      int `yaml:"result_queue"`
	PublishTimeoutMS int `yaml:"publish_timeout_ms"`
	ResultTimeoutMS  int `yaml:"result_timeout_ms"`

	// DumpDir, when set, receives a WAV file per utterance.
	DumpDir string `yaml:"dump_dir"`
}

// MaxRecording returns MaxRecordingMS as a duration.
func (r RecognizerConfig) MaxRecording() time.Duration { return ms(r.MaxRecordingMS) }

// PublishTimeout returns PublishTimeoutMS as a duration.
func (r RecognizerConfig) PublishTimeout() time.Duration { return ms(r.PublishTimeoutMS) }

// ResultTimeout returns ResultTimeoutMS as a duration.
func (r RecognizerConfig) ResultTimeout() time.Duration { return ms(r.ResultTimeoutMS) }

// DecoderConfig selects the speech decoder.
type DecoderConfig struct {
	// Name is "placeholder", "whisper" (whisper.cpp server), "whisper-native"
	// or "openai".
	Name string `yaml:"name"`

	// Model is a model name for remote decoders or a model file path for
	// whisper-native.
	Model string `yaml:"model"`

	APIKey   string `yaml:"api_key"`
	BaseURL  string `yaml:"base_url"`
	Language string `yaml:"language"`

	// Fallback is tried when this decoder fails or its breaker is open.
	Fallback *DecoderConfig `yaml:"fallback"`
}

// CommandsConfig tunes the command matcher. Applied immediately on hot
// reload.
type CommandsConfig struct {
	Fuzzy          bool    `yaml:"fuzzy"`
	FuzzyThreshold float64 `yaml:"fuzzy_threshold"`
}

// ControlConfig selects the push-to-talk trigger.
type ControlConfig struct {
	// Trigger is "hotkey", "stdin" or "always".
	Trigger string `yaml:"trigger"`

	// Hotkey is the shortcut for the hotkey trigger, e.g. "ctrl+shift+space".
	Hotkey string `yaml:"hotkey"`
}

// ActionsConfig selects and tunes the action transport.
type ActionsConfig struct {
	// Transport is "ws" (remote HID bridge) or "log" (dry run).
	Transport string `yaml:"transport"`

	// URL is the bridge address for the ws transport.
	URL string `yaml:"url"`

	SettleMS int `yaml:"settle_ms"`
	MoveStep int `yaml:"move_step"`

	// Lock and Sleep are chord sequences such as ["gui+x", "u", "s"].
	Lock  []string `yaml:"lock"`
	Sleep []string `yaml:"sleep"`

	BreakerFailures int `yaml:"breaker_failures"`
	BreakerResetMS  int `yaml:"breaker_reset_ms"`
}

// Settle returns SettleMS as a duration.
func (a ActionsConfig) Settle() time.Duration { return ms(a.SettleMS) }

// BreakerReset returns BreakerResetMS as a duration.
func (a ActionsConfig) BreakerReset() time.Duration { return ms(a.BreakerResetMS) }

// PipelineConfig sizes the worker queues.
type PipelineConfig struct {
	FrameQueue    int `yaml:"frame_queue"`
	CommandQueue  int `yaml:"command_queue"`
	FrameWaitMS   int `yaml:"frame_wait_ms"`
	CommandWaitMS int `yaml:"command_wait_ms"`
}

// FrameWait returns FrameWaitMS as a duration.
func (p PipelineConfig) FrameWait() time.Duration { return ms(p.FrameWaitMS) }

// CommandWait returns CommandWaitMS as a duration.
func (p PipelineConfig) CommandWait() time.Duration { return ms(p.CommandWaitMS) }

func ms(v int) time.Duration { return time.Duration(v) * time.Millisecond }
