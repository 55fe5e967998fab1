package config

import "slices"

// Default values applied by [ApplyDefaults].
const (
	DefaultLogLevel     = LogInfo
	DefaultAudioSource  = "portaudio"
	DefaultSampleRate   = 16000
	DefaultFrameSamples = 1024

	DefaultFilterOrder = 4
	DefaultCutoffHz    = 80.0
	DefaultTargetRMS   = 0.1
	DefaultAttackMS    = 1.0
	DefaultReleaseMS   = 100.0

	DefaultVADEngine         = "energy"
	DefaultVADThreshold      = 0.01
	DefaultMinVoiceFrames    = 10
	DefaultSilenceFrames     = 20
	DefaultCalibrationFrames = 100
	DefaultWebRTCMode        = 2

	DefaultLanguage         = "ru"
	DefaultMaxRecordingMS   = 5000
	DefaultResultQueue      = 5
	DefaultPublishTimeoutMS = 100
	DefaultResultTimeoutMS  = 100

	DefaultDecoder        = "placeholder"
	DefaultFuzzyThreshold = 0.85

	DefaultTrigger = "hotkey"
	DefaultHotkey  = "ctrl+shift+space"

	DefaultTransport       = "log"
	DefaultSettleMS        = 50
	DefaultMoveStep        = 10
	DefaultBreakerFailures = 5
	DefaultBreakerResetMS  = 30000

	DefaultFrameQueue    = 10
	DefaultCommandQueue  = 5
	DefaultFrameWaitMS   = 10
	DefaultCommandWaitMS = 50
)

var (
	defaultLockSequence  = []string{"gui+l"}
	defaultSleepSequence = []string{"gui+x", "u", "s"}
)

// ApplyDefaults fills every unset field of cfg with its default. Explicit
// values are never overwritten, so each option can be overridden on its own.
func ApplyDefaults(cfg *Config) {
	s := &cfg.Server
	if s.LogLevel == "" {
		s.LogLevel = DefaultLogLevel
	}

	a := &cfg.Audio
	setString(&a.Source, DefaultAudioSource)
	setInt(&a.SampleRate, DefaultSampleRate)
	setInt(&a.CaptureRate, a.SampleRate)
	setInt(&a.FrameSamples, DefaultFrameSamples)

	d := &cfg.DSP
	if d.HighPass == nil {
		d.HighPass = boolPtr(true)
	}
	if d.AGC == nil {
		d.AGC = boolPtr(true)
	}
	setInt(&d.FilterOrder, DefaultFilterOrder)
	setFloat(&d.CutoffHz, DefaultCutoffHz)
	setFloat(&d.TargetRMS, DefaultTargetRMS)
	setFloat(&d.AttackMS, DefaultAttackMS)
	setFloat(&d.ReleaseMS, DefaultReleaseMS)

	v := &cfg.VAD
	setString(&v.Engine, DefaultVADEngine)
	setFloat(&v.Threshold, DefaultVADThreshold)
	setInt(&v.MinVoiceFrames, DefaultMinVoiceFrames)
	setInt(&v.SilenceFrames, DefaultSilenceFrames)
	setInt(&v.CalibrationFrames, DefaultCalibrationFrames)
	setInt(&v.WebRTCMode, DefaultWebRTCMode)

	r := &cfg.Recognizer
	setString(&r.Language, DefaultLanguage)
	setInt(&r.MaxRecordingMS, DefaultMaxRecordingMS)
	setInt(&r.ResultQueue, DefaultResultQueue)
	setInt(&r.PublishTimeoutMS, DefaultPublishTimeoutMS)
	setInt(&r.ResultTimeoutMS, DefaultResultTimeoutMS)

	applyDecoderDefaults(&cfg.Decoder, r.Language)
	setString(&cfg.Decoder.Name, DefaultDecoder)

	setFloat(&cfg.Commands.FuzzyThreshold, DefaultFuzzyThreshold)

	c := &cfg.Control
	setString(&c.Trigger, DefaultTrigger)
	setString(&c.Hotkey, DefaultHotkey)

	act := &cfg.Actions
	setString(&act.Transport, DefaultTransport)
	setInt(&act.SettleMS, DefaultSettleMS)
	setInt(&act.MoveStep, DefaultMoveStep)
	setInt(&act.BreakerFailures, DefaultBreakerFailures)
	setInt(&act.BreakerResetMS, DefaultBreakerResetMS)
	if len(act.Lock) == 0 {
		act.Lock = slices.Clone(defaultLockSequence)
	}
	if len(act.Sleep) == 0 {
		act.Sleep = slices.Clone(defaultSleepSequence)
	}

	p := &cfg.Pipeline
	setInt(&p.FrameQueue, DefaultFrameQueue)
	setInt(&p.CommandQueue, DefaultCommandQueue)
	setInt(&p.FrameWaitMS, DefaultFrameWaitMS)
	setInt(&p.CommandWaitMS, DefaultCommandWaitMS)
}

// applyDecoderDefaults fills the language down the fallback chain.
func applyDecoderDefaults(d *DecoderConfig, lang string) {
	for ; d != nil; d = d.Fallback {
		setString(&d.Language, lang)
	}
}

func setString(p *string, v string) {
	if *p == "" {
		*p = v
	}
}

func setInt(p *int, v int) {
	if *p == 0 {
		*p = v
	}
}

func setFloat(p *float64, v float64) {
	if *p == 0 {
		*p = v
	}
}

func boolPtr(b bool) *bool { return &b }
