// Package vad defines the Detector interface for Voice Activity Detection
// backends and the hysteresis state machine they share.
//
// A detector consumes conditioned 16-bit frames one at a time and reports
// edge events: [EventSpeechStarted] when sustained voice begins and
// [EventSpeechEnded] when sustained silence follows. Frames in the same regime
// report [EventNone]. Each transition produces exactly one event.
//
// Detectors are stateful and owned by a single goroutine; only Stats may be
// called concurrently.
package vad

// Default tuning values.
const (
	DefaultThreshold         = 0.01
	DefaultMinVoiceFrames    = 10
	DefaultSilenceFrames     = 20
	DefaultCalibrationFrames = 100
	DefaultThresholdFactor   = 3.0
)

// Config holds the parameters shared by every detector backend.
type Config struct {
	// SampleRate is the audio sample rate in Hz.
	SampleRate int

	// Threshold is the normalised RMS energy above which a frame counts as
	// voice until the noise floor has been calibrated.
	Threshold float64

	// MinVoiceFrames is the number of consecutive voice frames that start
	// speech.
	MinVoiceFrames int

	// SilenceFrames is the number of consecutive silent frames that end
	// speech.
	SilenceFrames int

	// CalibrationFrames is the number of initial frames averaged into the
	// noise floor.
	CalibrationFrames int
}

// WithDefaults returns a copy of c with zero fields replaced by the package
// defaults.
func (c Config) WithDefaults() Config {
	if c.Threshold <= 0 {
		c.Threshold = DefaultThreshold
	}
	if c.MinVoiceFrames <= 0 {
		c.MinVoiceFrames = DefaultMinVoiceFrames
	}
	if c.SilenceFrames <= 0 {
		c.SilenceFrames = DefaultSilenceFrames
	}
	if c.CalibrationFrames <= 0 {
		c.CalibrationFrames = DefaultCalibrationFrames
	}
	return c
}

// Detector is a frame-level voice activity detector.
type Detector interface {
	// Process classifies one frame and returns the edge event it caused, if
	// any. An empty frame returns an error wrapping types.ErrInvalidArgument
	// and leaves all state unchanged. Process must not block.
	Process(frame []int16) (Event, error)

	// Reset clears the hysteresis counters and the speaking flag. Calibration
	// (noise floor) is kept.
	Reset()

	// Stats returns a snapshot of the detector statistics. Safe for concurrent
	// use.
	Stats() Stats

	// ResetStats zeroes the statistics.
	ResetStats()
}
