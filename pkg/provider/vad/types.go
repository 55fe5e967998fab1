package vad

// EventType enumerates detector edge events.
type EventType int

const (
	// EventNone means the frame did not change the speaking state.
	EventNone EventType = iota

	// EventSpeechStarted marks the frame that completed the voice run.
	EventSpeechStarted

	// EventSpeechEnded marks the frame that completed the silence run.
	EventSpeechEnded
)

// String returns the event name.
func (t EventType) String() string {
	switch t {
	case EventNone:
		return "none"
	case EventSpeechStarted:
		return "speech_started"
	case EventSpeechEnded:
		return "speech_ended"
	default:
		return "unknown"
	}
}

// Event is the result of processing one frame.
type Event struct {
	// Type is the edge produced by this frame.
	Type EventType

	// Energy is the normalised RMS energy of the frame.
	Energy float64

	// Voice reports whether the frame itself was classified as voice.
	Voice bool
}

// Stats is a snapshot of a detector's statistics. Counters are cumulative
// since construction or the last ResetStats.
type Stats struct {
	TotalFrames   uint64
	VoiceFrames   uint64
	SilenceFrames uint64
	CurrentEnergy float64
	AverageEnergy float64
	NoiseFloor    float64
	Threshold     float64
	Calibrated    bool
	Speaking      bool
}
