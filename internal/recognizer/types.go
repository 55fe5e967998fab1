package recognizer

import (
	"time"
	"unicode/utf8"

	"github.com/MrWong99/voicekey/internal/dsp"
	"github.com/MrWong99/voicekey/pkg/provider/vad"
)

// MaxTextBytes bounds [Result.Text].
const MaxTextBytes = 256

// State is the orchestrator lifecycle state.
type State int

const (
	// StateIdle accepts only Start.
	StateIdle State = iota

	// StateListening feeds frames through the conditioner and detector and
	// waits for speech.
	StateListening

	// StateProcessing collects an utterance and decodes it when speech ends.
	StateProcessing

	// StateError is entered after repeated resource failures. Only Stop
	// leaves it.
	StateError
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateListening:
		return "listening"
	case StateProcessing:
		return "processing"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Result is one finalised recognition. It is immutable and passed by value.
type Result struct {
	// ID identifies the utterance across logs, spans and debug dumps.
	ID string

	// Text is the decoded utterance, at most MaxTextBytes long.
	Text string

	// Confidence is the decoder confidence in [0, 1].
	Confidence float64

	// IsFinal is always true for published results.
	IsFinal bool

	// Language is the language tag the decoder worked in.
	Language string

	// Duration is the audio length of the utterance.
	Duration time.Duration

	// Timestamp is the stream position of the first sample of the utterance.
	Timestamp time.Duration
}

// Stats is a snapshot of the orchestrator statistics.
type Stats struct {
	State State

	FramesProcessed  uint64
	ResourceErrors   uint64
	SpeechStarts     uint64
	Utterances       uint64
	MaxLengthCuts    uint64
	DecodeErrors     uint64
	EmptyResults     uint64
	ResultsPublished uint64
	ResultsDropped   uint64
	ResultsDiscarded uint64

	DSP dsp.Stats
	VAD vad.Stats
}

// truncateText cuts s to at most n bytes without splitting a rune.
func truncateText(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func clamp01(v float64) float64 {
	return min(max(v, 0), 1)
}
