package audio

import "time"

// DefaultSampleRate is the nominal pipeline sample rate in Hz.
const DefaultSampleRate = 16000

// Frame is a single chunk of mono 16-bit audio flowing through the pipeline.
// Frames are produced by the capture worker and move by value across
// channels; once sent, the producer must not touch Samples again.
type Frame struct {
	// Samples holds signed 16-bit PCM samples. Length varies per read.
	Samples []int16

	// SampleRate in Hz (16000 unless the capture source says otherwise).
	SampleRate int

	// Seq is the capture sequence number, starting at 1 per recording.
	Seq uint64

	// Timestamp marks when this frame was captured, relative to the start of
	// the recording.
	Timestamp time.Duration

	// EndOfUtterance marks a control frame with no samples that tells the
	// recognizer the push-to-talk control was released.
	EndOfUtterance bool
}

// Duration returns the playback length of the frame.
func (f Frame) Duration() time.Duration {
	if f.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(f.Samples)) * time.Second / time.Duration(f.SampleRate)
}
