// Package stt defines the Decoder interface for speech-to-text backends.
//
// A Decoder turns one complete utterance of 16-bit mono PCM into a
// [types.Transcript]. Utterance segmentation happens upstream (voice activity
// detection or push-to-talk); decoders are pure batch transcribers. The
// placeholder backend stands in when no real engine is configured, and the
// whisper and openai sub-packages provide the real ones.
//
// Implementations must be safe for concurrent use.
package stt

import (
	"context"
	"fmt"
	"time"

	"github.com/MrWong99/voicekey/pkg/types"
)

// Decoder is the abstraction over any batch STT backend.
type Decoder interface {
	// Decode transcribes samples (mono, sampleRate Hz). An empty buffer
	// returns an error wrapping types.ErrInvalidArgument. An empty Text in
	// the returned transcript means the engine heard nothing intelligible.
	Decode(ctx context.Context, samples []int16, sampleRate int) (types.Transcript, error)
}

// DecoderFunc adapts an ordinary function to the Decoder interface.
type DecoderFunc func(ctx context.Context, samples []int16, sampleRate int) (types.Transcript, error)

// Decode calls f.
func (f DecoderFunc) Decode(ctx context.Context, samples []int16, sampleRate int) (types.Transcript, error) {
	return f(ctx, samples, sampleRate)
}

// CheckInput validates the common Decode arguments.
func CheckInput(samples []int16, sampleRate int) error {
	if len(samples) == 0 {
		return fmt.Errorf("stt: empty utterance: %w", types.ErrInvalidArgument)
	}
	if sampleRate <= 0 {
		return fmt.Errorf("stt: sample rate %d: %w", sampleRate, types.ErrInvalidArgument)
	}
	return nil
}

// Duration returns the playback length of n samples at sampleRate.
func Duration(n, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second / time.Duration(sampleRate)
}
