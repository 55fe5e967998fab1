// Package types defines the shared types used across all voicekey packages.
//
// Component-specific types live in their own packages. Only the error
// taxonomy and the decoder transcript, which are needed by several layers
// without importing each other, live here to avoid circular imports.
package types

import (
	"errors"
	"time"
)

// Error taxonomy shared by every pipeline component. Callers test with
// [errors.Is]; components wrap these with context using %w.
var (
	// ErrInvalidArgument reports a nil, empty, or out-of-range input.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrInvalidState reports an operation that is not valid in the current
	// lifecycle state (for example processing audio while idle).
	ErrInvalidState = errors.New("invalid state")

	// ErrResourceExhausted reports that a buffer could not be grown to hold
	// the requested input.
	ErrResourceExhausted = errors.New("resource exhausted")

	// ErrTimeout reports that a bounded wait on a channel expired.
	ErrTimeout = errors.New("timeout")

	// ErrNotConnected reports that the action transport is unavailable.
	ErrNotConnected = errors.New("not connected")
)

// Transcript is the output of a speech decoder for one utterance.
type Transcript struct {
	// Text is the decoded speech content. May be empty when the decoder heard
	// nothing intelligible.
	Text string

	// Confidence is the decoder's confidence in [0, 1]. Decoders that do not
	// report a score use a fixed value.
	Confidence float64

	// Language is the language tag the decoder used or detected.
	Language string

	// Duration is the length of the decoded audio.
	Duration time.Duration
}
