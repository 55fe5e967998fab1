package resilience

import (
	"context"
	"errors"
	"io"

	"github.com/MrWong99/voicekey/pkg/provider/stt"
	"github.com/MrWong99/voicekey/pkg/types"
)

// DecoderFallback implements [stt.Decoder] with automatic failover across
// several decoders. Each decoder has its own circuit breaker. Invalid input
// is not counted against a decoder.
type DecoderFallback struct {
	group *FallbackGroup[stt.Decoder]
}

// Compile-time interface assertion.
var _ stt.Decoder = (*DecoderFallback)(nil)

// NewDecoderFallback creates a [DecoderFallback] with primary as the preferred
// decoder.
func NewDecoderFallback(primary stt.Decoder, primaryName string, cfg FallbackConfig) *DecoderFallback {
	if cfg.CircuitBreaker.IsFailure == nil {
		cfg.CircuitBreaker.IsFailure = IsBackendFailure
	}
	return &DecoderFallback{group: NewFallbackGroup(primary, primaryName, cfg)}
}

// AddFallback registers an additional decoder.
func (f *DecoderFallback) AddFallback(name string, d stt.Decoder) {
	f.group.AddFallback(name, d)
}

// States returns the breaker state of each decoder keyed by name.
func (f *DecoderFallback) States() map[string]State { return f.group.States() }

// Decode transcribes samples with the first healthy decoder.
func (f *DecoderFallback) Decode(ctx context.Context, samples []int16, sampleRate int) (types.Transcript, error) {
	return ExecuteWithResult(f.group, func(d stt.Decoder) (types.Transcript, error) {
		return d.Decode(ctx, samples, sampleRate)
	})
}

// Close closes every decoder in the chain that implements io.Closer.
func (f *DecoderFallback) Close() error {
	var errs []error
	for i := range f.group.entries {
		if c, ok := f.group.entries[i].value.(io.Closer); ok {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}

// IsBackendFailure reports whether err reflects a broken backend rather than
// a bad request or a cancelled caller.
func IsBackendFailure(err error) bool {
	switch {
	case errors.Is(err, types.ErrInvalidArgument),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return false
	}
	return true
}
