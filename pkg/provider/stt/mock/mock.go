// Package mock provides a test double for the stt.Decoder interface.
//
// Use Results to script transcripts (one per Decode call, then Result
// repeats). Set Block to make Decode wait until the channel is closed or the
// context is cancelled, which lets tests observe the decoding state.
//
// Example:
//
//	dec := &mock.Decoder{Result: types.Transcript{Text: "нажми пробел", Confidence: 0.9}}
//	orch, _ := recognizer.New(cfg, recognizer.WithDecoder(dec))
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/voicekey/pkg/provider/stt"
	"github.com/MrWong99/voicekey/pkg/types"
)

// DecodeCall records a single invocation of Decoder.Decode.
type DecodeCall struct {
	// Samples is a copy of the audio passed to Decode.
	Samples []int16
	// SampleRate is the rate passed to Decode.
	SampleRate int
}

// Decoder is a mock implementation of stt.Decoder.
type Decoder struct {
	mu sync.Mutex

	// Results holds transcripts returned by successive Decode calls.
	Results []types.Transcript

	// Result is returned once Results is exhausted.
	Result types.Transcript

	// Errs holds errors returned by successive Decode calls. A nil entry
	// means "no error" for that call.
	Errs []error

	// Err, if non-nil, is returned once Errs is exhausted.
	Err error

	// Block, if non-nil, makes Decode wait until it is closed.
	Block chan struct{}

	// --- Call records ---

	// DecodeCalls records every call to Decode in order.
	DecodeCalls []DecodeCall
}

// Decode records the call and returns the next scripted result.
func (d *Decoder) Decode(ctx context.Context, samples []int16, sampleRate int) (types.Transcript, error) {
	d.mu.Lock()
	cp := make([]int16, len(samples))
	copy(cp, samples)
	d.DecodeCalls = append(d.DecodeCalls, DecodeCall{Samples: cp, SampleRate: sampleRate})
	block := d.Block

	var err error
	if len(d.Errs) > 0 {
		err = d.Errs[0]
		d.Errs = d.Errs[1:]
	} else {
		err = d.Err
	}
	res := d.Result
	if len(d.Results) > 0 {
		res = d.Results[0]
		d.Results = d.Results[1:]
	}
	d.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return types.Transcript{}, ctx.Err()
		}
	}
	if err != nil {
		return types.Transcript{}, err
	}
	return res, nil
}

// Calls returns the number of recorded Decode calls. Thread-safe.
func (d *Decoder) Calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.DecodeCalls)
}

// LastCall returns the most recent Decode call and true, or false when none
// has been made. Thread-safe.
func (d *Decoder) LastCall() (DecodeCall, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.DecodeCalls) == 0 {
		return DecodeCall{}, false
	}
	return d.DecodeCalls[len(d.DecodeCalls)-1], true
}

// Reset clears all recorded calls. Thread-safe.
func (d *Decoder) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.DecodeCalls = nil
}

// Ensure Decoder implements stt.Decoder at compile time.
var _ stt.Decoder = (*Decoder)(nil)
