// Package control turns push-to-talk input into the pipeline's single
// "capture enabled" flag.
//
// A [Trigger] reports button edges on a channel. The control worker applies
// each edge to a [Gate]; the capture worker polls the gate and starts or
// stops the audio source to match. The gate is the only state shared between
// workers, and it has exactly one writer and one reader.
package control

import (
	"context"
	"sync/atomic"
)

// Edge is a push-to-talk button transition.
type Edge int

const (
	// EdgePress starts a recording.
	EdgePress Edge = iota + 1

	// EdgeRelease ends a recording.
	EdgeRelease
)

// String returns "press" or "release".
func (e Edge) String() string {
	switch e {
	case EdgePress:
		return "press"
	case EdgeRelease:
		return "release"
	default:
		return "invalid"
	}
}

// Trigger is a source of push-to-talk edges.
type Trigger interface {
	// Run sends edges until ctx is cancelled or the input ends. It returns
	// nil on cancellation and end of input, and an error only when the input
	// could not be set up or failed.
	Run(ctx context.Context, edges chan<- Edge) error
}

// Gate is the atomic "capture enabled" flag.
type Gate struct {
	on atomic.Bool
}

// Enabled reports whether capture is enabled.
func (g *Gate) Enabled() bool { return g.on.Load() }

// Apply sets the gate from e. A press opens a closed gate and a release
// closes an open one; any other combination leaves the gate unchanged.
// It reports whether the gate changed.
func (g *Gate) Apply(e Edge) bool {
	switch e {
	case EdgePress:
		return g.on.CompareAndSwap(false, true)
	case EdgeRelease:
		return g.on.CompareAndSwap(true, false)
	default:
		return false
	}
}

// Send delivers e on edges unless ctx is done first. It reports whether e
// was delivered.
func Send(ctx context.Context, edges chan<- Edge, e Edge) bool {
	select {
	case edges <- e:
		return true
	case <-ctx.Done():
		return false
	}
}

// AlwaysOn is a Trigger that presses once and never releases. It suits file
// input and hands-free operation, where the detector alone delimits speech.
type AlwaysOn struct{}

// Run sends a single press and waits for ctx.
func (AlwaysOn) Run(ctx context.Context, edges chan<- Edge) error {
	if Send(ctx, edges, EdgePress) {
		<-ctx.Done()
	}
	return nil
}

var _ Trigger = AlwaysOn{}
