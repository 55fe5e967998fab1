// Package mock provides a scripted control.Trigger for tests.
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/MrWong99/voicekey/internal/control"
)

// Trigger sends Script in order, pausing Interval before each edge.
// After the script it waits for cancellation unless Exit is set.
type Trigger struct {
	// Script holds the edges to send.
	Script []control.Edge

	// Interval is the pause before each edge.
	Interval time.Duration

	// Exit makes Run return as soon as the script is sent.
	Exit bool

	// Err, if non-nil, is returned by Run without sending anything.
	Err error

	mu       sync.Mutex
	sent     int
	runCalls int
}

// Run sends the script.
func (t *Trigger) Run(ctx context.Context, edges chan<- control.Edge) error {
	t.mu.Lock()
	t.runCalls++
	t.mu.Unlock()
	if t.Err != nil {
		return t.Err
	}
	for _, e := range t.Script {
		if t.Interval > 0 {
			select {
			case <-time.After(t.Interval):
			case <-ctx.Done():
				return nil
			}
		}
		if !control.Send(ctx, edges, e) {
			return nil
		}
		t.mu.Lock()
		t.sent++
		t.mu.Unlock()
	}
	if !t.Exit {
		<-ctx.Done()
	}
	return nil
}

// Sent returns how many edges were delivered.
func (t *Trigger) Sent() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sent
}

// RunCallCount returns how many times Run was called.
func (t *Trigger) RunCallCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.runCalls
}

var _ control.Trigger = (*Trigger)(nil)
