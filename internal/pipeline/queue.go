package pipeline

import (
	"context"
	"time"
)

// offer sends v on ch, waiting at most wait for room. It reports false when
// the item was dropped because the queue stayed full or ctx ended.
func offer[T any](ctx context.Context, ch chan<- T, v T, wait time.Duration) bool {
	select {
	case ch <- v:
		return true
	default:
	}
	if wait <= 0 {
		return false
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case ch <- v:
		return true
	case <-timer.C:
		return false
	case <-ctx.Done():
		return false
	}
}

// sleep pauses for d or until ctx ends. It reports false if ctx ended.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
