// Package mock provides a test double for the vad.Detector interface.
//
// Use Script to queue a fixed sequence of events (one per Process call);
// once exhausted, Detector returns EventResult. Frames passed to Process are
// copied into ProcessCalls for later inspection.
//
// Example:
//
//	det := &mock.Detector{
//	    Script: []vad.Event{{Type: vad.EventSpeechStarted, Voice: true}},
//	}
package mock

import (
	"sync"

	"github.com/MrWong99/voicekey/pkg/provider/vad"
)

// ProcessCall records a single invocation of Detector.Process.
type ProcessCall struct {
	// Frame is a copy of the samples passed to Process.
	Frame []int16
}

// Detector is a mock implementation of vad.Detector.
type Detector struct {
	mu sync.Mutex

	// Script holds events returned by successive Process calls.
	Script []vad.Event

	// EventResult is returned once Script is exhausted.
	EventResult vad.Event

	// ProcessErr, if non-nil, is returned by every Process call.
	ProcessErr error

	// StatsResult is returned by Stats.
	StatsResult vad.Stats

	// --- Call records ---

	// ProcessCalls records every call to Process in order.
	ProcessCalls []ProcessCall

	// ResetCallCount is the number of times Reset was called.
	ResetCallCount int

	// ResetStatsCallCount is the number of times ResetStats was called.
	ResetStatsCallCount int
}

// Process records the call and returns the next scripted event.
func (d *Detector) Process(frame []int16) (vad.Event, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	cp := make([]int16, len(frame))
	copy(cp, frame)
	d.ProcessCalls = append(d.ProcessCalls, ProcessCall{Frame: cp})
	if d.ProcessErr != nil {
		return vad.Event{}, d.ProcessErr
	}
	if len(d.Script) > 0 {
		ev := d.Script[0]
		d.Script = d.Script[1:]
		return ev, nil
	}
	return d.EventResult, nil
}

// Reset records the call.
func (d *Detector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ResetCallCount++
}

// Stats returns StatsResult.
func (d *Detector) Stats() vad.Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.StatsResult
}

// ResetStats records the call.
func (d *Detector) ResetStats() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ResetStatsCallCount++
}

// Calls returns the number of recorded Process calls. Thread-safe.
func (d *Detector) Calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.ProcessCalls)
}

// Ensure Detector implements vad.Detector at compile time.
var _ vad.Detector = (*Detector)(nil)
