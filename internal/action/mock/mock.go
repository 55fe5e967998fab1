// Package mock provides a test double for the action.Transport interface.
//
// Every call is appended to Reports in order, so tests can assert the exact
// HID sequence a command produced.
//
// Example:
//
//	tr := mock.NewTransport()
//	d, _ := action.New(tr, action.WithSettleDelay(0))
//	_ = d.Dispatch(ctx, cmd)
//	// tr.Reports now holds the press/release sequence.
package mock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/MrWong99/voicekey/internal/action"
)

// Report records one transport call.
type Report struct {
	// Kind is one of "key", "release", "button", "move", "consumer".
	Kind   string
	Mods   action.Modifier
	Key    action.Key
	Button action.Button
	DX, DY int8
	Usage  action.Usage

	// At is when the call was recorded.
	At time.Time
}

// String renders the report compactly, e.g. "key 01+06", "button 0" or
// "move 0,-10".
func (r Report) String() string {
	switch r.Kind {
	case "key":
		return fmt.Sprintf("key %02x+%02x", uint8(r.Mods), uint8(r.Key))
	case "button":
		return fmt.Sprintf("button %d", r.Button)
	case "move":
		return fmt.Sprintf("move %d,%d", r.DX, r.DY)
	case "consumer":
		return fmt.Sprintf("consumer %02x", uint16(r.Usage))
	default:
		return r.Kind
	}
}

// Transport is a mock implementation of action.Transport.
type Transport struct {
	mu sync.Mutex

	// Disconnected makes Connected report false.
	Disconnected bool

	// Err, if non-nil, is returned by every report call.
	Err error

	// Reports records every successful report call in order.
	Reports []Report

	// CloseCallCount is the number of times Close was called.
	CloseCallCount int
}

// NewTransport returns a connected mock transport.
func NewTransport() *Transport { return &Transport{} }

func (t *Transport) record(r Report) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.Err != nil {
		return t.Err
	}
	r.At = time.Now()
	t.Reports = append(t.Reports, r)
	return nil
}

// Connected reports !Disconnected.
func (t *Transport) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.Disconnected
}

// SetConnected changes the connection state. Thread-safe.
func (t *Transport) SetConnected(ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Disconnected = !ok
}

// SetErr changes the error returned by report calls. Thread-safe.
func (t *Transport) SetErr(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Err = err
}

// PressKey records a key report.
func (t *Transport) PressKey(_ context.Context, mods action.Modifier, key action.Key) error {
	return t.record(Report{Kind: "key", Mods: mods, Key: key})
}

// ReleaseAll records a release report.
func (t *Transport) ReleaseAll(context.Context) error {
	return t.record(Report{Kind: "release"})
}

// PressButtons records a button report.
func (t *Transport) PressButtons(_ context.Context, b action.Button) error {
	return t.record(Report{Kind: "button", Button: b})
}

// ReleaseButtons records a button report with no buttons held.
func (t *Transport) ReleaseButtons(context.Context) error {
	return t.record(Report{Kind: "button"})
}

// Move records a move report.
func (t *Transport) Move(_ context.Context, dx, dy int8) error {
	return t.record(Report{Kind: "move", DX: dx, DY: dy})
}

// PressConsumer records a consumer report.
func (t *Transport) PressConsumer(_ context.Context, u action.Usage) error {
	return t.record(Report{Kind: "consumer", Usage: u})
}

// Close records the call.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.CloseCallCount++
	return nil
}

// Sequence returns the recorded reports rendered with Report.String.
// Thread-safe.
func (t *Transport) Sequence() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, len(t.Reports))
	for i, r := range t.Reports {
		out[i] = r.String()
	}
	return out
}

// Calls returns a copy of the recorded reports. Thread-safe.
func (t *Transport) Calls() []Report {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Report(nil), t.Reports...)
}

// Reset clears all recorded reports. Thread-safe.
func (t *Transport) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Reports = nil
}

// Ensure Transport implements action.Transport at compile time.
var _ action.Transport = (*Transport)(nil)
