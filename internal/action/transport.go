package action

import "context"

// Transport emits HID reports to the host. Implementations must be safe for
// use by one dispatching goroutine plus concurrent Connected calls.
type Transport interface {
	// Connected reports whether the host side is reachable.
	Connected() bool

	// PressKey sends a keyboard report with mods held and key down. key may
	// be KeyNone to press modifiers only.
	PressKey(ctx context.Context, mods Modifier, key Key) error

	// ReleaseAll sends an empty keyboard report.
	ReleaseAll(ctx context.Context) error

	// PressButtons sends a mouse report with the given buttons held.
	PressButtons(ctx context.Context, b Button) error

	// ReleaseButtons sends a mouse report with no buttons held.
	ReleaseButtons(ctx context.Context) error

	// Move sends one relative mouse movement.
	Move(ctx context.Context, dx, dy int8) error

	// PressConsumer sends a consumer control report. UsageNone releases.
	PressConsumer(ctx context.Context, u Usage) error

	// Close releases the transport.
	Close() error
}
