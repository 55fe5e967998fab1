// Package action turns matched voice commands into HID report sequences and
// sends them over a [Transport].
//
// The [Dispatcher] switches on the command type: keyboard taps, holds and
// releases; mouse clicks and moves; volume keys on the keyboard page; media
// keys on the consumer page; and system shortcuts expressed as configurable
// chord sequences. Greetings and goodbyes are logged only. Every multi-report
// sequence inserts a settle delay between press and release so the host
// observes two distinct reports.
package action

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/MrWong99/voicekey/internal/command"
	"github.com/MrWong99/voicekey/internal/observe"
	"github.com/MrWong99/voicekey/internal/resilience"
	"github.com/MrWong99/voicekey/pkg/types"
)

// Defaults for the dispatcher options.
const (
	DefaultSettleDelay = 50 * time.Millisecond
	DefaultMoveStep    = 10

	// MaxRepeat bounds the numeric repeat count of a key press.
	MaxRepeat = 20

	// MaxMove bounds the numeric distance of a mouse move.
	MaxMove = 2000
)

// Default system chord sequences.
var (
	DefaultLockSequence  = []string{"gui+l"}
	DefaultSleepSequence = []string{"gui+x", "u", "s"}
	DefaultWakeSequence  = []string{"shift"}
)

// Stats is a snapshot of the dispatcher statistics.
type Stats struct {
	Processed uint64
	Keyboard  uint64
	Mouse     uint64
	Volume    uint64
	Media     uint64
	System    uint64
	Greeting  uint64
	Goodbye   uint64
	Unknown   uint64
	Failed    uint64
}

// Option is a functional option for [New].
type Option func(*options)

type options struct {
	settle   time.Duration
	moveStep int
	lock     []string
	sleep    []string
	wake     []string
	breaker  resilience.CircuitBreakerConfig
	metrics  *observe.Metrics
}

// WithSettleDelay sets the pause between the reports of a sequence. Zero
// disables it.
func WithSettleDelay(d time.Duration) Option {
	return func(o *options) { o.settle = max(d, 0) }
}

// WithMoveStep sets the mouse move distance used when a command carries no
// numeric parameter.
func WithMoveStep(step int) Option {
	return func(o *options) {
		if step > 0 {
			o.moveStep = step
		}
	}
}

// WithLockSequence sets the chords sent for the lock command.
func WithLockSequence(chords ...string) Option {
	return func(o *options) { o.lock = chords }
}

// WithSleepSequence sets the chords sent for the sleep command.
func WithSleepSequence(chords ...string) Option {
	return func(o *options) { o.sleep = chords }
}

// WithWakeSequence sets the chords sent for the wake command.
func WithWakeSequence(chords ...string) Option {
	return func(o *options) { o.wake = chords }
}

// WithBreaker configures the circuit breaker around transport calls.
func WithBreaker(cfg resilience.CircuitBreakerConfig) Option {
	return func(o *options) { o.breaker = cfg }
}

// WithMetrics records instrument data on m instead of the default metrics.
func WithMetrics(m *observe.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// Dispatcher executes commands on a transport. Dispatch is called from one
// goroutine; Stats and ResetStats are safe for concurrent use.
type Dispatcher struct {
	t        Transport
	settle   time.Duration
	moveStep int
	system   map[command.Action][]Chord
	breaker  *resilience.CircuitBreaker
	metrics  *observe.Metrics

	mu    sync.Mutex
	stats Stats
}

// New returns a Dispatcher over t. It fails when a configured system
// sequence does not parse.
func New(t Transport, opts ...Option) (*Dispatcher, error) {
	if t == nil {
		return nil, fmt.Errorf("action: nil transport: %w", types.ErrInvalidArgument)
	}
	o := options{
		settle:   DefaultSettleDelay,
		moveStep: DefaultMoveStep,
		lock:     DefaultLockSequence,
		sleep:    DefaultSleepSequence,
		wake:     DefaultWakeSequence,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.metrics == nil {
		o.metrics = observe.DefaultMetrics()
	}

	d := &Dispatcher{
		t:        t,
		settle:   o.settle,
		moveStep: o.moveStep,
		metrics:  o.metrics,
		system:   make(map[command.Action][]Chord, 3),
	}
	for action, chords := range map[command.Action][]string{
		command.ActionSystemLock:  o.lock,
		command.ActionSystemSleep: o.sleep,
		command.ActionSystemWake:  o.wake,
	} {
		seq, err := ParseSequence(chords)
		if err != nil {
			return nil, fmt.Errorf("action: %s sequence: %w", action, err)
		}
		d.system[action] = seq
	}

	bc := o.breaker
	if bc.Name == "" {
		bc.Name = "hid-transport"
	}
	if bc.IsFailure == nil {
		bc.IsFailure = isTransportFailure
	}
	if bc.OnStateChange == nil {
		m := d.metrics
		bc.OnStateChange = func(name string, from, to resilience.State) {
			slog.Info("transport breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
			m.RecordBreakerTransition(context.Background(), name, to.String())
		}
	}
	d.breaker = resilience.NewCircuitBreaker(bc)
	return d, nil
}

func isTransportFailure(err error) bool {
	return !errors.Is(err, context.Canceled) &&
		!errors.Is(err, context.DeadlineExceeded) &&
		!errors.Is(err, types.ErrInvalidArgument)
}

// Dispatch executes cmd. Unknown commands are counted and ignored.
// Transport failures are counted in Failed and returned; they never leave the
// host with keys held down if the release report can still be sent.
func (d *Dispatcher) Dispatch(ctx context.Context, cmd command.Command) error {
	d.count(func(s *Stats) { s.Processed++ })

	var run func(context.Context, command.Command) error
	switch cmd.Type {
	case command.TypeGreeting:
		d.count(func(s *Stats) { s.Greeting++ })
		slog.Info("greeting", "text", cmd.Text)
		return nil
	case command.TypeGoodbye:
		d.count(func(s *Stats) { s.Goodbye++ })
		slog.Info("goodbye", "text", cmd.Text)
		return nil
	case command.TypeKeyboard:
		d.count(func(s *Stats) { s.Keyboard++ })
		run = d.keyboard
	case command.TypeMouse:
		d.count(func(s *Stats) { s.Mouse++ })
		run = d.mouse
	case command.TypeVolume:
		d.count(func(s *Stats) { s.Volume++ })
		run = d.volume
	case command.TypeMedia:
		d.count(func(s *Stats) { s.Media++ })
		run = d.media
	case command.TypeSystem:
		d.count(func(s *Stats) { s.System++ })
		run = d.systemSeq
	default:
		d.count(func(s *Stats) { s.Unknown++ })
		slog.Warn("ignoring command of unknown type", "type", cmd.Type.String(), "text", cmd.Text)
		return nil
	}

	category := cmd.Type.String()
	ctx, span := observe.StartDispatch(ctx, cmd.Token, category)
	defer span.End()

	start := time.Now()
	err := d.execute(ctx, cmd, run)
	d.metrics.DispatchDuration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(observe.Attr("category", category)))

	if err != nil {
		d.count(func(s *Stats) { s.Failed++ })
		observe.Fail(span, err, "dispatch failed")
		d.metrics.RecordDispatch(ctx, category, "failed")
		observe.Logger(ctx).Warn("dispatch failed", "token", cmd.Token, "category", category, "error", err)
		return err
	}
	d.metrics.RecordDispatch(ctx, category, "ok")
	observe.Logger(ctx).Debug("command dispatched", "token", cmd.Token, "category", category, "param", cmd.Param)
	return nil
}

func (d *Dispatcher) execute(ctx context.Context, cmd command.Command, run func(context.Context, command.Command) error) error {
	if !d.t.Connected() {
		return fmt.Errorf("action: %s %q: %w", cmd.Type, cmd.Token, types.ErrNotConnected)
	}
	err := d.breaker.Execute(func() error { return run(ctx, cmd) })
	if err != nil {
		return fmt.Errorf("action: %s %q: %w", cmd.Type, cmd.Token, err)
	}
	return nil
}

func (d *Dispatcher) keyboard(ctx context.Context, cmd command.Command) error {
	switch cmd.Action {
	case command.ActionKeyRelease:
		return d.t.ReleaseAll(ctx)
	case command.ActionKeyHold:
		c, err := ParseChord(cmd.Token)
		if err != nil {
			return err
		}
		return d.t.PressKey(ctx, c.Mods, c.Key)
	case command.ActionKeyPress:
		c, err := ParseChord(cmd.Token)
		if err != nil {
			return err
		}
		repeat := min(max(cmd.Param, 1), MaxRepeat)
		for i := range repeat {
			if i > 0 {
				if err := d.wait(ctx); err != nil {
					return err
				}
			}
			if err := d.tap(ctx, c); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("keyboard action %s: %w", cmd.Action, types.ErrInvalidArgument)
	}
}

// tap presses c, waits the settle delay and releases everything. The release
// is attempted even when the wait is cancelled.
func (d *Dispatcher) tap(ctx context.Context, c Chord) error {
	if err := d.t.PressKey(ctx, c.Mods, c.Key); err != nil {
		return err
	}
	werr := d.wait(ctx)
	rctx := ctx
	if werr != nil {
		rctx = context.WithoutCancel(ctx)
	}
	if err := d.t.ReleaseAll(rctx); err != nil {
		return err
	}
	return werr
}

// click holds b for the settle delay. Like tap, the release is attempted even
// when the wait is cancelled.
func (d *Dispatcher) click(ctx context.Context, b Button) error {
	if err := d.t.PressButtons(ctx, b); err != nil {
		return err
	}
	werr := d.wait(ctx)
	rctx := ctx
	if werr != nil {
		rctx = context.WithoutCancel(ctx)
	}
	if err := d.t.ReleaseButtons(rctx); err != nil {
		return err
	}
	return werr
}

func (d *Dispatcher) mouse(ctx context.Context, cmd command.Command) error {
	switch cmd.Action {
	case command.ActionMouseClick:
		name, double := strings.CutPrefix(cmd.Token, "double_")
		var b Button
		switch name {
		case "left":
			b = ButtonLeft
		case "right":
			b = ButtonRight
		case "middle":
			b = ButtonMiddle
		default:
			return fmt.Errorf("mouse button %q: %w", cmd.Token, types.ErrInvalidArgument)
		}
		if err := d.click(ctx, b); err != nil {
			return err
		}
		if !double {
			return nil
		}
		if err := d.wait(ctx); err != nil {
			return err
		}
		return d.click(ctx, b)
	case command.ActionMouseMove:
		dist := d.moveStep
		if cmd.Param > 0 {
			dist = min(cmd.Param, MaxMove)
		}
		var dx, dy int
		switch cmd.Token {
		case "move_up":
			dy = -dist
		case "move_down":
			dy = dist
		case "move_left":
			dx = -dist
		case "move_right":
			dx = dist
		default:
			return fmt.Errorf("mouse direction %q: %w", cmd.Token, types.ErrInvalidArgument)
		}
		return d.move(ctx, dx, dy)
	default:
		return fmt.Errorf("mouse action %s: %w", cmd.Action, types.ErrInvalidArgument)
	}
}

// move splits a movement into reports that fit the signed 8-bit range.
func (d *Dispatcher) move(ctx context.Context, dx, dy int) error {
	for dx != 0 || dy != 0 {
		sx := clampStep(dx)
		sy := clampStep(dy)
		if err := d.t.Move(ctx, int8(sx), int8(sy)); err != nil {
			return err
		}
		dx -= sx
		dy -= sy
	}
	return nil
}

func clampStep(v int) int {
	return min(max(v, -127), 127)
}

func (d *Dispatcher) volume(ctx context.Context, cmd command.Command) error {
	var k Key
	switch cmd.Action {
	case command.ActionVolumeUp:
		k = KeyVolumeUp
	case command.ActionVolumeDown:
		k = KeyVolumeDn
	case command.ActionVolumeMute:
		k = KeyMute
	default:
		return fmt.Errorf("volume action %s: %w", cmd.Action, types.ErrInvalidArgument)
	}
	return d.tap(ctx, Chord{Key: k})
}

func (d *Dispatcher) media(ctx context.Context, cmd command.Command) error {
	var u Usage
	switch cmd.Action {
	case command.ActionPlayPause:
		u = UsagePlayPause
	case command.ActionNextTrack:
		u = UsageNextTrack
	case command.ActionPrevTrack:
		u = UsagePrevTrack
	default:
		return fmt.Errorf("media action %s: %w", cmd.Action, types.ErrInvalidArgument)
	}
	if err := d.t.PressConsumer(ctx, u); err != nil {
		return err
	}
	werr := d.wait(ctx)
	if err := d.t.PressConsumer(context.WithoutCancel(ctx), UsageNone); err != nil {
		return err
	}
	return werr
}

func (d *Dispatcher) systemSeq(ctx context.Context, cmd command.Command) error {
	seq, ok := d.system[cmd.Action]
	if !ok {
		return fmt.Errorf("system action %s: %w", cmd.Action, types.ErrInvalidArgument)
	}
	for i, c := range seq {
		if i > 0 {
			if err := d.wait(ctx); err != nil {
				return err
			}
		}
		if err := d.tap(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

// wait sleeps for the settle delay or until ctx is done.
func (d *Dispatcher) wait(ctx context.Context) error {
	if d.settle <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d.settle)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) count(fn func(*Stats)) {
	d.mu.Lock()
	fn(&d.stats)
	d.mu.Unlock()
}

// Stats returns a snapshot of the dispatcher statistics.
func (d *Dispatcher) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}

// ResetStats zeroes the statistics.
func (d *Dispatcher) ResetStats() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stats = Stats{}
}

// BreakerState reports the transport circuit breaker state.
func (d *Dispatcher) BreakerState() resilience.State {
	return d.breaker.State()
}

// Connected reports whether the transport is connected.
func (d *Dispatcher) Connected() bool {
	return d.t.Connected()
}
