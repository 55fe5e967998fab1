package action_test

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"go.opentelemetry.io/otel/metric/noop"

	"github.com/MrWong99/voicekey/internal/action"
	"github.com/MrWong99/voicekey/internal/action/mock"
	"github.com/MrWong99/voicekey/internal/command"
	"github.com/MrWong99/voicekey/internal/observe"
	"github.com/MrWong99/voicekey/internal/resilience"
	"github.com/MrWong99/voicekey/pkg/types"
)

func newDispatcher(t *testing.T, tr action.Transport, opts ...action.Option) *action.Dispatcher {
	t.Helper()
	m, err := observe.NewMetrics(noop.NewMeterProvider())
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	base := []action.Option{action.WithMetrics(m), action.WithSettleDelay(0)}
	d, err := action.New(tr, append(base, opts...)...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return d
}

func cmd(typ command.Type, act command.Action, token string, param int) command.Command {
	return command.Command{Type: typ, Action: act, Token: token, Param: param, Confidence: 1}
}

func TestDispatch_Sequences(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cmd  command.Command
		want []string
	}{
		{"tap space", cmd(command.TypeKeyboard, command.ActionKeyPress, "space", 0),
			[]string{"key 00+2c", "release"}},
		{"ctrl+c", cmd(command.TypeKeyboard, command.ActionKeyPress, "ctrl+c", 0),
			[]string{"key 01+06", "release"}},
		{"repeat enter", cmd(command.TypeKeyboard, command.ActionKeyPress, "enter", 3),
			[]string{"key 00+28", "release", "key 00+28", "release", "key 00+28", "release"}},
		{"hold shift", cmd(command.TypeKeyboard, command.ActionKeyHold, "shift", 0),
			[]string{"key 02+00"}},
		{"release", cmd(command.TypeKeyboard, command.ActionKeyRelease, "all", 0),
			[]string{"release"}},
		{"left click", cmd(command.TypeMouse, command.ActionMouseClick, "left", 0),
			[]string{"button 1", "button 0"}},
		{"right click", cmd(command.TypeMouse, command.ActionMouseClick, "right", 0),
			[]string{"button 2", "button 0"}},
		{"middle click", cmd(command.TypeMouse, command.ActionMouseClick, "middle", 0),
			[]string{"button 4", "button 0"}},
		{"double click", cmd(command.TypeMouse, command.ActionMouseClick, "double_left", 0),
			[]string{"button 1", "button 0", "button 1", "button 0"}},
		{"move up default step", cmd(command.TypeMouse, command.ActionMouseMove, "move_up", 0),
			[]string{"move 0,-10"}},
		{"move left 25", cmd(command.TypeMouse, command.ActionMouseMove, "move_left", 25),
			[]string{"move -25,0"}},
		{"move right 300", cmd(command.TypeMouse, command.ActionMouseMove, "move_right", 300),
			[]string{"move 127,0", "move 127,0", "move 46,0"}},
		{"volume up", cmd(command.TypeVolume, command.ActionVolumeUp, "up", 0),
			[]string{"key 00+80", "release"}},
		{"volume down", cmd(command.TypeVolume, command.ActionVolumeDown, "down", 0),
			[]string{"key 00+81", "release"}},
		{"mute", cmd(command.TypeVolume, command.ActionVolumeMute, "mute", 0),
			[]string{"key 00+7f", "release"}},
		{"play", cmd(command.TypeMedia, command.ActionPlayPause, "play", 0),
			[]string{"consumer cd", "consumer 00"}},
		{"next", cmd(command.TypeMedia, command.ActionNextTrack, "next", 0),
			[]string{"consumer b5", "consumer 00"}},
		{"previous", cmd(command.TypeMedia, command.ActionPrevTrack, "previous", 0),
			[]string{"consumer b6", "consumer 00"}},
		{"lock", cmd(command.TypeSystem, command.ActionSystemLock, "lock", 0),
			[]string{"key 08+0f", "release"}},
		{"sleep", cmd(command.TypeSystem, command.ActionSystemSleep, "sleep", 0),
			[]string{"key 08+1b", "release", "key 00+18", "release", "key 00+16", "release"}},
		{"wake", cmd(command.TypeSystem, command.ActionSystemWake, "wake", 0),
			[]string{"key 02+00", "release"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			tr := mock.NewTransport()
			d := newDispatcher(t, tr)
			if err := d.Dispatch(context.Background(), tt.cmd); err != nil {
				t.Fatalf("Dispatch: %v", err)
			}
			if got := tr.Sequence(); !slices.Equal(got, tt.want) {
				t.Errorf("reports = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDispatch_CategoryCounters(t *testing.T) {
	t.Parallel()

	tr := mock.NewTransport()
	d := newDispatcher(t, tr)
	ctx := context.Background()

	cmds := []command.Command{
		cmd(command.TypeGreeting, command.ActionNone, "hello", 0),
		cmd(command.TypeGoodbye, command.ActionNone, "goodbye", 0),
		cmd(command.TypeKeyboard, command.ActionKeyPress, "tab", 0),
		cmd(command.TypeMouse, command.ActionMouseClick, "left", 0),
		cmd(command.TypeVolume, command.ActionVolumeUp, "up", 0),
		cmd(command.TypeMedia, command.ActionPlayPause, "play", 0),
		cmd(command.TypeSystem, command.ActionSystemLock, "lock", 0),
		cmd(command.TypeUnknown, command.ActionNone, "", 0),
		cmd(command.Type(42), command.ActionNone, "", 0),
	}
	for _, c := range cmds {
		if err := d.Dispatch(ctx, c); err != nil {
			t.Fatalf("Dispatch(%v): %v", c.Type, err)
		}
	}

	want := action.Stats{
		Processed: 9, Keyboard: 1, Mouse: 1, Volume: 1, Media: 1,
		System: 1, Greeting: 1, Goodbye: 1, Unknown: 2,
	}
	if got := d.Stats(); got != want {
		t.Errorf("Stats() = %+v, want %+v", got, want)
	}

	d.ResetStats()
	if got := d.Stats(); got != (action.Stats{}) {
		t.Errorf("Stats() after reset = %+v, want zero", got)
	}
}

func TestDispatch_GreetingSendsNothing(t *testing.T) {
	t.Parallel()

	tr := mock.NewTransport()
	tr.SetConnected(false)
	d := newDispatcher(t, tr)
	if err := d.Dispatch(context.Background(), cmd(command.TypeGreeting, command.ActionNone, "hello", 0)); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if n := len(tr.Sequence()); n != 0 {
		t.Errorf("reports = %d, want 0", n)
	}
}

func TestDispatch_NotConnected(t *testing.T) {
	t.Parallel()

	tr := mock.NewTransport()
	tr.SetConnected(false)
	d := newDispatcher(t, tr)

	err := d.Dispatch(context.Background(), cmd(command.TypeKeyboard, command.ActionKeyPress, "space", 0))
	if !errors.Is(err, types.ErrNotConnected) {
		t.Fatalf("Dispatch error = %v, want ErrNotConnected", err)
	}
	st := d.Stats()
	if st.Processed != 1 || st.Keyboard != 1 || st.Failed != 1 {
		t.Errorf("Processed/Keyboard/Failed = %d/%d/%d, want 1/1/1", st.Processed, st.Keyboard, st.Failed)
	}
	if n := len(tr.Sequence()); n != 0 {
		t.Errorf("reports = %d, want 0", n)
	}
}

func TestDispatch_BreakerOpensOnTransportErrors(t *testing.T) {
	t.Parallel()

	tr := mock.NewTransport()
	tr.SetErr(errors.New("bridge gone"))
	d := newDispatcher(t, tr, action.WithBreaker(resilience.CircuitBreakerConfig{
		MaxFailures:  2,
		ResetTimeout: time.Hour,
	}))
	ctx := context.Background()
	tap := cmd(command.TypeKeyboard, command.ActionKeyPress, "space", 0)

	for i := range 2 {
		if err := d.Dispatch(ctx, tap); err == nil || errors.Is(err, resilience.ErrCircuitOpen) {
			t.Fatalf("dispatch %d error = %v, want transport error", i, err)
		}
	}
	if got := d.BreakerState(); got != resilience.StateOpen {
		t.Fatalf("BreakerState() = %v, want %v", got, resilience.StateOpen)
	}
	tr.SetErr(nil)
	if err := d.Dispatch(ctx, tap); !errors.Is(err, resilience.ErrCircuitOpen) {
		t.Errorf("dispatch while open error = %v, want ErrCircuitOpen", err)
	}
	if got := d.Stats().Failed; got != 3 {
		t.Errorf("Failed = %d, want 3", got)
	}
}

func TestDispatch_InvalidTokenDoesNotTripBreaker(t *testing.T) {
	t.Parallel()

	tr := mock.NewTransport()
	d := newDispatcher(t, tr, action.WithBreaker(resilience.CircuitBreakerConfig{MaxFailures: 1}))
	err := d.Dispatch(context.Background(), cmd(command.TypeKeyboard, command.ActionKeyPress, "banana", 0))
	if !errors.Is(err, types.ErrInvalidArgument) {
		t.Fatalf("Dispatch error = %v, want ErrInvalidArgument", err)
	}
	if got := d.BreakerState(); got != resilience.StateClosed {
		t.Errorf("BreakerState() = %v, want %v", got, resilience.StateClosed)
	}
}

func TestDispatch_SettleDelay(t *testing.T) {
	t.Parallel()

	tr := mock.NewTransport()
	d := newDispatcher(t, tr, action.WithSettleDelay(20*time.Millisecond))

	start := time.Now()
	if err := d.Dispatch(context.Background(), cmd(command.TypeMouse, command.ActionMouseClick, "double_left", 0)); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Errorf("double click took %v, want at least 20ms", elapsed)
	}
}

func TestDispatch_ClickHoldsButtonForSettleDelay(t *testing.T) {
	t.Parallel()

	const settle = 25 * time.Millisecond
	tr := mock.NewTransport()
	d := newDispatcher(t, tr, action.WithSettleDelay(settle))

	if err := d.Dispatch(context.Background(), cmd(command.TypeMouse, command.ActionMouseClick, "right", 0)); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if got, want := tr.Sequence(), []string{"button 2", "button 0"}; !slices.Equal(got, want) {
		t.Fatalf("reports = %v, want %v", got, want)
	}
	calls := tr.Calls()
	held := calls[1].At.Sub(calls[0].At)
	if held < settle {
		t.Errorf("button held for %v, want at least %v", held, settle)
	}
}

func TestDispatch_CancelledClickStillReleasesButtons(t *testing.T) {
	t.Parallel()

	tr := mock.NewTransport()
	d := newDispatcher(t, tr, action.WithSettleDelay(time.Second))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := d.Dispatch(ctx, cmd(command.TypeMouse, command.ActionMouseClick, "left", 0))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Dispatch error = %v, want context.Canceled", err)
	}
	if got, want := tr.Sequence(), []string{"button 1", "button 0"}; !slices.Equal(got, want) {
		t.Errorf("reports = %v, want %v", got, want)
	}
}

func TestDispatch_CancelledStillReleases(t *testing.T) {
	t.Parallel()

	tr := mock.NewTransport()
	d := newDispatcher(t, tr, action.WithSettleDelay(time.Second))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := d.Dispatch(ctx, cmd(command.TypeKeyboard, command.ActionKeyPress, "ctrl+v", 0))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Dispatch error = %v, want context.Canceled", err)
	}
	want := []string{"key 01+19", "release"}
	if got := tr.Sequence(); !slices.Equal(got, want) {
		t.Errorf("reports = %v, want %v", got, want)
	}
	if got := d.BreakerState(); got != resilience.StateClosed {
		t.Errorf("BreakerState() = %v, want %v", got, resilience.StateClosed)
	}
}

func TestNew_InvalidSystemSequence(t *testing.T) {
	t.Parallel()

	_, err := action.New(mock.NewTransport(), action.WithLockSequence("gui+nope"))
	if !errors.Is(err, types.ErrInvalidArgument) {
		t.Errorf("New error = %v, want ErrInvalidArgument", err)
	}
	if _, err := action.New(nil); !errors.Is(err, types.ErrInvalidArgument) {
		t.Errorf("New(nil) error = %v, want ErrInvalidArgument", err)
	}
}

func TestNew_CustomSystemSequence(t *testing.T) {
	t.Parallel()

	tr := mock.NewTransport()
	d := newDispatcher(t, tr, action.WithLockSequence("ctrl+alt+delete"))
	if err := d.Dispatch(context.Background(), cmd(command.TypeSystem, command.ActionSystemLock, "lock", 0)); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	want := []string{"key 05+4c", "release"}
	if got := tr.Sequence(); !slices.Equal(got, want) {
		t.Errorf("reports = %v, want %v", got, want)
	}
}
