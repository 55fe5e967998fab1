// Package pipeline wires capture, recognition, matching and dispatch into
// independently scheduled workers.
//
// Workers communicate only through bounded channels:
//
//	trigger → edges → control ──(Gate)──▶ capture → frames(10) → recognition
//	                                          recognizer results → command → commands(5) → dispatch
//
// A producer facing a full channel waits briefly and then drops the item,
// counting the drop. The capture read is the only unbounded wait; every
// other worker observes cancellation between items. When the source reaches
// io.EOF the remaining items drain through the pipeline and [Pipeline.Run]
// returns.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/voicekey/internal/action"
	"github.com/MrWong99/voicekey/internal/command"
	"github.com/MrWong99/voicekey/internal/control"
	"github.com/MrWong99/voicekey/internal/observe"
	"github.com/MrWong99/voicekey/internal/recognizer"
	"github.com/MrWong99/voicekey/pkg/audio"
	"github.com/MrWong99/voicekey/pkg/audio/capture"
	"github.com/MrWong99/voicekey/pkg/types"
)

// Defaults for [Config].
const (
	DefaultFrameQueue       = 10
	DefaultCommandQueue     = 5
	DefaultFrameWait        = 10 * time.Millisecond
	DefaultCommandWait      = 50 * time.Millisecond
	DefaultFrameSamples     = 1024
	DefaultIdlePoll         = 10 * time.Millisecond
	DefaultLevelLogInterval = 100
)

// Config tunes the worker graph.
type Config struct {
	// FrameQueue is the capacity of the capture → recognition channel.
	FrameQueue int

	// CommandQueue is the capacity of the command → dispatch channel.
	CommandQueue int

	// FrameWait bounds how long the capture worker waits for frame queue room.
	FrameWait time.Duration

	// CommandWait bounds how long the command worker waits for command queue
	// room.
	CommandWait time.Duration

	// FrameSamples is the capture read size.
	FrameSamples int

	// IdlePoll is the gate polling interval while capture is disabled.
	IdlePoll time.Duration

	// LevelLogInterval logs the audio level every N buffers. Zero uses the
	// default; negative disables it.
	LevelLogInterval int

	// ConfidenceThreshold drops results below this confidence before
	// matching. Zero disables the gate.
	ConfidenceThreshold float64
}

func (c Config) withDefaults() Config {
	if c.FrameQueue <= 0 {
		c.FrameQueue = DefaultFrameQueue
	}
	if c.CommandQueue <= 0 {
		c.CommandQueue = DefaultCommandQueue
	}
	if c.FrameWait <= 0 {
		c.FrameWait = DefaultFrameWait
	}
	if c.CommandWait <= 0 {
		c.CommandWait = DefaultCommandWait
	}
	if c.FrameSamples <= 0 {
		c.FrameSamples = DefaultFrameSamples
	}
	if c.IdlePoll <= 0 {
		c.IdlePoll = DefaultIdlePoll
	}
	if c.LevelLogInterval == 0 {
		c.LevelLogInterval = DefaultLevelLogInterval
	}
	return c
}

// Recognizer is the part of [recognizer.Orchestrator] the pipeline drives.
type Recognizer interface {
	Start() error
	Stop() error
	ProcessAudio(ctx context.Context, frame audio.Frame) error
	Results() <-chan recognizer.Result
	State() recognizer.State
}

// Matcher maps recognized text to a command.
type Matcher interface {
	Match(text string, confidence float64) (command.Command, bool)
}

// Dispatcher executes commands.
type Dispatcher interface {
	Dispatch(ctx context.Context, cmd command.Command) error
}

var (
	_ Recognizer = (*recognizer.Orchestrator)(nil)
	_ Matcher    = (*command.Matcher)(nil)
	_ Dispatcher = (*action.Dispatcher)(nil)
)

// Option is a functional option for [New].
type Option func(*Pipeline)

// WithMetrics sets the metrics instruments. Defaults to
// observe.DefaultMetrics.
func WithMetrics(m *observe.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// Stats is a snapshot of pipeline counters.
type Stats struct {
	// SessionID identifies the current or last recording.
	SessionID string
	Recording bool
	Sessions  uint64

	Buffers         uint64
	ReadErrors      uint64
	FramesQueued    uint64
	FramesDropped   uint64
	EndMarkers      uint64
	ProcessErrors   uint64
	Recoveries      uint64
	Results         uint64
	LowConfidence   uint64
	Unknown         uint64
	CommandsQueued  uint64
	CommandsDropped uint64
	Dispatched      uint64
	DispatchErrors  uint64

	// Level is the RMS of the most recent buffer.
	Level float64
}

// Pipeline owns the worker graph. Build with [New], run once with
// [Pipeline.Run].
type Pipeline struct {
	cfg     Config
	source  capture.Source
	trigger control.Trigger
	rec     Recognizer
	disp    Dispatcher
	metrics *observe.Metrics

	matcher atomic.Pointer[matcherRef]
	gate    control.Gate
	running atomic.Bool

	mu    sync.Mutex
	stats Stats
}

type matcherRef struct{ m Matcher }

// New validates the components and returns a Pipeline.
func New(cfg Config, src capture.Source, trig control.Trigger, rec Recognizer, m Matcher, d Dispatcher, opts ...Option) (*Pipeline, error) {
	var errs []error
	if src == nil {
		errs = append(errs, errors.New("nil capture source"))
	}
	if trig == nil {
		errs = append(errs, errors.New("nil trigger"))
	}
	if rec == nil {
		errs = append(errs, errors.New("nil recognizer"))
	}
	if m == nil {
		errs = append(errs, errors.New("nil matcher"))
	}
	if d == nil {
		errs = append(errs, errors.New("nil dispatcher"))
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("pipeline: %w: %w", types.ErrInvalidArgument, errors.Join(errs...))
	}

	p := &Pipeline{
		cfg:     cfg.withDefaults(),
		source:  src,
		trigger: trig,
		rec:     rec,
		disp:    d,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.metrics == nil {
		p.metrics = observe.DefaultMetrics()
	}
	p.matcher.Store(&matcherRef{m: m})
	return p, nil
}

// SetMatcher replaces the matcher used for subsequent results. Safe to call
// while the pipeline runs.
func (p *Pipeline) SetMatcher(m Matcher) {
	if m != nil {
		p.matcher.Store(&matcherRef{m: m})
	}
}

// Run starts the recognizer and all workers and blocks until ctx is
// cancelled, the source is exhausted and drained, or a worker fails.
func (p *Pipeline) Run(ctx context.Context) error {
	if !p.running.CompareAndSwap(false, true) {
		return fmt.Errorf("pipeline: already running: %w", types.ErrInvalidState)
	}
	defer p.running.Store(false)

	if err := p.rec.Start(); err != nil {
		return fmt.Errorf("pipeline: start recognizer: %w", err)
	}
	defer func() {
		if err := p.rec.Stop(); err != nil && !errors.Is(err, types.ErrInvalidState) {
			slog.Warn("failed to stop recognizer", "error", err)
		}
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	edges := make(chan control.Edge, 4)
	frames := make(chan audio.Frame, p.cfg.FrameQueue)
	commands := make(chan command.Command, p.cfg.CommandQueue)
	recDone := make(chan struct{})

	g.Go(func() error {
		if err := p.trigger.Run(gctx, edges); err != nil {
			return fmt.Errorf("pipeline: trigger: %w", err)
		}
		return nil
	})
	g.Go(func() error { return p.controlWorker(gctx, edges) })
	g.Go(func() error { return p.captureWorker(gctx, frames) })
	g.Go(func() error { return p.recognitionWorker(gctx, frames, recDone) })
	g.Go(func() error { return p.commandWorker(gctx, recDone, commands) })
	g.Go(func() error {
		err := p.dispatchWorker(gctx, commands)
		// Dispatch is the last stage; once it drains, nothing is left to do.
		cancel()
		return err
	})

	slog.Info("pipeline running",
		"sample_rate", p.source.SampleRate(),
		"frame_samples", p.cfg.FrameSamples)
	err := g.Wait()
	slog.Info("pipeline stopped", "error", err)
	return err
}

// Running reports whether Run is active.
func (p *Pipeline) Running() bool { return p.running.Load() }

// Recording reports whether the capture gate is open.
func (p *Pipeline) Recording() bool { return p.gate.Enabled() }

// Stats returns a snapshot of the pipeline counters.
func (p *Pipeline) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.stats
	s.Recording = p.gate.Enabled()
	return s
}

// ResetStats zeroes the counters, keeping the current session ID.
func (p *Pipeline) ResetStats() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stats = Stats{SessionID: p.stats.SessionID}
}

func (p *Pipeline) count(fn func(*Stats)) {
	p.mu.Lock()
	fn(&p.stats)
	p.mu.Unlock()
}
