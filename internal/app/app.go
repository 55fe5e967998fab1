// Package app wires all voicekey subsystems into a running application.
//
// The App struct owns the full lifecycle: New builds the recognizer, command
// matcher, action dispatcher and worker pipeline from the config and the
// providers created through the registry, Run executes the pipeline (and the
// status server, when configured), and Shutdown releases the providers.
//
// For testing, inject mock providers via [Providers] and test doubles via
// functional options.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/voicekey/internal/action"
	"github.com/MrWong99/voicekey/internal/command"
	"github.com/MrWong99/voicekey/internal/config"
	"github.com/MrWong99/voicekey/internal/control"
	"github.com/MrWong99/voicekey/internal/dsp"
	"github.com/MrWong99/voicekey/internal/observe"
	"github.com/MrWong99/voicekey/internal/pipeline"
	"github.com/MrWong99/voicekey/internal/recognizer"
	"github.com/MrWong99/voicekey/internal/resilience"
	"github.com/MrWong99/voicekey/pkg/audio/capture"
	"github.com/MrWong99/voicekey/pkg/provider/stt"
	"github.com/MrWong99/voicekey/pkg/provider/vad"
)

// Providers holds one interface value per provider slot. Populated by
// [BuildProviders] from the config registry, or by tests with mocks.
type Providers struct {
	Source    capture.Source
	Trigger   control.Trigger
	Detector  vad.Detector
	Decoder   stt.Decoder
	Transport action.Transport
}

// Close releases the providers in reverse acquisition order: transport,
// source, then decoder. The trigger and detector hold no resources.
func (p *Providers) Close() error {
	var errs []error
	if p.Transport != nil {
		errs = append(errs, p.Transport.Close())
	}
	if p.Source != nil {
		errs = append(errs, p.Source.Close())
	}
	if c, ok := p.Decoder.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// App owns all subsystem lifetimes.
type App struct {
	cfg       *config.Config
	providers *Providers

	metrics  *observe.Metrics
	level    *slog.LevelVar
	dumpFS   afero.Fs
	recorder func(recognizer.Result)

	rec     *recognizer.Orchestrator
	matcher *command.Matcher
	disp    *action.Dispatcher
	pipe    *pipeline.Pipeline

	mu         sync.Mutex
	matcherCfg config.CommandsConfig

	// closers are called in order during Shutdown.
	closers  []func() error
	stopOnce sync.Once
}

// Option is a functional option for New.
type Option func(*App)

// WithMetrics records instrument data on m instead of the default metrics.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithLevelVar lets hot reload change the log level through lv.
func WithLevelVar(lv *slog.LevelVar) Option {
	return func(a *App) { a.level = lv }
}

// WithDumpFS sets the filesystem utterance dumps are written to.
func WithDumpFS(fs afero.Fs) Option {
	return func(a *App) { a.dumpFS = fs }
}

// WithResultCallback registers fn to observe every recognition result.
func WithResultCallback(fn func(recognizer.Result)) Option {
	return func(a *App) { a.recorder = fn }
}

// New creates an App by wiring all subsystems together. Every provider slot
// must be set. New takes ownership of the providers: Shutdown closes them,
// and so does New itself when wiring fails.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (_ *App, err error) {
	if providers == nil || providers.Source == nil || providers.Trigger == nil ||
		providers.Detector == nil || providers.Decoder == nil || providers.Transport == nil {
		return nil, errors.New("app: every provider must be set")
	}
	defer func() {
		if err == nil {
			return
		}
		if cerr := providers.Close(); cerr != nil {
			slog.Warn("close providers after failed init", "err", cerr)
		}
	}()
	a := &App{
		cfg:       cfg,
		providers: providers,
	}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	a.closers = append(a.closers, providers.Source.Close, providers.Transport.Close)
	if c, ok := providers.Decoder.(io.Closer); ok {
		a.closers = append(a.closers, c.Close)
	}

	// ── 1. Recognizer ────────────────────────────────────────────────────
	if err := a.initRecognizer(); err != nil {
		return nil, fmt.Errorf("app: init recognizer: %w", err)
	}

	// ── 2. Command matcher ───────────────────────────────────────────────
	a.matcher = NewMatcher(cfg.Commands)
	a.matcherCfg = cfg.Commands

	// ── 3. Action dispatcher ─────────────────────────────────────────────
	if err := a.initDispatcher(); err != nil {
		return nil, fmt.Errorf("app: init dispatcher: %w", err)
	}

	// ── 4. Pipeline ──────────────────────────────────────────────────────
	p := cfg.Pipeline
	pipe, err := pipeline.New(pipeline.Config{
		FrameQueue:          p.FrameQueue,
		CommandQueue:        p.CommandQueue,
		FrameWait:           p.FrameWait(),
		CommandWait:         p.CommandWait(),
		FrameSamples:        cfg.Audio.FrameSamples,
		ConfidenceThreshold: cfg.Recognizer.ConfidenceThreshold,
	}, providers.Source, providers.Trigger, a.rec, a.matcher, a.disp, pipeline.WithMetrics(a.metrics))
	if err != nil {
		return nil, fmt.Errorf("app: init pipeline: %w", err)
	}
	a.pipe = pipe

	slog.InfoContext(ctx, "application initialised",
		"sample_rate", cfg.Audio.SampleRate,
		"language", cfg.Recognizer.Language,
		"decoder", cfg.Decoder.Name,
		"transport", cfg.Actions.Transport,
	)
	return a, nil
}

func (a *App) initRecognizer() error {
	c := a.cfg
	opts := []recognizer.Option{
		recognizer.WithDetector(a.providers.Detector),
		recognizer.WithDecoder(a.providers.Decoder),
		recognizer.WithMetrics(a.metrics),
	}
	if a.dumpFS != nil {
		opts = append(opts, recognizer.WithDumpFS(a.dumpFS))
	}
	if a.recorder != nil {
		opts = append(opts, recognizer.WithCallback(a.recorder))
	}
	rec, err := recognizer.New(RecognizerConfig(c), opts...)
	if err != nil {
		return err
	}
	a.rec = rec
	return nil
}

func (a *App) initDispatcher() error {
	act := a.cfg.Actions
	disp, err := action.New(a.providers.Transport,
		action.WithSettleDelay(act.Settle()),
		action.WithMoveStep(act.MoveStep),
		action.WithLockSequence(act.Lock...),
		action.WithSleepSequence(act.Sleep...),
		action.WithBreaker(resilience.CircuitBreakerConfig{
			Name:         "transport",
			MaxFailures:  act.BreakerFailures,
			ResetTimeout: act.BreakerReset(),
		}),
		action.WithMetrics(a.metrics),
	)
	if err != nil {
		return err
	}
	a.disp = disp
	return nil
}

// RecognizerConfig converts the audio, dsp, vad and recognizer sections to
// an orchestrator config.
func RecognizerConfig(cfg *config.Config) recognizer.Config {
	r := cfg.Recognizer
	return recognizer.Config{
		SampleRate:      cfg.Audio.SampleRate,
		DSP:             DSPConfig(cfg),
		VAD:             VADConfig(cfg),
		Language:        r.Language,
		MaxRecording:    r.MaxRecording(),
		ResultQueueSize: r.ResultQueue,
		PublishTimeout:  r.PublishTimeout(),
		ResultTimeout:   r.ResultTimeout(),
		DumpDir:         r.DumpDir,
	}
}

// DSPConfig converts the dsp section to a conditioner config.
func DSPConfig(cfg *config.Config) dsp.Config {
	d := cfg.DSP
	return dsp.Config{
		SampleRate:      cfg.Audio.SampleRate,
		HighPass:        d.HighPass == nil || *d.HighPass,
		FilterOrder:     d.FilterOrder,
		CutoffHz:        d.CutoffHz,
		AGC:             d.AGC == nil || *d.AGC,
		TargetRMS:       d.TargetRMS,
		AttackSeconds:   d.AttackMS / 1000,
		ReleaseSeconds:  d.ReleaseMS / 1000,
		MaxFrameSamples: cfg.Audio.FrameSamples,
	}
}

// VADConfig converts the vad section to a detector config.
func VADConfig(cfg *config.Config) vad.Config {
	v := cfg.VAD
	return vad.Config{
		SampleRate:        cfg.Audio.SampleRate,
		Threshold:         v.Threshold,
		MinVoiceFrames:    v.MinVoiceFrames,
		SilenceFrames:     v.SilenceFrames,
		CalibrationFrames: v.CalibrationFrames,
	}
}

// NewMatcher builds a command matcher from the commands section.
func NewMatcher(cc config.CommandsConfig) *command.Matcher {
	var opts []command.Option
	if cc.Fuzzy {
		opts = append(opts, command.WithFuzzy(cc.FuzzyThreshold))
	}
	return command.New(opts...)
}

// Run executes the pipeline until ctx is cancelled or the capture source is
// exhausted. When server.listen_addr is set the status server runs alongside
// and is shut down when the pipeline returns.
func (a *App) Run(ctx context.Context) error {
	if a.cfg.Server.ListenAddr == "" {
		return a.pipe.Run(ctx)
	}

	srv := NewServer(a.cfg.Server.ListenAddr, a.Handler())
	g, gctx := errgroup.WithContext(ctx)
	pipeDone := make(chan struct{})
	g.Go(func() error {
		defer close(pipeDone)
		return a.pipe.Run(gctx)
	})
	g.Go(func() error {
		return srv.Serve(gctx, pipeDone)
	})
	return g.Wait()
}

// ApplyConfig reacts to a hot reload. The log level and the commands
// section take effect immediately; other changes are logged as requiring a
// restart.
func (a *App) ApplyConfig(old, new *config.Config) {
	d := config.Diff(old, new)
	if d.Empty() {
		return
	}
	if d.LogLevelChanged && a.level != nil {
		a.level.Set(SlogLevel(d.NewLogLevel))
		slog.Info("log level changed", "level", d.NewLogLevel)
	}
	if d.CommandsChanged {
		m := NewMatcher(d.NewCommands)
		a.mu.Lock()
		a.matcher = m
		a.matcherCfg = d.NewCommands
		a.mu.Unlock()
		a.pipe.SetMatcher(m)
		slog.Info("command matcher rebuilt", "fuzzy", d.NewCommands.Fuzzy, "threshold", d.NewCommands.FuzzyThreshold)
	}
	if len(d.RestartRequired) > 0 {
		slog.Warn("config changes require a restart to take effect", "sections", d.RestartRequired)
	}
}

// SlogLevel maps a config log level to a slog level. Unknown levels map to
// info.
func SlogLevel(l config.LogLevel) slog.Level {
	switch l {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Recognizer returns the recognition orchestrator.
func (a *App) Recognizer() *recognizer.Orchestrator { return a.rec }

// Dispatcher returns the action dispatcher.
func (a *App) Dispatcher() *action.Dispatcher { return a.disp }

// Pipeline returns the worker pipeline.
func (a *App) Pipeline() *pipeline.Pipeline { return a.pipe }

// Matcher returns the current command matcher.
func (a *App) Matcher() *command.Matcher {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.matcher
}

// Shutdown releases every provider in order. It respects the context
// deadline: if ctx expires before all closers finish, remaining closers are
// skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))
		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}
		slog.Info("shutdown complete")
	})
	return shutdownErr
}
