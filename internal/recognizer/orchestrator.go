// Package recognizer owns the recognition lifecycle: it runs every captured
// frame through the signal conditioner and the voice activity detector,
// collects the audio of each utterance, hands finished utterances to a
// speech decoder, and publishes the resulting [Result] values.
//
// Frames are fed by a single goroutine through [Orchestrator.ProcessAudio].
// Results are delivered primarily on the bounded [Orchestrator.Results]
// channel; an optional callback is invoked synchronously before publishing.
// State, Stats and Stop may be called from other goroutines.
package recognizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/MrWong99/voicekey/internal/dsp"
	"github.com/MrWong99/voicekey/internal/observe"
	"github.com/MrWong99/voicekey/pkg/audio"
	"github.com/MrWong99/voicekey/pkg/provider/stt"
	"github.com/MrWong99/voicekey/pkg/provider/stt/placeholder"
	"github.com/MrWong99/voicekey/pkg/provider/vad"
	"github.com/MrWong99/voicekey/pkg/provider/vad/energy"
	"github.com/MrWong99/voicekey/pkg/types"
)

// Defaults for [Config].
const (
	DefaultLanguage               = "ru"
	DefaultMaxRecording           = 5 * time.Second
	DefaultResultQueueSize        = 5
	DefaultPublishTimeout         = 100 * time.Millisecond
	DefaultResultTimeout          = 100 * time.Millisecond
	DefaultMaxConsecutiveFailures = 3
)

// Config configures an [Orchestrator]. Zero fields take the defaults above.
type Config struct {
	// SampleRate of incoming frames in Hz. Defaults to 16 kHz.
	SampleRate int

	// DSP configures the conditioner. SampleRate is filled in from above.
	DSP dsp.Config

	// VAD configures the default energy detector. Ignored with WithDetector.
	VAD vad.Config

	// Language is reported on results and passed to the default decoder.
	Language string

	// MaxRecording finalises utterances that run longer than this.
	MaxRecording time.Duration

	// ResultQueueSize is the capacity of the result channel.
	ResultQueueSize int

	// PublishTimeout bounds the wait for room on a full result channel.
	PublishTimeout time.Duration

	// ResultTimeout bounds GetResult.
	ResultTimeout time.Duration

	// MaxConsecutiveFailures is the number of consecutive resource failures
	// that move the orchestrator to StateError.
	MaxConsecutiveFailures int

	// DumpDir, when set, receives a WAV file per utterance named by its ID.
	DumpDir string
}

func (c Config) withDefaults() Config {
	if c.SampleRate <= 0 {
		c.SampleRate = audio.DefaultSampleRate
	}
	if c.Language == "" {
		c.Language = DefaultLanguage
	}
	if c.MaxRecording <= 0 {
		c.MaxRecording = DefaultMaxRecording
	}
	if c.ResultQueueSize <= 0 {
		c.ResultQueueSize = DefaultResultQueueSize
	}
	if c.PublishTimeout <= 0 {
		c.PublishTimeout = DefaultPublishTimeout
	}
	if c.ResultTimeout <= 0 {
		c.ResultTimeout = DefaultResultTimeout
	}
	if c.MaxConsecutiveFailures <= 0 {
		c.MaxConsecutiveFailures = DefaultMaxConsecutiveFailures
	}
	c.DSP.SampleRate = c.SampleRate
	c.VAD.SampleRate = c.SampleRate
	return c
}

// Option is a functional option for [New].
type Option func(*Orchestrator)

// WithDecoder sets the speech decoder. Defaults to the placeholder decoder.
func WithDecoder(d stt.Decoder) Option {
	return func(o *Orchestrator) { o.decoder = d }
}

// WithCallback registers fn to be called synchronously with every result
// before it is published.
func WithCallback(fn func(Result)) Option {
	return func(o *Orchestrator) { o.callback = fn }
}

// WithDetector replaces the default energy detector.
func WithDetector(d vad.Detector) Option {
	return func(o *Orchestrator) { o.det = d }
}

// WithMetrics records instrument data on m instead of the default metrics.
func WithMetrics(m *observe.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithDumpFS sets the filesystem utterance dumps are written to. Defaults to
// the OS filesystem.
func WithDumpFS(fs afero.Fs) Option {
	return func(o *Orchestrator) { o.dumpFS = fs }
}

// utterance is a finished recording waiting to be decoded.
type utterance struct {
	id      string
	gen     uint64
	samples []int16
	start   time.Duration
}

// Orchestrator runs the recognition state machine.
type Orchestrator struct {
	cfg        Config
	maxSamples int

	cond     *dsp.Conditioner
	det      vad.Detector
	decoder  stt.Decoder
	callback func(Result)
	metrics  *observe.Metrics
	dumpFS   afero.Fs
	results  chan Result

	// pubMu orders a publish against the drain in Stop, so a result is
	// either discarded by Stop or never sent.
	pubMu sync.Mutex

	mu       sync.Mutex
	state    State
	gen      uint64
	failures int
	preroll  *ring
	buf      []int16
	bufStart time.Duration
	stats    Stats
}

// New builds an Orchestrator in StateIdle.
func New(cfg Config, opts ...Option) (*Orchestrator, error) {
	cfg = cfg.withDefaults()
	o := &Orchestrator{
		cfg:        cfg,
		maxSamples: int(cfg.MaxRecording * time.Duration(cfg.SampleRate) / time.Second),
	}
	for _, opt := range opts {
		opt(o)
	}

	cond, err := dsp.New(cfg.DSP)
	if err != nil {
		return nil, fmt.Errorf("recognizer: conditioner: %w", err)
	}
	o.cond = cond

	if o.det == nil {
		det, err := energy.New(cfg.VAD)
		if err != nil {
			return nil, fmt.Errorf("recognizer: detector: %w", err)
		}
		o.det = det
	}
	if o.decoder == nil {
		o.decoder = placeholder.New(cfg.Language)
	}
	if o.metrics == nil {
		o.metrics = observe.DefaultMetrics()
	}
	if cfg.DumpDir != "" {
		if o.dumpFS == nil {
			o.dumpFS = afero.NewOsFs()
		}
		if err := o.dumpFS.MkdirAll(cfg.DumpDir, 0o755); err != nil {
			return nil, fmt.Errorf("recognizer: create dump dir %q: %w", cfg.DumpDir, err)
		}
	}

	o.preroll = newRing(max(cfg.VAD.WithDefaults().MinVoiceFrames, 1))
	o.results = make(chan Result, cfg.ResultQueueSize)
	return o, nil
}

// Start moves the orchestrator from Idle to Listening. The detector's noise
// floor survives Start/Stop cycles; its hysteresis does not.
func (o *Orchestrator) Start() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != StateIdle {
		return fmt.Errorf("recognizer: start in state %s: %w", o.state, types.ErrInvalidState)
	}
	o.gen++
	o.state = StateListening
	o.failures = 0
	o.buf = o.buf[:0]
	o.preroll.reset()
	o.cond.Reset()
	o.det.Reset()
	slog.Debug("recognizer started")
	return nil
}

// Stop moves any non-idle state back to Idle and discards queued results. A
// decode in flight finishes but its result is dropped. Stop waits for a
// publish already in progress, at most PublishTimeout.
func (o *Orchestrator) Stop() error {
	o.mu.Lock()
	if o.state == StateIdle {
		o.mu.Unlock()
		return fmt.Errorf("recognizer: stop: %w", types.ErrInvalidState)
	}
	from := o.state
	o.gen++
	o.state = StateIdle
	o.buf = o.buf[:0]
	o.preroll.reset()
	o.mu.Unlock()

	o.pubMu.Lock()
	var discarded uint64
	for {
		select {
		case <-o.results:
			discarded++
			continue
		default:
		}
		break
	}
	if discarded > 0 {
		o.mu.Lock()
		o.stats.ResultsDiscarded += discarded
		o.mu.Unlock()
	}
	o.pubMu.Unlock()
	slog.Debug("recognizer stopped", "from", from.String(), "discarded", discarded)
	return nil
}

// ProcessAudio conditions frame, runs it through the detector and advances
// the state machine. A frame marked EndOfUtterance is handled by
// EndUtterance. Rejected frames leave every component untouched.
func (o *Orchestrator) ProcessAudio(ctx context.Context, frame audio.Frame) error {
	if frame.EndOfUtterance {
		return o.EndUtterance(ctx)
	}
	if len(frame.Samples) == 0 {
		return fmt.Errorf("recognizer: empty frame: %w", types.ErrInvalidArgument)
	}
	if frame.SampleRate != 0 && frame.SampleRate != o.cfg.SampleRate {
		return fmt.Errorf("recognizer: frame rate %d Hz, want %d Hz: %w", frame.SampleRate, o.cfg.SampleRate, types.ErrInvalidArgument)
	}

	o.mu.Lock()
	if o.state == StateIdle || o.state == StateError {
		st := o.state
		o.mu.Unlock()
		return fmt.Errorf("recognizer: process audio in state %s: %w", st, types.ErrInvalidState)
	}

	out, err := o.cond.Process(frame.Samples)
	if err != nil {
		o.recordFailure(err)
		o.mu.Unlock()
		return fmt.Errorf("recognizer: condition frame: %w", err)
	}
	o.failures = 0

	ev, err := o.det.Process(out)
	if err != nil {
		o.mu.Unlock()
		return fmt.Errorf("recognizer: detect: %w", err)
	}
	o.stats.FramesProcessed++

	var done *utterance
	switch o.state {
	case StateListening:
		o.preroll.push(out)
		if ev.Type == vad.EventSpeechStarted {
			o.state = StateProcessing
			o.stats.SpeechStarts++
			o.buf = o.preroll.appendTo(o.buf[:0])
			o.bufStart = frame.Timestamp - o.preroll.duration(o.cfg.SampleRate)
			o.preroll.reset()
			slog.Debug("speech started", "energy", ev.Energy)
		}
	case StateProcessing:
		o.buf = append(o.buf, out...)
		switch {
		case ev.Type == vad.EventSpeechEnded:
			done = o.takeUtterance()
		case len(o.buf) >= o.maxSamples:
			o.stats.MaxLengthCuts++
			o.det.Reset()
			slog.Info("utterance reached maximum recording time", "max", o.cfg.MaxRecording)
			done = o.takeUtterance()
		}
	}
	o.mu.Unlock()

	o.metrics.Frames.Add(ctx, 1)
	if done != nil {
		o.finish(ctx, done)
	}
	return nil
}

// EndUtterance finalises an open utterance as if speech had ended, then
// resets the detector's hysteresis. It is the push-to-talk release path.
// In Listening it only resets the detector.
func (o *Orchestrator) EndUtterance(ctx context.Context) error {
	o.mu.Lock()
	if o.state == StateIdle || o.state == StateError {
		st := o.state
		o.mu.Unlock()
		return fmt.Errorf("recognizer: end utterance in state %s: %w", st, types.ErrInvalidState)
	}
	o.det.Reset()
	o.preroll.reset()
	var done *utterance
	if o.state == StateProcessing && len(o.buf) > 0 {
		done = o.takeUtterance()
	} else {
		o.state = StateListening
	}
	o.mu.Unlock()

	if done != nil {
		o.finish(ctx, done)
	}
	return nil
}

// takeUtterance copies the collected audio out. Must be called with o.mu
// held; the state stays Processing until the decode completes.
func (o *Orchestrator) takeUtterance() *utterance {
	samples := make([]int16, len(o.buf))
	copy(samples, o.buf)
	o.buf = o.buf[:0]
	return &utterance{
		id:      uuid.NewString(),
		gen:     o.gen,
		samples: samples,
		start:   max(o.bufStart, 0),
	}
}

// recordFailure must be called with o.mu held.
func (o *Orchestrator) recordFailure(err error) {
	if !errors.Is(err, types.ErrResourceExhausted) {
		return
	}
	o.stats.ResourceErrors++
	o.failures++
	if o.failures >= o.cfg.MaxConsecutiveFailures {
		o.state = StateError
		slog.Error("recognizer entering error state",
			"consecutive_failures", o.failures, "error", err)
	}
}

// finish decodes u, then invokes the callback and publishes the result. It
// runs without holding o.mu.
func (o *Orchestrator) finish(ctx context.Context, u *utterance) {
	ctx, span := observe.StartDecode(ctx, u.id)
	defer span.End()
	log := observe.Logger(ctx)

	duration := stt.Duration(len(u.samples), o.cfg.SampleRate)
	o.metrics.UtteranceLength.Record(ctx, duration.Seconds())
	o.dump(u, log)

	start := time.Now()
	tr, err := o.decoder.Decode(ctx, u.samples, o.cfg.SampleRate)
	o.metrics.DecodeDuration.Record(ctx, time.Since(start).Seconds())

	o.mu.Lock()
	if o.gen != u.gen {
		o.mu.Unlock()
		log.Debug("discarding utterance decoded after stop")
		return
	}
	if o.state == StateProcessing {
		o.state = StateListening
	}
	o.stats.Utterances++
	switch {
	case err != nil:
		o.stats.DecodeErrors++
	case tr.Text == "":
		o.stats.EmptyResults++
	}
	o.mu.Unlock()

	if err != nil {
		observe.Fail(span, err, "decode failed")
		o.metrics.RecordUtterance(ctx, observe.OutcomeDecodeError)
		log.Warn("decode failed", "error", err)
		return
	}
	if tr.Text == "" {
		o.metrics.RecordUtterance(ctx, observe.OutcomeEmpty)
		log.Debug("decoder returned no text", "duration", duration)
		return
	}

	lang := tr.Language
	if lang == "" {
		lang = o.cfg.Language
	}
	res := Result{
		ID:         u.id,
		Text:       truncateText(tr.Text, MaxTextBytes),
		Confidence: clamp01(tr.Confidence),
		IsFinal:    true,
		Language:   lang,
		Duration:   duration,
		Timestamp:  u.start,
	}
	log.Info("utterance recognized",
		"text", res.Text,
		"confidence", res.Confidence,
		"duration", res.Duration)

	if o.callback != nil {
		o.callback(res)
	}
	o.publish(ctx, u.gen, res, log)
}

// publish offers res on the result channel for at most PublishTimeout. A
// result from a generation that Stop has since ended is dropped silently.
func (o *Orchestrator) publish(ctx context.Context, gen uint64, res Result, log *slog.Logger) {
	o.pubMu.Lock()
	defer o.pubMu.Unlock()

	o.mu.Lock()
	stale := o.gen != gen
	o.mu.Unlock()
	if stale {
		log.Debug("discarding result of stopped session")
		return
	}

	timer := time.NewTimer(o.cfg.PublishTimeout)
	defer timer.Stop()

	published := false
	select {
	case o.results <- res:
		published = true
	case <-timer.C:
	case <-ctx.Done():
	}

	o.mu.Lock()
	if published {
		o.stats.ResultsPublished++
	} else {
		o.stats.ResultsDropped++
	}
	o.mu.Unlock()

	if published {
		o.metrics.RecordUtterance(ctx, observe.OutcomePublished)
		return
	}
	o.metrics.RecordUtterance(ctx, observe.OutcomeDropped)
	o.metrics.RecordDrop(ctx, "results")
	log.Warn("result queue full, dropping result", "text", res.Text)
}

func (o *Orchestrator) dump(u *utterance, log *slog.Logger) {
	if o.cfg.DumpDir == "" {
		return
	}
	p := path.Join(o.cfg.DumpDir, u.id+".wav")
	if err := audio.WriteWAV(o.dumpFS, p, u.samples, o.cfg.SampleRate); err != nil {
		log.Warn("failed to write utterance dump", "path", p, "error", err)
	}
}

// GetResult waits up to ResultTimeout for the next result.
func (o *Orchestrator) GetResult(ctx context.Context) (Result, error) {
	timer := time.NewTimer(o.cfg.ResultTimeout)
	defer timer.Stop()
	select {
	case res := <-o.results:
		return res, nil
	case <-timer.C:
		return Result{}, fmt.Errorf("recognizer: no result within %s: %w", o.cfg.ResultTimeout, types.ErrTimeout)
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Results returns the result channel. It is never closed.
func (o *Orchestrator) Results() <-chan Result { return o.results }

// State returns the current lifecycle state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Stats returns a snapshot of the orchestrator, conditioner and detector
// statistics.
func (o *Orchestrator) Stats() Stats {
	o.mu.Lock()
	st := o.stats
	st.State = o.state
	o.mu.Unlock()
	st.DSP = o.cond.Stats()
	st.VAD = o.det.Stats()
	return st
}

// ResetStats zeroes the statistics of the orchestrator and its components.
func (o *Orchestrator) ResetStats() {
	o.mu.Lock()
	o.stats = Stats{}
	o.mu.Unlock()
	o.cond.ResetStats()
	o.det.ResetStats()
}
