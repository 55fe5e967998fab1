package recognizer

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/spf13/afero"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/MrWong99/voicekey/internal/observe"
	"github.com/MrWong99/voicekey/pkg/audio"
	stmock "github.com/MrWong99/voicekey/pkg/provider/stt/mock"
	"github.com/MrWong99/voicekey/pkg/provider/vad"
	vadmock "github.com/MrWong99/voicekey/pkg/provider/vad/mock"
	"github.com/MrWong99/voicekey/pkg/types"
)

const frameSamples = 160

var (
	started = vad.Event{Type: vad.EventSpeechStarted, Voice: true}
	ended   = vad.Event{Type: vad.EventSpeechEnded}
	none    = vad.Event{}
)

// passthrough disables both conditioner stages so frames reach the detector
// unchanged.
func passthrough() Config {
	return Config{SampleRate: audio.DefaultSampleRate}
}

func newTestOrchestrator(t *testing.T, cfg Config, opts ...Option) *Orchestrator {
	t.Helper()
	m, err := observe.NewMetrics(noop.NewMeterProvider())
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	o, err := New(cfg, append([]Option{WithMetrics(m)}, opts...)...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return o
}

func frameOf(level int16, seq int) audio.Frame {
	s := make([]int16, frameSamples)
	for i := range s {
		s[i] = level
	}
	return audio.Frame{
		Samples:    s,
		SampleRate: audio.DefaultSampleRate,
		Seq:        uint64(seq + 1),
		Timestamp:  time.Duration(seq) * 10 * time.Millisecond,
	}
}

func feed(t *testing.T, o *Orchestrator, n int, level int16) {
	t.Helper()
	for i := range n {
		if err := o.ProcessAudio(context.Background(), frameOf(level, i)); err != nil {
			t.Fatalf("ProcessAudio frame %d: %v", i, err)
		}
	}
}

func TestLifecycle(t *testing.T) {
	t.Parallel()

	o := newTestOrchestrator(t, passthrough(), WithDetector(&vadmock.Detector{}))
	ctx := context.Background()

	if got := o.State(); got != StateIdle {
		t.Fatalf("State() = %v, want %v", got, StateIdle)
	}
	before := o.Stats()
	if err := o.ProcessAudio(ctx, frameOf(100, 0)); !errors.Is(err, types.ErrInvalidState) {
		t.Errorf("ProcessAudio before Start: got %v, want ErrInvalidState", err)
	}
	if after := o.Stats(); after != before {
		t.Errorf("Stats() after rejected frame = %+v, want %+v", after, before)
	}
	if err := o.Stop(); !errors.Is(err, types.ErrInvalidState) {
		t.Errorf("Stop while idle: got %v, want ErrInvalidState", err)
	}
	if err := o.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if got := o.State(); got != StateListening {
		t.Errorf("State() = %v, want %v", got, StateListening)
	}
	if err := o.Start(); !errors.Is(err, types.ErrInvalidState) {
		t.Errorf("second Start: got %v, want ErrInvalidState", err)
	}
	if err := o.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if _, err := o.GetResult(ctx); !errors.Is(err, types.ErrTimeout) {
		t.Errorf("GetResult after Stop: got %v, want ErrTimeout", err)
	}
}

func TestProcessAudio_InvalidFrames(t *testing.T) {
	t.Parallel()

	det := &vadmock.Detector{}
	o := newTestOrchestrator(t, passthrough(), WithDetector(det))
	if err := o.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	ctx := context.Background()

	if err := o.ProcessAudio(ctx, audio.Frame{SampleRate: 16000}); !errors.Is(err, types.ErrInvalidArgument) {
		t.Errorf("empty frame: got %v, want ErrInvalidArgument", err)
	}
	bad := frameOf(100, 0)
	bad.SampleRate = 8000
	if err := o.ProcessAudio(ctx, bad); !errors.Is(err, types.ErrInvalidArgument) {
		t.Errorf("8 kHz frame: got %v, want ErrInvalidArgument", err)
	}
	if got := det.Calls(); got != 0 {
		t.Errorf("detector calls = %d, want 0", got)
	}
	if got := o.Stats().FramesProcessed; got != 0 {
		t.Errorf("FramesProcessed = %d, want 0", got)
	}
}

func TestUtterance_EndToEnd(t *testing.T) {
	t.Parallel()

	o := newTestOrchestrator(t, passthrough())
	if err := o.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	ctx := context.Background()

	// 110 quiet frames calibrate the noise floor, 10 loud frames start
	// speech and 20 quiet frames end it.
	seq := 0
	for range 110 {
		if err := o.ProcessAudio(ctx, frameOf(164, seq)); err != nil {
			t.Fatalf("ProcessAudio: %v", err)
		}
		seq++
	}
	for range 10 {
		if err := o.ProcessAudio(ctx, frameOf(3277, seq)); err != nil {
			t.Fatalf("ProcessAudio: %v", err)
		}
		seq++
	}
	if got := o.State(); got != StateProcessing {
		t.Fatalf("State() after loud frames = %v, want %v", got, StateProcessing)
	}
	for range 20 {
		if err := o.ProcessAudio(ctx, frameOf(164, seq)); err != nil {
			t.Fatalf("ProcessAudio: %v", err)
		}
		seq++
	}

	res, err := o.GetResult(ctx)
	if err != nil {
		t.Fatalf("GetResult: %v", err)
	}
	if !res.IsFinal {
		t.Error("IsFinal = false, want true")
	}
	if res.Text == "" {
		t.Error("Text is empty")
	}
	if res.ID == "" {
		t.Error("ID is empty")
	}
	if res.Language != DefaultLanguage {
		t.Errorf("Language = %q, want %q", res.Language, DefaultLanguage)
	}
	if want := 300 * time.Millisecond; res.Duration != want {
		t.Errorf("Duration = %v, want %v", res.Duration, want)
	}
	if want := 1100 * time.Millisecond; res.Timestamp != want {
		t.Errorf("Timestamp = %v, want %v", res.Timestamp, want)
	}
	if _, err := o.GetResult(ctx); !errors.Is(err, types.ErrTimeout) {
		t.Errorf("second GetResult: got %v, want ErrTimeout", err)
	}

	st := o.Stats()
	if st.State != StateListening {
		t.Errorf("Stats().State = %v, want %v", st.State, StateListening)
	}
	if st.FramesProcessed != 140 {
		t.Errorf("FramesProcessed = %d, want 140", st.FramesProcessed)
	}
	if st.SpeechStarts != 1 || st.Utterances != 1 || st.ResultsPublished != 1 {
		t.Errorf("SpeechStarts/Utterances/ResultsPublished = %d/%d/%d, want 1/1/1",
			st.SpeechStarts, st.Utterances, st.ResultsPublished)
	}
	if !st.VAD.Calibrated {
		t.Error("VAD.Calibrated = false, want true")
	}
	if st.DSP.FramesProcessed != 140 {
		t.Errorf("DSP.FramesProcessed = %d, want 140", st.DSP.FramesProcessed)
	}
}

func TestUtterance_IncludesPreRoll(t *testing.T) {
	t.Parallel()

	det := &vadmock.Detector{Script: []vad.Event{none, started, none, ended}}
	dec := &stmock.Decoder{Result: types.Transcript{Text: "нажми пробел", Confidence: 0.9}}
	o := newTestOrchestrator(t, passthrough(), WithDetector(det), WithDecoder(dec))
	if err := o.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	feed(t, o, 4, 1000)

	call, ok := dec.LastCall()
	if !ok {
		t.Fatal("decoder was not called")
	}
	if got, want := len(call.Samples), 4*frameSamples; got != want {
		t.Errorf("decoded samples = %d, want %d", got, want)
	}
	if call.SampleRate != audio.DefaultSampleRate {
		t.Errorf("decoded rate = %d, want %d", call.SampleRate, audio.DefaultSampleRate)
	}

	res, err := o.GetResult(context.Background())
	if err != nil {
		t.Fatalf("GetResult: %v", err)
	}
	if res.Text != "нажми пробел" {
		t.Errorf("Text = %q, want %q", res.Text, "нажми пробел")
	}
	if res.Confidence != 0.9 {
		t.Errorf("Confidence = %v, want 0.9", res.Confidence)
	}
	if got := o.State(); got != StateListening {
		t.Errorf("State() = %v, want %v", got, StateListening)
	}
}

func TestCallback_RunsBeforePublish(t *testing.T) {
	t.Parallel()

	det := &vadmock.Detector{Script: []vad.Event{started, ended}}
	dec := &stmock.Decoder{Result: types.Transcript{Text: "вверх", Confidence: 1}}

	var (
		mu       sync.Mutex
		got      []Result
		queueLen int
	)
	var o *Orchestrator
	o = newTestOrchestrator(t, passthrough(), WithDetector(det), WithDecoder(dec),
		WithCallback(func(r Result) {
			mu.Lock()
			defer mu.Unlock()
			got = append(got, r)
			queueLen = len(o.Results())
		}))
	if err := o.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	feed(t, o, 2, 1000)

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 {
		t.Fatalf("callback calls = %d, want 1", len(got))
	}
	if got[0].Text != "вверх" {
		t.Errorf("callback Text = %q, want %q", got[0].Text, "вверх")
	}
	if queueLen != 0 {
		t.Errorf("queue length during callback = %d, want 0", queueLen)
	}
	if n := len(o.Results()); n != 1 {
		t.Errorf("queue length after = %d, want 1", n)
	}
}

func TestPublish_DropsWhenQueueFull(t *testing.T) {
	t.Parallel()

	cfg := passthrough()
	cfg.ResultQueueSize = 1
	cfg.PublishTimeout = 5 * time.Millisecond
	det := &vadmock.Detector{Script: []vad.Event{started, ended, started, ended}}
	dec := &stmock.Decoder{Results: []types.Transcript{
		{Text: "первый", Confidence: 1},
		{Text: "второй", Confidence: 1},
	}}
	o := newTestOrchestrator(t, cfg, WithDetector(det), WithDecoder(dec))
	if err := o.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	feed(t, o, 4, 1000)

	st := o.Stats()
	if st.ResultsPublished != 1 || st.ResultsDropped != 1 {
		t.Errorf("published/dropped = %d/%d, want 1/1", st.ResultsPublished, st.ResultsDropped)
	}
	res, err := o.GetResult(context.Background())
	if err != nil {
		t.Fatalf("GetResult: %v", err)
	}
	if res.Text != "первый" {
		t.Errorf("Text = %q, want %q", res.Text, "первый")
	}
}

func TestDecodeFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		dec         *stmock.Decoder
		wantErrors  uint64
		wantEmpties uint64
	}{
		{
			name:       "decoder error",
			dec:        &stmock.Decoder{Err: errors.New("backend down")},
			wantErrors: 1,
		},
		{
			name:        "empty transcript",
			dec:         &stmock.Decoder{},
			wantEmpties: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			det := &vadmock.Detector{Script: []vad.Event{started, ended}}
			o := newTestOrchestrator(t, passthrough(), WithDetector(det), WithDecoder(tt.dec))
			if err := o.Start(); err != nil {
				t.Fatalf("Start: %v", err)
			}
			feed(t, o, 2, 1000)

			st := o.Stats()
			if st.DecodeErrors != tt.wantErrors {
				t.Errorf("DecodeErrors = %d, want %d", st.DecodeErrors, tt.wantErrors)
			}
			if st.EmptyResults != tt.wantEmpties {
				t.Errorf("EmptyResults = %d, want %d", st.EmptyResults, tt.wantEmpties)
			}
			if st.State != StateListening {
				t.Errorf("State = %v, want %v", st.State, StateListening)
			}
			if _, err := o.GetResult(context.Background()); !errors.Is(err, types.ErrTimeout) {
				t.Errorf("GetResult: got %v, want ErrTimeout", err)
			}
		})
	}
}

func TestMaxRecording_Cuts(t *testing.T) {
	t.Parallel()

	cfg := passthrough()
	cfg.MaxRecording = 50 * time.Millisecond
	cfg.VAD.MinVoiceFrames = 1
	det := &vadmock.Detector{Script: []vad.Event{started}}
	dec := &stmock.Decoder{Result: types.Transcript{Text: "стоп", Confidence: 1}}
	o := newTestOrchestrator(t, cfg, WithDetector(det), WithDecoder(dec))
	if err := o.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	feed(t, o, 5, 1000)

	call, ok := dec.LastCall()
	if !ok {
		t.Fatal("decoder was not called")
	}
	if got, want := len(call.Samples), 800; got != want {
		t.Errorf("decoded samples = %d, want %d", got, want)
	}
	if got := o.Stats().MaxLengthCuts; got != 1 {
		t.Errorf("MaxLengthCuts = %d, want 1", got)
	}
	// One reset from Start, one from the cut.
	if got := det.ResetCallCount; got != 2 {
		t.Errorf("detector resets = %d, want 2", got)
	}
}

func TestEndUtterance(t *testing.T) {
	t.Parallel()

	cfg := passthrough()
	cfg.VAD.MinVoiceFrames = 1
	det := &vadmock.Detector{Script: []vad.Event{started}}
	dec := &stmock.Decoder{Result: types.Transcript{Text: "выход", Confidence: 1}}
	o := newTestOrchestrator(t, cfg, WithDetector(det), WithDecoder(dec))

	if err := o.EndUtterance(context.Background()); !errors.Is(err, types.ErrInvalidState) {
		t.Errorf("EndUtterance while idle: got %v, want ErrInvalidState", err)
	}
	if err := o.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	feed(t, o, 2, 1000)
	if got := dec.Calls(); got != 0 {
		t.Fatalf("decoder calls before release = %d, want 0", got)
	}
	if err := o.ProcessAudio(context.Background(), audio.Frame{EndOfUtterance: true}); err != nil {
		t.Fatalf("ProcessAudio end marker: %v", err)
	}

	call, ok := dec.LastCall()
	if !ok {
		t.Fatal("decoder was not called")
	}
	if got, want := len(call.Samples), 2*frameSamples; got != want {
		t.Errorf("decoded samples = %d, want %d", got, want)
	}
	if _, err := o.GetResult(context.Background()); err != nil {
		t.Errorf("GetResult: %v", err)
	}
	if got := o.State(); got != StateListening {
		t.Errorf("State() = %v, want %v", got, StateListening)
	}
}

func TestResult_Bounds(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("я", 300)
	det := &vadmock.Detector{Script: []vad.Event{started, ended}}
	dec := &stmock.Decoder{Result: types.Transcript{Text: long, Confidence: 1.5}}
	o := newTestOrchestrator(t, passthrough(), WithDetector(det), WithDecoder(dec))
	if err := o.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	feed(t, o, 2, 1000)

	res, err := o.GetResult(context.Background())
	if err != nil {
		t.Fatalf("GetResult: %v", err)
	}
	if len(res.Text) != MaxTextBytes {
		t.Errorf("len(Text) = %d, want %d", len(res.Text), MaxTextBytes)
	}
	if !utf8.ValidString(res.Text) {
		t.Error("Text is not valid UTF-8 after truncation")
	}
	if res.Confidence != 1 {
		t.Errorf("Confidence = %v, want 1", res.Confidence)
	}
}

func TestStop_DiscardsQueuedResults(t *testing.T) {
	t.Parallel()

	det := &vadmock.Detector{Script: []vad.Event{started, ended}}
	dec := &stmock.Decoder{Result: types.Transcript{Text: "пауза", Confidence: 1}}
	o := newTestOrchestrator(t, passthrough(), WithDetector(det), WithDecoder(dec))
	if err := o.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	feed(t, o, 2, 1000)
	if err := o.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if got := o.Stats().ResultsDiscarded; got != 1 {
		t.Errorf("ResultsDiscarded = %d, want 1", got)
	}
	if _, err := o.GetResult(context.Background()); !errors.Is(err, types.ErrTimeout) {
		t.Errorf("GetResult: got %v, want ErrTimeout", err)
	}
}

func TestStop_DuringDecode(t *testing.T) {
	t.Parallel()

	det := &vadmock.Detector{Script: []vad.Event{started, ended}}
	dec := &stmock.Decoder{
		Result: types.Transcript{Text: "поздно", Confidence: 1},
		Block:  make(chan struct{}),
	}
	o := newTestOrchestrator(t, passthrough(), WithDetector(det), WithDecoder(dec))
	if err := o.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := range 2 {
			if err := o.ProcessAudio(context.Background(), frameOf(1000, i)); err != nil {
				t.Errorf("ProcessAudio frame %d: %v", i, err)
			}
		}
	}()

	deadline := time.Now().Add(2 * time.Second)
	for dec.Calls() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("decoder was not called")
		}
		time.Sleep(time.Millisecond)
	}
	if got := o.State(); got != StateProcessing {
		t.Errorf("State() during decode = %v, want %v", got, StateProcessing)
	}
	if err := o.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	close(dec.Block)
	<-done

	if _, err := o.GetResult(context.Background()); !errors.Is(err, types.ErrTimeout) {
		t.Errorf("GetResult: got %v, want ErrTimeout", err)
	}
	if got := o.State(); got != StateIdle {
		t.Errorf("State() = %v, want %v", got, StateIdle)
	}
	if got := o.Stats().Utterances; got != 0 {
		t.Errorf("Utterances = %d, want 0", got)
	}
}

func TestStop_BeforePublishDropsResult(t *testing.T) {
	t.Parallel()

	det := &vadmock.Detector{Script: []vad.Event{started, ended}}
	dec := &stmock.Decoder{Result: types.Transcript{Text: "стоп", Confidence: 1}}
	var o *Orchestrator
	// The callback runs after the decode is accepted and before the result
	// is offered, so Stop lands exactly in that window.
	o = newTestOrchestrator(t, Config{SampleRate: audio.DefaultSampleRate, ResultTimeout: 50 * time.Millisecond},
		WithDetector(det), WithDecoder(dec),
		WithCallback(func(Result) {
			if err := o.Stop(); err != nil {
				t.Errorf("Stop: %v", err)
			}
		}))
	if err := o.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	feed(t, o, 2, 1000)

	if n := len(o.Results()); n != 0 {
		t.Errorf("queue length = %d, want 0", n)
	}
	if _, err := o.GetResult(context.Background()); !errors.Is(err, types.ErrTimeout) {
		t.Errorf("GetResult: got %v, want ErrTimeout", err)
	}
	if got := o.Stats().ResultsPublished; got != 0 {
		t.Errorf("ResultsPublished = %d, want 0", got)
	}
}

func TestResourceExhaustion_EntersErrorState(t *testing.T) {
	t.Parallel()

	cfg := passthrough()
	cfg.DSP.MaxFrameSamples = 100
	o := newTestOrchestrator(t, cfg, WithDetector(&vadmock.Detector{}))
	if err := o.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	ctx := context.Background()

	for i := range DefaultMaxConsecutiveFailures {
		if err := o.ProcessAudio(ctx, frameOf(1000, i)); !errors.Is(err, types.ErrResourceExhausted) {
			t.Fatalf("frame %d: got %v, want ErrResourceExhausted", i, err)
		}
	}
	if got := o.State(); got != StateError {
		t.Fatalf("State() = %v, want %v", got, StateError)
	}

	small := frameOf(1000, 0)
	small.Samples = small.Samples[:80]
	if err := o.ProcessAudio(ctx, small); !errors.Is(err, types.ErrInvalidState) {
		t.Errorf("ProcessAudio in error state: got %v, want ErrInvalidState", err)
	}
	if err := o.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := o.Start(); err != nil {
		t.Fatalf("Start after Stop: %v", err)
	}
	if err := o.ProcessAudio(ctx, small); err != nil {
		t.Errorf("ProcessAudio after restart: %v", err)
	}
	if got := o.Stats().ResourceErrors; got != uint64(DefaultMaxConsecutiveFailures) {
		t.Errorf("ResourceErrors = %d, want %d", got, DefaultMaxConsecutiveFailures)
	}
}

func TestDump_WritesWAV(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	cfg := passthrough()
	cfg.DumpDir = "dumps"
	det := &vadmock.Detector{Script: []vad.Event{started, ended}}
	dec := &stmock.Decoder{Result: types.Transcript{Text: "громче", Confidence: 1}}
	o := newTestOrchestrator(t, cfg, WithDetector(det), WithDecoder(dec), WithDumpFS(fs))
	if err := o.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	feed(t, o, 2, 1000)

	res, err := o.GetResult(context.Background())
	if err != nil {
		t.Fatalf("GetResult: %v", err)
	}
	samples, rate, err := audio.ReadWAV(fs, "dumps/"+res.ID+".wav")
	if err != nil {
		t.Fatalf("ReadWAV: %v", err)
	}
	if rate != audio.DefaultSampleRate {
		t.Errorf("rate = %d, want %d", rate, audio.DefaultSampleRate)
	}
	if len(samples) != 2*frameSamples {
		t.Errorf("samples = %d, want %d", len(samples), 2*frameSamples)
	}
}

func TestResetStats(t *testing.T) {
	t.Parallel()

	det := &vadmock.Detector{}
	o := newTestOrchestrator(t, passthrough(), WithDetector(det))
	if err := o.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	feed(t, o, 3, 1000)
	o.ResetStats()

	st := o.Stats()
	if st.FramesProcessed != 0 || st.DSP.FramesProcessed != 0 {
		t.Errorf("FramesProcessed = %d, DSP.FramesProcessed = %d, want 0", st.FramesProcessed, st.DSP.FramesProcessed)
	}
	if st.State != StateListening {
		t.Errorf("State = %v, want %v", st.State, StateListening)
	}
	if det.ResetStatsCallCount != 1 {
		t.Errorf("detector ResetStats calls = %d, want 1", det.ResetStatsCallCount)
	}
}

func TestTruncateText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"hello", 10, "hello"},
		{"hello", 3, "hel"},
		{"привет", 3, "п"},
		{"привет", 4, "пр"},
		{"", 5, ""},
	}
	for _, tt := range tests {
		if got := truncateText(tt.in, tt.n); got != tt.want {
			t.Errorf("truncateText(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}
