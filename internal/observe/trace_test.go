package observe

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

// installTracer swaps the global tracer provider for one backed by an
// in-memory exporter. Tests using it must not run in parallel.
func installTracer(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	orig := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(orig)
		_ = tp.Shutdown(context.Background())
	})
	return exp
}

// captureLogs points the default logger at a buffer for the test's lifetime.
func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	orig := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(orig) })
	return &buf
}

func spanAttr(span sdktrace.ReadOnlySpan, key attribute.Key) string {
	for _, kv := range span.Attributes() {
		if kv.Key == key {
			return kv.Value.AsString()
		}
	}
	return ""
}

func TestStartDecode_TagsUtterance(t *testing.T) {
	exp := installTracer(t)

	ctx, span := StartDecode(context.Background(), "utt-1")
	if CorrelationID(ctx) == "" {
		t.Error("span context carries no trace ID")
	}
	if got := UtteranceID(ctx); got != "utt-1" {
		t.Errorf("UtteranceID = %q, want utt-1", got)
	}
	span.End()

	spans := exp.GetSpans().Snapshots()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	if spans[0].Name() != SpanDecode {
		t.Errorf("span name = %q, want %s", spans[0].Name(), SpanDecode)
	}
	if got := spanAttr(spans[0], KeyUtteranceID); got != "utt-1" {
		t.Errorf("%s = %q, want utt-1", KeyUtteranceID, got)
	}
}

func TestStartDispatch_InheritsUtterance(t *testing.T) {
	exp := installTracer(t)

	ctx, decode := StartDecode(context.Background(), "utt-2")
	child, dispatch := StartDispatch(ctx, "up", "volume")
	Fail(dispatch, errors.New("bridge gone"), "dispatch failed")
	dispatch.End()
	decode.End()

	if CorrelationID(child) != CorrelationID(ctx) {
		t.Errorf("dispatch correlation ID = %q, want %q", CorrelationID(child), CorrelationID(ctx))
	}
	if len(CorrelationID(ctx)) != 32 {
		t.Errorf("correlation ID length = %d, want 32", len(CorrelationID(ctx)))
	}

	spans := exp.GetSpans().Snapshots()
	if len(spans) != 2 {
		t.Fatalf("got %d spans, want 2", len(spans))
	}
	if spans[0].Name() != SpanDispatch {
		t.Fatalf("first ended span = %q, want %s", spans[0].Name(), SpanDispatch)
	}
	d := spans[0]
	if spanAttr(d, KeyUtteranceID) != "utt-2" || spanAttr(d, KeyCommand) != "up" || spanAttr(d, KeyCategory) != "volume" {
		t.Errorf("dispatch attributes = %v", d.Attributes())
	}
	if d.Status().Code != codes.Error {
		t.Errorf("dispatch status = %v, want error", d.Status().Code)
	}
	if len(d.Events()) != 1 {
		t.Errorf("dispatch events = %d, want the recorded error", len(d.Events()))
	}
}

func TestWithUtterance_Empty(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	if got := WithUtterance(ctx, ""); got != ctx {
		t.Error("WithUtterance with empty id returned a new context")
	}
	if got := UtteranceID(ctx); got != "" {
		t.Errorf("UtteranceID = %q, want empty", got)
	}
}

func TestCorrelationID_NoSpan(t *testing.T) {
	t.Parallel()
	if got := CorrelationID(context.Background()); got != "" {
		t.Errorf("CorrelationID = %q, want empty", got)
	}
}

func TestLogger(t *testing.T) {
	installTracer(t)

	tests := []struct {
		name     string
		withSpan bool
		want     bool
	}{
		{name: "inside utterance span", withSpan: true, want: true},
		{name: "outside any span", withSpan: false, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := captureLogs(t)
			ctx := context.Background()
			if tt.withSpan {
				var span trace.Span
				ctx, span = StartDecode(ctx, "utt-3")
				defer span.End()
			}
			Logger(ctx).Info("utterance decoded", "text", "пауза")

			out := buf.String()
			if got := strings.Contains(out, "trace_id=") && strings.Contains(out, "span_id="); got != tt.want {
				t.Errorf("trace attributes present = %v, want %v (log: %s)", got, tt.want, out)
			}
			if got := strings.Contains(out, "utterance_id=utt-3"); got != tt.want {
				t.Errorf("utterance_id present = %v, want %v (log: %s)", got, tt.want, out)
			}
		})
	}
}
