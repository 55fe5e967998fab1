package observe

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Span attribute keys shared by the pipeline stages.
const (
	KeyUtteranceID = attribute.Key("voicekey.utterance.id")
	KeyCommand     = attribute.Key("voicekey.command")
	KeyCategory    = attribute.Key("voicekey.category")
)

// Span names of the two traced stages of an utterance.
const (
	SpanDecode   = "recognizer.decode"
	SpanDispatch = "action.dispatch"
)

const tracerName = "github.com/MrWong99/voicekey"

type utteranceKey struct{}

// Tracer returns the voicekey tracer from the global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// StartSpan starts a span named name. The caller must end it.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name, opts...)
}

// WithUtterance tags ctx with the utterance a command or log line belongs to.
// An empty id returns ctx unchanged.
func WithUtterance(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, utteranceKey{}, id)
}

// UtteranceID returns the id set by [WithUtterance], or "".
func UtteranceID(ctx context.Context) string {
	id, _ := ctx.Value(utteranceKey{}).(string)
	return id
}

// StartDecode opens the decode span of utterance id and tags the returned
// context with it.
func StartDecode(ctx context.Context, id string) (context.Context, trace.Span) {
	ctx = WithUtterance(ctx, id)
	return StartSpan(ctx, SpanDecode, trace.WithAttributes(KeyUtteranceID.String(id)))
}

// StartDispatch opens the dispatch span of one command. The utterance the
// command came from, if ctx carries one, is attached as well.
func StartDispatch(ctx context.Context, token, category string) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{KeyCommand.String(token), KeyCategory.String(category)}
	if id := UtteranceID(ctx); id != "" {
		attrs = append(attrs, KeyUtteranceID.String(id))
	}
	return StartSpan(ctx, SpanDispatch, trace.WithAttributes(attrs...))
}

// Fail marks span as failed with err.
func Fail(span trace.Span, err error, msg string) {
	span.RecordError(err)
	span.SetStatus(codes.Error, msg)
}

// CorrelationID returns the trace ID of the span in ctx, or "" without one.
// Decode and dispatch of one utterance share it when the dispatch context
// descends from the decode span.
func CorrelationID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return ""
}

// Logger returns the default logger with trace_id, span_id and utterance_id
// attached when ctx carries them.
func Logger(ctx context.Context) *slog.Logger {
	l := slog.Default()
	sc := trace.SpanContextFromContext(ctx)
	if sc.HasTraceID() {
		l = l.With(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	if id := UtteranceID(ctx); id != "" {
		l = l.With(slog.String("utterance_id", id))
	}
	return l
}
