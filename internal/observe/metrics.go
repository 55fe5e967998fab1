// Package observe provides the observability primitives for voicekey:
// OpenTelemetry metrics, tracing, span-correlated structured logging, and
// HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API and exposed for
// Prometheus scraping via the exporter bridge installed by [InitProvider].
// [DefaultMetrics] returns a package-level instance backed by the global
// provider; tests should use [NewMetrics] with their own
// [metric.MeterProvider] to avoid cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all voicekey metrics.
const meterName = "github.com/MrWong99/voicekey"

// Utterance outcomes recorded by [Metrics.RecordUtterance].
const (
	OutcomePublished   = "published"
	OutcomeDropped     = "dropped"
	OutcomeDecodeError = "decode_error"
	OutcomeEmpty       = "empty"
)

// Command statuses recorded by [Metrics.RecordCommand].
const (
	CommandMatched       = "matched"
	CommandFuzzy         = "fuzzy"
	CommandUnknown       = "unknown"
	CommandLowConfidence = "low_confidence"
)

// Metrics holds all OpenTelemetry instruments of the pipeline. All fields are
// safe for concurrent use.
type Metrics struct {
	// --- Latency histograms ---

	// DecodeDuration tracks speech decoder latency per utterance.
	DecodeDuration metric.Float64Histogram

	// DispatchDuration tracks the time to emit one command's HID sequence.
	// Use with attribute.String("category", ...).
	DispatchDuration metric.Float64Histogram

	// UtteranceLength tracks the audio length of finalised utterances.
	UtteranceLength metric.Float64Histogram

	// --- Counters ---

	// Frames counts audio frames accepted by the orchestrator.
	Frames metric.Int64Counter

	// Utterances counts finalised utterances. Use with
	// attribute.String("outcome", ...).
	Utterances metric.Int64Counter

	// Commands counts matcher decisions. Use with attributes:
	//   attribute.String("status", ...), attribute.String("type", ...)
	Commands metric.Int64Counter

	// Dispatches counts dispatched commands. Use with attributes:
	//   attribute.String("category", ...), attribute.String("status", ...)
	Dispatches metric.Int64Counter

	// QueueDrops counts items dropped by a full bounded queue. Use with
	// attribute.String("queue", ...).
	QueueDrops metric.Int64Counter

	// ReadErrors counts failed capture reads.
	ReadErrors metric.Int64Counter

	// BreakerTransitions counts circuit breaker state changes. Use with
	// attributes:
	//   attribute.String("breaker", ...), attribute.String("state", ...)
	BreakerTransitions metric.Int64Counter

	// --- Gauges ---

	// ActiveRecordings is 1 while the capture gate is open.
	ActiveRecordings metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with
	// attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) for decode
// and dispatch latencies.
var latencyBuckets = []float64{
	0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5,
}

// lengthBuckets covers utterance lengths up to the maximum recording time.
var lengthBuckets = []float64{0.25, 0.5, 1, 1.5, 2, 3, 4, 5, 7.5, 10}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider].
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.DecodeDuration, err = m.Float64Histogram("voicekey.decode.duration",
		metric.WithDescription("Latency of speech decoding per utterance."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.DispatchDuration, err = m.Float64Histogram("voicekey.dispatch.duration",
		metric.WithDescription("Latency of emitting a command's HID sequence."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.UtteranceLength, err = m.Float64Histogram("voicekey.utterance.length",
		metric.WithDescription("Audio length of finalised utterances."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(lengthBuckets...),
	); err != nil {
		return nil, err
	}

	if met.Frames, err = m.Int64Counter("voicekey.frames",
		metric.WithDescription("Audio frames accepted by the recognizer."),
	); err != nil {
		return nil, err
	}
	if met.Utterances, err = m.Int64Counter("voicekey.utterances",
		metric.WithDescription("Finalised utterances by outcome."),
	); err != nil {
		return nil, err
	}
	if met.Commands, err = m.Int64Counter("voicekey.commands",
		metric.WithDescription("Command matcher decisions by status and type."),
	); err != nil {
		return nil, err
	}
	if met.Dispatches, err = m.Int64Counter("voicekey.dispatches",
		metric.WithDescription("Dispatched commands by category and status."),
	); err != nil {
		return nil, err
	}
	if met.QueueDrops, err = m.Int64Counter("voicekey.queue.drops",
		metric.WithDescription("Items dropped by full pipeline queues."),
	); err != nil {
		return nil, err
	}
	if met.ReadErrors, err = m.Int64Counter("voicekey.capture.read_errors",
		metric.WithDescription("Failed audio capture reads."),
	); err != nil {
		return nil, err
	}
	if met.BreakerTransitions, err = m.Int64Counter("voicekey.breaker.transitions",
		metric.WithDescription("Circuit breaker state changes by breaker and new state."),
	); err != nil {
		return nil, err
	}

	if met.ActiveRecordings, err = m.Int64UpDownCounter("voicekey.recording.active",
		metric.WithDescription("1 while the capture gate is open."),
	); err != nil {
		return nil, err
	}

	if met.HTTPRequestDuration, err = m.Float64Histogram("voicekey.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Panics if instrument creation
// fails (should not happen with the global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String].
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordUtterance counts one finalised utterance with the given outcome.
func (m *Metrics) RecordUtterance(ctx context.Context, outcome string) {
	m.Utterances.Add(ctx, 1, metric.WithAttributes(Attr("outcome", outcome)))
}

// RecordCommand counts one matcher decision.
func (m *Metrics) RecordCommand(ctx context.Context, status, commandType string) {
	m.Commands.Add(ctx, 1, metric.WithAttributes(
		Attr("status", status),
		Attr("type", commandType),
	))
}

// RecordDispatch counts one dispatched command.
func (m *Metrics) RecordDispatch(ctx context.Context, category, status string) {
	m.Dispatches.Add(ctx, 1, metric.WithAttributes(
		Attr("category", category),
		Attr("status", status),
	))
}

// RecordDrop counts one item dropped by the named queue.
func (m *Metrics) RecordDrop(ctx context.Context, queue string) {
	m.QueueDrops.Add(ctx, 1, metric.WithAttributes(Attr("queue", queue)))
}

// RecordBreakerTransition counts one circuit breaker state change.
func (m *Metrics) RecordBreakerTransition(ctx context.Context, breaker, state string) {
	m.BreakerTransitions.Add(ctx, 1, metric.WithAttributes(
		Attr("breaker", breaker),
		Attr("state", state),
	))
}
