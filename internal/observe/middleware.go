package observe

import (
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.39.0"
	"go.opentelemetry.io/otel/trace"
)

// Status server routes. Anything else is reported as RouteOther so stray
// requests cannot grow the metric label set.
const (
	RouteHealthz = "/healthz"
	RouteReadyz  = "/readyz"
	RouteStatus  = "/status"
	RouteMetrics = "/metrics"
	RouteOther   = "other"
)

// pollRoute reports routes polled by health checkers and scrapers. Their
// successful requests are logged at debug.
func pollRoute(route string) bool {
	switch route {
	case RouteHealthz, RouteReadyz, RouteMetrics:
		return true
	}
	return false
}

func routeOf(path string) string {
	switch path {
	case RouteHealthz, RouteReadyz, RouteStatus, RouteMetrics:
		return path
	}
	return RouteOther
}

type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

// Middleware instruments the status server. Each request continues the W3C
// trace context of the caller or starts a new trace, gets a server span and
// an X-Correlation-ID response header, and is recorded in
// [Metrics.HTTPRequestDuration] under its route.
func Middleware(m *Metrics) func(http.Handler) http.Handler {
	prop := propagation.TraceContext{}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			route := routeOf(r.URL.Path)

			ctx := prop.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
			ctx, span := StartSpan(ctx, "status "+r.Method+" "+route,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					semconv.HTTPRequestMethodKey.String(r.Method),
					semconv.HTTPRoute(route),
					semconv.URLPath(r.URL.Path),
				),
			)
			defer span.End()

			if cid := CorrelationID(ctx); cid != "" {
				w.Header().Set("X-Correlation-ID", cid)
			}
			prop.Inject(ctx, propagation.HeaderCarrier(w.Header()))

			rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
			next.ServeHTTP(rec, r.WithContext(ctx))

			elapsed := time.Since(start)
			m.HTTPRequestDuration.Record(ctx, elapsed.Seconds(),
				metric.WithAttributes(
					attribute.String("method", r.Method),
					attribute.String("path", route),
				),
			)
			span.SetAttributes(semconv.HTTPResponseStatusCode(rec.code))

			level := slog.LevelInfo
			switch {
			case rec.code >= http.StatusInternalServerError:
				level = slog.LevelWarn
			case pollRoute(route) && rec.code < http.StatusBadRequest:
				level = slog.LevelDebug
			}
			Logger(ctx).Log(ctx, level, "status request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.code,
				"duration", elapsed,
			)
		})
	}
}
