package observe

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func statusHandler(code int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(code)
	})
}

func TestMiddleware_StatusEndpoints(t *testing.T) {
	exp := installTracer(t)
	m, reader := newTestMetrics(t)
	mux := http.NewServeMux()
	mux.Handle("GET /healthz", statusHandler(http.StatusOK))
	mux.Handle("GET /readyz", statusHandler(http.StatusServiceUnavailable))
	h := Middleware(m)(mux)

	for _, path := range []string{"/healthz", "/readyz", "/healthz"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if cid := rec.Header().Get("X-Correlation-ID"); len(cid) != 32 {
			t.Errorf("%s: X-Correlation-ID = %q, want 32 hex chars", path, cid)
		}
	}

	spans := exp.GetSpans()
	if len(spans) != 3 {
		t.Fatalf("got %d spans, want 3", len(spans))
	}
	if spans[1].Name != "status GET /readyz" {
		t.Errorf("span name = %q, want %q", spans[1].Name, "status GET /readyz")
	}
	var code int64
	for _, kv := range spans[1].Attributes {
		if kv.Key == "http.response.status_code" {
			code = kv.Value.AsInt64()
		}
	}
	if code != http.StatusServiceUnavailable {
		t.Errorf("span status code = %d, want %d", code, http.StatusServiceUnavailable)
	}

	met := findMetric(collect(t, reader), "voicekey.http.request.duration")
	if met == nil {
		t.Fatal("request duration metric not recorded")
	}
	hist, ok := met.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatalf("metric data is %T, want histogram", met.Data)
	}
	counts := map[string]uint64{}
	for _, dp := range hist.DataPoints {
		if v, ok := dp.Attributes.Value(attribute.Key("path")); ok {
			counts[v.AsString()] += dp.Count
		}
	}
	if counts["/healthz"] != 2 || counts["/readyz"] != 1 {
		t.Errorf("request counts by path = %v, want /healthz:2 /readyz:1", counts)
	}
}

func TestMiddleware_ContinuesIncomingTrace(t *testing.T) {
	installTracer(t)
	m, _ := newTestMetrics(t)

	const traceID = "4bf92f3577b34da6a3ce929d0e0e4736"
	var seen string
	h := Middleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = CorrelationID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	req.Header.Set("traceparent", "00-"+traceID+"-00f067aa0ba902b7-01")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if seen != traceID {
		t.Errorf("handler correlation ID = %q, want %q", seen, traceID)
	}
	if got := rec.Header().Get("X-Correlation-ID"); got != traceID {
		t.Errorf("X-Correlation-ID = %q, want %q", got, traceID)
	}
	if tp := rec.Header().Get("traceparent"); !strings.Contains(tp, traceID) {
		t.Errorf("traceparent = %q, want it to carry %s", tp, traceID)
	}
}

func TestMiddleware_QuietPathsLogAtDebug(t *testing.T) {
	buf := captureLogs(t)
	m, _ := newTestMetrics(t)
	h := Middleware(m)(statusHandler(http.StatusOK))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if strings.Contains(buf.String(), "status request") {
		t.Errorf("/metrics logged at info: %s", buf.String())
	}

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/status", nil))
	if !strings.Contains(buf.String(), "path=/status") {
		t.Errorf("/status completion not logged: %s", buf.String())
	}
}

func TestMiddleware_UnknownPathsShareOneRoute(t *testing.T) {
	exp := installTracer(t)
	m, reader := newTestMetrics(t)
	h := Middleware(m)(statusHandler(http.StatusNotFound))

	for _, path := range []string{"/admin", "/wp-login.php", "/status"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	met := findMetric(collect(t, reader), "voicekey.http.request.duration")
	if met == nil {
		t.Fatal("request duration metric not recorded")
	}
	hist, ok := met.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatalf("metric data is %T, want histogram", met.Data)
	}
	counts := map[string]uint64{}
	for _, dp := range hist.DataPoints {
		if v, ok := dp.Attributes.Value(attribute.Key("path")); ok {
			counts[v.AsString()] += dp.Count
		}
	}
	if len(counts) != 2 || counts[RouteOther] != 2 || counts[RouteStatus] != 1 {
		t.Errorf("request counts by path = %v, want other:2 /status:1", counts)
	}
	if spans := exp.GetSpans(); len(spans) != 3 || spans[0].Name != "status GET other" {
		t.Errorf("first span = %v, want status GET other", spans)
	}
}

func TestMiddleware_ServerErrorsLogAtWarn(t *testing.T) {
	buf := captureLogs(t)
	m, _ := newTestMetrics(t)
	h := Middleware(m)(statusHandler(http.StatusInternalServerError))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if !strings.Contains(buf.String(), "level=WARN") {
		t.Errorf("failing /healthz not logged at warn: %s", buf.String())
	}
}
