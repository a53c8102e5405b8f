package observe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func testSetup(t *testing.T) (*Metrics, *sdkmetric.ManualReader, *tracetest.InMemoryExporter) {
	t.Helper()
	m, reader := newTestMetrics(t)

	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	origTP := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(origTP) })

	return m, reader, exp
}

// adminMux mimics the spiel admin server: /metrics answers 200, /readyz 503.
func adminMux(m *Metrics) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /metrics", func(w http.ResponseWriter, _ *http.Request) {})
	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	return Middleware(m)(mux)
}

func attr(attrs []attribute.KeyValue, key string) (attribute.Value, bool) {
	for _, a := range attrs {
		if string(a.Key) == key {
			return a.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestMiddleware_Spans(t *testing.T) {
	tests := []struct {
		path       string
		wantCode   int
		wantName   string
		wantRoute  string
		wantFailed bool
	}{
		{"/metrics", http.StatusOK, "GET /metrics", "GET /metrics", false},
		{"/readyz", http.StatusServiceUnavailable, "GET /readyz", "GET /readyz", true},
		{"/nope", http.StatusNotFound, "HTTP GET", unmatchedRoute, false},
	}
	for _, tc := range tests {
		t.Run(tc.path, func(t *testing.T) {
			m, _, exp := testSetup(t)
			rec := httptest.NewRecorder()
			adminMux(m).ServeHTTP(rec, httptest.NewRequest("GET", tc.path, nil))

			if rec.Code != tc.wantCode {
				t.Errorf("status = %d, want %d", rec.Code, tc.wantCode)
			}
			spans := exp.GetSpans()
			if len(spans) != 1 {
				t.Fatalf("spans = %d, want 1", len(spans))
			}
			s := spans[0]
			if s.Name != tc.wantName {
				t.Errorf("span name = %q, want %q", s.Name, tc.wantName)
			}
			if v, _ := attr(s.Attributes, "http.route"); v.AsString() != tc.wantRoute {
				t.Errorf("http.route = %q, want %q", v.AsString(), tc.wantRoute)
			}
			if v, _ := attr(s.Attributes, "http.response.status_code"); v.AsInt64() != int64(tc.wantCode) {
				t.Errorf("status attribute = %d, want %d", v.AsInt64(), tc.wantCode)
			}
			if failed := s.Status.Code == codes.Error; failed != tc.wantFailed {
				t.Errorf("span failed = %v, want %v", failed, tc.wantFailed)
			}
		})
	}
}

func TestMiddleware_RecordsDurationByRoute(t *testing.T) {
	m, reader, _ := testSetup(t)
	h := adminMux(m)
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/metrics", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/metrics", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/readyz", nil))

	met := findMetric(collect(t, reader), "spiel.http.request.duration")
	if met == nil {
		t.Fatal("metric not found")
	}
	hist, ok := met.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatal("metric is not a histogram")
	}
	counts := map[string]uint64{}
	for _, dp := range hist.DataPoints {
		route, _ := dp.Attributes.Value("route")
		status, _ := dp.Attributes.Value("status")
		counts[route.AsString()+" "+status.AsString()] += dp.Count
	}
	want := map[string]uint64{"GET /metrics 200": 2, "GET /readyz 503": 1}
	for k, n := range want {
		if counts[k] != n {
			t.Errorf("samples[%q] = %d, want %d (all: %v)", k, counts[k], n, counts)
		}
	}
}

func TestMiddleware_ContinuesIncomingTrace(t *testing.T) {
	m, _, _ := testSetup(t)

	var got string
	handler := Middleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = TraceID(r.Context())
	}))

	req := httptest.NewRequest("GET", "/metrics", nil)
	req.Header.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if want := "4bf92f3577b34da6a3ce929d0e0e4736"; got != want {
		t.Errorf("trace ID = %q, want %q", got, want)
	}
}

func TestMiddleware_NilMetrics(t *testing.T) {
	testSetup(t)
	rec := httptest.NewRecorder()
	adminMux(nil).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}
