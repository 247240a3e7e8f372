package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"edge-forwarder/internal/metrics"
)

func TestMetricsMiddleware_IncrementsCounter(t *testing.T) {
	m := metrics.New()

	e := echo.New()
	e.Use(MetricsMiddleware(m))
	e.POST("/validate", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	req := httptest.NewRequest(http.MethodPost, "/validate", http.NoBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	if got := testutil.ToFloat64(m.RequestsTotal.WithLabelValues("POST", "200", "forward")); got != 1 {
		t.Errorf("requests_total{POST,200,forward} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.RequestsInFlight); got != 0 {
		t.Errorf("in flight = %v, want 0 after request completes", got)
	}
}

func TestMetricsMiddleware_RecordsDuration(t *testing.T) {
	m := metrics.New()

	e := echo.New()
	e.Use(MetricsMiddleware(m))
	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	req := httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody)
	e.ServeHTTP(httptest.NewRecorder(), req)

	families, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}

	found := false
	for _, f := range families {
		if f.GetName() == "edge_forwarder_http_request_duration_seconds" {
			for _, metric := range f.GetMetric() {
				if metric.GetHistogram().GetSampleCount() > 0 {
					found = true
				}
			}
		}
	}
	if !found {
		t.Error("expected edge_forwarder_http_request_duration_seconds with at least one sample")
	}
}

func TestMetricsMiddleware_HTTPErrorStatus(t *testing.T) {
	m := metrics.New()

	e := echo.New()
	e.Use(MetricsMiddleware(m))
	e.POST("/validate", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusTooManyRequests, "slow down")
	})

	req := httptest.NewRequest(http.MethodPost, "/validate", http.NoBody)
	e.ServeHTTP(httptest.NewRecorder(), req)

	if got := testutil.ToFloat64(m.RequestsTotal.WithLabelValues("POST", "429", "forward")); got != 1 {
		t.Errorf("requests_total{POST,429,forward} = %v, want 1", got)
	}
}

func TestMetricsMiddleware_UnknownMethodNormalized(t *testing.T) {
	tests := []struct {
		name       string
		register   func(e *echo.Echo, h echo.HandlerFunc)
		wantStatus string
	}{
		// Any covers only the standard methods; the router answers 405.
		{"routed with Any", func(e *echo.Echo, h echo.HandlerFunc) { e.Any("/validate", h) }, "405"},
		{"registered method", func(e *echo.Echo, h echo.HandlerFunc) { e.Add("XYZZY", "/validate", h) }, "200"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := metrics.New()

			e := echo.New()
			e.Use(MetricsMiddleware(m))
			tt.register(e, func(c echo.Context) error {
				return c.String(http.StatusOK, "ok")
			})

			req := httptest.NewRequest("XYZZY", "/validate", http.NoBody)
			e.ServeHTTP(httptest.NewRecorder(), req)

			if got := testutil.ToFloat64(m.RequestsTotal.WithLabelValues("other", tt.wantStatus, "forward")); got != 1 {
				t.Errorf("requests_total{other,%s,forward} = %v, want 1", tt.wantStatus, got)
			}
		})
	}
}
