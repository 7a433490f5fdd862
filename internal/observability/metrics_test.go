package observability

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestDefaultMetricsConfig(t *testing.T) {
	cfg := DefaultMetricsConfig()
	if !cfg.Enabled || cfg.Namespace != "opent1d" || cfg.Version != "dev" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
}

func TestMetricsConfigFromEnv(t *testing.T) {
	tests := []struct {
		env  string
		want bool
	}{
		{"true", true},
		{"1", true},
		{"TRUE", true},
		{"false", false},
		{"0", false},
	}
	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			t.Setenv("OPENT1D_METRICS_ENABLED", tt.env)
			t.Setenv("APP_VERSION", "v2.0.0")
			cfg := MetricsConfigFromEnv()
			if cfg.Enabled != tt.want || cfg.Version != "v2.0.0" {
				t.Fatalf("unexpected config %+v", cfg)
			}
		})
	}
}

func TestNormalizePath(t *testing.T) {
	tests := map[string]string{
		"/api/v1/measurements":                      "/api/v1/measurements",
		"/api/v1/audit/42":                          "/api/v1/audit/{id}",
		"/x/550e8400-e29b-41d4-a716-446655440000/y": "/x/{id}/y",
	}
	for in, want := range tests {
		if got := normalizePath(in); got != want {
			t.Errorf("normalizePath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMetricsHandler(t *testing.T) {
	m := NewMetrics(MetricsConfig{Namespace: "opent1d", Version: "1.0.0"})
	m.RecordHTTPRequest("POST", "/query", 200, 100*time.Millisecond)
	m.RecordHTTPRequest("POST", "/query", 200, 200*time.Millisecond)
	m.RecordRateLimitAllowed()
	m.RecordRateLimitRejected()
	m.RecordSettingsSave(nil)
	m.RecordSettingsSave(errors.New("login failed"))
	m.RecordScrape(12, nil)
	m.RecordScrape(0, errors.New("timeout"))

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	body := rr.Body.String()
	for _, want := range []string{
		`opent1d_info{version="1.0.0"} 1`,
		`opent1d_http_requests_total{method="POST",path="/query",status="200"} 2`,
		`opent1d_http_request_duration_seconds_count{method="POST",path="/query"} 2`,
		`opent1d_rate_limit_requests_total{status="rejected"} 1`,
		`opent1d_settings_saves_total{outcome="ok"} 1`,
		`opent1d_settings_saves_total{outcome="error"} 1`,
		`opent1d_scrapes_total{outcome="ok"} 1`,
		`opent1d_scrapes_total{outcome="error"} 1`,
		`opent1d_readings_stored_total 12`,
		`opent1d_active_connections 0`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("missing %q in:\n%s", want, body)
		}
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("unexpected content type %q", ct)
	}
}

func TestMetricsHandlerMethodNotAllowed(t *testing.T) {
	rr := httptest.NewRecorder()
	NewMetrics(DefaultMetricsConfig()).Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/metrics", nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}
}

func TestNilMetricsRecordersAreSafe(t *testing.T) {
	var m *Metrics
	m.RecordSettingsSave(nil)
	m.RecordScrape(1, nil)
}

func TestMetricsMiddleware(t *testing.T) {
	m := NewMetrics(DefaultMetricsConfig())
	var during, duringScrape int64
	h := MetricsMiddleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			duringScrape = m.activeConnections.Load()
		} else {
			during = m.activeConnections.Load()
		}
		w.WriteHeader(http.StatusCreated)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPut, "/api/v1/settings/librelinkup", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if during != 1 || m.activeConnections.Load() != 0 {
		t.Fatalf("active connections during=%d after=%d", during, m.activeConnections.Load())
	}
	if duringScrape != 0 {
		t.Fatalf("metrics scrape counted as active connection: %d", duringScrape)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if c, ok := m.httpRequestCounts["PUT:/api/v1/settings/librelinkup:201"]; !ok || c.Load() != 1 {
		t.Fatalf("request not recorded: %v", m.httpRequestCounts)
	}
	for key := range m.httpRequestCounts {
		if strings.Contains(key, "/metrics") {
			t.Fatalf("metrics endpoint should not be recorded")
		}
	}
}

func TestMetricsMiddlewareNil(t *testing.T) {
	rr := httptest.NewRecorder()
	MetricsMiddleware(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusTeapot {
		t.Fatalf("expected passthrough, got %d", rr.Code)
	}
}

func TestRateLimitMetricsMiddleware(t *testing.T) {
	m := NewMetrics(DefaultMetricsConfig())
	status := http.StatusOK
	h := RateLimitMetricsMiddleware(m, true)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	status = http.StatusTooManyRequests
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if m.rateLimitAllowed.Load() != 1 || m.rateLimitRejected.Load() != 1 {
		t.Fatalf("allowed=%d rejected=%d", m.rateLimitAllowed.Load(), m.rateLimitRejected.Load())
	}
}

func TestDurationCollector(t *testing.T) {
	d := newDurationCollector(3)
	if d.quantile(0.5) != 0 {
		t.Fatalf("empty collector should report 0")
	}
	for _, ms := range []int{100, 200, 300, 400} {
		d.add(time.Duration(ms) * time.Millisecond)
	}
	if d.count() != 3 {
		t.Fatalf("expected window of 3, got %d", d.count())
	}
	if got := d.quantile(0.5); got < 0.299 || got > 0.301 {
		t.Fatalf("median = %f", got)
	}
}

func TestMetricsConcurrentAccess(t *testing.T) {
	m := NewMetrics(DefaultMetricsConfig())
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.RecordHTTPRequest("GET", "/healthz", 200, time.Millisecond)
			m.RecordScrape(1, nil)
		}()
	}
	wg.Wait()
	if m.scrapesOK.Load() != 50 {
		t.Fatalf("expected 50 scrapes, got %d", m.scrapesOK.Load())
	}
}
