package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestMetricsMiddlewarePassesThrough(t *testing.T) {
	handler := Metrics(DefaultConfig())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("short and stout"))
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/stats", nil))

	if rec.Code != http.StatusTeapot {
		t.Errorf("status = %d, want handler status preserved", rec.Code)
	}
	if rec.Body.String() != "short and stout" {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"/api/stats", "/api/stats"},
		{"/api/sync/folder", "/api/sync/folder"},
		{"/api/sync/folder/deep/nested/segments", "/api/sync/folder/{path}"},
		{"/", "/"},
	}
	for _, tt := range tests {
		if got := normalizePath(tt.in); got != tt.want {
			t.Errorf("normalizePath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestShouldSkip(t *testing.T) {
	cfg := Config{SkipPaths: []string{"/metrics"}, LogHealthChecks: false}

	if !shouldSkip("/metrics", cfg) {
		t.Error("want /metrics skipped")
	}
	if !shouldSkip("/healthz", cfg) {
		t.Error("want health checks skipped when logging disabled")
	}
	if shouldSkip("/api/stats", cfg) {
		t.Error("want API paths recorded")
	}

	cfg.LogHealthChecks = true
	if shouldSkip("/healthz", cfg) {
		t.Error("want health checks recorded when logging enabled")
	}
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Forwarded-For", "10.1.2.3, 172.16.0.1")
	if got := clientIP(r); got != "10.1.2.3" {
		t.Errorf("clientIP = %q, want first forwarded hop", got)
	}

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Real-IP", "10.9.8.7")
	if got := clientIP(r); got != "10.9.8.7" {
		t.Errorf("clientIP = %q", got)
	}
}
