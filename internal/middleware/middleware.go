package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"footage-indexer/internal/logging"
	"footage-indexer/internal/metrics"
)

// responseWriter wraps http.ResponseWriter to capture status and size.
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int64
	wroteHeader  bool
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
		rw.ResponseWriter.WriteHeader(code)
	}
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.wroteHeader {
		rw.wroteHeader = true
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += int64(n)
	return n, err
}

var healthCheckPaths = map[string]bool{
	"/healthz": true,
	"/readyz":  true,
}

// Config tunes request logging and metrics recording.
type Config struct {
	// SkipPaths are never recorded (by prefix).
	SkipPaths       []string
	LogHealthChecks bool
}

// DefaultConfig returns the default middleware configuration.
func DefaultConfig() Config {
	return Config{
		SkipPaths:       []string{"/metrics"},
		LogHealthChecks: true,
	}
}

// Metrics returns a middleware recording Prometheus request metrics.
func Metrics(config Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, p := range config.SkipPaths {
				if strings.HasPrefix(r.URL.Path, p) {
					next.ServeHTTP(w, r)
					return
				}
			}

			wrapped := newResponseWriter(w)
			start := time.Now()
			next.ServeHTTP(wrapped, r)
			duration := time.Since(start).Seconds()

			path := normalizePath(r.URL.Path)
			status := strconv.Itoa(wrapped.statusCode)
			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
		})
	}
}

// Logging returns a middleware writing one access log line per request.
func Logging(config Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if shouldSkip(r.URL.Path, config) {
				next.ServeHTTP(w, r)
				return
			}

			wrapped := newResponseWriter(w)
			start := time.Now()
			next.ServeHTTP(wrapped, r)

			logging.Info("%s %s %d %dB %v %s",
				r.Method, r.URL.Path, wrapped.statusCode, wrapped.bytesWritten,
				time.Since(start).Round(time.Millisecond), clientIP(r))
		})
	}
}

func shouldSkip(path string, config Config) bool {
	for _, p := range config.SkipPaths {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return !config.LogHealthChecks && healthCheckPaths[path]
}

// normalizePath caps path cardinality for metric labels.
func normalizePath(path string) string {
	parts := strings.Split(path, "/")
	for i := range parts {
		if i > 3 {
			parts[i] = "{path}"
			return strings.Join(parts[:i+1], "/")
		}
	}
	return path
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	return r.RemoteAddr
}
