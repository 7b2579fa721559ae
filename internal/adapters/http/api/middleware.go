package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/okian/repdao/pkg/metrics"
)

// MetricsMiddleware wraps HTTP handlers to record Prometheus metrics under
// endpoint.
func MetricsMiddleware(next http.HandlerFunc, endpoint string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		durationMs := float64(time.Since(start).Milliseconds())
		code := strconv.Itoa(status)

		metrics.RecordHTTPRequest(endpoint, r.Method, code)
		metrics.RecordHTTPRequestDuration(endpoint, r.Method, code, durationMs)

		if status >= http.StatusBadRequest {
			errorType := errorTypeFor(status)
			metrics.RecordErrorByEndpoint(endpoint, r.Method, errorType)
			metrics.RecordErrorByType(errorType, severityFor(status))
			metrics.RecordErrorLatency("http", errorType, durationMs)
		}
	}
}

// errorTypeFor buckets an error status for the error metrics.
func errorTypeFor(status int) string {
	switch {
	case status >= http.StatusInternalServerError:
		return "server_error"
	case status == http.StatusTooManyRequests:
		return "cooldown"
	case status == http.StatusNotFound:
		return "not_found"
	case status == http.StatusConflict:
		return "conflict"
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return "auth"
	case status >= http.StatusBadRequest:
		return "client_error"
	default:
		return "unknown"
	}
}

func severityFor(status int) string {
	switch {
	case status >= http.StatusInternalServerError:
		return "high"
	case status == http.StatusTooManyRequests, status == http.StatusConflict:
		return "low"
	case status >= http.StatusBadRequest:
		return "medium"
	default:
		return "low"
	}
}
