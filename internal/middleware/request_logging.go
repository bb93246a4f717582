package middleware

import (
	"context"
	"net/http"
	"time"

	"lab-backend/internal/logger"

	"github.com/google/uuid"
)

const RequestIDHeader = "X-Request-ID"

const requestIDKey contextKey = "request_id"

// responseWriter wraps http.ResponseWriter to capture status code and size
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += n
	return n, err
}

// GetRequestID returns the id assigned by RequestLogging, or ""
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// RequestLogging assigns a request id (reusing a valid incoming X-Request-ID) and writes one
// access log line per request. Health and metrics probes are not logged.
func RequestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		r = r.WithContext(context.WithValue(r.Context(), requestIDKey, id))

		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		if shouldSkipLogging(r.URL.Path) {
			return
		}
		log := logger.WithRequestID(id)
		event := log.Info()
		if wrapped.statusCode >= http.StatusInternalServerError {
			event = log.Error()
		} else if wrapped.statusCode >= http.StatusBadRequest {
			event = log.Warn()
		}
		event.Str("method", r.Method).Str("path", r.URL.Path).Int("status", wrapped.statusCode).
			Int("bytes", wrapped.bytesWritten).Dur("duration", time.Since(start)).
			Str("remote", r.RemoteAddr).Msg("request")
	})
}

func shouldSkipLogging(path string) bool {
	switch path {
	case "/health", "/health/ready", "/metrics":
		return true
	}
	return false
}
