// Package middleware provides HTTP middleware for the API: structured
// request logging with correlation IDs and per-client rate limiting.
package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/welldanyogia/mailclean/internal/logger"
)

// CorrelationIDHeader carries the correlation ID back to the caller.
const CorrelationIDHeader = "X-Correlation-ID"

// LoggingMiddleware provides structured logging for HTTP requests
type LoggingMiddleware struct {
	logger *slog.Logger
}

// NewLoggingMiddleware creates a new LoggingMiddleware instance
func NewLoggingMiddleware(log *slog.Logger) *LoggingMiddleware {
	if log == nil {
		log = slog.Default()
	}
	return &LoggingMiddleware{
		logger: log,
	}
}

// Handler returns an HTTP middleware that logs one entry per request. Only
// request metadata is logged, never the body.
func (m *LoggingMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		correlationID := resolveCorrelationID(r)
		r = r.WithContext(logger.SetCorrelationID(r.Context(), correlationID))
		w.Header().Set(CorrelationIDHeader, correlationID)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		attrs := []any{
			slog.String("correlation_id", correlationID),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Int64("request_bytes", r.ContentLength),
			slog.Int("response_bytes", ww.BytesWritten()),
			slog.Duration("duration", time.Since(start)),
			slog.String("remote_addr", r.RemoteAddr),
			slog.String("user_agent", r.UserAgent()),
		}

		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			attrs = append(attrs, slog.String("x_forwarded_for", xff))
		}

		switch {
		case ww.Status() >= 500:
			m.logger.Error("HTTP request completed with server error", attrs...)
		case ww.Status() >= 400:
			m.logger.Warn("HTTP request completed with client error", attrs...)
		default:
			m.logger.Info("HTTP request completed", attrs...)
		}
	})
}

// resolveCorrelationID prefers an ID supplied by the caller, then the one
// chi's RequestID middleware assigned, and generates one otherwise.
func resolveCorrelationID(r *http.Request) string {
	if id := r.Header.Get(CorrelationIDHeader); id != "" && len(id) <= 128 {
		return id
	}
	if id := middleware.GetReqID(r.Context()); id != "" {
		return id
	}
	return uuid.NewString()
}

// StructuredLogger returns a chi-compatible logger that uses slog
func StructuredLogger(log *slog.Logger) func(next http.Handler) http.Handler {
	return NewLoggingMiddleware(log).Handler
}
