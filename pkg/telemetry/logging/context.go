package logging

import (
	"context"
	"log/slog"
)

// Context keys for common log fields.
type contextKey string

// RequestIDKey is the context key for request IDs.
const RequestIDKey contextKey = "request_id"

// TraceIDKey is the attribute carrying the active trace id.
const TraceIDKey = "trace_id"

// WithRequestID adds a request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetRequestID retrieves the request ID from the context.
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// FromContext returns logger annotated with the request id carried by ctx.
// Loggers built by New already read it from the context and are returned
// as is. A nil logger means slog.Default().
func FromContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	if _, ok := logger.Handler().(*contextHandler); ok {
		return logger
	}
	if id := GetRequestID(ctx); id != "" {
		logger = logger.With(string(RequestIDKey), id)
	}
	return logger
}
