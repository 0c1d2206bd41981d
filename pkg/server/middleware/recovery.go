package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"openserver-hq/guardrails/pkg/server/api"
	"openserver-hq/guardrails/pkg/telemetry/logging"
)

// Recovery turns a handler panic into a 500 response and logs the stack.
// http.ErrAbortHandler is re-raised so the server aborts the connection.
func Recovery(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				ctx := r.Context()
				logging.FromContext(ctx, logger).ErrorContext(ctx, "panic in handler",
					"error", rec,
					"method", r.Method,
					"path", r.URL.Path,
					"stack", string(debug.Stack()),
				)
				_ = api.WriteError(w, api.NewServerError("An internal error occurred. Please try again later."))
			}()

			next.ServeHTTP(w, r)
		})
	}
}
