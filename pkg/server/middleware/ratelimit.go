package middleware

import (
	"fmt"
	"math"
	"net"
	"net/http"
	"strconv"

	"openserver-hq/guardrails/pkg/server/api"
	"openserver-hq/guardrails/pkg/server/ratelimit"
)

// RateLimit rejects requests with 429 once the client's bucket is empty.
// Clients are keyed by remote IP. A nil limiter disables the check.
func RateLimit(l *ratelimit.Limiter) Middleware {
	return func(next http.Handler) http.Handler {
		if l == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok, wait := l.Allow(clientIP(r))
			if ok {
				next.ServeHTTP(w, r)
				return
			}
			seconds := max(1, int(math.Ceil(wait.Seconds())))
			w.Header().Set("Retry-After", strconv.Itoa(seconds))
			_ = api.WriteError(w, api.NewErrorResponse(
				fmt.Sprintf("rate limit exceeded, retry in %ds", seconds),
				api.ErrorTypeRateLimit, "", api.CodeRateLimited))
		})
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
