package middleware

import "net/http"

// BodyLimit caps request bodies at limit bytes. Reads past the limit fail
// with *http.MaxBytesError, which api.DecodeJSON reports as 413. A limit of
// zero or less disables the cap.
func BodyLimit(limit int64) Middleware {
	return func(next http.Handler) http.Handler {
		if limit <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, limit)
			next.ServeHTTP(w, r)
		})
	}
}
