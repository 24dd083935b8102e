package middleware

import (
	"net/http"
)

// RequestSizeLimit enforces a maximum request body size. Callback payloads
// are small; anything oversized is not a legitimate provider callback.
func RequestSizeLimit(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

			next.ServeHTTP(w, r)
		})
	}
}
