package middleware

import (
	"net/http"

	"staffdesk/internal/transport/http/api"
)

// BodyLimit caps request bodies on writes. A declared Content-Length above the
// cap is refused before the handler runs.
func BodyLimit(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if maxBytes > 0 && (r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch) {
				if r.ContentLength > maxBytes {
					api.Fail(w, http.StatusRequestEntityTooLarge, "payload_too_large", "request body too large", GetRequestID(r.Context()))
					return
				}
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}
