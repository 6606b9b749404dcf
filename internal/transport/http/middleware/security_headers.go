package middleware

import "net/http"

var apiHeaders = [][2]string{
	{"X-Content-Type-Options", "nosniff"},
	{"X-Frame-Options", "DENY"},
	{"Referrer-Policy", "no-referrer"},
	{"Cache-Control", "no-store"},
	{"Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'"},
	{"Cross-Origin-Resource-Policy", "same-origin"},
}

const hstsValue = "max-age=63072000; includeSubDomains"

// SecureHeaders marks every response as an unframed, uncached API response.
// HSTS is only sent in production where TLS terminates in front of us.
func SecureHeaders(isProd bool) func(http.Handler) http.Handler {
	set := apiHeaders
	if isProd {
		set = append(append([][2]string(nil), apiHeaders...), [2]string{"Strict-Transport-Security", hstsValue})
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			for _, kv := range set {
				h.Set(kv[0], kv[1])
			}
			next.ServeHTTP(w, r)
		})
	}
}
