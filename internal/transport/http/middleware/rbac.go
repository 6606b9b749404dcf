package middleware

import (
	"net/http"

	"staffdesk/internal/apperr"
	"staffdesk/internal/domain/auth"
	"staffdesk/internal/transport/http/api"
)

// RequireAuth rejects anonymous requests with 401.
func RequireAuth(next http.Handler) http.Handler {
	return guard(nil)(next)
}

// RequirePermission guards a route with the central permission matrix.
// Missing identity is 401; a role outside the matrix entry is 403.
func RequirePermission(permission auth.Permission) func(http.Handler) http.Handler {
	return guard(func(p auth.Principal) bool {
		return auth.Require(p.Role, permission) == nil
	})
}

func guard(allowed func(auth.Principal) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := GetRequestID(r.Context())
			user, ok := GetUser(r.Context())
			switch {
			case !ok:
				api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
			case allowed != nil && !allowed(user):
				api.Fail(w, http.StatusForbidden, apperr.Code(apperr.KindPermissionDenied), "insufficient permissions", reqID)
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}
