package middleware

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"staffdesk/internal/domain/auth"
)

type ctxKey string

const ctxKeyUser ctxKey = "user"

type SessionResolver interface {
	Resolve(ctx context.Context, token string) (auth.Principal, error)
}

// Auth resolves a bearer token into a Principal. Requests without a usable
// token continue anonymously; RequireAuth rejects them where it matters.
func Auth(resolver SessionResolver, logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				next.ServeHTTP(w, r)
				return
			}
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				next.ServeHTTP(w, r)
				return
			}

			principal, err := resolver.Resolve(r.Context(), parts[1])
			if err != nil {
				logger.Debug("bearer token rejected", zap.String("request_id", GetRequestID(r.Context())), zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), principal)))
		})
	}
}

func WithUser(ctx context.Context, p auth.Principal) context.Context {
	return context.WithValue(ctx, ctxKeyUser, p)
}

func GetUser(ctx context.Context) (auth.Principal, bool) {
	user, ok := ctx.Value(ctxKeyUser).(auth.Principal)
	return user, ok
}
