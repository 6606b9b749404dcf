package middleware

import (
	"net/http"
	"runtime/debug"

	"go.uber.org/zap"

	"staffdesk/internal/transport/http/api"
)

func Recoverer(logger *zap.Logger) func(http.Handler) http.Handler {
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
				logger.Error("panic recovered",
					zap.Any("panic", rec),
					zap.String("request_id", GetRequestID(r.Context())),
					zap.ByteString("stack", debug.Stack()),
				)
				api.Fail(w, http.StatusInternalServerError, "internal_error", "internal server error", GetRequestID(r.Context()))
			}()
			next.ServeHTTP(w, r)
		})
	}
}
