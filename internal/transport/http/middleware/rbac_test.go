package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"staffdesk/internal/domain/auth"
)

func TestRequirePermission(t *testing.T) {
	guarded := RequirePermission(auth.PermEmployeesDelete)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		ctx    context.Context
		status int
	}{
		{name: "anonymous", ctx: context.Background(), status: http.StatusUnauthorized},
		{name: "hr", ctx: WithUser(context.Background(), auth.Principal{UserID: "u1", Role: auth.RoleHR}), status: http.StatusForbidden},
		{name: "admin", ctx: WithUser(context.Background(), auth.Principal{UserID: "u2", Role: auth.RoleAdmin}), status: http.StatusNoContent},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodDelete, "/employees/e1", nil).WithContext(tc.ctx)
			rec := httptest.NewRecorder()
			guarded.ServeHTTP(rec, req)
			assert.Equal(t, tc.status, rec.Code)
		})
	}
}

func TestRequireAuth(t *testing.T) {
	guarded := RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	guarded.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"unauthorized"`)

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req = req.WithContext(WithUser(req.Context(), auth.Principal{UserID: "u1", Role: auth.RoleEmployee}))
	guarded.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
