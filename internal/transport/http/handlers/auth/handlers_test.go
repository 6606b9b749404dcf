package authhandler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staffdesk/internal/apperr"
	"staffdesk/internal/domain/auth"
	"staffdesk/internal/domain/core"
	"staffdesk/internal/transport/http/middleware"
)

type fakeAuth struct {
	principal  auth.Principal
	loggedOut  []string
	enabledMFA bool
	mfaCode    string
}

func (f *fakeAuth) Authenticate(_ context.Context, email, password, mfaCode string) (auth.Principal, error) {
	if email == "" || password == "" {
		return auth.Principal{}, apperr.Invalid("payload validation failed", apperr.FieldIssue{Field: "email", Reason: "is required"})
	}
	if email != f.principal.Email || password != "correct-horse" {
		return auth.Principal{}, apperr.Unauthenticated("invalid credentials")
	}
	return f.principal, nil
}

func (f *fakeAuth) IssueToken(p auth.Principal) (auth.Session, error) {
	return auth.Session{Token: "signed." + p.UserID, ExpiresAt: time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC), Principal: p}, nil
}

func (f *fakeAuth) Logout(_ context.Context, p auth.Principal) error {
	f.loggedOut = append(f.loggedOut, p.SessionID)
	return nil
}

func (f *fakeAuth) SetupMFA(context.Context, auth.Principal) (auth.MFASetup, error) {
	return auth.MFASetup{Secret: "JBSWY3DPEHPK3PXP", OTPAuthURL: "otpauth://totp/staffdesk:a@example.com"}, nil
}

func (f *fakeAuth) EnableMFA(_ context.Context, _ auth.Principal, code string) error {
	if code != f.mfaCode {
		return apperr.Invalid("invalid mfa code")
	}
	f.enabledMFA = true
	return nil
}

func (f *fakeAuth) DisableMFA(_ context.Context, _ auth.Principal, code string) error {
	if code != f.mfaCode {
		return apperr.Invalid("invalid mfa code")
	}
	f.enabledMFA = false
	return nil
}

type fakeProfiles struct {
	employee *core.Employee
}

func (f fakeProfiles) Profile(context.Context, auth.Principal) (*core.Employee, error) {
	return f.employee, nil
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

var alice = auth.Principal{UserID: "u-alice", Email: "alice@example.com", Name: "Alice", Role: auth.RoleEmployee, EmployeeID: "e-alice", SessionID: "jti-1"}

func newRouter(f *fakeAuth, profiles ProfileReader, as *auth.Principal) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	if as != nil {
		user := *as
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				next.ServeHTTP(w, req.WithContext(middleware.WithUser(req.Context(), user)))
			})
		})
	}
	NewHandler(f, profiles, nil).RegisterRoutes(r)
	return r
}

func do(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec, env
}

func TestLoginIssuesSession(t *testing.T) {
	router := newRouter(&fakeAuth{principal: alice}, nil, nil)
	rec, env := do(t, router, http.MethodPost, "/auth/login", `{"email":"alice@example.com","password":"correct-horse"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var session struct {
		Token string         `json:"token"`
		User  auth.Principal `json:"user"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &session))
	assert.Equal(t, "signed.u-alice", session.Token)
	assert.Equal(t, auth.RoleEmployee, session.User.Role)
	assert.Equal(t, "e-alice", session.User.EmployeeID)
}

func TestLoginFailures(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode int
		wantErr  string
	}{
		{name: "wrong password", body: `{"email":"alice@example.com","password":"nope"}`, wantCode: http.StatusUnauthorized, wantErr: "unauthorized"},
		{name: "unknown email", body: `{"email":"mallory@example.com","password":"correct-horse"}`, wantCode: http.StatusUnauthorized, wantErr: "unauthorized"},
		{name: "missing fields", body: `{}`, wantCode: http.StatusBadRequest, wantErr: "validation_error"},
		{name: "malformed json", body: `{"email":`, wantCode: http.StatusBadRequest, wantErr: "invalid_payload"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			router := newRouter(&fakeAuth{principal: alice}, nil, nil)
			rec, env := do(t, router, http.MethodPost, "/auth/login", tc.body)
			assert.Equal(t, tc.wantCode, rec.Code)
			require.NotNil(t, env.Error)
			assert.Equal(t, tc.wantErr, env.Error.Code)
		})
	}
}

func TestLoginMessagesDoNotRevealAccountExistence(t *testing.T) {
	router := newRouter(&fakeAuth{principal: alice}, nil, nil)
	_, wrongPassword := do(t, router, http.MethodPost, "/auth/login", `{"email":"alice@example.com","password":"nope"}`)
	_, unknownEmail := do(t, router, http.MethodPost, "/auth/login", `{"email":"mallory@example.com","password":"nope"}`)
	require.NotNil(t, wrongPassword.Error)
	require.NotNil(t, unknownEmail.Error)
	assert.Equal(t, wrongPassword.Error.Message, unknownEmail.Error.Message)
}

func TestLogoutRevokesSession(t *testing.T) {
	f := &fakeAuth{principal: alice}
	rec, _ := do(t, newRouter(f, nil, &alice), http.MethodPost, "/auth/logout", ``)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"jti-1"}, f.loggedOut)

	rec, _ = do(t, newRouter(f, nil, nil), http.MethodPost, "/auth/logout", ``)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, f.loggedOut, 1)
}

func TestMeReturnsPrincipalAndProfile(t *testing.T) {
	profiles := fakeProfiles{employee: &core.Employee{ID: "e-alice", FirstName: "Alice", EmployeeCode: "E-001"}}
	rec, env := do(t, newRouter(&fakeAuth{}, profiles, &alice), http.MethodGet, "/me", ``)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		User     auth.Principal `json:"user"`
		Employee *core.Employee `json:"employee"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &body))
	assert.Equal(t, "u-alice", body.User.UserID)
	require.NotNil(t, body.Employee)
	assert.Equal(t, "E-001", body.Employee.EmployeeCode)
}

func TestMeRequiresAuthentication(t *testing.T) {
	rec, env := do(t, newRouter(&fakeAuth{}, fakeProfiles{}, nil), http.MethodGet, "/me", ``)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "unauthorized", env.Error.Code)
}

func TestMFAFlow(t *testing.T) {
	f := &fakeAuth{mfaCode: "123456"}
	router := newRouter(f, nil, &alice)

	rec, env := do(t, router, http.MethodPost, "/auth/mfa/setup", ``)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), "otpauth://")

	rec, _ = do(t, router, http.MethodPost, "/auth/mfa/enable", `{"code":"000000"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, f.enabledMFA)

	rec, _ = do(t, router, http.MethodPost, "/auth/mfa/enable", `{"code":"123456"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, f.enabledMFA)

	rec, _ = do(t, router, http.MethodPost, "/auth/mfa/disable", `{"code":"123456"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, f.enabledMFA)
}

func TestMFARoutesRequireAuthentication(t *testing.T) {
	rec, _ := do(t, newRouter(&fakeAuth{}, nil, nil), http.MethodPost, "/auth/mfa/setup", ``)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
