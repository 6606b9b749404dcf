package authhandler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"staffdesk/internal/domain/auth"
	"staffdesk/internal/domain/core"
	"staffdesk/internal/transport/http/api"
	"staffdesk/internal/transport/http/middleware"
	"staffdesk/internal/transport/http/shared"
)

type Authenticator interface {
	Authenticate(ctx context.Context, email, password, mfaCode string) (auth.Principal, error)
	IssueToken(p auth.Principal) (auth.Session, error)
	Logout(ctx context.Context, p auth.Principal) error
	SetupMFA(ctx context.Context, p auth.Principal) (auth.MFASetup, error)
	EnableMFA(ctx context.Context, p auth.Principal, code string) error
	DisableMFA(ctx context.Context, p auth.Principal, code string) error
}

type ProfileReader interface {
	Profile(ctx context.Context, p auth.Principal) (*core.Employee, error)
}

type Handler struct {
	Auth     Authenticator
	Profiles ProfileReader
	Log      *zap.Logger
}

func NewHandler(authn Authenticator, profiles ProfileReader, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{Auth: authn, Profiles: profiles, Log: logger.Named("auth")}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/auth/login", h.HandleLogin)
	r.Post("/auth/logout", h.HandleLogout)
	r.Get("/me", h.HandleMe)
	r.Route("/auth/mfa", func(r chi.Router) {
		r.Use(middleware.RequireAuth)
		r.Post("/setup", h.HandleMFASetup)
		r.Post("/enable", h.HandleMFAEnable)
		r.Post("/disable", h.HandleMFADisable)
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	MFACode  string `json:"mfaCode"`
}

type mfaCodeRequest struct {
	Code string `json:"code"`
}

func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	var payload loginRequest
	if !shared.DecodeJSON(w, r, &payload, reqID) {
		return
	}

	principal, err := h.Auth.Authenticate(r.Context(), payload.Email, payload.Password, payload.MFACode)
	if err != nil {
		h.Log.Info("login rejected", zap.String("request_id", reqID), zap.String("client_ip", middleware.ClientIP(r)), zap.Error(err))
		api.FailError(w, err, reqID, h.Log)
		return
	}
	session, err := h.Auth.IssueToken(principal)
	if err != nil {
		api.FailError(w, err, reqID, h.Log)
		return
	}
	h.Log.Info("login succeeded", zap.String("request_id", reqID), zap.String("user_id", principal.UserID), zap.String("role", string(principal.Role)))
	api.Success(w, session, reqID)
}

// HandleLogout revokes the caller's session. Anonymous callers get the same
// success response so logout is safe to repeat.
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	if user, ok := middleware.GetUser(r.Context()); ok {
		if err := h.Auth.Logout(r.Context(), user); err != nil {
			h.Log.Warn("logout session revoke failed", zap.String("user_id", user.UserID), zap.Error(err))
		}
	}
	api.Success(w, map[string]string{"status": "logged_out"}, reqID)
}

func (h *Handler) HandleMe(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
		return
	}
	var profile *core.Employee
	if h.Profiles != nil {
		employee, err := h.Profiles.Profile(r.Context(), user)
		if err != nil {
			api.FailError(w, err, reqID, h.Log)
			return
		}
		profile = employee
	}
	api.Success(w, map[string]any{"user": user, "employee": profile}, reqID)
}

func (h *Handler) HandleMFASetup(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())
	setup, err := h.Auth.SetupMFA(r.Context(), user)
	if err != nil {
		api.FailError(w, err, reqID, h.Log)
		return
	}
	api.Success(w, setup, reqID)
}

func (h *Handler) HandleMFAEnable(w http.ResponseWriter, r *http.Request) {
	h.toggleMFA(w, r, true)
}

func (h *Handler) HandleMFADisable(w http.ResponseWriter, r *http.Request) {
	h.toggleMFA(w, r, false)
}

func (h *Handler) toggleMFA(w http.ResponseWriter, r *http.Request, enable bool) {
	reqID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())
	var payload mfaCodeRequest
	if !shared.DecodeJSON(w, r, &payload, reqID) {
		return
	}

	var err error
	status := "mfa_disabled"
	if enable {
		err = h.Auth.EnableMFA(r.Context(), user, payload.Code)
		status = "mfa_enabled"
	} else {
		err = h.Auth.DisableMFA(r.Context(), user, payload.Code)
	}
	if err != nil {
		api.FailError(w, err, reqID, h.Log)
		return
	}
	api.Success(w, map[string]string{"status": status}, reqID)
}
