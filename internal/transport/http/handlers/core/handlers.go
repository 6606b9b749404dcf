package corehandler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"staffdesk/internal/apperr"
	"staffdesk/internal/domain/auth"
	"staffdesk/internal/domain/core"
	"staffdesk/internal/transport/http/api"
	"staffdesk/internal/transport/http/middleware"
	"staffdesk/internal/transport/http/shared"
)

type EmployeeService interface {
	CreateEmployee(ctx context.Context, p auth.Principal, in core.CreateEmployeeInput) (core.CreatedEmployee, error)
	ListEmployees(ctx context.Context, p auth.Principal, filter core.ListFilter) ([]core.Employee, error)
	GetEmployee(ctx context.Context, p auth.Principal, employeeID string) (core.Employee, error)
	UpdateEmployee(ctx context.Context, p auth.Principal, employeeID string, upd core.EmployeeUpdate) (core.Employee, error)
	DeleteEmployee(ctx context.Context, p auth.Principal, employeeID string) error
}

type Handler struct {
	Service     EmployeeService
	Idempotency shared.IdempotencyStore
	Log         *zap.Logger
}

func NewHandler(service EmployeeService, idempotency shared.IdempotencyStore, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{Service: service, Idempotency: idempotency, Log: logger.Named("employees")}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/employees", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermEmployeesList)).Get("/", h.handleListEmployees)
		r.With(middleware.RequirePermission(auth.PermEmployeesCreate)).Post("/", h.handleCreateEmployee)
		r.Route("/{employeeID}", func(r chi.Router) {
			r.With(middleware.RequireAuth).Get("/", h.handleGetEmployee)
			r.With(middleware.RequireAuth).Put("/", h.handleUpdateEmployee)
			r.With(middleware.RequirePermission(auth.PermEmployeesDelete)).Delete("/", h.handleDeleteEmployee)
		})
	})
}

type createEmployeeRequest struct {
	core.CreateEmployeeInput
	HireDate string `json:"hireDate"`
}

type updateEmployeeRequest struct {
	core.EmployeeUpdate
	HireDate *string `json:"hireDate"`
}

func (h *Handler) handleListEmployees(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())
	page := shared.ParsePagination(r, shared.DefaultPageLimit, shared.MaxPageLimit)

	employees, err := h.Service.ListEmployees(r.Context(), user, core.ListFilter{
		Department: r.URL.Query().Get("department"),
		Limit:      page.Limit,
		Offset:     page.Offset,
	})
	if err != nil {
		api.FailError(w, err, reqID, h.Log)
		return
	}
	api.Success(w, employees, reqID)
}

func (h *Handler) handleCreateEmployee(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())

	body, ok := shared.ReadBody(w, r, reqID)
	if !ok {
		return
	}
	var payload createEmployeeRequest
	if !shared.UnmarshalJSON(w, body, &payload, reqID) {
		return
	}
	v := apperr.NewValidator()
	payload.CreateEmployeeInput.HireDate = shared.OptionalDate(v, "hireDate", payload.HireDate)
	if err := v.Err(); err != nil {
		api.FailError(w, err, reqID, h.Log)
		return
	}

	sub, handled := shared.BeginSubmission(w, r, h.Idempotency, user.UserID, "employees.create", body, h.Log)
	if handled {
		return
	}
	created, err := h.Service.CreateEmployee(r.Context(), user, payload.CreateEmployeeInput)
	if err != nil {
		api.FailError(w, err, reqID, h.Log)
		return
	}
	sub.Remember(r.Context(), created)
	api.Created(w, created, reqID)
}

func (h *Handler) handleGetEmployee(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())

	employee, err := h.Service.GetEmployee(r.Context(), user, chi.URLParam(r, "employeeID"))
	if err != nil {
		api.FailError(w, err, reqID, h.Log)
		return
	}
	api.Success(w, employee, reqID)
}

func (h *Handler) handleUpdateEmployee(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())

	var payload updateEmployeeRequest
	if !shared.DecodeJSON(w, r, &payload, reqID) {
		return
	}
	upd := payload.EmployeeUpdate
	if payload.HireDate != nil {
		v := apperr.NewValidator()
		upd.HireDate = shared.OptionalDate(v, "hireDate", *payload.HireDate)
		if err := v.Err(); err != nil {
			api.FailError(w, err, reqID, h.Log)
			return
		}
	}

	employee, err := h.Service.UpdateEmployee(r.Context(), user, chi.URLParam(r, "employeeID"), upd)
	if err != nil {
		api.FailError(w, err, reqID, h.Log)
		return
	}
	api.Success(w, employee, reqID)
}

func (h *Handler) handleDeleteEmployee(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())

	if err := h.Service.DeleteEmployee(r.Context(), user, chi.URLParam(r, "employeeID")); err != nil {
		api.FailError(w, err, reqID, h.Log)
		return
	}
	api.Success(w, map[string]string{"status": "deleted"}, reqID)
}
