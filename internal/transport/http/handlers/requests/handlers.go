package requestshandler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"staffdesk/internal/apperr"
	"staffdesk/internal/domain/auth"
	"staffdesk/internal/domain/fundproxy"
	"staffdesk/internal/domain/requests"
	"staffdesk/internal/transport/http/api"
	"staffdesk/internal/transport/http/middleware"
	"staffdesk/internal/transport/http/shared"
)

type RequestService interface {
	CreateVacation(ctx context.Context, p auth.Principal, in requests.VacationInput) (requests.Request, error)
	CreateFund(ctx context.Context, p auth.Principal, in requests.FundInput) (requests.Request, error)
	CreateGeneral(ctx context.Context, p auth.Principal, in requests.GeneralInput) (requests.Request, error)
	List(ctx context.Context, p auth.Principal, kind requests.Kind, filter requests.ListFilter) ([]requests.Request, error)
	Get(ctx context.Context, p auth.Principal, kind requests.Kind, id string) (requests.Request, error)
	Transition(ctx context.Context, p auth.Principal, kind requests.Kind, id string, in requests.TransitionInput) (requests.Request, error)
	Delete(ctx context.Context, p auth.Principal, kind requests.Kind, id string) error
	Assign(ctx context.Context, p auth.Principal, id, assigneeUserID string) (requests.Request, error)
	ApprovedVacation(ctx context.Context, p auth.Principal, id string) (requests.Request, error)
}

type FundSubmitter interface {
	Submit(ctx context.Context, principal auth.Principal, requestID, contentType string, body []byte) (fundproxy.Response, error)
}

type Handler struct {
	Service      RequestService
	Funds        FundSubmitter
	Idempotency  shared.IdempotencyStore
	Organisation string
	Log          *zap.Logger
	now          func() time.Time
}

func NewHandler(service RequestService, funds FundSubmitter, idempotency shared.IdempotencyStore, organisation string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		Service:      service,
		Funds:        funds,
		Idempotency:  idempotency,
		Organisation: organisation,
		Log:          logger.Named("requests"),
		now:          time.Now,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/requests", func(r chi.Router) {
		r.Use(middleware.RequireAuth)
		for _, kind := range requests.AllKinds {
			r.Route("/"+string(kind), func(r chi.Router) {
				r.Post("/", h.handleCreate(kind))
				r.Get("/", h.handleList(kind))
				r.Get("/{requestID}", h.handleGet(kind))
				r.With(middleware.RequirePermission(auth.KindPermission(string(kind), "transition"))).Put("/{requestID}", h.handleTransition(kind))
				r.Delete("/{requestID}", h.handleDelete(kind))

				switch kind {
				case requests.KindVacation:
					r.Get("/{requestID}/slip", h.handleSlip)
				case requests.KindFund:
					r.Post("/submit", h.handleFundSubmit)
				case requests.KindGeneral:
					r.With(middleware.RequirePermission(auth.PermGeneralAssign)).Put("/{requestID}/assign", h.handleAssign)
				}
			})
		}
	})
}

type vacationPayload struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
	Days      *int   `json:"days"`
	Reason    string `json:"reason"`
}

type assignPayload struct {
	AssigneeID string `json:"assigneeId"`
}

func (h *Handler) handleCreate(kind requests.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reqID := middleware.GetRequestID(r.Context())
		user, _ := middleware.GetUser(r.Context())

		body, ok := shared.ReadBody(w, r, reqID)
		if !ok {
			return
		}
		create, ok := h.decodeCreate(w, kind, body, reqID)
		if !ok {
			return
		}

		sub, handled := shared.BeginSubmission(w, r, h.Idempotency, user.UserID, "requests."+string(kind)+".create", body, h.Log)
		if handled {
			return
		}
		created, err := create(r.Context(), user)
		if err != nil {
			api.FailError(w, err, reqID, h.Log)
			return
		}
		sub.Remember(r.Context(), created)
		api.Created(w, created, reqID)
	}
}

type createFunc func(ctx context.Context, p auth.Principal) (requests.Request, error)

// decodeCreate parses the kind-specific payload and returns the bound
// service call. It writes the error response itself when decoding fails.
func (h *Handler) decodeCreate(w http.ResponseWriter, kind requests.Kind, body []byte, reqID string) (createFunc, bool) {
	switch kind {
	case requests.KindVacation:
		var payload vacationPayload
		if !shared.UnmarshalJSON(w, body, &payload, reqID) {
			return nil, false
		}
		v := apperr.NewValidator()
		in := requests.VacationInput{
			StartDate: shared.OptionalDate(v, "startDate", payload.StartDate),
			EndDate:   shared.OptionalDate(v, "endDate", payload.EndDate),
			Days:      payload.Days,
			Reason:    payload.Reason,
		}
		if err := v.Err(); err != nil {
			api.FailError(w, err, reqID, h.Log)
			return nil, false
		}
		return func(ctx context.Context, p auth.Principal) (requests.Request, error) {
			return h.Service.CreateVacation(ctx, p, in)
		}, true
	case requests.KindFund:
		var in requests.FundInput
		if !shared.UnmarshalJSON(w, body, &in, reqID) {
			return nil, false
		}
		return func(ctx context.Context, p auth.Principal) (requests.Request, error) {
			return h.Service.CreateFund(ctx, p, in)
		}, true
	default:
		var in requests.GeneralInput
		if !shared.UnmarshalJSON(w, body, &in, reqID) {
			return nil, false
		}
		return func(ctx context.Context, p auth.Principal) (requests.Request, error) {
			return h.Service.CreateGeneral(ctx, p, in)
		}, true
	}
}

func (h *Handler) handleList(kind requests.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reqID := middleware.GetRequestID(r.Context())
		user, _ := middleware.GetUser(r.Context())
		page := shared.ParsePagination(r, shared.DefaultPageLimit, shared.MaxPageLimit)

		list, err := h.Service.List(r.Context(), user, kind, requests.ListFilter{
			EmployeeID: r.URL.Query().Get("employeeId"),
			Status:     r.URL.Query().Get("status"),
			Limit:      page.Limit,
			Offset:     page.Offset,
		})
		if err != nil {
			api.FailError(w, err, reqID, h.Log)
			return
		}
		api.Success(w, list, reqID)
	}
}

func (h *Handler) handleGet(kind requests.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reqID := middleware.GetRequestID(r.Context())
		user, _ := middleware.GetUser(r.Context())

		req, err := h.Service.Get(r.Context(), user, kind, chi.URLParam(r, "requestID"))
		if err != nil {
			api.FailError(w, err, reqID, h.Log)
			return
		}
		api.Success(w, req, reqID)
	}
}

func (h *Handler) handleTransition(kind requests.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reqID := middleware.GetRequestID(r.Context())
		user, _ := middleware.GetUser(r.Context())

		var payload requests.TransitionInput
		if !shared.DecodeJSON(w, r, &payload, reqID) {
			return
		}
		updated, err := h.Service.Transition(r.Context(), user, kind, chi.URLParam(r, "requestID"), payload)
		if err != nil {
			api.FailError(w, err, reqID, h.Log)
			return
		}
		api.Success(w, updated, reqID)
	}
}

func (h *Handler) handleDelete(kind requests.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reqID := middleware.GetRequestID(r.Context())
		user, _ := middleware.GetUser(r.Context())

		if err := h.Service.Delete(r.Context(), user, kind, chi.URLParam(r, "requestID")); err != nil {
			api.FailError(w, err, reqID, h.Log)
			return
		}
		api.Success(w, map[string]string{"status": "deleted"}, reqID)
	}
}

func (h *Handler) handleAssign(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())

	var payload assignPayload
	if !shared.DecodeJSON(w, r, &payload, reqID) {
		return
	}
	updated, err := h.Service.Assign(r.Context(), user, chi.URLParam(r, "requestID"), payload.AssigneeID)
	if err != nil {
		api.FailError(w, err, reqID, h.Log)
		return
	}
	api.Success(w, updated, reqID)
}

func (h *Handler) handleSlip(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())

	req, err := h.Service.ApprovedVacation(r.Context(), user, chi.URLParam(r, "requestID"))
	if err != nil {
		api.FailError(w, err, reqID, h.Log)
		return
	}
	data, err := requests.RenderSlip(h.Organisation, req, h.now())
	if err != nil {
		api.FailError(w, err, reqID, h.Log)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", requests.SlipFilename(req)))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		h.Log.Warn("vacation slip write failed", zap.String("request_id", reqID), zap.String("vacation_id", req.ID), zap.Error(err))
	}
}

// handleFundSubmit relays the body to the fund service and passes its reply
// through unchanged.
func (h *Handler) handleFundSubmit(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())

	body, ok := shared.ReadBody(w, r, reqID)
	if !ok {
		return
	}
	if h.Funds == nil {
		api.Fail(w, http.StatusServiceUnavailable, "fund_service_unavailable", "fund service is not configured", reqID)
		return
	}

	resp, err := h.Funds.Submit(r.Context(), user, reqID, r.Header.Get("Content-Type"), body)
	switch {
	case errors.Is(err, fundproxy.ErrUnavailable):
		api.Fail(w, http.StatusServiceUnavailable, "fund_service_unavailable", "fund service is not configured", reqID)
		return
	case errors.Is(err, fundproxy.ErrUpstream):
		h.Log.Warn("fund service call failed", zap.String("request_id", reqID), zap.Error(err))
		api.Fail(w, http.StatusBadGateway, "fund_service_error", "fund service request failed", reqID)
		return
	case err != nil:
		api.FailError(w, err, reqID, h.Log)
		return
	}

	contentType := resp.ContentType
	if contentType == "" {
		contentType = "application/json"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(resp.StatusCode)
	if _, err := w.Write(resp.Body); err != nil {
		h.Log.Warn("fund service relay write failed", zap.String("request_id", reqID), zap.Error(err))
	}
}
