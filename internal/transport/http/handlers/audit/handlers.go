package audithandler

import (
	"context"
	"encoding/csv"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"staffdesk/internal/domain/audit"
	"staffdesk/internal/domain/auth"
	"staffdesk/internal/transport/http/api"
	"staffdesk/internal/transport/http/middleware"
	"staffdesk/internal/transport/http/shared"
)

const maxExportRows = 5000

type EventReader interface {
	Count(ctx context.Context, filter audit.Filter) (int, error)
	List(ctx context.Context, filter audit.Filter, includeDetails bool, limit, offset int) ([]audit.Event, error)
}

type Handler struct {
	Service EventReader
	Log     *zap.Logger
}

func NewHandler(service EventReader, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{Service: service, Log: logger.Named("audit")}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/audit", func(r chi.Router) {
		r.Use(middleware.RequirePermission(auth.PermAuditRead))
		r.Get("/", h.handleListEvents)
		r.Get("/export", h.handleExportEvents)
	})
}

func filterFromQuery(r *http.Request) audit.Filter {
	q := r.URL.Query()
	return audit.Filter{
		Action:     q.Get("action"),
		EntityType: q.Get("entityType"),
		EntityID:   q.Get("entityId"),
		ActorUser:  q.Get("actorUserId"),
	}
}

func (h *Handler) handleListEvents(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	page := shared.ParsePagination(r, 100, 500)
	includeDetails := r.URL.Query().Get("includeDetails") == "true"
	filter := filterFromQuery(r)

	total, err := h.Service.Count(r.Context(), filter)
	if err != nil {
		h.Log.Warn("audit count failed", zap.String("request_id", reqID), zap.Error(err))
	}
	events, err := h.Service.List(r.Context(), filter, includeDetails, page.Limit, page.Offset)
	if err != nil {
		api.FailError(w, err, reqID, h.Log)
		return
	}

	page.WriteTotal(w, total)
	api.Success(w, events, reqID)
}

func (h *Handler) handleExportEvents(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	events, err := h.Service.List(r.Context(), filterFromQuery(r), false, maxExportRows, 0)
	if err != nil {
		api.FailError(w, err, reqID, h.Log)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename=audit-events.csv")
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"id", "actor_user_id", "action", "entity_type", "entity_id", "request_id", "ip", "created_at"}); err != nil {
		h.Log.Warn("audit export header failed", zap.Error(err))
	}
	for _, evt := range events {
		if err := writer.Write([]string{evt.ID, evt.ActorID, evt.Action, evt.EntityType, evt.EntityID, evt.RequestID, evt.IP, evt.CreatedAt.UTC().Format(time.RFC3339)}); err != nil {
			h.Log.Warn("audit export row failed", zap.Error(err))
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		h.Log.Warn("audit export flush failed", zap.Error(err))
	}
}
