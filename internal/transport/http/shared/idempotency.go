package shared

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"staffdesk/internal/transport/http/api"
	"staffdesk/internal/transport/http/middleware"
)

type IdempotencyStore interface {
	Check(ctx context.Context, userID, endpoint, key, requestHash string) (json.RawMessage, bool, error)
	Save(ctx context.Context, userID, endpoint, key, requestHash string, response json.RawMessage) error
}

// Submission identifies one create call for replay purposes.
type Submission struct {
	store    IdempotencyStore
	userID   string
	endpoint string
	key      string
	hash     string
	logger   *zap.Logger
}

// BeginSubmission replays a stored 201 response when the Idempotency-Key was
// already used with the same payload. It returns handled=true when a response
// has been written.
func BeginSubmission(w http.ResponseWriter, r *http.Request, store IdempotencyStore, userID, endpoint string, body []byte, logger *zap.Logger) (Submission, bool) {
	if logger == nil {
		logger = zap.NewNop()
	}
	sub := Submission{
		store:    store,
		userID:   userID,
		endpoint: endpoint,
		key:      middleware.IdempotencyKey(r),
		hash:     middleware.RequestHash(body),
		logger:   logger,
	}
	if sub.key == "" || store == nil {
		return sub, false
	}
	reqID := middleware.GetRequestID(r.Context())
	stored, found, err := store.Check(r.Context(), userID, endpoint, sub.key, sub.hash)
	if errors.Is(err, middleware.ErrIdempotencyConflict) {
		api.Fail(w, http.StatusConflict, "idempotency_conflict", "idempotency key was used with a different payload", reqID)
		return sub, true
	}
	if err != nil {
		logger.Warn("idempotency check failed", zap.String("endpoint", endpoint), zap.String("request_id", reqID), zap.Error(err))
		return sub, false
	}
	if found {
		api.Created(w, stored, reqID)
		return sub, true
	}
	return sub, false
}

// Remember stores data as the response for this submission's key.
func (s Submission) Remember(ctx context.Context, data any) {
	if s.key == "" || s.store == nil {
		return
	}
	payload, err := json.Marshal(data)
	if err != nil {
		s.logger.Warn("idempotency response marshal failed", zap.String("endpoint", s.endpoint), zap.Error(err))
		return
	}
	if err := s.store.Save(ctx, s.userID, s.endpoint, s.key, s.hash, payload); err != nil {
		s.logger.Warn("idempotency save failed", zap.String("endpoint", s.endpoint), zap.Error(err))
	}
}
