package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5"

	"staffdesk/internal/platform/querier"
)

const HeaderIdempotencyKey = "Idempotency-Key"

var ErrIdempotencyConflict = errors.New("idempotency key conflicts with existing request")

// IdempotencyStore remembers the response of a create call per user, endpoint
// and Idempotency-Key so a retried submission does not create a second record.
type IdempotencyStore struct {
	db querier.Querier
}

func NewIdempotencyStore(db querier.Querier) *IdempotencyStore {
	return &IdempotencyStore{db: db}
}

func IdempotencyKey(r *http.Request) string {
	key := strings.TrimSpace(r.Header.Get(HeaderIdempotencyKey))
	if len(key) > 200 {
		return ""
	}
	return key
}

func RequestHash(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// Check returns the stored response for key, or found=false when the key is
// new. Reusing a key with a different payload is ErrIdempotencyConflict.
func (s *IdempotencyStore) Check(ctx context.Context, userID, endpoint, key, requestHash string) (json.RawMessage, bool, error) {
	if s == nil || s.db == nil || key == "" {
		return nil, false, nil
	}
	var storedHash string
	var stored json.RawMessage
	err := s.db.QueryRow(ctx, `
    SELECT request_hash, response_json
    FROM idempotency_keys
    WHERE user_id = $1 AND key = $2 AND endpoint = $3
  `, userID, key, endpoint).Scan(&storedHash, &stored)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if storedHash != requestHash {
		return nil, false, ErrIdempotencyConflict
	}
	return stored, true, nil
}

func (s *IdempotencyStore) Save(ctx context.Context, userID, endpoint, key, requestHash string, response json.RawMessage) error {
	if s == nil || s.db == nil || key == "" {
		return nil
	}
	tag, err := s.db.Exec(ctx, `
    INSERT INTO idempotency_keys (user_id, key, endpoint, request_hash, response_json)
    VALUES ($1, $2, $3, $4, $5)
    ON CONFLICT (user_id, key, endpoint)
    DO UPDATE SET response_json = EXCLUDED.response_json
    WHERE idempotency_keys.request_hash = EXCLUDED.request_hash
  `, userID, key, endpoint, requestHash, response)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrIdempotencyConflict
	}
	return nil
}
