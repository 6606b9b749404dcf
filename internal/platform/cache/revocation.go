package cache

import (
	"context"
	"time"
)

const revokedPrefix = "staffdesk:revoked:"

// RevocationStore records logged-out token ids until they would have expired anyway.
type RevocationStore struct {
	cache *Client
}

func NewRevocationStore(c *Client) *RevocationStore {
	return &RevocationStore{cache: c}
}

func (s *RevocationStore) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	if tokenID == "" || ttl <= 0 {
		return nil
	}
	return s.cache.Set(ctx, revokedPrefix+tokenID, []byte("1"), ttl)
}

func (s *RevocationStore) IsRevoked(ctx context.Context, tokenID string) bool {
	if tokenID == "" {
		return false
	}
	return s.cache.Exists(ctx, revokedPrefix+tokenID)
}
