package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilClientBehavesLikeEmptyCache(t *testing.T) {
	var c *Client
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.False(t, c.Exists(ctx, "k"))
	assert.NoError(t, c.Delete(ctx, "k"))
	assert.NoError(t, c.Ping(ctx))
	assert.NoError(t, c.Close())
}

func TestNewWithoutAddressIsNil(t *testing.T) {
	assert.Nil(t, New("", "", 0))
}

func TestUnreachableServerFailsSafe(t *testing.T) {
	c := New("127.0.0.1:1", "", 0)
	defer c.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	assert.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	got, err := c.Get(ctx, "k")
	assert.NoError(t, err)
	assert.Nil(t, got)
	assert.False(t, c.Exists(ctx, "k"))
	assert.Error(t, c.Ping(ctx))
}

func TestRevocationStoreWithoutRedis(t *testing.T) {
	store := NewRevocationStore(nil)
	ctx := context.Background()

	require.NoError(t, store.Revoke(ctx, "jti-1", time.Hour))
	assert.False(t, store.IsRevoked(ctx, "jti-1"))
	assert.False(t, store.IsRevoked(ctx, ""))
}

func TestWindowCounterWithoutRedis(t *testing.T) {
	_, _, err := NewWindowCounter(nil).Hit(context.Background(), "ip:1", time.Minute)
	assert.Error(t, err)

	var counter *WindowCounter
	_, _, err = counter.Hit(context.Background(), "ip:1", time.Minute)
	assert.Error(t, err)
}
