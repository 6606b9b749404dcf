package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client wraps redis.Client and treats an unreachable server as a miss.
// A nil *Client is valid and behaves like an empty cache.
type Client struct {
	client *redis.Client
}

func New(addr, password string, db int) *Client {
	if addr == "" {
		return nil
	}
	return &Client{client: redis.NewClient(&redis.Options{
		Addr:        addr,
		Password:    password,
		DB:          db,
		DialTimeout: 2 * time.Second,
		ReadTimeout: time.Second,
	})}
}

func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	if c == nil || c.client == nil {
		return nil, nil
	}
	res, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, nil
	}
	return res, nil
}

func (c *Client) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if c == nil || c.client == nil {
		return nil
	}
	_ = c.client.Set(ctx, key, value, ttl).Err()
	return nil
}

func (c *Client) Exists(ctx context.Context, key string) bool {
	if c == nil || c.client == nil {
		return false
	}
	n, err := c.client.Exists(ctx, key).Result()
	if err != nil {
		return false
	}
	return n > 0
}

func (c *Client) Delete(ctx context.Context, key string) error {
	if c == nil || c.client == nil {
		return nil
	}
	_ = c.client.Del(ctx, key).Err()
	return nil
}

// Ping reports connectivity for readiness checks. A nil client is ready.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Ping(ctx).Err()
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}
