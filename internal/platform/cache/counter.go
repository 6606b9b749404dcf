package cache

import (
	"context"
	"errors"
	"time"
)

const counterPrefix = "staffdesk:ratelimit:"

var errNoRedis = errors.New("redis not configured")

// WindowCounter counts hits per key in fixed windows held in redis, so every
// instance behind a load balancer shares the same budget.
type WindowCounter struct {
	cache *Client
}

func NewWindowCounter(c *Client) *WindowCounter {
	return &WindowCounter{cache: c}
}

// Hit increments key and returns the count in the current window and the time
// until the window closes. Errors mean the caller should count locally.
func (w *WindowCounter) Hit(ctx context.Context, key string, window time.Duration) (int, time.Duration, error) {
	if w == nil || w.cache == nil || w.cache.client == nil {
		return 0, 0, errNoRedis
	}
	full := counterPrefix + key
	pipe := w.cache.client.TxPipeline()
	incr := pipe.Incr(ctx, full)
	pipe.ExpireNX(ctx, full, window)
	ttl := pipe.PTTL(ctx, full)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, 0, err
	}
	reset := ttl.Val()
	if reset <= 0 {
		reset = window
	}
	return int(incr.Val()), reset, nil
}
