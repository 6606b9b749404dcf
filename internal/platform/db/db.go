package db

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"staffdesk/internal/platform/config"
)

type Pool = pgxpool.Pool

// Connect opens the pool and retries the first ping with exponential backoff
// until cfg.DBConnectTimeout elapses.
func Connect(ctx context.Context, cfg config.Config, logger *zap.Logger) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 250 * time.Millisecond
	policy.MaxInterval = 5 * time.Second
	policy.MaxElapsedTime = cfg.DBConnectTimeout

	attempt := 0
	ping := func() error {
		attempt++
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if err := pool.Ping(pingCtx); err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			logger.Warn("database not reachable yet", zap.Int("attempt", attempt), zap.Error(err))
			return err
		}
		return nil
	}
	if err := backoff.Retry(ping, backoff.WithContext(policy, ctx)); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}
