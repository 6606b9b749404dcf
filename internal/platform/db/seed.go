package db

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"staffdesk/internal/domain/auth"
	"staffdesk/internal/platform/config"
	"staffdesk/internal/platform/querier"
)

// Seed makes sure a bootstrap ADMIN account exists so the first employees
// can be created through the API.
func Seed(ctx context.Context, q querier.Querier, cfg config.Config, logger *zap.Logger) error {
	email := strings.TrimSpace(cfg.SeedAdminEmail)
	if email == "" || strings.TrimSpace(cfg.SeedAdminPassword) == "" {
		logger.Info("seed admin not configured, skipping")
		return nil
	}

	var id string
	err := q.QueryRow(ctx, "SELECT id FROM users WHERE email = $1", email).Scan(&id)
	if err == nil {
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	hash, err := auth.HashPassword(cfg.SeedAdminPassword)
	if err != nil {
		return err
	}
	name := strings.TrimSpace(cfg.SeedAdminName)
	if name == "" {
		name = "Administrator"
	}
	if err := q.QueryRow(ctx,
		"INSERT INTO users (email, name, password_hash, role) VALUES ($1, $2, $3, $4) RETURNING id",
		email, name, hash, string(auth.RoleAdmin),
	).Scan(&id); err != nil {
		return err
	}
	logger.Info("seeded admin user", zap.String("user_id", id))
	return nil
}
