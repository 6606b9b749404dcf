package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"staffdesk/internal/app/server"
	"staffdesk/internal/platform/config"
	"staffdesk/internal/platform/logger"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("load .env: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	zl, err := logger.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	defer func() { _ = zl.Sync() }()
	zap.ReplaceGlobals(zl)

	if err := run(cfg, zl); err != nil {
		zl.Fatal("server exited with error", zap.Error(err))
	}
}

func run(cfg config.Config, zl *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := server.New(ctx, cfg, zl)
	if err != nil {
		return fmt.Errorf("startup: %w", err)
	}
	defer app.Close()

	return app.Run(ctx)
}
