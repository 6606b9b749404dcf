package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"staffdesk/internal/domain/audit"
	"staffdesk/internal/domain/auth"
	"staffdesk/internal/domain/core"
	"staffdesk/internal/domain/fundproxy"
	"staffdesk/internal/domain/requests"
	"staffdesk/internal/platform/cache"
	"staffdesk/internal/platform/config"
	"staffdesk/internal/platform/crypto"
	"staffdesk/internal/platform/db"
	"staffdesk/internal/platform/email"
	"staffdesk/internal/platform/events"
	"staffdesk/internal/platform/jobs"
	"staffdesk/internal/platform/metrics"
	"staffdesk/internal/platform/querier"
	"staffdesk/internal/transport/http/api"
	audithandler "staffdesk/internal/transport/http/handlers/audit"
	authhandler "staffdesk/internal/transport/http/handlers/auth"
	corehandler "staffdesk/internal/transport/http/handlers/core"
	requestshandler "staffdesk/internal/transport/http/handlers/requests"
	"staffdesk/internal/transport/http/middleware"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators the router needs. Publisher, Tokens, Limits
// and Mailer may be nil; the features they back are then disabled or local.
type Deps struct {
	Config    config.Config
	Logger    *zap.Logger
	DB        querier.Querier
	Health    Pinger
	Publisher events.Publisher
	Tokens    auth.TokenStore
	Limits    middleware.Counter
	Mailer    email.Mailer
	Metrics   *metrics.Collector
}

type App struct {
	Config   config.Config
	Logger   *zap.Logger
	DB       *pgxpool.Pool
	Cache    *cache.Client
	Producer *events.Producer
	Router   http.Handler
}

// New connects to every backing service, applies migrations and the seed
// admin, and builds the router.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	pool, err := db.Connect(ctx, cfg, logger.Named("db"))
	if err != nil {
		return nil, err
	}
	app := &App{Config: cfg, Logger: logger, DB: pool}

	if cfg.RunMigrations {
		if err := db.Migrate(ctx, pool); err != nil {
			app.Close()
			return nil, fmt.Errorf("migrations failed: %w", err)
		}
	}
	if cfg.RunSeed {
		if err := db.Seed(ctx, pool, cfg, logger.Named("seed")); err != nil {
			app.Close()
			return nil, fmt.Errorf("seed failed: %w", err)
		}
	}

	app.Cache = cache.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if app.Cache != nil {
		if err := app.Cache.Ping(ctx); err != nil {
			logger.Warn("redis not reachable, session revocation is not enforced", zap.Error(err))
		}
	} else {
		logger.Info("redis not configured, session revocation disabled")
	}

	var publisher events.Publisher = events.Noop{}
	if len(cfg.KafkaBrokers) > 0 {
		app.Producer = events.NewProducer(cfg.KafkaBrokers, cfg.RequestEventsTopic, logger)
		publisher = app.Producer
	}

	router, err := NewRouter(Deps{
		Config:    cfg,
		Logger:    logger,
		DB:        pool,
		Health:    pool,
		Publisher: publisher,
		Tokens:    cache.NewRevocationStore(app.Cache),
		Limits:    cache.NewWindowCounter(app.Cache),
		Mailer:    email.New(cfg, logger),
		Metrics:   metrics.New(),
	})
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Router = router
	return app, nil
}

func NewRouter(d Deps) (http.Handler, error) {
	cfg := d.Config
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	collector := d.Metrics
	if collector == nil {
		collector = metrics.New()
	}

	sealer, err := crypto.New(cfg.DataEncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("data encryption key: %w", err)
	}

	auditService := audit.New(d.DB)
	authService := auth.NewService(auth.NewStore(d.DB), d.Tokens, sealer, auth.Options{
		Secret:     cfg.JWTSecret,
		SessionTTL: cfg.SessionTTL,
		MFAIssuer:  cfg.MFAIssuer,
	})
	coreService := core.NewService(core.NewStore(d.DB), auditService, d.Publisher, logger)
	requestService := requests.NewService(requests.NewStore(d.DB), auditService, d.Publisher, d.Mailer, collector, logger)
	funds := fundproxy.New(fundproxy.Options{
		URL:          cfg.FundServiceURL,
		Secret:       cfg.FundAssertionSecret,
		Timeout:      cfg.FundServiceTimeout,
		MaxBodyBytes: cfg.FundServiceMaxBodyBytes,
	}, logger)
	idempotency := middleware.NewIdempotencyStore(d.DB)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(logger))
	router.Use(middleware.Recoverer(logger))
	router.Use(middleware.Metrics(collector))
	router.Use(middleware.SecureHeaders(cfg.IsProduction()))
	router.Use(middleware.BodyLimit(cfg.MaxBodyBytes))
	router.Use(middleware.Auth(authService, logger))
	router.Use(middleware.SensitiveMutationRateLimit(cfg.RateLimitPerMinute, time.Minute, d.Limits))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	router.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if d.Health == nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := d.Health.Ping(ctx); err != nil {
			logger.Warn("readiness check failed", zap.Error(err))
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	if cfg.MetricsEnabled {
		router.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
			api.Success(w, collector.Snapshot(), middleware.GetRequestID(r.Context()))
		})
	}

	router.Route("/api/v1", func(r chi.Router) {
		authhandler.NewHandler(authService, coreService, logger).RegisterRoutes(r)
		corehandler.NewHandler(coreService, idempotency, logger).RegisterRoutes(r)
		requestshandler.NewHandler(requestService, funds, idempotency, cfg.SlipOrganisationName, logger).RegisterRoutes(r)
		audithandler.NewHandler(auditService, logger).RegisterRoutes(r)
	})

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		api.Fail(w, http.StatusNotFound, "not_found", "route not found", middleware.GetRequestID(r.Context()))
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		api.Fail(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed", middleware.GetRequestID(r.Context()))
	})

	return router, nil
}

// Run serves until ctx is cancelled, then drains in-flight requests for up
// to ShutdownGracePeriod.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.Config.Addr,
		Handler:           a.Router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	if a.DB != nil {
		jobs.New(a.DB, a.Logger).Start(ctx, a.Config.MaintenanceInterval, a.Config.IdempotencyRetention)
	}

	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info("staffdesk server listening", zap.String("addr", a.Config.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.Logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.ShutdownGracePeriod)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}

func (a *App) Close() {
	if a.Producer != nil {
		a.Producer.Close()
	}
	if a.Cache != nil {
		if err := a.Cache.Close(); err != nil {
			a.Logger.Warn("redis close failed", zap.Error(err))
		}
	}
	if a.DB != nil {
		a.DB.Close()
	}
}
