package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nkiryanov/payledger/internal/db"
	"github.com/nkiryanov/payledger/internal/handlers"
	"github.com/nkiryanov/payledger/internal/logger"
	"github.com/nkiryanov/payledger/internal/metrics"
	"github.com/nkiryanov/payledger/internal/repository/postgres"
	"github.com/nkiryanov/payledger/internal/repository/redis"
	"github.com/nkiryanov/payledger/internal/service/ingest"
	"github.com/nkiryanov/payledger/internal/service/ledger"
)

type ServerApp struct {
	ListenAddr string
	Handler    http.Handler

	pool       *pgxpool.Pool
	cache      *redis.ProcessedCache // nil if redis not configured
	reconciler *ledger.Reconciler    // nil if disabled
	logger     logger.Logger
}

func NewServerApp(ctx context.Context, c *Config) (*ServerApp, error) {
	// Initialize logger
	logger, err := logger.New(c.Environment, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("error while initializing logger: %w", err)
	}

	// Connect to the database and run migrations
	pool, err := db.ConnectAndMigrate(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("error while connecting to db. Err: %w", err)
	}

	app := &ServerApp{
		ListenAddr: c.ListenAddr,
		pool:       pool,
		logger:     logger,
	}

	// Keep interface nil if redis is not configured
	var processedCache ingest.ProcessedCache
	if c.RedisURL != "" {
		app.cache, err = redis.NewProcessedCache(ctx, c.RedisURL, c.ProcessedTTL)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("error while connecting to redis. Err: %w", err)
		}
		processedCache = app.cache
	}

	// Initialize repositories
	storage := postgres.NewStorage(pool)

	// Initialize services
	m := metrics.New()
	guard := ingest.NewGuard(storage, processedCache, logger)
	coordinator := ingest.NewCoordinator(storage, guard, m, logger)
	ledgerService := ledger.NewService(storage)

	if c.ReconcileInterval > 0 {
		app.reconciler = ledger.NewReconciler(c.ReconcileInterval, ledgerService, m, logger)
	}

	app.Handler = handlers.NewRouter(
		handlers.RouterConfig{
			WebhookSecret: c.WebhookSecret,
			Metrics:       m.Handler(),
		},
		coordinator,
		ledgerService,
		pool,
		logger,
	)

	return app, nil
}

// Run starts http server and closes gracefully on context cancellation
func (s *ServerApp) Run(ctx context.Context) error {
	defer s.close()

	httpServer := &http.Server{
		Addr:              s.ListenAddr,
		Handler:           s.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	idleConnsClosed := make(chan struct{})
	srvCtx, srvCtxCancel := context.WithCancel(ctx)
	defer srvCtxCancel()

	var reconcilerStopped <-chan struct{}
	if s.reconciler != nil {
		reconcilerStopped = s.reconciler.Run(srvCtx)
	} else {
		stopped := make(chan struct{})
		close(stopped)
		reconcilerStopped = stopped
	}

	go func() {
		<-srvCtx.Done()

		timeoutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(timeoutCtx); errors.Is(err, context.DeadlineExceeded) {
			s.logger.Error("HTTP server shutdown timeout exceeded, forcing shutdown...")
		}
		s.logger.Info("HTTP server stopped")
		close(idleConnsClosed)
	}()

	// Listen and serve until context is cancelled; then close gracefully connections
	s.logger.Info("Starting server", "address", s.ListenAddr)
	err := httpServer.ListenAndServe()
	srvCtxCancel()
	<-idleConnsClosed
	<-reconcilerStopped

	return err
}

func (s *ServerApp) close() {
	if s.cache != nil {
		if err := s.cache.Close(); err != nil {
			s.logger.Warn("Failed to close redis client", "error", err)
		}
	}
	s.pool.Close()
}
