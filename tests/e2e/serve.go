package e2e

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/payledger/internal/handlers"
	"github.com/nkiryanov/payledger/internal/logger"
	"github.com/nkiryanov/payledger/internal/metrics"
	"github.com/nkiryanov/payledger/internal/repository/postgres"
	"github.com/nkiryanov/payledger/internal/repository/redis"
	"github.com/nkiryanov/payledger/internal/service/ingest"
	"github.com/nkiryanov/payledger/internal/service/ledger"
)

const WebhookSecret = "e2e-secret"

type Services struct {
	Ingest *ingest.Coordinator
	Ledger *ledger.Service
	Cache  *redis.ProcessedCache
}

// Run server with all production services on the pool (not in transaction)
// Requests run concurrently on separate connections, so data is committed: use unique INN in every test
func Serve(dbpool *pgxpool.Pool, redisURL string, t *testing.T, fn func(srvURL string, services Services)) {
	t.Helper()

	l := logger.NewNoOpLogger()
	m := metrics.New()

	cache, err := redis.NewProcessedCache(t.Context(), redisURL, time.Hour)
	require.NoError(t, err, "processed cache should be connected without errors")
	defer cache.Close() // nolint:errcheck

	storage := postgres.NewStorage(dbpool)
	coordinator := ingest.NewCoordinator(storage, ingest.NewGuard(storage, cache, l), m, l)
	ledgerService := ledger.NewService(storage)

	router := handlers.NewRouter(
		handlers.RouterConfig{WebhookSecret: WebhookSecret, Metrics: m.Handler()},
		coordinator,
		ledgerService,
		dbpool,
		l,
	)

	srv := httptest.NewServer(router)
	defer srv.Close()

	fn(srv.URL, Services{
		Ingest: coordinator,
		Ledger: ledgerService,
		Cache:  cache,
	})
}
