package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/payledger/internal/logger"
	"github.com/nkiryanov/payledger/internal/metrics"
	"github.com/nkiryanov/payledger/internal/models"
	"github.com/nkiryanov/payledger/internal/repository/postgres"
	"github.com/nkiryanov/payledger/internal/service/ingest"
	"github.com/nkiryanov/payledger/internal/testutil"
)

func execute(t *testing.T, env map[string]string, args ...string) (string, error) {
	t.Helper()

	cmd := rootCmd(func(key string) string { return env[key] })
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(t.Context())
	return out.String(), err
}

func Test_ledgerctl(t *testing.T) {
	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	storage := postgres.NewStorage(pg.Pool)
	l := logger.NewNoOpLogger()
	coordinator := ingest.NewCoordinator(storage, ingest.NewGuard(storage, nil, l), metrics.New(), l)

	inn := testutil.RandomINN()
	for _, amount := range []string{"100.00", "0.50"} {
		_, err := coordinator.Ingest(t.Context(), models.PaymentEvent{
			OperationID:    uuid.New(),
			Amount:         decimal.RequireFromString(amount),
			PayerINN:       inn,
			DocumentNumber: "PAY-1",
			DocumentDate:   time.Now(),
		})
		require.NoError(t, err)
	}

	t.Run("migrate", func(t *testing.T) {
		out, err := execute(t, nil, "migrate", "--database", pg.DSN)

		require.NoError(t, err)
		require.Equal(t, "Schema version: 1 (dirty: false)\n", out)
	})

	t.Run("database from env", func(t *testing.T) {
		out, err := execute(t, map[string]string{"DATABASE_URI": pg.DSN}, "balance", inn)

		require.NoError(t, err)
		require.Contains(t, out, "Balance:  100.50")
		require.Contains(t, out, "Payments: 2")
	})

	t.Run("balance unknown organization", func(t *testing.T) {
		_, err := execute(t, nil, "balance", "0000000000", "-d", pg.DSN)

		require.ErrorContains(t, err, "organization 0000000000 not found")
	})

	t.Run("no database", func(t *testing.T) {
		_, err := execute(t, nil, "reconcile")

		require.ErrorContains(t, err, "database connection string is required")
	})

	t.Run("reconcile", func(t *testing.T) {
		out, err := execute(t, nil, "reconcile", "-d", pg.DSN)
		require.NoError(t, err)
		require.Equal(t, "Ledger is consistent\n", out)

		_, err = pg.Pool.Exec(context.Background(), "UPDATE organizations SET balance = balance + 1 WHERE inn = $1", inn)
		require.NoError(t, err)

		out, err = execute(t, nil, "reconcile", "-d", pg.DSN)
		require.ErrorIs(t, err, errLedgerInconsistent)
		require.Contains(t, out, "INN "+inn+": balance 101.50, balance log total 100.50")
	})
}
