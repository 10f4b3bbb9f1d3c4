package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/payledger/internal/apperrors"
	"github.com/nkiryanov/payledger/internal/logger"
	"github.com/nkiryanov/payledger/internal/metrics"
	"github.com/nkiryanov/payledger/internal/models"
	"github.com/nkiryanov/payledger/internal/repository"
	"github.com/nkiryanov/payledger/internal/repository/postgres"
	"github.com/nkiryanov/payledger/internal/testutil"
)

func newEvent(inn string, amount string) models.PaymentEvent {
	return models.PaymentEvent{
		OperationID:    uuid.New(),
		Amount:         decimal.RequireFromString(amount),
		PayerINN:       inn,
		DocumentNumber: "PAY-328",
		DocumentDate:   time.Date(2024, 4, 27, 21, 0, 0, 0, time.UTC),
	}
}

type recorder struct {
	mu       sync.Mutex
	events   map[string]int
	retries  int
	mutation int
}

func newRecorder() *recorder {
	return &recorder{events: make(map[string]int)}
}

func (r *recorder) ObserveEvent(outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events[outcome]++
}

func (r *recorder) ObserveMutation(time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mutation++
}

func (r *recorder) ObserveRetry() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.retries++
}

// Storage which fails InTx with the error first `failures` times
type flakyStorage struct {
	repository.Storage

	mu       sync.Mutex
	failures int
	err      error
	calls    int
}

func (s *flakyStorage) InTx(ctx context.Context, fn func(repository.Storage) error) error {
	s.mu.Lock()
	s.calls++
	fail := s.calls <= s.failures
	s.mu.Unlock()

	if fail {
		return fmt.Errorf("db error: %w", s.err)
	}
	return s.Storage.InTx(ctx, fn)
}

// Coordinator tests commit to the database, so every test uses own random INN
func TestCoordinator(t *testing.T) {
	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	storage := postgres.NewStorage(pg.Pool)

	newCoordinator := func(storage repository.Storage) (*Coordinator, *recorder) {
		m := newRecorder()
		l := logger.NewNoOpLogger()
		c := NewCoordinator(storage, NewGuard(storage, nil, l), m, l)
		c.InitialInterval = time.Millisecond
		return c, m
	}

	requireLedger := func(t *testing.T, inn string, balance string, countEntries int) {
		t.Helper()

		org, err := storage.Organization().GetByINN(t.Context(), inn)
		require.NoError(t, err)
		require.Equal(t, balance, org.Balance.StringFixed(2), "balance mismatch")

		entries, err := storage.BalanceLog().ListByOrganization(t.Context(), org.ID)
		require.NoError(t, err)
		require.Len(t, entries, countEntries, "each applied payment has to have exactly one log entry")

		total := decimal.Zero
		for _, e := range entries {
			total = total.Add(e.Delta)
			require.True(t, total.Equal(e.NewBalance), "log entry new balance has to be running total of deltas")
		}
		require.True(t, total.Equal(org.Balance), "sum of log deltas has to be equal to balance")
	}

	t.Run("apply new payment", func(t *testing.T) {
		c, m := newCoordinator(storage)
		inn := testutil.RandomINN()
		event := newEvent(inn, "145000.00")

		res, err := c.Ingest(t.Context(), event)

		require.NoError(t, err)
		require.Equal(t, StatusNewlyApplied, res.Status)
		require.Equal(t, event.OperationID, res.Payment.OperationID)
		require.Equal(t, "145000.00", res.Balance.StringFixed(2))
		requireLedger(t, inn, "145000.00", 1)
		require.Equal(t, map[string]int{metrics.OutcomeApplied: 1}, m.events)
		require.Equal(t, 1, m.mutation)
	})

	t.Run("balance holds sum of maximal payments", func(t *testing.T) {
		c, _ := newCoordinator(storage)
		inn := testutil.RandomINN()

		for range 2 {
			res, err := c.Ingest(t.Context(), newEvent(inn, "9999999999999.99"))

			require.NoError(t, err, "balance must not overflow on payments of maximal amount")
			require.Equal(t, StatusNewlyApplied, res.Status)
		}

		requireLedger(t, inn, "19999999999999.98", 2)
	})

	t.Run("resubmitted payment applied once", func(t *testing.T) {
		c, m := newCoordinator(storage)
		inn := testutil.RandomINN()
		event := newEvent(inn, "100.00")

		res, err := c.Ingest(t.Context(), event)
		require.NoError(t, err)
		require.Equal(t, StatusNewlyApplied, res.Status)

		res, err = c.Ingest(t.Context(), event)

		require.NoError(t, err, "duplicate is not an error")
		require.Equal(t, StatusAlreadyApplied, res.Status)
		requireLedger(t, inn, "100.00", 1)
		require.Equal(t, map[string]int{metrics.OutcomeApplied: 1, metrics.OutcomeDuplicate: 1}, m.events)
		require.Equal(t, 1, m.mutation, "duplicate caught by guard must not start mutation")
	})

	t.Run("concurrent duplicates applied once", func(t *testing.T) {
		c, _ := newCoordinator(storage)
		inn := testutil.RandomINN()
		event := newEvent(inn, "50.00")

		const deliveries = 10
		results := make(chan Status, deliveries)
		var wg sync.WaitGroup
		for range deliveries {
			wg.Add(1)
			go func() {
				defer wg.Done()
				res, err := c.Ingest(context.Background(), event)
				if err != nil {
					results <- StatusFailed
					return
				}
				results <- res.Status
			}()
		}
		wg.Wait()
		close(results)

		counts := map[Status]int{}
		for s := range results {
			counts[s]++
		}
		require.Equal(t, map[Status]int{StatusNewlyApplied: 1, StatusAlreadyApplied: deliveries - 1}, counts)
		requireLedger(t, inn, "50.00", 1)

		payments, err := storage.Payment().List(t.Context(), repository.ListPaymentsOpts{PayerINN: inn})
		require.NoError(t, err)
		require.Len(t, payments, 1, "only one payment has to be stored")
	})

	t.Run("concurrent distinct payments not lost", func(t *testing.T) {
		c, _ := newCoordinator(storage)
		inn := testutil.RandomINN()

		const payments = 25
		errs := make(chan error, payments)
		var wg sync.WaitGroup
		for range payments {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := c.Ingest(context.Background(), newEvent(inn, "1.01"))
				errs <- err
			}()
		}
		wg.Wait()
		close(errs)

		for err := range errs {
			require.NoError(t, err)
		}
		requireLedger(t, inn, "25.25", payments)
	})

	t.Run("organization created lazily", func(t *testing.T) {
		c, _ := newCoordinator(storage)
		inn := testutil.RandomINN()

		_, err := storage.Organization().GetByINN(t.Context(), inn)
		require.ErrorIs(t, err, apperrors.ErrOrganizationNotFound)

		res, err := c.Ingest(t.Context(), newEvent(inn, "0.00"))

		require.NoError(t, err)
		require.Equal(t, StatusNewlyApplied, res.Status)
		requireLedger(t, inn, "0.00", 1)
	})

	t.Run("negative amount rejected", func(t *testing.T) {
		c, m := newCoordinator(storage)
		inn := testutil.RandomINN()

		res, err := c.Ingest(t.Context(), newEvent(inn, "-10.00"))

		require.Equal(t, StatusFailed, res.Status)
		require.ErrorIs(t, err, apperrors.ErrProcessingFailed)
		require.ErrorIs(t, err, apperrors.ErrAmountNegative)
		_, err = storage.Organization().GetByINN(t.Context(), inn)
		require.ErrorIs(t, err, apperrors.ErrOrganizationNotFound, "nothing has to be written")
		require.Equal(t, map[string]int{metrics.OutcomeFailed: 1}, m.events)
	})

	t.Run("failed mutation leaves nothing", func(t *testing.T) {
		c, _ := newCoordinator(storage)
		inn := testutil.RandomINN()
		event := newEvent(inn, "10.00")
		event.DocumentNumber = strings.Repeat("N", 51)

		res, err := c.Ingest(t.Context(), event)

		require.Equal(t, StatusFailed, res.Status)
		require.ErrorIs(t, err, apperrors.ErrProcessingFailed)
		_, err = storage.Organization().GetByINN(t.Context(), inn)
		require.ErrorIs(t, err, apperrors.ErrOrganizationNotFound, "organization creation has to be rolled back too")
		exists, err := storage.Payment().Exists(t.Context(), event.OperationID)
		require.NoError(t, err)
		require.False(t, exists)
	})

	t.Run("transient error retried", func(t *testing.T) {
		flaky := &flakyStorage{Storage: storage, failures: 2, err: &pgconn.PgError{Code: pgerrcode.SerializationFailure}}
		c, m := newCoordinator(flaky)
		inn := testutil.RandomINN()

		res, err := c.Ingest(t.Context(), newEvent(inn, "7.00"))

		require.NoError(t, err)
		require.Equal(t, StatusNewlyApplied, res.Status)
		require.Equal(t, 3, flaky.calls)
		require.Equal(t, 2, m.retries)
		requireLedger(t, inn, "7.00", 1)
	})

	t.Run("transient error retries exhausted", func(t *testing.T) {
		flaky := &flakyStorage{Storage: storage, failures: 100, err: &pgconn.PgError{Code: pgerrcode.DeadlockDetected}}
		c, _ := newCoordinator(flaky)

		res, err := c.Ingest(t.Context(), newEvent(testutil.RandomINN(), "7.00"))

		require.Equal(t, StatusFailed, res.Status)
		require.ErrorIs(t, err, apperrors.ErrProcessingFailed)
		require.Equal(t, int(c.MaxRetries)+1, flaky.calls)
	})

	t.Run("permanent error not retried", func(t *testing.T) {
		flaky := &flakyStorage{Storage: storage, failures: 100, err: errors.New("connection refused")}
		c, _ := newCoordinator(flaky)

		res, err := c.Ingest(t.Context(), newEvent(testutil.RandomINN(), "7.00"))

		require.Equal(t, StatusFailed, res.Status)
		require.ErrorIs(t, err, apperrors.ErrProcessingFailed)
		require.Equal(t, 1, flaky.calls)
	})
}
