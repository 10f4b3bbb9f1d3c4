package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/payledger/internal/apperrors"
	"github.com/nkiryanov/payledger/internal/logger"
	"github.com/nkiryanov/payledger/internal/metrics"
	"github.com/nkiryanov/payledger/internal/models"
	"github.com/nkiryanov/payledger/internal/repository"
)

const (
	defaultMaxRetries      = 3
	defaultInitialInterval = 20 * time.Millisecond
	defaultMaxInterval     = 500 * time.Millisecond
)

type Status string

const (
	StatusNewlyApplied   Status = "newly_applied"
	StatusAlreadyApplied Status = "already_applied"
	StatusFailed         Status = "failed"
)

// Outcome of ingestion. Payment and Balance are set for StatusNewlyApplied only
type Result struct {
	Status  Status
	Payment models.Payment
	Balance decimal.Decimal
}

type Recorder interface {
	ObserveEvent(outcome string)
	ObserveMutation(d time.Duration)
	ObserveRetry()
}

type Coordinator struct {
	// Transient database errors (serialization failures, deadlocks) are retried at most MaxRetries times
	MaxRetries      uint64
	InitialInterval time.Duration

	storage repository.Storage
	guard   *Guard
	mutator *Mutator
	metrics Recorder
	logger  logger.Logger
}

func NewCoordinator(storage repository.Storage, guard *Guard, metrics Recorder, logger logger.Logger) *Coordinator {
	return &Coordinator{
		MaxRetries:      defaultMaxRetries,
		InitialInterval: defaultInitialInterval,

		storage: storage,
		guard:   guard,
		mutator: &Mutator{},
		metrics: metrics,
		logger:  logger,
	}
}

// Ingest applies the payment event at most once.
// Delivering the same operation again (even concurrently) results in StatusAlreadyApplied
func (c *Coordinator) Ingest(ctx context.Context, e models.PaymentEvent) (Result, error) {
	l := c.logger.With("operation_id", e.OperationID, "inn", e.PayerINN)

	processed, err := c.guard.IsProcessed(ctx, e.OperationID)
	if err != nil {
		return c.fail(l, err)
	}
	if processed {
		return c.duplicate(l)
	}

	var (
		payment models.Payment
		entry   models.BalanceLogEntry
	)

	mutate := func() error {
		err := c.storage.InTx(ctx, func(s repository.Storage) error {
			var err error
			payment, entry, err = c.mutator.Apply(ctx, s, e)
			return err
		})

		if err != nil && !isTransient(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, wait time.Duration) {
		c.metrics.ObserveRetry()
		l.Warn("Balance mutation failed with transient error, retrying", "error", err, "wait", wait)
	}

	started := time.Now()
	err = backoff.RetryNotify(mutate, backoff.WithContext(backoff.WithMaxRetries(c.newBackOff(), c.MaxRetries), ctx), notify)
	c.metrics.ObserveMutation(time.Since(started))

	switch {
	case err == nil:
		c.guard.MarkProcessed(ctx, e.OperationID)
		c.metrics.ObserveEvent(metrics.OutcomeApplied)
		l.Info("Payment applied", "amount", payment.Amount, "balance", entry.NewBalance)

		return Result{Status: StatusNewlyApplied, Payment: payment, Balance: entry.NewBalance}, nil

	case errors.Is(err, apperrors.ErrPaymentAlreadyExists):
		c.guard.MarkProcessed(ctx, e.OperationID)
		return c.duplicate(l)

	default:
		return c.fail(l, err)
	}
}

func (c *Coordinator) duplicate(l logger.Logger) (Result, error) {
	c.metrics.ObserveEvent(metrics.OutcomeDuplicate)
	l.Info("Payment already applied, skipped")

	return Result{Status: StatusAlreadyApplied}, nil
}

func (c *Coordinator) fail(l logger.Logger, err error) (Result, error) {
	c.metrics.ObserveEvent(metrics.OutcomeFailed)
	l.Error("Payment processing failed", "error", err)

	return Result{Status: StatusFailed}, fmt.Errorf("%w: %w", apperrors.ErrProcessingFailed, err)
}

func (c *Coordinator) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.InitialInterval
	b.MaxInterval = defaultMaxInterval
	return b
}

// Errors after which the whole transaction may be safely repeated
func isTransient(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgerrcode.IsTransactionRollback(pgErr.Code)
	}

	return pgconn.SafeToRetry(err)
}
