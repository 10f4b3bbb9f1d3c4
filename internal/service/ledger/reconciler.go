package ledger

import (
	"context"
	"time"

	"github.com/nkiryanov/payledger/internal/logger"
	"github.com/nkiryanov/payledger/internal/models"
)

type reconcileService interface {
	Reconcile(ctx context.Context) ([]models.Discrepancy, error)
}

type discrepancyRecorder interface {
	SetDiscrepancies(n int)
}

// Reconciler checks the ledger periodically and reports discrepancies
type Reconciler struct {
	interval time.Duration
	service  reconcileService
	metrics  discrepancyRecorder
	logger   logger.Logger
}

func NewReconciler(interval time.Duration, service reconcileService, metrics discrepancyRecorder, logger logger.Logger) *Reconciler {
	return &Reconciler{
		interval: interval,
		service:  service,
		metrics:  metrics,
		logger:   logger,
	}
}

// Run checks until ctx is done. Returned channel is closed when the reconciler stopped
func (r *Reconciler) Run(ctx context.Context) <-chan struct{} {
	idleStopped := make(chan struct{})
	r.logger.Debug("Starting reconciler", "interval", r.interval)

	go func() {
		defer close(idleStopped)

		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				r.logger.Debug("Reconciler stopped by context")
				return

			case <-ticker.C:
				r.check(ctx)
			}
		}
	}()

	return idleStopped
}

func (r *Reconciler) check(ctx context.Context) {
	discrepancies, err := r.service.Reconcile(ctx)
	if err != nil {
		r.logger.Error("Failed to reconcile ledger", "error", err)
		return
	}

	r.metrics.SetDiscrepancies(len(discrepancies))

	for _, d := range discrepancies {
		r.logger.Error("Balance does not match balance log", "inn", d.INN, "balance", d.Balance, "log_total", d.LogTotal)
	}
}
