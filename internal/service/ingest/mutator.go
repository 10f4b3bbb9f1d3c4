package ingest

import (
	"context"
	"fmt"

	"github.com/nkiryanov/payledger/internal/apperrors"
	"github.com/nkiryanov/payledger/internal/models"
	"github.com/nkiryanov/payledger/internal/repository"
)

// Mutator applies one payment to the ledger.
// Storage passed to Apply has to be transactional: either all rows are written or none
type Mutator struct{}

func (m *Mutator) Apply(ctx context.Context, s repository.Storage, e models.PaymentEvent) (models.Payment, models.BalanceLogEntry, error) {
	var (
		payment models.Payment
		entry   models.BalanceLogEntry
	)

	if e.Amount.IsNegative() {
		return payment, entry, apperrors.ErrAmountNegative
	}

	// Row lock is held until the transaction ends
	// so mutations of the same organization are applied one by one
	org, err := s.Organization().GetOrCreateForUpdate(ctx, e.PayerINN)
	if err != nil {
		return payment, entry, fmt.Errorf("can't lock organization. Err: %w", err)
	}

	payment, err = s.Payment().Create(ctx, models.Payment{
		OperationID:    e.OperationID,
		OrganizationID: org.ID,
		Amount:         e.Amount,
		PayerINN:       e.PayerINN,
		DocumentNumber: e.DocumentNumber,
		DocumentDate:   e.DocumentDate,
	})
	if err != nil {
		return payment, entry, fmt.Errorf("can't create payment. Err: %w", err)
	}

	balance, err := s.Organization().AddBalance(ctx, org.ID, payment.Amount)
	if err != nil {
		return payment, entry, fmt.Errorf("can't update balance. Err: %w", err)
	}

	entry, err = s.BalanceLog().Create(ctx, models.BalanceLogEntry{
		OrganizationID: org.ID,
		Delta:          payment.Amount,
		NewBalance:     balance,
		PaymentID:      &payment.OperationID,
	})
	if err != nil {
		return payment, entry, fmt.Errorf("can't write balance log. Err: %w", err)
	}

	return payment, entry, nil
}
