package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/payledger/internal/models"
)

type OrganizationRepo interface {
	// Return organization with the INN and lock its row until the transaction ends
	// Create organization with zero balance if it does not exist yet
	GetOrCreateForUpdate(ctx context.Context, inn string) (models.Organization, error)

	// Get organization by INN
	// If not found must return apperrors.ErrOrganizationNotFound
	GetByINN(ctx context.Context, inn string) (models.Organization, error)

	// Increment balance and return the new one
	AddBalance(ctx context.Context, orgID uuid.UUID, delta decimal.Decimal) (decimal.Decimal, error)

	// Organizations which balance does not match the sum of theirs balance log deltas
	ListDiscrepancies(ctx context.Context) ([]models.Discrepancy, error)
}

type PaymentRepo interface {
	// Create payment
	// If payment with the operation id exists must return apperrors.ErrPaymentAlreadyExists
	Create(ctx context.Context, p models.Payment) (models.Payment, error)

	// Check whether payment with the operation id exists
	Exists(ctx context.Context, operationID uuid.UUID) (bool, error)

	// Get payment by operation id
	// If not found must return apperrors.ErrPaymentNotFound
	Get(ctx context.Context, operationID uuid.UUID) (models.Payment, error)

	List(ctx context.Context, opts ListPaymentsOpts) ([]models.Payment, error)

	CountByOrganization(ctx context.Context, orgID uuid.UUID) (int64, error)
}

type BalanceLogRepo interface {
	Create(ctx context.Context, entry models.BalanceLogEntry) (models.BalanceLogEntry, error)

	// List organization entries, oldest first
	ListByOrganization(ctx context.Context, orgID uuid.UUID) ([]models.BalanceLogEntry, error)
}

type Storage interface {
	Organization() OrganizationRepo
	Payment() PaymentRepo
	BalanceLog() BalanceLogRepo

	// Run fn in transaction: commit if fn returns nil, rollback otherwise
	InTx(ctx context.Context, fn func(Storage) error) error
}
