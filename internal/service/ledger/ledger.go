package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/nkiryanov/payledger/internal/models"
	"github.com/nkiryanov/payledger/internal/repository"
)

// Read side of the ledger
type Service struct {
	storage repository.Storage
}

func NewService(storage repository.Storage) *Service {
	return &Service{storage: storage}
}

type BalanceSummary struct {
	Organization  models.Organization
	PaymentsCount int64
}

// Return organization with current balance
// Returns apperrors.ErrOrganizationNotFound if no payment for the INN was applied yet
func (s *Service) GetBalance(ctx context.Context, inn string) (models.Organization, error) {
	return s.storage.Organization().GetByINN(ctx, inn)
}

func (s *Service) GetSummary(ctx context.Context, inn string) (BalanceSummary, error) {
	org, err := s.storage.Organization().GetByINN(ctx, inn)
	if err != nil {
		return BalanceSummary{}, err
	}

	count, err := s.storage.Payment().CountByOrganization(ctx, org.ID)
	if err != nil {
		return BalanceSummary{}, fmt.Errorf("can't count payments. Err: %w", err)
	}

	return BalanceSummary{Organization: org, PaymentsCount: count}, nil
}

// Returns apperrors.ErrPaymentNotFound if the operation was never applied
func (s *Service) GetPayment(ctx context.Context, operationID uuid.UUID) (models.Payment, error) {
	return s.storage.Payment().Get(ctx, operationID)
}

func (s *Service) ListPayments(ctx context.Context, opts repository.ListPaymentsOpts) ([]models.Payment, error) {
	return s.storage.Payment().List(ctx, opts)
}

// Balance history of the organization, oldest first
func (s *Service) ListBalanceLog(ctx context.Context, inn string) ([]models.BalanceLogEntry, error) {
	org, err := s.storage.Organization().GetByINN(ctx, inn)
	if err != nil {
		return nil, err
	}

	return s.storage.BalanceLog().ListByOrganization(ctx, org.ID)
}

// Organizations whose balance differs from the sum of their balance log deltas.
// Empty result means the ledger is consistent
func (s *Service) Reconcile(ctx context.Context) ([]models.Discrepancy, error) {
	return s.storage.Organization().ListDiscrepancies(ctx)
}
