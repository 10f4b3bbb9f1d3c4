package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/payledger/internal/apperrors"
	"github.com/nkiryanov/payledger/internal/models"
)

type OrganizationRepo struct {
	DB DBTX
}

// Concurrent inserts with the same INN wait for each other on the unique index,
// so the following SELECT ... FOR UPDATE always finds the row
const createOrganization = `-- name: CreateOrganization if not exists
INSERT INTO organizations (id, inn, balance)
VALUES ($1, $2, 0)
ON CONFLICT (inn) DO NOTHING
`

const getOrganizationForUpdate = `-- name: GetOrganizationForUpdate
SELECT id, inn, balance, created_at
FROM organizations
WHERE inn = $1
FOR UPDATE
`

func (r *OrganizationRepo) GetOrCreateForUpdate(ctx context.Context, inn string) (models.Organization, error) {
	_, err := r.DB.Exec(ctx, createOrganization, uuid.New(), inn)
	if err != nil {
		return models.Organization{}, fmt.Errorf("db error: %w", err)
	}

	rows, _ := r.DB.Query(ctx, getOrganizationForUpdate, inn)
	org, err := pgx.CollectOneRow(rows, rowToOrganization)
	if err != nil {
		return org, fmt.Errorf("db error: %w", err)
	}

	return org, nil
}

const getOrganizationByINN = `-- name: GetOrganizationByINN
SELECT id, inn, balance, created_at
FROM organizations
WHERE inn = $1
`

func (r *OrganizationRepo) GetByINN(ctx context.Context, inn string) (models.Organization, error) {
	rows, _ := r.DB.Query(ctx, getOrganizationByINN, inn)
	org, err := pgx.CollectOneRow(rows, rowToOrganization)

	switch {
	case err == nil:
		return org, nil
	case errors.Is(err, pgx.ErrNoRows):
		return org, apperrors.ErrOrganizationNotFound
	default:
		return org, fmt.Errorf("db error: %w", err)
	}
}

const addBalance = `-- name: AddBalance
UPDATE organizations
SET balance = balance + $2
WHERE id = $1
RETURNING balance
`

func (r *OrganizationRepo) AddBalance(ctx context.Context, orgID uuid.UUID, delta decimal.Decimal) (decimal.Decimal, error) {
	rows, _ := r.DB.Query(ctx, addBalance, orgID, delta)
	balance, err := pgx.CollectOneRow(rows, pgx.RowTo[decimal.Decimal])

	switch {
	case err == nil:
		return balance, nil
	case errors.Is(err, pgx.ErrNoRows):
		return balance, apperrors.ErrOrganizationNotFound
	default:
		return balance, fmt.Errorf("db error: %w", err)
	}
}

const listDiscrepancies = `-- name: ListDiscrepancies
SELECT o.inn, o.balance, COALESCE(SUM(l.delta), 0) AS log_total
FROM organizations o
LEFT JOIN balance_log_entries l ON l.organization_id = o.id
GROUP BY o.id, o.inn, o.balance
HAVING o.balance <> COALESCE(SUM(l.delta), 0)
ORDER BY o.inn
`

func (r *OrganizationRepo) ListDiscrepancies(ctx context.Context) ([]models.Discrepancy, error) {
	rows, _ := r.DB.Query(ctx, listDiscrepancies)
	discrepancies, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Discrepancy, error) {
		var d models.Discrepancy
		err := row.Scan(&d.INN, &d.Balance, &d.LogTotal)
		return d, err
	})
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return discrepancies, nil
}

func rowToOrganization(row pgx.CollectableRow) (models.Organization, error) {
	var o models.Organization
	err := row.Scan(&o.ID, &o.INN, &o.Balance, &o.CreatedAt)
	return o, err
}
