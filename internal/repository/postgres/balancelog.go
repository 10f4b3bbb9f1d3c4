package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nkiryanov/payledger/internal/apperrors"
	"github.com/nkiryanov/payledger/internal/models"
)

type BalanceLogRepo struct {
	DB DBTX
}

const createBalanceLogEntry = `-- name: CreateBalanceLogEntry
INSERT INTO balance_log_entries (organization_id, delta, new_balance, payment_id)
VALUES ($1, $2, $3, $4)
RETURNING id, organization_id, delta, new_balance, payment_id, created_at
`

func (r *BalanceLogRepo) Create(ctx context.Context, e models.BalanceLogEntry) (models.BalanceLogEntry, error) {
	rows, _ := r.DB.Query(ctx, createBalanceLogEntry, e.OrganizationID, e.Delta, e.NewBalance, e.PaymentID)
	entry, err := pgx.CollectOneRow(rows, rowToBalanceLogEntry)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation && pgErr.ConstraintName == "balance_log_entries_organization_id_fkey" {
			return entry, apperrors.ErrOrganizationNotFound
		}

		return entry, fmt.Errorf("db error: %w", err)
	}

	return entry, nil
}

const listBalanceLogByOrganization = `-- name: ListBalanceLogByOrganization
SELECT id, organization_id, delta, new_balance, payment_id, created_at
FROM balance_log_entries
WHERE organization_id = $1
ORDER BY created_at, id
`

func (r *BalanceLogRepo) ListByOrganization(ctx context.Context, orgID uuid.UUID) ([]models.BalanceLogEntry, error) {
	rows, _ := r.DB.Query(ctx, listBalanceLogByOrganization, orgID)
	entries, err := pgx.CollectRows(rows, rowToBalanceLogEntry)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return entries, nil
}

func rowToBalanceLogEntry(row pgx.CollectableRow) (models.BalanceLogEntry, error) {
	var e models.BalanceLogEntry
	err := row.Scan(&e.ID, &e.OrganizationID, &e.Delta, &e.NewBalance, &e.PaymentID, &e.CreatedAt)
	return e, err
}
