package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nkiryanov/payledger/internal/apperrors"
	"github.com/nkiryanov/payledger/internal/models"
	"github.com/nkiryanov/payledger/internal/repository"
)

const paymentsPkey = "payments_pkey"

type PaymentRepo struct {
	DB DBTX
}

// The primary key check is atomic with the insert: of concurrent inserts with the same
// operation id exactly one wins, others wait for it and fail with unique violation
const createPayment = `-- name: CreatePayment
INSERT INTO payments (operation_id, organization_id, amount, payer_inn, document_number, document_date)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING operation_id, organization_id, amount, payer_inn, document_number, document_date, created_at
`

func (r *PaymentRepo) Create(ctx context.Context, p models.Payment) (models.Payment, error) {
	rows, _ := r.DB.Query(ctx, createPayment, p.OperationID, p.OrganizationID, p.Amount, p.PayerINN, p.DocumentNumber, p.DocumentDate)
	payment, err := pgx.CollectOneRow(rows, rowToPayment)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation && pgErr.ConstraintName == paymentsPkey {
			return payment, apperrors.ErrPaymentAlreadyExists
		}

		return payment, fmt.Errorf("db error: %w", err)
	}

	return payment, nil
}

const paymentExists = `-- name: PaymentExists
SELECT EXISTS (SELECT 1 FROM payments WHERE operation_id = $1)
`

func (r *PaymentRepo) Exists(ctx context.Context, operationID uuid.UUID) (bool, error) {
	rows, _ := r.DB.Query(ctx, paymentExists, operationID)
	exists, err := pgx.CollectOneRow(rows, pgx.RowTo[bool])
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}

	return exists, nil
}

const getPayment = `-- name: GetPayment
SELECT operation_id, organization_id, amount, payer_inn, document_number, document_date, created_at
FROM payments
WHERE operation_id = $1
`

func (r *PaymentRepo) Get(ctx context.Context, operationID uuid.UUID) (models.Payment, error) {
	rows, _ := r.DB.Query(ctx, getPayment, operationID)
	payment, err := pgx.CollectOneRow(rows, rowToPayment)

	switch {
	case err == nil:
		return payment, nil
	case errors.Is(err, pgx.ErrNoRows):
		return payment, apperrors.ErrPaymentNotFound
	default:
		return payment, fmt.Errorf("db error: %w", err)
	}
}

// Columns allowed in ORDER BY; values never come from user input directly
var paymentOrderColumns = map[string]string{
	models.PaymentOrderAmount:       "amount",
	models.PaymentOrderDocumentDate: "document_date",
	models.PaymentOrderCreatedAt:    "created_at",
}

func (r *PaymentRepo) List(ctx context.Context, opts repository.ListPaymentsOpts) ([]models.Payment, error) {
	field, desc, err := repository.ParseOrdering(opts.Ordering)
	if err != nil {
		return nil, err
	}

	query := strings.Builder{}
	query.WriteString(`-- name: ListPayments
SELECT operation_id, organization_id, amount, payer_inn, document_number, document_date, created_at
FROM payments
WHERE TRUE`)

	args := pgx.NamedArgs{}
	if opts.PayerINN != "" {
		query.WriteString(" AND payer_inn = @payer_inn")
		args["payer_inn"] = opts.PayerINN
	}
	if opts.DocumentNumber != "" {
		query.WriteString(" AND document_number = @document_number")
		args["document_number"] = opts.DocumentNumber
	}
	if opts.DocumentDate != nil {
		query.WriteString(" AND document_date = @document_date")
		args["document_date"] = *opts.DocumentDate
	}

	direction := "ASC"
	if desc {
		direction = "DESC"
	}
	// operation_id makes the order stable for equal values
	fmt.Fprintf(&query, " ORDER BY %s %s, operation_id", paymentOrderColumns[field], direction)

	rows, _ := r.DB.Query(ctx, query.String(), args)
	payments, err := pgx.CollectRows(rows, rowToPayment)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return payments, nil
}

const countPaymentsByOrganization = `-- name: CountPaymentsByOrganization
SELECT COUNT(*) FROM payments WHERE organization_id = $1
`

func (r *PaymentRepo) CountByOrganization(ctx context.Context, orgID uuid.UUID) (int64, error) {
	rows, _ := r.DB.Query(ctx, countPaymentsByOrganization, orgID)
	count, err := pgx.CollectOneRow(rows, pgx.RowTo[int64])
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}

	return count, nil
}

func rowToPayment(row pgx.CollectableRow) (models.Payment, error) {
	var p models.Payment
	err := row.Scan(&p.OperationID, &p.OrganizationID, &p.Amount, &p.PayerINN, &p.DocumentNumber, &p.DocumentDate, &p.CreatedAt)
	return p, err
}
