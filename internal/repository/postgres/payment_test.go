package postgres

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/payledger/internal/apperrors"
	"github.com/nkiryanov/payledger/internal/models"
	"github.com/nkiryanov/payledger/internal/repository"
	"github.com/nkiryanov/payledger/internal/testutil"
)

func mustParseTime(value string) time.Time {
	dt, err := time.Parse(time.RFC3339, value)
	if err != nil {
		panic(err)
	}
	return dt
}

func TestPayment(t *testing.T) {
	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	inTx := func(t *testing.T, outer DBTX, fn func(pgx.Tx, repository.Storage)) {
		testutil.WithTx(outer, t, func(tx pgx.Tx) {
			fn(tx, NewStorage(tx))
		})
	}

	newPayment := func(org models.Organization, amount string, number string, date string) models.Payment {
		return models.Payment{
			OperationID:    uuid.New(),
			OrganizationID: org.ID,
			Amount:         decimal.RequireFromString(amount),
			PayerINN:       org.INN,
			DocumentNumber: number,
			DocumentDate:   mustParseTime(date),
		}
	}

	t.Run("Create", func(t *testing.T) {
		inTx(t, pg.Pool, func(tx pgx.Tx, s repository.Storage) {
			org, err := s.Organization().GetOrCreateForUpdate(t.Context(), "1234567890")
			require.NoError(t, err)

			t.Run("create ok", func(t *testing.T) {
				inTx(t, tx, func(_ pgx.Tx, s repository.Storage) {
					p := newPayment(org, "145000.00", "PAY-328", "2024-04-27T21:00:00Z")

					got, err := s.Payment().Create(t.Context(), p)

					require.NoError(t, err)
					require.Equal(t, p.OperationID, got.OperationID)
					require.Equal(t, org.ID, got.OrganizationID)
					require.True(t, p.Amount.Equal(got.Amount))
					require.Equal(t, "PAY-328", got.DocumentNumber)
					require.WithinDuration(t, p.DocumentDate, got.DocumentDate, 0)
					require.WithinDuration(t, time.Now(), got.CreatedAt, 5*time.Second, "created at has to be assigned by storage")
				})
			})

			t.Run("create duplicate operation id", func(t *testing.T) {
				inTx(t, tx, func(_ pgx.Tx, s repository.Storage) {
					p := newPayment(org, "10", "PAY-1", "2024-04-27T21:00:00Z")
					_, err := s.Payment().Create(t.Context(), p)
					require.NoError(t, err)

					p.Amount = decimal.NewFromInt(20)
					_, err = s.Payment().Create(t.Context(), p)

					require.ErrorIs(t, err, apperrors.ErrPaymentAlreadyExists)
				})
			})

			t.Run("negative amount rejected by storage", func(t *testing.T) {
				inTx(t, tx, func(_ pgx.Tx, s repository.Storage) {
					_, err := s.Payment().Create(t.Context(), newPayment(org, "-1", "PAY-1", "2024-04-27T21:00:00Z"))

					require.Error(t, err)
					require.NotErrorIs(t, err, apperrors.ErrPaymentAlreadyExists)
				})
			})
		})
	})

	t.Run("Exists and Get", func(t *testing.T) {
		inTx(t, pg.Pool, func(_ pgx.Tx, s repository.Storage) {
			org, err := s.Organization().GetOrCreateForUpdate(t.Context(), "1234567890")
			require.NoError(t, err)
			p, err := s.Payment().Create(t.Context(), newPayment(org, "1.5", "PAY-1", "2024-04-27T21:00:00Z"))
			require.NoError(t, err)

			exists, err := s.Payment().Exists(t.Context(), p.OperationID)
			require.NoError(t, err)
			require.True(t, exists)

			exists, err = s.Payment().Exists(t.Context(), uuid.New())
			require.NoError(t, err)
			require.False(t, exists)

			got, err := s.Payment().Get(t.Context(), p.OperationID)
			require.NoError(t, err)
			require.Equal(t, p, got)

			_, err = s.Payment().Get(t.Context(), uuid.New())
			require.ErrorIs(t, err, apperrors.ErrPaymentNotFound)
		})
	})

	t.Run("List", func(t *testing.T) {
		inTx(t, pg.Pool, func(tx pgx.Tx, s repository.Storage) {
			org, err := s.Organization().GetOrCreateForUpdate(t.Context(), "1234567890")
			require.NoError(t, err)
			yaOrg, err := s.Organization().GetOrCreateForUpdate(t.Context(), "123456789012")
			require.NoError(t, err)

			older, err := s.Payment().Create(t.Context(), newPayment(org, "300", "PAY-1", "2024-01-01T10:00:00Z"))
			require.NoError(t, err)
			newer, err := s.Payment().Create(t.Context(), newPayment(org, "100", "PAY-2", "2024-02-01T10:00:00Z"))
			require.NoError(t, err)
			other, err := s.Payment().Create(t.Context(), newPayment(yaOrg, "200", "PAY-1", "2024-03-01T10:00:00Z"))
			require.NoError(t, err)

			ids := func(payments []models.Payment) []uuid.UUID {
				res := make([]uuid.UUID, 0, len(payments))
				for _, p := range payments {
					res = append(res, p.OperationID)
				}
				return res
			}

			tests := []struct {
				name     string
				opts     repository.ListPaymentsOpts
				expected []uuid.UUID
			}{
				{
					name:     "default newest document first",
					opts:     repository.ListPaymentsOpts{},
					expected: []uuid.UUID{other.OperationID, newer.OperationID, older.OperationID},
				},
				{
					name:     "by payer inn",
					opts:     repository.ListPaymentsOpts{PayerINN: "1234567890"},
					expected: []uuid.UUID{newer.OperationID, older.OperationID},
				},
				{
					name:     "by document number",
					opts:     repository.ListPaymentsOpts{DocumentNumber: "PAY-1", Ordering: "amount"},
					expected: []uuid.UUID{other.OperationID, older.OperationID},
				},
				{
					name:     "by document date",
					opts:     repository.ListPaymentsOpts{DocumentDate: &newer.DocumentDate},
					expected: []uuid.UUID{newer.OperationID},
				},
				{
					name:     "order by amount desc",
					opts:     repository.ListPaymentsOpts{Ordering: "-amount"},
					expected: []uuid.UUID{older.OperationID, other.OperationID, newer.OperationID},
				},
				{
					name:     "order by created at",
					opts:     repository.ListPaymentsOpts{Ordering: "created_at"},
					expected: []uuid.UUID{older.OperationID, newer.OperationID, other.OperationID},
				},
				{
					name:     "nothing found",
					opts:     repository.ListPaymentsOpts{PayerINN: "0000000000"},
					expected: []uuid.UUID{},
				},
			}

			for _, tt := range tests {
				t.Run(tt.name, func(t *testing.T) {
					payments, err := s.Payment().List(t.Context(), tt.opts)

					require.NoError(t, err)
					require.Equal(t, tt.expected, ids(payments))
				})
			}

			t.Run("invalid ordering", func(t *testing.T) {
				_, err := s.Payment().List(t.Context(), repository.ListPaymentsOpts{Ordering: "payer_inn; DROP TABLE payments"})

				require.ErrorIs(t, err, apperrors.ErrInvalidOrdering)
			})

			t.Run("count by organization", func(t *testing.T) {
				count, err := s.Payment().CountByOrganization(t.Context(), org.ID)
				require.NoError(t, err)
				require.EqualValues(t, 2, count)

				count, err = s.Payment().CountByOrganization(t.Context(), uuid.New())
				require.NoError(t, err)
				require.Zero(t, count)
			})
		})
	})
}
