package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/payledger/internal/apperrors"
	"github.com/nkiryanov/payledger/internal/handlers/render"
	"github.com/nkiryanov/payledger/internal/logger"
	"github.com/nkiryanov/payledger/internal/models"
	"github.com/nkiryanov/payledger/internal/repository"
)

type paymentResponse struct {
	OperationID    uuid.UUID `json:"operation_id"`
	Amount         string    `json:"amount"`
	PayerINN       string    `json:"payer_inn"`
	DocumentNumber string    `json:"document_number"`
	DocumentDate   time.Time `json:"document_date"`
	CreatedAt      time.Time `json:"created_at"`
}

func newPaymentResponse(p models.Payment) paymentResponse {
	return paymentResponse{
		OperationID:    p.OperationID,
		Amount:         p.Amount.StringFixed(2),
		PayerINN:       p.PayerINN,
		DocumentNumber: p.DocumentNumber,
		DocumentDate:   p.DocumentDate,
		CreatedAt:      p.CreatedAt,
	}
}

// Unescaped '+' of a time zone offset arrives as a space after query decoding
func parseDocumentDate(value string) (time.Time, error) {
	return time.Parse(time.RFC3339, strings.ReplaceAll(value, " ", "+"))
}

func handleListPayments(ledgerService ledgerService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		opts := repository.ListPaymentsOpts{
			PayerINN:       query.Get("payer_inn"),
			DocumentNumber: query.Get("document_number"),
			Ordering:       query.Get("ordering"),
		}

		if value := query.Get("document_date"); value != "" {
			date, err := parseDocumentDate(value)
			if err != nil {
				render.FieldErrors(w, map[string]string{"document_date": "Must be RFC 3339 date time"})
				return
			}
			opts.DocumentDate = &date
		}

		list, err := ledgerService.ListPayments(r.Context(), opts)

		switch {
		case err == nil:
			payments := make([]paymentResponse, 0, len(list))
			for _, p := range list {
				payments = append(payments, newPaymentResponse(p))
			}
			render.JSON(w, payments)
		case errors.Is(err, apperrors.ErrInvalidOrdering):
			render.FieldErrors(w, map[string]string{"ordering": "Must be one of: amount, document_date, created_at, optionally prefixed with '-'"})
		default:
			l.Error("Failed to list payments", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

// Lets the sender check whether a notification was applied
func handleGetPayment(ledgerService ledgerService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		operationID, err := uuid.Parse(r.PathValue("operation_id"))
		if err != nil {
			render.FieldErrors(w, map[string]string{"operation_id": "Must be a valid UUID"})
			return
		}

		payment, err := ledgerService.GetPayment(r.Context(), operationID)

		switch {
		case err == nil:
			render.JSON(w, newPaymentResponse(payment))
		case errors.Is(err, apperrors.ErrPaymentNotFound):
			render.ServiceError(w, "Payment not found", http.StatusNotFound)
		default:
			l.Error("Failed to get payment", "operation_id", operationID, "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}
