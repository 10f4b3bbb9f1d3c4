package handlers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/payledger/internal/handlers/render"
	"github.com/nkiryanov/payledger/internal/logger"
	"github.com/nkiryanov/payledger/internal/models"
)

// Bank notification about incoming payment.
// Sender gets the same answer for new and already applied payment, so it may safely resend
func handleBankWebhook(ingestService ingestService, l logger.Logger) http.Handler {
	type request struct {
		OperationID    uuid.UUID        `json:"operation_id" validate:"required"`
		Amount         *decimal.Decimal `json:"amount" validate:"required,amount"`
		PayerINN       string           `json:"payer_inn" validate:"required,inn"`
		DocumentNumber string           `json:"document_number" validate:"required,max=50"`
		DocumentDate   time.Time        `json:"document_date" validate:"required"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		_, err = ingestService.Ingest(r.Context(), models.PaymentEvent{
			OperationID:    req.OperationID,
			Amount:         *req.Amount,
			PayerINN:       req.PayerINN,
			DocumentNumber: req.DocumentNumber,
			DocumentDate:   req.DocumentDate,
		})

		switch err {
		case nil:
			render.JSON(w, struct{}{})
		default:
			l.Error("Failed to ingest bank webhook", "operation_id", req.OperationID, "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}
