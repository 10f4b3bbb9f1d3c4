package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/payledger/internal/apperrors"
	"github.com/nkiryanov/payledger/internal/handlers/render"
	"github.com/nkiryanov/payledger/internal/logger"
)

func handleOrganizationBalance(ledgerService ledgerService, l logger.Logger) http.Handler {
	type response struct {
		INN     string `json:"inn"`
		Balance string `json:"balance"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		org, err := ledgerService.GetBalance(r.Context(), r.PathValue("inn"))

		switch {
		case err == nil:
			render.JSON(w, response{INN: org.INN, Balance: org.Balance.StringFixed(2)})
		case errors.Is(err, apperrors.ErrOrganizationNotFound):
			render.ServiceError(w, "Organization not found", http.StatusNotFound)
		default:
			l.Error("Failed to get balance", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

func handleOrganizationBalanceLog(ledgerService ledgerService, l logger.Logger) http.Handler {
	type entry struct {
		ID         int64      `json:"id"`
		Delta      string     `json:"delta"`
		NewBalance string     `json:"new_balance"`
		PaymentID  *uuid.UUID `json:"payment_id"`
		CreatedAt  time.Time  `json:"created_at"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log, err := ledgerService.ListBalanceLog(r.Context(), r.PathValue("inn"))

		switch {
		case err == nil:
			entries := make([]entry, 0, len(log))
			for _, e := range log {
				entries = append(entries, entry{
					ID:         e.ID,
					Delta:      e.Delta.StringFixed(2),
					NewBalance: e.NewBalance.StringFixed(2),
					PaymentID:  e.PaymentID,
					CreatedAt:  e.CreatedAt,
				})
			}
			render.JSON(w, entries)
		case errors.Is(err, apperrors.ErrOrganizationNotFound):
			render.ServiceError(w, "Organization not found", http.StatusNotFound)
		default:
			l.Error("Failed to list balance log", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}
