package repository

import (
	"strings"
	"time"

	"github.com/nkiryanov/payledger/internal/apperrors"
	"github.com/nkiryanov/payledger/internal/models"
)

const DefaultPaymentsOrdering = "-" + models.PaymentOrderDocumentDate

// Filters and ordering for payments listing; zero value fields are not applied
type ListPaymentsOpts struct {
	PayerINN       string
	DocumentNumber string
	DocumentDate   *time.Time

	// Field name to order by; prefix '-' means descending
	Ordering string
}

// Parse ordering string and return field name and direction
// Empty ordering means DefaultPaymentsOrdering
func ParseOrdering(ordering string) (field string, desc bool, err error) {
	if ordering == "" {
		ordering = DefaultPaymentsOrdering
	}

	field, desc = strings.CutPrefix(ordering, "-")

	switch field {
	case models.PaymentOrderAmount, models.PaymentOrderDocumentDate, models.PaymentOrderCreatedAt:
		return field, desc, nil
	default:
		return "", false, apperrors.ErrInvalidOrdering
	}
}
