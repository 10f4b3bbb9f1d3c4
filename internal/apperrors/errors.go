package apperrors

import (
	"errors"
)

var (
	ErrOrganizationNotFound = errors.New("organization not found")

	ErrPaymentNotFound      = errors.New("payment not found")
	ErrPaymentAlreadyExists = errors.New("payment with operation id already exists")
	ErrAmountNegative       = errors.New("payment amount is negative")
	ErrProcessingFailed     = errors.New("payment processing failed")

	ErrInvalidOrdering = errors.New("invalid ordering field")
)
