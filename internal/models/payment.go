package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Ordering fields accepted by payment listing
const (
	PaymentOrderAmount       = "amount"
	PaymentOrderDocumentDate = "document_date"
	PaymentOrderCreatedAt    = "created_at"
)

// PaymentEvent is a bank notification that already passed schema validation
type PaymentEvent struct {
	OperationID    uuid.UUID
	Amount         decimal.Decimal
	PayerINN       string
	DocumentNumber string
	DocumentDate   time.Time
}

type Payment struct {
	OperationID    uuid.UUID
	OrganizationID uuid.UUID
	Amount         decimal.Decimal
	PayerINN       string
	DocumentNumber string
	DocumentDate   time.Time
	CreatedAt      time.Time // assigned by storage on insert
}
