package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type BalanceLogEntry struct {
	ID             int64
	OrganizationID uuid.UUID
	Delta          decimal.Decimal
	NewBalance     decimal.Decimal
	PaymentID      *uuid.UUID // nil if the payment was removed
	CreatedAt      time.Time
}

// Organization whose balance does not match the sum of its balance log deltas
type Discrepancy struct {
	INN      string
	Balance  decimal.Decimal
	LogTotal decimal.Decimal
}
