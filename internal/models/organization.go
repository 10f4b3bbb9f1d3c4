package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Organization struct {
	ID        uuid.UUID
	INN       string
	Balance   decimal.Decimal
	CreatedAt time.Time
}
