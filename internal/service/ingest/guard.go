package ingest

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/nkiryanov/payledger/internal/logger"
	"github.com/nkiryanov/payledger/internal/repository"
)

// Fast storage of markers for operations already applied, e.g. redis
type ProcessedCache interface {
	Has(ctx context.Context, operationID uuid.UUID) (bool, error)
	Mark(ctx context.Context, operationID uuid.UUID) error
}

// Guard answers whether an operation was already applied.
// It is a shortcut only; the payments primary key is what prevents double apply
type Guard struct {
	storage repository.Storage
	cache   ProcessedCache // optional
	logger  logger.Logger
}

// Cache may be nil, then only the database is consulted
func NewGuard(storage repository.Storage, cache ProcessedCache, logger logger.Logger) *Guard {
	return &Guard{
		storage: storage,
		cache:   cache,
		logger:  logger,
	}
}

func (g *Guard) IsProcessed(ctx context.Context, operationID uuid.UUID) (bool, error) {
	if g.cache != nil {
		has, err := g.cache.Has(ctx, operationID)
		switch {
		case err != nil:
			g.logger.Warn("Processed cache lookup failed", "operation_id", operationID, "error", err)
		case has:
			return true, nil
		}
	}

	exists, err := g.storage.Payment().Exists(ctx, operationID)
	if err != nil {
		return false, fmt.Errorf("can't check operation. Err: %w", err)
	}

	if exists {
		g.MarkProcessed(ctx, operationID)
	}

	return exists, nil
}

// Remember the operation as applied. Must be called only after the mutation committed
func (g *Guard) MarkProcessed(ctx context.Context, operationID uuid.UUID) {
	if g.cache == nil {
		return
	}

	if err := g.cache.Mark(ctx, operationID); err != nil {
		g.logger.Warn("Processed cache mark failed", "operation_id", operationID, "error", err)
	}
}
