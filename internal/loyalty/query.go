package loyalty

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/daap14/loyalty/internal/tier"
)

// Get returns the record with the given ID.
func (e *Engine) Get(ctx context.Context, id uuid.UUID) (*Record, error) {
	if id == uuid.Nil {
		return nil, fmt.Errorf("%w: record id", ErrInvalidID)
	}
	return e.repo.FindByID(ctx, id)
}

// GetByCustomer returns the record held by customerID.
func (e *Engine) GetByCustomer(ctx context.Context, customerID uuid.UUID) (*Record, error) {
	if customerID == uuid.Nil {
		return nil, fmt.Errorf("%w: customer id", ErrInvalidID)
	}
	return e.repo.FindByCustomer(ctx, customerID)
}

// List returns every record.
func (e *Engine) List(ctx context.Context) ([]Record, error) {
	return e.repo.FindAll(ctx)
}

// ListByTier returns records currently at level.
func (e *Engine) ListByTier(ctx context.Context, level tier.Level) ([]Record, error) {
	if !level.Valid() {
		return nil, fmt.Errorf("%w: %d", tier.ErrUnknownLevel, int(level))
	}
	return e.repo.FindByTier(ctx, level)
}

// ListByMinimumBalance returns records holding at least minBalance points, highest
// balance first.
func (e *Engine) ListByMinimumBalance(ctx context.Context, minBalance int64) ([]Record, error) {
	if minBalance < 0 {
		return nil, fmt.Errorf("%w: minimum balance %d", ErrInvalidAmount, minBalance)
	}
	return e.repo.FindByMinimumBalance(ctx, minBalance)
}

// ListByEnrollmentRange returns records enrolled between from and to inclusive.
func (e *Engine) ListByEnrollmentRange(ctx context.Context, from, to time.Time) ([]Record, error) {
	if from.After(to) {
		return nil, ErrInvalidRange
	}
	return e.repo.FindByEnrollmentRange(ctx, from, to)
}

// ListActive returns records that currently accrue and redeem points.
func (e *Engine) ListActive(ctx context.Context) ([]Record, error) {
	return e.repo.FindActive(ctx)
}

// ListInactive returns deactivated records.
func (e *Engine) ListInactive(ctx context.Context) ([]Record, error) {
	return e.repo.FindInactive(ctx)
}
