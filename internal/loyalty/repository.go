package loyalty

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/daap14/loyalty/internal/tier"
)

// Repository is the durable store for loyalty records. It owns persistence
// but no business rules; the Engine is the only writer.
//
// Lookups of a single record return ErrRecordNotFound when nothing matches.
// Insert returns ErrDuplicateEnrollment when the customer already has a record.
// Update writes r only if the stored version still equals r.Version and bumps
// r.Version on success; otherwise it returns ErrConcurrentUpdate. All other
// failures match ErrStorage.
type Repository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Record, error)
	FindByCustomer(ctx context.Context, customerID uuid.UUID) (*Record, error)
	FindAll(ctx context.Context) ([]Record, error)
	FindByTier(ctx context.Context, level tier.Level) ([]Record, error)
	// FindByMinimumBalance returns records with Balance >= minBalance, highest balance first.
	FindByMinimumBalance(ctx context.Context, minBalance int64) ([]Record, error)
	// FindByEnrollmentRange returns records enrolled within [from, to].
	FindByEnrollmentRange(ctx context.Context, from, to time.Time) ([]Record, error)
	FindActive(ctx context.Context) ([]Record, error)
	FindInactive(ctx context.Context) ([]Record, error)
	Insert(ctx context.Context, r *Record) error
	Update(ctx context.Context, r *Record) error
	Delete(ctx context.Context, id uuid.UUID) error
}
