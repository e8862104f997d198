package customer

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrCustomerNotFound is returned when a customer record is not found.
var ErrCustomerNotFound = errors.New("customer not found")

// Directory looks up customers owned by the workshop's customer module.
// It never writes.
type Directory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Customer, error)
	// Names resolves display names for a batch of IDs. Unknown IDs are
	// absent from the result.
	Names(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error)
}
