package customer

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryDirectory is an in-process Directory, seeded with Add.
type MemoryDirectory struct {
	mu        sync.RWMutex
	customers map[uuid.UUID]string
}

// NewMemoryDirectory creates an empty directory.
func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{customers: make(map[uuid.UUID]string)}
}

// Add registers a customer.
func (d *MemoryDirectory) Add(c Customer) {
	d.mu.Lock()
	d.customers[c.ID] = c.Name
	d.mu.Unlock()
}

func (d *MemoryDirectory) GetByID(_ context.Context, id uuid.UUID) (*Customer, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	name, ok := d.customers[id]
	if !ok {
		return nil, ErrCustomerNotFound
	}
	return &Customer{ID: id, Name: name}, nil
}

func (d *MemoryDirectory) Names(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	names := make(map[uuid.UUID]string, len(ids))
	for _, id := range ids {
		if name, ok := d.customers[id]; ok {
			names[id] = name
		}
	}
	return names, nil
}
