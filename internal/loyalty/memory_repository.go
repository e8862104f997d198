package loyalty

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/daap14/loyalty/internal/tier"
)

// MemoryRepository implements Repository in process memory. A single mutex
// serializes writes, which gives the per-record atomicity and customer
// uniqueness the Repository contract requires.
type MemoryRepository struct {
	mu         sync.RWMutex
	records    map[uuid.UUID]Record
	byCustomer map[uuid.UUID]uuid.UUID
}

// NewMemoryRepository creates an empty in-memory store.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		records:    make(map[uuid.UUID]Record),
		byCustomer: make(map[uuid.UUID]uuid.UUID),
	}
}

// FindByID returns a copy of the record with the given ID.
func (m *MemoryRepository) FindByID(_ context.Context, id uuid.UUID) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.records[id]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return cloneRecord(r), nil
}

// FindByCustomer returns a copy of the customer's record.
func (m *MemoryRepository) FindByCustomer(_ context.Context, customerID uuid.UUID) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byCustomer[customerID]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return cloneRecord(m.records[id]), nil
}

// FindAll returns every record ordered by enrollment date.
func (m *MemoryRepository) FindAll(_ context.Context) ([]Record, error) {
	return m.filter(func(Record) bool { return true }, byEnrollment), nil
}

// FindByTier returns the records currently in level.
func (m *MemoryRepository) FindByTier(_ context.Context, level tier.Level) ([]Record, error) {
	return m.filter(func(r Record) bool { return r.Tier == level }, byEnrollment), nil
}

// FindByMinimumBalance returns records holding at least minBalance points,
// highest balance first.
func (m *MemoryRepository) FindByMinimumBalance(_ context.Context, minBalance int64) ([]Record, error) {
	return m.filter(func(r Record) bool { return r.Balance >= minBalance }, byBalanceDesc), nil
}

// FindByEnrollmentRange returns records enrolled within [from, to].
func (m *MemoryRepository) FindByEnrollmentRange(_ context.Context, from, to time.Time) ([]Record, error) {
	return m.filter(func(r Record) bool {
		return !r.EnrollmentDate.Before(from) && !r.EnrollmentDate.After(to)
	}, byEnrollment), nil
}

// FindActive returns the active records.
func (m *MemoryRepository) FindActive(_ context.Context) ([]Record, error) {
	return m.filter(func(r Record) bool { return r.Active }, byEnrollment), nil
}

// FindInactive returns the deactivated records.
func (m *MemoryRepository) FindInactive(_ context.Context) ([]Record, error) {
	return m.filter(func(r Record) bool { return !r.Active }, byEnrollment), nil
}

// Insert stores a new record with version 1.
func (m *MemoryRepository) Insert(_ context.Context, r *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byCustomer[r.CustomerID]; ok {
		return ErrDuplicateEnrollment
	}
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	r.Version = 1
	m.records[r.ID] = *cloneRecord(*r)
	m.byCustomer[r.CustomerID] = r.ID
	return nil
}

// Update replaces the mutable fields of a stored record if its version matches.
func (m *MemoryRepository) Update(_ context.Context, r *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.records[r.ID]
	if !ok {
		return ErrRecordNotFound
	}
	if stored.Version != r.Version {
		return ErrConcurrentUpdate
	}

	stored.Balance = r.Balance
	stored.Tier = r.Tier
	stored.LastUpdateDate = r.LastUpdateDate
	stored.Active = r.Active
	stored.Notes = r.Notes
	stored.Version++

	m.records[r.ID] = *cloneRecord(stored)
	*r = *cloneRecord(stored)
	return nil
}

// Delete removes a record and frees its customer for a new enrollment.
func (m *MemoryRepository) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.records[id]
	if !ok {
		return ErrRecordNotFound
	}
	delete(m.records, id)
	delete(m.byCustomer, r.CustomerID)
	return nil
}

// Len returns the number of stored records.
func (m *MemoryRepository) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

func (m *MemoryRepository) filter(keep func(Record) bool, order func(a, b Record) int) []Record {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []Record{}
	for _, r := range m.records {
		if keep(r) {
			out = append(out, *cloneRecord(r))
		}
	}
	slices.SortFunc(out, order)
	return out
}

func byEnrollment(a, b Record) int {
	if c := a.EnrollmentDate.Compare(b.EnrollmentDate); c != 0 {
		return c
	}
	return cmp.Compare(a.ID.String(), b.ID.String())
}

func byBalanceDesc(a, b Record) int {
	if c := cmp.Compare(b.Balance, a.Balance); c != 0 {
		return c
	}
	return byEnrollment(a, b)
}

func cloneRecord(r Record) *Record {
	if r.Notes != nil {
		n := *r.Notes
		r.Notes = &n
	}
	return &r
}
