package auth

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository implements UserRepository in process memory. It backs
// the server when it runs without Postgres.
type MemoryRepository struct {
	mu    sync.RWMutex
	users []User
}

// NewMemoryRepository creates an empty in-memory user store.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

func (m *MemoryRepository) Create(_ context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u.ID = uuid.New()
	u.CreatedAt = time.Now().UTC()
	m.users = append(m.users, *u)
	return nil
}

func (m *MemoryRepository) GetByID(_ context.Context, id uuid.UUID) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	i := slices.IndexFunc(m.users, func(u User) bool { return u.ID == id })
	if i < 0 {
		return nil, ErrUserNotFound
	}
	u := m.users[i]
	return &u, nil
}

func (m *MemoryRepository) FindByPrefix(_ context.Context, prefix string) ([]User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	users := []User{}
	for _, u := range m.users {
		if u.ApiKeyPrefix == prefix && u.RevokedAt == nil {
			users = append(users, u)
		}
	}
	return users, nil
}

func (m *MemoryRepository) List(_ context.Context) ([]User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.users), nil
}

func (m *MemoryRepository) Revoke(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := slices.IndexFunc(m.users, func(u User) bool { return u.ID == id })
	if i < 0 {
		return ErrUserNotFound
	}
	if m.users[i].RevokedAt != nil {
		return ErrUserRevoked
	}
	now := time.Now().UTC()
	m.users[i].RevokedAt = &now
	return nil
}

func (m *MemoryRepository) HasSuperuser(_ context.Context) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.ContainsFunc(m.users, func(u User) bool { return u.IsSuperuser }), nil
}
