package auth

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	// ErrUserNotFound is returned when no staff user has the given ID.
	ErrUserNotFound = errors.New("user not found")
	// ErrUserRevoked is returned when revoking a user whose key is already revoked.
	ErrUserRevoked = errors.New("user is revoked")
)

// UserRepository stores staff users and their hashed API keys.
//
// FindByPrefix returns only users whose key is not revoked. HasSuperuser
// counts revoked rows too, so a revoked superuser is never silently replaced
// on restart.
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	FindByPrefix(ctx context.Context, prefix string) ([]User, error)
	List(ctx context.Context) ([]User, error)
	Revoke(ctx context.Context, id uuid.UUID) error
	HasSuperuser(ctx context.Context) (bool, error)
}
