package auth

import (
	"time"

	"github.com/google/uuid"
)

// Staff roles. Front desk staff run day-to-day point operations; managers
// may also deactivate, annotate and remove loyalty records.
const (
	RoleFrontDesk = "front_desk"
	RoleManager   = "manager"
)

// ValidRoles lists the assignable staff roles.
var ValidRoles = []string{RoleFrontDesk, RoleManager}

// User represents a row in the users table.
type User struct {
	ID           uuid.UUID
	Name         string
	Role         *string // nil for superuser
	IsSuperuser  bool
	ApiKeyPrefix string
	ApiKeyHash   string
	CreatedAt    time.Time
	RevokedAt    *time.Time
}

// Identity is stored in the request context after authentication.
type Identity struct {
	UserID      uuid.UUID
	UserName    string
	Role        *string // nil for superuser
	IsSuperuser bool
}

// HasRole reports whether the identity holds one of roles. The superuser
// holds every role.
func (i *Identity) HasRole(roles ...string) bool {
	if i == nil {
		return false
	}
	if i.IsSuperuser {
		return true
	}
	if i.Role == nil {
		return false
	}
	for _, r := range roles {
		if *i.Role == r {
			return true
		}
	}
	return false
}
