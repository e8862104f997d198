package customer

import "github.com/google/uuid"

// Customer is the read-only view of a workshop customer the loyalty
// program needs: an identifier and a display name.
type Customer struct {
	ID   uuid.UUID
	Name string
}
