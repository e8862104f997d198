package validation

import (
	"fmt"
	"slices"
	"strings"

	"github.com/daap14/loyalty/internal/auth"
)

// CreateUserRequest mirrors the fields needed for create user validation.
type CreateUserRequest struct {
	Name string
	Role string
}

// ValidateCreateUserRequest validates the fields of a create user request.
func ValidateCreateUserRequest(req CreateUserRequest) []FieldError {
	var errs []FieldError

	name := strings.TrimSpace(req.Name)
	if name == "" {
		errs = append(errs, FieldError{Field: "name", Message: "name is required"})
	} else if len(name) > 255 {
		errs = append(errs, FieldError{Field: "name", Message: "name must be at most 255 characters"})
	}

	if req.Role == "" {
		errs = append(errs, FieldError{Field: "role", Message: "role is required"})
	} else if !slices.Contains(auth.ValidRoles, req.Role) {
		errs = append(errs, FieldError{Field: "role", Message: fmt.Sprintf("role must be one of: %s", strings.Join(auth.ValidRoles, ", "))})
	}

	return errs
}
