package loyalty

import (
	"errors"
	"fmt"
)

// Validation errors. Returned before the store is touched.
var (
	ErrInvalidAmount   = errors.New("points amount must be positive")
	ErrBalanceOverflow = errors.New("points credit exceeds the maximum balance")
	ErrInvalidID       = errors.New("identifier is missing or malformed")
	ErrInvalidRange    = errors.New("enrollment range start is after its end")
)

// Business-rule declines. Expected outcomes, not faults; callers branch on them
// and must not retry.
var (
	ErrInsufficientBalance = errors.New("insufficient points balance")
	ErrDuplicateEnrollment = errors.New("customer is already enrolled")
	ErrRecordInactive      = errors.New("loyalty record is inactive")
)

// Storage outcomes.
var (
	ErrRecordNotFound   = errors.New("loyalty record not found")
	ErrConcurrentUpdate = errors.New("loyalty record was modified concurrently")
	ErrStorage          = errors.New("loyalty storage failure")
)

// ErrInvariantViolation is returned when a computed record breaks a record
// invariant. It indicates a bug or a corrupted row, never a caller mistake.
var ErrInvariantViolation = errors.New("loyalty record invariant violated")

// InsufficientBalanceError carries the amounts of a declined redemption.
type InsufficientBalanceError struct {
	Available int64
	Requested int64
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient points: have %d, need %d", e.Available, e.Requested)
}

// Is makes errors.Is(err, ErrInsufficientBalance) match.
func (e *InsufficientBalanceError) Is(target error) bool {
	return target == ErrInsufficientBalance
}

// IsDecline reports whether err is an expected business-rule decline.
func IsDecline(err error) bool {
	return errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrDuplicateEnrollment) ||
		errors.Is(err, ErrRecordInactive)
}

// IsValidation reports whether err was raised by input validation.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrBalanceOverflow) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidRange)
}

// Outcome classifies err into a low-cardinality label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case IsValidation(err):
		return "invalid"
	case IsDecline(err):
		return "declined"
	case errors.Is(err, ErrRecordNotFound):
		return "not_found"
	case errors.Is(err, ErrConcurrentUpdate):
		return "conflict"
	default:
		return "error"
	}
}
