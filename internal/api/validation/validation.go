// Package validation checks decoded request bodies and query strings before
// they reach the loyalty engine. Checks return every problem found, not just
// the first, as a list of FieldError.
package validation

// FieldError names one rejected input and why.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}
