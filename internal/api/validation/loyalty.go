package validation

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/daap14/loyalty/internal/tier"
)

// MaxNotesLength bounds the free-form notes on a loyalty record.
const MaxNotesLength = 2000

// ValidateEnrollRequest validates the customer id of an enroll request.
func ValidateEnrollRequest(customerID string) []FieldError {
	var errs []FieldError

	if customerID == "" {
		errs = append(errs, FieldError{Field: "customerId", Message: "customerId is required"})
	} else if id, err := uuid.Parse(customerID); err != nil || id == uuid.Nil {
		errs = append(errs, FieldError{Field: "customerId", Message: "customerId must be a valid UUID"})
	}

	return errs
}

// ValidatePointsRequest checks that points is present. Its sign is checked by
// the engine.
func ValidatePointsRequest(points *int64) []FieldError {
	var errs []FieldError
	if points == nil {
		errs = append(errs, FieldError{Field: "points", Message: "points is required"})
	}
	return errs
}

// ValidateQuoteRequest checks an invoice amount for a discount quote.
func ValidateQuoteRequest(amount *decimal.Decimal) []FieldError {
	var errs []FieldError

	switch {
	case amount == nil:
		errs = append(errs, FieldError{Field: "amount", Message: "amount is required"})
	case amount.IsNegative():
		errs = append(errs, FieldError{Field: "amount", Message: "amount must not be negative"})
	case !amount.Equal(amount.Round(2)):
		errs = append(errs, FieldError{Field: "amount", Message: "amount must have at most 2 decimal places"})
	}

	return errs
}

// ValidateSetActiveRequest checks that active is present.
func ValidateSetActiveRequest(active *bool) []FieldError {
	var errs []FieldError
	if active == nil {
		errs = append(errs, FieldError{Field: "active", Message: "active is required"})
	}
	return errs
}

// ParseNotes decodes the notes member of a PATCH body. The member must be
// present; JSON null clears the notes.
func ParseNotes(raw json.RawMessage) (*string, []FieldError) {
	if len(raw) == 0 {
		return nil, []FieldError{{Field: "notes", Message: "notes is required"}}
	}
	if string(raw) == "null" {
		return nil, nil
	}

	var notes string
	if err := json.Unmarshal(raw, &notes); err != nil {
		return nil, []FieldError{{Field: "notes", Message: "notes must be a string or null"}}
	}
	if len(notes) > MaxNotesLength {
		return nil, []FieldError{{Field: "notes", Message: fmt.Sprintf("notes must be at most %d characters", MaxNotesLength)}}
	}
	return &notes, nil
}

// ListQuery holds the parsed filters of GET /loyalty. Nil fields are unset.
type ListQuery struct {
	Tier         *tier.Level
	MinBalance   *int64
	Active       *bool
	EnrolledFrom *time.Time
	EnrolledTo   *time.Time
}

// ParseListQuery parses and validates the list filters from the query string.
func ParseListQuery(q url.Values) (ListQuery, []FieldError) {
	var lq ListQuery
	var errs []FieldError

	if v := q.Get("tier"); v != "" {
		level, err := tier.ParseLevel(v)
		if err != nil {
			errs = append(errs, FieldError{Field: "tier", Message: "tier must be one of: entry, mid, senior, top"})
		} else {
			lq.Tier = &level
		}
	}

	if v := q.Get("minBalance"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			errs = append(errs, FieldError{Field: "minBalance", Message: "minBalance must be a non-negative integer"})
		} else {
			lq.MinBalance = &n
		}
	}

	if v := q.Get("active"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, FieldError{Field: "active", Message: "active must be true or false"})
		} else {
			lq.Active = &b
		}
	}

	if v := q.Get("enrolledFrom"); v != "" {
		t, err := parseBound(v, false)
		if err != nil {
			errs = append(errs, FieldError{Field: "enrolledFrom", Message: "enrolledFrom must be an RFC 3339 timestamp or a YYYY-MM-DD date"})
		} else {
			lq.EnrolledFrom = &t
		}
	}

	if v := q.Get("enrolledTo"); v != "" {
		t, err := parseBound(v, true)
		if err != nil {
			errs = append(errs, FieldError{Field: "enrolledTo", Message: "enrolledTo must be an RFC 3339 timestamp or a YYYY-MM-DD date"})
		} else {
			lq.EnrolledTo = &t
		}
	}

	if lq.EnrolledFrom != nil && lq.EnrolledTo != nil && lq.EnrolledFrom.After(*lq.EnrolledTo) {
		errs = append(errs, FieldError{Field: "enrolledFrom", Message: "enrolledFrom must not be after enrolledTo"})
	}

	return lq, errs
}

// parseBound parses a range bound. A bare date used as an upper bound covers
// the whole day.
func parseBound(v string, upper bool) (time.Time, error) {
	v = strings.TrimSpace(v)
	if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
		return t.UTC(), nil
	}
	d, err := time.Parse(time.DateOnly, v)
	if err != nil {
		return time.Time{}, err
	}
	if upper {
		return d.Add(24*time.Hour - time.Microsecond), nil
	}
	return d, nil
}
