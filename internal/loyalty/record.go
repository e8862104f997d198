package loyalty

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/daap14/loyalty/internal/tier"
)

// NewRecord returns a freshly enrolled record: zero balance, entry tier, active.
func NewRecord(id, customerID uuid.UUID, now time.Time) Record {
	return Record{
		ID:             id,
		CustomerID:     customerID,
		Balance:        0,
		Tier:           tier.For(0).Level,
		EnrollmentDate: now,
		LastUpdateDate: now,
		Active:         true,
	}
}

// Validate checks the invariants a record must satisfy before it is written.
func (r Record) Validate() error {
	if r.ID == uuid.Nil || r.CustomerID == uuid.Nil {
		return fmt.Errorf("%w: missing identifier", ErrInvariantViolation)
	}
	if r.Balance < 0 {
		return fmt.Errorf("%w: negative balance %d", ErrInvariantViolation, r.Balance)
	}
	if want := tier.For(r.Balance).Level; r.Tier != want {
		return fmt.Errorf("%w: tier %s does not match balance %d (want %s)",
			ErrInvariantViolation, r.Tier.Code(), r.Balance, want.Code())
	}
	if r.LastUpdateDate.Before(r.EnrollmentDate) {
		return fmt.Errorf("%w: last update precedes enrollment", ErrInvariantViolation)
	}
	return nil
}

// TierInfo returns the tier table row for the record's tier.
func (r Record) TierInfo() tier.Tier {
	t, ok := tier.ByLevel(r.Tier)
	if !ok {
		return tier.For(r.Balance)
	}
	return t
}

// ValidateAmount rejects non-positive point amounts.
func ValidateAmount(points int64) error {
	if points <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidAmount, points)
	}
	return nil
}

// Earn computes the record after crediting raw points. The multiplier is the
// one of the tier held before the credit, even when the credit crosses into
// a higher tier.
func Earn(r Record, raw int64, now time.Time) (Record, int64, error) {
	if err := ValidateAmount(raw); err != nil {
		return r, 0, err
	}
	if !r.Active {
		return r, 0, ErrRecordInactive
	}
	earned := tier.For(r.Balance).Earn(raw)
	if decimal.NewFromInt(r.Balance).Add(earned).GreaterThan(maxBalance) {
		return r, 0, fmt.Errorf("%w: crediting %d points to balance %d", ErrBalanceOverflow, raw, r.Balance)
	}
	n := earned.IntPart()
	return withBalance(r, r.Balance+n, now), n, nil
}

var maxBalance = decimal.NewFromInt(math.MaxInt64)

// Redeem computes the record after debiting points. A redemption larger than
// the balance is declined and leaves r untouched.
func Redeem(r Record, points int64, now time.Time) (Record, error) {
	if err := ValidateAmount(points); err != nil {
		return r, err
	}
	if !r.Active {
		return r, ErrRecordInactive
	}
	if points > r.Balance {
		return r, &InsufficientBalanceError{Available: r.Balance, Requested: points}
	}
	return withBalance(r, r.Balance-points, now), nil
}

// SetActive computes the record with its active flag set. The balance is
// left alone.
func SetActive(r Record, active bool, now time.Time) Record {
	r.Active = active
	return touch(r, now)
}

// SetNotes computes the record with replaced notes.
func SetNotes(r Record, notes *string, now time.Time) Record {
	if notes != nil {
		n := *notes
		notes = &n
	}
	r.Notes = notes
	return touch(r, now)
}

// RepairTier recomputes the tier from the balance without touching anything
// else. It reports whether the stored tier was wrong.
func RepairTier(r Record, now time.Time) (Record, bool) {
	want := tier.For(r.Balance).Level
	if r.Tier == want {
		return r, false
	}
	return touch(r, now), true
}

// withBalance is the only place balance is assigned.
func withBalance(r Record, balance int64, now time.Time) Record {
	r.Balance = balance
	return touch(r, now)
}

// touch stamps the record, never moving LastUpdateDate backwards. Every write
// goes through here, so a stored tier that drifted from its balance is
// corrected by whatever edit comes next.
func touch(r Record, now time.Time) Record {
	r.Tier = tier.For(r.Balance).Level
	if now.After(r.LastUpdateDate) {
		r.LastUpdateDate = now
	}
	return r
}
