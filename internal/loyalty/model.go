package loyalty

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/daap14/loyalty/internal/tier"
)

// Record is a customer's loyalty program state, one row per customer.
// Tier is derived from Balance and must only change alongside it.
type Record struct {
	ID             uuid.UUID
	CustomerID     uuid.UUID
	Balance        int64
	Tier           tier.Level
	EnrollmentDate time.Time
	LastUpdateDate time.Time
	Active         bool
	Notes          *string
	// Version is bumped by the store on every successful Update and is
	// compared on write to detect concurrent modification.
	Version int64
}

// Result is returned by balance-changing operations.
type Result struct {
	Record
	// Points is the amount actually credited or debited.
	Points       int64
	PreviousTier tier.Level
}

// TierChanged reports whether the operation moved the record between tiers.
func (r *Result) TierChanged() bool {
	return r.PreviousTier != r.Tier
}

// Quote is the tier discount a record is entitled to on an invoice amount.
type Quote struct {
	RecordID           uuid.UUID
	Tier               tier.Level
	Active             bool
	Amount             decimal.Decimal
	DiscountPercentage decimal.Decimal
	Discount           decimal.Decimal
	Total              decimal.Decimal
}

// Operation names an engine entry point for logging and metrics.
type Operation string

const (
	OpEnroll      Operation = "enroll"
	OpAddPoints   Operation = "add_points"
	OpRedeem      Operation = "redeem_points"
	OpSetActive   Operation = "set_active"
	OpUpdateNotes Operation = "update_notes"
	OpRemove      Operation = "remove"
	OpRepairTier  Operation = "repair_tier"
	OpQuote       Operation = "quote"
)
