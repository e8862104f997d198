// Package tier holds the loyalty program's fixed tier table and the pure
// lookup from a point balance to the tier it earns.
package tier

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Level identifies a tier. Levels are ordered: a higher Level always has a
// higher MinPoints.
type Level int

const (
	Entry Level = iota
	Mid
	Senior
	Top
)

// ErrUnknownLevel is returned when a tier name or number does not match the table.
var ErrUnknownLevel = errors.New("unknown tier level")

// Tier is one row of the tier table. Values are immutable.
type Tier struct {
	Level              Level
	Name               string
	MinPoints          int64
	PointsMultiplier   decimal.Decimal
	DiscountPercentage decimal.Decimal
}

// table is ordered by MinPoints ascending and its first row starts at zero,
// which makes For total over non-negative balances.
var table = [...]Tier{
	{Level: Entry, Name: "entry", MinPoints: 0, PointsMultiplier: decimal.RequireFromString("1.0"), DiscountPercentage: decimal.Zero},
	{Level: Mid, Name: "mid", MinPoints: 1000, PointsMultiplier: decimal.RequireFromString("1.2"), DiscountPercentage: decimal.RequireFromString("0.05")},
	{Level: Senior, Name: "senior", MinPoints: 5000, PointsMultiplier: decimal.RequireFromString("1.5"), DiscountPercentage: decimal.RequireFromString("0.10")},
	{Level: Top, Name: "top", MinPoints: 10000, PointsMultiplier: decimal.RequireFromString("2.0"), DiscountPercentage: decimal.RequireFromString("0.15")},
}

// For returns the tier with the greatest MinPoints not exceeding balance.
// Negative balances resolve to the entry tier.
func For(balance int64) Tier {
	for i := len(table) - 1; i > 0; i-- {
		if balance >= table[i].MinPoints {
			return table[i]
		}
	}
	return table[0]
}

// Table returns a copy of the tier table in ascending order.
func Table() []Tier {
	out := make([]Tier, len(table))
	copy(out, table[:])
	return out
}

// ByLevel returns the table row for l.
func ByLevel(l Level) (Tier, bool) {
	if l < Entry || l > Top {
		return Tier{}, false
	}
	return table[l], true
}

// ParseLevel accepts a tier name ("mid") or its short code ("T1").
func ParseLevel(s string) (Level, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, t := range table {
		if s == t.Name || s == fmt.Sprintf("t%d", t.Level) {
			return t.Level, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownLevel, s)
}

// String returns the tier name, or "T<n>" for levels outside the table.
func (l Level) String() string {
	if t, ok := ByLevel(l); ok {
		return t.Name
	}
	return fmt.Sprintf("T%d", int(l))
}

// Code returns the short tier code, T0 through T3.
func (l Level) Code() string {
	return fmt.Sprintf("T%d", int(l))
}

// Valid reports whether l is a row of the table.
func (l Level) Valid() bool {
	_, ok := ByLevel(l)
	return ok
}

// Earn applies the tier multiplier to raw points, rounding down. The result
// is exact; callers check it fits their balance before narrowing to int64.
func (t Tier) Earn(raw int64) decimal.Decimal {
	return decimal.NewFromInt(raw).Mul(t.PointsMultiplier).Floor()
}

// Discount returns the discount this tier grants on amount, rounded to cents.
func (t Tier) Discount(amount decimal.Decimal) decimal.Decimal {
	return amount.Mul(t.DiscountPercentage).Round(2)
}
