package loyalty

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/daap14/loyalty/internal/clock"
	"github.com/daap14/loyalty/internal/tier"
)

// Recorder receives engine events. Implementations must be safe for
// concurrent use.
type Recorder interface {
	ObserveOperation(op Operation, outcome string)
	ObservePoints(op Operation, points int64)
	ObserveTierChange(from, to tier.Level)
}

type noopRecorder struct{}

func (noopRecorder) ObserveOperation(Operation, string) {}
func (noopRecorder) ObservePoints(Operation, int64) {}
func (noopRecorder) ObserveTierChange(tier.Level, tier.Level) {}

// Engine applies loyalty operations to records held in a Repository.
// It keeps no state between calls; each mutation validates its input,
// computes the next record and writes it back under the store's version
// check. The engine never retries a failed write.
type Engine struct {
	repo     Repository
	clock    clock.Clock
	recorder Recorder
	newID    func() uuid.UUID
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the time source.
func WithClock(c clock.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithRecorder attaches a metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// WithIDGenerator overrides record ID generation.
func WithIDGenerator(fn func() uuid.UUID) Option {
	return func(e *Engine) { e.newID = fn }
}

// NewEngine creates an Engine backed by repo.
func NewEngine(repo Repository, opts ...Option) *Engine {
	e := &Engine{
		repo:     repo,
		clock:    clock.System{},
		recorder: noopRecorder{},
		newID:    uuid.New,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Enroll creates the loyalty record for customerID. A customer can hold at
// most one record, active or not.
func (e *Engine) Enroll(ctx context.Context, customerID uuid.UUID) (*Record, error) {
	if customerID == uuid.Nil {
		return nil, e.done(OpEnroll, fmt.Errorf("%w: customer id", ErrInvalidID))
	}

	_, err := e.repo.FindByCustomer(ctx, customerID)
	switch {
	case err == nil:
		return nil, e.done(OpEnroll, ErrDuplicateEnrollment)
	case !errors.Is(err, ErrRecordNotFound):
		return nil, e.done(OpEnroll, err)
	}

	rec := NewRecord(e.newID(), customerID, e.now())
	if err := rec.Validate(); err != nil {
		return nil, e.done(OpEnroll, err)
	}
	// The store's uniqueness guarantee covers a concurrent enroll that slipped
	// in after the lookup above.
	if err := e.repo.Insert(ctx, &rec); err != nil {
		return nil, e.done(OpEnroll, err)
	}

	slog.Info("customer enrolled in loyalty program", "recordId", rec.ID, "customerId", customerID)
	return &rec, e.done(OpEnroll, nil)
}

// AddPoints credits rawPoints multiplied by the record's current tier
// multiplier, rounded down. A credit that would push the balance past
// math.MaxInt64 fails with ErrBalanceOverflow and nothing is written.
func (e *Engine) AddPoints(ctx context.Context, id uuid.UUID, rawPoints int64) (*Result, error) {
	if err := ValidateAmount(rawPoints); err != nil {
		return nil, e.done(OpAddPoints, err)
	}

	var earned int64
	res, err := e.mutate(ctx, OpAddPoints, id, func(cur Record, now time.Time) (Record, error) {
		next, n, err := Earn(cur, rawPoints, now)
		earned = n
		return next, err
	})
	if err != nil {
		return nil, err
	}
	res.Points = earned
	e.recorder.ObservePoints(OpAddPoints, earned)
	slog.Debug("loyalty points added", "recordId", id, "raw", rawPoints, "earned", earned, "balance", res.Balance)
	return res, nil
}

// RedeemPoints debits points. A redemption above the balance is declined
// with an error matching ErrInsufficientBalance and nothing is written.
func (e *Engine) RedeemPoints(ctx context.Context, id uuid.UUID, points int64) (*Result, error) {
	if err := ValidateAmount(points); err != nil {
		return nil, e.done(OpRedeem, err)
	}

	res, err := e.mutate(ctx, OpRedeem, id, func(cur Record, now time.Time) (Record, error) {
		return Redeem(cur, points, now)
	})
	if err != nil {
		return nil, err
	}
	res.Points = points
	e.recorder.ObservePoints(OpRedeem, points)
	slog.Debug("loyalty points redeemed", "recordId", id, "points", points, "balance", res.Balance)
	return res, nil
}

// SetActive toggles whether the record accrues and redeems points. A stored
// tier that drifted from the balance is corrected in the same write.
func (e *Engine) SetActive(ctx context.Context, id uuid.UUID, active bool) (*Record, error) {
	res, err := e.mutate(ctx, OpSetActive, id, func(cur Record, now time.Time) (Record, error) {
		return SetActive(cur, active, now), nil
	})
	if err != nil {
		return nil, err
	}
	slog.Info("loyalty record active flag set", "recordId", id, "active", active)
	return &res.Record, nil
}

// UpdateNotes replaces the free-form notes on a record.
func (e *Engine) UpdateNotes(ctx context.Context, id uuid.UUID, notes *string) (*Record, error) {
	res, err := e.mutate(ctx, OpUpdateNotes, id, func(cur Record, now time.Time) (Record, error) {
		return SetNotes(cur, notes, now), nil
	})
	if err != nil {
		return nil, err
	}
	return &res.Record, nil
}

// RepairTier rewrites a record whose stored tier disagrees with its balance.
// It reports whether a write happened.
func (e *Engine) RepairTier(ctx context.Context, id uuid.UUID) (*Record, bool, error) {
	res, err := e.mutate(ctx, OpRepairTier, id, func(cur Record, now time.Time) (Record, error) {
		next, changed := RepairTier(cur, now)
		if !changed {
			return cur, errUnchanged
		}
		return next, nil
	})
	if errors.Is(err, errUnchanged) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return &res.Record, true, nil
}

// Remove deletes a record administratively.
func (e *Engine) Remove(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return e.done(OpRemove, fmt.Errorf("%w: record id", ErrInvalidID))
	}
	if err := e.repo.Delete(ctx, id); err != nil {
		return e.done(OpRemove, err)
	}
	slog.Info("loyalty record removed", "recordId", id)
	return e.done(OpRemove, nil)
}

// Quote computes the discount the record's tier grants on amount. Inactive
// records are quoted a zero discount.
func (e *Engine) Quote(ctx context.Context, id uuid.UUID, amount decimal.Decimal) (*Quote, error) {
	if amount.IsNegative() {
		return nil, e.done(OpQuote, fmt.Errorf("%w: amount %s is negative", ErrInvalidAmount, amount))
	}
	rec, err := e.Get(ctx, id)
	if err != nil {
		return nil, e.done(OpQuote, err)
	}

	t := rec.TierInfo()
	q := &Quote{
		RecordID:           rec.ID,
		Tier:               t.Level,
		Active:             rec.Active,
		Amount:             amount,
		DiscountPercentage: decimal.Zero,
		Discount:           decimal.Zero,
	}
	if rec.Active {
		q.DiscountPercentage = t.DiscountPercentage
		q.Discount = t.Discount(amount)
	}
	q.Total = amount.Sub(q.Discount)
	return q, e.done(OpQuote, nil)
}

// errUnchanged aborts a mutation that would not change the record.
var errUnchanged = errors.New("record unchanged")

// mutate runs the read, compute, write cycle for one record.
func (e *Engine) mutate(
	ctx context.Context,
	op Operation,
	id uuid.UUID,
	next func(cur Record, now time.Time) (Record, error),
) (*Result, error) {
	if id == uuid.Nil {
		return nil, e.done(op, fmt.Errorf("%w: record id", ErrInvalidID))
	}

	cur, err := e.repo.FindByID(ctx, id)
	if err != nil {
		return nil, e.done(op, err)
	}

	updated, err := next(*cur, e.now())
	if errors.Is(err, errUnchanged) {
		return nil, err
	}
	if err != nil {
		return nil, e.done(op, err)
	}
	if err := updated.Validate(); err != nil {
		slog.Error("computed loyalty record is invalid", "recordId", id, "operation", op, "error", err)
		return nil, e.done(op, err)
	}

	if err := e.repo.Update(ctx, &updated); err != nil {
		return nil, e.done(op, err)
	}

	if cur.Tier != updated.Tier {
		e.recorder.ObserveTierChange(cur.Tier, updated.Tier)
		slog.Info("loyalty tier changed",
			"recordId", id,
			"from", cur.Tier.String(),
			"to", updated.Tier.String(),
			"balance", updated.Balance,
		)
	}

	return &Result{Record: updated, PreviousTier: cur.Tier}, e.done(op, nil)
}

// done records the outcome of op and returns err unchanged.
func (e *Engine) done(op Operation, err error) error {
	e.recorder.ObserveOperation(op, Outcome(err))
	return err
}

// now is truncated to microseconds so records survive a round trip through
// Postgres timestamps unchanged.
func (e *Engine) now() time.Time {
	return e.clock.Now().UTC().Truncate(time.Microsecond)
}
