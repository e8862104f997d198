package reconciler

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/daap14/loyalty/internal/loyalty"
	"github.com/daap14/loyalty/internal/tier"
)

// Engine is the subset of the loyalty engine the reconciler drives.
type Engine interface {
	List(ctx context.Context) ([]loyalty.Record, error)
	RepairTier(ctx context.Context, id uuid.UUID) (*loyalty.Record, bool, error)
}

// RepairObserver is notified once per repaired record.
type RepairObserver interface {
	ObserveRepair()
}

// Reconciler periodically rewrites records whose stored tier has drifted
// from the tier their balance derives.
type Reconciler struct {
	engine   Engine
	observer RepairObserver
	interval time.Duration
}

// New creates a new Reconciler. observer may be nil.
func New(engine Engine, observer RepairObserver, interval time.Duration) *Reconciler {
	return &Reconciler{
		engine:   engine,
		observer: observer,
		interval: interval,
	}
}

// Start begins the reconciliation loop. It blocks until ctx is cancelled.
func (r *Reconciler) Start(ctx context.Context) {
	slog.Info("reconciler started", "interval", r.interval.String())
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("reconciler stopped")
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Sweep runs one pass over all records and returns how many were repaired.
func (r *Reconciler) Sweep(ctx context.Context) int {
	records, err := r.engine.List(ctx)
	if err != nil {
		slog.Error("reconciler: failed to list loyalty records", "error", err)
		return 0
	}

	repaired := 0
	for _, rec := range records {
		if ctx.Err() != nil {
			return repaired
		}
		if rec.Tier == tier.For(rec.Balance).Level {
			continue
		}
		if r.repairOne(ctx, rec) {
			repaired++
		}
	}
	return repaired
}

func (r *Reconciler) repairOne(ctx context.Context, rec loyalty.Record) bool {
	updated, changed, err := r.engine.RepairTier(ctx, rec.ID)
	if err != nil {
		// A concurrent write re-derives the tier itself, so the next sweep
		// will find the record consistent or retry it.
		slog.Warn("reconciler: failed to repair tier",
			"recordId", rec.ID,
			"storedTier", rec.Tier.String(),
			"error", err,
		)
		return false
	}
	if !changed {
		return false
	}

	if r.observer != nil {
		r.observer.ObserveRepair()
	}
	slog.Info("reconciler: tier repaired",
		"recordId", rec.ID,
		"balance", updated.Balance,
		"from", rec.Tier.String(),
		"to", updated.Tier.String(),
	)
	return true
}
