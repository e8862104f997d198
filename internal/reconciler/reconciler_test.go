package reconciler_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daap14/loyalty/internal/clock"
	"github.com/daap14/loyalty/internal/loyalty"
	"github.com/daap14/loyalty/internal/reconciler"
	"github.com/daap14/loyalty/internal/tier"
)

// --- Mock Engine ---

type mockEngine struct {
	mu           sync.Mutex
	listFn       func(ctx context.Context) ([]loyalty.Record, error)
	repairTierFn func(ctx context.Context, id uuid.UUID) (*loyalty.Record, bool, error)

	repairCalls []uuid.UUID
}

func (m *mockEngine) List(ctx context.Context) ([]loyalty.Record, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return []loyalty.Record{}, nil
}

func (m *mockEngine) RepairTier(ctx context.Context, id uuid.UUID) (*loyalty.Record, bool, error) {
	m.mu.Lock()
	m.repairCalls = append(m.repairCalls, id)
	m.mu.Unlock()
	if m.repairTierFn != nil {
		return m.repairTierFn(ctx, id)
	}
	return nil, false, nil
}

func (m *mockEngine) getRepairCalls() []uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]uuid.UUID, len(m.repairCalls))
	copy(result, m.repairCalls)
	return result
}

type countingObserver struct {
	mu    sync.Mutex
	count int
}

func (o *countingObserver) ObserveRepair() {
	o.mu.Lock()
	o.count++
	o.mu.Unlock()
}

func (o *countingObserver) get() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.count
}

// --- Helpers ---

func record(balance int64, stored tier.Level) loyalty.Record {
	now := time.Now().UTC()
	return loyalty.Record{
		ID:             uuid.New(),
		CustomerID:     uuid.New(),
		Balance:        balance,
		Tier:           stored,
		EnrollmentDate: now,
		LastUpdateDate: now,
		Active:         true,
		Version:        1,
	}
}

func TestSweep_RepairsOnlyDriftedRecords(t *testing.T) {
	consistent := record(1200, tier.Mid)
	drifted := record(6000, tier.Mid)

	eng := &mockEngine{
		listFn: func(_ context.Context) ([]loyalty.Record, error) {
			return []loyalty.Record{consistent, drifted}, nil
		},
		repairTierFn: func(_ context.Context, id uuid.UUID) (*loyalty.Record, bool, error) {
			fixed := drifted
			fixed.Tier = tier.Senior
			return &fixed, true, nil
		},
	}
	obs := &countingObserver{}

	r := reconciler.New(eng, obs, time.Hour)
	repaired := r.Sweep(context.Background())

	assert.Equal(t, 1, repaired)
	assert.Equal(t, []uuid.UUID{drifted.ID}, eng.getRepairCalls())
	assert.Equal(t, 1, obs.get())
}

func TestSweep_ListError(t *testing.T) {
	eng := &mockEngine{
		listFn: func(_ context.Context) ([]loyalty.Record, error) {
			return nil, loyalty.ErrStorage
		},
	}

	r := reconciler.New(eng, nil, time.Hour)
	assert.Equal(t, 0, r.Sweep(context.Background()))
	assert.Empty(t, eng.getRepairCalls())
}

func TestSweep_RepairFailureIsSkipped(t *testing.T) {
	a := record(0, tier.Top)
	b := record(10000, tier.Entry)

	eng := &mockEngine{
		listFn: func(_ context.Context) ([]loyalty.Record, error) {
			return []loyalty.Record{a, b}, nil
		},
		repairTierFn: func(_ context.Context, id uuid.UUID) (*loyalty.Record, bool, error) {
			if id == a.ID {
				return nil, false, loyalty.ErrConcurrentUpdate
			}
			fixed := b
			fixed.Tier = tier.Top
			return &fixed, true, nil
		},
	}

	r := reconciler.New(eng, nil, time.Hour)
	assert.Equal(t, 1, r.Sweep(context.Background()))
	assert.Len(t, eng.getRepairCalls(), 2)
}

func TestSweep_AgainstEngine(t *testing.T) {
	repo := loyalty.NewMemoryRepository()
	fc := clock.NewFake(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	engine := loyalty.NewEngine(repo, loyalty.WithClock(fc))

	rec, err := engine.Enroll(context.Background(), uuid.New())
	require.NoError(t, err)
	_, err = engine.AddPoints(context.Background(), rec.ID, 5000)
	require.NoError(t, err)

	// Simulate an out-of-band edit that left the tier stale.
	stale, err := repo.FindByID(context.Background(), rec.ID)
	require.NoError(t, err)
	stale.Tier = tier.Entry
	require.NoError(t, repo.Update(context.Background(), stale))

	r := reconciler.New(engine, nil, time.Hour)
	assert.Equal(t, 1, r.Sweep(context.Background()))
	assert.Equal(t, 0, r.Sweep(context.Background()))

	got, err := engine.Get(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, tier.Senior, got.Tier)
	assert.Equal(t, int64(5000), got.Balance)
}

func TestStart_StopsOnCancel(t *testing.T) {
	drifted := record(1000, tier.Entry)
	eng := &mockEngine{
		listFn: func(_ context.Context) ([]loyalty.Record, error) {
			return []loyalty.Record{drifted}, nil
		},
		repairTierFn: func(_ context.Context, _ uuid.UUID) (*loyalty.Record, bool, error) {
			fixed := drifted
			fixed.Tier = tier.Mid
			return &fixed, true, nil
		},
	}

	r := reconciler.New(eng, nil, 20*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Start(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return len(eng.getRepairCalls()) >= 1 }, time.Second, 10*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reconciler did not stop after cancel")
	}
}

