package history

import (
	"bytes"
	"context"
	"math"
	"testing"
	"time"

	"solana-arb-engine/internal/domain"
	"solana-arb-engine/internal/search"
	"solana-arb-engine/internal/storage/memory"
)

var _ search.Factors = (*Snapshot)(nil)

func addr(n byte) domain.Address {
	a, _ := domain.AddressFromBytes(bytes.Repeat([]byte{n}, domain.AddressLength))
	return a
}

func series(pool domain.Address, start int64, reservesB ...uint64) []*domain.ReserveSnapshot {
	out := make([]*domain.ReserveSnapshot, len(reservesB))
	for i, b := range reservesB {
		out[i] = &domain.ReserveSnapshot{
			Pool:        pool,
			Slot:        uint64(i + 1),
			TimestampMs: start + int64(i)*1000,
			ReserveA:    1000,
			ReserveB:    b,
		}
	}
	return out
}

func TestSuccessFactor(t *testing.T) {
	tests := []struct {
		name                string
		successes, attempts int64
		minSamples          int64
		want                float64
	}{
		{"no history", 0, 0, 5, 1},
		{"below min samples", 0, 4, 5, 1},
		{"all failures", 0, 8, 5, 0.1},
		{"all successes", 8, 8, 5, 0.9},
		{"half", 5, 10, 5, 0.5},
		{"zero min samples", 1, 1, 0, 2.0 / 3.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SuccessFactor(tt.successes, tt.attempts, tt.minSamples)
			if math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("SuccessFactor = %g, want %g", got, tt.want)
			}
		})
	}
}

func TestVolatilityDiscount(t *testing.T) {
	pool := addr(1)

	if got := VolatilityDiscount(series(pool, 0, 2000, 2000), 10); got != 1 {
		t.Errorf("two snapshots: got %g, want 1", got)
	}
	if got := VolatilityDiscount(series(pool, 0, 2000, 2000, 2000, 2000), 10); got != 1 {
		t.Errorf("flat price: got %g, want 1", got)
	}

	// Returns ln(2) and -ln(2): mean 0, sample stddev ln(2)*sqrt(2).
	got := VolatilityDiscount(series(pool, 0, 1000, 2000, 1000), 1)
	want := 1 / (1 + math.Ln2*math.Sqrt2)
	if math.Abs(got-want) > 1e-12 {
		t.Errorf("oscillating price: got %g, want %g", got, want)
	}

	calm := VolatilityDiscount(series(pool, 0, 1000, 1010, 1000, 1010), 10)
	wild := VolatilityDiscount(series(pool, 0, 1000, 1500, 1000, 1500), 10)
	if !(wild < calm && calm < 1) {
		t.Errorf("discount not decreasing with volatility: calm %g, wild %g", calm, wild)
	}

	if got := VolatilityDiscount(series(pool, 0, 1000, 2000, 1000), 0); got != 1 {
		t.Errorf("zero weight: got %g, want 1", got)
	}
}

func TestVolatilityDiscount_SkipsUnpricedSnapshots(t *testing.T) {
	snaps := series(addr(1), 0, 1000, 2000, 1000)
	snaps = append(snaps, &domain.ReserveSnapshot{Pool: addr(1), ReserveA: 0, ReserveB: 5})
	if _, ok := LogReturnStdDev(snaps[2:]); ok {
		t.Error("expected too few priced snapshots")
	}
	if _, ok := LogReturnStdDev(snaps); !ok {
		t.Error("expected enough priced snapshots")
	}
}

func TestSnapshot_Defaults(t *testing.T) {
	s := NewSnapshot(map[string]float64{"r": 0.25}, map[domain.Address]float64{addr(1): 0.5})
	if s.SuccessFactor("r") != 0.25 || s.SuccessFactor("other") != 1 {
		t.Error("unexpected success factors")
	}
	if s.VolatilityDiscount(addr(1)) != 0.5 || s.VolatilityDiscount(addr(2)) != 1 {
		t.Error("unexpected volatility discounts")
	}
}

func TestLoader_Load(t *testing.T) {
	ctx := context.Background()
	now := time.UnixMilli(10_000_000)

	outcomes := memory.NewOutcomeStore()
	for i, success := range []bool{true, true, true, false, false, false} {
		o := &domain.ExecutionOutcome{
			OpportunityID: "opp",
			RouteKey:      "route-1",
			Success:       success,
			ExecutedAt:    now.UnixMilli() - int64(i+1)*1000,
		}
		if err := outcomes.Insert(ctx, o); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}
	// Outside the lookback.
	_ = outcomes.Insert(ctx, &domain.ExecutionOutcome{OpportunityID: "old", RouteKey: "route-1", Success: true, ExecutedAt: 1})

	snapshots := memory.NewSnapshotStore()
	start := now.UnixMilli() - 10_000
	if err := snapshots.InsertBulk(ctx, series(addr(1), start, 1000, 2000, 1000)); err != nil {
		t.Fatalf("InsertBulk: %v", err)
	}
	if err := snapshots.InsertBulk(ctx, series(addr(2), start, 1000, 1000)); err != nil {
		t.Fatalf("InsertBulk: %v", err)
	}

	cfg := DefaultConfig()
	cfg.VolatilityWeight = 1
	cfg.OutcomeLookback = time.Hour
	l, err := NewLoader(outcomes, snapshots, cfg)
	if err != nil {
		t.Fatalf("NewLoader: %v", err)
	}
	l.now = func() time.Time { return now }

	s, err := l.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := s.SuccessFactor("route-1"); math.Abs(got-0.5) > 1e-12 {
		t.Errorf("success factor = %g, want 0.5", got)
	}
	want := 1 / (1 + math.Ln2*math.Sqrt2)
	if got := s.VolatilityDiscount(addr(1)); math.Abs(got-want) > 1e-12 {
		t.Errorf("volatility discount = %g, want %g", got, want)
	}
	if s.Pools() != 1 {
		t.Errorf("pools with discount = %d, want 1", s.Pools())
	}
}

func TestLoader_NilStores(t *testing.T) {
	l, err := NewLoader(nil, nil, DefaultConfig())
	if err != nil {
		t.Fatalf("NewLoader: %v", err)
	}
	s, err := l.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Routes() != 0 || s.Pools() != 0 {
		t.Error("expected empty snapshot")
	}
}

func TestConfig_Validate(t *testing.T) {
	bad := []Config{
		{VolatilityWindow: 0, VolatilityWeight: 1},
		{VolatilityWindow: time.Minute, VolatilityWeight: -1},
		{VolatilityWindow: time.Minute, MinSamples: -1},
		{VolatilityWindow: time.Minute, OutcomeLookback: -time.Second},
	}
	for i, c := range bad {
		if err := c.Validate(); err == nil {
			t.Errorf("config %d: expected error", i)
		}
	}
	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("default config: %v", err)
	}
}
