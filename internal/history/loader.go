package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"solana-arb-engine/internal/domain"
	"solana-arb-engine/internal/storage"
)

// Config configures the factor estimators.
type Config struct {
	VolatilityWindow time.Duration // snapshot lookback for volatility
	VolatilityWeight float64
	MinSamples       int64         // attempts before the success factor departs from 1
	OutcomeLookback  time.Duration // outcome lookback for success rates; zero reads all
}

// DefaultConfig returns the default estimator configuration.
func DefaultConfig() Config {
	return Config{
		VolatilityWindow: time.Hour,
		VolatilityWeight: 10,
		MinSamples:       5,
		OutcomeLookback:  7 * 24 * time.Hour,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.VolatilityWindow <= 0 {
		return errors.New("history: volatility window must be positive")
	}
	if c.VolatilityWeight < 0 {
		return errors.New("history: volatility weight must not be negative")
	}
	if c.MinSamples < 0 {
		return errors.New("history: min samples must not be negative")
	}
	if c.OutcomeLookback < 0 {
		return errors.New("history: outcome lookback must not be negative")
	}
	return nil
}

// Loader reads stored history into a Snapshot. Either store may be nil, in
// which case its factor is neutral.
type Loader struct {
	outcomes  storage.OutcomeStore
	snapshots storage.SnapshotStore
	cfg       Config
	now       func() time.Time
}

// NewLoader creates a Loader.
func NewLoader(outcomes storage.OutcomeStore, snapshots storage.SnapshotStore, cfg Config) (*Loader, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Loader{outcomes: outcomes, snapshots: snapshots, cfg: cfg, now: time.Now}, nil
}

// Load builds the factors for one pass.
func (l *Loader) Load(ctx context.Context) (*Snapshot, error) {
	now := l.now()
	s := NewSnapshot(make(map[string]float64), make(map[domain.Address]float64))

	if l.outcomes != nil {
		var since int64
		if l.cfg.OutcomeLookback > 0 {
			since = now.Add(-l.cfg.OutcomeLookback).UnixMilli()
		}
		stats, err := l.outcomes.RouteStats(ctx, since)
		if err != nil {
			return nil, fmt.Errorf("history: route stats: %w", err)
		}
		for _, st := range stats {
			s.success[st.RouteKey] = SuccessFactor(st.Successes, st.Attempts, l.cfg.MinSamples)
		}
	}

	if l.snapshots != nil {
		start := now.Add(-l.cfg.VolatilityWindow).UnixMilli()
		snaps, err := l.snapshots.GetByTimeRange(ctx, start, now.UnixMilli())
		if err != nil {
			return nil, fmt.Errorf("history: reserve snapshots: %w", err)
		}
		byPool := make(map[domain.Address][]*domain.ReserveSnapshot)
		for _, snap := range snaps {
			byPool[snap.Pool] = append(byPool[snap.Pool], snap)
		}
		for pool, series := range byPool {
			if _, ok := LogReturnStdDev(series); ok {
				s.volatility[pool] = VolatilityDiscount(series, l.cfg.VolatilityWeight)
			}
		}
	}

	return s, nil
}
