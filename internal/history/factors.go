// Package history turns stored execution outcomes and reserve snapshots into
// the scoring factors of a search pass.
package history

import (
	"math"

	"solana-arb-engine/internal/domain"
)

// minVolatilitySnapshots is the fewest snapshots with a usable price needed
// to estimate volatility.
const minVolatilitySnapshots = 3

// SuccessFactor is the Laplace-smoothed success rate
// (successes + 1) / (attempts + 2), or 1 while attempts < minSamples.
func SuccessFactor(successes, attempts, minSamples int64) float64 {
	if attempts <= 0 || attempts < minSamples {
		return 1
	}
	if successes < 0 {
		successes = 0
	}
	if successes > attempts {
		successes = attempts
	}
	return float64(successes+1) / float64(attempts+2)
}

// VolatilityDiscount is 1 / (1 + weight x stddev(log returns)) over the
// prices of snaps, taken in order. Fewer than three priced snapshots give 1.
func VolatilityDiscount(snaps []*domain.ReserveSnapshot, weight float64) float64 {
	sd, ok := LogReturnStdDev(snaps)
	if !ok || weight <= 0 {
		return 1
	}
	return 1 / (1 + weight*sd)
}

// LogReturnStdDev returns the sample standard deviation of consecutive log
// price returns. ok is false with fewer than three priced snapshots.
func LogReturnStdDev(snaps []*domain.ReserveSnapshot) (float64, bool) {
	prices := make([]float64, 0, len(snaps))
	for _, s := range snaps {
		if s == nil {
			continue
		}
		if p := s.Price(); p > 0 && !math.IsInf(p, 0) {
			prices = append(prices, p)
		}
	}
	if len(prices) < minVolatilitySnapshots {
		return 0, false
	}

	returns := make([]float64, len(prices)-1)
	var mean float64
	for i := 1; i < len(prices); i++ {
		returns[i-1] = math.Log(prices[i] / prices[i-1])
		mean += returns[i-1]
	}
	mean /= float64(len(returns))

	var ss float64
	for _, r := range returns {
		ss += (r - mean) * (r - mean)
	}
	return math.Sqrt(ss / float64(len(returns)-1)), true
}

// Snapshot is a frozen set of scoring factors. It satisfies search.Factors.
type Snapshot struct {
	success    map[string]float64
	volatility map[domain.Address]float64
}

// NewSnapshot creates a Snapshot from precomputed factors. Missing keys
// score 1.
func NewSnapshot(success map[string]float64, volatility map[domain.Address]float64) *Snapshot {
	return &Snapshot{success: success, volatility: volatility}
}

// SuccessFactor returns the success factor of a route key.
func (s *Snapshot) SuccessFactor(routeKey string) float64 {
	if f, ok := s.success[routeKey]; ok {
		return f
	}
	return 1
}

// VolatilityDiscount returns the volatility discount of a pool.
func (s *Snapshot) VolatilityDiscount(pool domain.Address) float64 {
	if d, ok := s.volatility[pool]; ok {
		return d
	}
	return 1
}

// Routes returns the number of routes with a recorded success factor.
func (s *Snapshot) Routes() int { return len(s.success) }

// Pools returns the number of pools with a recorded volatility discount.
func (s *Snapshot) Pools() int { return len(s.volatility) }
