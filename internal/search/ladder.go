package search

import (
	"math"
	"sort"

	"solana-arb-engine/internal/domain"
)

// DefaultLadder is the default set of probe amounts in lamports
// (0.001 to 0.05 SOL).
var DefaultLadder = []uint64{1_000_000, 5_000_000, 10_000_000, 50_000_000}

// ladder returns the sorted, deduplicated probe amounts for a route: the
// fixed amounts plus fractions of the first leg's input reserve.
func ladder(route domain.Route, fixed []uint64, fractions []float64) []uint64 {
	seen := make(map[uint64]struct{}, len(fixed)+len(fractions))
	out := make([]uint64, 0, len(fixed)+len(fractions))
	add := func(v uint64) {
		if v == 0 {
			return
		}
		if _, dup := seen[v]; dup {
			return
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}

	for _, v := range fixed {
		add(v)
	}
	if len(fractions) > 0 && route.Len() > 0 {
		first := route.Leg(0)
		if rin, _, ok := first.Pool.Reserves(first.OutputMint); ok {
			for _, f := range fractions {
				v := math.Floor(f * float64(rin))
				if v >= 1 && v < math.MaxUint64 {
					add(uint64(v))
				}
			}
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
