package swap

import (
	"fmt"
	"math"

	"solana-arb-engine/internal/domain"
)

// Tier is one step of a discount table. It applies to trades whose
// amount_in / reserve_in is below MaxRatio; the last tier is open-ended.
type Tier struct {
	MaxRatio float64
	Factor   float64
}

// DiscountTable is an ordered step function of trade size over reserve_in.
type DiscountTable []Tier

// Validate checks that bounds strictly increase, the last tier is
// open-ended and every factor lies in (0, 1].
func (t DiscountTable) Validate() error {
	if len(t) == 0 {
		return fmt.Errorf("discount table is empty")
	}
	prev := 0.0
	for i, tier := range t {
		if tier.Factor <= 0 || tier.Factor > 1 {
			return fmt.Errorf("tier %d: factor %g outside (0, 1]", i, tier.Factor)
		}
		if tier.MaxRatio <= prev {
			return fmt.Errorf("tier %d: bound %g does not increase", i, tier.MaxRatio)
		}
		prev = tier.MaxRatio
	}
	if !math.IsInf(t[len(t)-1].MaxRatio, 1) {
		return fmt.Errorf("last tier must be open-ended")
	}
	return nil
}

// tierIndex returns the tier for a trade ratio.
func (t DiscountTable) tierIndex(ratio float64) int {
	for i, tier := range t {
		if ratio < tier.MaxRatio {
			return i
		}
	}
	return len(t) - 1
}

// NewDiscountTable builds a table from upper bounds and factors; len(factors)
// must be len(bounds)+1, the extra factor being the open-ended tier.
func NewDiscountTable(bounds, factors []float64) (DiscountTable, error) {
	if len(factors) != len(bounds)+1 {
		return nil, fmt.Errorf("want %d factors for %d bounds, have %d", len(bounds)+1, len(bounds), len(factors))
	}
	t := make(DiscountTable, len(factors))
	for i, f := range factors {
		t[i] = Tier{MaxRatio: math.Inf(1), Factor: f}
		if i < len(bounds) {
			t[i].MaxRatio = bounds[i]
		}
	}
	return t, t.Validate()
}

// DefaultTierBounds are the default upper bounds on amount_in / reserve_in.
var DefaultTierBounds = []float64{0.001, 0.01, 0.02}

// DefaultDiscountTables returns the per-protocol default tables.
func DefaultDiscountTables() map[domain.Protocol]DiscountTable {
	factors := map[domain.Protocol][]float64{
		domain.ProtocolRaydium:   {0.9995, 0.997, 0.992, 0.985},
		domain.ProtocolOrca:      {0.9997, 0.998, 0.994, 0.988},
		domain.ProtocolWhirlpool: {0.9998, 0.9985, 0.996, 0.991},
		domain.ProtocolSerum:     {0.9996, 0.996, 0.990, 0.980},
	}
	out := make(map[domain.Protocol]DiscountTable, len(factors))
	for p, f := range factors {
		t, err := NewDiscountTable(DefaultTierBounds, f)
		if err != nil {
			panic(fmt.Sprintf("swap: default table %s: %v", p, err))
		}
		out[p] = t
	}
	return out
}
