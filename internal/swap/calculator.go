package swap

import (
	"fmt"
	"math"
	"math/big"

	"solana-arb-engine/internal/domain"
)

// Config configures the calculator.
type Config struct {
	// MaxTradeImpact is the hard cap on amount_in / reserve_in.
	MaxTradeImpact float64
	Discounts      map[domain.Protocol]DiscountTable
}

// DefaultConfig returns the default calculator configuration.
func DefaultConfig() Config {
	return Config{
		MaxTradeImpact: 0.05,
		Discounts:      DefaultDiscountTables(),
	}
}

// Calculator computes realizable swap outputs. It is a pure function of
// its configuration and arguments.
type Calculator struct {
	maxImpact float64
	discounts map[domain.Protocol]DiscountTable
}

// NewCalculator validates cfg and returns a Calculator. Every supported
// protocol must have a discount table.
func NewCalculator(cfg Config) (*Calculator, error) {
	if !(cfg.MaxTradeImpact > 0) || math.IsInf(cfg.MaxTradeImpact, 1) {
		return nil, fmt.Errorf("swap: max trade impact %g must be positive and finite", cfg.MaxTradeImpact)
	}
	discounts := make(map[domain.Protocol]DiscountTable, len(cfg.Discounts))
	for _, p := range domain.Protocols {
		t, ok := cfg.Discounts[p]
		if !ok {
			return nil, fmt.Errorf("swap: no discount table for %s", p)
		}
		if err := t.Validate(); err != nil {
			return nil, fmt.Errorf("swap: %s: %w", p, err)
		}
		discounts[p] = append(DiscountTable(nil), t...)
	}
	return &Calculator{maxImpact: cfg.MaxTradeImpact, discounts: discounts}, nil
}

// MaxTradeImpact returns the configured hard cap on amount_in / reserve_in.
func (c *Calculator) MaxTradeImpact() float64 {
	return c.maxImpact
}

// Output returns the discounted amount of outputMint received for amountIn
// of the pool's other mint.
func (c *Calculator) Output(pool *domain.PoolState, amountIn uint64, outputMint domain.Address) (uint64, error) {
	reserveIn, reserveOut, ok := pool.Reserves(outputMint)
	if !ok {
		return 0, calcError(KindUnknownOutputMint, "%s not traded by pool %s", outputMint, pool.Address)
	}
	if amountIn == 0 || reserveIn == 0 || reserveOut == 0 {
		return 0, calcError(KindInsufficientInput, "amount %d against reserves %d/%d", amountIn, reserveIn, reserveOut)
	}

	ratio := float64(amountIn) / float64(reserveIn)
	if ratio > c.maxImpact {
		return 0, calcError(KindExcessPriceImpact, "trade is %.4f of reserve_in, cap %.4f", ratio, c.maxImpact)
	}

	table := c.discounts[pool.Protocol]
	if table == nil {
		return 0, calcError(KindUnknownOutputMint, "no discount table for protocol %q", pool.Protocol)
	}

	out := discountedOutput(table, reserveIn, reserveOut, pool.FeeBps, amountIn)

	if out > reserveOut/2 {
		return 0, calcError(KindPoolDrainGuard, "output %d exceeds half of reserve %d", out, reserveOut)
	}
	if out == 0 {
		return 0, calcError(KindInsufficientInput, "amount %d rounds to zero output", amountIn)
	}
	return out, nil
}

// discountedOutput applies the tier factor for amountIn and floors the
// result at the best output reachable in any shallower tier, which keeps
// the output non-decreasing in amountIn across tier boundaries.
func discountedOutput(table DiscountTable, reserveIn, reserveOut, feeBps, amountIn uint64) uint64 {
	tier := table.tierIndex(float64(amountIn) / float64(reserveIn))
	out := applyFactor(RawOutput(reserveIn, reserveOut, feeBps, amountIn), table[tier].Factor)

	for j := 0; j < tier; j++ {
		edge := tierEdge(table, j, reserveIn)
		if edge == 0 || edge >= amountIn {
			continue
		}
		carried := applyFactor(RawOutput(reserveIn, reserveOut, feeBps, edge), table[j].Factor)
		if carried > out {
			out = carried
		}
	}
	return out
}

// tierEdge returns the largest amount that still falls in tier j, or 0.
func tierEdge(table DiscountTable, j int, reserveIn uint64) uint64 {
	bound := table[j].MaxRatio * float64(reserveIn)
	if bound >= math.MaxUint64 {
		return 0
	}
	edge := uint64(math.Ceil(bound))
	if edge > 0 {
		edge--
	}
	// float rounding can misplace the edge by a unit either way
	for edge > 0 && table.tierIndex(float64(edge)/float64(reserveIn)) > j {
		edge--
	}
	for table.tierIndex(float64(edge+1)/float64(reserveIn)) <= j {
		edge++
	}
	return edge
}

func applyFactor(raw uint64, factor float64) uint64 {
	return uint64(math.Floor(float64(raw) * factor))
}

// RawOutput is the constant-product output with the fee applied exactly:
// floor(reserveOut * amountIn * (10000-fee) / (reserveIn*10000 + amountIn*(10000-fee))).
func RawOutput(reserveIn, reserveOut, feeBps, amountIn uint64) uint64 {
	if feeBps >= 10_000 {
		return 0
	}
	inWithFee := new(big.Int).Mul(new(big.Int).SetUint64(amountIn), new(big.Int).SetUint64(10_000-feeBps))

	num := new(big.Int).Mul(new(big.Int).SetUint64(reserveOut), inWithFee)
	den := new(big.Int).Mul(new(big.Int).SetUint64(reserveIn), big.NewInt(10_000))
	den.Add(den, inWithFee)
	if den.Sign() == 0 {
		return 0
	}
	return num.Quo(num, den).Uint64()
}
