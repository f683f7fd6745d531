package cost

import (
	"errors"
	"fmt"
	"math"
	"math/big"

	"github.com/shopspring/decimal"

	"solana-arb-engine/internal/domain"
)

// Config holds the network fee estimate and the price impact cost factor.
type Config struct {
	BaseFee          uint64  // lamports per signature
	PriorityFee      uint64  // lamports
	ComputeUnits     uint64  // compute budget of one route transaction
	ComputeUnitPrice uint64  // micro-lamports per compute unit
	ImpactCostFactor float64 // share of the trade-size ratio charged as slippage
}

// DefaultConfig returns the default cost configuration (17,000 lamports of
// network fee).
func DefaultConfig() Config {
	return Config{
		BaseFee:          5_000,
		PriorityFee:      10_000,
		ComputeUnits:     200_000,
		ComputeUnitPrice: 10_000,
		ImpactCostFactor: 0.1,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.ImpactCostFactor < 0 || math.IsNaN(c.ImpactCostFactor) || math.IsInf(c.ImpactCostFactor, 0) {
		return fmt.Errorf("cost: impact cost factor %g must be a non-negative number", c.ImpactCostFactor)
	}
	return nil
}

var (
	// ErrMissingLegOutput is returned when fewer leg outputs than needed are given.
	ErrMissingLegOutput = errors.New("cost: missing leg output")

	// ErrUnpricedBase is returned for routes whose base mint has no current
	// lamport conversion.
	ErrUnpricedBase = errors.New("cost: no lamport conversion for base mint")
)

// FeeConverter converts a lamport amount into base units of mint. ok is
// false when a price or the mint decimals are unknown or stale.
type FeeConverter interface {
	LamportsIn(mint domain.Address, lamports uint64) (units uint64, ok bool)
}

var (
	bpsDenominator = decimal.NewFromInt(10_000)
	microLamports  = decimal.NewFromInt(1_000_000)
	one            = decimal.NewFromInt(1)
)

// Model estimates the cost of executing a route. It is deterministic for a
// fixed set of prices.
type Model struct {
	networkFee   uint64
	impactFactor decimal.Decimal
	converter    FeeConverter
}

// ModelOption configures a Model.
type ModelOption func(*Model)

// WithConverter sets the conversion used for routes not based on WSOL.
// Without one only WSOL routes can be costed.
func WithConverter(c FeeConverter) ModelOption {
	return func(m *Model) {
		m.converter = c
	}
}

// NewModel validates cfg and precomputes the network fee.
func NewModel(cfg Config, opts ...ModelOption) (*Model, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	budget := dec(cfg.ComputeUnits).Mul(dec(cfg.ComputeUnitPrice)).Div(microLamports).Ceil()
	network := dec(cfg.BaseFee).Add(dec(cfg.PriorityFee)).Add(budget)
	if !network.BigInt().IsUint64() {
		return nil, fmt.Errorf("cost: network fee %s overflows", network)
	}
	m := &Model{
		networkFee:   network.BigInt().Uint64(),
		impactFactor: decimal.NewFromFloat(cfg.ImpactCostFactor),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// NetworkFee returns the estimated lamport cost of one route transaction.
func (m *Model) NetworkFee() uint64 {
	return m.networkFee
}

// LamportsIn converts lamports into base units of mint. WSOL converts one
// to one; any other mint goes through the converter.
func (m *Model) LamportsIn(mint domain.Address, lamports uint64) (uint64, error) {
	if mint.Equals(domain.WrappedSOLMint) {
		return lamports, nil
	}
	if m.converter != nil {
		if units, ok := m.converter.LamportsIn(mint, lamports); ok {
			return units, nil
		}
	}
	return 0, fmt.Errorf("%w: %s", ErrUnpricedBase, mint)
}

// Estimate returns the cost breakdown of swapping amountIn along route, in
// units of the route's base mint. legOutputs[i] is the output of leg i; only the outputs that feed a later
// leg are read, so a two-leg route needs just the first leg's output.
func (m *Model) Estimate(route domain.Route, amountIn uint64, legOutputs []uint64) (domain.Costs, error) {
	n := route.Len()
	if len(legOutputs) < n-1 {
		return domain.Costs{}, fmt.Errorf("%w: have %d, need %d", ErrMissingLegOutput, len(legOutputs), n-1)
	}
	networkFee, err := m.LamportsIn(route.BaseMint(), m.networkFee)
	if err != nil {
		return domain.Costs{}, err
	}

	inputs := make([]decimal.Decimal, n)
	reserveIn := make([]decimal.Decimal, n)
	spot := make([]decimal.Decimal, n)
	for i := 0; i < n; i++ {
		leg := route.Leg(i)
		rin, rout, ok := leg.Pool.Reserves(leg.OutputMint)
		if !ok || rin == 0 {
			return domain.Costs{}, fmt.Errorf("cost: leg %d has no reserves for %s", i, leg.OutputMint)
		}
		if i == 0 {
			inputs[i] = dec(amountIn)
		} else {
			inputs[i] = dec(legOutputs[i-1])
		}
		reserveIn[i] = dec(rin)
		spot[i] = dec(rout).DivRound(reserveIn[i], 18)
	}

	// base_equiv(in_i) = in_i * prod_{j>=i} spot_j for i >= 1; leg 0 input is already base.
	baseEquiv := make([]decimal.Decimal, n)
	conv := one
	for i := n - 1; i >= 1; i-- {
		conv = conv.Mul(spot[i])
		baseEquiv[i] = inputs[i].Mul(conv)
	}
	baseEquiv[0] = inputs[0]

	trading := decimal.Zero
	impact := decimal.Zero
	for i := 0; i < n; i++ {
		leg := route.Leg(i)
		trading = trading.Add(baseEquiv[i].Mul(dec(leg.Pool.FeeBps)).Div(bpsDenominator))
		ratio := inputs[i].DivRound(reserveIn[i], 18)
		impact = impact.Add(baseEquiv[i].Mul(ratio).Mul(m.impactFactor))
	}

	tradingFees, err := toUnits(trading)
	if err != nil {
		return domain.Costs{}, fmt.Errorf("cost: trading fees: %w", err)
	}
	priceImpact, err := toUnits(impact)
	if err != nil {
		return domain.Costs{}, fmt.Errorf("cost: price impact: %w", err)
	}

	return domain.Costs{
		NetworkFee:      networkFee,
		NetworkLamports: m.networkFee,
		TradingFees:     tradingFees,
		PriceImpact:     priceImpact,
	}, nil
}

// toUnits truncates toward zero to whole base units.
func toUnits(d decimal.Decimal) (uint64, error) {
	v := d.Truncate(0).BigInt()
	if v.Sign() < 0 || !v.IsUint64() {
		return 0, fmt.Errorf("value %s out of range", d)
	}
	return v.Uint64(), nil
}

func dec(v uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(v), 0)
}
