package risk

import (
	"fmt"
	"math"
	"math/bits"

	"solana-arb-engine/internal/domain"
)

// Config holds the thresholds of the risk rules.
type Config struct {
	FeeMarginMultiple uint64  // net profit must cover this many network fees
	MinProfitBps      int64   // floor on profit_bps
	MaxProfitBps      int64   // ceiling on profit_bps; larger profits are treated as data errors
	MaxTradeImpact    float64 // ceiling on leg_input / reserve_in per leg
	MinLiquidity      uint64  // floor on both reserves of every pool
}

// DefaultConfig returns the default risk thresholds.
func DefaultConfig() Config {
	return Config{
		FeeMarginMultiple: 2,
		MinProfitBps:      3,
		MaxProfitBps:      10_000,
		MaxTradeImpact:    0.005,
		MinLiquidity:      5_000_000,
	}
}

// Validate checks the thresholds for consistency.
func (c Config) Validate() error {
	if c.FeeMarginMultiple == 0 {
		return fmt.Errorf("risk: fee margin multiple must be positive")
	}
	if c.MaxTradeImpact <= 0 || c.MaxTradeImpact >= 1 {
		return fmt.Errorf("risk: max trade impact %g outside (0, 1)", c.MaxTradeImpact)
	}
	if c.MaxProfitBps <= c.MinProfitBps {
		return fmt.Errorf("risk: max profit bps %d must exceed min %d", c.MaxProfitBps, c.MinProfitBps)
	}
	return nil
}

// Gate accepts or rejects opportunities. It never returns an error for a
// rejection; rejections are recorded data.
type Gate struct {
	cfg Config
}

// NewGate creates a Gate.
func NewGate(cfg Config) (*Gate, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Gate{cfg: cfg}, nil
}

// Evaluate runs every rule against opp without modifying it.
// Accepted if ALL rules pass; Rejected if ANY fails.
func (g *Gate) Evaluate(opp *domain.Opportunity) *Verdict {
	checks := []CheckResult{
		g.checkFeeMargin(opp),
		g.checkMinProfit(opp),
		g.checkImpact(opp),
		g.checkLiquidity(opp),
		g.checkPlausible(opp),
	}

	state := domain.StateAccepted
	for _, c := range checks {
		if !c.Pass {
			state = domain.StateRejected
			break
		}
	}
	return &Verdict{State: state, Checks: checks}
}

// Apply evaluates opp and moves it through RiskChecked into the verdict's
// terminal state, recording failing reasons.
func (g *Gate) Apply(opp *domain.Opportunity) (*Verdict, error) {
	if err := opp.Transition(domain.StateRiskChecked); err != nil {
		return nil, err
	}
	v := g.Evaluate(opp)
	if err := opp.Transition(v.State); err != nil {
		return nil, err
	}
	opp.RejectReasons = nil
	for _, r := range v.Failed() {
		opp.RejectReasons = append(opp.RejectReasons, r.String())
	}
	return v, nil
}

// 1. net_profit >= multiple x network fee
func (g *Gate) checkFeeMargin(opp *domain.Opportunity) CheckResult {
	hi, required := bits.Mul64(g.cfg.FeeMarginMultiple, opp.Costs.NetworkFee)
	pass := hi == 0 && required <= math.MaxInt64 && opp.NetProfit >= int64(required)
	threshold := fmt.Sprintf(">= %d (%d x network fee of %d lamports)",
		required, g.cfg.FeeMarginMultiple, opp.Costs.NetworkLamports)
	if hi != 0 {
		threshold = fmt.Sprintf(">= %d x %d (overflows)", g.cfg.FeeMarginMultiple, opp.Costs.NetworkFee)
	}
	return CheckResult{
		Reason:    ReasonFeeMarginTooThin,
		Threshold: threshold,
		Actual:    fmt.Sprintf("%d", opp.NetProfit),
		Pass:      pass,
	}
}

// 2. profit_bps >= floor
func (g *Gate) checkMinProfit(opp *domain.Opportunity) CheckResult {
	return CheckResult{
		Reason:    ReasonProfitTooLow,
		Threshold: fmt.Sprintf(">= %d bps", g.cfg.MinProfitBps),
		Actual:    fmt.Sprintf("%d bps", opp.ProfitBps),
		Pass:      opp.ProfitBps >= g.cfg.MinProfitBps,
	}
}

// 3. every leg's input / reserve_in <= max impact
func (g *Gate) checkImpact(opp *domain.Opportunity) CheckResult {
	worst := 0.0
	for i := 0; i < opp.Route.Len(); i++ {
		leg := opp.Route.Leg(i)
		rin, _, ok := leg.Pool.Reserves(leg.OutputMint)
		ratio := math.Inf(1)
		if ok && rin > 0 {
			ratio = float64(opp.LegInput(i)) / float64(rin)
		}
		worst = math.Max(worst, ratio)
	}
	return CheckResult{
		Reason:    ReasonImpactTooHigh,
		Threshold: fmt.Sprintf("<= %.4f", g.cfg.MaxTradeImpact),
		Actual:    fmt.Sprintf("%.4f", worst),
		Pass:      worst <= g.cfg.MaxTradeImpact,
	}
}

// 4. every pool's reserves >= min liquidity
func (g *Gate) checkLiquidity(opp *domain.Opportunity) CheckResult {
	lowest := uint64(math.MaxUint64)
	for _, p := range opp.Route.Pools() {
		lowest = min(lowest, p.MinReserve())
	}
	return CheckResult{
		Reason:    ReasonLiquidityTooLow,
		Threshold: fmt.Sprintf(">= %d", g.cfg.MinLiquidity),
		Actual:    fmt.Sprintf("%d", lowest),
		Pass:      lowest >= g.cfg.MinLiquidity,
	}
}

// 5. profit_bps <= ceiling
func (g *Gate) checkPlausible(opp *domain.Opportunity) CheckResult {
	return CheckResult{
		Reason:    ReasonProfitImplausible,
		Threshold: fmt.Sprintf("<= %d bps", g.cfg.MaxProfitBps),
		Actual:    fmt.Sprintf("%d bps", opp.ProfitBps),
		Pass:      opp.ProfitBps <= g.cfg.MaxProfitBps,
	}
}
