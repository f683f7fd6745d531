package risk

import "solana-arb-engine/internal/domain"

// Reason names a risk rule. A failing rule's reason is recorded on the
// rejected opportunity.
type Reason string

const (
	ReasonFeeMarginTooThin  Reason = "fee-margin-too-thin"
	ReasonProfitTooLow      Reason = "profit-too-low"
	ReasonImpactTooHigh     Reason = "impact-too-high"
	ReasonLiquidityTooLow   Reason = "liquidity-too-low"
	ReasonProfitImplausible Reason = "profit-implausible"
)

// String returns the string representation of Reason.
func (r Reason) String() string {
	return string(r)
}

// CheckResult represents pass/fail for one rule.
type CheckResult struct {
	Reason    Reason
	Threshold string
	Actual    string
	Pass      bool
}

// Verdict is the outcome of running every rule against one opportunity.
type Verdict struct {
	State  domain.OpportunityState // StateAccepted or StateRejected
	Checks []CheckResult           // in evaluation order
}

// Failed returns the reasons of failing rules in evaluation order.
func (v *Verdict) Failed() []Reason {
	var out []Reason
	for _, c := range v.Checks {
		if !c.Pass {
			out = append(out, c.Reason)
		}
	}
	return out
}

// Primary returns the first failing reason.
func (v *Verdict) Primary() (Reason, bool) {
	for _, c := range v.Checks {
		if !c.Pass {
			return c.Reason, true
		}
	}
	return "", false
}

// Accepted reports whether every rule passed.
func (v *Verdict) Accepted() bool {
	return v.State == domain.StateAccepted
}
