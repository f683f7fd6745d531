package domain

import (
	"errors"
	"fmt"
	"math"
	"math/bits"
)

// OpportunityState is the lifecycle state of an opportunity.
// Transitions: Discovered -> RiskChecked -> Accepted | Rejected.
type OpportunityState string

const (
	StateDiscovered  OpportunityState = "DISCOVERED"
	StateRiskChecked OpportunityState = "RISK_CHECKED"
	StateAccepted    OpportunityState = "ACCEPTED"
	StateRejected    OpportunityState = "REJECTED"
)

// String returns the string representation of OpportunityState.
func (s OpportunityState) String() string {
	return string(s)
}

// IsValid checks if the state is a valid value.
func (s OpportunityState) IsValid() bool {
	switch s {
	case StateDiscovered, StateRiskChecked, StateAccepted, StateRejected:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is possible.
func (s OpportunityState) IsTerminal() bool {
	return s == StateAccepted || s == StateRejected
}

// CanTransition reports whether s -> next is a legal lifecycle step.
func (s OpportunityState) CanTransition(next OpportunityState) bool {
	switch s {
	case StateDiscovered:
		return next == StateRiskChecked
	case StateRiskChecked:
		return next == StateAccepted || next == StateRejected
	}
	return false
}

// Opportunity errors.
var (
	ErrZeroAmount        = errors.New("amount_in must be positive")
	ErrLegOutputs        = errors.New("one output per leg is required")
	ErrAmountOverflow    = errors.New("amount exceeds signed 64-bit range")
	ErrIllegalTransition = errors.New("illegal opportunity state transition")
)

// Costs is the cost breakdown of one route execution, in base mint units.
// NetworkLamports keeps the unconverted network fee.
type Costs struct {
	NetworkFee      uint64 // base + priority + compute budget, converted to the base mint
	NetworkLamports uint64
	TradingFees     uint64 // sum of per-leg pool fees
	PriceImpact     uint64 // sum of per-leg slippage estimates
}

// Total returns the sum of the three cost components. It wraps on
// overflow; use CheckedTotal where that matters.
func (c Costs) Total() uint64 {
	return c.NetworkFee + c.TradingFees + c.PriceImpact
}

// CheckedTotal returns the sum of the three cost components and false when
// the sum does not fit in a uint64.
func (c Costs) CheckedTotal() (uint64, bool) {
	sum, carry := bits.Add64(c.NetworkFee, c.TradingFees, 0)
	sum, carry2 := bits.Add64(sum, c.PriceImpact, 0)
	return sum, carry == 0 && carry2 == 0
}

// Opportunity is one costed arbitrage candidate.
type Opportunity struct {
	ID                 string
	RouteKey           string
	Route              Route
	AmountIn           uint64
	LegOutputs         []uint64 // output of each leg; the last one is ExpectedAmountOut
	ExpectedAmountOut  uint64
	Costs              Costs
	NetProfit          int64 // expected_out - amount_in - costs.Total()
	ProfitBps          int64 // NetProfit * 10000 / AmountIn
	SuccessFactor      float64
	VolatilityDiscount float64
	RiskScore          float64
	State              OpportunityState
	RejectReasons      []string
	DiscoveredAt       int64 // unix ms
}

// NewOpportunity builds an opportunity in state Discovered. The expected
// output, net profit and profit bps are always derived here from the leg
// outputs and costs.
func NewOpportunity(route Route, amountIn uint64, legOutputs []uint64, costs Costs) (*Opportunity, error) {
	if amountIn == 0 {
		return nil, ErrZeroAmount
	}
	if len(legOutputs) != route.Len() || route.Len() == 0 {
		return nil, fmt.Errorf("%w: have %d want %d", ErrLegOutputs, len(legOutputs), route.Len())
	}

	out := legOutputs[len(legOutputs)-1]
	total, ok := costs.CheckedTotal()
	if !ok || amountIn > math.MaxInt64 || out > math.MaxInt64 || total > math.MaxInt64 {
		return nil, ErrAmountOverflow
	}

	net := int64(out) - int64(amountIn) - int64(total)

	return &Opportunity{
		Route:             route,
		AmountIn:          amountIn,
		LegOutputs:        append([]uint64(nil), legOutputs...),
		ExpectedAmountOut: out,
		Costs:             costs,
		NetProfit:         net,
		ProfitBps:         net * 10000 / int64(amountIn),
		State:             StateDiscovered,
	}, nil
}

// LegInput returns the input amount of leg i: AmountIn for the first leg,
// otherwise the previous leg's output.
func (o *Opportunity) LegInput(i int) uint64 {
	if i == 0 {
		return o.AmountIn
	}
	return o.LegOutputs[i-1]
}

// Transition moves the opportunity to next if the step is legal.
func (o *Opportunity) Transition(next OpportunityState) error {
	if !o.State.CanTransition(next) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, o.State, next)
	}
	o.State = next
	return nil
}

// IsProfitable reports whether the opportunity clears all modeled costs.
func (o *Opportunity) IsProfitable() bool {
	return o.NetProfit > 0
}
