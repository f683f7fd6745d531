package search

import (
	"sort"

	"solana-arb-engine/internal/domain"
)

// SuccessHistory yields the historical success factor of a route key in
// [0, 1]; unknown routes score 1.
type SuccessHistory interface {
	SuccessFactor(routeKey string) float64
}

// VolatilityHistory yields the volatility discount of a pool in (0, 1];
// pools without enough history score 1.
type VolatilityHistory interface {
	VolatilityDiscount(pool domain.Address) float64
}

// Factors provides both scoring inputs. Implementations are frozen
// snapshots, so a search pass never performs I/O.
type Factors interface {
	SuccessHistory
	VolatilityHistory
}

// Neutral scores every route and pool as 1.
type Neutral struct{}

// SuccessFactor implements SuccessHistory.
func (Neutral) SuccessFactor(string) float64 { return 1 }

// VolatilityDiscount implements VolatilityHistory.
func (Neutral) VolatilityDiscount(domain.Address) float64 { return 1 }

// score sets the scoring fields of opp:
// risk_score = (net_profit / amount_in) x success_factor x volatility_discount.
func score(opp *domain.Opportunity, factors Factors) {
	opp.SuccessFactor = clampUnit(factors.SuccessFactor(opp.RouteKey))

	discount := 1.0
	for _, p := range opp.Route.Pools() {
		discount *= clampUnit(factors.VolatilityDiscount(p.Address))
	}
	opp.VolatilityDiscount = discount

	opp.RiskScore = float64(opp.NetProfit) / float64(opp.AmountIn) * opp.SuccessFactor * opp.VolatilityDiscount
}

func clampUnit(v float64) float64 {
	switch {
	case v != v: // NaN
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

// rank sorts by risk score descending, then net profit descending, then
// route key ascending. The order is total.
func rank(opps []*domain.Opportunity) {
	sort.SliceStable(opps, func(i, j int) bool {
		a, b := opps[i], opps[j]
		if a.RiskScore != b.RiskScore {
			return a.RiskScore > b.RiskScore
		}
		if a.NetProfit != b.NetProfit {
			return a.NetProfit > b.NetProfit
		}
		return a.RouteKey < b.RouteKey
	})
}
