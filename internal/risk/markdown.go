package risk

import (
	"fmt"
	"strings"

	"solana-arb-engine/internal/domain"
)

// RenderMarkdown renders an opportunity and its verdict as a Markdown checklist.
func RenderMarkdown(opp *domain.Opportunity, v *Verdict) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("## %s: %s\n\n", v.State, opp.Route))
	sb.WriteString(fmt.Sprintf("- Opportunity: `%s`\n", opp.ID))
	sb.WriteString(fmt.Sprintf("- Amount in: %d, expected out: %d\n", opp.AmountIn, opp.ExpectedAmountOut))
	sb.WriteString(fmt.Sprintf("- Costs: network %d (%d lamports), trading %d, impact %d\n",
		opp.Costs.NetworkFee, opp.Costs.NetworkLamports, opp.Costs.TradingFees, opp.Costs.PriceImpact))
	sb.WriteString(fmt.Sprintf("- Net profit: %d (%d bps), risk score %.6f\n\n", opp.NetProfit, opp.ProfitBps, opp.RiskScore))

	sb.WriteString("| # | Rule | Threshold | Actual | Pass |\n")
	sb.WriteString("|---|------|-----------|--------|------|\n")
	for i, c := range v.Checks {
		passStr := "PASS"
		if !c.Pass {
			passStr = "FAIL"
		}
		sb.WriteString(fmt.Sprintf("| %d | %s | %s | %s | %s |\n",
			i+1, c.Reason, c.Threshold, c.Actual, passStr))
	}
	sb.WriteString("\n")

	passed := 0
	for _, c := range v.Checks {
		if c.Pass {
			passed++
		}
	}
	sb.WriteString(fmt.Sprintf("Rules: %d/%d passed\n", passed, len(v.Checks)))
	if primary, ok := v.Primary(); ok {
		sb.WriteString(fmt.Sprintf("Primary rejection: %s\n", primary))
	}

	return sb.String()
}
