package domain

// ExecutionOutcome records what happened when an external executor acted on
// an accepted opportunity. Outcomes feed the per-route success factor.
type ExecutionOutcome struct {
	OpportunityID  string
	RouteKey       string
	Success        bool
	RealizedProfit int64  // base mint units, negative on loss
	Signature      string // transaction signature, empty when not submitted
	Error          string // executor error text for failures
	ExecutedAt     int64  // unix ms
}

// RouteStats aggregates outcomes for one route key.
type RouteStats struct {
	RouteKey  string
	Attempts  int64
	Successes int64
}
