package search

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"solana-arb-engine/internal/cost"
	"solana-arb-engine/internal/domain"
	"solana-arb-engine/internal/idhash"
	"solana-arb-engine/internal/risk"
	"solana-arb-engine/internal/swap"
)

// ErrNoPools is returned when a pass has no fresh pool to search.
var ErrNoPools = errors.New("search: no usable pools")

// PoolSet is the read-only pool view of one search pass.
type PoolSet interface {
	Pools() []*domain.PoolState
	IsStale(addr domain.Address) bool
}

// StaticPools is a PoolSet whose pools are never stale.
type StaticPools []*domain.PoolState

// Pools implements PoolSet.
func (s StaticPools) Pools() []*domain.PoolState { return s }

// IsStale implements PoolSet.
func (s StaticPools) IsStale(domain.Address) bool { return false }

// Config configures route enumeration and probing.
type Config struct {
	Ladder          []uint64         // fixed probe amounts in lamports, converted to each base mint
	LadderFractions []float64        // probe fractions of the first leg's reserve_in
	Triangular      bool             // also enumerate three-leg cycles
	BaseMints       []domain.Address // allowed route base mints; empty allows all
	Concurrency     int              // parallel route evaluations
}

// DefaultConfig returns the default search configuration.
func DefaultConfig() Config {
	return Config{
		Ladder:      append([]uint64(nil), DefaultLadder...),
		Concurrency: 8,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if len(c.Ladder) == 0 && len(c.LadderFractions) == 0 {
		return errors.New("search: probe ladder is empty")
	}
	for _, f := range c.LadderFractions {
		if f <= 0 || f >= 1 {
			return fmt.Errorf("search: ladder fraction %g outside (0, 1)", f)
		}
	}
	return nil
}

// Result is the outcome of one search pass.
type Result struct {
	Accepted           []*domain.Opportunity    // ranked
	Rejected           []*domain.Opportunity    // ranked, each with RejectReasons
	Verdicts           map[string]*risk.Verdict // by opportunity ID
	PoolsSearched      int
	StaleExcluded      int
	RoutesEvaluated    int
	UnpricedRoutes     int // routes skipped because the base mint had no fee conversion
	ProfitableRejected int // rejected opportunities that still cleared every modeled cost
	CalcFailures       int // probe sizes that failed the swap calculator
}

// Engine finds, costs, scores and risk-checks arbitrage routes.
type Engine struct {
	calc  *swap.Calculator
	costs *cost.Model
	gate  *risk.Gate
	cfg   Config
	now   func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the clock stamped into Opportunity.DiscoveredAt.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine creates an Engine.
func NewEngine(calc *swap.Calculator, costs *cost.Model, gate *risk.Gate, cfg Config, opts ...Option) (*Engine, error) {
	if calc == nil || costs == nil || gate == nil {
		return nil, errors.New("search: calculator, cost model and gate are required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	e := &Engine{calc: calc, costs: costs, gate: gate, cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Search runs one pass over the fresh pools of set.
func (e *Engine) Search(set PoolSet, factors Factors) (*Result, error) {
	if factors == nil {
		factors = Neutral{}
	}

	res := &Result{Verdicts: make(map[string]*risk.Verdict)}
	var pools []*domain.PoolState
	for _, p := range set.Pools() {
		if set.IsStale(p.Address) {
			res.StaleExcluded++
			continue
		}
		pools = append(pools, p)
	}
	if len(pools) == 0 {
		return res, ErrNoPools
	}
	res.PoolsSearched = len(pools)

	routes := DirectRoutes(pools, e.cfg.BaseMints)
	if e.cfg.Triangular {
		routes = append(routes, TriangularRoutes(pools, e.cfg.BaseMints)...)
	}
	res.RoutesEvaluated = len(routes)

	evals := make([]evaluation, len(routes))
	g := new(errgroup.Group)
	g.SetLimit(e.cfg.Concurrency)
	for i, r := range routes {
		g.Go(func() error {
			evals[i] = e.evaluate(r, factors)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, ev := range evals {
		res.CalcFailures += ev.calcFailures
		if ev.err != nil {
			return nil, ev.err
		}
		if ev.unpriced {
			res.UnpricedRoutes++
		}
		if ev.opp == nil {
			continue
		}
		if !ev.opp.State.IsTerminal() {
			return nil, fmt.Errorf("search: %s left in state %s", ev.opp.RouteKey, ev.opp.State)
		}
		res.Verdicts[ev.opp.ID] = ev.verdict
		if ev.verdict.Accepted() {
			res.Accepted = append(res.Accepted, ev.opp)
			continue
		}
		res.Rejected = append(res.Rejected, ev.opp)
		if ev.opp.IsProfitable() {
			res.ProfitableRejected++
		}
	}

	rank(res.Accepted)
	rank(res.Rejected)
	return res, nil
}

type evaluation struct {
	opp          *domain.Opportunity
	verdict      *risk.Verdict
	calcFailures int
	unpriced     bool
	err          error
}

// Evaluate probes one route across the ladder, keeps the size with the
// highest net profit, scores it and runs it through the risk gate. It
// returns nil when no probe size produced a quote or when the network fee
// cannot be expressed in the route's base mint.
func (e *Engine) Evaluate(route domain.Route, factors Factors) (*domain.Opportunity, *risk.Verdict, error) {
	if factors == nil {
		factors = Neutral{}
	}
	ev := e.evaluate(route, factors)
	return ev.opp, ev.verdict, ev.err
}

func (e *Engine) evaluate(route domain.Route, factors Factors) evaluation {
	var ev evaluation
	var best *domain.Opportunity

	base := route.BaseMint()
	if _, err := e.costs.LamportsIn(base, e.costs.NetworkFee()); err != nil {
		ev.unpriced = true
		return ev
	}
	fixed := make([]uint64, 0, len(e.cfg.Ladder))
	for _, lamports := range e.cfg.Ladder {
		if units, err := e.costs.LamportsIn(base, lamports); err == nil {
			fixed = append(fixed, units)
		}
	}

	for _, amount := range ladder(route, fixed, e.cfg.LadderFractions) {
		outs, err := e.Quote(route, amount)
		if err != nil {
			ev.calcFailures++
			continue
		}
		costs, err := e.costs.Estimate(route, amount, outs)
		if err != nil {
			ev.calcFailures++
			continue
		}
		opp, err := domain.NewOpportunity(route, amount, outs, costs)
		if err != nil {
			ev.calcFailures++
			continue
		}
		if best == nil || opp.NetProfit > best.NetProfit {
			best = opp
		}
	}
	if best == nil {
		return ev
	}

	best.RouteKey = idhash.ComputeRouteKey(route)
	best.ID = idhash.ComputeOpportunityID(best.RouteKey, best.AmountIn, route.Pools())
	best.DiscoveredAt = e.now().UnixMilli()
	score(best, factors)

	verdict, err := e.gate.Apply(best)
	if err != nil {
		ev.err = fmt.Errorf("search: risk gate on %s: %w", best.RouteKey, err)
		return ev
	}
	ev.opp = best
	ev.verdict = verdict
	return ev
}

// Quote runs amountIn through every leg of route and returns each leg's output.
func (e *Engine) Quote(route domain.Route, amountIn uint64) ([]uint64, error) {
	outs := make([]uint64, route.Len())
	in := amountIn
	for i := 0; i < route.Len(); i++ {
		leg := route.Leg(i)
		out, err := e.calc.Output(leg.Pool, in, leg.OutputMint)
		if err != nil {
			return nil, fmt.Errorf("leg %d (%s): %w", i, leg.Pool.Address, err)
		}
		outs[i] = out
		in = out
	}
	return outs, nil
}
