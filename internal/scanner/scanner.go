// Package scanner drives the arbitrage engine: it keeps the pool cache fresh
// from the ledger, runs search passes and hands accepted opportunities to a
// sink.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"solana-arb-engine/internal/decoder"
	"solana-arb-engine/internal/domain"
	"solana-arb-engine/internal/history"
	"solana-arb-engine/internal/observability"
	"solana-arb-engine/internal/poolcache"
	"solana-arb-engine/internal/pricing"
	"solana-arb-engine/internal/search"
	"solana-arb-engine/internal/solana"
	"solana-arb-engine/internal/storage"
)

// AccountReader is the ledger access the scanner needs.
type AccountReader interface {
	decoder.AccountSource
	ProgramAccounts(ctx context.Context, program domain.Address, dataSize uint64, limit int) ([]*domain.Account, error)
}

// Sink receives the accepted opportunities of a pass.
type Sink interface {
	Submit(ctx context.Context, opps []*domain.Opportunity) error
}

// Options contains configuration for creating a Scanner. Source, Decoder,
// Engine and Cache are required.
type Options struct {
	Source  AccountReader
	Decoder *decoder.Decoder
	Engine  *search.Engine
	Cache   *poolcache.Cache

	History   *history.Loader       // nil scores every route neutrally
	Snapshots storage.SnapshotStore // nil skips reserve snapshots
	Outcomes  storage.OutcomeStore  // nil disables RecordOutcome
	Sink      Sink                  // nil drops accepted opportunities
	Watcher   solana.WSClient       // nil disables push invalidation

	Prices      *pricing.Cache
	PriceSource pricing.Source
	Valuer      *pricing.Valuer

	Pools               []domain.Address
	Discover            bool
	MaxPoolsPerProtocol int
	Interval            time.Duration // Default: 5s
	Logger              *zap.Logger
}

// Pass summarizes one RunOnce.
type Pass struct {
	Refreshed      int // pool accounts requested from the ledger
	Decoded        int
	FetchFailures  int
	DecodeFailures []decoder.Failure
	Result         *search.Result
	Exported       int
	Duration       time.Duration
}

// Scanner refreshes pools and runs search passes.
type Scanner struct {
	source    AccountReader
	decoder   *decoder.Decoder
	engine    *search.Engine
	cache     *poolcache.Cache
	history   *history.Loader
	snapshots storage.SnapshotStore
	outcomes  storage.OutcomeStore
	sink      Sink
	watcher   solana.WSClient

	prices      *pricing.Cache
	priceSource pricing.Source
	valuer      *pricing.Valuer

	discover    bool
	maxPerProto int
	interval    time.Duration
	logger      *zap.Logger

	mu          sync.Mutex
	tracked     map[domain.Address]struct{}
	owners      map[domain.Address]domain.Address // pool or vault -> pool
	watching    bool
	highestSlot uint64
}

// New creates a Scanner.
func New(opts Options) (*Scanner, error) {
	if opts.Source == nil || opts.Decoder == nil || opts.Engine == nil || opts.Cache == nil {
		return nil, errors.New("scanner: source, decoder, engine and cache are required")
	}

	interval := opts.Interval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Scanner{
		source:      opts.Source,
		decoder:     opts.Decoder,
		engine:      opts.Engine,
		cache:       opts.Cache,
		history:     opts.History,
		snapshots:   opts.Snapshots,
		outcomes:    opts.Outcomes,
		sink:        opts.Sink,
		watcher:     opts.Watcher,
		prices:      opts.Prices,
		priceSource: opts.PriceSource,
		valuer:      opts.Valuer,
		discover:    opts.Discover,
		maxPerProto: opts.MaxPoolsPerProtocol,
		interval:    interval,
		logger:      logger.With(zap.String("component", "scanner")),
		tracked:     make(map[domain.Address]struct{}),
		owners:      make(map[domain.Address]domain.Address),
	}
	s.Track(opts.Pools...)
	return s, nil
}

// Track adds pool addresses to refresh on every pass.
func (s *Scanner) Track(pools ...domain.Address) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range pools {
		if p.IsZero() {
			continue
		}
		s.tracked[p] = struct{}{}
		s.owners[p] = p
	}
}

// Tracked returns the tracked pool addresses, sorted.
func (s *Scanner) Tracked() []domain.Address {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Address, 0, len(s.tracked))
	for p := range s.tracked {
		out = append(out, p)
	}
	sortAddresses(out)
	return out
}

// Run discovers pools when configured, then runs a pass every interval
// until ctx is cancelled. Account notifications mark cached pools dirty
// between passes. A failed pass is logged and the loop continues.
func (s *Scanner) Run(ctx context.Context) error {
	if s.discover {
		if n, err := s.Discover(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.Warn("pool discovery incomplete", zap.Int("pools", n), zap.Error(err))
		}
	}

	var updates <-chan solana.AccountNotification
	if s.watcher != nil {
		ch, err := s.watcher.SubscribeAccounts(ctx, addressStrings(s.watchAddresses()))
		if err != nil {
			return fmt.Errorf("subscribe accounts: %w", err)
		}
		updates = ch
		s.mu.Lock()
		s.watching = true
		s.mu.Unlock()
	}

	s.logger.Info("scanner started",
		zap.Int("pools", len(s.Tracked())),
		zap.Duration("interval", s.interval),
		zap.Bool("watching", updates != nil))

	s.runPass(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scanner stopping")
			return ctx.Err()

		case n, ok := <-updates:
			if !ok {
				return errors.New("scanner: account notification channel closed")
			}
			s.HandleNotification(n)

		case <-ticker.C:
			s.runPass(ctx)
		}
	}
}

func (s *Scanner) runPass(ctx context.Context) {
	if _, err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
		s.logger.Warn("search pass failed", zap.Error(err))
	}
}

// RunOnce refreshes missing and stale pools, then runs one search pass and
// submits the accepted opportunities.
func (s *Scanner) RunOnce(ctx context.Context) (*Pass, error) {
	start := time.Now()
	pass := &Pass{}

	if targets := s.refreshTargets(); len(targets) > 0 {
		if err := s.refresh(ctx, targets, pass); err != nil {
			observability.RecordSearchPassFailed("fetch_failed")
			return pass, err
		}
	}
	observability.UpdatePoolCacheSize(s.cache.Len())

	s.refreshPrices(ctx)

	snap := s.cache.Snapshot()
	s.learnDecimals(ctx, snap.Pools())

	res, err := s.engine.Search(snap, s.factors(ctx))
	if err != nil {
		observability.RecordSearchPassFailed("no_pools")
		return pass, fmt.Errorf("search: %w", err)
	}
	pass.Result = res

	if s.sink != nil && len(res.Accepted) > 0 {
		if err := s.sink.Submit(ctx, res.Accepted); err != nil {
			observability.RecordSearchPassFailed("export_failed")
			return pass, fmt.Errorf("submit opportunities: %w", err)
		}
		pass.Exported = len(res.Accepted)
	}

	pass.Duration = time.Since(start)
	s.recordPass(pass)
	return pass, nil
}

// refreshTargets returns tracked pools that are not cached plus every
// stale cached pool.
func (s *Scanner) refreshTargets() []domain.Address {
	seen := make(map[domain.Address]struct{})
	var out []domain.Address
	for _, p := range s.cache.Stale() {
		seen[p] = struct{}{}
		out = append(out, p)
	}
	for _, p := range s.Tracked() {
		if _, ok := seen[p]; ok {
			continue
		}
		if _, cached := s.cache.Get(p); !cached {
			out = append(out, p)
		}
	}
	sortAddresses(out)
	return out
}

func (s *Scanner) refresh(ctx context.Context, targets []domain.Address, pass *Pass) error {
	pass.Refreshed = len(targets)

	results, err := s.source.FetchAccountsBatch(ctx, targets)
	if err != nil {
		return fmt.Errorf("fetch pool accounts: %w", err)
	}

	accounts := make([]domain.Account, 0, len(results))
	for _, r := range results {
		if r.Err != nil || r.Account == nil {
			pass.FetchFailures++
			if errors.Is(r.Err, domain.ErrAccountNotFound) {
				s.cache.Remove(r.Address)
			}
			s.logger.Debug("pool account unavailable", zap.Stringer("pool", r.Address), zap.Error(r.Err))
			continue
		}
		accounts = append(accounts, *r.Account)
	}
	if len(accounts) == 0 {
		return nil
	}

	s.ingest(ctx, accounts, pass)
	return ctx.Err()
}

// ingest decodes pool accounts into the cache. Decode failures are recorded
// on pass and evict the pool from the cache.
func (s *Scanner) ingest(ctx context.Context, accounts []domain.Account, pass *Pass) []*domain.PoolState {
	batch, err := s.decoder.DecodeAll(ctx, accounts)
	if err != nil && !errors.Is(err, decoder.ErrEmptyPoolSet) {
		s.logger.Warn("decode batch failed", zap.Error(err))
	}
	if batch == nil {
		return nil
	}

	vaultFailures := 0
	for _, f := range batch.Failures {
		kind, _ := decoder.KindOf(f.Err)
		protocol := "unknown"
		var de *decoder.DecodeError
		if errors.As(f.Err, &de) && de.Protocol != "" {
			protocol = de.Protocol.String()
		}
		if kind == decoder.KindUnreadableReserve {
			vaultFailures++
		}
		observability.RecordDecodeFailure(protocol, kind.String())
		s.cache.Remove(f.Address)
		s.logger.Debug("pool rejected",
			zap.Stringer("pool", f.Address),
			zap.String("kind", kind.String()),
			zap.Error(f.Err))
	}
	if vaultFailures > 0 {
		observability.RecordVaultFetchFailures(vaultFailures)
	}
	if pass != nil {
		pass.Decoded += len(batch.Pools)
		pass.DecodeFailures = append(pass.DecodeFailures, batch.Failures...)
	}
	if len(batch.Pools) == 0 {
		return nil
	}

	s.cache.Put(batch.Pools...)
	for _, p := range batch.Pools {
		observability.RecordPoolDecoded(p.Protocol.String())
		s.observeSlot(p.Slot)
	}
	s.index(ctx, batch.Pools)
	s.recordSnapshots(ctx, batch.Pools)
	return batch.Pools
}

// index maps pool vaults to their pool and subscribes new addresses when
// watching.
func (s *Scanner) index(ctx context.Context, pools []*domain.PoolState) {
	var fresh []domain.Address

	s.mu.Lock()
	for _, p := range pools {
		for _, a := range []domain.Address{p.Address, p.TokenAVault, p.TokenBVault} {
			if _, ok := s.owners[a]; !ok {
				fresh = append(fresh, a)
			}
			s.owners[a] = p.Address
		}
		s.tracked[p.Address] = struct{}{}
	}
	watching := s.watching
	s.mu.Unlock()

	if !watching || len(fresh) == 0 {
		return
	}
	if _, err := s.watcher.SubscribeAccounts(ctx, addressStrings(fresh)); err != nil {
		s.logger.Warn("subscribe new accounts failed", zap.Int("accounts", len(fresh)), zap.Error(err))
	}
}

func (s *Scanner) watchAddresses() []domain.Address {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Address, 0, len(s.owners))
	for a := range s.owners {
		out = append(out, a)
	}
	sortAddresses(out)
	return out
}

// HandleNotification marks the pool owning the changed account dirty.
func (s *Scanner) HandleNotification(n solana.AccountNotification) {
	addr, err := domain.ParseAddress(n.Address)
	if err != nil {
		s.logger.Debug("notification for unparsable address", zap.String("address", n.Address))
		return
	}
	s.observeSlot(n.Slot)

	s.mu.Lock()
	pool, ok := s.owners[addr]
	s.mu.Unlock()

	marked := ok && s.cache.MarkDirty(pool)
	observability.RecordAccountUpdate(marked)
}

func (s *Scanner) observeSlot(slot uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if slot > s.highestSlot {
		s.highestSlot = slot
		observability.UpdateHighestSlot(slot)
	}
}

// HighestSlot returns the highest ledger slot observed so far.
func (s *Scanner) HighestSlot() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.highestSlot
}

func (s *Scanner) recordSnapshots(ctx context.Context, pools []*domain.PoolState) {
	if s.snapshots == nil {
		return
	}
	snaps := make([]*domain.ReserveSnapshot, len(pools))
	for i, p := range pools {
		snaps[i] = domain.NewReserveSnapshot(p)
	}
	err := s.snapshots.InsertBulk(ctx, snaps)
	if err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
		s.logger.Warn("record reserve snapshots failed", zap.Int("snapshots", len(snaps)), zap.Error(err))
	}
}

func (s *Scanner) refreshPrices(ctx context.Context) {
	if s.prices == nil || s.priceSource == nil {
		return
	}
	skipped, err := s.prices.Refresh(ctx, s.priceSource)
	if err != nil {
		s.logger.Warn("price refresh failed", zap.Error(err))
		return
	}
	if skipped > 0 {
		s.logger.Debug("invalid prices skipped", zap.Int("skipped", skipped))
	}
}

func (s *Scanner) factors(ctx context.Context) search.Factors {
	if s.history == nil {
		return search.Neutral{}
	}
	snap, err := s.history.Load(ctx)
	if err != nil {
		s.logger.Warn("history unavailable, scoring neutrally", zap.Error(err))
		return search.Neutral{}
	}
	return snap
}

// learnDecimals reads the mint accounts of pool mints whose decimals the
// valuer does not know yet. Fee conversion and USD values of routes based
// on a mint need its decimals.
func (s *Scanner) learnDecimals(ctx context.Context, pools []*domain.PoolState) {
	if s.valuer == nil {
		return
	}
	seen := make(map[domain.Address]struct{})
	for _, p := range pools {
		for _, mint := range []domain.Address{p.TokenAMint, p.TokenBMint} {
			if _, dup := seen[mint]; dup {
				continue
			}
			seen[mint] = struct{}{}
			s.learnMint(ctx, mint)
		}
	}
}

func (s *Scanner) learnMint(ctx context.Context, mint domain.Address) {
	if _, ok := s.valuer.Decimals(mint); ok {
		return
	}
	acct, err := s.source.FetchAccount(ctx, mint)
	if err != nil {
		s.logger.Debug("mint account unavailable", zap.Stringer("mint", mint), zap.Error(err))
		return
	}
	info, err := decoder.DecodeMint(acct.Data)
	if err != nil {
		s.logger.Debug("mint account undecodable", zap.Stringer("mint", mint), zap.Error(err))
		return
	}
	s.valuer.SetDecimals(mint, info.Decimals)
}

func (s *Scanner) recordPass(pass *Pass) {
	res := pass.Result
	stats := observability.PassStats{
		Duration:        pass.Duration,
		RoutesEvaluated: res.RoutesEvaluated,
		CalcFailures:    res.CalcFailures,
		Accepted:        len(res.Accepted),
	}
	for _, o := range res.Rejected {
		if len(o.RejectReasons) > 0 {
			stats.RejectedReasons = append(stats.RejectedReasons, o.RejectReasons[0])
		}
	}

	fields := []zap.Field{
		zap.Int("refreshed", pass.Refreshed),
		zap.Int("decoded", pass.Decoded),
		zap.Int("decode_failures", len(pass.DecodeFailures)),
		zap.Int("pools", res.PoolsSearched),
		zap.Int("stale", res.StaleExcluded),
		zap.Int("routes", res.RoutesEvaluated),
		zap.Int("accepted", len(res.Accepted)),
		zap.Int("rejected", len(res.Rejected)),
		zap.Int("profitable_rejected", res.ProfitableRejected),
		zap.Int("unpriced_routes", res.UnpricedRoutes),
		zap.Duration("duration", pass.Duration),
	}
	if len(res.Accepted) > 0 {
		best := res.Accepted[0]
		stats.BestNetProfit = best.NetProfit
		fields = append(fields,
			zap.String("best_route", best.Route.String()),
			zap.Int64("best_net_profit", best.NetProfit))
		if s.valuer != nil {
			if usd, ok := s.valuer.ValueUSD(best.Route.BaseMint(), best.NetProfit); ok {
				fields = append(fields, zap.String("best_net_profit_usd", usd.StringFixed(2)))
			}
		}
	}

	observability.RecordSearchPass(stats)
	s.logger.Info("search pass complete", fields...)
}

// Discover lists the pool accounts of every registered program and ingests
// the ones that decode. At most MaxPoolsPerProtocol accounts are read per
// program. It returns the number of pools added.
func (s *Scanner) Discover(ctx context.Context) (int, error) {
	var errs []error
	added := 0
	for _, layout := range s.decoder.Registry().Programs() {
		accounts, err := s.source.ProgramAccounts(ctx, layout.Program, uint64(layout.MinLength), s.maxPerProto)
		if err != nil {
			if ctx.Err() != nil {
				return added, ctx.Err()
			}
			errs = append(errs, fmt.Errorf("%s: %w", layout.Protocol, err))
			continue
		}
		if len(accounts) == 0 {
			continue
		}

		batch := make([]domain.Account, len(accounts))
		for i, a := range accounts {
			batch[i] = *a
		}
		pools := s.ingest(ctx, batch, nil)
		added += len(pools)
		observability.RecordPoolsDiscovered(layout.Protocol.String(), len(pools))
		s.logger.Info("pools discovered",
			zap.String("protocol", layout.Protocol.String()),
			zap.Stringer("program", layout.Program),
			zap.Int("accounts", len(accounts)),
			zap.Int("pools", len(pools)))
	}
	return added, errors.Join(errs...)
}

// RecordOutcome stores what an executor did with an accepted opportunity.
func (s *Scanner) RecordOutcome(ctx context.Context, o *domain.ExecutionOutcome) error {
	if s.outcomes == nil {
		return errors.New("scanner: no outcome store configured")
	}
	if err := ValidateOutcome(o); err != nil {
		return err
	}
	return s.outcomes.Insert(ctx, o)
}

// ValidateOutcome checks the fields every stored outcome needs.
func ValidateOutcome(o *domain.ExecutionOutcome) error {
	switch {
	case o == nil:
		return fmt.Errorf("%w: nil outcome", storage.ErrInvalidInput)
	case o.OpportunityID == "":
		return fmt.Errorf("%w: opportunity id is required", storage.ErrInvalidInput)
	case o.RouteKey == "":
		return fmt.Errorf("%w: route key is required", storage.ErrInvalidInput)
	case o.ExecutedAt <= 0:
		return fmt.Errorf("%w: executed_at must be positive", storage.ErrInvalidInput)
	case o.Success && o.Error != "":
		return fmt.Errorf("%w: a successful outcome carries no error", storage.ErrInvalidInput)
	}
	return nil
}

func addressStrings(addrs []domain.Address) []string {
	out := make([]string, len(addrs))
	for i, a := range addrs {
		out[i] = a.String()
	}
	return out
}

func sortAddresses(a []domain.Address) {
	sort.Slice(a, func(i, j int) bool { return a[i].String() < a[j].String() })
}
