package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"solana-arb-engine/internal/config"
	"solana-arb-engine/internal/cost"
	"solana-arb-engine/internal/decoder"
	"solana-arb-engine/internal/history"
	"solana-arb-engine/internal/poolcache"
	"solana-arb-engine/internal/pricing"
	"solana-arb-engine/internal/risk"
	"solana-arb-engine/internal/scanner"
	"solana-arb-engine/internal/search"
	"solana-arb-engine/internal/solana"
	"solana-arb-engine/internal/storage"
	chstore "solana-arb-engine/internal/storage/clickhouse"
	"solana-arb-engine/internal/storage/memory"
	pgstore "solana-arb-engine/internal/storage/postgres"
	"solana-arb-engine/internal/swap"
)

// app holds the components shared by every command.
type app struct {
	cfg    config.Config
	logger *zap.Logger

	source   *solana.AccountSource
	registry *decoder.Registry
	decoder  *decoder.Decoder
	engine   *search.Engine
	cache    *poolcache.Cache

	prices      *pricing.Cache
	priceSource pricing.Source
	valuer      *pricing.Valuer
}

func newApp(cfg config.Config, logger *zap.Logger) (*app, error) {
	rpc := solana.NewHTTPClient(cfg.RPCEndpoint)
	source := solana.NewAccountSource(rpc)

	registry := decoder.DefaultRegistry()
	for program, protocol := range cfg.ProgramAliases {
		if err := registry.Alias(program, protocol); err != nil {
			return nil, fmt.Errorf("alias %s: %w", program, err)
		}
	}

	dec, err := decoder.New(registry, source, cfg.Decoder, decoder.WithConcurrency(cfg.Search.Concurrency))
	if err != nil {
		return nil, err
	}

	static, err := pricing.ParseStatic(cfg.Prices)
	if err != nil {
		return nil, err
	}
	prices := pricing.NewCache(cfg.PriceTTL)
	valuer := pricing.NewValuer(prices)

	calc, err := swap.NewCalculator(cfg.Swap)
	if err != nil {
		return nil, err
	}
	costs, err := cost.NewModel(cfg.Cost, cost.WithConverter(valuer))
	if err != nil {
		return nil, err
	}
	gate, err := risk.NewGate(cfg.Risk)
	if err != nil {
		return nil, err
	}
	engine, err := search.NewEngine(calc, costs, gate, cfg.Search)
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:         cfg,
		logger:      logger,
		source:      source,
		registry:    registry,
		decoder:     dec,
		engine:      engine,
		cache:       poolcache.New(cfg.PoolTTL),
		prices:      prices,
		priceSource: static,
		valuer:      valuer,
	}, nil
}

func (a *app) scanner(st *stores, sink scanner.Sink, watcher solana.WSClient) (*scanner.Scanner, error) {
	loader, err := history.NewLoader(st.outcomes, st.snapshots, a.cfg.History)
	if err != nil {
		return nil, err
	}
	return scanner.New(scanner.Options{
		Source:              a.source,
		Decoder:             a.decoder,
		Engine:              a.engine,
		Cache:               a.cache,
		History:             loader,
		Snapshots:           st.snapshots,
		Outcomes:            st.outcomes,
		Sink:                sink,
		Watcher:             watcher,
		Prices:              a.prices,
		PriceSource:         a.priceSource,
		Valuer:              a.valuer,
		Pools:               a.cfg.Pools,
		Discover:            a.cfg.Discover,
		MaxPoolsPerProtocol: a.cfg.MaxPoolsPerProtocol,
		Interval:            a.cfg.ScanInterval,
		Logger:              a.logger,
	})
}

// stores holds the history stores. Postgres keeps execution outcomes and
// ClickHouse keeps reserve snapshots; both fall back to memory.
type stores struct {
	outcomes  storage.OutcomeStore
	snapshots storage.SnapshotStore
	closers   []func()
}

// Close releases every database connection.
func (s *stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func openStores(ctx context.Context, cfg config.Config, logger *zap.Logger) (*stores, error) {
	if cfg.UseMemory {
		logger.Info("using in-memory history stores")
		return &stores{
			outcomes:  memory.NewOutcomeStore(),
			snapshots: memory.NewSnapshotStore(),
		}, nil
	}

	pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN, pgstore.WithMaxConns(cfg.PostgresMaxConns))
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	st := &stores{
		outcomes: pgstore.NewOutcomeStore(pool),
		closers:  []func(){pool.Close},
	}

	conn, err := chstore.NewConn(ctx, cfg.ClickhouseDSN)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("connect to clickhouse: %w", err)
	}
	st.snapshots = chstore.NewSnapshotStore(conn)
	st.closers = append(st.closers, func() {
		if err := conn.Close(); err != nil {
			logger.Warn("close clickhouse", zap.Error(err))
		}
	})
	return st, nil
}
