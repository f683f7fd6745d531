package storage

import (
	"context"

	"solana-arb-engine/internal/domain"
)

// OutcomeStore provides access to execution_outcomes storage.
type OutcomeStore interface {
	// Insert adds a new outcome. Returns ErrDuplicateKey if
	// (opportunity_id, executed_at) exists.
	Insert(ctx context.Context, o *domain.ExecutionOutcome) error

	// GetByRouteKey retrieves all outcomes of a route, ordered by executed_at ASC.
	GetByRouteKey(ctx context.Context, routeKey string) ([]*domain.ExecutionOutcome, error)

	// RouteStats aggregates attempts and successes per route key for outcomes
	// executed at or after since (unix ms), ordered by route key.
	RouteStats(ctx context.Context, since int64) ([]*domain.RouteStats, error)
}

// SnapshotStore provides access to reserve_snapshots storage.
type SnapshotStore interface {
	// InsertBulk adds multiple snapshots atomically. Fails entire batch on any
	// duplicate (pool, slot, timestamp_ms).
	InsertBulk(ctx context.Context, snapshots []*domain.ReserveSnapshot) error

	// GetByPool retrieves snapshots of one pool within [start, end] (inclusive),
	// ordered by timestamp ASC.
	GetByPool(ctx context.Context, pool domain.Address, start, end int64) ([]*domain.ReserveSnapshot, error)

	// GetByTimeRange retrieves snapshots of every pool within [start, end]
	// (inclusive), ordered by pool then timestamp ASC.
	GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.ReserveSnapshot, error)
}
