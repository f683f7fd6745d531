package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"solana-arb-engine/internal/domain"
	"solana-arb-engine/internal/storage"
)

// OutcomeStore implements storage.OutcomeStore using PostgreSQL.
type OutcomeStore struct {
	pool *Pool
}

// NewOutcomeStore creates a new OutcomeStore.
func NewOutcomeStore(pool *Pool) *OutcomeStore {
	return &OutcomeStore{pool: pool}
}

// Compile-time interface check.
var _ storage.OutcomeStore = (*OutcomeStore)(nil)

// Insert adds a new outcome. Returns ErrDuplicateKey if (opportunity_id, executed_at) exists.
func (s *OutcomeStore) Insert(ctx context.Context, o *domain.ExecutionOutcome) (err error) {
	if o == nil || o.OpportunityID == "" || o.RouteKey == "" {
		return storage.ErrInvalidInput
	}
	defer func(start time.Time) { observe("insert_outcome", start, err) }(time.Now())

	query := `
		INSERT INTO execution_outcomes (
			opportunity_id, route_key, success, realized_profit,
			signature, error, executed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err = s.pool.Exec(ctx, query,
		o.OpportunityID, o.RouteKey, o.Success, o.RealizedProfit,
		o.Signature, o.Error, o.ExecutedAt,
	)
	if err != nil {
		return translate("insert execution outcome", err)
	}
	return nil
}

// GetByRouteKey retrieves all outcomes of a route, ordered by executed_at ASC.
func (s *OutcomeStore) GetByRouteKey(ctx context.Context, routeKey string) (_ []*domain.ExecutionOutcome, err error) {
	defer func(start time.Time) { observe("outcomes_by_route", start, err) }(time.Now())

	query := `
		SELECT opportunity_id, route_key, success, realized_profit,
			signature, error, executed_at
		FROM execution_outcomes
		WHERE route_key = $1
		ORDER BY executed_at ASC, opportunity_id ASC
	`

	rows, err := s.pool.Query(ctx, query, routeKey)
	if err != nil {
		return nil, fmt.Errorf("query outcomes by route key: %w", err)
	}
	defer rows.Close()

	return scanOutcomes(rows)
}

// RouteStats aggregates outcomes executed at or after since, ordered by route key.
func (s *OutcomeStore) RouteStats(ctx context.Context, since int64) (_ []*domain.RouteStats, err error) {
	defer func(start time.Time) { observe("route_stats", start, err) }(time.Now())

	query := `
		SELECT route_key, COUNT(*), COUNT(*) FILTER (WHERE success)
		FROM execution_outcomes
		WHERE executed_at >= $1
		GROUP BY route_key
		ORDER BY route_key ASC
	`

	rows, err := s.pool.Query(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("query route stats: %w", err)
	}
	defer rows.Close()

	var stats []*domain.RouteStats
	for rows.Next() {
		var st domain.RouteStats
		if err := rows.Scan(&st.RouteKey, &st.Attempts, &st.Successes); err != nil {
			return nil, fmt.Errorf("scan route stats row: %w", err)
		}
		stats = append(stats, &st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate route stats rows: %w", err)
	}
	return stats, nil
}

// scanOutcomes scans multiple rows into a slice.
func scanOutcomes(rows pgx.Rows) ([]*domain.ExecutionOutcome, error) {
	var outcomes []*domain.ExecutionOutcome

	for rows.Next() {
		var o domain.ExecutionOutcome
		err := rows.Scan(
			&o.OpportunityID, &o.RouteKey, &o.Success, &o.RealizedProfit,
			&o.Signature, &o.Error, &o.ExecutedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan outcome row: %w", err)
		}
		outcomes = append(outcomes, &o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outcome rows: %w", err)
	}

	return outcomes, nil
}
