package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"solana-arb-engine/internal/domain"
	"solana-arb-engine/internal/storage"
)

// OutcomeStore is an in-memory implementation of storage.OutcomeStore.
type OutcomeStore struct {
	mu   sync.RWMutex
	data map[string]*domain.ExecutionOutcome // keyed by (opportunity_id, executed_at)
}

// NewOutcomeStore creates a new in-memory outcome store.
func NewOutcomeStore() *OutcomeStore {
	return &OutcomeStore{
		data: make(map[string]*domain.ExecutionOutcome),
	}
}

func outcomeKey(o *domain.ExecutionOutcome) string {
	return fmt.Sprintf("%s|%d", o.OpportunityID, o.ExecutedAt)
}

// Insert adds a new outcome. Returns ErrDuplicateKey if the key exists.
func (s *OutcomeStore) Insert(_ context.Context, o *domain.ExecutionOutcome) error {
	if o == nil || o.OpportunityID == "" || o.RouteKey == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := outcomeKey(o)
	if _, exists := s.data[key]; exists {
		return storage.ErrDuplicateKey
	}

	cp := *o
	s.data[key] = &cp
	return nil
}

// GetByRouteKey retrieves all outcomes of a route, ordered by executed_at ASC.
func (s *OutcomeStore) GetByRouteKey(_ context.Context, routeKey string) ([]*domain.ExecutionOutcome, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.ExecutionOutcome
	for _, o := range s.data {
		if o.RouteKey == routeKey {
			cp := *o
			result = append(result, &cp)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].ExecutedAt != result[j].ExecutedAt {
			return result[i].ExecutedAt < result[j].ExecutedAt
		}
		return result[i].OpportunityID < result[j].OpportunityID
	})

	return result, nil
}

// RouteStats aggregates outcomes executed at or after since, ordered by route key.
func (s *OutcomeStore) RouteStats(_ context.Context, since int64) ([]*domain.RouteStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byRoute := make(map[string]*domain.RouteStats)
	for _, o := range s.data {
		if o.ExecutedAt < since {
			continue
		}
		st, ok := byRoute[o.RouteKey]
		if !ok {
			st = &domain.RouteStats{RouteKey: o.RouteKey}
			byRoute[o.RouteKey] = st
		}
		st.Attempts++
		if o.Success {
			st.Successes++
		}
	}

	result := make([]*domain.RouteStats, 0, len(byRoute))
	for _, st := range byRoute {
		result = append(result, st)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].RouteKey < result[j].RouteKey
	})

	return result, nil
}

var _ storage.OutcomeStore = (*OutcomeStore)(nil)
