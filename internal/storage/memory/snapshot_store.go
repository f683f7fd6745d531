package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"solana-arb-engine/internal/domain"
	"solana-arb-engine/internal/storage"
)

// SnapshotStore is an in-memory implementation of storage.SnapshotStore.
type SnapshotStore struct {
	mu   sync.RWMutex
	data map[string]*domain.ReserveSnapshot // keyed by (pool, slot, timestamp_ms)
}

// NewSnapshotStore creates a new in-memory reserve snapshot store.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{
		data: make(map[string]*domain.ReserveSnapshot),
	}
}

func snapshotKey(s *domain.ReserveSnapshot) string {
	return fmt.Sprintf("%s|%d|%d", s.Pool, s.Slot, s.TimestampMs)
}

// InsertBulk adds multiple snapshots. Fails entire batch on duplicate.
func (s *SnapshotStore) InsertBulk(_ context.Context, snapshots []*domain.ReserveSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(snapshots))
	for _, snap := range snapshots {
		if snap == nil || snap.Pool.IsZero() {
			return storage.ErrInvalidInput
		}
		key := snapshotKey(snap)
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	for _, snap := range snapshots {
		cp := *snap
		s.data[snapshotKey(snap)] = &cp
	}

	return nil
}

// GetByPool retrieves snapshots of one pool within [start, end], ordered by timestamp ASC.
func (s *SnapshotStore) GetByPool(_ context.Context, pool domain.Address, start, end int64) ([]*domain.ReserveSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.ReserveSnapshot
	for _, snap := range s.data {
		if snap.Pool.Equals(pool) && snap.TimestampMs >= start && snap.TimestampMs <= end {
			cp := *snap
			result = append(result, &cp)
		}
	}
	sortSnapshots(result)
	return result, nil
}

// GetByTimeRange retrieves snapshots of every pool within [start, end].
func (s *SnapshotStore) GetByTimeRange(_ context.Context, start, end int64) ([]*domain.ReserveSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.ReserveSnapshot
	for _, snap := range s.data {
		if snap.TimestampMs >= start && snap.TimestampMs <= end {
			cp := *snap
			result = append(result, &cp)
		}
	}
	sortSnapshots(result)
	return result, nil
}

func sortSnapshots(snaps []*domain.ReserveSnapshot) {
	sort.Slice(snaps, func(i, j int) bool {
		a, b := snaps[i], snaps[j]
		if pa, pb := a.Pool.String(), b.Pool.String(); pa != pb {
			return pa < pb
		}
		if a.TimestampMs != b.TimestampMs {
			return a.TimestampMs < b.TimestampMs
		}
		return a.Slot < b.Slot
	})
}

var _ storage.SnapshotStore = (*SnapshotStore)(nil)
