package clickhouse

import (
	"context"
	"fmt"
	"time"

	"solana-arb-engine/internal/domain"
	"solana-arb-engine/internal/storage"
)

// SnapshotStore implements storage.SnapshotStore using ClickHouse.
type SnapshotStore struct {
	conn *Conn
}

// NewSnapshotStore creates a new SnapshotStore.
func NewSnapshotStore(conn *Conn) *SnapshotStore {
	return &SnapshotStore{conn: conn}
}

// Compile-time interface check.
var _ storage.SnapshotStore = (*SnapshotStore)(nil)

type snapshotKey struct {
	pool        string
	slot        uint64
	timestampMs int64
}

// InsertBulk adds multiple snapshots. Fails entire batch on duplicate
// (pool, slot, timestamp_ms); MergeTree does not enforce keys, so duplicates
// are checked before the batch is sent.
func (s *SnapshotStore) InsertBulk(ctx context.Context, snapshots []*domain.ReserveSnapshot) (err error) {
	if len(snapshots) == 0 {
		return nil
	}

	seen := make(map[snapshotKey]struct{}, len(snapshots))
	var minTs, maxTs int64
	for i, snap := range snapshots {
		if snap == nil || snap.Pool.IsZero() || snap.TimestampMs < 0 {
			return storage.ErrInvalidInput
		}
		k := snapshotKey{snap.Pool.String(), snap.Slot, snap.TimestampMs}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
		if i == 0 || snap.TimestampMs < minTs {
			minTs = snap.TimestampMs
		}
		if i == 0 || snap.TimestampMs > maxTs {
			maxTs = snap.TimestampMs
		}
	}

	defer func(start time.Time) { observe("insert_snapshots", start, err) }(time.Now())

	existing, err := s.keysInRange(ctx, minTs, maxTs)
	if err != nil {
		return fmt.Errorf("check existing snapshots: %w", err)
	}
	for k := range seen {
		if _, dup := existing[k]; dup {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO reserve_snapshots (
			pool, protocol, slot, timestamp_ms, reserve_a, reserve_b
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, snap := range snapshots {
		err = batch.Append(
			snap.Pool.String(), string(snap.Protocol), snap.Slot,
			uint64(snap.TimestampMs), snap.ReserveA, snap.ReserveB,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByPool retrieves snapshots of one pool within [start, end], ordered by timestamp ASC.
func (s *SnapshotStore) GetByPool(ctx context.Context, pool domain.Address, start, end int64) (_ []*domain.ReserveSnapshot, err error) {
	defer func(t time.Time) { observe("snapshots_by_pool", t, err) }(time.Now())

	query := `
		SELECT pool, protocol, slot, timestamp_ms, reserve_a, reserve_b
		FROM reserve_snapshots
		WHERE pool = ? AND timestamp_ms >= ? AND timestamp_ms <= ?
		ORDER BY timestamp_ms ASC, slot ASC
	`

	rows, err := s.conn.Query(ctx, query, pool.String(), clampTs(start), clampTs(end))
	if err != nil {
		return nil, fmt.Errorf("query snapshots by pool: %w", err)
	}
	defer rows.Close()

	return scanSnapshots(rows)
}

// GetByTimeRange retrieves snapshots of every pool within [start, end].
func (s *SnapshotStore) GetByTimeRange(ctx context.Context, start, end int64) (_ []*domain.ReserveSnapshot, err error) {
	defer func(t time.Time) { observe("snapshots_by_time_range", t, err) }(time.Now())

	query := `
		SELECT pool, protocol, slot, timestamp_ms, reserve_a, reserve_b
		FROM reserve_snapshots
		WHERE timestamp_ms >= ? AND timestamp_ms <= ?
		ORDER BY pool ASC, timestamp_ms ASC, slot ASC
	`

	rows, err := s.conn.Query(ctx, query, clampTs(start), clampTs(end))
	if err != nil {
		return nil, fmt.Errorf("query snapshots by time range: %w", err)
	}
	defer rows.Close()

	return scanSnapshots(rows)
}

func (s *SnapshotStore) keysInRange(ctx context.Context, start, end int64) (map[snapshotKey]struct{}, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT pool, slot, timestamp_ms
		FROM reserve_snapshots
		WHERE timestamp_ms >= ? AND timestamp_ms <= ?
	`, clampTs(start), clampTs(end))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	keys := make(map[snapshotKey]struct{})
	for rows.Next() {
		var pool string
		var slot, ts uint64
		if err := rows.Scan(&pool, &slot, &ts); err != nil {
			return nil, err
		}
		keys[snapshotKey{pool, slot, int64(ts)}] = struct{}{}
	}
	return keys, rows.Err()
}

func clampTs(ts int64) uint64 {
	if ts < 0 {
		return 0
	}
	return uint64(ts)
}

// scanSnapshots scans multiple rows.
func scanSnapshots(rows chRows) ([]*domain.ReserveSnapshot, error) {
	var snaps []*domain.ReserveSnapshot

	for rows.Next() {
		var snap domain.ReserveSnapshot
		var pool, protocol string
		var timestampMs uint64

		err := rows.Scan(&pool, &protocol, &snap.Slot, &timestampMs, &snap.ReserveA, &snap.ReserveB)
		if err != nil {
			return nil, fmt.Errorf("scan reserve snapshot row: %w", err)
		}

		addr, err := domain.ParseAddress(pool)
		if err != nil {
			return nil, fmt.Errorf("scan reserve snapshot row: pool %q: %w", pool, err)
		}
		snap.Pool = addr
		snap.Protocol = domain.Protocol(protocol)
		snap.TimestampMs = int64(timestampMs)
		snaps = append(snaps, &snap)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reserve snapshot rows: %w", err)
	}

	return snaps, nil
}
