package memory

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"solana-arb-engine/internal/domain"
	"solana-arb-engine/internal/storage"
)

func poolAddr(n byte) domain.Address {
	a, _ := domain.AddressFromBytes(bytes.Repeat([]byte{n}, domain.AddressLength))
	return a
}

func TestSnapshotStore_InsertBulkAndGet(t *testing.T) {
	store := NewSnapshotStore()
	ctx := context.Background()

	p1, p2 := poolAddr(1), poolAddr(2)
	snaps := []*domain.ReserveSnapshot{
		{Pool: p1, Protocol: domain.ProtocolRaydium, Slot: 11, TimestampMs: 2000, ReserveA: 100, ReserveB: 210},
		{Pool: p1, Protocol: domain.ProtocolRaydium, Slot: 10, TimestampMs: 1000, ReserveA: 100, ReserveB: 200},
		{Pool: p2, Protocol: domain.ProtocolOrca, Slot: 10, TimestampMs: 1000, ReserveA: 50, ReserveB: 50},
	}
	if err := store.InsertBulk(ctx, snaps); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	result, err := store.GetByPool(ctx, p1, 0, 5000)
	if err != nil {
		t.Fatalf("GetByPool failed: %v", err)
	}
	if len(result) != 2 {
		t.Fatalf("Expected 2 snapshots, got %d", len(result))
	}
	if result[0].TimestampMs != 1000 || result[1].TimestampMs != 2000 {
		t.Errorf("Expected ascending timestamps, got %d, %d", result[0].TimestampMs, result[1].TimestampMs)
	}

	result, _ = store.GetByPool(ctx, p1, 1500, 2000)
	if len(result) != 1 {
		t.Errorf("Expected 1 snapshot in range, got %d", len(result))
	}

	all, err := store.GetByTimeRange(ctx, 1000, 1000)
	if err != nil {
		t.Fatalf("GetByTimeRange failed: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("Expected 2 snapshots at t=1000, got %d", len(all))
	}
}

func TestSnapshotStore_DuplicateKey(t *testing.T) {
	store := NewSnapshotStore()
	ctx := context.Background()

	snap := &domain.ReserveSnapshot{Pool: poolAddr(1), Slot: 10, TimestampMs: 1000}
	if err := store.InsertBulk(ctx, []*domain.ReserveSnapshot{snap}); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}
	if err := store.InsertBulk(ctx, []*domain.ReserveSnapshot{snap}); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
}

func TestSnapshotStore_IntraBatchDuplicate(t *testing.T) {
	store := NewSnapshotStore()
	ctx := context.Background()

	snaps := []*domain.ReserveSnapshot{
		{Pool: poolAddr(1), Slot: 10, TimestampMs: 1000, ReserveA: 1},
		{Pool: poolAddr(1), Slot: 10, TimestampMs: 1000, ReserveA: 2}, // duplicate key
	}
	if err := store.InsertBulk(ctx, snaps); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey for intra-batch duplicate, got %v", err)
	}

	result, _ := store.GetByPool(ctx, poolAddr(1), 0, 5000)
	if len(result) != 0 {
		t.Errorf("Expected 0 snapshots (rollback), got %d", len(result))
	}
}

func TestSnapshotStore_InvalidInput(t *testing.T) {
	store := NewSnapshotStore()
	ctx := context.Background()

	err := store.InsertBulk(ctx, []*domain.ReserveSnapshot{{Slot: 1}})
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
	if err := store.InsertBulk(ctx, nil); err != nil {
		t.Errorf("Empty batch should be a no-op, got %v", err)
	}
}
