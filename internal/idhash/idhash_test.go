package idhash

import (
	"bytes"
	"testing"

	"github.com/mr-tron/base58"

	"solana-arb-engine/internal/domain"
)

func key(n byte) domain.Address {
	a, _ := domain.AddressFromBytes(bytes.Repeat([]byte{n}, domain.AddressLength))
	return a
}

func pool(addr byte) *domain.PoolState {
	return &domain.PoolState{
		Address:     key(addr),
		Protocol:    domain.ProtocolOrca,
		TokenAMint:  key(10),
		TokenBMint:  key(11),
		Slot:        100,
		LastUpdated: 1_700_000_000_000,
	}
}

func route(t *testing.T, first, second *domain.PoolState) domain.Route {
	t.Helper()
	r, err := domain.NewRoute(
		domain.Leg{Pool: first, InputMint: key(10), OutputMint: key(11)},
		domain.Leg{Pool: second, InputMint: key(11), OutputMint: key(10)},
	)
	if err != nil {
		t.Fatalf("NewRoute: %v", err)
	}
	return r
}

func TestComputeRouteKey(t *testing.T) {
	p1, p2 := pool(1), pool(2)

	got := ComputeRouteKey(route(t, p1, p2))
	raw, err := base58.Decode(got)
	if err != nil {
		t.Fatalf("route key is not base58: %v", err)
	}
	if len(raw) != 32 {
		t.Errorf("decoded key length = %d, want 32", len(raw))
	}

	// Determinism: same inputs should produce same output
	for i := 0; i < 10; i++ {
		if again := ComputeRouteKey(route(t, p1, p2)); again != got {
			t.Fatalf("ComputeRouteKey() not deterministic: %s != %s", again, got)
		}
	}

	if reversed := ComputeRouteKey(route(t, p2, p1)); reversed == got {
		t.Error("reverse direction should produce a different key")
	}
}

func TestComputeOpportunityID_DifferentInputs(t *testing.T) {
	p1, p2 := pool(1), pool(2)
	pools := []*domain.PoolState{p1, p2}
	base := ComputeOpportunityID("route", 1000, pools)

	if again := ComputeOpportunityID("route", 1000, pools); again != base {
		t.Errorf("ComputeOpportunityID() not deterministic: %s != %s", again, base)
	}

	if ComputeOpportunityID("other", 1000, pools) == base {
		t.Error("Different route key should produce different hash")
	}
	if ComputeOpportunityID("route", 2000, pools) == base {
		t.Error("Different amount should produce different hash")
	}

	refreshed := *p2
	refreshed.Slot = 101
	if ComputeOpportunityID("route", 1000, []*domain.PoolState{p1, &refreshed}) == base {
		t.Error("Different pool slot should produce different hash")
	}
}
