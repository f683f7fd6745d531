package domain

import (
	"bytes"
	"errors"
	"testing"
)

func testKey(n byte) Address {
	a, _ := AddressFromBytes(bytes.Repeat([]byte{n}, AddressLength))
	return a
}

func testPool(addr, mintA, mintB byte) *PoolState {
	return &PoolState{
		Address:       testKey(addr),
		Protocol:      ProtocolRaydium,
		TokenAMint:    testKey(mintA),
		TokenBMint:    testKey(mintB),
		TokenAReserve: 1000,
		TokenBReserve: 2000,
		FeeBps:        25,
	}
}

func TestNewRoute_TwoLegClosedLoop(t *testing.T) {
	p1 := testPool(1, 10, 11)
	p2 := testPool(2, 11, 10)

	r, err := NewRoute(
		Leg{Pool: p1, InputMint: testKey(10), OutputMint: testKey(11)},
		Leg{Pool: p2, InputMint: testKey(11), OutputMint: testKey(10)},
	)
	if err != nil {
		t.Fatalf("NewRoute: %v", err)
	}
	if r.Len() != 2 {
		t.Errorf("Len = %d, want 2", r.Len())
	}
	if !r.BaseMint().Equals(testKey(10)) {
		t.Errorf("BaseMint = %s, want %s", r.BaseMint(), testKey(10))
	}
	if got := r.Pools(); got[0] != p1 || got[1] != p2 {
		t.Error("Pools not in leg order")
	}
}

func TestNewRoute_Triangle(t *testing.T) {
	_, err := NewRoute(
		Leg{Pool: testPool(1, 10, 11), InputMint: testKey(10), OutputMint: testKey(11)},
		Leg{Pool: testPool(2, 11, 12), InputMint: testKey(11), OutputMint: testKey(12)},
		Leg{Pool: testPool(3, 12, 10), InputMint: testKey(12), OutputMint: testKey(10)},
	)
	if err != nil {
		t.Fatalf("NewRoute: %v", err)
	}
}

func TestNewRoute_Invalid(t *testing.T) {
	p1 := testPool(1, 10, 11)
	p2 := testPool(2, 11, 12)
	p3 := testPool(3, 10, 11)

	tests := []struct {
		name string
		legs []Leg
		want error
	}{
		{
			name: "single leg",
			legs: []Leg{{Pool: p1, InputMint: testKey(10), OutputMint: testKey(11)}},
			want: ErrRouteLength,
		},
		{
			name: "open loop",
			legs: []Leg{
				{Pool: p1, InputMint: testKey(10), OutputMint: testKey(11)},
				{Pool: p2, InputMint: testKey(11), OutputMint: testKey(12)},
			},
			want: ErrRouteOpen,
		},
		{
			name: "broken chain",
			legs: []Leg{
				{Pool: p1, InputMint: testKey(10), OutputMint: testKey(11)},
				{Pool: p3, InputMint: testKey(10), OutputMint: testKey(11)},
			},
			want: ErrRouteBroken,
		},
		{
			name: "mint not in pool",
			legs: []Leg{
				{Pool: p1, InputMint: testKey(10), OutputMint: testKey(11)},
				{Pool: p2, InputMint: testKey(11), OutputMint: testKey(10)},
			},
			want: ErrLegMint,
		},
		{
			name: "same pool twice",
			legs: []Leg{
				{Pool: p1, InputMint: testKey(10), OutputMint: testKey(11)},
				{Pool: p1, InputMint: testKey(11), OutputMint: testKey(10)},
			},
			want: ErrRoutePoolUsed,
		},
		{
			name: "self swap",
			legs: []Leg{
				{Pool: p1, InputMint: testKey(10), OutputMint: testKey(10)},
				{Pool: p3, InputMint: testKey(10), OutputMint: testKey(10)},
			},
			want: ErrLegSelfSwap,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRoute(tt.legs...)
			if !errors.Is(err, tt.want) {
				t.Errorf("NewRoute error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestRoute_CanonicalIsStable(t *testing.T) {
	legs := []Leg{
		{Pool: testPool(1, 10, 11), InputMint: testKey(10), OutputMint: testKey(11)},
		{Pool: testPool(2, 10, 11), InputMint: testKey(11), OutputMint: testKey(10)},
	}
	r1, _ := NewRoute(legs...)
	r2, _ := NewRoute(legs...)
	if r1.Canonical() != r2.Canonical() {
		t.Errorf("Canonical differs: %q vs %q", r1.Canonical(), r2.Canonical())
	}

	reversed, _ := NewRoute(
		Leg{Pool: legs[1].Pool, InputMint: testKey(10), OutputMint: testKey(11)},
		Leg{Pool: legs[0].Pool, InputMint: testKey(11), OutputMint: testKey(10)},
	)
	if reversed.Canonical() == r1.Canonical() {
		t.Error("reversed route should have a different canonical form")
	}
}

func TestPoolState_Reserves(t *testing.T) {
	p := testPool(1, 10, 11)

	in, out, ok := p.Reserves(testKey(11))
	if !ok || in != 1000 || out != 2000 {
		t.Errorf("Reserves(B) = %d, %d, %v", in, out, ok)
	}
	in, out, ok = p.Reserves(testKey(10))
	if !ok || in != 2000 || out != 1000 {
		t.Errorf("Reserves(A) = %d, %d, %v", in, out, ok)
	}
	if _, _, ok := p.Reserves(testKey(99)); ok {
		t.Error("Reserves of foreign mint should fail")
	}
}

func TestMintLabel(t *testing.T) {
	if got := MintLabel(USDCMint); got != "USDC" {
		t.Errorf("MintLabel(USDC) = %q", got)
	}
	if got := MintLabel(testKey(7)); len(got) != 10 {
		t.Errorf("MintLabel(unknown) = %q, want abbreviated form", got)
	}
}
