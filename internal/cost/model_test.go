package cost

import (
	"bytes"
	"errors"
	"testing"

	"solana-arb-engine/internal/domain"
)

func key(n byte) domain.Address {
	a, _ := domain.AddressFromBytes(bytes.Repeat([]byte{n}, domain.AddressLength))
	return a
}

func twoLegRoute(t *testing.T) domain.Route {
	t.Helper()
	return routeFrom(t, domain.WrappedSOLMint)
}

func routeFrom(t *testing.T, base domain.Address) domain.Route {
	t.Helper()
	x := key(11)
	p1 := &domain.PoolState{
		Address: key(1), Protocol: domain.ProtocolRaydium,
		TokenAMint: base, TokenBMint: x,
		TokenAReserve: 1_000_000, TokenBReserve: 2_000_000, FeeBps: 30,
	}
	p2 := &domain.PoolState{
		Address: key(2), Protocol: domain.ProtocolOrca,
		TokenAMint: x, TokenBMint: base,
		TokenAReserve: 2_000_000, TokenBReserve: 1_000_000, FeeBps: 20,
	}
	r, err := domain.NewRoute(
		domain.Leg{Pool: p1, InputMint: base, OutputMint: x},
		domain.Leg{Pool: p2, InputMint: x, OutputMint: base},
	)
	if err != nil {
		t.Fatalf("NewRoute: %v", err)
	}
	return r
}

func TestNetworkFee_Default(t *testing.T) {
	m, err := NewModel(DefaultConfig())
	if err != nil {
		t.Fatalf("NewModel: %v", err)
	}
	if got := m.NetworkFee(); got != 17_000 {
		t.Errorf("NetworkFee = %d, want 17000", got)
	}
}

func TestNetworkFee_RoundsComputeBudgetUp(t *testing.T) {
	cfg := Config{BaseFee: 5000, ComputeUnits: 1, ComputeUnitPrice: 1}
	m, err := NewModel(cfg)
	if err != nil {
		t.Fatalf("NewModel: %v", err)
	}
	if got := m.NetworkFee(); got != 5001 {
		t.Errorf("NetworkFee = %d, want 5001", got)
	}
}

func TestEstimate_TwoLegs(t *testing.T) {
	m, err := NewModel(DefaultConfig())
	if err != nil {
		t.Fatalf("NewModel: %v", err)
	}

	costs, err := m.Estimate(twoLegRoute(t), 10_000, []uint64{19_900, 9_950})
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}

	// trading: 10000*30/1e4 + (19900*0.5)*20/1e4 = 30 + 19.9
	if costs.TradingFees != 49 {
		t.Errorf("TradingFees = %d, want 49", costs.TradingFees)
	}
	// impact: 10000*0.01*0.1 + 9950*0.00995*0.1 = 10 + 9.90025
	if costs.PriceImpact != 19 {
		t.Errorf("PriceImpact = %d, want 19", costs.PriceImpact)
	}
	if costs.NetworkFee != 17_000 || costs.NetworkLamports != 17_000 {
		t.Errorf("network fee = %d (%d lamports)", costs.NetworkFee, costs.NetworkLamports)
	}
	if costs.Total() != 17_068 {
		t.Errorf("Total = %d, want 17068", costs.Total())
	}
}

func TestEstimate_OnlyFirstLegOutputNeeded(t *testing.T) {
	m, _ := NewModel(DefaultConfig())
	r := twoLegRoute(t)

	full, err := m.Estimate(r, 10_000, []uint64{19_900, 9_950})
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}
	partial, err := m.Estimate(r, 10_000, []uint64{19_900})
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}
	if full != partial {
		t.Errorf("costs differ: %+v vs %+v", full, partial)
	}

	if _, err := m.Estimate(r, 10_000, nil); !errors.Is(err, ErrMissingLegOutput) {
		t.Errorf("err = %v, want ErrMissingLegOutput", err)
	}
}

func TestEstimate_Deterministic(t *testing.T) {
	m, _ := NewModel(DefaultConfig())
	r := twoLegRoute(t)
	first, _ := m.Estimate(r, 123_457, []uint64{246_000})
	for i := 0; i < 5; i++ {
		again, _ := m.Estimate(r, 123_457, []uint64{246_000})
		if again != first {
			t.Fatalf("not deterministic: %+v vs %+v", again, first)
		}
	}
}

func TestNewModel_Validation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ImpactCostFactor = -1
	if _, err := NewModel(cfg); err == nil {
		t.Error("negative impact factor should fail")
	}
}

// fixedRate converts lamports at a fixed number of base units per SOL for
// the mints it knows.
type fixedRate map[domain.Address]uint64

func (f fixedRate) LamportsIn(mint domain.Address, lamports uint64) (uint64, bool) {
	perSOL, ok := f[mint]
	if !ok {
		return 0, false
	}
	return (lamports*perSOL + 999_999_999) / 1_000_000_000, true
}

func TestEstimate_ConvertsNetworkFeeToBaseMint(t *testing.T) {
	usdc := routeFrom(t, domain.USDCMint)

	m, _ := NewModel(DefaultConfig())
	if _, err := m.Estimate(usdc, 10_000, []uint64{19_900}); !errors.Is(err, ErrUnpricedBase) {
		t.Fatalf("err = %v, want ErrUnpricedBase without a converter", err)
	}

	m, _ = NewModel(DefaultConfig(), WithConverter(fixedRate{domain.USDCMint: 150_000_000}))
	costs, err := m.Estimate(usdc, 10_000, []uint64{19_900})
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}
	// 17000 lamports at 150 USDC per SOL
	if costs.NetworkFee != 2550 || costs.NetworkLamports != 17_000 {
		t.Errorf("network fee = %d (%d lamports), want 2550 (17000)", costs.NetworkFee, costs.NetworkLamports)
	}
	// pool fees and impact do not depend on the conversion
	if costs.TradingFees != 49 || costs.PriceImpact != 19 {
		t.Errorf("trading %d, impact %d; want 49, 19", costs.TradingFees, costs.PriceImpact)
	}

	if _, err := m.Estimate(routeFrom(t, key(10)), 10_000, []uint64{19_900}); !errors.Is(err, ErrUnpricedBase) {
		t.Errorf("err = %v, want ErrUnpricedBase for a mint the converter does not know", err)
	}
}

func TestLamportsIn_WSOLNeedsNoConverter(t *testing.T) {
	m, _ := NewModel(DefaultConfig())
	got, err := m.LamportsIn(domain.WrappedSOLMint, 1_000_000)
	if err != nil || got != 1_000_000 {
		t.Errorf("LamportsIn = %d, %v; want 1000000", got, err)
	}
}
