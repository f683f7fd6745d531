package domain

import (
	"errors"
	"math"
	"testing"
)

func testRoute(t *testing.T) Route {
	t.Helper()
	r, err := NewRoute(
		Leg{Pool: testPool(1, 10, 11), InputMint: testKey(10), OutputMint: testKey(11)},
		Leg{Pool: testPool(2, 10, 11), InputMint: testKey(11), OutputMint: testKey(10)},
	)
	if err != nil {
		t.Fatalf("NewRoute: %v", err)
	}
	return r
}

func TestNewOpportunity_DerivesProfit(t *testing.T) {
	costs := Costs{NetworkFee: 17000, TradingFees: 50, PriceImpact: 30}
	opp, err := NewOpportunity(testRoute(t), 1_000_000, []uint64{2000, 1_020_000}, costs)
	if err != nil {
		t.Fatalf("NewOpportunity: %v", err)
	}

	if opp.ExpectedAmountOut != 1_020_000 {
		t.Errorf("ExpectedAmountOut = %d", opp.ExpectedAmountOut)
	}
	wantNet := int64(1_020_000 - 1_000_000 - 17080)
	if opp.NetProfit != wantNet {
		t.Errorf("NetProfit = %d, want %d", opp.NetProfit, wantNet)
	}
	if opp.ProfitBps != wantNet*10000/1_000_000 {
		t.Errorf("ProfitBps = %d", opp.ProfitBps)
	}
	if opp.State != StateDiscovered {
		t.Errorf("State = %s, want DISCOVERED", opp.State)
	}
	if opp.LegInput(0) != 1_000_000 || opp.LegInput(1) != 2000 {
		t.Errorf("LegInput = %d, %d", opp.LegInput(0), opp.LegInput(1))
	}
}

func TestNewOpportunity_Loss(t *testing.T) {
	opp, err := NewOpportunity(testRoute(t), 1000, []uint64{10, 900}, Costs{NetworkFee: 17000})
	if err != nil {
		t.Fatalf("NewOpportunity: %v", err)
	}
	if opp.NetProfit != -17100 {
		t.Errorf("NetProfit = %d, want -17100", opp.NetProfit)
	}
	if opp.IsProfitable() {
		t.Error("loss should not be profitable")
	}
}

func TestNewOpportunity_Errors(t *testing.T) {
	r := testRoute(t)
	if _, err := NewOpportunity(r, 0, []uint64{1, 2}, Costs{}); !errors.Is(err, ErrZeroAmount) {
		t.Errorf("zero amount: %v", err)
	}
	if _, err := NewOpportunity(r, 10, []uint64{1}, Costs{}); !errors.Is(err, ErrLegOutputs) {
		t.Errorf("leg outputs: %v", err)
	}
	if _, err := NewOpportunity(r, 10, []uint64{1, math.MaxUint64}, Costs{}); !errors.Is(err, ErrAmountOverflow) {
		t.Errorf("overflow: %v", err)
	}
}

func TestOpportunity_Transition(t *testing.T) {
	opp, _ := NewOpportunity(testRoute(t), 1000, []uint64{10, 1100}, Costs{})

	if err := opp.Transition(StateAccepted); !errors.Is(err, ErrIllegalTransition) {
		t.Errorf("Discovered -> Accepted should fail, got %v", err)
	}
	if err := opp.Transition(StateRiskChecked); err != nil {
		t.Fatalf("Discovered -> RiskChecked: %v", err)
	}
	if err := opp.Transition(StateRejected); err != nil {
		t.Fatalf("RiskChecked -> Rejected: %v", err)
	}
	if !opp.State.IsTerminal() {
		t.Error("Rejected should be terminal")
	}
	if err := opp.Transition(StateAccepted); err == nil {
		t.Error("transition out of terminal state should fail")
	}
}

func TestCosts_CheckedTotal(t *testing.T) {
	if got, ok := (Costs{NetworkFee: 1, TradingFees: 2, PriceImpact: 3}).CheckedTotal(); !ok || got != 6 {
		t.Errorf("CheckedTotal = %d, %v; want 6", got, ok)
	}
	// The network fee alone does not overflow; fees plus impact do.
	wrap := Costs{NetworkFee: 1, TradingFees: math.MaxUint64, PriceImpact: 5}
	if _, ok := wrap.CheckedTotal(); ok {
		t.Error("CheckedTotal should report the wraparound")
	}
	if _, err := NewOpportunity(testRoute(t), 1000, []uint64{10, 1100}, wrap); !errors.Is(err, ErrAmountOverflow) {
		t.Errorf("err = %v, want ErrAmountOverflow", err)
	}
}
