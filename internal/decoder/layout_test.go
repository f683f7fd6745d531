package decoder

import (
	"errors"
	"testing"

	"solana-arb-engine/internal/domain"
)

func TestDefaultLayoutsValidate(t *testing.T) {
	for _, l := range DefaultLayouts() {
		if err := l.Validate(); err != nil {
			t.Errorf("%s: %v", l.Protocol, err)
		}
	}
}

func TestExtract_PerProtocol(t *testing.T) {
	tests := []struct {
		layout  Layout
		wantFee uint64
		wantLP  bool
	}{
		{RaydiumAMMV4Layout, 25, true},
		{OrcaTokenSwapLayout, 50, true}, // trade 25 + owner 25
		{WhirlpoolLayout, 30, false},
		{SerumMarketV3Layout, 22, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.layout.Protocol), func(t *testing.T) {
			f := newPoolFixture(tt.layout)
			keys, err := tt.layout.Extract(f.addr, f.bytes())
			if err != nil {
				t.Fatalf("Extract: %v", err)
			}
			if !keys.MintA.Equals(f.mintA) || !keys.MintB.Equals(f.mintB) {
				t.Errorf("mints = %s/%s", keys.MintA, keys.MintB)
			}
			if !keys.VaultA.Equals(f.vaultA) || !keys.VaultB.Equals(f.vaultB) {
				t.Errorf("vaults = %s/%s", keys.VaultA, keys.VaultB)
			}
			if keys.FeeBps != tt.wantFee {
				t.Errorf("FeeBps = %d, want %d", keys.FeeBps, tt.wantFee)
			}
			if tt.wantLP != !keys.LPMint.IsZero() {
				t.Errorf("LPMint = %s, want present=%v", keys.LPMint, tt.wantLP)
			}
			if keys.Protocol != tt.layout.Protocol {
				t.Errorf("Protocol = %s", keys.Protocol)
			}
		})
	}
}

func TestExtract_TooShort(t *testing.T) {
	for _, l := range DefaultLayouts() {
		f := newPoolFixture(l)
		data := f.bytes()[:l.MinLength-1]

		_, err := l.Extract(f.addr, data)
		if !errors.Is(err, ErrTooShort) {
			t.Errorf("%s: err = %v, want TooShort", l.Protocol, err)
		}
		var de *DecodeError
		if errors.As(err, &de) && (de.Protocol != l.Protocol || !de.Address.Equals(f.addr)) {
			t.Errorf("%s: error not stamped with pool: %+v", l.Protocol, de)
		}
	}
}

func TestExtract_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*poolFixture)
		want   error
		field  string
	}{
		{"zero mint a", func(f *poolFixture) { f.mintA = domain.ZeroAddress }, ErrDefaultAddress, "mint_a"},
		{"zero vault b", func(f *poolFixture) { f.vaultB = domain.ZeroAddress }, ErrDefaultAddress, "vault_b"},
		{"zero lp mint", func(f *poolFixture) { f.lpMint = domain.ZeroAddress }, ErrDefaultAddress, "lp_mint"},
		{"same mints", func(f *poolFixture) { f.mintB = f.mintA }, ErrMalformed, "mint_b"},
		{"same vaults", func(f *poolFixture) { f.vaultB = f.vaultA }, ErrMalformed, "vault_b"},
		{"zero fee denominator", func(f *poolFixture) { f.feeDen[0] = 0 }, ErrMalformed, "fee"},
		{"fee over 100%", func(f *poolFixture) { f.feeNum[0] = 20_000 }, ErrMalformed, "fee"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newPoolFixture(RaydiumAMMV4Layout)
			tt.mutate(&f)

			_, err := RaydiumAMMV4Layout.Extract(f.addr, f.bytes())
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			var de *DecodeError
			if !errors.As(err, &de) || de.Field != tt.field {
				t.Errorf("field = %q, want %q", de.Field, tt.field)
			}
		})
	}
}

func TestExtract_WhirlpoolFeeRate(t *testing.T) {
	f := newPoolFixture(WhirlpoolLayout)
	f.feeNum[0] = 100 // 0.01 %
	keys, err := WhirlpoolLayout.Extract(f.addr, f.bytes())
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if keys.FeeBps != 1 {
		t.Errorf("FeeBps = %d, want 1", keys.FeeBps)
	}
}

func TestLayoutValidate_OutOfRange(t *testing.T) {
	l := RaydiumAMMV4Layout
	l.MinLength = 400
	if err := l.Validate(); err == nil {
		t.Error("expected error for offsets beyond MinLength")
	}
}

func TestRegistry(t *testing.T) {
	r := DefaultRegistry()

	l, ok := r.Lookup(domain.OrcaWhirlpoolProgram)
	if !ok || l.Protocol != domain.ProtocolWhirlpool {
		t.Fatalf("Lookup(whirlpool) = %v, %v", l.Protocol, ok)
	}
	if _, ok := r.Lookup(key(99)); ok {
		t.Error("unknown program should not resolve")
	}
	if err := r.Register(RaydiumAMMV4Layout); err == nil {
		t.Error("duplicate protocol should fail")
	}

	fork := key(77)
	if err := r.Alias(fork, domain.ProtocolOrca); err != nil {
		t.Fatalf("Alias: %v", err)
	}
	l, ok = r.Lookup(fork)
	if !ok || l.Protocol != domain.ProtocolOrca || !l.Program.Equals(fork) {
		t.Errorf("aliased lookup = %v %s %v", l.Protocol, l.Program, ok)
	}
	if len(r.Programs()) != 5 {
		t.Errorf("Programs() = %d entries, want 5", len(r.Programs()))
	}
}
