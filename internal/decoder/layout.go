package decoder

import (
	"fmt"
	"math/bits"

	bin "github.com/gagliardetto/binary"

	"solana-arb-engine/internal/domain"
)

// Offset marker for layout fields the protocol does not have.
const absent = -1

// FeeFraction locates one fee numerator/denominator pair inside a pool
// account. A fixed Denominator is used when DenominatorOffset is absent.
type FeeFraction struct {
	NumeratorOffset   int
	NumeratorSize     int // 2, 4 or 8 bytes, little-endian
	DenominatorOffset int
	Denominator       uint64
}

// Layout is the declarative byte layout of one protocol's pool account.
// All offsets are absolute byte positions; keys are 32 bytes.
type Layout struct {
	Protocol    domain.Protocol
	Program     domain.Address
	MinLength   int
	MintA       int
	MintB       int
	VaultA      int
	VaultB      int
	LPMint      int // absent when the protocol has no LP mint
	Fees        []FeeFraction
	FixedFeeBps uint64 // used when Fees is empty
}

var (
	// RaydiumAMMV4Layout is the Raydium liquidity state v4 account.
	RaydiumAMMV4Layout = Layout{
		Protocol:  domain.ProtocolRaydium,
		Program:   domain.RaydiumAMMV4Program,
		MinLength: 752,
		MintA:     400,
		MintB:     432,
		VaultA:    336,
		VaultB:    368,
		LPMint:    464,
		Fees: []FeeFraction{
			{NumeratorOffset: 176, NumeratorSize: 8, DenominatorOffset: 184},
		},
	}

	// OrcaTokenSwapLayout is the SPL token-swap account used by Orca v2 pools.
	OrcaTokenSwapLayout = Layout{
		Protocol:  domain.ProtocolOrca,
		Program:   domain.OrcaTokenSwapProgram,
		MinLength: 324,
		MintA:     131,
		MintB:     163,
		VaultA:    35,
		VaultB:    67,
		LPMint:    99,
		Fees: []FeeFraction{
			{NumeratorOffset: 227, NumeratorSize: 8, DenominatorOffset: 235}, // trade fee
			{NumeratorOffset: 243, NumeratorSize: 8, DenominatorOffset: 251}, // owner trade fee
		},
	}

	// WhirlpoolLayout is the Orca concentrated liquidity pool account.
	WhirlpoolLayout = Layout{
		Protocol:  domain.ProtocolWhirlpool,
		Program:   domain.OrcaWhirlpoolProgram,
		MinLength: 653,
		MintA:     101,
		MintB:     181,
		VaultA:    133,
		VaultB:    213,
		LPMint:    absent,
		Fees: []FeeFraction{
			{NumeratorOffset: 45, NumeratorSize: 2, DenominatorOffset: absent, Denominator: 1_000_000},
		},
	}

	// SerumMarketV3Layout is the Serum/OpenBook v3 market account; base and
	// quote vaults stand in for the pool reserves.
	SerumMarketV3Layout = Layout{
		Protocol:    domain.ProtocolSerum,
		Program:     domain.SerumDEXV3Program,
		MinLength:   388,
		MintA:       53,
		MintB:       85,
		VaultA:      117,
		VaultB:      165,
		LPMint:      absent,
		FixedFeeBps: 22,
	}
)

// DefaultLayouts returns the layouts of every supported protocol.
func DefaultLayouts() []Layout {
	return []Layout{
		RaydiumAMMV4Layout,
		OrcaTokenSwapLayout,
		WhirlpoolLayout,
		SerumMarketV3Layout,
	}
}

// Validate checks that every declared field fits inside MinLength.
func (l Layout) Validate() error {
	if !l.Protocol.IsValid() {
		return fmt.Errorf("layout: invalid protocol %q", l.Protocol)
	}
	if l.Program.IsZero() {
		return fmt.Errorf("layout %s: zero program id", l.Protocol)
	}
	keys := map[string]int{"mint_a": l.MintA, "mint_b": l.MintB, "vault_a": l.VaultA, "vault_b": l.VaultB}
	if l.LPMint != absent {
		keys["lp_mint"] = l.LPMint
	}
	for name, off := range keys {
		if off < 0 || off+domain.AddressLength > l.MinLength {
			return fmt.Errorf("layout %s: %s at %d exceeds min length %d", l.Protocol, name, off, l.MinLength)
		}
	}
	for i, f := range l.Fees {
		switch f.NumeratorSize {
		case 2, 4, 8:
		default:
			return fmt.Errorf("layout %s: fee %d numerator size %d", l.Protocol, i, f.NumeratorSize)
		}
		if f.NumeratorOffset < 0 || f.NumeratorOffset+f.NumeratorSize > l.MinLength {
			return fmt.Errorf("layout %s: fee %d numerator out of range", l.Protocol, i)
		}
		if f.DenominatorOffset == absent {
			if f.Denominator == 0 {
				return fmt.Errorf("layout %s: fee %d has no denominator", l.Protocol, i)
			}
		} else if f.DenominatorOffset < 0 || f.DenominatorOffset+8 > l.MinLength {
			return fmt.Errorf("layout %s: fee %d denominator out of range", l.Protocol, i)
		}
	}
	if len(l.Fees) == 0 && l.FixedFeeBps >= 10_000 {
		return fmt.Errorf("layout %s: fixed fee %d bps", l.Protocol, l.FixedFeeBps)
	}
	return nil
}

// PoolKeys holds the fields read from a pool account before its reserves
// are resolved from the vaults.
type PoolKeys struct {
	Address  domain.Address
	Protocol domain.Protocol
	MintA    domain.Address
	MintB    domain.Address
	VaultA   domain.Address
	VaultB   domain.Address
	LPMint   domain.Address
	FeeBps   uint64
}

// Extract reads pool keys and the fee from raw account bytes. It is pure and
// validates length, non-default keys, distinct mints and vaults, and the fee.
func (l Layout) Extract(addr domain.Address, data []byte) (PoolKeys, error) {
	if len(data) < l.MinLength {
		return PoolKeys{}, withPool(newError(KindTooShort, "",
			"have %d bytes, want >= %d", len(data), l.MinLength), l.Protocol, addr)
	}

	keys := PoolKeys{
		Address:  addr,
		Protocol: l.Protocol,
		MintA:    readKey(data, l.MintA),
		MintB:    readKey(data, l.MintB),
		VaultA:   readKey(data, l.VaultA),
		VaultB:   readKey(data, l.VaultB),
	}
	if l.LPMint != absent {
		keys.LPMint = readKey(data, l.LPMint)
	}

	required := []struct {
		field string
		key   domain.Address
	}{
		{"mint_a", keys.MintA},
		{"mint_b", keys.MintB},
		{"vault_a", keys.VaultA},
		{"vault_b", keys.VaultB},
	}
	if l.LPMint != absent {
		required = append(required, struct {
			field string
			key   domain.Address
		}{"lp_mint", keys.LPMint})
	}
	for _, r := range required {
		if r.key.IsZero() {
			return PoolKeys{}, withPool(newError(KindDefaultAddress, r.field, "all-zero key"), l.Protocol, addr)
		}
	}

	if keys.MintA.Equals(keys.MintB) {
		return PoolKeys{}, withPool(newError(KindMalformed, "mint_b", "same mint on both sides"), l.Protocol, addr)
	}
	if keys.VaultA.Equals(keys.VaultB) {
		return PoolKeys{}, withPool(newError(KindMalformed, "vault_b", "same vault on both sides"), l.Protocol, addr)
	}

	fee, err := l.feeBps(data)
	if err != nil {
		return PoolKeys{}, withPool(err, l.Protocol, addr)
	}
	keys.FeeBps = fee

	return keys, nil
}

// feeBps converts every fee fraction to basis points (floor) and sums them.
func (l Layout) feeBps(data []byte) (uint64, error) {
	if len(l.Fees) == 0 {
		return l.FixedFeeBps, nil
	}

	var total uint64
	for i, f := range l.Fees {
		num, err := readUint(data, f.NumeratorOffset, f.NumeratorSize)
		if err != nil {
			return 0, &DecodeError{Kind: KindMalformed, Field: "fee", Err: err}
		}
		den := f.Denominator
		if f.DenominatorOffset != absent {
			if den, err = readUint(data, f.DenominatorOffset, 8); err != nil {
				return 0, &DecodeError{Kind: KindMalformed, Field: "fee", Err: err}
			}
		}
		if den == 0 {
			return 0, newError(KindMalformed, "fee", "fraction %d has zero denominator", i)
		}
		if num >= den {
			return 0, newError(KindMalformed, "fee", "fraction %d is %d/%d", i, num, den)
		}
		total += mulDiv(num, 10_000, den)
	}

	if total >= 10_000 {
		return 0, newError(KindMalformed, "fee", "total fee %d bps", total)
	}
	return total, nil
}

// mulDiv returns floor(a*b/den) using a 128-bit intermediate. The quotient
// must fit in 64 bits.
func mulDiv(a, b, den uint64) uint64 {
	hi, lo := bits.Mul64(a, b)
	q, _ := bits.Div64(hi, lo, den)
	return q
}

func readKey(data []byte, off int) domain.Address {
	key, _ := domain.AddressFromBytes(data[off : off+domain.AddressLength])
	return key
}

func readUint(data []byte, off, size int) (uint64, error) {
	if off < 0 || off+size > len(data) {
		return 0, fmt.Errorf("read %d bytes at %d: buffer is %d bytes", size, off, len(data))
	}
	dec := bin.NewBinDecoder(data[off : off+size])
	switch size {
	case 1:
		v, err := dec.ReadUint8()
		return uint64(v), err
	case 2:
		v, err := dec.ReadUint16(bin.LE)
		return uint64(v), err
	case 4:
		v, err := dec.ReadUint32(bin.LE)
		return uint64(v), err
	case 8:
		return dec.ReadUint64(bin.LE)
	}
	return 0, fmt.Errorf("unsupported integer size %d", size)
}
