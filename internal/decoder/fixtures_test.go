package decoder

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"testing"
	"time"

	"solana-arb-engine/internal/domain"
)

func key(n byte) domain.Address {
	a, _ := domain.AddressFromBytes(bytes.Repeat([]byte{n}, domain.AddressLength))
	return a
}

// pdaKey returns a deterministic key that is off the ed25519 curve.
func pdaKey(t *testing.T, seed string) domain.Address {
	t.Helper()
	for i := 0; i < 256; i++ {
		h := sha256.Sum256([]byte(fmt.Sprintf("%s-%d", seed, i)))
		a, _ := domain.AddressFromBytes(h[:])
		if IsProgramDerived(a) {
			return a
		}
	}
	t.Fatal("no off-curve key found")
	return domain.ZeroAddress
}

type poolFixture struct {
	layout Layout
	addr   domain.Address
	mintA  domain.Address
	mintB  domain.Address
	vaultA domain.Address
	vaultB domain.Address
	lpMint domain.Address
	// fee numerators/denominators written per layout fee fraction
	feeNum []uint64
	feeDen []uint64
}

func newPoolFixture(l Layout) poolFixture {
	f := poolFixture{
		layout: l,
		addr:   key(1),
		mintA:  key(10),
		mintB:  key(11),
		vaultA: key(20),
		vaultB: key(21),
		lpMint: key(30),
	}
	for _, fee := range l.Fees {
		if fee.DenominatorOffset == absent {
			f.feeNum = append(f.feeNum, 3000)
			f.feeDen = append(f.feeDen, fee.Denominator)
			continue
		}
		f.feeNum = append(f.feeNum, 25)
		f.feeDen = append(f.feeDen, 10_000)
	}
	return f
}

func (f poolFixture) bytes() []byte {
	data := make([]byte, f.layout.MinLength)
	copy(data[f.layout.MintA:], f.mintA[:])
	copy(data[f.layout.MintB:], f.mintB[:])
	copy(data[f.layout.VaultA:], f.vaultA[:])
	copy(data[f.layout.VaultB:], f.vaultB[:])
	if f.layout.LPMint != absent {
		copy(data[f.layout.LPMint:], f.lpMint[:])
	}
	for i, fee := range f.layout.Fees {
		switch fee.NumeratorSize {
		case 2:
			binary.LittleEndian.PutUint16(data[fee.NumeratorOffset:], uint16(f.feeNum[i]))
		case 4:
			binary.LittleEndian.PutUint32(data[fee.NumeratorOffset:], uint32(f.feeNum[i]))
		case 8:
			binary.LittleEndian.PutUint64(data[fee.NumeratorOffset:], f.feeNum[i])
		}
		if fee.DenominatorOffset != absent {
			binary.LittleEndian.PutUint64(data[fee.DenominatorOffset:], f.feeDen[i])
		}
	}
	return data
}

func (f poolFixture) account() domain.Account {
	return domain.Account{
		Address: f.addr,
		Owner:   f.layout.Program,
		Data:    f.bytes(),
		Slot:    100,
	}
}

func tokenAccountBytes(mint, owner domain.Address, amount uint64) []byte {
	data := make([]byte, 165)
	copy(data[tokenAccountMintOffset:], mint[:])
	copy(data[tokenAccountOwnerOffset:], owner[:])
	binary.LittleEndian.PutUint64(data[tokenAccountAmountOffset:], amount)
	data[tokenAccountStateOffset] = tokenAccountStateInitialized
	return data
}

// mapSource is an in-memory AccountSource.
type mapSource struct {
	accounts map[domain.Address]*domain.Account
	err      error
	calls    int
}

func newMapSource() *mapSource {
	return &mapSource{accounts: make(map[domain.Address]*domain.Account)}
}

func (s *mapSource) putVault(addr, mint, authority domain.Address, amount uint64) {
	s.accounts[addr] = &domain.Account{
		Address: addr,
		Owner:   domain.TokenProgramID,
		Data:    tokenAccountBytes(mint, authority, amount),
		Slot:    101,
	}
}

func (s *mapSource) FetchAccount(_ context.Context, addr domain.Address) (*domain.Account, error) {
	if s.err != nil {
		return nil, s.err
	}
	acct, ok := s.accounts[addr]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return acct, nil
}

func (s *mapSource) FetchAccountsBatch(ctx context.Context, addrs []domain.Address) ([]domain.FetchResult, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	out := make([]domain.FetchResult, len(addrs))
	for i, addr := range addrs {
		acct, err := s.FetchAccount(ctx, addr)
		out[i] = domain.FetchResult{Address: addr, Account: acct, Err: err}
	}
	return out, nil
}

var fixedNow = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.MinLiquidity = 1_000
	return cfg
}

func newTestDecoder(t *testing.T, src AccountSource, cfg Config) *Decoder {
	t.Helper()
	d, err := New(DefaultRegistry(), src, cfg, WithClock(func() time.Time { return fixedNow }))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return d
}
