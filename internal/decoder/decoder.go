package decoder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"solana-arb-engine/internal/domain"
)

// AccountSource supplies raw ledger accounts. Retry, timeout and rate limit
// policy belong to the implementation.
type AccountSource interface {
	// FetchAccount returns one account or domain.ErrAccountNotFound.
	FetchAccount(ctx context.Context, addr domain.Address) (*domain.Account, error)
	// FetchAccountsBatch returns one result per address, in order. Misses
	// and per-address failures are reported in the results, not as an error.
	FetchAccountsBatch(ctx context.Context, addrs []domain.Address) ([]domain.FetchResult, error)
}

// Config holds the validation thresholds applied to every decoded pool.
type Config struct {
	MinLiquidity    uint64  // floor for both reserves
	MinTokenBalance uint64  // floor for a single vault balance
	RatioBandMin    float64 // reserve_a / reserve_b lower bound
	RatioBandMax    float64 // reserve_a / reserve_b upper bound
	// RequireProgramDerivedVaults rejects vaults whose authority is an
	// on-curve key instead of a program derived address.
	RequireProgramDerivedVaults bool
}

// DefaultConfig returns the default decoder thresholds.
func DefaultConfig() Config {
	return Config{
		MinLiquidity:                5_000_000,
		MinTokenBalance:             DefaultMinTokenBalance,
		RatioBandMin:                1e-10,
		RatioBandMax:                1e10,
		RequireProgramDerivedVaults: true,
	}
}

// Validate checks the thresholds for consistency.
func (c Config) Validate() error {
	if c.RatioBandMin <= 0 || c.RatioBandMax <= c.RatioBandMin {
		return fmt.Errorf("decoder: invalid ratio band [%g, %g]", c.RatioBandMin, c.RatioBandMax)
	}
	return nil
}

// Decoder turns raw pool accounts into validated PoolStates. Reserves are
// always read from the vault token accounts through the AccountSource.
type Decoder struct {
	registry *Registry
	source   AccountSource
	cfg      Config
	now      func() time.Time

	concurrency int
}

// Option configures a Decoder.
type Option func(*Decoder)

// WithClock overrides the clock stamped into PoolState.LastUpdated.
func WithClock(now func() time.Time) Option {
	return func(d *Decoder) {
		d.now = now
	}
}

// New creates a Decoder.
func New(registry *Registry, source AccountSource, cfg Config, opts ...Option) (*Decoder, error) {
	if registry == nil {
		return nil, errors.New("decoder: registry is required")
	}
	if source == nil {
		return nil, errors.New("decoder: account source is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	d := &Decoder{
		registry: registry,
		source:   source,
		cfg:      cfg,
		now:      time.Now,

		concurrency: defaultConcurrency,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Registry returns the layout registry used by the decoder.
func (d *Decoder) Registry() *Registry {
	return d.registry
}

// Decode decodes a pool account, picking the layout from its owner program.
func (d *Decoder) Decode(ctx context.Context, acct domain.Account) (*domain.PoolState, error) {
	layout, ok := d.registry.Lookup(acct.Owner)
	if !ok {
		return nil, &DecodeError{
			Kind:    KindInvalidProgramOwner,
			Address: acct.Address,
			Field:   "owner",
			Detail:  fmt.Sprintf("program %s is not registered", acct.Owner),
		}
	}
	return d.decode(ctx, layout, acct)
}

// DecodeAs decodes a pool account as the given protocol. The account must
// still be owned by a program registered for that protocol.
func (d *Decoder) DecodeAs(ctx context.Context, protocol domain.Protocol, acct domain.Account) (*domain.PoolState, error) {
	layout, ok := d.registry.Lookup(acct.Owner)
	if !ok || layout.Protocol != protocol {
		return nil, &DecodeError{
			Kind:     KindInvalidProgramOwner,
			Protocol: protocol,
			Address:  acct.Address,
			Field:    "owner",
			Detail:   fmt.Sprintf("program %s does not own %s pools", acct.Owner, protocol),
		}
	}
	return d.decode(ctx, layout, acct)
}

func (d *Decoder) decode(ctx context.Context, layout Layout, acct domain.Account) (*domain.PoolState, error) {
	keys, err := layout.Extract(acct.Address, acct.Data)
	if err != nil {
		return nil, err
	}

	results, err := d.source.FetchAccountsBatch(ctx, []domain.Address{keys.VaultA, keys.VaultB})
	if err != nil {
		return nil, &DecodeError{
			Kind:     KindUnreadableReserve,
			Protocol: keys.Protocol,
			Address:  keys.Address,
			Field:    "vaults",
			Err:      err,
		}
	}
	if len(results) != 2 {
		return nil, &DecodeError{
			Kind:     KindUnreadableReserve,
			Protocol: keys.Protocol,
			Address:  keys.Address,
			Field:    "vaults",
			Detail:   fmt.Sprintf("source returned %d results for 2 vaults", len(results)),
		}
	}

	return d.Assemble(keys, acct.Slot, results[0], results[1])
}

// Assemble builds a PoolState from extracted keys and the fetched vault
// accounts. It performs no I/O.
func (d *Decoder) Assemble(keys PoolKeys, poolSlot uint64, vaultA, vaultB domain.FetchResult) (*domain.PoolState, error) {
	balA, slotA, err := d.resolveVault("vault_a", keys.VaultA, keys.MintA, vaultA)
	if err != nil {
		return nil, withPool(err, keys.Protocol, keys.Address)
	}
	balB, slotB, err := d.resolveVault("vault_b", keys.VaultB, keys.MintB, vaultB)
	if err != nil {
		return nil, withPool(err, keys.Protocol, keys.Address)
	}

	if err := d.checkReserves(balA.Amount, balB.Amount); err != nil {
		return nil, withPool(err, keys.Protocol, keys.Address)
	}

	return &domain.PoolState{
		Address:       keys.Address,
		Protocol:      keys.Protocol,
		TokenAMint:    keys.MintA,
		TokenBMint:    keys.MintB,
		TokenAVault:   keys.VaultA,
		TokenBVault:   keys.VaultB,
		LPMint:        keys.LPMint,
		TokenAReserve: balA.Amount,
		TokenBReserve: balB.Amount,
		FeeBps:        keys.FeeBps,
		Slot:          max(poolSlot, slotA, slotB),
		LastUpdated:   d.now().UnixMilli(),
	}, nil
}

func (d *Decoder) resolveVault(field string, vault, wantMint domain.Address, res domain.FetchResult) (TokenBalance, uint64, error) {
	if res.Err != nil || res.Account == nil {
		err := res.Err
		if err == nil {
			err = domain.ErrAccountNotFound
		}
		return TokenBalance{}, 0, &DecodeError{Kind: KindUnreadableReserve, Field: field, Detail: vault.String(), Err: err}
	}
	if !res.Account.Address.IsZero() && !res.Account.Address.Equals(vault) {
		return TokenBalance{}, 0, newError(KindUnreadableReserve, field,
			"source returned account %s for vault %s", res.Account.Address, vault)
	}
	if !domain.IsOwnedByTokenProgram(res.Account.Owner) {
		return TokenBalance{}, 0, newError(KindInvalidProgramOwner, field,
			"vault owned by %s, not a token program", res.Account.Owner)
	}

	bal, err := DecodeTokenBalance(res.Account.Data, d.cfg.MinTokenBalance)
	if err != nil {
		if kind, _ := KindOf(err); kind == KindBelowMinimumLiquidity {
			return TokenBalance{}, 0, &DecodeError{Kind: KindBelowMinimumLiquidity, Field: field, Err: err}
		}
		return TokenBalance{}, 0, &DecodeError{Kind: KindUnreadableReserve, Field: field, Err: err}
	}
	if !bal.Mint.Equals(wantMint) {
		return TokenBalance{}, 0, newError(KindUnreadableReserve, field,
			"vault mint %s does not match pool mint %s", bal.Mint, wantMint)
	}
	if d.cfg.RequireProgramDerivedVaults && !IsProgramDerived(bal.Owner) {
		return TokenBalance{}, 0, newError(KindInvalidProgramOwner, field,
			"vault authority %s is not program derived", bal.Owner)
	}

	return bal, res.Account.Slot, nil
}

func (d *Decoder) checkReserves(a, b uint64) error {
	if a == 0 || b == 0 {
		return newError(KindBelowMinimumLiquidity, "reserves", "empty reserve (%d, %d)", a, b)
	}
	if a < d.cfg.MinLiquidity || b < d.cfg.MinLiquidity {
		return newError(KindBelowMinimumLiquidity, "reserves",
			"reserves (%d, %d) below %d", a, b, d.cfg.MinLiquidity)
	}
	ratio := float64(a) / float64(b)
	if ratio < d.cfg.RatioBandMin || ratio > d.cfg.RatioBandMax {
		return newError(KindImplausibleRatio, "reserves",
			"ratio %g outside [%g, %g]", ratio, d.cfg.RatioBandMin, d.cfg.RatioBandMax)
	}
	return nil
}
