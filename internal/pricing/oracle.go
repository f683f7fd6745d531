package pricing

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"solana-arb-engine/internal/domain"
)

// ErrInvalidPrice is returned for prices that are not finite and positive.
var ErrInvalidPrice = errors.New("pricing: price must be finite and positive")

// Oracle reports the current USD price of a mint. ok is false when the price
// is unknown or stale.
type Oracle interface {
	PriceUSD(mint domain.Address) (price float64, ok bool)
}

// Source loads a batch of USD prices.
type Source interface {
	Prices(ctx context.Context) (map[domain.Address]float64, error)
}

// StaticSource is a fixed price list.
type StaticSource map[domain.Address]float64

// Prices implements Source.
func (s StaticSource) Prices(context.Context) (map[domain.Address]float64, error) {
	out := make(map[domain.Address]float64, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out, nil
}

// ParseStatic parses "mint=usd" pairs.
func ParseStatic(pairs []string) (StaticSource, error) {
	src := make(StaticSource, len(pairs))
	for _, pair := range pairs {
		mintStr, priceStr, found := strings.Cut(pair, "=")
		if !found {
			return nil, fmt.Errorf("pricing: %q is not mint=usd", pair)
		}
		mint, err := domain.ParseAddress(strings.TrimSpace(mintStr))
		if err != nil {
			return nil, fmt.Errorf("pricing: mint %q: %w", mintStr, err)
		}
		price, err := strconv.ParseFloat(strings.TrimSpace(priceStr), 64)
		if err != nil {
			return nil, fmt.Errorf("pricing: price %q: %w", priceStr, err)
		}
		if !validPrice(price) {
			return nil, fmt.Errorf("pricing: %s: %w", mint, ErrInvalidPrice)
		}
		src[mint] = price
	}
	return src, nil
}

func validPrice(p float64) bool {
	return p > 0 && !math.IsInf(p, 0) && !math.IsNaN(p)
}

type entry struct {
	price     float64
	updatedAt time.Time
}

// Cache is an Oracle whose entries expire after a TTL. A zero TTL never
// expires entries.
type Cache struct {
	mu      sync.RWMutex
	entries map[domain.Address]entry
	ttl     time.Duration
	now     func() time.Time
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock overrides the cache clock.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// NewCache creates an empty price cache.
func NewCache(ttl time.Duration, opts ...Option) *Cache {
	c := &Cache{
		entries: make(map[domain.Address]entry),
		ttl:     ttl,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Put stores a price observed now.
func (c *Cache) Put(mint domain.Address, price float64) error {
	if !validPrice(price) {
		return ErrInvalidPrice
	}
	c.mu.Lock()
	c.entries[mint] = entry{price: price, updatedAt: c.now()}
	c.mu.Unlock()
	return nil
}

// Refresh loads every price of src. Invalid prices are skipped and counted.
func (c *Cache) Refresh(ctx context.Context, src Source) (skipped int, err error) {
	prices, err := src.Prices(ctx)
	if err != nil {
		return 0, fmt.Errorf("pricing: refresh: %w", err)
	}
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()
	for mint, price := range prices {
		if !validPrice(price) {
			skipped++
			continue
		}
		c.entries[mint] = entry{price: price, updatedAt: now}
	}
	return skipped, nil
}

// PriceUSD implements Oracle.
func (c *Cache) PriceUSD(mint domain.Address) (float64, bool) {
	c.mu.RLock()
	e, ok := c.entries[mint]
	c.mu.RUnlock()
	if !ok {
		return 0, false
	}
	if c.ttl > 0 && c.now().Sub(e.updatedAt) > c.ttl {
		return 0, false
	}
	return e.price, true
}

// Len returns the number of cached prices, fresh or not.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// ValueUSD converts a signed base-unit amount of a token with the given
// decimals to USD.
func ValueUSD(amount int64, decimals uint8, priceUSD float64) decimal.Decimal {
	return decimal.NewFromInt(amount).
		Shift(-int32(decimals)).
		Mul(decimal.NewFromFloat(priceUSD))
}

// ProfitUSD values amount of mint through o. ok is false when o has no
// fresh price for mint.
func ProfitUSD(o Oracle, mint domain.Address, amount int64, decimals uint8) (decimal.Decimal, bool) {
	if o == nil {
		return decimal.Zero, false
	}
	price, ok := o.PriceUSD(mint)
	if !ok {
		return decimal.Zero, false
	}
	return ValueUSD(amount, decimals, price), true
}

// Valuer values base-unit amounts through an Oracle. Mint decimals are
// registered as they become known; WSOL, USDC and USDT are preloaded.
type Valuer struct {
	oracle Oracle

	mu       sync.RWMutex
	decimals map[domain.Address]uint8
}

// NewValuer creates a Valuer on o.
func NewValuer(o Oracle) *Valuer {
	return &Valuer{
		oracle: o,
		decimals: map[domain.Address]uint8{
			domain.WrappedSOLMint: 9,
			domain.USDCMint:       6,
			domain.USDTMint:       6,
		},
	}
}

// SetDecimals records the decimals of a mint.
func (v *Valuer) SetDecimals(mint domain.Address, decimals uint8) {
	v.mu.Lock()
	v.decimals[mint] = decimals
	v.mu.Unlock()
}

// Decimals reports the recorded decimals of a mint.
func (v *Valuer) Decimals(mint domain.Address) (uint8, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	d, ok := v.decimals[mint]
	return d, ok
}

// ValueUSD values amount of mint. ok is false when the decimals or a fresh
// price are unknown.
func (v *Valuer) ValueUSD(mint domain.Address, amount int64) (decimal.Decimal, bool) {
	d, ok := v.Decimals(mint)
	if !ok {
		return decimal.Zero, false
	}
	return ProfitUSD(v.oracle, mint, amount, d)
}

// LamportsIn converts lamports into base units of mint at the current WSOL
// and mint prices, rounding up. WSOL converts one to one. ok is false when
// either price is missing or stale or the mint decimals are unknown.
func (v *Valuer) LamportsIn(mint domain.Address, lamports uint64) (uint64, bool) {
	if mint.Equals(domain.WrappedSOLMint) {
		return lamports, true
	}
	d, ok := v.Decimals(mint)
	if !ok || v.oracle == nil {
		return 0, false
	}
	solUSD, ok := v.oracle.PriceUSD(domain.WrappedSOLMint)
	if !ok {
		return 0, false
	}
	mintUSD, ok := v.oracle.PriceUSD(mint)
	if !ok {
		return 0, false
	}

	units := decimal.NewFromBigInt(new(big.Int).SetUint64(lamports), -9).
		Mul(decimal.NewFromFloat(solUSD)).
		Shift(int32(d)).
		DivRound(decimal.NewFromFloat(mintUSD), 9).
		Ceil()
	n := units.BigInt()
	if !n.IsUint64() {
		return 0, false
	}
	return n.Uint64(), true
}
