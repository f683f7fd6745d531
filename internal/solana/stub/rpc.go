// Package stub provides an in-memory solana.RPCClient for tests.
package stub

import (
	"context"
	"errors"
	"sort"
	"sync"

	"solana-arb-engine/internal/solana"
)

// ErrUnavailable is returned by every call after Fail.
var ErrUnavailable = errors.New("stub: rpc unavailable")

// RPCClient implements solana.RPCClient over maps of accounts.
type RPCClient struct {
	mu       sync.RWMutex
	accounts map[string]*solana.AccountInfo
	slot     uint64
	failing  map[string]bool // pubkeys whose batch calls fail
	down     bool
	calls    map[string]int
}

// NewRPCClient creates a new stub RPC client.
func NewRPCClient() *RPCClient {
	return &RPCClient{
		accounts: make(map[string]*solana.AccountInfo),
		failing:  make(map[string]bool),
		calls:    make(map[string]int),
	}
}

// SetAccount stores an account and advances the slot to the account's slot.
func (c *RPCClient) SetAccount(pubkey string, info solana.AccountInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := info
	cp.Data = append([]byte(nil), info.Data...)
	c.accounts[pubkey] = &cp
	if info.Slot > c.slot {
		c.slot = info.Slot
	}
}

// DeleteAccount removes an account.
func (c *RPCClient) DeleteAccount(pubkey string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.accounts, pubkey)
}

// FailKey makes every getMultipleAccounts call that includes pubkey fail.
func (c *RPCClient) FailKey(pubkey string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failing[pubkey] = true
}

// Fail makes every call fail with ErrUnavailable until Recover.
func (c *RPCClient) Fail() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.down = true
}

// Recover undoes Fail.
func (c *RPCClient) Recover() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.down = false
}

// CallCount returns how often method was called.
func (c *RPCClient) CallCount(method string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.calls[method]
}

func (c *RPCClient) enter(ctx context.Context, method string) error {
	c.calls[method]++
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.down {
		return ErrUnavailable
	}
	return nil
}

func (c *RPCClient) get(pubkey string) *solana.AccountInfo {
	info, ok := c.accounts[pubkey]
	if !ok {
		return nil
	}
	cp := *info
	cp.Data = append([]byte(nil), info.Data...)
	return &cp
}

// GetAccountInfo returns the stored account or nil.
func (c *RPCClient) GetAccountInfo(ctx context.Context, pubkey string) (*solana.AccountInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter(ctx, "getAccountInfo"); err != nil {
		return nil, err
	}
	return c.get(pubkey), nil
}

// GetMultipleAccounts returns one entry per key, nil for missing accounts.
func (c *RPCClient) GetMultipleAccounts(ctx context.Context, pubkeys []string) ([]*solana.AccountInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter(ctx, "getMultipleAccounts"); err != nil {
		return nil, err
	}
	if len(pubkeys) > solana.MaxMultipleAccounts {
		return nil, errors.New("stub: too many keys")
	}
	infos := make([]*solana.AccountInfo, len(pubkeys))
	for i, k := range pubkeys {
		if c.failing[k] {
			return nil, ErrUnavailable
		}
		infos[i] = c.get(k)
	}
	return infos, nil
}

// GetProgramAccounts returns the stored accounts owned by program, sorted
// by pubkey.
func (c *RPCClient) GetProgramAccounts(ctx context.Context, program string, opts *solana.ProgramAccountsOpts) ([]solana.KeyedAccount, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter(ctx, "getProgramAccounts"); err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(c.accounts))
	for k, info := range c.accounts {
		if info.Owner != program {
			continue
		}
		if opts != nil && opts.DataSize > 0 && uint64(len(info.Data)) != opts.DataSize {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	if opts != nil && opts.Limit > 0 && len(keys) > opts.Limit {
		keys = keys[:opts.Limit]
	}
	out := make([]solana.KeyedAccount, len(keys))
	for i, k := range keys {
		out[i] = solana.KeyedAccount{Pubkey: k, Account: *c.get(k)}
	}
	return out, nil
}

// GetSlot returns the highest slot of any stored account.
func (c *RPCClient) GetSlot(ctx context.Context) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter(ctx, "getSlot"); err != nil {
		return 0, err
	}
	return c.slot, nil
}

var _ solana.RPCClient = (*RPCClient)(nil)
