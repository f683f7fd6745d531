package decoder

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"solana-arb-engine/internal/domain"
)

// ErrEmptyPoolSet is returned when a batch yields no valid pool at all.
var ErrEmptyPoolSet = errors.New("decoder: pool set decoded to empty")

const defaultConcurrency = 8

// WithConcurrency bounds the number of pools assembled in parallel by DecodeAll.
func WithConcurrency(n int) Option {
	return func(d *Decoder) {
		if n > 0 {
			d.concurrency = n
		}
	}
}

// Failure is one pool dropped from a batch.
type Failure struct {
	Address domain.Address
	Err     error
}

// BatchResult holds the outcome of DecodeAll in input order.
type BatchResult struct {
	Pools    []*domain.PoolState
	Failures []Failure
}

// DecodeAll decodes a set of pool accounts. Vaults of all pools are fetched
// in one batch read. A failing pool is reported in Failures and dropped; the
// call only fails with ErrEmptyPoolSet when no pool survives.
func (d *Decoder) DecodeAll(ctx context.Context, accounts []domain.Account) (*BatchResult, error) {
	keys := make([]PoolKeys, len(accounts))
	errs := make([]error, len(accounts))

	vaults := make([]domain.Address, 0, 2*len(accounts))
	vaultIndex := make([]int, len(accounts)) // position of the account's vault_a in vaults
	for i, acct := range accounts {
		layout, ok := d.registry.Lookup(acct.Owner)
		if !ok {
			errs[i] = &DecodeError{
				Kind:    KindInvalidProgramOwner,
				Address: acct.Address,
				Field:   "owner",
				Detail:  "program " + acct.Owner.String() + " is not registered",
			}
			continue
		}
		k, err := layout.Extract(acct.Address, acct.Data)
		if err != nil {
			errs[i] = err
			continue
		}
		keys[i] = k
		vaultIndex[i] = len(vaults)
		vaults = append(vaults, k.VaultA, k.VaultB)
	}

	var fetched []domain.FetchResult
	if len(vaults) > 0 {
		var err error
		fetched, err = d.source.FetchAccountsBatch(ctx, vaults)
		if err == nil && len(fetched) != len(vaults) {
			err = errors.New("account source returned a short batch")
		}
		if err != nil {
			for i := range accounts {
				if errs[i] == nil {
					errs[i] = &DecodeError{
						Kind:     KindUnreadableReserve,
						Protocol: keys[i].Protocol,
						Address:  keys[i].Address,
						Field:    "vaults",
						Err:      err,
					}
				}
			}
		}
	}

	pools := make([]*domain.PoolState, len(accounts))
	g := new(errgroup.Group)
	g.SetLimit(d.concurrency)
	for i := range accounts {
		if errs[i] != nil {
			continue
		}
		g.Go(func() error {
			j := vaultIndex[i]
			pools[i], errs[i] = d.Assemble(keys[i], accounts[i].Slot, fetched[j], fetched[j+1])
			return nil
		})
	}
	_ = g.Wait()

	res := &BatchResult{}
	for i, acct := range accounts {
		if errs[i] != nil {
			res.Failures = append(res.Failures, Failure{Address: acct.Address, Err: errs[i]})
			continue
		}
		res.Pools = append(res.Pools, pools[i])
	}

	if len(res.Pools) == 0 {
		return res, ErrEmptyPoolSet
	}
	return res, nil
}
