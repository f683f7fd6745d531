package solana

import (
	"context"
	"fmt"

	"solana-arb-engine/internal/domain"
)

// AccountSource reads raw ledger accounts through an RPCClient. Batches are
// split into getMultipleAccounts calls of at most MaxMultipleAccounts keys;
// a failed chunk fails only its own addresses.
type AccountSource struct {
	client    RPCClient
	batchSize int
}

// SourceOption configures an AccountSource.
type SourceOption func(*AccountSource)

// WithBatchSize caps the keys per getMultipleAccounts call.
func WithBatchSize(n int) SourceOption {
	return func(s *AccountSource) {
		if n > 0 && n <= MaxMultipleAccounts {
			s.batchSize = n
		}
	}
}

// NewAccountSource creates an AccountSource.
func NewAccountSource(client RPCClient, opts ...SourceOption) *AccountSource {
	s := &AccountSource{client: client, batchSize: MaxMultipleAccounts}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FetchAccount returns one account or domain.ErrAccountNotFound.
func (s *AccountSource) FetchAccount(ctx context.Context, addr domain.Address) (*domain.Account, error) {
	info, err := s.client.GetAccountInfo(ctx, addr.String())
	if err != nil {
		return nil, fmt.Errorf("get account %s: %w", addr, err)
	}
	if info == nil {
		return nil, fmt.Errorf("%s: %w", addr, domain.ErrAccountNotFound)
	}
	return toAccount(addr, info)
}

// FetchAccountsBatch returns one result per address, in order. Only a
// cancelled context fails the whole batch.
func (s *AccountSource) FetchAccountsBatch(ctx context.Context, addrs []domain.Address) ([]domain.FetchResult, error) {
	results := make([]domain.FetchResult, len(addrs))
	for i, a := range addrs {
		results[i].Address = a
	}

	for start := 0; start < len(addrs); start += s.batchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := min(start+s.batchSize, len(addrs))

		keys := make([]string, end-start)
		for i, a := range addrs[start:end] {
			keys[i] = a.String()
		}

		infos, err := s.client.GetMultipleAccounts(ctx, keys)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			for i := start; i < end; i++ {
				results[i].Err = fmt.Errorf("get multiple accounts: %w", err)
			}
			continue
		}

		for i, info := range infos {
			r := &results[start+i]
			if info == nil {
				r.Err = domain.ErrAccountNotFound
				continue
			}
			r.Account, r.Err = toAccount(r.Address, info)
		}
	}
	return results, nil
}

// ProgramAccounts lists the accounts owned by program with exactly dataSize
// bytes, at most limit of them when limit is positive.
func (s *AccountSource) ProgramAccounts(ctx context.Context, program domain.Address, dataSize uint64, limit int) ([]*domain.Account, error) {
	keyed, err := s.client.GetProgramAccounts(ctx, program.String(), &ProgramAccountsOpts{DataSize: dataSize, Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("get program accounts %s: %w", program, err)
	}

	accounts := make([]*domain.Account, 0, len(keyed))
	for _, k := range keyed {
		addr, err := domain.ParseAddress(k.Pubkey)
		if err != nil {
			return nil, fmt.Errorf("program account %q: %w", k.Pubkey, err)
		}
		acct, err := toAccount(addr, &k.Account)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, acct)
	}
	return accounts, nil
}

func toAccount(addr domain.Address, info *AccountInfo) (*domain.Account, error) {
	owner, err := domain.ParseAddress(info.Owner)
	if err != nil {
		return nil, fmt.Errorf("account %s owner %q: %w", addr, info.Owner, err)
	}
	return &domain.Account{
		Address:  addr,
		Owner:    owner,
		Data:     info.Data,
		Lamports: info.Lamports,
		Slot:     info.Slot,
	}, nil
}
