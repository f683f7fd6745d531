package solana

import "context"

// RPCClient defines the Solana RPC HTTP methods used to read pool and vault
// accounts.
type RPCClient interface {
	// GetAccountInfo retrieves one account. Returns nil if it does not exist.
	GetAccountInfo(ctx context.Context, pubkey string) (*AccountInfo, error)

	// GetMultipleAccounts retrieves up to MaxMultipleAccounts accounts in one
	// call. The result has one entry per key, nil for missing accounts.
	GetMultipleAccounts(ctx context.Context, pubkeys []string) ([]*AccountInfo, error)

	// GetProgramAccounts lists the accounts owned by a program.
	GetProgramAccounts(ctx context.Context, program string, opts *ProgramAccountsOpts) ([]KeyedAccount, error)

	// GetSlot retrieves the current slot.
	GetSlot(ctx context.Context) (uint64, error)
}
