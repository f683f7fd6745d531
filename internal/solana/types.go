package solana

// MaxMultipleAccounts is the getMultipleAccounts key limit of Solana RPC nodes.
const MaxMultipleAccounts = 100

// AccountInfo represents Solana account information with decoded data.
type AccountInfo struct {
	Lamports   uint64
	Owner      string
	Data       []byte
	Executable bool
	RentEpoch  uint64
	Slot       uint64 // context slot of the response
}

// KeyedAccount is one getProgramAccounts entry.
type KeyedAccount struct {
	Pubkey  string
	Account AccountInfo
}

// ProgramAccountsOpts defines optional filters for getProgramAccounts.
type ProgramAccountsOpts struct {
	DataSize uint64 // only accounts with exactly this data length; 0 disables
	Limit    int    // client-side cap on returned accounts; 0 disables
}
