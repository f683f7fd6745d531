package domain

// Account is one raw ledger account as returned by an account source.
type Account struct {
	Address  Address
	Owner    Address // owner program
	Data     []byte
	Lamports uint64
	Slot     uint64 // context slot of the read, 0 when unknown
}

// FetchResult is one entry of a batch account read. Exactly one of Account
// and Err is set; missing accounts carry ErrAccountNotFound.
type FetchResult struct {
	Address Address
	Account *Account
	Err     error
}
