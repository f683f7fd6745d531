package decoder

import (
	"solana-arb-engine/internal/domain"
)

// SPL token account layout.
const (
	TokenAccountMinLength        = 72
	tokenAccountMintOffset       = 0
	tokenAccountOwnerOffset      = 32
	tokenAccountAmountOffset     = 64
	tokenAccountStateOffset      = 108
	tokenAccountStateInitialized = 1
)

// DefaultMinTokenBalance is the smallest vault balance treated as usable.
const DefaultMinTokenBalance = 100

// TokenBalance is the decoded content of an SPL token account.
type TokenBalance struct {
	Mint   domain.Address
	Owner  domain.Address // account authority, not the owner program
	Amount uint64
	// Initialized is true when the state byte was present and set. Buffers
	// that end before the state byte leave it false without failing.
	Initialized bool
}

// DecodeTokenBalance decodes an SPL token account and rejects zero mints,
// uninitialized accounts and balances below minAmount.
func DecodeTokenBalance(data []byte, minAmount uint64) (TokenBalance, error) {
	if len(data) < TokenAccountMinLength {
		return TokenBalance{}, newError(KindTooShort, "token_account",
			"have %d bytes, want >= %d", len(data), TokenAccountMinLength)
	}

	bal := TokenBalance{
		Mint:  readKey(data, tokenAccountMintOffset),
		Owner: readKey(data, tokenAccountOwnerOffset),
	}
	if bal.Mint.IsZero() {
		return TokenBalance{}, newError(KindDefaultAddress, "token_mint", "all-zero mint")
	}

	amount, err := readUint(data, tokenAccountAmountOffset, 8)
	if err != nil {
		return TokenBalance{}, &DecodeError{Kind: KindMalformed, Field: "token_amount", Err: err}
	}
	bal.Amount = amount

	if len(data) > tokenAccountStateOffset {
		if data[tokenAccountStateOffset] != tokenAccountStateInitialized {
			return TokenBalance{}, newError(KindMalformed, "token_state",
				"state %d is not initialized", data[tokenAccountStateOffset])
		}
		bal.Initialized = true
	}

	if bal.Amount < minAmount {
		return TokenBalance{}, newError(KindBelowMinimumLiquidity, "token_amount",
			"balance %d below %d", bal.Amount, minAmount)
	}

	return bal, nil
}
