package domain

import (
	"errors"

	"github.com/gagliardetto/solana-go"
)

// Address is a 32-byte ledger account key.
type Address = solana.PublicKey

// AddressLength is the size of an encoded account key in bytes.
const AddressLength = solana.PublicKeyLength

// ZeroAddress is the all-zero sentinel key. It never identifies a real pool,
// mint or vault.
var ZeroAddress Address

// ErrAccountNotFound is reported for an address the ledger has no account for.
var ErrAccountNotFound = errors.New("account not found")

// Well-known program IDs and mints.
var (
	TokenProgramID     = solana.MustPublicKeyFromBase58("TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA")
	Token2022ProgramID = solana.MustPublicKeyFromBase58("TokenzQdBNbLqP5VEhdkAS6EPFLC1PHnBqCXEpPxuEb")

	WrappedSOLMint = solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112")
	USDCMint       = solana.MustPublicKeyFromBase58("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")
	USDTMint       = solana.MustPublicKeyFromBase58("Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB")
)

var mintLabels = map[Address]string{
	WrappedSOLMint: "WSOL",
	USDCMint:       "USDC",
	USDTMint:       "USDT",
}

// ParseAddress parses a base58 encoded account key.
func ParseAddress(s string) (Address, error) {
	return solana.PublicKeyFromBase58(s)
}

// ParseAddresses parses a list of base58 keys, failing on the first invalid one.
func ParseAddresses(values []string) ([]Address, error) {
	out := make([]Address, 0, len(values))
	for _, v := range values {
		addr, err := ParseAddress(v)
		if err != nil {
			return nil, err
		}
		out = append(out, addr)
	}
	return out, nil
}

// AddressFromBytes copies exactly 32 bytes into an Address.
func AddressFromBytes(b []byte) (Address, bool) {
	if len(b) != AddressLength {
		return ZeroAddress, false
	}
	return solana.PublicKeyFromBytes(b), true
}

// IsOwnedByTokenProgram reports whether owner is one of the SPL token programs.
func IsOwnedByTokenProgram(owner Address) bool {
	return owner.Equals(TokenProgramID) || owner.Equals(Token2022ProgramID)
}

// MintLabel returns a short label for a mint: the symbol for well-known mints,
// otherwise the first and last four base58 characters.
func MintLabel(mint Address) string {
	if label, ok := mintLabels[mint]; ok {
		return label
	}
	s := mint.String()
	if len(s) <= 8 {
		return s
	}
	return s[:4] + ".." + s[len(s)-4:]
}
