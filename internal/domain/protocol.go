package domain

import (
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
)

// Protocol identifies a supported DEX pool family. The set is closed: every
// value has a byte layout and fee convention known at build time.
type Protocol string

const (
	ProtocolRaydium   Protocol = "raydium"
	ProtocolOrca      Protocol = "orca"
	ProtocolWhirlpool Protocol = "whirlpool"
	ProtocolSerum     Protocol = "serum"
)

// Protocols lists every supported protocol in a stable order.
var Protocols = []Protocol{
	ProtocolRaydium,
	ProtocolOrca,
	ProtocolWhirlpool,
	ProtocolSerum,
}

// Owner programs of the supported pool accounts.
var (
	RaydiumAMMV4Program  = solana.MustPublicKeyFromBase58("675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8")
	OrcaTokenSwapProgram = solana.MustPublicKeyFromBase58("9W959DqEETiGZocYWCQPaJ6sBmUzgfxXfqGeTEdp3aQP")
	OrcaWhirlpoolProgram = solana.MustPublicKeyFromBase58("whirLbMiicVdio4qvUfM5KAg6Ct8VwpYzGff3uctyCc")
	SerumDEXV3Program    = solana.MustPublicKeyFromBase58("9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin")
)

// String returns the string representation of Protocol.
func (p Protocol) String() string {
	return string(p)
}

// IsValid checks if the protocol is one of the supported values.
func (p Protocol) IsValid() bool {
	switch p {
	case ProtocolRaydium, ProtocolOrca, ProtocolWhirlpool, ProtocolSerum:
		return true
	}
	return false
}

// ParseProtocol parses a protocol name case-insensitively.
func ParseProtocol(s string) (Protocol, error) {
	p := Protocol(strings.ToLower(strings.TrimSpace(s)))
	if !p.IsValid() {
		return "", fmt.Errorf("unknown protocol %q", s)
	}
	return p, nil
}

// ProgramID returns the owner program of the protocol's pool accounts.
func (p Protocol) ProgramID() Address {
	switch p {
	case ProtocolRaydium:
		return RaydiumAMMV4Program
	case ProtocolOrca:
		return OrcaTokenSwapProgram
	case ProtocolWhirlpool:
		return OrcaWhirlpoolProgram
	case ProtocolSerum:
		return SerumDEXV3Program
	}
	return ZeroAddress
}
