package decoder

import (
	"errors"
	"fmt"

	"solana-arb-engine/internal/domain"
)

// Kind classifies why an account failed to decode.
type Kind string

const (
	KindTooShort              Kind = "too_short"
	KindInvalidProgramOwner   Kind = "invalid_program_owner"
	KindDefaultAddress        Kind = "default_address"
	KindUnreadableReserve     Kind = "unreadable_reserve"
	KindImplausibleRatio      Kind = "implausible_ratio"
	KindBelowMinimumLiquidity Kind = "below_minimum_liquidity"
	KindMalformed             Kind = "malformed"
)

// String returns the string representation of Kind.
func (k Kind) String() string {
	return string(k)
}

// DecodeError describes a rejected account. Field names the offending layout
// field when one applies ("mint_a", "vault_b", "fee", ...).
type DecodeError struct {
	Kind     Kind
	Protocol domain.Protocol
	Address  domain.Address
	Field    string
	Detail   string
	Err      error
}

// Sentinels for errors.Is matching on the kind alone.
var (
	ErrTooShort              = &DecodeError{Kind: KindTooShort}
	ErrInvalidProgramOwner   = &DecodeError{Kind: KindInvalidProgramOwner}
	ErrDefaultAddress        = &DecodeError{Kind: KindDefaultAddress}
	ErrUnreadableReserve     = &DecodeError{Kind: KindUnreadableReserve}
	ErrImplausibleRatio      = &DecodeError{Kind: KindImplausibleRatio}
	ErrBelowMinimumLiquidity = &DecodeError{Kind: KindBelowMinimumLiquidity}
	ErrMalformed             = &DecodeError{Kind: KindMalformed}
)

func (e *DecodeError) Error() string {
	msg := string(e.Kind)
	if e.Protocol != "" {
		msg = fmt.Sprintf("%s %s", e.Protocol, msg)
	}
	if !e.Address.IsZero() {
		msg = fmt.Sprintf("%s %s", msg, e.Address)
	}
	if e.Field != "" {
		msg = fmt.Sprintf("%s [%s]", msg, e.Field)
	}
	if e.Detail != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Detail)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Is matches any DecodeError of the same kind.
func (e *DecodeError) Is(target error) bool {
	t, ok := target.(*DecodeError)
	return ok && t.Kind == e.Kind
}

// KindOf returns the kind of the outermost DecodeError in err's chain.
func KindOf(err error) (Kind, bool) {
	var de *DecodeError
	if errors.As(err, &de) {
		return de.Kind, true
	}
	return "", false
}

func newError(kind Kind, field, format string, args ...any) *DecodeError {
	return &DecodeError{Kind: kind, Field: field, Detail: fmt.Sprintf(format, args...)}
}

// withPool stamps protocol and address onto a decode error, wrapping plain errors as Malformed.
func withPool(err error, protocol domain.Protocol, addr domain.Address) error {
	if err == nil {
		return nil
	}
	var de *DecodeError
	if !errors.As(err, &de) {
		return &DecodeError{Kind: KindMalformed, Protocol: protocol, Address: addr, Err: err}
	}
	out := *de
	if out.Protocol == "" {
		out.Protocol = protocol
	}
	if out.Address.IsZero() {
		out.Address = addr
	}
	return &out
}
