package swap

import "fmt"

// CalcKind classifies a rejected swap calculation.
type CalcKind string

const (
	KindUnknownOutputMint CalcKind = "unknown_output_mint"
	KindExcessPriceImpact CalcKind = "excess_price_impact"
	KindPoolDrainGuard    CalcKind = "pool_drain_guard"
	KindInsufficientInput CalcKind = "insufficient_input"
)

// CalcError is returned instead of an output whenever the calculation
// cannot produce a trustworthy amount.
type CalcError struct {
	Kind   CalcKind
	Detail string
}

// Sentinels for errors.Is matching on the kind alone.
var (
	ErrUnknownOutputMint = &CalcError{Kind: KindUnknownOutputMint}
	ErrExcessPriceImpact = &CalcError{Kind: KindExcessPriceImpact}
	ErrPoolDrainGuard    = &CalcError{Kind: KindPoolDrainGuard}
	ErrInsufficientInput = &CalcError{Kind: KindInsufficientInput}
)

func (e *CalcError) Error() string {
	if e.Detail == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

// Is matches any CalcError of the same kind.
func (e *CalcError) Is(target error) bool {
	t, ok := target.(*CalcError)
	return ok && t.Kind == e.Kind
}

func calcError(kind CalcKind, format string, args ...any) *CalcError {
	return &CalcError{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}
