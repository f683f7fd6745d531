package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Route validation errors.
var (
	ErrRouteLength   = errors.New("route must have 2 or 3 legs")
	ErrRouteOpen     = errors.New("route does not return to its base mint")
	ErrRouteBroken   = errors.New("leg input does not match previous leg output")
	ErrLegMint       = errors.New("leg mint is not traded by its pool")
	ErrLegSelfSwap   = errors.New("leg input and output mint are equal")
	ErrRoutePoolUsed = errors.New("pool used by more than one leg")
)

// Leg is one swap of a route through a single pool.
type Leg struct {
	Pool       *PoolState
	InputMint  Address
	OutputMint Address
}

// Route is a closed cycle of 2 or 3 swaps that starts and ends in the same
// base mint. Construct with NewRoute; the zero value is not a valid route.
type Route struct {
	legs []Leg
}

// NewRoute validates legs and returns a closed route.
func NewRoute(legs ...Leg) (Route, error) {
	if len(legs) < 2 || len(legs) > 3 {
		return Route{}, ErrRouteLength
	}

	seen := make(map[Address]struct{}, len(legs))
	for i, leg := range legs {
		if leg.Pool == nil {
			return Route{}, fmt.Errorf("leg %d: nil pool", i)
		}
		if leg.InputMint.Equals(leg.OutputMint) {
			return Route{}, fmt.Errorf("leg %d: %w", i, ErrLegSelfSwap)
		}
		if !leg.Pool.HasMint(leg.InputMint) || !leg.Pool.HasMint(leg.OutputMint) {
			return Route{}, fmt.Errorf("leg %d pool %s: %w", i, leg.Pool.Address, ErrLegMint)
		}
		if _, dup := seen[leg.Pool.Address]; dup {
			return Route{}, fmt.Errorf("leg %d pool %s: %w", i, leg.Pool.Address, ErrRoutePoolUsed)
		}
		seen[leg.Pool.Address] = struct{}{}
		if i > 0 && !legs[i-1].OutputMint.Equals(leg.InputMint) {
			return Route{}, fmt.Errorf("leg %d: %w", i, ErrRouteBroken)
		}
	}

	if !legs[len(legs)-1].OutputMint.Equals(legs[0].InputMint) {
		return Route{}, ErrRouteOpen
	}

	return Route{legs: append([]Leg(nil), legs...)}, nil
}

// Legs returns a copy of the route's legs.
func (r Route) Legs() []Leg {
	return append([]Leg(nil), r.legs...)
}

// Leg returns the i-th leg.
func (r Route) Leg(i int) Leg {
	return r.legs[i]
}

// Len returns the number of legs.
func (r Route) Len() int {
	return len(r.legs)
}

// BaseMint returns the mint the route starts and ends in.
func (r Route) BaseMint() Address {
	if len(r.legs) == 0 {
		return ZeroAddress
	}
	return r.legs[0].InputMint
}

// Pools returns the pools of the route in leg order.
func (r Route) Pools() []*PoolState {
	out := make([]*PoolState, len(r.legs))
	for i, leg := range r.legs {
		out[i] = leg.Pool
	}
	return out
}

// Canonical returns the stable textual form used for route keys:
// protocol:pool:input>output per leg, joined with "|".
func (r Route) Canonical() string {
	parts := make([]string, len(r.legs))
	for i, leg := range r.legs {
		parts[i] = fmt.Sprintf("%s:%s:%s>%s",
			leg.Pool.Protocol, leg.Pool.Address, leg.InputMint, leg.OutputMint)
	}
	return strings.Join(parts, "|")
}

// String renders a short human readable form, e.g. "WSOL -raydium-> USDC -orca-> WSOL".
func (r Route) String() string {
	if len(r.legs) == 0 {
		return "<empty route>"
	}
	var b strings.Builder
	b.WriteString(MintLabel(r.legs[0].InputMint))
	for _, leg := range r.legs {
		fmt.Fprintf(&b, " -%s-> %s", leg.Pool.Protocol, MintLabel(leg.OutputMint))
	}
	return b.String()
}
