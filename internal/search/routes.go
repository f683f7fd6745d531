package search

import (
	"sort"

	"solana-arb-engine/internal/domain"
)

// sortPools orders pools by address so enumeration is deterministic.
func sortPools(pools []*domain.PoolState) []*domain.PoolState {
	out := append([]*domain.PoolState(nil), pools...)
	sort.Slice(out, func(i, j int) bool {
		return out[i].Address.String() < out[j].Address.String()
	})
	return out
}

type mintFilter map[domain.Address]struct{}

func newMintFilter(mints []domain.Address) mintFilter {
	if len(mints) == 0 {
		return nil
	}
	f := make(mintFilter, len(mints))
	for _, m := range mints {
		f[m] = struct{}{}
	}
	return f
}

// allows reports whether m may be a route's base mint; nil allows all.
func (f mintFilter) allows(m domain.Address) bool {
	if f == nil {
		return true
	}
	_, ok := f[m]
	return ok
}

// DirectRoutes enumerates two-leg cycles between pools trading the same
// pair, in both directions and from both mints of the pair.
func DirectRoutes(pools []*domain.PoolState, baseMints []domain.Address) []domain.Route {
	pools = sortPools(pools)
	filter := newMintFilter(baseMints)

	var routes []domain.Route
	for i := 0; i < len(pools); i++ {
		for j := i + 1; j < len(pools); j++ {
			p, q := pools[i], pools[j]
			if !p.SamePair(q) {
				continue
			}
			for _, base := range []domain.Address{p.TokenAMint, p.TokenBMint} {
				if !filter.allows(base) {
					continue
				}
				x, _ := p.OtherMint(base)
				for _, pair := range [][2]*domain.PoolState{{p, q}, {q, p}} {
					r, err := domain.NewRoute(
						domain.Leg{Pool: pair[0], InputMint: base, OutputMint: x},
						domain.Leg{Pool: pair[1], InputMint: x, OutputMint: base},
					)
					if err == nil {
						routes = append(routes, r)
					}
				}
			}
		}
	}
	return routes
}

// TriangularRoutes enumerates three-leg cycles a -> b -> c -> a over three
// distinct pools. Each directed cycle is produced once per base mint.
func TriangularRoutes(pools []*domain.PoolState, baseMints []domain.Address) []domain.Route {
	pools = sortPools(pools)
	filter := newMintFilter(baseMints)

	byMint := make(map[domain.Address][]*domain.PoolState)
	for _, p := range pools {
		byMint[p.TokenAMint] = append(byMint[p.TokenAMint], p)
		byMint[p.TokenBMint] = append(byMint[p.TokenBMint], p)
	}

	var routes []domain.Route
	for _, p1 := range pools {
		for _, a := range []domain.Address{p1.TokenAMint, p1.TokenBMint} {
			if !filter.allows(a) {
				continue
			}
			b, _ := p1.OtherMint(a)
			for _, p2 := range byMint[b] {
				if p2 == p1 {
					continue
				}
				c, _ := p2.OtherMint(b)
				if c.Equals(a) {
					continue
				}
				for _, p3 := range byMint[c] {
					if p3 == p1 || p3 == p2 || !p3.HasMint(a) {
						continue
					}
					r, err := domain.NewRoute(
						domain.Leg{Pool: p1, InputMint: a, OutputMint: b},
						domain.Leg{Pool: p2, InputMint: b, OutputMint: c},
						domain.Leg{Pool: p3, InputMint: c, OutputMint: a},
					)
					if err == nil {
						routes = append(routes, r)
					}
				}
			}
		}
	}
	return routes
}
