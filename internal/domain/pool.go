package domain

// PoolState is a validated, protocol-agnostic view of one AMM pool.
// Values are produced only by the decoder and are never mutated afterwards;
// a refresh replaces the whole value.
type PoolState struct {
	Address       Address
	Protocol      Protocol
	TokenAMint    Address
	TokenBMint    Address
	TokenAVault   Address
	TokenBVault   Address
	LPMint        Address // ZeroAddress when the protocol has no LP mint
	TokenAReserve uint64
	TokenBReserve uint64
	FeeBps        uint64
	Slot          uint64 // highest slot among the pool and vault reads
	LastUpdated   int64  // unix ms of the decode
}

// HasMint reports whether mint is one of the pool's two tokens.
func (p *PoolState) HasMint(mint Address) bool {
	return p.TokenAMint.Equals(mint) || p.TokenBMint.Equals(mint)
}

// OtherMint returns the pool token paired with mint.
func (p *PoolState) OtherMint(mint Address) (Address, bool) {
	switch {
	case p.TokenAMint.Equals(mint):
		return p.TokenBMint, true
	case p.TokenBMint.Equals(mint):
		return p.TokenAMint, true
	}
	return ZeroAddress, false
}

// Reserves returns (reserve_in, reserve_out) for a swap that produces outputMint.
func (p *PoolState) Reserves(outputMint Address) (reserveIn, reserveOut uint64, ok bool) {
	switch {
	case p.TokenBMint.Equals(outputMint):
		return p.TokenAReserve, p.TokenBReserve, true
	case p.TokenAMint.Equals(outputMint):
		return p.TokenBReserve, p.TokenAReserve, true
	}
	return 0, 0, false
}

// MinReserve returns the smaller of the two reserves.
func (p *PoolState) MinReserve() uint64 {
	if p.TokenAReserve < p.TokenBReserve {
		return p.TokenAReserve
	}
	return p.TokenBReserve
}

// Price returns the spot price of token A in units of token B.
func (p *PoolState) Price() float64 {
	if p.TokenAReserve == 0 {
		return 0
	}
	return float64(p.TokenBReserve) / float64(p.TokenAReserve)
}

// SamePair reports whether both pools trade the same unordered mint pair.
func (p *PoolState) SamePair(other *PoolState) bool {
	return p.HasMint(other.TokenAMint) && p.HasMint(other.TokenBMint)
}
