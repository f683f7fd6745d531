package domain

// ReserveSnapshot is one observation of a pool's reserves, recorded on each
// successful decode. Snapshots feed the volatility discount.
type ReserveSnapshot struct {
	Pool        Address
	Protocol    Protocol
	Slot        uint64
	TimestampMs int64
	ReserveA    uint64
	ReserveB    uint64
}

// NewReserveSnapshot captures the reserves of a decoded pool.
func NewReserveSnapshot(p *PoolState) *ReserveSnapshot {
	return &ReserveSnapshot{
		Pool:        p.Address,
		Protocol:    p.Protocol,
		Slot:        p.Slot,
		TimestampMs: p.LastUpdated,
		ReserveA:    p.TokenAReserve,
		ReserveB:    p.TokenBReserve,
	}
}

// Price returns the token A price in token B units, 0 for an empty reserve.
func (s *ReserveSnapshot) Price() float64 {
	if s.ReserveA == 0 {
		return 0
	}
	return float64(s.ReserveB) / float64(s.ReserveA)
}
