package idhash

import (
	"crypto/sha256"

	"github.com/mr-tron/base58"

	"solana-arb-engine/internal/domain"
)

// ComputeRouteKey computes a deterministic route key using SHA256.
// Formula: SHA256(protocol:pool:in>out|protocol:pool:in>out[|...])
// Returns base58-encoded hash. Two routes through the same pools in the same
// direction always share a key; the reverse direction has a different one.
func ComputeRouteKey(route domain.Route) string {
	hash := sha256.Sum256([]byte(route.Canonical()))
	return base58.Encode(hash[:])
}
