package idhash

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"

	"solana-arb-engine/internal/domain"
)

// ComputeOpportunityID computes a deterministic opportunity_id using SHA256.
// Formula: SHA256(route_key|amount_in|slot_1,...,slot_n|updated_1,...,updated_n)
// Returns base58-encoded hash. The pool slots and decode times tie the ID to
// the pool snapshot the opportunity was evaluated against.
func ComputeOpportunityID(routeKey string, amountIn uint64, pools []*domain.PoolState) string {
	slots := make([]string, len(pools))
	updated := make([]string, len(pools))
	for i, p := range pools {
		slots[i] = fmt.Sprintf("%d", p.Slot)
		updated[i] = fmt.Sprintf("%d", p.LastUpdated)
	}

	data := fmt.Sprintf("%s|%d|%s|%s",
		routeKey,
		amountIn,
		strings.Join(slots, ","),
		strings.Join(updated, ","),
	)

	hash := sha256.Sum256([]byte(data))
	return base58.Encode(hash[:])
}
