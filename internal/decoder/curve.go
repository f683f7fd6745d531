package decoder

import (
	"filippo.io/edwards25519"

	"solana-arb-engine/internal/domain"
)

// isOnCurve reports whether the key is a valid ed25519 point, i.e. could be
// the public key of a keypair.
func isOnCurve(key domain.Address) bool {
	_, err := new(edwards25519.Point).SetBytes(key[:])
	return err == nil
}

// IsProgramDerived reports whether key is off the ed25519 curve. Program
// derived addresses have no private key, so only their program can sign.
func IsProgramDerived(key domain.Address) bool {
	return !isOnCurve(key)
}
