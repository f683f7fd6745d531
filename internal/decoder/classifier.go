package decoder

import (
	"fmt"

	"solana-arb-engine/internal/domain"
)

// Candidate is a protocol guess for an account of an unregistered program.
type Candidate struct {
	Protocol domain.Protocol
	Reason   string
	// ExtractErr is the result of running the protocol's layout over the
	// bytes; nil means the keys and fee parse cleanly.
	ExtractErr error
}

// Classification describes an account the registry could not place.
type Classification struct {
	Address       domain.Address
	Program       domain.Address
	DataLength    int
	Registered    bool
	LooksLikePool bool
	KeyWindows    int
	AmountFields  int
	Candidates    []Candidate
}

// Heuristic bounds for the pool-pattern check.
const (
	poolPatternMinLength  = 200
	poolPatternMaxLength  = 10_000
	poolPatternMinKeys    = 3
	poolPatternMinAmounts = 2
	plausibleAmountMin    = 1_000
	plausibleAmountMax    = 1_000_000_000_000_000
	keyWindowMinDistinct  = 16
)

type lengthBand struct {
	min, max int
	protocol domain.Protocol
	reason   string
}

var lengthBands = []lengthBand{
	{300, 400, domain.ProtocolOrca, "size matches a simple constant-product swap account"},
	{600, 800, domain.ProtocolRaydium, "size matches an AMM state account"},
	{3000, 5000, domain.ProtocolSerum, "size matches an order book market"},
}

// Classifier guesses the protocol of accounts owned by unknown programs. Its
// output is only a candidate list: a guess becomes a PoolState only after the
// program is aliased in the Registry and the account passes Decode.
type Classifier struct {
	registry *Registry
}

// NewClassifier creates a classifier over the registry's layouts.
func NewClassifier(registry *Registry) *Classifier {
	return &Classifier{registry: registry}
}

// Classify inspects an account without fetching anything.
func (c *Classifier) Classify(acct domain.Account) Classification {
	cl := Classification{
		Address:    acct.Address,
		Program:    acct.Owner,
		DataLength: len(acct.Data),
	}

	if layout, ok := c.registry.Lookup(acct.Owner); ok {
		cl.Registered = true
		cl.Candidates = []Candidate{c.probe(layout, acct, "registered owner program")}
		cl.KeyWindows, cl.AmountFields = scanPoolPattern(acct.Data)
		cl.LooksLikePool = true
		return cl
	}

	seen := make(map[domain.Protocol]bool)
	for _, layout := range c.registry.Programs() {
		if seen[layout.Protocol] {
			continue
		}
		if len(acct.Data) == layout.MinLength {
			seen[layout.Protocol] = true
			cl.Candidates = append(cl.Candidates, c.probe(layout, acct,
				fmt.Sprintf("size equals %s layout (%d bytes)", layout.Protocol, layout.MinLength)))
		}
	}
	for _, band := range lengthBands {
		if seen[band.protocol] || len(acct.Data) < band.min || len(acct.Data) > band.max {
			continue
		}
		layout, ok := c.registry.Layout(band.protocol)
		if !ok {
			continue
		}
		seen[band.protocol] = true
		cl.Candidates = append(cl.Candidates, c.probe(layout, acct, band.reason))
	}

	cl.KeyWindows, cl.AmountFields = scanPoolPattern(acct.Data)
	cl.LooksLikePool = len(acct.Data) >= poolPatternMinLength &&
		len(acct.Data) <= poolPatternMaxLength &&
		cl.KeyWindows >= poolPatternMinKeys &&
		cl.AmountFields >= poolPatternMinAmounts

	return cl
}

func (c *Classifier) probe(layout Layout, acct domain.Account, reason string) Candidate {
	_, err := layout.Extract(acct.Address, acct.Data)
	return Candidate{Protocol: layout.Protocol, Reason: reason, ExtractErr: err}
}

// scanPoolPattern counts non-overlapping 32-byte windows that look like keys
// and 8-byte aligned little-endian integers in a plausible token amount range.
func scanPoolPattern(data []byte) (keys, amounts int) {
	for off := 0; off+domain.AddressLength <= len(data); {
		if looksLikeKey(data[off : off+domain.AddressLength]) {
			keys++
			off += domain.AddressLength
			continue
		}
		off++
	}
	for off := 0; off+8 <= len(data); off += 8 {
		v, err := readUint(data, off, 8)
		if err == nil && v >= plausibleAmountMin && v <= plausibleAmountMax {
			amounts++
		}
	}
	return keys, amounts
}

func looksLikeKey(window []byte) bool {
	var seen [256]bool
	distinct := 0
	for _, b := range window {
		if !seen[b] {
			seen[b] = true
			distinct++
		}
	}
	return distinct >= keyWindowMinDistinct
}
