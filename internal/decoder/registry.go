package decoder

import (
	"fmt"
	"sort"

	"solana-arb-engine/internal/domain"
)

// Registry maps owner programs to pool layouts. Lookups never guess: an
// account whose owner is not registered has no layout.
type Registry struct {
	byProgram  map[domain.Address]Layout // programID -> layout
	byProtocol map[domain.Protocol]Layout
}

// NewRegistry creates a registry with the given layouts registered.
func NewRegistry(layouts ...Layout) (*Registry, error) {
	r := &Registry{
		byProgram:  make(map[domain.Address]Layout),
		byProtocol: make(map[domain.Protocol]Layout),
	}
	for _, l := range layouts {
		if err := r.Register(l); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// DefaultRegistry returns a registry with every supported protocol.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(DefaultLayouts()...)
	if err != nil {
		panic(fmt.Sprintf("decoder: invalid default layouts: %v", err))
	}
	return r
}

// Register adds a layout. One layout per protocol and per program.
func (r *Registry) Register(l Layout) error {
	if err := l.Validate(); err != nil {
		return err
	}
	if _, dup := r.byProtocol[l.Protocol]; dup {
		return fmt.Errorf("registry: protocol %s already registered", l.Protocol)
	}
	if _, dup := r.byProgram[l.Program]; dup {
		return fmt.Errorf("registry: program %s already registered", l.Program)
	}
	r.byProtocol[l.Protocol] = l
	r.byProgram[l.Program] = l
	return nil
}

// Alias registers an additional owner program for an already registered
// protocol, e.g. a redeployed fork with an identical account layout.
func (r *Registry) Alias(program domain.Address, protocol domain.Protocol) error {
	l, ok := r.byProtocol[protocol]
	if !ok {
		return fmt.Errorf("registry: protocol %s not registered", protocol)
	}
	if _, dup := r.byProgram[program]; dup {
		return fmt.Errorf("registry: program %s already registered", program)
	}
	l.Program = program
	r.byProgram[program] = l
	return nil
}

// Lookup returns the layout for an owner program.
func (r *Registry) Lookup(program domain.Address) (Layout, bool) {
	l, ok := r.byProgram[program]
	return l, ok
}

// Layout returns the layout of a protocol.
func (r *Registry) Layout(protocol domain.Protocol) (Layout, bool) {
	l, ok := r.byProtocol[protocol]
	return l, ok
}

// Programs returns every registered owner program with its protocol,
// sorted by protocol then program for deterministic iteration.
func (r *Registry) Programs() []Layout {
	out := make([]Layout, 0, len(r.byProgram))
	for _, l := range r.byProgram {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Protocol != out[j].Protocol {
			return out[i].Protocol < out[j].Protocol
		}
		return out[i].Program.String() < out[j].Program.String()
	})
	return out
}
