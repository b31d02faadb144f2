// Package domain holds the registry of problem domains DOIN optimizes
// over. A Domain is immutable once registered: it is read by every other
// package (incentive, quorum, poo, coordinator) but never mutated after
// startup.
package domain

import (
	"fmt"
	"sync"

	"github.com/harveybc/doin-core/plugin"
)

// Domain is the immutable descriptor for one problem domain.
type Domain struct {
	ID                string
	Weight            float64 // weight_d, positive real used in the PoO accumulator
	HigherIsBetter    bool
	PerformanceMetric string
	Handle            plugin.Handle
}

// Registry holds every registered Domain for the life of the process.
// Grounded on the teacher's vm.Registry map+mutex shape, generalized from
// TxType-keyed handlers to domain-ID-keyed descriptors.
type Registry struct {
	mu      sync.RWMutex
	domains map[string]Domain
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{domains: make(map[string]Domain)}
}

// Register adds d to the registry. Domains are registered once at startup
// from config.Config.Domains and never removed once referenced by
// chain state; Register panics on a duplicate ID, the same "startup
// misconfiguration, not a runtime condition" stance as vm.Registry.
func (r *Registry) Register(d Domain) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.domains[d.ID]; exists {
		panic(fmt.Sprintf("domain: %q already registered", d.ID))
	}
	r.domains[d.ID] = d
}

// Get returns the Domain with the given ID.
func (r *Registry) Get(id string) (Domain, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.domains[id]
	if !ok {
		return Domain{}, fmt.Errorf("domain: %q not registered", id)
	}
	return d, nil
}

// All returns every registered domain, in no particular order.
func (r *Registry) All() []Domain {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Domain, 0, len(r.domains))
	for _, d := range r.domains {
		out = append(out, d)
	}
	return out
}
