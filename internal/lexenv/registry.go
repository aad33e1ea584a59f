package lexenv

import (
	"slices"
	"sync"

	"envkit/internal/source"
	"envkit/internal/tree"
)

type namedEntry struct {
	env  EnvID
	unit tree.UnitID
}

// Registration is a pending (name, env) pair published by a unit.
type Registration struct {
	Name string
	Env  EnvID
}

// ForeignAssoc is an association a unit injects into an environment it does
// not own, addressed by the environment's qualified name.
type ForeignAssoc struct {
	Name  string
	Assoc Association
}

// Registry maps qualified names to environments across units. Several
// environments may share a name (declaration and body); they are kept in
// registration order.
type Registry struct {
	mu      sync.RWMutex
	entries map[string][]namedEntry
	foreign map[string][]Association
	byUnit  map[tree.UnitID]map[string]struct{}
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string][]namedEntry),
		foreign: make(map[string][]Association),
		byUnit:  make(map[tree.UnitID]map[string]struct{}),
	}
}

// Register adds env under name on behalf of unit. Empty names never register.
func (r *Registry) Register(name string, env EnvID, unit tree.UnitID) bool {
	if name == "" || !env.IsValid() {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.register(name, env, unit)
}

func (r *Registry) register(name string, env EnvID, unit tree.UnitID) bool {
	if name == "" || !env.IsValid() {
		return false
	}
	for _, e := range r.entries[name] {
		if e.env == env {
			return false
		}
	}
	r.entries[name] = append(r.entries[name], namedEntry{env: env, unit: unit})
	r.touch(unit, name)
	return true
}

func (r *Registry) touch(unit tree.UnitID, name string) {
	set := r.byUnit[unit]
	if set == nil {
		set = make(map[string]struct{})
		r.byUnit[unit] = set
	}
	set[name] = struct{}{}
}

// AddForeign injects assoc into the environment(s) registered under name. The
// association is kept even while no env is registered under name yet.
func (r *Registry) AddForeign(name string, assoc Association) bool {
	if name == "" {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.addForeign(name, assoc)
}

func (r *Registry) addForeign(name string, assoc Association) bool {
	for _, a := range r.foreign[name] {
		if a.Symbol == assoc.Symbol && a.Node == assoc.Node {
			return false
		}
	}
	r.foreign[name] = append(r.foreign[name], assoc)
	r.touch(assoc.Unit, name)
	return true
}

// Publish applies a unit's registrations and foreign associations in one
// critical section, so concurrent lookups see all of them or none.
func (r *Registry) Publish(unit tree.UnitID, regs []Registration, foreign []ForeignAssoc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, reg := range regs {
		r.register(reg.Name, reg.Env, unit)
	}
	for _, f := range foreign {
		if f.Name != "" {
			r.addForeign(f.Name, f.Assoc)
		}
	}
}

// Lookup returns the environments registered under name.
func (r *Registry) Lookup(name string) []EnvID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entries := r.entries[name]
	if len(entries) == 0 {
		return nil
	}
	out := make([]EnvID, len(entries))
	for i, e := range entries {
		out[i] = e.env
	}
	return out
}

// Has reports whether any env is registered under name.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries[name]) > 0
}

// Foreign returns the foreign associations of symbol injected under name.
func (r *Registry) Foreign(name string, symbol source.StringID) []Association {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Association
	for _, a := range r.foreign[name] {
		if a.Symbol == symbol {
			out = append(out, a)
		}
	}
	return out
}

// UnregisterUnit removes exactly the registrations and foreign associations
// unit added. Entries of other units under the same names survive.
func (r *Registry) UnregisterUnit(unit tree.UnitID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for name := range r.byUnit[unit] {
		entries := r.entries[name]
		kept := entries[:0]
		for _, e := range entries {
			if e.unit == unit {
				removed++
				continue
			}
			kept = append(kept, e)
		}
		if len(kept) == 0 {
			delete(r.entries, name)
		} else {
			r.entries[name] = kept
		}

		foreign := r.foreign[name]
		keptForeign := foreign[:0]
		for _, a := range foreign {
			if a.Unit == unit {
				removed++
				continue
			}
			keptForeign = append(keptForeign, a)
		}
		if len(keptForeign) == 0 {
			delete(r.foreign, name)
		} else {
			r.foreign[name] = keptForeign
		}
	}
	delete(r.byUnit, unit)
	return removed
}

// Names lists every registered name in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
