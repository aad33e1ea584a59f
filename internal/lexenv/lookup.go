package lexenv

import (
	"envkit/internal/source"
	"envkit/internal/tree"
)

// Position is a point inside a given unit.
type Position struct {
	Unit tree.UnitID
	At   source.Point
}

// LookupOptions tunes one lookup.
type LookupOptions struct {
	Filter Filter
	// Local restricts the lookup to the start environment.
	Local bool
	// Sequential hides declarations of the same unit that start after the
	// given position.
	Sequential *Position
}

// Hooks connect the lookup algorithm to the engine.
type Hooks interface {
	// EnsureNamed is called before a named environment is read. It may
	// populate other units before returning.
	EnsureNamed(name string)
	// DynamicAssociations returns the computed associations of a dynamic env.
	DynamicAssociations(env EnvID) []Association
	// SelectParent picks the parent of env among the environments registered
	// under its ParentName. It returns NoEnvID when none fits.
	SelectParent(env EnvID, candidates []EnvID) EnvID
	// NodeRange returns the source range of a declaration node.
	NodeRange(node tree.NodeID) source.Range
}

// Lookuper runs lookups over a store and a registry.
type Lookuper struct {
	Store *Store
	Named *Registry
	Hooks Hooks
}

// Get returns the associations of symbol visible from env: innermost scope
// first, declaration order inside a scope. Each environment is visited at most
// once per call, which breaks cycles introduced by named links.
func (l Lookuper) Get(env EnvID, symbol source.StringID, opts LookupOptions) []Association {
	w := walker{
		l:       l,
		symbol:  symbol,
		opts:    opts,
		visited: make(map[EnvID]struct{}, 8),
		names:   make(map[string]struct{}, 2),
	}
	w.visit(env, !opts.Local)
	return w.out
}

// GetFirst returns the first association Get would yield and how many
// associations the scope providing it holds for symbol. Outer scopes shadowed
// by that one do not count, so a count above one means ambiguity.
func (l Lookuper) GetFirst(env EnvID, symbol source.StringID, opts LookupOptions) (Association, int, bool) {
	w := walker{
		l:       l,
		symbol:  symbol,
		opts:    opts,
		visited: make(map[EnvID]struct{}, 8),
		names:   make(map[string]struct{}, 2),
	}
	w.visit(env, !opts.Local)
	if len(w.out) == 0 {
		return Association{}, 0, false
	}
	n := 0
	for _, scope := range w.scopes {
		if scope == w.scopes[0] {
			n++
		}
	}
	return w.out[0], n, true
}

// ResolveParent returns the effective parent env of id: the static parent, or
// the registry candidate selected by the hooks, or the root env when a named
// parent cannot be found.
func (l Lookuper) ResolveParent(id EnvID) EnvID {
	e, ok := l.Store.Env(id)
	if !ok {
		return NoEnvID
	}
	return l.parentOf(&e)
}

func (l Lookuper) parentOf(e *Env) EnvID {
	if e.ParentName == "" {
		return e.Parent
	}
	if l.Hooks != nil {
		l.Hooks.EnsureNamed(e.ParentName)
	}
	candidates := l.liveCandidates(e.ParentName, e.ID)
	parent := NoEnvID
	if len(candidates) > 0 {
		if l.Hooks != nil {
			parent = l.Hooks.SelectParent(e.ID, candidates)
		} else {
			parent = candidates[0]
		}
	}
	if !parent.IsValid() {
		return l.Store.Root()
	}
	return parent
}

func (l Lookuper) liveCandidates(name string, self EnvID) []EnvID {
	if l.Named == nil {
		return nil
	}
	var out []EnvID
	for _, id := range l.Named.Lookup(name) {
		if id == self {
			continue
		}
		if e, ok := l.Store.Env(id); ok && !e.Dead {
			out = append(out, id)
		}
	}
	return out
}

type walker struct {
	l       Lookuper
	symbol  source.StringID
	opts    LookupOptions
	visited map[EnvID]struct{}
	// declaration and body share a name; foreign entries are read once
	names map[string]struct{}
	out   []Association
	// scopes[i] is the env whose scan produced out[i]
	scopes []EnvID
	cur    EnvID
}

func (w *walker) visit(id EnvID, recursive bool) {
	for id.IsValid() {
		if _, seen := w.visited[id]; seen {
			return
		}
		w.visited[id] = struct{}{}
		e, ok := w.l.Store.Env(id)
		if !ok || e.Dead {
			return
		}
		w.collectLocal(&e)
		if !recursive {
			return
		}
		for _, ref := range e.Refs {
			w.visitRef(ref)
		}
		for _, name := range e.RefNames {
			if w.l.Hooks != nil {
				w.l.Hooks.EnsureNamed(name)
			}
			for _, ref := range w.l.liveCandidates(name, e.ID) {
				w.visitRef(ref)
			}
		}
		if !e.Transitive {
			return
		}
		id = w.l.parentOf(&e)
	}
}

func (w *walker) visitRef(id EnvID) {
	if _, seen := w.visited[id]; seen {
		return
	}
	w.visited[id] = struct{}{}
	if e, ok := w.l.Store.Env(id); ok && !e.Dead {
		w.collectLocal(&e)
	}
}

func (w *walker) collectLocal(e *Env) {
	w.cur = e.ID
	if e.Name != "" && w.l.Hooks != nil {
		w.l.Hooks.EnsureNamed(e.Name)
	}
	w.keep(w.l.Store.Matches(e.ID, w.symbol))
	if _, seen := w.names[e.Name]; e.Name != "" && !seen && w.l.Named != nil {
		w.names[e.Name] = struct{}{}
		w.keep(w.l.Named.Foreign(e.Name, w.symbol))
	}
	if e.Dynamic && w.l.Hooks != nil {
		for _, a := range w.l.Hooks.DynamicAssociations(e.ID) {
			if a.Symbol == w.symbol {
				w.keep([]Association{a})
			}
		}
	}
}

func (w *walker) keep(assocs []Association) {
	for _, a := range assocs {
		if w.opts.Filter != nil && !w.opts.Filter(a) {
			continue
		}
		if seq := w.opts.Sequential; seq != nil && a.Unit == seq.Unit && w.l.Hooks != nil {
			r := w.l.Hooks.NodeRange(a.Node)
			if source.CompareRange(r, seq.At) == source.Before {
				continue
			}
		}
		w.out = append(w.out, a)
		w.scopes = append(w.scopes, w.cur)
	}
}
