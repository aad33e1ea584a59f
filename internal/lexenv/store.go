package lexenv

import (
	"fmt"
	"sync"

	"fortio.org/safecast"

	"envkit/internal/source"
	"envkit/internal/tree"
)

// Env is a lexical environment: a local symbol table plus the links lookups
// follow. The graph formed by Parent, ParentName and Refs may contain cycles.
type Env struct {
	ID         EnvID
	Owner      tree.NodeID
	Unit       tree.UnitID
	Generation uint32
	// Parent is the static parent; ignored when ParentName is set.
	Parent EnvID
	// ParentName is a named parent resolved through the registry at lookup
	// time, so that it follows reparses of the unit providing it.
	ParentName string
	// Transitive lets lookups continue into the parent.
	Transitive bool
	// Name is the qualified name this env is registered under, if any.
	Name string
	// Dynamic environments get their associations from a resolver.
	Dynamic bool
	// Refs and RefNames are referenced environments searched after the local
	// table (use clauses and the like). Only their local contents are visible.
	Refs     []EnvID
	RefNames []string
	// Unresolved is set when ParentName could not be found after population;
	// lookups then fall back to the root env.
	Unresolved bool
	Dead       bool

	table *SymbolTable
}

// EnvSpec describes an environment to create.
type EnvSpec struct {
	Owner      tree.NodeID
	Unit       tree.UnitID
	Generation uint32
	Parent     EnvID
	ParentName string
	Transitive bool
	Dynamic    bool
}

// Store owns the environment graph of every loaded unit. It is safe for
// concurrent use; lookups never observe a half-applied mutation of one env.
type Store struct {
	mu   sync.RWMutex
	envs []*Env
	root EnvID

	byUnit map[tree.UnitID][]EnvID
	// envs not owned by a unit but holding associations it contributed
	touched map[tree.UnitID]map[EnvID]struct{}

	childrenEnv map[tree.NodeID]EnvID
	nodeEnv     map[tree.NodeID]EnvID
	boundNodes  map[tree.UnitID]map[tree.NodeID]struct{}
}

// NewStore creates a store holding only the root environment.
func NewStore() *Store {
	s := &Store{
		envs:        make([]*Env, 1, 64), // index 0 reserved for NoEnvID
		byUnit:      make(map[tree.UnitID][]EnvID),
		touched:     make(map[tree.UnitID]map[EnvID]struct{}),
		childrenEnv: make(map[tree.NodeID]EnvID),
		nodeEnv:     make(map[tree.NodeID]EnvID),
		boundNodes:  make(map[tree.UnitID]map[tree.NodeID]struct{}),
	}
	s.root = s.create(EnvSpec{})
	return s
}

// Root returns the shared root environment.
func (s *Store) Root() EnvID { return s.root }

// Create allocates an environment and returns its ID.
func (s *Store) Create(spec EnvSpec) EnvID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.create(spec)
}

func (s *Store) create(spec EnvSpec) EnvID {
	value, err := safecast.Conv[uint32](len(s.envs))
	if err != nil {
		panic(fmt.Errorf("env arena overflow: %w", err))
	}
	id := EnvID(value)
	s.envs = append(s.envs, &Env{
		ID:         id,
		Owner:      spec.Owner,
		Unit:       spec.Unit,
		Generation: spec.Generation,
		Parent:     spec.Parent,
		ParentName: spec.ParentName,
		Transitive: spec.Transitive,
		Dynamic:    spec.Dynamic,
		table:      NewSymbolTable(),
	})
	if spec.Unit.IsValid() {
		s.byUnit[spec.Unit] = append(s.byUnit[spec.Unit], id)
	}
	return id
}

func (s *Store) get(id EnvID) *Env {
	if !id.IsValid() || int(id) >= len(s.envs) {
		return nil
	}
	return s.envs[id]
}

// Env returns a snapshot of the environment header (links and flags). The
// snapshot does not expose the symbol table.
func (s *Store) Env(id EnvID) (Env, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e := s.get(id)
	if e == nil {
		return Env{}, false
	}
	snap := *e
	snap.table = nil
	snap.Refs = append([]EnvID(nil), e.Refs...)
	snap.RefNames = append([]string(nil), e.RefNames...)
	return snap, true
}

// Len reports the number of environments ever allocated, root included.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.envs) - 1
}

// LocalTable returns a copy of the local symbol table of env.
func (s *Store) LocalTable(id EnvID) *SymbolTable {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e := s.get(id)
	if e == nil || e.Dead {
		return NewSymbolTable()
	}
	return e.table.Clone()
}

// Add registers symbol -> node in env. unit is the contributing unit. Adding
// the same (symbol, node) pair twice is a no-op that returns false.
func (s *Store) Add(id EnvID, symbol source.StringID, node tree.NodeID, unit tree.UnitID, meta Metadata) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.add(id, Association{Symbol: symbol, Node: node, Unit: unit, Meta: meta})
}

// AddAll registers several associations into env atomically.
func (s *Store) AddAll(id EnvID, assocs []Association) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, a := range assocs {
		if s.add(id, a) {
			n++
		}
	}
	return n
}

func (s *Store) add(id EnvID, a Association) bool {
	e := s.get(id)
	if e == nil || e.Dead {
		return false
	}
	if !e.table.Add(a) {
		return false
	}
	if a.Unit.IsValid() && a.Unit != e.Unit {
		set := s.touched[a.Unit]
		if set == nil {
			set = make(map[EnvID]struct{})
			s.touched[a.Unit] = set
		}
		set[id] = struct{}{}
	}
	return true
}

// Matches returns the local associations of symbol in env, in declaration
// order.
func (s *Store) Matches(id EnvID, symbol source.StringID) []Association {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e := s.get(id)
	if e == nil || e.Dead {
		return nil
	}
	return e.table.Get(symbol)
}

// SetParent replaces the static parent of env.
func (s *Store) SetParent(id, parent EnvID) {
	s.mutate(id, func(e *Env) { e.Parent = parent })
}

// SetName records the qualified name env is registered under.
func (s *Store) SetName(id EnvID, name string) {
	s.mutate(id, func(e *Env) { e.Name = name })
}

// SetUnresolved flags env as having an unresolvable named parent.
func (s *Store) SetUnresolved(id EnvID, unresolved bool) {
	s.mutate(id, func(e *Env) { e.Unresolved = unresolved })
}

// AddRef adds a referenced environment.
func (s *Store) AddRef(id, ref EnvID) {
	s.mutate(id, func(e *Env) {
		for _, r := range e.Refs {
			if r == ref {
				return
			}
		}
		e.Refs = append(e.Refs, ref)
	})
}

// AddRefName adds a referenced environment resolved by name at lookup time.
func (s *Store) AddRefName(id EnvID, name string) {
	s.mutate(id, func(e *Env) {
		for _, r := range e.RefNames {
			if r == name {
				return
			}
		}
		e.RefNames = append(e.RefNames, name)
	})
}

func (s *Store) mutate(id EnvID, fn func(*Env)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e := s.get(id); e != nil && !e.Dead {
		fn(e)
	}
}

// BindChildrenEnv records env as the environment node introduces for its
// descendants.
func (s *Store) BindChildrenEnv(unit tree.UnitID, node tree.NodeID, env EnvID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.childrenEnv[node] = env
	s.bind(unit, node)
}

// BindNodeEnv records an override for the environment node itself is visible
// in.
func (s *Store) BindNodeEnv(unit tree.UnitID, node tree.NodeID, env EnvID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodeEnv[node] = env
	s.bind(unit, node)
}

func (s *Store) bind(unit tree.UnitID, node tree.NodeID) {
	set := s.boundNodes[unit]
	if set == nil {
		set = make(map[tree.NodeID]struct{})
		s.boundNodes[unit] = set
	}
	set[node] = struct{}{}
}

// ChildrenEnvOf returns the env node introduces, if any.
func (s *Store) ChildrenEnvOf(node tree.NodeID) (EnvID, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.childrenEnv[node]
	return id, ok
}

// NodeEnvOf returns the node env override of node, if any.
func (s *Store) NodeEnvOf(node tree.NodeID) (EnvID, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.nodeEnv[node]
	return id, ok
}

// UnitEnvs lists the environments owned by unit.
func (s *Store) UnitEnvs(unit tree.UnitID) []EnvID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]EnvID(nil), s.byUnit[unit]...)
}

// DropUnit tombstones every environment owned by unit, forgets its node
// bindings and strips the associations it contributed to other environments.
// Env IDs are never reused.
func (s *Store) DropUnit(unit tree.UnitID) (envs, assocs int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.byUnit[unit] {
		if e := s.get(id); e != nil && !e.Dead {
			e.Dead = true
			e.table = NewSymbolTable()
			e.Refs = nil
			e.RefNames = nil
			envs++
		}
	}
	delete(s.byUnit, unit)
	for id := range s.touched[unit] {
		if e := s.get(id); e != nil && !e.Dead {
			assocs += e.table.RemoveUnit(unit)
		}
	}
	delete(s.touched, unit)
	for node := range s.boundNodes[unit] {
		delete(s.childrenEnv, node)
		delete(s.nodeEnv, node)
	}
	delete(s.boundNodes, unit)
	return envs, assocs
}

// Live lists the IDs of environments that are not tombstoned.
func (s *Store) Live() []EnvID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]EnvID, 0, len(s.envs))
	for _, e := range s.envs[1:] {
		if !e.Dead {
			out = append(out, e.ID)
		}
	}
	return out
}
