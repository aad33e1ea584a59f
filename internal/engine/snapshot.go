package engine

import (
	"context"
	"slices"

	"envkit/internal/lexenv"
	"envkit/internal/tree"
)

// SymbolView is one association of an environment snapshot.
type SymbolView struct {
	Name string `json:"name" msgpack:"name"`
	Node string `json:"node" msgpack:"node"`
	Kind string `json:"kind,omitempty" msgpack:"kind,omitempty"`
	Unit string `json:"unit,omitempty" msgpack:"unit,omitempty"`
	Pos  string `json:"pos,omitempty" msgpack:"pos,omitempty"`
}

// EnvView is a serializable picture of one environment.
type EnvView struct {
	ID         uint32       `json:"id" msgpack:"id"`
	Unit       string       `json:"unit,omitempty" msgpack:"unit,omitempty"`
	Owner      string       `json:"owner,omitempty" msgpack:"owner,omitempty"`
	OwnerKind  string       `json:"owner_kind,omitempty" msgpack:"owner_kind,omitempty"`
	Name       string       `json:"name,omitempty" msgpack:"name,omitempty"`
	Parent     uint32       `json:"parent,omitempty" msgpack:"parent,omitempty"`
	ParentName string       `json:"parent_name,omitempty" msgpack:"parent_name,omitempty"`
	Transitive bool         `json:"transitive" msgpack:"transitive"`
	Dynamic    bool         `json:"dynamic,omitempty" msgpack:"dynamic,omitempty"`
	Unresolved bool         `json:"unresolved,omitempty" msgpack:"unresolved,omitempty"`
	Refs       []uint32     `json:"refs,omitempty" msgpack:"refs,omitempty"`
	RefNames   []string     `json:"ref_names,omitempty" msgpack:"ref_names,omitempty"`
	Symbols    []SymbolView `json:"symbols,omitempty" msgpack:"symbols,omitempty"`
}

// Snapshot is the environment graph of every loaded unit.
type Snapshot struct {
	Grammar string    `json:"grammar" msgpack:"grammar"`
	Units   []string  `json:"units" msgpack:"units"`
	Envs    []EnvView `json:"envs" msgpack:"envs"`
	Named   []string  `json:"named" msgpack:"named"`
}

// Snapshot captures the live environment graph. Dynamic environments list
// their computed associations.
func (e *Engine) Snapshot(ctx context.Context) Snapshot {
	ctx, release := e.enter(ctx)
	defer release()
	snap := Snapshot{
		Grammar: e.grammar.Name,
		Units:   e.Units(),
		Named:   e.named.Names(),
	}
	look := e.lookuper(ctx)
	for _, id := range e.store.Live() {
		env, ok := e.store.Env(id)
		if !ok {
			continue
		}
		v := EnvView{
			ID:         uint32(id),
			Name:       env.Name,
			ParentName: env.ParentName,
			Transitive: env.Transitive,
			Dynamic:    env.Dynamic,
			Unresolved: env.Unresolved,
			RefNames:   env.RefNames,
		}
		if parent := look.ResolveParent(id); parent.IsValid() {
			v.Parent = uint32(parent)
		}
		for _, r := range env.Refs {
			v.Refs = append(v.Refs, uint32(r))
		}
		if s := e.slotByID(env.Unit); s != nil {
			v.Unit = s.name
		}
		if n := e.Node(env.Owner); n != nil {
			v.Owner = n.ID.String()
			v.OwnerKind = e.grammar.Kinds.Name(n.Kind)
		}
		assocs := e.store.LocalTable(id).All()
		if env.Dynamic {
			assocs = append(assocs, e.dynamicAssociations(ctx, id)...)
		}
		for _, a := range assocs {
			v.Symbols = append(v.Symbols, e.symbolView(a))
		}
		snap.Envs = append(snap.Envs, v)
	}
	slices.SortFunc(snap.Envs, func(a, b EnvView) int { return int(a.ID) - int(b.ID) })
	return snap
}

func (e *Engine) symbolView(a lexenv.Association) SymbolView {
	name, _ := e.strings.Lookup(a.Symbol)
	v := SymbolView{Name: name, Node: a.Node.String()}
	if n := e.Node(a.Node); n != nil {
		v.Kind = e.grammar.Kinds.Name(n.Kind)
		v.Pos = n.Range.Start.String()
	}
	if s := e.slotByID(a.Unit); s != nil {
		v.Unit = s.name
	}
	return v
}

func (e *Engine) slotByID(id tree.UnitID) *unitSlot {
	e.unitsMu.RLock()
	defer e.unitsMu.RUnlock()
	return e.byID[id]
}
