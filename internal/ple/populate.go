package ple

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"envkit/internal/lexenv"
	"envkit/internal/source"
	"envkit/internal/trace"
	"envkit/internal/tree"
)

// ErrNoTree is returned when a unit without a tree is populated.
var ErrNoTree = errors.New("unit has no tree")

// UnitResult summarizes phase (a) of one unit.
type UnitResult struct {
	Unit    tree.UnitID
	Envs    int
	Decls   int
	Named   int
	Foreign int
	Links   int
}

// Unresolved is a named parent link that could not be resolved.
type Unresolved struct {
	Env   lexenv.EnvID
	Owner tree.NodeID
	Unit  tree.UnitID
	Name  string
	Span  source.Span
}

// LinkResult summarizes phase (b).
type LinkResult struct {
	Resolved   int
	Unresolved []Unresolved
}

type link struct {
	env   lexenv.EnvID
	owner tree.NodeID
	kind  tree.Kind
	unit  tree.UnitID
	name  string
	span  source.Span
}

// Populator runs both phases against a store and a registry. Phase (a) of
// different units may run concurrently; callers guarantee a unit is never
// populated by two goroutines at once.
type Populator struct {
	Spec    *Spec
	Store   *lexenv.Store
	Named   *lexenv.Registry
	Strings *source.Interner
	// Describe reports the owner of an environment for ParentPolicy; nil
	// limits candidates to their env ID and unit.
	Describe func(env lexenv.EnvID) Candidate

	mu    sync.Mutex
	links map[lexenv.EnvID]link
	// unit -> envs with a named parent, for ForgetUnit
	byUnit     map[tree.UnitID][]lexenv.EnvID
	unresolved map[lexenv.EnvID]struct{}
}

// NewPopulator wires a populator.
func NewPopulator(spec *Spec, store *lexenv.Store, named *lexenv.Registry, strs *source.Interner) *Populator {
	return &Populator{
		Spec:       spec,
		Store:      store,
		Named:      named,
		Strings:    strs,
		links:      make(map[lexenv.EnvID]link),
		byUnit:     make(map[tree.UnitID][]lexenv.EnvID),
		unresolved: make(map[lexenv.EnvID]struct{}),
	}
}

type unitWalk struct {
	p       *Populator
	unit    *tree.Unit
	t       *tree.Tree
	res     UnitResult
	regs    []lexenv.Registration
	foreign []lexenv.ForeignAssoc
	links   []link
	fqn     map[tree.NodeID]string
}

// PopulateUnit runs phase (a) over u and publishes its registrations.
func (p *Populator) PopulateUnit(ctx context.Context, u *tree.Unit) (UnitResult, error) {
	if u == nil || u.Tree == nil {
		return UnitResult{}, ErrNoTree
	}
	_, span := trace.Start(ctx, trace.ScopeUnit, "ple:"+u.Name)
	w := &unitWalk{
		p:    p,
		unit: u,
		t:    u.Tree,
		res:  UnitResult{Unit: u.ID},
		fqn:  make(map[tree.NodeID]string),
	}
	w.visit(u.Tree.Root, p.Store.Root())
	p.Named.Publish(u.ID, w.regs, w.foreign)

	p.mu.Lock()
	for _, l := range w.links {
		p.links[l.env] = l
		p.byUnit[u.ID] = append(p.byUnit[u.ID], l.env)
	}
	p.mu.Unlock()

	w.res.Named = len(w.regs)
	w.res.Foreign = len(w.foreign)
	w.res.Links = len(w.links)
	span.WithExtra("envs", fmt.Sprint(w.res.Envs)).WithExtra("decls", fmt.Sprint(w.res.Decls)).End("")
	return w.res, nil
}

func (w *unitWalk) qualifiedName(id tree.NodeID) string {
	if name, ok := w.fqn[id]; ok {
		return name
	}
	name := w.p.Spec.QualifiedName(w.t, id)
	w.fqn[id] = name
	return name
}

// visit populates n, visible in env, then its children.
func (w *unitWalk) visit(id tree.NodeID, env lexenv.EnvID) {
	n := w.t.Get(id)
	if n == nil {
		return
	}
	ks := w.p.Spec.For(n.Kind)
	v := Visit{Tree: w.t, Node: n, Unit: w.unit, QualifiedName: w.qualifiedName}

	childEnv := env
	if ks.AddEnv != nil {
		if act, ok := ks.AddEnv(v); ok {
			childEnv = w.addEnv(n, env, act)
		}
	}
	if ks.AddToEnv != nil {
		for _, d := range ks.AddToEnv(v) {
			w.addDecl(n, env, childEnv, d)
		}
	}
	if ks.Reference != nil {
		for _, name := range ks.Reference(v) {
			if name != "" {
				w.p.Store.AddRefName(env, name)
			}
		}
	}

	var deferred []tree.NodeID
	for _, child := range n.Children {
		c := w.t.Get(child)
		if c != nil && w.p.Spec.For(c.Kind).Defer {
			deferred = append(deferred, child)
			continue
		}
		w.visit(child, childEnv)
	}
	for _, child := range deferred {
		w.visit(child, childEnv)
	}
}

func (w *unitWalk) addEnv(n *tree.Node, env lexenv.EnvID, act EnvAction) lexenv.EnvID {
	id := w.p.Store.Create(lexenv.EnvSpec{
		Owner:      n.ID,
		Unit:       w.unit.ID,
		Generation: w.unit.Generation,
		Parent:     env,
		ParentName: act.ParentName,
		Transitive: act.Transitive,
		Dynamic:    act.Dynamic,
	})
	w.p.Store.BindChildrenEnv(w.unit.ID, n.ID, id)
	w.res.Envs++

	if act.Named && (w.p.Spec.CanDefineNamedEnv == nil || w.p.Spec.CanDefineNamedEnv(w.t, n)) {
		if name := w.qualifiedName(n.ID); name != "" {
			w.p.Store.SetName(id, name)
			w.regs = append(w.regs, lexenv.Registration{Name: name, Env: id})
		}
	}
	if act.ParentName != "" {
		w.links = append(w.links, link{
			env:   id,
			owner: n.ID,
			kind:  n.Kind,
			unit:  w.unit.ID,
			name:  act.ParentName,
			span:  n.Span,
		})
	}
	return id
}

func (w *unitWalk) addDecl(n *tree.Node, env, own lexenv.EnvID, d Decl) {
	if d.Symbol == "" {
		return
	}
	target := d.Node
	if !target.IsValid() {
		target = n.ID
	}
	assoc := lexenv.Association{
		Symbol: w.p.Strings.Intern(d.Symbol),
		Node:   target,
		Unit:   w.unit.ID,
		Meta:   d.Meta,
	}
	switch {
	case d.Dest != "":
		w.foreign = append(w.foreign, lexenv.ForeignAssoc{Name: d.Dest, Assoc: assoc})
	case d.Own:
		if w.p.Store.AddAll(own, []lexenv.Association{assoc}) > 0 {
			w.res.Decls++
		}
	default:
		if w.p.Store.AddAll(env, []lexenv.Association{assoc}) > 0 {
			w.res.Decls++
		}
	}
}

// Link runs phase (b): every named parent link known to the populator is
// checked against the registry. Links of earlier batches are retried, and
// links whose target disappeared become unresolved again.
func (p *Populator) Link(ctx context.Context) LinkResult {
	_, span := trace.Start(ctx, trace.ScopePass, "ple:link")
	p.mu.Lock()
	links := make([]link, 0, len(p.links))
	for _, l := range p.links {
		links = append(links, l)
	}
	p.mu.Unlock()
	slices.SortFunc(links, func(a, b link) int { return int(a.env) - int(b.env) })

	var res LinkResult
	for _, l := range links {
		parent := p.selectParent(l)
		p.mu.Lock()
		if _, live := p.links[l.env]; !live {
			// forgotten while linking
			p.mu.Unlock()
			continue
		}
		if parent.IsValid() {
			delete(p.unresolved, l.env)
		} else {
			p.unresolved[l.env] = struct{}{}
		}
		p.mu.Unlock()

		if parent.IsValid() {
			p.Store.SetUnresolved(l.env, false)
			p.Store.BindNodeEnv(l.unit, l.owner, parent)
			res.Resolved++
			continue
		}
		p.Store.SetUnresolved(l.env, true)
		res.Unresolved = append(res.Unresolved, l.unresolved())
	}
	span.WithExtra("resolved", fmt.Sprint(res.Resolved)).
		WithExtra("unresolved", fmt.Sprint(len(res.Unresolved))).End("")
	return res
}

func (l link) unresolved() Unresolved {
	return Unresolved{Env: l.env, Owner: l.owner, Unit: l.unit, Name: l.name, Span: l.span}
}

// SelectParent resolves the named parent of env, NoEnvID when no live
// candidate is accepted by the policy.
func (p *Populator) SelectParent(env lexenv.EnvID, candidates []lexenv.EnvID) lexenv.EnvID {
	p.mu.Lock()
	l, ok := p.links[env]
	p.mu.Unlock()
	if !ok {
		e, found := p.Store.Env(env)
		if !found {
			return lexenv.NoEnvID
		}
		l = link{env: env, owner: e.Owner, unit: e.Unit, name: e.ParentName}
		if p.Describe != nil {
			l.kind = p.Describe(env).Kind
		}
	}
	return p.pick(l, candidates)
}

func (p *Populator) selectParent(l link) lexenv.EnvID {
	var candidates []lexenv.EnvID
	for _, id := range p.Named.Lookup(l.name) {
		if id == l.env {
			continue
		}
		if e, ok := p.Store.Env(id); ok && !e.Dead {
			candidates = append(candidates, id)
		}
	}
	return p.pick(l, candidates)
}

func (p *Populator) pick(l link, candidates []lexenv.EnvID) lexenv.EnvID {
	if len(candidates) == 0 {
		return lexenv.NoEnvID
	}
	policy := p.Spec.ParentPolicy
	if policy == nil {
		policy = FirstCandidate
	}
	req := Candidate{Env: l.env, Owner: l.owner, Kind: l.kind, Unit: l.unit}
	described := make([]Candidate, len(candidates))
	for i, id := range candidates {
		if p.Describe != nil {
			described[i] = p.Describe(id)
		} else {
			described[i] = Candidate{Env: id}
		}
		described[i].Env = id
	}
	idx := policy(req, described)
	if idx < 0 || idx >= len(candidates) {
		return lexenv.NoEnvID
	}
	return candidates[idx]
}

// Unresolved lists links that failed the last Link, ordered by env.
func (p *Populator) Unresolved() []Unresolved {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Unresolved, 0, len(p.unresolved))
	for env := range p.unresolved {
		if l, ok := p.links[env]; ok {
			out = append(out, l.unresolved())
		}
	}
	slices.SortFunc(out, func(a, b Unresolved) int { return int(a.Env) - int(b.Env) })
	return out
}

// UnresolvedNames lists the distinct parent names of unresolved links.
func (p *Populator) UnresolvedNames() []string {
	seen := make(map[string]struct{})
	var names []string
	for _, u := range p.Unresolved() {
		if _, ok := seen[u.Name]; !ok {
			seen[u.Name] = struct{}{}
			names = append(names, u.Name)
		}
	}
	slices.Sort(names)
	return names
}

// ForgetUnit drops the links owned by unit.
func (p *Populator) ForgetUnit(unit tree.UnitID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, env := range p.byUnit[unit] {
		delete(p.links, env)
		delete(p.unresolved, env)
	}
	delete(p.byUnit, unit)
}

// BatchResult summarizes PopulateBatch.
type BatchResult struct {
	Units []UnitResult
	Link  LinkResult
}

// PopulateBatch runs phase (a) for units, up to jobs at a time (jobs <= 0
// means unlimited), then phase (b) once. units must be distinct.
func (p *Populator) PopulateBatch(ctx context.Context, units []*tree.Unit, jobs int) (BatchResult, error) {
	ctx, span := trace.Start(ctx, trace.ScopePass, "ple:batch")
	defer span.End("")

	results := make([]UnitResult, len(units))
	g, gctx := errgroup.WithContext(ctx)
	if jobs > 0 {
		g.SetLimit(jobs)
	}
	for i, u := range units {
		g.Go(func() error {
			res, err := p.PopulateUnit(gctx, u)
			if err != nil {
				name := "<nil>"
				if u != nil {
					name = u.Name
				}
				return fmt.Errorf("populate %s: %w", name, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return BatchResult{Units: results}, err
	}
	return BatchResult{Units: results, Link: p.Link(ctx)}, nil
}
