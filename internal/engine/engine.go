package engine

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"envkit/internal/diag"
	"envkit/internal/lexenv"
	"envkit/internal/memo"
	"envkit/internal/ple"
	"envkit/internal/source"
	"envkit/internal/trace"
	"envkit/internal/tree"
)

type unitState uint8

const (
	unitNew unitState = iota
	unitLoaded
	unitFailed
	unitDisposed
)

// unitSlot is the stable identity of a unit across reparses. mu is the
// population lock: no two goroutines parse or populate one unit at once.
type unitSlot struct {
	mu    sync.Mutex
	id    tree.UnitID
	name  string
	state unitState
	unit  *tree.Unit
	err   error
	gen   uint32
}

// Engine is the lexical environment context.
type Engine struct {
	cfg      Config
	grammar  Grammar
	provider Provider
	log      *log.Entry

	files   *source.FileSet
	strings *source.Interner
	store   *lexenv.Store
	named   *lexenv.Registry
	cache   *memo.Cache
	pop     *ple.Populator

	bag      *diag.Bag
	dedup    *diag.DedupReporter
	reporter diag.Reporter

	// gate is read-held by every public operation and write-held by Reparse
	// and Dispose, which therefore never interleave with a lookup.
	gate sync.RWMutex

	unitsMu  sync.RWMutex
	slots    map[string]*unitSlot
	byID     map[tree.UnitID]*unitSlot
	trees    map[tree.TreeID]*tree.Tree
	nextUnit tree.UnitID
	nextTree tree.TreeID

	ensuredMu sync.Mutex
	ensured   map[string]struct{}
	warned    map[lexenv.EnvID]struct{}

	resolverMu    sync.Mutex
	resolverDiags map[tree.NodeID]diag.Diagnostic

	fieldsMu  sync.RWMutex
	fields    map[string]*field
	fieldList []*field
	fqnField  memo.FieldID
	dynField  memo.FieldID
}

// New creates an engine for grammar reading units from provider. provider
// may be nil for engines fed through LoadUnit only.
func New(cfg Config, grammar Grammar, provider Provider) (*Engine, error) {
	if grammar.Kinds == nil || grammar.Env == nil {
		return nil, errors.New("engine: grammar needs a kind set and an environment spec")
	}
	cfg = cfg.withDefaults()
	var opts []source.InternerOption
	if cfg.CaseInsensitive {
		opts = append(opts, source.WithCaseFolding())
	}
	e := &Engine{
		cfg:           cfg,
		grammar:       grammar,
		provider:      provider,
		log:           cfg.Logger.WithField("grammar", grammar.Name),
		files:         source.NewFileSet(),
		strings:       source.NewInterner(opts...),
		store:         lexenv.NewStore(),
		named:         lexenv.NewRegistry(),
		cache:         memo.NewCache(),
		bag:           diag.NewBag(cfg.MaxDiagnostics),
		slots:         make(map[string]*unitSlot),
		byID:          make(map[tree.UnitID]*unitSlot),
		trees:         make(map[tree.TreeID]*tree.Tree),
		ensured:       make(map[string]struct{}),
		warned:        make(map[lexenv.EnvID]struct{}),
		resolverDiags: make(map[tree.NodeID]diag.Diagnostic),
		fields:        make(map[string]*field),
	}
	e.dedup = diag.NewDedupReporter(diag.BagReporter{Bag: e.bag})
	e.reporter = diag.NewLockedReporter(e.dedup)
	e.pop = ple.NewPopulator(grammar.Env, e.store, e.named, e.strings)
	e.pop.Describe = e.describeEnv

	var err error
	if e.fqnField, err = e.RegisterField(FieldDef{Name: fieldQualifiedName, Memoized: true, Compute: computeQualifiedName}); err != nil {
		return nil, err
	}
	if e.dynField, err = e.RegisterField(FieldDef{Name: fieldDynamicEnv, Memoized: true, Compute: computeDynamicEnv}); err != nil {
		return nil, err
	}
	for _, def := range grammar.Fields {
		if _, err := e.RegisterField(def); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// Files returns the file set sources are loaded into.
func (e *Engine) Files() *source.FileSet { return e.files }

// Strings returns the symbol interner.
func (e *Engine) Strings() *source.Interner { return e.strings }

// Store exposes the environment store for inspection.
func (e *Engine) Store() *lexenv.Store { return e.store }

// Registry exposes the named environment registry for inspection.
func (e *Engine) Registry() *lexenv.Registry { return e.named }

// Cache exposes the field cache for inspection.
func (e *Engine) Cache() *memo.Cache { return e.cache }

// Grammar returns the grammar the engine was built with.
func (e *Engine) Grammar() Grammar { return e.grammar }

type gateKey struct{}

// enter read-holds the gate unless ctx already does.
func (e *Engine) enter(ctx context.Context) (context.Context, func()) {
	if ctx == nil {
		ctx = context.Background()
	}
	if trace.FromContext(ctx) == trace.Nop && e.cfg.Tracer != trace.Nop {
		ctx = trace.WithTracer(ctx, e.cfg.Tracer)
	}
	if held, _ := ctx.Value(gateKey{}).(bool); held {
		return ctx, func() {}
	}
	e.gate.RLock()
	return context.WithValue(ctx, gateKey{}, true), e.gate.RUnlock
}

// lockAll write-holds the gate for Reparse and Dispose.
func (e *Engine) lockAll(ctx context.Context) (context.Context, func(), error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if held, _ := ctx.Value(gateKey{}).(bool); held {
		return nil, nil, errors.New("engine: units cannot be reparsed or disposed from inside a lookup or field")
	}
	if trace.FromContext(ctx) == trace.Nop && e.cfg.Tracer != trace.Nop {
		ctx = trace.WithTracer(ctx, e.cfg.Tracer)
	}
	e.gate.Lock()
	return context.WithValue(ctx, gateKey{}, true), e.gate.Unlock, nil
}

func (e *Engine) slotFor(name string) *unitSlot {
	e.unitsMu.Lock()
	defer e.unitsMu.Unlock()
	if s, ok := e.slots[name]; ok {
		return s
	}
	e.nextUnit++
	s := &unitSlot{id: e.nextUnit, name: name}
	e.slots[name] = s
	e.byID[s.id] = s
	return s
}

func (e *Engine) allocTree() tree.TreeID {
	e.unitsMu.Lock()
	defer e.unitsMu.Unlock()
	e.nextTree++
	return e.nextTree
}

func (e *Engine) publishTree(old, t *tree.Tree) {
	e.unitsMu.Lock()
	defer e.unitsMu.Unlock()
	if old != nil {
		delete(e.trees, old.ID)
	}
	if t != nil {
		e.trees[t.ID] = t
	}
}

// treeOf returns the live tree holding node.
func (e *Engine) treeOf(node tree.NodeID) *tree.Tree {
	e.unitsMu.RLock()
	defer e.unitsMu.RUnlock()
	return e.trees[node.Tree]
}

// Node returns the node behind id, nil for stale or unknown IDs.
func (e *Engine) Node(id tree.NodeID) *tree.Node {
	return e.treeOf(id).Get(id)
}

// Tree returns the live tree containing node.
func (e *Engine) Tree(node tree.NodeID) *tree.Tree {
	return e.treeOf(node)
}

// Unit returns the loaded unit called name.
func (e *Engine) Unit(name string) (*tree.Unit, bool) {
	e.unitsMu.RLock()
	s, ok := e.slots[name]
	e.unitsMu.RUnlock()
	if !ok {
		return nil, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != unitLoaded {
		return nil, false
	}
	return s.unit, true
}

// Units lists the names of loaded units in sorted order.
func (e *Engine) Units() []string {
	e.unitsMu.RLock()
	slots := make([]*unitSlot, 0, len(e.slots))
	for _, s := range e.slots {
		slots = append(slots, s)
	}
	e.unitsMu.RUnlock()
	var names []string
	for _, s := range slots {
		s.mu.Lock()
		if s.state == unitLoaded {
			names = append(names, s.name)
		}
		s.mu.Unlock()
	}
	slices.Sort(names)
	return names
}

// load parses and runs phase (a) for name unless it is loaded already.
// explicit loads revive disposed and failed units. It reports whether this
// call populated the unit.
func (e *Engine) load(ctx context.Context, name string, explicit bool) (*tree.Unit, bool, error) {
	s := e.slotFor(name)
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case unitLoaded:
		return s.unit, false, nil
	case unitDisposed:
		if !explicit {
			return nil, false, nil
		}
	case unitFailed:
		if !explicit {
			return nil, false, s.err
		}
	}
	u, err := e.parseAndPopulate(ctx, s)
	if err != nil {
		s.state, s.err = unitFailed, err
		return nil, false, err
	}
	s.state, s.unit, s.err = unitLoaded, u, nil
	return u, true, nil
}

// parseAndPopulate runs with s.mu held.
func (e *Engine) parseAndPopulate(ctx context.Context, s *unitSlot) (*tree.Unit, error) {
	if e.provider == nil {
		return nil, ErrNoProvider
	}
	ctx, span := trace.Start(ctx, trace.ScopeUnit, "load:"+s.name)
	defer span.End("")
	done := e.cfg.Timer.Track("parse/" + s.name)
	s.gen++
	u, err := e.provider.Parse(ctx, ParseRequest{
		Name:       s.name,
		Unit:       s.id,
		Tree:       e.allocTree(),
		Generation: s.gen,
		Files:      e.files,
		Reporter:   e.reporter,
	})
	done("")
	if err != nil {
		diag.ReportError(e.reporter, diag.EnvMissingUnit, source.Span{}, fmt.Sprintf("cannot load unit %q: %v", s.name, err)).Emit()
		e.log.WithError(err).WithField("unit", s.name).Warn("unit load failed")
		return nil, fmt.Errorf("load %s: %w", s.name, err)
	}
	if u == nil || u.Tree == nil {
		return nil, fmt.Errorf("load %s: %w", s.name, ple.ErrNoTree)
	}
	u.ID, u.Generation = s.id, s.gen
	if len(u.Deps) == 0 {
		u.Deps = e.grammar.Env.Deps(u.Tree)
	}
	e.publishTree(nil, u.Tree)

	done = e.cfg.Timer.Track("populate/" + s.name)
	res, err := e.pop.PopulateUnit(ctx, u)
	done("")
	if err != nil {
		e.publishTree(u.Tree, nil)
		return nil, fmt.Errorf("populate %s: %w", s.name, err)
	}
	// new declarations may change what cached lookups would find
	e.cache.InvalidateUnit(s.id)
	e.log.WithFields(log.Fields{
		"unit":  s.name,
		"envs":  res.Envs,
		"decls": res.Decls,
		"named": res.Named,
	}).Debug("unit populated")
	return u, nil
}

// Load makes sure the unit called name is parsed and populated, together with
// the units it depends on and the units providing its named parents.
func (e *Engine) Load(ctx context.Context, name string) (*tree.Unit, error) {
	ctx, release := e.enter(ctx)
	defer release()
	u, fresh, err := e.load(ctx, name, true)
	if err != nil {
		return nil, err
	}
	if fresh {
		e.settle(ctx, []*tree.Unit{u})
	}
	return u, nil
}

// LoadAll parses and runs phase (a) for names in parallel, then links them.
// Every unit is attempted; the returned error joins the failures.
func (e *Engine) LoadAll(ctx context.Context, names []string) error {
	ctx, release := e.enter(ctx)
	defer release()
	ctx, span := trace.Start(ctx, trace.ScopePass, "load-all")
	defer span.End("")
	done := e.cfg.Timer.Track("load")

	fresh := make([]*tree.Unit, len(names))
	errs := make([]error, len(names))
	var g errgroup.Group
	if e.cfg.Jobs > 0 {
		g.SetLimit(e.cfg.Jobs)
	}
	for i, name := range names {
		g.Go(func() error {
			u, isNew, err := e.load(ctx, name, true)
			if isNew {
				fresh[i] = u
			}
			errs[i] = err
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // failures are collected per unit
	done(fmt.Sprintf("%d units", len(names)))

	var loaded []*tree.Unit
	for _, u := range fresh {
		if u != nil {
			loaded = append(loaded, u)
		}
	}
	e.settle(ctx, loaded)
	return errors.Join(errs...)
}

// LoadProvided loads every unit the provider can enumerate.
func (e *Engine) LoadProvided(ctx context.Context) error {
	lister, ok := e.provider.(Lister)
	if !ok {
		return fmt.Errorf("engine: provider %T cannot list its units", e.provider)
	}
	return e.LoadAll(ctx, lister.Names())
}

// settle runs phase (b) and keeps loading dependencies and the providers of
// unresolved parent names until nothing new comes in.
func (e *Engine) settle(ctx context.Context, fresh []*tree.Unit) {
	ctx, span := trace.Start(ctx, trace.ScopePass, "settle")
	defer span.End("")
	done := e.cfg.Timer.Track("link")
	defer func() { done("") }()

	tried := make(map[string]struct{})
	for {
		e.pop.Link(ctx)
		var wanted []string
		for _, u := range fresh {
			for _, dep := range u.Deps {
				names := e.unitsFor(dep)
				if len(names) == 0 {
					diag.ReportWarning(e.reporter, diag.EnvMissingUnit, source.Span{File: u.File},
						fmt.Sprintf("unit %q depends on %q, which no source provides", u.Name, dep)).Emit()
				}
				wanted = append(wanted, names...)
			}
		}
		for _, name := range e.pop.UnresolvedNames() {
			if _, ok := tried[name]; ok {
				continue
			}
			tried[name] = struct{}{}
			wanted = append(wanted, e.unitsFor(name)...)
		}

		fresh = fresh[:0:0]
		for _, name := range wanted {
			u, isNew, err := e.load(ctx, name, false)
			if err != nil {
				continue
			}
			if isNew {
				fresh = append(fresh, u)
			}
		}
		if len(fresh) == 0 {
			break
		}
	}
	e.warnUnresolved()
}

func (e *Engine) unitsFor(name string) []string {
	if e.provider == nil || name == "" {
		return nil
	}
	return e.provider.UnitsFor(name)
}

func (e *Engine) warnUnresolved() {
	for _, u := range e.pop.Unresolved() {
		e.ensuredMu.Lock()
		_, seen := e.warned[u.Env]
		e.warned[u.Env] = struct{}{}
		e.ensuredMu.Unlock()
		if !seen {
			e.log.WithFields(log.Fields{"env": u.Env, "name": u.Name}).Warn("unresolved parent scope")
		}
	}
}

// ensureNamed is the suspension point of lookups: units contributing to name
// are loaded before the named environment is read.
func (e *Engine) ensureNamed(ctx context.Context, name string) {
	e.ensuredMu.Lock()
	_, done := e.ensured[name]
	e.ensuredMu.Unlock()
	if done {
		return
	}
	var fresh []*tree.Unit
	for _, unit := range e.unitsFor(name) {
		u, isNew, err := e.load(ctx, unit, false)
		if err == nil && isNew {
			e.log.WithFields(log.Fields{"unit": unit, "name": name}).Debug("loaded on demand")
			fresh = append(fresh, u)
		}
	}
	if len(fresh) > 0 {
		e.settle(ctx, fresh)
	}
	e.ensuredMu.Lock()
	e.ensured[name] = struct{}{}
	e.ensuredMu.Unlock()
}

// Reparse replaces the unit called name with a fresh parse from the provider.
// Everything the old tree contributed is invalidated first.
func (e *Engine) Reparse(ctx context.Context, name string) (*tree.Unit, error) {
	ctx, release, err := e.lockAll(ctx)
	if err != nil {
		return nil, err
	}
	defer release()
	ctx, span := trace.Start(ctx, trace.ScopePass, "reparse:"+name)
	defer span.End("")

	s := e.slotFor(name)
	s.mu.Lock()
	e.teardown(s)
	u, perr := e.parseAndPopulate(ctx, s)
	if perr != nil {
		s.state, s.err = unitFailed, perr
	} else {
		s.state, s.unit, s.err = unitLoaded, u, nil
	}
	s.mu.Unlock()

	e.clearEnsured()
	if perr != nil {
		e.pop.Link(ctx)
		return nil, perr
	}
	e.settle(ctx, []*tree.Unit{u})
	e.log.WithFields(log.Fields{"unit": name, "generation": u.Generation}).Info("unit reparsed")
	return u, nil
}

// Dispose destroys the unit called name. Lookups no longer load it on demand;
// an explicit Load revives it.
func (e *Engine) Dispose(ctx context.Context, name string) error {
	ctx, release, err := e.lockAll(ctx)
	if err != nil {
		return err
	}
	defer release()

	e.unitsMu.RLock()
	s, ok := e.slots[name]
	e.unitsMu.RUnlock()
	if !ok {
		return fmt.Errorf("dispose %s: unit not loaded", name)
	}
	s.mu.Lock()
	e.teardown(s)
	s.state = unitDisposed
	s.mu.Unlock()

	e.clearEnsured()
	e.pop.Link(ctx)
	e.log.WithField("unit", name).Info("unit disposed")
	return nil
}

// teardown invalidates everything s contributed. Runs with the gate and s.mu
// held.
func (e *Engine) teardown(s *unitSlot) {
	regs := e.named.UnregisterUnit(s.id)
	envs, assocs := e.store.DropUnit(s.id)
	entries := e.cache.InvalidateUnit(s.id)
	e.pop.ForgetUnit(s.id)
	if s.unit != nil {
		e.bag.DropFile(s.unit.File)
		e.dedup.Forget(s.unit.File)
		e.forgetResolverDiags(s.unit.Tree.ID)
		e.publishTree(s.unit.Tree, nil)
	}
	s.unit = nil
	e.log.WithFields(log.Fields{
		"unit":    s.name,
		"regs":    regs,
		"envs":    envs,
		"assocs":  assocs,
		"entries": entries,
	}).Debug("unit invalidated")
}

func (e *Engine) clearEnsured() {
	e.ensuredMu.Lock()
	defer e.ensuredMu.Unlock()
	clear(e.ensured)
	clear(e.warned)
}
