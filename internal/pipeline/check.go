package pipeline

import (
	"context"
	"errors"
	"io"
	"slices"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"envkit/internal/adalite"
	"envkit/internal/diag"
	"envkit/internal/engine"
	"envkit/internal/project/dag"
)

// ErrNoEngine is returned when a request carries no engine or language.
var ErrNoEngine = errors.New("pipeline: missing engine or language")

// CheckRequest describes one check run.
type CheckRequest struct {
	Engine *engine.Engine
	Lang   *adalite.Language
	// Units to check; empty means every unit the provider lists.
	Units    []string
	Jobs     int
	Progress ProgressSink
	Logger   *log.Logger
}

// UnitReport is the outcome of checking one unit.
type UnitReport struct {
	Name    string
	Result  adalite.CheckResult
	Err     error
	Elapsed time.Duration
}

// CheckResult aggregates a check run.
type CheckResult struct {
	Units []UnitReport
	// Order is an elaboration order of the with graph, dependencies first.
	Order []string
	// Cycles lists the units caught in circular with clauses.
	Cycles []string
	// LoadErr joins the units that could not be loaded.
	LoadErr error
	Timings Timings
}

// Failed reports whether a unit failed to load or check.
func (r CheckResult) Failed() bool {
	if r.LoadErr != nil {
		return true
	}
	return slices.ContainsFunc(r.Units, func(u UnitReport) bool { return u.Err != nil })
}

// Check loads the requested units, resolves every name they hold and checks
// their with graph. Problems found along the way are reported to the engine;
// the returned error is only set when the run itself could not proceed.
func Check(ctx context.Context, req *CheckRequest) (CheckResult, error) {
	var res CheckResult
	if req == nil || req.Engine == nil || req.Lang == nil {
		return res, ErrNoEngine
	}
	e := req.Engine
	logger := req.Logger
	if logger == nil {
		logger = log.New()
		logger.SetOutput(io.Discard)
	}

	emitQueued(req.Progress, req.Units)
	started := time.Now()
	emit(req.Progress, Event{Stage: StageLoad, Status: StatusWorking})
	if len(req.Units) == 0 {
		res.LoadErr = e.LoadProvided(ctx)
	} else {
		res.LoadErr = e.LoadAll(ctx, req.Units)
	}
	res.Timings.Set(StageLoad, time.Since(started))
	if err := ctx.Err(); err != nil {
		return res, err
	}

	names := req.Units
	if len(names) == 0 {
		names = e.Units()
		emitQueued(req.Progress, names)
	}
	loaded := make([]string, 0, len(names))
	for _, name := range names {
		if _, ok := e.Unit(name); ok {
			loaded = append(loaded, name)
			emit(req.Progress, Event{Unit: name, Stage: StageLoad, Status: StatusDone})
			continue
		}
		emit(req.Progress, Event{Unit: name, Stage: StageLoad, Status: StatusError, Err: adalite.ErrNoSource})
	}
	if res.LoadErr != nil {
		logger.WithError(res.LoadErr).Warn("some units could not be loaded")
	}

	started = time.Now()
	res.Units = checkUnits(ctx, req, loaded)
	res.Timings.Set(StageCheck, time.Since(started))
	if err := ctx.Err(); err != nil {
		return res, err
	}

	started = time.Now()
	emit(req.Progress, Event{Stage: StageDeps, Status: StatusWorking})
	res.Order, res.Cycles = checkDeps(req, loaded)
	res.Timings.Set(StageDeps, time.Since(started))
	emit(req.Progress, Event{Stage: StageDeps, Status: StatusDone, Elapsed: res.Timings.Duration(StageDeps)})

	logger.WithFields(log.Fields{
		"units":  len(res.Units),
		"cycles": len(res.Cycles),
	}).Debug("check finished")
	return res, nil
}

func checkUnits(ctx context.Context, req *CheckRequest, names []string) []UnitReport {
	reports := make([]UnitReport, len(names))
	var g errgroup.Group
	if req.Jobs > 0 {
		g.SetLimit(req.Jobs)
	}
	for i, name := range names {
		g.Go(func() error {
			emit(req.Progress, Event{Unit: name, Stage: StageCheck, Status: StatusWorking})
			started := time.Now()
			r, err := req.Lang.Check(ctx, req.Engine, name)
			reports[i] = UnitReport{Name: name, Result: r, Err: err, Elapsed: time.Since(started)}
			status := StatusDone
			if err != nil {
				status = StatusError
			}
			emit(req.Progress, Event{Unit: name, Stage: StageCheck, Status: status, Err: err, Elapsed: reports[i].Elapsed})
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // failures are kept per unit
	return reports
}

// checkDeps builds the with graph of the loaded units, reports self withs,
// cycles and withs of units that have errors, and returns an elaboration
// order together with the units left out of it.
func checkDeps(req *CheckRequest, names []string) (order, cycles []string) {
	e := req.Engine
	diags := e.Diagnostics()
	nodes := make([]dag.UnitNode, 0, len(names))
	metas := make([]dag.UnitMeta, 0, len(names))
	for _, name := range names {
		u, ok := e.Unit(name)
		if !ok {
			continue
		}
		meta := dag.UnitMeta{Name: name}
		if root := u.Tree.Get(u.Root()); root != nil {
			meta.Span = root.Span
		}
		for _, imp := range req.Lang.Imports(u.Tree) {
			meta.Deps = append(meta.Deps, dag.Dep{Name: adalite.SpecFile(imp.Name), Span: imp.Span})
		}
		node := dag.UnitNode{Meta: meta, Reporter: e.Reporter()}
		if i := slices.IndexFunc(diags, func(d diag.Diagnostic) bool {
			return d.Primary.File == u.File && d.Severity >= diag.SevError
		}); i >= 0 {
			node.Broken = true
			node.FirstErr = &diags[i]
		}
		nodes = append(nodes, node)
		metas = append(metas, meta)
	}

	idx := dag.BuildIndex(metas)
	g, slots := dag.BuildGraph(idx, nodes)
	topo := dag.ToposortKahn(g)
	dag.ReportCycles(idx, slots, topo)
	dag.ReportBrokenDeps(idx, slots)

	for _, id := range topo.Order {
		order = append(order, idx.IDToName[int(id)])
	}
	for _, id := range topo.Cycles {
		cycles = append(cycles, idx.IDToName[int(id)])
	}
	return order, cycles
}

func emit(sink ProgressSink, evt Event) {
	if sink != nil {
		sink.OnEvent(evt)
	}
}

func emitQueued(sink ProgressSink, names []string) {
	for _, name := range names {
		emit(sink, Event{Unit: name, Stage: StageLoad, Status: StatusQueued})
	}
}
