package dag

import (
	"fmt"
	"slices"
	"strings"

	"envkit/internal/diag"
)

type Graph struct {
	Edges   [][]UnitID // Edges[from] = units from withs
	Present []bool     // the unit is loaded, not only with'ed
}

type UnitNode struct {
	Meta     UnitMeta
	Reporter diag.Reporter
	Broken   bool
	FirstErr *diag.Diagnostic
}

type UnitSlot struct {
	Meta     UnitMeta
	Reporter diag.Reporter
	Present  bool
	Broken   bool
	FirstErr *diag.Diagnostic
}

// BuildGraph links the units of idx. Dependencies that are not loaded get
// no edge; the engine already reports units no source provides.
func BuildGraph(idx UnitIndex, nodes []UnitNode) (Graph, []UnitSlot) {
	nodeCount := len(idx.IDToName)
	g := Graph{
		Edges:   make([][]UnitID, nodeCount),
		Present: make([]bool, nodeCount),
	}
	slots := make([]UnitSlot, nodeCount)
	for i, name := range idx.IDToName {
		slots[i].Meta.Name = name
	}

	for _, node := range nodes {
		id, ok := idx.NameToID[node.Meta.Name]
		if !ok || node.Meta.Name == "" {
			continue
		}
		slot := &slots[int(id)]
		if slot.Present {
			continue
		}
		slot.Meta = node.Meta
		slot.Reporter = node.Reporter
		slot.Present = true
		slot.Broken = node.Broken
		slot.FirstErr = node.FirstErr
		g.Present[int(id)] = true
	}

	for from := range slots {
		slot := &slots[from]
		if !slot.Present || len(slot.Meta.Deps) == 0 {
			continue
		}
		seen := make(map[UnitID]struct{}, len(slot.Meta.Deps))
		for _, dep := range slot.Meta.Deps {
			toID, ok := idx.NameToID[dep.Name]
			if !ok || !g.Present[int(toID)] {
				continue
			}
			if UnitID(from) == toID {
				if slot.Reporter != nil {
					diag.ReportError(slot.Reporter, diag.ProjSelfWith, dep.Span,
						fmt.Sprintf("unit %q withs itself", slot.Meta.Name)).Emit()
				}
				continue
			}
			if _, dup := seen[toID]; dup {
				continue
			}
			seen[toID] = struct{}{}
			g.Edges[from] = append(g.Edges[from], toID)
		}
		slices.Sort(g.Edges[from])
	}

	return g, slots
}

// ReportCycles reports every unit left unordered by topo.
func ReportCycles(idx UnitIndex, slots []UnitSlot, topo *Topo) {
	if topo == nil || !topo.Cyclic || len(topo.Cycles) == 0 {
		return
	}
	names := make([]string, 0, len(topo.Cycles))
	for _, id := range topo.Cycles {
		names = append(names, idx.IDToName[int(id)])
	}
	summary := strings.Join(names, " -> ")

	for _, id := range topo.Cycles {
		slot := slots[int(id)]
		if !slot.Present || slot.Reporter == nil {
			continue
		}
		msg := fmt.Sprintf("unit %q is part of a with cycle: %s", slot.Meta.Name, summary)
		diag.ReportError(slot.Reporter, diag.ProjWithCycle, slot.Meta.Span, msg).Emit()
	}
}

// ReportBrokenDeps warns on each with of a unit that has errors.
func ReportBrokenDeps(idx UnitIndex, slots []UnitSlot) {
	for i := range slots {
		from := &slots[i]
		if !from.Present || from.Reporter == nil {
			continue
		}
		emitted := make(map[string]struct{}, len(from.Meta.Deps))
		for _, dep := range from.Meta.Deps {
			toID, ok := idx.NameToID[dep.Name]
			if !ok || !slots[int(toID)].Broken {
				continue
			}
			key := dep.Name + "|" + dep.Span.String()
			if _, seen := emitted[key]; seen {
				continue
			}
			emitted[key] = struct{}{}

			b := diag.ReportWarning(from.Reporter, diag.ProjDependencyBad, dep.Span,
				fmt.Sprintf("with'ed unit %q has errors", dep.Name))
			if first := slots[int(toID)].FirstErr; first != nil {
				b.WithNote(first.Primary, "first error in dependency: "+first.Message)
			}
			b.Emit()
		}
	}
}
