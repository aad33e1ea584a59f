package dag

import (
	"fmt"
	"slices"

	"fortio.org/safecast"
)

// Topo is an elaboration order of the with graph.
type Topo struct {
	Order   []UnitID   // dependencies first, present units only
	Batches [][]UnitID // waves of mutually independent units
	Cyclic  bool
	Cycles  []UnitID // units that could not be ordered
}

// ToposortKahn orders units so that every unit comes after the units it
// withs. The first batch holds the units that with nothing.
func ToposortKahn(g Graph) *Topo {
	nodeCount := len(g.Edges)
	outdeg := make([]int, nodeCount)
	dependents := make([][]UnitID, nodeCount)
	for from, edges := range g.Edges {
		if !g.Present[from] {
			continue
		}
		for _, to := range edges {
			if !g.Present[int(to)] {
				continue
			}
			outdeg[from]++
			dependents[int(to)] = append(dependents[int(to)], toID(from))
		}
	}

	topo := &Topo{
		Order:   make([]UnitID, 0, nodeCount),
		Batches: make([][]UnitID, 0),
	}

	active := 0
	current := make([]UnitID, 0, nodeCount)
	for i := range nodeCount {
		if !g.Present[i] {
			continue
		}
		active++
		if outdeg[i] == 0 {
			current = append(current, toID(i))
		}
	}

	visited := 0
	for len(current) > 0 {
		slices.Sort(current)
		batch := slices.Clone(current)
		topo.Batches = append(topo.Batches, batch)

		next := make([]UnitID, 0)
		for _, id := range batch {
			topo.Order = append(topo.Order, id)
			visited++
			for _, from := range dependents[int(id)] {
				outdeg[int(from)]--
				if outdeg[int(from)] == 0 {
					next = append(next, from)
				}
			}
		}
		current = next
	}

	if visited != active {
		topo.Cyclic = true
		for i := range nodeCount {
			if g.Present[i] && outdeg[i] > 0 {
				topo.Cycles = append(topo.Cycles, toID(i))
			}
		}
	}

	return topo
}

func toID(i int) UnitID {
	id, err := safecast.Conv[UnitID](i)
	if err != nil {
		panic(fmt.Errorf("unit id overflow: %w", err))
	}
	return id
}
