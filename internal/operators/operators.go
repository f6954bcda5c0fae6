// Package operators implements the ten move operators the SA core applies
// to a candidate grid, plus the repair-placement and repair-beam
// procedures the two cluster operators use to reinsert displaced
// machines.
package operators

import (
	"sort"

	"beltforge/internal/geometry"
	"beltforge/internal/grid"
	"beltforge/internal/model"
	"beltforge/internal/rng"
	"beltforge/internal/routing"
)

// Operator is one move in the portfolio. Apply mutates g in place and
// reports whether it actually changed anything (some operators are
// no-ops on degenerate inputs, e.g. a single-machine grid).
type Operator interface {
	Name() string
	Apply(g *grid.GridState, conns []model.Connection, src rng.Source) bool
}

// All returns the ten operators in the portfolio's spec order.
func All() []Operator {
	return []Operator{
		moveTowardNeighbor{},
		moveToSource{},
		portFacingJump{},
		tryDifferentPort{},
		randomShift{},
		swapPositions{},
		rotateBest{},
		jointMoveRotate{},
		clusterDestroyRepair{},
		criticalNetFocus{},
	}
}

func movableIDs(g *grid.GridState) []string {
	ids := make([]string, 0, len(g.Machines))
	for id, m := range g.Machines {
		if !m.Type.Immovable() {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

func pickRandomID(ids []string, src rng.Source) (string, bool) {
	if len(ids) == 0 {
		return "", false
	}
	return ids[src.Intn(len(ids))], true
}

// mostConnectedNeighbor returns the already-placed machine id connected to
// id with the highest edge count, or "" if id has no connections.
func mostConnectedNeighbor(g *grid.GridState, id string, conns []model.Connection) string {
	counts := make(map[string]int)
	for _, c := range conns {
		switch {
		case c.SourceMachine == id:
			if _, ok := g.Machines[c.TargetMachine]; ok {
				counts[c.TargetMachine]++
			}
		case c.TargetMachine == id:
			if _, ok := g.Machines[c.SourceMachine]; ok {
				counts[c.SourceMachine]++
			}
		}
	}
	best := ""
	bestCount := 0
	var keys []string
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if counts[k] > bestCount {
			bestCount = counts[k]
			best = k
		}
	}
	return best
}

// beltCost sums the Manhattan estimate over every connection touching id,
// using each endpoint's current ports (id's hypothetical candidate pose
// must already be passed in via override).
func beltCost(g *grid.GridState, id string, override model.Machine, conns []model.Connection) int {
	inputs, outputs := geometry.Ports(override)
	total := 0
	for _, c := range conns {
		switch {
		case c.SourceMachine == id:
			other, ok := g.Machines[c.TargetMachine]
			if !ok || c.SourcePort >= len(outputs) {
				continue
			}
			oin, _ := geometry.Ports(other)
			if c.TargetPort < len(oin) {
				total += routing.ManhattanEstimate(outputs[c.SourcePort], oin[c.TargetPort])
			}
		case c.TargetMachine == id:
			other, ok := g.Machines[c.SourceMachine]
			if !ok || c.TargetPort >= len(inputs) {
				continue
			}
			_, oout := geometry.Ports(other)
			if c.SourcePort < len(oout) {
				total += routing.ManhattanEstimate(oout[c.SourcePort], inputs[c.TargetPort])
			}
		}
	}
	return total
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func fits(g *grid.GridState, m model.Machine) bool {
	f, ok := geometry.MachineFootprint(m)
	if !ok {
		return false
	}
	for _, t := range f.Tiles() {
		if !g.InBounds(t[0], t[1]) {
			return false
		}
		if c := g.Cell(t[0], t[1]); c.Kind == grid.MachineCell && c.MachineID != m.ID {
			return false
		}
	}
	return true
}

// relocate clears id's current cells and re-places it at candidate's
// position/orientation. It assumes candidate fits; callers must check
// fits(g, candidate) first.
func relocate(g *grid.GridState, id string, candidate model.Machine) {
	g.ClearCells(id)
	g.Place(candidate)
}

var cardinalDirections = []model.Direction{model.North, model.East, model.South, model.West}

var allOrientations = cardinalDirections
