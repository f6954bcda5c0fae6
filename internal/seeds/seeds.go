// Package seeds implements Phase 0 of the optimizer: four independent
// deterministic placement strategies that each try to produce a routable
// starting layout. The optimizer runs all that apply and keeps the one
// with the best routed score, falling back to the best fast score if none
// of them route cleanly.
package seeds

import (
	"sort"

	"beltforge/internal/geometry"
	"beltforge/internal/grid"
	"beltforge/internal/model"
	"beltforge/internal/routing"
	"beltforge/internal/scoring"
)

// Input is the machine/connection topology a seed generator lays out onto
// a fresh width x height grid. Position fields on Machines are ignored by
// the generators, and so is Orientation, except that greedy places its
// first machine in the orientation it was given; otherwise only ID/Type
// matter as input.
type Input struct {
	Machines    []model.Machine
	Connections []model.Connection
	Width       int
	Height      int
}

// Result is one candidate seed: the grid it produced, whether every
// connection in it routed successfully, and the score used to rank it
// against other seeds (Routed when Routable, Fast otherwise).
type Result struct {
	Name     string
	Grid     *grid.GridState
	Routable bool
	Score    scoring.Score
}

// Best runs every seed generator that applies to in and returns the one
// with the best score, preferring any routable seed over every unroutable
// one regardless of score.
func Best(in Input) (Result, bool) {
	var candidates []Result

	if g, ok := greedy(in); ok {
		candidates = append(candidates, evaluate("greedy", g))
	}
	if g, ok := topologyLayered(in); ok {
		candidates = append(candidates, evaluate("topology_layered", g))
	}
	if g, ok := patternAware(in); ok {
		candidates = append(candidates, evaluate("pattern_aware", g))
	}
	if g, ok := twoLayerExhaustive(in); ok {
		candidates = append(candidates, evaluate("two_layer_exhaustive", g))
	}

	if len(candidates) == 0 {
		return Result{}, false
	}

	best := candidates[0]
	for _, c := range candidates[1:] {
		if better(c, best) {
			best = c
		}
	}
	return best, true
}

func better(a, b Result) bool {
	if a.Routable != b.Routable {
		return a.Routable
	}
	return scoring.Compare(a.Score, b.Score) < 0
}

func evaluate(name string, g *grid.GridState) Result {
	routable := routeAll(g)
	var sc scoring.Score
	if routable {
		sc = scoring.Routed(g)
	} else {
		sc = scoring.Fast(g)
	}
	return Result{Name: name, Grid: g, Routable: routable, Score: sc}
}

// routeAll attempts to find and apply a belt path for every connection
// currently registered on g. It returns false as soon as one connection
// fails to route; paths already applied for earlier connections are left
// in place since the caller only keeps the grid when this returns true.
func routeAll(g *grid.GridState) bool {
	ids := make([]string, 0, len(g.Connections))
	for id := range g.Connections {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		conn := g.Connections[id]
		src, tgt, ok := resolvePorts(g, conn)
		if !ok {
			return false
		}
		path, ok := routing.FindPath(g, src, tgt, "")
		if !ok {
			return false
		}
		path.ConnectionID = id
		g.ApplyBeltPath(path)
	}
	return true
}

func resolvePorts(g *grid.GridState, conn model.Connection) (src, tgt model.Port, ok bool) {
	_, outputs := g.Ports(conn.SourceMachine)
	if conn.SourcePort < 0 || conn.SourcePort >= len(outputs) {
		return model.Port{}, model.Port{}, false
	}
	inputs, _ := g.Ports(conn.TargetMachine)
	if conn.TargetPort < 0 || conn.TargetPort >= len(inputs) {
		return model.Port{}, model.Port{}, false
	}
	return outputs[conn.SourcePort], inputs[conn.TargetPort], true
}

// degreeOf counts the connections touching machine id, in either role.
func degreeOf(id string, conns []model.Connection) int {
	n := 0
	for _, c := range conns {
		if c.SourceMachine == id || c.TargetMachine == id {
			n++
		}
	}
	return n
}

// degreeToSet counts id's connections whose other endpoint is in placed.
func degreeToSet(id string, conns []model.Connection, placed map[string]bool) int {
	n := 0
	for _, c := range conns {
		if c.SourceMachine == id && placed[c.TargetMachine] {
			n++
		}
		if c.TargetMachine == id && placed[c.SourceMachine] {
			n++
		}
	}
	return n
}

// neighborsOf returns the already-placed machine ids connected to id.
func neighborsOf(id string, conns []model.Connection, placed map[string]bool) []string {
	seen := make(map[string]bool)
	var out []string
	for _, c := range conns {
		var other string
		switch {
		case c.SourceMachine == id && placed[c.TargetMachine]:
			other = c.TargetMachine
		case c.TargetMachine == id && placed[c.SourceMachine]:
			other = c.SourceMachine
		default:
			continue
		}
		if !seen[other] {
			seen[other] = true
			out = append(out, other)
		}
	}
	sort.Strings(out)
	return out
}

// manhattanCostToPlaced estimates m's belt cost, summed over its
// connections whose other endpoint is already placed in g, using the
// Manhattan distance between external tiles.
func manhattanCostToPlaced(g *grid.GridState, m model.Machine, conns []model.Connection) int {
	inputs, outputs := geometry.Ports(m)
	total := 0
	for _, c := range conns {
		switch {
		case c.SourceMachine == m.ID:
			if other, ok := g.Machines[c.TargetMachine]; ok {
				oin, _ := geometry.Ports(other)
				if c.SourcePort < len(outputs) && c.TargetPort < len(oin) {
					total += routing.ManhattanEstimate(outputs[c.SourcePort], oin[c.TargetPort])
				}
			}
		case c.TargetMachine == m.ID:
			if other, ok := g.Machines[c.SourceMachine]; ok {
				_, oout := geometry.Ports(other)
				if c.TargetPort < len(inputs) && c.SourcePort < len(oout) {
					total += routing.ManhattanEstimate(oout[c.SourcePort], inputs[c.TargetPort])
				}
			}
		}
	}
	return total
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

var allOrientations = []model.Direction{model.North, model.East, model.South, model.West}
