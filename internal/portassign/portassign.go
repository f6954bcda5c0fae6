// Package portassign implements phase 3 of the optimizer: re-pairing each
// connection's source/target ports to shorten its Manhattan estimate
// without changing which machines are connected, then keeping whichever
// of the original or re-paired assignment actually routes better.
package portassign

import (
	"sort"

	"beltforge/internal/geometry"
	"beltforge/internal/grid"
	"beltforge/internal/model"
	"beltforge/internal/routing"
	"beltforge/internal/scoring"
)

// Reassign computes an alternative port pairing for conns (same machines,
// same connection ids, possibly different port indices) and returns
// whichever of the original or the optimized list builds a better grid,
// per the commit rule in spec §4.6: both route, prefer the lower routed
// score; only one routes, take it; neither routes, prefer the lower fast
// score.
func Reassign(g *grid.GridState, conns []model.Connection) []model.Connection {
	if len(conns) == 0 {
		return conns
	}
	optimized := reassignPorts(g, conns)
	return commit(g, conns, optimized)
}

type rankedConn struct {
	index  int
	length int
}

// reassignPorts walks connections longest-estimate-first and, for each,
// greedily picks the unused output/input port pair on its two machines
// minimizing the Manhattan distance between their external tiles. Port
// uniqueness is maintained incrementally across the whole pass.
func reassignPorts(g *grid.GridState, conns []model.Connection) []model.Connection {
	ranked := make([]rankedConn, len(conns))
	for i, c := range conns {
		length := 0
		if sp, tp, ok := resolveEndpoints(g, c); ok {
			length = routing.ManhattanEstimate(sp, tp)
		}
		ranked[i] = rankedConn{index: i, length: length}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].length > ranked[j].length })

	usedOutput := make(map[string]map[int]bool)
	usedInput := make(map[string]map[int]bool)
	out := append([]model.Connection(nil), conns...)

	for _, r := range ranked {
		c := conns[r.index]
		sm, okS := g.Machines[c.SourceMachine]
		tm, okT := g.Machines[c.TargetMachine]
		if !okS || !okT {
			continue
		}
		_, outputs := geometry.Ports(sm)
		inputs, _ := geometry.Ports(tm)
		if len(outputs) == 0 || len(inputs) == 0 {
			continue
		}

		bestOut, bestIn, bestDist := c.SourcePort, c.TargetPort, 0
		found := false
		for oi, op := range outputs {
			if usedOutput[c.SourceMachine][oi] {
				continue
			}
			for ii, ip := range inputs {
				if usedInput[c.TargetMachine][ii] {
					continue
				}
				dist := routing.ManhattanEstimate(op, ip)
				if !found || dist < bestDist {
					found, bestOut, bestIn, bestDist = true, oi, ii, dist
				}
			}
		}
		markUsed(usedOutput, c.SourceMachine, bestOut)
		markUsed(usedInput, c.TargetMachine, bestIn)
		out[r.index].SourcePort = bestOut
		out[r.index].TargetPort = bestIn
	}
	return out
}

func markUsed(usage map[string]map[int]bool, machineID string, idx int) {
	if usage[machineID] == nil {
		usage[machineID] = make(map[int]bool)
	}
	usage[machineID][idx] = true
}

func resolveEndpoints(g *grid.GridState, c model.Connection) (src, tgt model.Port, ok bool) {
	sm, okS := g.Machines[c.SourceMachine]
	tm, okT := g.Machines[c.TargetMachine]
	if !okS || !okT {
		return model.Port{}, model.Port{}, false
	}
	_, outputs := geometry.Ports(sm)
	inputs, _ := geometry.Ports(tm)
	if c.SourcePort >= len(outputs) || c.TargetPort >= len(inputs) {
		return model.Port{}, model.Port{}, false
	}
	return outputs[c.SourcePort], inputs[c.TargetPort], true
}

// commit builds both candidate connection lists on fresh machine-only
// grids, routes each fully, and picks the winner per the phase 3 commit
// rule.
func commit(g *grid.GridState, original, optimized []model.Connection) []model.Connection {
	origGrid := freshMachineGrid(g)
	origRouted := buildAndRoute(origGrid, original)
	origScore := scoring.Routed(origGrid)
	if !origRouted {
		origScore = scoring.Fast(origGrid)
	}

	optGrid := freshMachineGrid(g)
	optRouted := buildAndRoute(optGrid, optimized)
	optScore := scoring.Routed(optGrid)
	if !optRouted {
		optScore = scoring.Fast(optGrid)
	}

	switch {
	case optRouted && !origRouted:
		return optimized
	case origRouted && !optRouted:
		return original
	default:
		if scoring.Compare(optScore, origScore) < 0 {
			return optimized
		}
		return original
	}
}

func freshMachineGrid(g *grid.GridState) *grid.GridState {
	fresh := grid.New(g.Width, g.Height)
	for _, m := range g.Machines {
		fresh.Place(m)
	}
	return fresh
}

// buildAndRoute wires every connection onto g and routes it in id order,
// stopping at (and reporting) the first unroutable connection.
func buildAndRoute(g *grid.GridState, conns []model.Connection) bool {
	ordered := append([]model.Connection(nil), conns...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })
	for _, c := range ordered {
		if err := g.AddConnection(c); err != nil {
			return false
		}
	}
	for _, c := range ordered {
		sp, tp, ok := resolveEndpoints(g, c)
		if !ok {
			return false
		}
		path, ok := routing.FindPath(g, sp, tp, "")
		if !ok {
			return false
		}
		path.ConnectionID = c.ID
		routing.Apply(g, path)
	}
	return true
}
