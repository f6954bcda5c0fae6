package operators

import (
	"sort"

	"beltforge/internal/grid"
	"beltforge/internal/model"
	"beltforge/internal/rng"
	"beltforge/internal/routing"
	"beltforge/internal/scoring"
)

// repairPlacement finds the best in-bounds, non-overlapping pose for m
// among positions offset one tile from each face of its already-placed
// neighbors (flush and centered variants), 24 random jitters within five
// tiles of the neighbor centroid, and its original pose. It returns
// ok=false if nothing valid was found.
func repairPlacement(g *grid.GridState, m model.Machine, conns []model.Connection, src rng.Source) (model.Machine, bool) {
	placed := make(map[string]bool, len(g.Machines))
	for id := range g.Machines {
		placed[id] = true
	}
	neighbors := neighborsOf(m.ID, conns, placed)

	var candidates []model.Machine
	for _, nid := range neighbors {
		nb := g.Machines[nid]
		for _, orient := range allOrientations {
			cand := m
			cand.Orientation = orient
			w, h, ok := cand.Dimensions()
			if !ok {
				continue
			}
			for _, pos := range sidePositions(nb, w, h) {
				c := cand
				c.X, c.Y = pos[0], pos[1]
				candidates = append(candidates, c)
			}
		}
	}

	cx, cy := centroidOf(g, neighbors)
	for i := 0; i < 24; i++ {
		cand := m
		cand.Orientation = allOrientations[src.Intn(len(allOrientations))]
		cand.X = clamp(cx+src.Intn(11)-5, 0, g.Width-1)
		cand.Y = clamp(cy+src.Intn(11)-5, 0, g.Height-1)
		candidates = append(candidates, cand)
	}
	candidates = append(candidates, m)

	bestCost := -1
	var best model.Machine
	found := false
	for _, cand := range candidates {
		if !fits(g, cand) {
			continue
		}
		cost := beltCost(g, m.ID, cand, conns)
		if !found || cost < bestCost {
			found, bestCost, best = true, cost, cand
		}
	}
	return best, found
}

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
		if other != "" && !seen[other] {
			seen[other] = true
			out = append(out, other)
		}
	}
	sort.Strings(out)
	return out
}

func centroidOf(g *grid.GridState, ids []string) (int, int) {
	if len(ids) == 0 {
		return g.Width / 2, g.Height / 2
	}
	sx, sy := 0, 0
	for _, id := range ids {
		m := g.Machines[id]
		sx += m.X
		sy += m.Y
	}
	return sx / len(ids), sy / len(ids)
}

// destroyAndRepair removes every machine in cluster from g, then reinserts
// them in decreasing external-connection order via repairPlacement. If any
// reinsertion fails the cluster is restored to its snapshot and the
// operator reports failure.
func destroyAndRepair(g *grid.GridState, cluster []string, conns []model.Connection, src rng.Source) bool {
	snapshot := make(map[string]model.Machine, len(cluster))
	for _, id := range cluster {
		snapshot[id] = g.Machines[id]
	}

	clusterSet := make(map[string]bool, len(cluster))
	for _, id := range cluster {
		clusterSet[id] = true
	}
	externalDegree := make(map[string]int, len(cluster))
	for _, c := range conns {
		if clusterSet[c.SourceMachine] && !clusterSet[c.TargetMachine] {
			externalDegree[c.SourceMachine]++
		}
		if clusterSet[c.TargetMachine] && !clusterSet[c.SourceMachine] {
			externalDegree[c.TargetMachine]++
		}
	}

	order := append([]string(nil), cluster...)
	sort.SliceStable(order, func(i, j int) bool {
		return externalDegree[order[i]] > externalDegree[order[j]]
	})

	for _, id := range order {
		g.ClearCells(id)
	}

	for _, id := range order {
		m := snapshot[id]
		placed, ok := repairPlacement(g, m, conns, src)
		if !ok {
			restoreSnapshot(g, snapshot)
			return false
		}
		g.Place(placed)
	}
	return true
}

func restoreSnapshot(g *grid.GridState, snapshot map[string]model.Machine) {
	for id := range snapshot {
		g.ClearCells(id)
	}
	for _, m := range snapshot {
		g.Place(m)
	}
}

// repairBeam runs width independent destroy-and-repair attempts on
// clones of g, each with its own spawned sub-stream, and keeps the one
// with the best routed score: a cluster reinsertion that shortens
// Manhattan distance can still force a worse A* detour around a blocking
// machine, so the beam must compare actual routes, not the proxy. g is
// left untouched; the winning clone is returned.
func repairBeam(g *grid.GridState, cluster []string, conns []model.Connection, src rng.Source, width int) (*grid.GridState, bool) {
	if width < 1 {
		width = 1
	}
	var best *grid.GridState
	bestScore := scoring.Score{}
	found := false

	for i := 0; i < width; i++ {
		clone := g.Clone()
		sub := src.Spawn()
		if !destroyAndRepair(clone, cluster, conns, sub) {
			continue
		}
		sc := routedScore(clone, conns)
		if !found || scoring.Compare(sc, bestScore) < 0 {
			found, best, bestScore = true, clone, sc
		}
	}
	return best, found
}

// routedScore builds a fresh grid from clone's placed machines plus conns
// and attempts to route every connection, the same pattern as
// optimizer.evaluateRouted/seeds.routeAll, falling back to the Manhattan
// proxy only when routing fails.
func routedScore(clone *grid.GridState, conns []model.Connection) scoring.Score {
	route := grid.New(clone.Width, clone.Height)
	for _, m := range clone.Machines {
		route.Place(m)
	}

	ordered := append([]model.Connection(nil), conns...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })
	for _, c := range ordered {
		route.AddConnection(c)
	}

	for _, c := range ordered {
		src, tgt, ok := resolveRepairPorts(route, c)
		if !ok {
			return scoring.Fast(route)
		}
		path, ok := routing.FindPath(route, src, tgt, "")
		if !ok {
			return scoring.Fast(route)
		}
		path.ConnectionID = c.ID
		routing.Apply(route, path)
	}
	return scoring.Routed(route)
}

func resolveRepairPorts(g *grid.GridState, conn model.Connection) (src, tgt model.Port, ok bool) {
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
