package operators

import (
	"sort"

	"beltforge/internal/geometry"
	"beltforge/internal/grid"
	"beltforge/internal/model"
	"beltforge/internal/rng"
)

const (
	clusterMoveMinSize = 2
	clusterMoveMaxSize = 6
	repairBeamWidth     = 3
)

type clusterDestroyRepair struct{}

func (clusterDestroyRepair) Name() string { return "cluster_destroy_repair" }

func (clusterDestroyRepair) Apply(g *grid.GridState, conns []model.Connection, src rng.Source) bool {
	ids := movableIDs(g)
	if len(ids) < clusterMoveMinSize {
		return false
	}
	start, ok := pickRandomID(ids, src)
	if !ok {
		return false
	}
	size := clusterMoveMinSize + src.Intn(clusterMoveMaxSize-clusterMoveMinSize+1)
	cluster := weightedWalkCluster(g, conns, start, size, src)
	if len(cluster) < clusterMoveMinSize {
		return false
	}
	return commitBeam(g, cluster, conns, src)
}

// weightedWalkCluster grows a connected cluster of movable machines
// starting at start, at each step moving to a random neighbor weighted by
// connection count, until it reaches size or runs out of room.
func weightedWalkCluster(g *grid.GridState, conns []model.Connection, start string, size int, src rng.Source) []string {
	visited := map[string]bool{start: true}
	cluster := []string{start}
	current := start

	for len(cluster) < size {
		weights := neighborWeights(g, conns, current, visited)
		if len(weights) == 0 {
			// try any unvisited movable machine already in the cluster's
			// frontier before giving up on growing further
			grown := false
			for _, id := range cluster {
				w := neighborWeights(g, conns, id, visited)
				if len(w) > 0 {
					weights = w
					grown = true
					break
				}
			}
			if !grown {
				break
			}
		}
		next := weightedPick(weights, src)
		visited[next] = true
		cluster = append(cluster, next)
		current = next
	}
	return cluster
}

func neighborWeights(g *grid.GridState, conns []model.Connection, id string, visited map[string]bool) map[string]int {
	weights := make(map[string]int)
	for _, c := range conns {
		var other string
		switch {
		case c.SourceMachine == id:
			other = c.TargetMachine
		case c.TargetMachine == id:
			other = c.SourceMachine
		default:
			continue
		}
		if visited[other] {
			continue
		}
		m, ok := g.Machines[other]
		if !ok || m.Type.Immovable() {
			continue
		}
		weights[other]++
	}
	return weights
}

func weightedPick(weights map[string]int, src rng.Source) string {
	var ids []string
	total := 0
	for id, w := range weights {
		ids = append(ids, id)
		total += w
	}
	sort.Strings(ids)
	if total == 0 {
		return ids[src.Intn(len(ids))]
	}
	roll := src.Intn(total)
	acc := 0
	for _, id := range ids {
		acc += weights[id]
		if roll < acc {
			return id
		}
	}
	return ids[len(ids)-1]
}

// commitBeam runs a repair beam on cluster and, if it produces a valid
// layout, copies the winning machine poses back onto g.
func commitBeam(g *grid.GridState, cluster []string, conns []model.Connection, src rng.Source) bool {
	winner, ok := repairBeam(g, cluster, conns, src, repairBeamWidth)
	if !ok {
		return false
	}
	for _, id := range cluster {
		g.ClearCells(id)
	}
	for _, id := range cluster {
		g.Place(winner.Machines[id])
	}
	return true
}

type criticalNetFocus struct{}

func (criticalNetFocus) Name() string { return "critical_net_focus" }

func (criticalNetFocus) Apply(g *grid.GridState, conns []model.Connection, src rng.Source) bool {
	if len(conns) == 0 {
		return false
	}
	type painful struct {
		conn model.Connection
		pain int
	}
	var ranked []painful
	for _, c := range conns {
		sm, ok1 := g.Machines[c.SourceMachine]
		tm, ok2 := g.Machines[c.TargetMachine]
		if !ok1 || !ok2 {
			continue
		}
		_, outputs := geometry.Ports(sm)
		inputs, _ := geometry.Ports(tm)
		if c.SourcePort >= len(outputs) || c.TargetPort >= len(inputs) {
			continue
		}
		sp, tp := outputs[c.SourcePort], inputs[c.TargetPort]
		dist := manhattan(sp, tp)
		sx, sy := geometry.ExternalTile(sp)
		tx, ty := geometry.ExternalTile(tp)
		cornerProxy := 0
		if sx != tx && sy != ty {
			cornerProxy = 1
		}
		ranked = append(ranked, painful{conn: c, pain: dist + cornerProxy})
	}
	if len(ranked) == 0 {
		return false
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].pain > ranked[j].pain })

	top := (len(ranked)*35 + 99) / 100
	if top < 1 {
		top = 1
	}
	picked := ranked[src.Intn(top)]

	clusterSet := map[string]bool{
		picked.conn.SourceMachine: true,
		picked.conn.TargetMachine: true,
	}
	painByMachine := map[string]int{
		picked.conn.SourceMachine: picked.pain,
		picked.conn.TargetMachine: picked.pain,
	}
	for _, r := range ranked {
		for _, id := range []string{r.conn.SourceMachine, r.conn.TargetMachine} {
			if clusterSet[picked.conn.SourceMachine] && (r.conn.SourceMachine == picked.conn.SourceMachine || r.conn.TargetMachine == picked.conn.SourceMachine ||
				r.conn.SourceMachine == picked.conn.TargetMachine || r.conn.TargetMachine == picked.conn.TargetMachine) {
				if painByMachine[id] < r.pain {
					painByMachine[id] = r.pain
				}
				clusterSet[id] = true
			}
		}
	}

	maxSize := clusterMoveMaxSize
	if maxSize > 4 {
		maxSize = 4
	}
	cluster := capClusterBySize(clusterSet, painByMachine, maxSize)
	cluster = filterMovable(g, cluster)
	if len(cluster) < 1 {
		return false
	}

	if commitBeam(g, cluster, conns, src) {
		return true
	}
	// fall back to repairing the two endpoints individually
	repaired := false
	for _, id := range []string{picked.conn.SourceMachine, picked.conn.TargetMachine} {
		m, ok := g.Machines[id]
		if !ok || m.Type.Immovable() {
			continue
		}
		g.ClearCells(id)
		placed, ok := repairPlacement(g, m, conns, src)
		if !ok {
			g.Place(m)
			continue
		}
		g.Place(placed)
		repaired = true
	}
	return repaired
}

func capClusterBySize(set map[string]bool, pain map[string]int, maxSize int) []string {
	var ids []string
	for id := range set {
		ids = append(ids, id)
	}
	sort.SliceStable(ids, func(i, j int) bool { return pain[ids[i]] > pain[ids[j]] })
	if len(ids) > maxSize {
		ids = ids[:maxSize]
	}
	return ids
}

func filterMovable(g *grid.GridState, ids []string) []string {
	var out []string
	for _, id := range ids {
		if m, ok := g.Machines[id]; ok && !m.Type.Immovable() {
			out = append(out, id)
		}
	}
	return out
}
