package seeds

import (
	"sort"

	"beltforge/internal/grid"
	"beltforge/internal/model"
)

// assignLayers assigns each machine to the row one past the deepest row of
// any predecessor, via Kahn's algorithm on the connection graph — a
// longest-path layering identical in shape to a topological sort. Source
// machines (no incoming connections) land at layer 0.
func assignLayers(machines []model.Machine, conns []model.Connection) map[string]int {
	inDegree := make(map[string]int, len(machines))
	children := make(map[string][]string)
	layer := make(map[string]int, len(machines))

	for _, m := range machines {
		inDegree[m.ID] = 0
	}
	for _, c := range conns {
		inDegree[c.TargetMachine]++
		children[c.SourceMachine] = append(children[c.SourceMachine], c.TargetMachine)
	}

	var queue []string
	for _, m := range machines {
		if inDegree[m.ID] == 0 {
			queue = append(queue, m.ID)
		}
	}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, child := range children[cur] {
			if row := layer[cur] + 1; row > layer[child] {
				layer[child] = row
			}
			inDegree[child]--
			if inDegree[child] == 0 {
				queue = append(queue, child)
			}
		}
	}
	return layer
}

// topologyLayered packs machines into rows by longest-path layer, orders
// each row by iterated barycentric sweeps against the row above and
// below, and lays the rows out top to bottom, machines in a row separated
// by a fixed placementGap; the gap does not vary with machine width.
// Positions that collide are repaired with a spiral search.
func topologyLayered(in Input) (*grid.GridState, bool) {
	if len(in.Machines) == 0 {
		return nil, false
	}
	layer := assignLayers(in.Machines, in.Connections)

	maxLayer := 0
	rows := make(map[int][]string)
	byID := make(map[string]model.Machine, len(in.Machines))
	for _, m := range in.Machines {
		byID[m.ID] = m
		l := layer[m.ID]
		rows[l] = append(rows[l], m.ID)
		if l > maxLayer {
			maxLayer = l
		}
	}
	for l := range rows {
		sort.Strings(rows[l])
	}

	barycenterSweep(rows, maxLayer, in.Connections, true)
	barycenterSweep(rows, maxLayer, in.Connections, false)

	g := grid.New(in.Width, in.Height)
	y := placementGap
	for l := 0; l <= maxLayer; l++ {
		ids := rows[l]
		if len(ids) == 0 {
			continue
		}
		rowHeight := 0
		x := placementGap
		for _, id := range ids {
			m := byID[id]
			m.Orientation = model.North
			w, h, ok := m.Dimensions()
			if !ok {
				return nil, false
			}
			m.X, m.Y = x, y
			if !fits(g, m) {
				repaired, ok := spiralSearch(g, m, x, y)
				if !ok {
					return nil, false
				}
				m = repaired
				_, h = mustDims(m)
			}
			g.Place(m)
			x = m.X + w + placementGap
			if h > rowHeight {
				rowHeight = h
			}
		}
		y += rowHeight + placementGap
	}

	if !wireConnections(g, in.Connections) {
		return nil, false
	}
	return g, true
}

func mustDims(m model.Machine) (int, int) {
	w, h, _ := m.Dimensions()
	return w, h
}

// barycenterSweep reorders each row in place by the mean index of its
// neighbors in the adjacent row: predecessors (up pass) or successors
// (down pass), passing top-to-bottom for the up pass and bottom-to-top
// for the down pass.
func barycenterSweep(rows map[int][]string, maxLayer int, conns []model.Connection, upPass bool) {
	predecessors := make(map[string][]string)
	successors := make(map[string][]string)
	for _, c := range conns {
		predecessors[c.TargetMachine] = append(predecessors[c.TargetMachine], c.SourceMachine)
		successors[c.SourceMachine] = append(successors[c.SourceMachine], c.TargetMachine)
	}

	order := func(l int) {
		ids := rows[l]
		if len(ids) == 0 {
			return
		}
		var reference []string
		if upPass {
			reference = rows[l-1]
		} else {
			reference = rows[l+1]
		}
		index := make(map[string]int, len(reference))
		for i, id := range reference {
			index[id] = i
		}
		neighborSet := predecessors
		if !upPass {
			neighborSet = successors
		}
		barycenter := make(map[string]float64, len(ids))
		for _, id := range ids {
			refs := neighborSet[id]
			if len(refs) == 0 {
				barycenter[id] = float64(index[id])
				continue
			}
			sum := 0.0
			for _, r := range refs {
				if pos, ok := index[r]; ok {
					sum += float64(pos)
				}
			}
			barycenter[id] = sum / float64(len(refs))
		}
		sort.SliceStable(ids, func(i, j int) bool {
			return barycenter[ids[i]] < barycenter[ids[j]]
		})
	}

	if upPass {
		for l := 1; l <= maxLayer; l++ {
			order(l)
		}
	} else {
		for l := maxLayer - 1; l >= 0; l-- {
			order(l)
		}
	}
}
