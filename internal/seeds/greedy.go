package seeds

import (
	"sort"

	"beltforge/internal/grid"
	"beltforge/internal/model"
)

const placementGap = 1

// greedy places the most-connected machine at a fixed top-left slot, then
// repeatedly places the unplaced machine with the highest connectivity to
// the already-placed set, choosing for each the lowest-Manhattan-cost pose
// among positions offset one tile from an already-placed neighbor's four
// sides (flush and centered variants) across all four orientations. If no
// such pose is valid it falls back to a spiral search around the
// neighborhood's centroid.
func greedy(in Input) (*grid.GridState, bool) {
	if len(in.Machines) == 0 {
		return nil, false
	}
	g := grid.New(in.Width, in.Height)

	order := append([]model.Machine(nil), in.Machines...)
	sort.SliceStable(order, func(i, j int) bool {
		return degreeOf(order[i].ID, in.Connections) > degreeOf(order[j].ID, in.Connections)
	})

	first := order[0]
	first.X, first.Y = placementGap, placementGap
	if !fits(g, first) || !g.Place(first) {
		return nil, false
	}

	remaining := order[1:]
	placed := map[string]bool{first.ID: true}

	for len(remaining) > 0 {
		bestIdx := -1
		bestDegree := -1
		for i, m := range remaining {
			d := degreeToSet(m.ID, in.Connections, placed)
			if d > bestDegree {
				bestDegree = d
				bestIdx = i
			}
		}
		next := remaining[bestIdx]
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)

		placedPose, ok := placeNextToNeighbors(g, next, in.Connections, placed)
		if !ok {
			cx, cy := centroidOf(g, neighborsOf(next.ID, in.Connections, placed))
			placedPose, ok = spiralSearch(g, next, cx, cy)
			if !ok {
				return nil, false
			}
		}
		g.Place(placedPose)
		placed[next.ID] = true
	}

	if !wireConnections(g, in.Connections) {
		return nil, false
	}
	return g, true
}

// placeNextToNeighbors enumerates poses offset one tile from each side of
// every already-placed neighbor of m, in every orientation, and returns
// the valid one with minimum Manhattan belt cost.
func placeNextToNeighbors(g *grid.GridState, m model.Machine, conns []model.Connection, placed map[string]bool) (model.Machine, bool) {
	neighbors := neighborsOf(m.ID, conns, placed)
	if len(neighbors) == 0 {
		return model.Machine{}, false
	}

	bestCost := -1
	var best model.Machine
	found := false

	for _, nid := range neighbors {
		nb := g.Machines[nid]
		for _, orient := range allOrientations {
			candidate := m
			candidate.Orientation = orient
			w, h, ok := candidate.Dimensions()
			if !ok {
				continue
			}
			for _, pos := range adjacentPositions(nb, w, h) {
				candidate.X, candidate.Y = pos[0], pos[1]
				if !fits(g, candidate) {
					continue
				}
				cost := manhattanCostToPlaced(g, candidate, conns)
				if !found || cost < bestCost {
					found = true
					bestCost = cost
					best = candidate
				}
			}
		}
	}
	return best, found
}

// adjacentPositions returns top-left candidate positions for an mw x mh
// footprint placed one tile off each of nb's four sides, in both the
// flush (aligned to the near edge) and centered variant.
func adjacentPositions(nb model.Machine, mw, mh int) [][2]int {
	nw, nh, ok := nb.Dimensions()
	if !ok {
		return nil
	}
	nx, ny := nb.X, nb.Y

	var out [][2]int
	// North: above nb
	y := ny - mh - placementGap
	out = append(out, [2]int{nx, y}, [2]int{nx + nw - mw, y}, [2]int{nx + (nw-mw)/2, y})
	// South: below nb
	y = ny + nh + placementGap
	out = append(out, [2]int{nx, y}, [2]int{nx + nw - mw, y}, [2]int{nx + (nw-mw)/2, y})
	// West: left of nb
	x := nx - mw - placementGap
	out = append(out, [2]int{x, ny}, [2]int{x, ny + nh - mh}, [2]int{x, ny + (nh-mh)/2})
	// East: right of nb
	x = nx + nw + placementGap
	out = append(out, [2]int{x, ny}, [2]int{x, ny + nh - mh}, [2]int{x, ny + (nh-mh)/2})
	return out
}

// centroidOf averages the positions of the named machines, or returns the
// grid center if the list is empty.
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

// spiralSearch tries every orientation of m at positions in an expanding
// square ring around (cx, cy), returning the first valid pose found.
func spiralSearch(g *grid.GridState, m model.Machine, cx, cy int) (model.Machine, bool) {
	maxRadius := g.Width + g.Height
	for radius := 0; radius <= maxRadius; radius++ {
		for _, pos := range ringOffsets(cx, cy, radius) {
			for _, orient := range allOrientations {
				candidate := m
				candidate.Orientation = orient
				candidate.X, candidate.Y = pos[0], pos[1]
				if fits(g, candidate) {
					return candidate, true
				}
			}
		}
	}
	return model.Machine{}, false
}

// ringOffsets returns the integer coordinates on the boundary of the
// square of the given radius centered at (cx, cy). radius 0 is the center
// tile itself.
func ringOffsets(cx, cy, radius int) [][2]int {
	if radius == 0 {
		return [][2]int{{cx, cy}}
	}
	var out [][2]int
	for dx := -radius; dx <= radius; dx++ {
		out = append(out, [2]int{cx + dx, cy - radius}, [2]int{cx + dx, cy + radius})
	}
	for dy := -radius + 1; dy <= radius-1; dy++ {
		out = append(out, [2]int{cx - radius, cy + dy}, [2]int{cx + radius, cy + dy})
	}
	return out
}

// wireConnections registers every connection from conns onto g once all
// machines are placed.
func wireConnections(g *grid.GridState, conns []model.Connection) bool {
	for _, c := range conns {
		if err := g.AddConnection(c); err != nil {
			return false
		}
	}
	return true
}
