// Package routing implements the turn-penalized A* belt router: a single
// find_belt_path call per connection, plus the apply/remove bookkeeping
// and the Manhattan estimator used by the fast scoring proxy.
package routing

import (
	"container/heap"

	"beltforge/internal/geometry"
	"beltforge/internal/grid"
	"beltforge/internal/model"
)

const (
	turnPenalty    = 2.0
	crossingBonus  = 0.5
	straightCost   = 1.0
)

type state struct {
	x, y int
	dir  model.Direction
}

// FindPath runs the turn-penalized A* search between src and tgt on g.
// excludeConnID names a connection whose existing belt path (if any) must
// be treated as absent from tile-usage accounting while searching — used
// when rerouting a connection that already has a path. It returns
// ok=false if no path exists.
func FindPath(g *grid.GridState, src, tgt model.Port, excludeConnID string) (grid.BeltPath, bool) {
	startX, startY := geometry.ExternalTile(src)
	goalX, goalY := geometry.ExternalTile(tgt)
	if !g.InBounds(startX, startY) || !g.InBounds(goalX, goalY) {
		return grid.BeltPath{}, false
	}
	if g.Cell(startX, startY).Kind == grid.MachineCell || g.Cell(goalX, goalY).Kind == grid.MachineCell {
		return grid.BeltPath{}, false
	}
	startUsage := g.EffectiveUsage(startX, startY, excludeConnID)
	if startUsage.Corner > 0 {
		return grid.BeltPath{}, false
	}
	goalUsage := g.EffectiveUsage(goalX, goalY, excludeConnID)
	if goalUsage.Corner > 0 {
		return grid.BeltPath{}, false
	}

	requiredArrival := tgt.ApproachDirection.Opposite()
	startIncoming := src.ApproachDirection

	open := &priorityQueue{}
	heap.Init(open)

	bestG := make(map[state]float64)
	cameFrom := make(map[state]state)
	cameDir := make(map[state]model.Direction) // direction used to *enter* this state (==state.dir, kept for clarity)

	start := state{startX, startY, startIncoming}
	bestG[start] = 0
	heap.Push(open, &pqItem{state: start, g: 0, f: heuristic(startX, startY, goalX, goalY)})

	var goalState state
	found := false

	for open.Len() > 0 {
		item := heap.Pop(open).(*pqItem)
		cur := item.state
		if g, ok := bestG[cur]; ok && item.g > g+1e-9 {
			continue // stale entry
		}
		if cur.x == goalX && cur.y == goalY && cur.dir == requiredArrival {
			goalState = cur
			found = true
			break
		}

		for _, moveDir := range []model.Direction{model.North, model.East, model.South, model.West} {
			nx, ny := cur.x+moveDir.Dx(), cur.y+moveDir.Dy()
			if !g.InBounds(nx, ny) {
				continue
			}
			if g.Cell(nx, ny).Kind == grid.MachineCell {
				continue
			}
			isStart := cur == start
			isTurn := moveDir != cur.dir
			if !isStart {
				curUsage := g.EffectiveUsage(cur.x, cur.y, excludeConnID)
				if !axisFree(curUsage, cur.dir, isTurn) {
					continue
				}
			} else {
				// The very first segment is never a geometric corner
				// (From is nil), so its departure follows the
				// straight-through compatibility rule regardless of
				// whether moveDir matches the port's approach direction.
				if !axisFree(startUsage, moveDir, false) {
					continue
				}
			}

			neighborUsage := g.EffectiveUsage(nx, ny, excludeConnID)
			if !axisFree(neighborUsage, moveDir, false) {
				continue
			}

			cost := straightCost
			if isTurn {
				cost += turnPenalty
			}
			if neighborUsage.Horizontal > 0 || neighborUsage.Vertical > 0 {
				cost += crossingBonus
			}

			next := state{nx, ny, moveDir}
			ng := item.g + cost
			if existing, ok := bestG[next]; ok && ng >= existing-1e-9 {
				continue
			}
			bestG[next] = ng
			cameFrom[next] = cur
			cameDir[next] = moveDir
			heap.Push(open, &pqItem{state: next, g: ng, f: ng + heuristic(nx, ny, goalX, goalY)})
		}
	}

	if !found {
		return grid.BeltPath{}, false
	}
	return grid.BeltPath{ConnectionID: excludeConnID, Segments: reconstruct(cameFrom, goalState, start)}, true
}

// axisFree reports whether a tile with usage eu admits a belt moving along
// moveDir. requireFullyFree demands the tile carry no usage at all (used
// when the move turns at that tile, since a corner tile must be
// exclusive); otherwise only the same-axis count must be zero, so an
// orthogonal crossing is allowed.
func axisFree(eu grid.TileUsage, moveDir model.Direction, requireFullyFree bool) bool {
	if eu.Corner > 0 {
		return false
	}
	if requireFullyFree {
		return eu.Horizontal == 0 && eu.Vertical == 0
	}
	if moveDir.Horizontal() {
		return eu.Horizontal == 0
	}
	return eu.Vertical == 0
}

func heuristic(x, y, gx, gy int) float64 {
	return float64(geometry.ManhattanDistance(x, y, gx, gy))
}

func reconstruct(cameFrom map[state]state, goal, start state) []grid.Segment {
	var states []state
	for s := goal; ; {
		states = append(states, s)
		if s == start {
			break
		}
		s = cameFrom[s]
	}
	// states is goal..start; reverse to start..goal
	for i, j := 0, len(states)-1; i < j; i, j = i+1, j-1 {
		states[i], states[j] = states[j], states[i]
	}

	segments := make([]grid.Segment, len(states))
	for i, s := range states {
		seg := grid.Segment{X: s.x, Y: s.y}
		if i > 0 {
			from := s.dir // s.dir is the direction used to arrive at this tile
			seg.From = &from
		}
		if i < len(states)-1 {
			to := states[i+1].dir
			seg.To = &to
		}
		segments[i] = seg
	}
	return segments
}
