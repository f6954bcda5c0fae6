package operators

import (
	"beltforge/internal/geometry"
	"beltforge/internal/grid"
	"beltforge/internal/model"
	"beltforge/internal/rng"
)

type moveTowardNeighbor struct{}

func (moveTowardNeighbor) Name() string { return "move_toward_neighbor" }

func (moveTowardNeighbor) Apply(g *grid.GridState, conns []model.Connection, src rng.Source) bool {
	id, ok := pickRandomID(movableIDs(g), src)
	if !ok {
		return false
	}
	neighbor := mostConnectedNeighbor(g, id, conns)
	if neighbor == "" {
		return false
	}
	m := g.Machines[id]
	nb := g.Machines[neighbor]
	step := 1 + src.Intn(3)

	candidate := m
	if nb.X > m.X {
		candidate.X = clamp(m.X+step, 0, g.Width-1)
	} else if nb.X < m.X {
		candidate.X = clamp(m.X-step, 0, g.Width-1)
	}
	if nb.Y > m.Y {
		candidate.Y = clamp(m.Y+step, 0, g.Height-1)
	} else if nb.Y < m.Y {
		candidate.Y = clamp(m.Y-step, 0, g.Height-1)
	}
	if !fits(g, candidate) {
		return false
	}
	relocate(g, id, candidate)
	return true
}

type moveToSource struct{}

func (moveToSource) Name() string { return "move_to_source" }

func (moveToSource) Apply(g *grid.GridState, conns []model.Connection, src rng.Source) bool {
	id, ok := pickRandomID(movableIDs(g), src)
	if !ok {
		return false
	}
	var sx, sy, n int
	for _, c := range conns {
		if c.TargetMachine != id {
			continue
		}
		if other, ok := g.Machines[c.SourceMachine]; ok {
			sx += other.X
			sy += other.Y
			n++
		}
	}
	if n == 0 {
		return false
	}
	cx, cy := sx/n, sy/n
	m := g.Machines[id]
	dx, dy := cx-m.X, cy-m.Y

	candidate := m
	majorStep, minorStep := 2, 1
	if abs(dx) >= abs(dy) {
		candidate.X = clamp(m.X+signStep(dx, majorStep), 0, g.Width-1)
		candidate.Y = clamp(m.Y+signStep(dy, minorStep), 0, g.Height-1)
	} else {
		candidate.Y = clamp(m.Y+signStep(dy, majorStep), 0, g.Height-1)
		candidate.X = clamp(m.X+signStep(dx, minorStep), 0, g.Width-1)
	}
	if !fits(g, candidate) {
		return false
	}
	relocate(g, id, candidate)
	return true
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func signStep(delta, step int) int {
	if delta > 0 {
		return step
	}
	if delta < 0 {
		return -step
	}
	return 0
}

type portFacingJump struct{}

func (portFacingJump) Name() string { return "port_facing_jump" }

func (portFacingJump) Apply(g *grid.GridState, conns []model.Connection, src rng.Source) bool {
	id, ok := pickRandomID(movableIDs(g), src)
	if !ok {
		return false
	}
	neighbor := mostConnectedNeighbor(g, id, conns)
	if neighbor == "" {
		return false
	}
	nb := g.Machines[neighbor]
	m := g.Machines[id]

	bestCost := -1
	var best model.Machine
	found := false
	for _, orient := range allOrientations {
		candidate := m
		candidate.Orientation = orient
		w, h, ok := candidate.Dimensions()
		if !ok {
			continue
		}
		for _, pos := range sidePositions(nb, w, h) {
			candidate.X, candidate.Y = pos[0], pos[1]
			if !fits(g, candidate) {
				continue
			}
			cost := beltCost(g, id, candidate, conns)
			if !found || cost < bestCost {
				found, bestCost, best = true, cost, candidate
			}
		}
	}
	if !found {
		return false
	}
	relocate(g, id, best)
	return true
}

// sidePositions offsets an mw x mh footprint one tile off each of nb's
// four sides, flush and centered.
func sidePositions(nb model.Machine, mw, mh int) [][2]int {
	nw, nh, ok := nb.Dimensions()
	if !ok {
		return nil
	}
	nx, ny := nb.X, nb.Y
	var out [][2]int
	out = append(out, [2]int{nx, ny - mh - 1}, [2]int{nx + nw - mw, ny - mh - 1}, [2]int{nx + (nw-mw)/2, ny - mh - 1})
	out = append(out, [2]int{nx, ny + nh + 1}, [2]int{nx + nw - mw, ny + nh + 1}, [2]int{nx + (nw-mw)/2, ny + nh + 1})
	out = append(out, [2]int{nx - mw - 1, ny}, [2]int{nx - mw - 1, ny + nh - mh}, [2]int{nx - mw - 1, ny + (nh-mh)/2})
	out = append(out, [2]int{nx + nw + 1, ny}, [2]int{nx + nw + 1, ny + nh - mh}, [2]int{nx + nw + 1, ny + (nh-mh)/2})
	return out
}

type tryDifferentPort struct{}

func (tryDifferentPort) Name() string { return "try_different_port" }

func (tryDifferentPort) Apply(g *grid.GridState, conns []model.Connection, src rng.Source) bool {
	if len(conns) == 0 {
		return false
	}
	idx := src.Intn(len(conns))
	conn := conns[idx]
	srcMachine, ok := g.Machines[conn.SourceMachine]
	if !ok {
		return false
	}
	tgtMachine, ok := g.Machines[conn.TargetMachine]
	if !ok {
		return false
	}
	_, outputs := geometry.Ports(srcMachine)
	inputs, _ := geometry.Ports(tgtMachine)

	used := usedPorts(g, conn.SourceMachine, conn.TargetMachine, conn.ID)

	bestCost := -1
	bestSrcPort, bestTgtPort := conn.SourcePort, conn.TargetPort
	found := false
	for si, sp := range outputs {
		if used.output[si] {
			continue
		}
		for ti, tp := range inputs {
			if used.input[ti] {
				continue
			}
			cost := manhattan(sp, tp)
			if !found || cost < bestCost {
				found, bestCost, bestSrcPort, bestTgtPort = true, cost, si, ti
			}
		}
	}
	if !found || (bestSrcPort == conn.SourcePort && bestTgtPort == conn.TargetPort) {
		return false
	}
	conn.SourcePort = bestSrcPort
	conn.TargetPort = bestTgtPort
	g.Connections[conn.ID] = conn
	return true
}

type portUsage struct {
	output map[int]bool
	input  map[int]bool
}

func usedPorts(g *grid.GridState, sourceMachine, targetMachine, excludeConn string) portUsage {
	u := portUsage{output: make(map[int]bool), input: make(map[int]bool)}
	for id, c := range g.Connections {
		if id == excludeConn {
			continue
		}
		if c.SourceMachine == sourceMachine {
			u.output[c.SourcePort] = true
		}
		if c.TargetMachine == targetMachine {
			u.input[c.TargetPort] = true
		}
	}
	return u
}

func manhattan(a, b model.Port) int {
	ax, ay := geometry.ExternalTile(a)
	bx, by := geometry.ExternalTile(b)
	return geometry.ManhattanDistance(ax, ay, bx, by)
}

type randomShift struct{}

func (randomShift) Name() string { return "random_shift" }

func (randomShift) Apply(g *grid.GridState, conns []model.Connection, src rng.Source) bool {
	id, ok := pickRandomID(movableIDs(g), src)
	if !ok {
		return false
	}
	m := g.Machines[id]
	step := 1 + src.Intn(3)
	dir := cardinalDirections[src.Intn(len(cardinalDirections))]
	candidate := m
	candidate.X = clamp(m.X+dir.Dx()*step, 0, g.Width-1)
	candidate.Y = clamp(m.Y+dir.Dy()*step, 0, g.Height-1)
	if !fits(g, candidate) {
		return false
	}
	relocate(g, id, candidate)
	return true
}

type swapPositions struct{}

func (swapPositions) Name() string { return "swap_positions" }

func (swapPositions) Apply(g *grid.GridState, conns []model.Connection, src rng.Source) bool {
	ids := movableIDs(g)
	if len(ids) < 2 {
		return false
	}
	i := src.Intn(len(ids))
	j := src.Intn(len(ids))
	if i == j {
		j = (j + 1) % len(ids)
	}
	a := g.Machines[ids[i]]
	b := g.Machines[ids[j]]

	candA := a
	candA.X, candA.Y = b.X, b.Y
	candB := b
	candB.X, candB.Y = a.X, a.Y

	g.ClearCells(a.ID)
	g.ClearCells(b.ID)
	okA := fits(g, candA)
	okB := okA && fits(g, candB)
	if !okB {
		g.Place(a)
		g.Place(b)
		return false
	}
	g.Place(candA)
	g.Place(candB)
	return true
}

type rotateBest struct{}

func (rotateBest) Name() string { return "rotate_best" }

func (rotateBest) Apply(g *grid.GridState, conns []model.Connection, src rng.Source) bool {
	id, ok := pickRandomID(movableIDs(g), src)
	if !ok {
		return false
	}
	m := g.Machines[id]
	bestCost := -1
	var best model.Machine
	found := false
	for _, orient := range allOrientations {
		candidate := m
		candidate.Orientation = orient
		if !fits(g, candidate) {
			continue
		}
		cost := beltCost(g, id, candidate, conns)
		if !found || cost < bestCost {
			found, bestCost, best = true, cost, candidate
		}
	}
	if !found || best.Orientation == m.Orientation {
		return false
	}
	relocate(g, id, best)
	return true
}

type jointMoveRotate struct{}

func (jointMoveRotate) Name() string { return "joint_move_rotate" }

func (jointMoveRotate) Apply(g *grid.GridState, conns []model.Connection, src rng.Source) bool {
	id, ok := pickRandomID(movableIDs(g), src)
	if !ok {
		return false
	}
	m := g.Machines[id]
	step := 1 + src.Intn(2)
	dir := cardinalDirections[src.Intn(len(cardinalDirections))]
	candidate := m
	candidate.X = clamp(m.X+dir.Dx()*step, 0, g.Width-1)
	candidate.Y = clamp(m.Y+dir.Dy()*step, 0, g.Height-1)
	candidate.Orientation = cardinalDirections[src.Intn(len(cardinalDirections))]
	if !fits(g, candidate) {
		return false
	}
	relocate(g, id, candidate)
	return true
}
