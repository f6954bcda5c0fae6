// Package polish implements phase 4 of the optimizer: bounding-box
// compaction and a per-machine orientation sweep, both applied only when
// they do not make the routed layout worse than it already was.
package polish

import (
	"sort"

	"beltforge/internal/geometry"
	"beltforge/internal/grid"
	"beltforge/internal/model"
	"beltforge/internal/routing"
	"beltforge/internal/scoring"
)

const maxCompactionPasses = 30

type evalResult struct {
	routed bool
	score  scoring.Score
}

func evaluate(g *grid.GridState, routed bool) evalResult {
	if routed {
		return evalResult{routed: true, score: scoring.Routed(g)}
	}
	return evalResult{routed: false, score: scoring.Fast(g)}
}

// better reports whether candidate should replace current: a routed
// candidate always beats an unroutable one, and within the same
// routed-ness bucket the lower score wins.
func better(candidate, current evalResult) bool {
	if candidate.routed != current.routed {
		return candidate.routed
	}
	return scoring.Compare(candidate.score, current.score) < 0
}

// Polish runs compaction followed by orientation polish, returning the
// best grid found (which may just be the fully-routed input, unchanged,
// if neither pass improves on it).
func Polish(g *grid.GridState, conns []model.Connection) *grid.GridState {
	compacted := Compact(g, conns)
	return OrientationPolish(compacted, conns)
}

// Compact translates the bounding box of movable machines to (1,1), then
// repeatedly walks machines in ascending x+y order nudging each one tile
// toward the origin (x first, then y) while it stays in bounds and
// collision-free, until a full pass makes no further progress or
// maxCompactionPasses is reached. The result is committed only if its
// routed score is no worse than the input's.
func Compact(g *grid.GridState, conns []model.Connection) *grid.GridState {
	baseline := freshMachineGrid(g)
	baselineRouted := buildAndRoute(baseline, conns)
	baselineEval := evaluate(baseline, baselineRouted)

	trial := freshMachineGrid(g)
	if !translateToOrigin(trial) {
		return baseline
	}
	for pass := 0; pass < maxCompactionPasses; pass++ {
		if !compactionSweep(trial) {
			break
		}
	}
	trialRouted := buildAndRoute(trial, conns)
	trialEval := evaluate(trial, trialRouted)

	if !worse(trialEval, baselineEval) {
		return trial
	}
	return baseline
}

// worse reports strict regression, the mirror of better with equal
// scores treated as acceptable (compaction ties are kept, since the
// tighter bounding box has value even when belts/corners are unchanged).
func worse(candidate, current evalResult) bool {
	if candidate.routed != current.routed {
		return !candidate.routed
	}
	return scoring.Compare(candidate.score, current.score) > 0
}

func translateToOrigin(g *grid.GridState) bool {
	ids := movableIDs(g)
	if len(ids) == 0 {
		return true
	}
	minX, minY := g.Width, g.Height
	for _, id := range ids {
		m := g.Machines[id]
		if m.X < minX {
			minX = m.X
		}
		if m.Y < minY {
			minY = m.Y
		}
	}
	dx, dy := 1-minX, 1-minY
	if dx == 0 && dy == 0 {
		return true
	}
	shifted := make(map[string]model.Machine, len(ids))
	for _, id := range ids {
		m := g.Machines[id]
		m.X += dx
		m.Y += dy
		shifted[id] = m
	}
	for _, id := range ids {
		g.ClearCells(id)
	}
	for _, id := range ids {
		if !g.Place(shifted[id]) {
			// Roll back: put every movable machine back where it was.
			for _, rid := range ids {
				g.ClearCells(rid)
			}
			for _, rid := range ids {
				orig := shifted[rid]
				orig.X -= dx
				orig.Y -= dy
				g.Place(orig)
			}
			return false
		}
	}
	return true
}

// compactionSweep performs one ascending-(x+y)-order pass, trying to move
// each movable machine one tile closer to the origin on x then y. It
// reports whether any machine actually moved.
func compactionSweep(g *grid.GridState) bool {
	ids := movableIDs(g)
	sort.SliceStable(ids, func(i, j int) bool {
		mi, mj := g.Machines[ids[i]], g.Machines[ids[j]]
		return mi.X+mi.Y < mj.X+mj.Y
	})

	moved := false
	for _, id := range ids {
		m := g.Machines[id]
		if tryStep(g, m, -1, 0) {
			moved = true
			m = g.Machines[id]
		}
		if tryStep(g, m, 0, -1) {
			moved = true
		}
	}
	return moved
}

func tryStep(g *grid.GridState, m model.Machine, dx, dy int) bool {
	if m.X+dx < 0 || m.Y+dy < 0 {
		return false
	}
	candidate := m
	candidate.X += dx
	candidate.Y += dy
	g.ClearCells(m.ID)
	if g.Place(candidate) {
		return true
	}
	g.Place(m)
	return false
}

// OrientationPolish tries the three non-current orientations for every
// movable machine, keeping a strict routed-score improvement (falling
// back to the fast score when neither the current nor the candidate
// pose can be fully routed) and otherwise leaving the machine untouched.
func OrientationPolish(g *grid.GridState, conns []model.Connection) *grid.GridState {
	current := freshMachineGrid(g)
	currentRouted := buildAndRoute(current, conns)
	currentEval := evaluate(current, currentRouted)

	for _, id := range movableIDs(current) {
		orig := current.Machines[id]
		for _, orient := range otherOrientations(orig.Orientation) {
			candidateMachine := orig
			candidateMachine.Orientation = orient

			trial := freshMachineGrid(current)
			trial.ClearCells(id)
			if !trial.Place(candidateMachine) {
				continue
			}
			trialRouted := buildAndRoute(trial, conns)
			trialEval := evaluate(trial, trialRouted)
			if better(trialEval, currentEval) {
				current = trial
				currentEval = trialEval
			}
		}
	}
	return current
}

func otherOrientations(current model.Direction) []model.Direction {
	all := []model.Direction{model.North, model.East, model.South, model.West}
	out := make([]model.Direction, 0, 3)
	for _, o := range all {
		if o != current {
			out = append(out, o)
		}
	}
	return out
}

func movableIDs(g *grid.GridState) []string {
	var ids []string
	for id, m := range g.Machines {
		if !m.Type.Immovable() {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

func freshMachineGrid(g *grid.GridState) *grid.GridState {
	fresh := grid.New(g.Width, g.Height)
	for _, m := range g.Machines {
		fresh.Place(m)
	}
	return fresh
}

// buildAndRoute wires and routes every connection in id order, reporting
// whether all of them found a path.
func buildAndRoute(g *grid.GridState, conns []model.Connection) bool {
	ordered := append([]model.Connection(nil), conns...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })
	for _, c := range ordered {
		if err := g.AddConnection(c); err != nil {
			return false
		}
	}
	allRouted := true
	for _, c := range ordered {
		sm, okS := g.Machines[c.SourceMachine]
		tm, okT := g.Machines[c.TargetMachine]
		if !okS || !okT {
			allRouted = false
			continue
		}
		inputs, _ := geometry.Ports(tm)
		_, outputs := geometry.Ports(sm)
		if c.SourcePort >= len(outputs) || c.TargetPort >= len(inputs) {
			allRouted = false
			continue
		}
		path, ok := routing.FindPath(g, outputs[c.SourcePort], inputs[c.TargetPort], "")
		if !ok {
			allRouted = false
			continue
		}
		path.ConnectionID = c.ID
		routing.Apply(g, path)
	}
	return allRouted
}
