package operators

import (
	"math"
	"testing"

	"beltforge/internal/grid"
	"beltforge/internal/model"
	"beltforge/internal/rng"
)

func twoMachineGrid() (*grid.GridState, []model.Connection) {
	g := grid.New(30, 30)
	a := model.Machine{ID: "a", Type: model.Type3x3, X: 2, Y: 2, Orientation: model.North}
	b := model.Machine{ID: "b", Type: model.Type3x3, X: 20, Y: 20, Orientation: model.North}
	g.Place(a)
	g.Place(b)
	conns := []model.Connection{
		{ID: "c1", SourceMachine: "a", SourcePort: 0, TargetMachine: "b", TargetPort: 0},
	}
	g.AddConnection(conns[0])
	return g, conns
}

func assertNoOverlap(t *testing.T, g *grid.GridState) {
	t.Helper()
	owner := make(map[[2]int]string)
	for id, m := range g.Machines {
		w, h, ok := m.Dimensions()
		if !ok {
			t.Fatalf("machine %s has no dimensions", id)
		}
		for dy := 0; dy < h; dy++ {
			for dx := 0; dx < w; dx++ {
				key := [2]int{m.X + dx, m.Y + dy}
				if other, taken := owner[key]; taken {
					t.Fatalf("tile %v claimed by both %s and %s", key, other, id)
				}
				owner[key] = id
			}
		}
	}
}

func TestAllOperatorsLeaveTheGridConsistent(t *testing.T) {
	for _, op := range All() {
		g, conns := twoMachineGrid()
		src := rng.NewLCG(1)
		// Give every operator several tries since some are probabilistic
		// no-ops on a two-machine grid (e.g. cluster sizing).
		for i := 0; i < 20; i++ {
			op.Apply(g, conns, src)
		}
		assertNoOverlap(t, g)
		if len(g.Machines) != 2 {
			t.Fatalf("operator %s changed the machine count to %d", op.Name(), len(g.Machines))
		}
	}
}

func TestMoveTowardNeighborStaysInBounds(t *testing.T) {
	g, conns := twoMachineGrid()
	src := rng.NewLCG(5)
	op := moveTowardNeighbor{}
	for i := 0; i < 50; i++ {
		op.Apply(g, conns, src)
		for _, m := range g.Machines {
			if m.X < 0 || m.Y < 0 || m.X >= g.Width || m.Y >= g.Height {
				t.Fatalf("machine %s left the grid: (%d,%d)", m.ID, m.X, m.Y)
			}
		}
	}
}

func TestSwapPositionsExchangesCoordinates(t *testing.T) {
	g, conns := twoMachineGrid()
	aBefore := g.Machines["a"]
	bBefore := g.Machines["b"]
	op := swapPositions{}
	src := rng.NewLCG(2)
	ok := op.Apply(g, conns, src)
	if !ok {
		t.Fatal("expected the swap to succeed on two non-overlapping machines")
	}
	aAfter := g.Machines["a"]
	bAfter := g.Machines["b"]
	if aAfter.X != bBefore.X || aAfter.Y != bBefore.Y {
		t.Fatalf("expected a to move to b's old position, got (%d,%d)", aAfter.X, aAfter.Y)
	}
	if bAfter.X != aBefore.X || bAfter.Y != aBefore.Y {
		t.Fatalf("expected b to move to a's old position, got (%d,%d)", bAfter.X, bAfter.Y)
	}
}

func TestDispatcherSelectReturnsValidIndex(t *testing.T) {
	d := NewDispatcher(All(), true, DefaultDispatcherOptions())
	src := rng.NewLCG(3)
	for i := 0; i < 200; i++ {
		idx := d.Select(src, 0.5)
		if idx < 0 || idx >= len(All()) {
			t.Fatalf("dispatcher returned out-of-range index %d", idx)
		}
		d.RecordOutcome(idx, i%3 == 0, -1.0)
	}
}

func TestDispatcherRewardWindowForgetsStaleGains(t *testing.T) {
	d := NewDispatcher(All(), true, DispatcherOptions{Window: 3})
	idx := 0
	for i := 0; i < 5; i++ {
		d.RecordOutcome(idx, true, -100.0)
	}
	staleReward := d.reward[idx]

	for i := 0; i < 3; i++ {
		d.RecordOutcome(idx, true, -1.0)
	}
	if d.reward[idx] >= staleReward {
		t.Fatalf("expected reward to fall once the old high gains aged out of the size-3 window, got %f (was %f)", d.reward[idx], staleReward)
	}
}

func TestDispatcherDistributionRespectsFloorAndSumsToOne(t *testing.T) {
	d := NewDispatcher(All(), true, DefaultDispatcherOptions())
	d.iteration = d.opts.WarmupIterations

	weights := d.distribution(0.9)
	total := 0.0
	for i, w := range weights {
		if w < operatorProbabilityFloor-1e-9 {
			t.Fatalf("operator %d probability %f below floor %f", i, w, operatorProbabilityFloor)
		}
		total += w
	}
	if math.Abs(total-1.0) > 1e-6 {
		t.Fatalf("expected a floor-then-remainder distribution summing to 1, got %f", total)
	}
}
