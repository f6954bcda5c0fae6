package polish

import (
	"testing"

	"beltforge/internal/grid"
	"beltforge/internal/model"
)

func spreadOutGrid() (*grid.GridState, []model.Connection) {
	g := grid.New(40, 40)
	a := model.Machine{ID: "a", Type: model.Type3x3, X: 10, Y: 10, Orientation: model.North}
	b := model.Machine{ID: "b", Type: model.Type3x3, X: 10, Y: 20, Orientation: model.South}
	g.Place(a)
	g.Place(b)
	conns := []model.Connection{
		{ID: "c1", SourceMachine: "a", SourcePort: 0, TargetMachine: "b", TargetPort: 0},
	}
	return g, conns
}

func TestCompactNeverRegressesRoutedScore(t *testing.T) {
	g, conns := spreadOutGrid()
	baseline := freshMachineGrid(g)
	baselineRouted := buildAndRoute(baseline, conns)
	baselineEval := evaluate(baseline, baselineRouted)

	compacted := Compact(g, conns)
	compactedGrid := freshMachineGrid(compacted)
	compactedRouted := buildAndRoute(compactedGrid, conns)
	if worse(evaluate(compactedGrid, compactedRouted), baselineEval) {
		t.Fatal("compaction produced a strictly worse layout than the baseline")
	}
}

func TestCompactDoesNotIncreaseTheCoordinateSum(t *testing.T) {
	g, conns := spreadOutGrid()
	before := 0
	for _, m := range g.Machines {
		before += m.X + m.Y
	}
	compacted := Compact(g, conns)
	after := 0
	for _, m := range compacted.Machines {
		after += m.X + m.Y
	}
	if after > before {
		t.Fatalf("expected compaction to not increase total coordinate sum: before=%d after=%d", before, after)
	}
}

func TestOrientationPolishKeepsMachineCount(t *testing.T) {
	g, conns := spreadOutGrid()
	polished := OrientationPolish(g, conns)
	if len(polished.Machines) != len(g.Machines) {
		t.Fatalf("expected %d machines after polish, got %d", len(g.Machines), len(polished.Machines))
	}
}

func TestOrientationPolishLeavesImmovableMachinesAlone(t *testing.T) {
	g := grid.New(20, 20)
	anchor := model.Machine{ID: "fix", Type: model.TypeAnchor, X: 5, Y: 5, Orientation: model.East}
	g.Place(anchor)
	polished := OrientationPolish(g, nil)
	got := polished.Machines["fix"]
	if got.Orientation != model.East || got.X != 5 || got.Y != 5 {
		t.Fatalf("immovable machine changed: %+v", got)
	}
}

func TestPolishOnSingleMachineIsANoop(t *testing.T) {
	g := grid.New(10, 10)
	m := model.Machine{ID: "solo", Type: model.Type3x3, X: 3, Y: 3, Orientation: model.North}
	g.Place(m)
	result := Polish(g, nil)
	if len(result.Machines) != 1 {
		t.Fatalf("expected exactly one machine, got %d", len(result.Machines))
	}
}
