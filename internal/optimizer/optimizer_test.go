package optimizer

import (
	"testing"

	"beltforge/internal/grid"
	"beltforge/internal/model"
)

func twoMachineGrid() (*grid.GridState, []model.Connection) {
	g := grid.New(20, 20)
	a := model.Machine{ID: "a", Type: model.Type3x3, X: 1, Y: 1, Orientation: model.North}
	b := model.Machine{ID: "b", Type: model.Type3x3, X: 14, Y: 14, Orientation: model.North}
	g.Place(a)
	g.Place(b)
	conns := []model.Connection{
		{ID: "c1", SourceMachine: "a", SourcePort: 0, TargetMachine: "b", TargetPort: 0},
	}
	return g, conns
}

func quickConfig() Config {
	c := DefaultNormalConfig()
	c.Phase1Restarts = 1
	c.Phase2Attempts = 1
	c.LocalPolishPasses = 1
	c.Seed = 11
	return c
}

func TestRunNeverRegressesBelowTheInputsRoutedScore(t *testing.T) {
	g, conns := twoMachineGrid()
	_, baselineScore, _ := evaluateRouted(g, conns)

	result := Run(g, conns, quickConfig(), nil, nil)

	if !result.Routed {
		t.Fatal("expected the optimizer to return a routable layout for a simple two-machine grid")
	}
	if result.Score.Total() > baselineScore.Total()+1e-6 {
		t.Fatalf("optimizer regressed: baseline=%v got=%v", baselineScore, result.Score)
	}
}

func TestRunPreservesMachineAndConnectionIdentity(t *testing.T) {
	g, conns := twoMachineGrid()
	result := Run(g, conns, quickConfig(), nil, nil)

	if len(result.Grid.Machines) != 2 {
		t.Fatalf("expected 2 machines, got %d", len(result.Grid.Machines))
	}
	if _, ok := result.Grid.Machines["a"]; !ok {
		t.Fatal("expected machine a to survive optimization")
	}
	if _, ok := result.Grid.Machines["b"]; !ok {
		t.Fatal("expected machine b to survive optimization")
	}
	if len(result.Connections) != 1 || result.Connections[0].ID != "c1" {
		t.Fatalf("expected connection c1 to survive optimization, got %v", result.Connections)
	}
}

func TestRunReportsProgressAcrossPhases(t *testing.T) {
	g, conns := twoMachineGrid()
	seen := map[string]bool{}
	Run(g, conns, quickConfig(), func(ev ProgressEvent) {
		seen[ev.Phase] = true
	}, nil)
	for _, phase := range []string{"phase0", "phase1", "phase2", "phase3", "phase4"} {
		if !seen[phase] {
			t.Errorf("expected a progress event for %s", phase)
		}
	}
}

func TestRunStopsEarlyWhenShouldStopFires(t *testing.T) {
	g, conns := twoMachineGrid()
	cfg := quickConfig()
	calls := 0
	stop := func() bool {
		calls++
		return calls > 1
	}
	result := Run(g, conns, cfg, nil, stop)
	if result.Grid == nil {
		t.Fatal("expected a non-nil grid even when stopped early")
	}
}

func TestRunOnASingleMachineIsANoop(t *testing.T) {
	g := grid.New(10, 10)
	g.Place(model.Machine{ID: "a", Type: model.Type3x3, X: 1, Y: 1, Orientation: model.North})
	result := Run(g, nil, quickConfig(), nil, nil)
	if len(result.Grid.Machines) != 1 {
		t.Fatalf("expected the single machine preserved, got %d machines", len(result.Grid.Machines))
	}
}
