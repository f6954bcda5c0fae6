package portassign

import (
	"testing"

	"beltforge/internal/grid"
	"beltforge/internal/model"
)

// crossedGrid places two 3x3 machines on the same rows and wires a's
// output port 2 to b's input port 0. a faces east, so its outputs sit on
// its west edge and their external tiles lie outside the grid: the
// connection does not route under any port pairing.
func crossedGrid() (*grid.GridState, []model.Connection) {
	g := grid.New(20, 20)
	a := model.Machine{ID: "a", Type: model.Type3x3, X: 0, Y: 0, Orientation: model.East}
	b := model.Machine{ID: "b", Type: model.Type3x3, X: 10, Y: 0, Orientation: model.West}
	g.Place(a)
	g.Place(b)
	conns := []model.Connection{
		{ID: "c1", SourceMachine: "a", SourcePort: 2, TargetMachine: "b", TargetPort: 0},
	}
	return g, conns
}

func TestReassignKeepsMachinesAndIDsStable(t *testing.T) {
	g, conns := crossedGrid()
	out := Reassign(g, conns)
	if len(out) != len(conns) {
		t.Fatalf("expected %d connections, got %d", len(conns), len(out))
	}
	for i, c := range out {
		if c.ID != conns[i].ID || c.SourceMachine != conns[i].SourceMachine || c.TargetMachine != conns[i].TargetMachine {
			t.Fatalf("connection identity changed: got %+v, want endpoints of %+v", c, conns[i])
		}
	}
}

func TestReassignNeverMakesARoutableSetWorse(t *testing.T) {
	g, conns := crossedGrid()
	before := buildAndRoute(freshMachineGrid(g), conns)
	out := Reassign(g, conns)
	after := buildAndRoute(freshMachineGrid(g), out)
	if before && !after {
		t.Fatal("reassignment turned a routable connection set into an unroutable one")
	}
}

func TestReassignMaintainsPortUniqueness(t *testing.T) {
	g := grid.New(30, 30)
	a := model.Machine{ID: "a", Type: model.Type5x5, X: 0, Y: 0, Orientation: model.North}
	b := model.Machine{ID: "b", Type: model.Type5x5, X: 0, Y: 10, Orientation: model.North}
	c := model.Machine{ID: "c", Type: model.Type5x5, X: 0, Y: 20, Orientation: model.North}
	g.Place(a)
	g.Place(b)
	g.Place(c)
	conns := []model.Connection{
		{ID: "c1", SourceMachine: "a", SourcePort: 0, TargetMachine: "b", TargetPort: 0},
		{ID: "c2", SourceMachine: "a", SourcePort: 1, TargetMachine: "c", TargetPort: 0},
	}
	out := Reassign(g, conns)

	usedOutput := make(map[string]map[int]bool)
	usedInput := make(map[string]map[int]bool)
	for _, conn := range out {
		if usedOutput[conn.SourceMachine] == nil {
			usedOutput[conn.SourceMachine] = make(map[int]bool)
		}
		if usedOutput[conn.SourceMachine][conn.SourcePort] {
			t.Fatalf("output port %s[%d] used twice", conn.SourceMachine, conn.SourcePort)
		}
		usedOutput[conn.SourceMachine][conn.SourcePort] = true

		if usedInput[conn.TargetMachine] == nil {
			usedInput[conn.TargetMachine] = make(map[int]bool)
		}
		if usedInput[conn.TargetMachine][conn.TargetPort] {
			t.Fatalf("input port %s[%d] used twice", conn.TargetMachine, conn.TargetPort)
		}
		usedInput[conn.TargetMachine][conn.TargetPort] = true
	}
}

func TestReassignOnEmptyConnectionsIsANoop(t *testing.T) {
	g, _ := crossedGrid()
	out := Reassign(g, nil)
	if len(out) != 0 {
		t.Fatalf("expected empty result, got %v", out)
	}
}
