package geometry

import (
	"testing"

	"beltforge/internal/model"
)

func TestMachineFootprintOrientationSwapsDimensions(t *testing.T) {
	m := model.Machine{Type: model.Type6x4, X: 2, Y: 3, Orientation: model.North}
	f, ok := MachineFootprint(m)
	if !ok || f.W != 6 || f.H != 4 {
		t.Fatalf("expected 6x4 footprint, got %+v ok=%v", f, ok)
	}

	m.Orientation = model.East
	f, ok = MachineFootprint(m)
	if !ok || f.W != 4 || f.H != 6 {
		t.Fatalf("expected 4x6 footprint after rotation, got %+v ok=%v", f, ok)
	}
}

func TestPortsRegularMachineOnePerFaceTile(t *testing.T) {
	m := model.Machine{ID: "m1", Type: model.Type3x3, X: 0, Y: 0, Orientation: model.North}
	inputs, outputs := Ports(m)
	if len(inputs) != 3 || len(outputs) != 3 {
		t.Fatalf("expected 3 inputs and 3 outputs, got %d/%d", len(inputs), len(outputs))
	}
	for _, p := range inputs {
		if p.Y != 0 {
			t.Fatalf("expected input face on north row, got %+v", p)
		}
		if p.ApproachDirection != model.North {
			t.Fatalf("expected input approach direction North, got %v", p.ApproachDirection)
		}
	}
	for _, p := range outputs {
		if p.Y != 2 {
			t.Fatalf("expected output face on south row, got %+v", p)
		}
		if p.ApproachDirection != model.South {
			t.Fatalf("expected output approach direction South, got %v", p.ApproachDirection)
		}
	}
}

func TestPortsAnchorSingleCenteredOutput(t *testing.T) {
	m := model.Machine{ID: "a1", Type: model.TypeAnchor, X: 0, Y: 0, Orientation: model.North}
	inputs, outputs := Ports(m)
	if len(inputs) != 0 {
		t.Fatalf("expected no inputs for anchor, got %d", len(inputs))
	}
	if len(outputs) != 1 {
		t.Fatalf("expected exactly one output for anchor, got %d", len(outputs))
	}
	if outputs[0].X != 1 || outputs[0].Y != 0 {
		t.Fatalf("expected centered output at (1,0), got (%d,%d)", outputs[0].X, outputs[0].Y)
	}
}

func TestExternalTileStepsOutward(t *testing.T) {
	p := model.Port{X: 5, Y: 5, ApproachDirection: model.North}
	x, y := ExternalTile(p)
	if x != 5 || y != 4 {
		t.Fatalf("expected (5,4), got (%d,%d)", x, y)
	}
}
