package grid

import (
	"testing"

	"beltforge/internal/model"
)

func dir(d model.Direction) *model.Direction { return &d }

func TestPlaceAndRemoveMachineRestoresEmptyCells(t *testing.T) {
	g := New(10, 10)
	m := model.Machine{ID: "m1", Type: model.Type3x3, X: 1, Y: 1, Orientation: model.North}
	if !g.Place(m) {
		t.Fatal("expected placement to succeed")
	}
	for y := 1; y <= 3; y++ {
		for x := 1; x <= 3; x++ {
			if g.Cell(x, y).Kind != MachineCell || g.Cell(x, y).MachineID != "m1" {
				t.Fatalf("expected MachineCell(m1) at (%d,%d), got %+v", x, y, g.Cell(x, y))
			}
		}
	}

	g.RemoveMachine("m1")
	for y := 1; y <= 3; y++ {
		for x := 1; x <= 3; x++ {
			if g.Cell(x, y).Kind != Empty {
				t.Fatalf("expected Empty at (%d,%d) after removal, got %+v", x, y, g.Cell(x, y))
			}
		}
	}
	if _, ok := g.Machines["m1"]; ok {
		t.Fatal("expected machine to be gone from Machines map")
	}
}

func TestPlaceFailsOnOverlapAndOutOfBounds(t *testing.T) {
	g := New(5, 5)
	a := model.Machine{ID: "a", Type: model.Type3x3, X: 0, Y: 0, Orientation: model.North}
	if !g.Place(a) {
		t.Fatal("expected first placement to succeed")
	}
	overlap := model.Machine{ID: "b", Type: model.Type3x3, X: 1, Y: 1, Orientation: model.North}
	if g.Place(overlap) {
		t.Fatal("expected overlapping placement to fail")
	}
	outOfBounds := model.Machine{ID: "c", Type: model.Type3x3, X: 4, Y: 4, Orientation: model.North}
	if g.Place(outOfBounds) {
		t.Fatal("expected out-of-bounds placement to fail")
	}
}

func TestApplyThenRemoveBeltPathRestoresExactState(t *testing.T) {
	g := New(10, 10)
	n := model.North
	s := model.South
	path := BeltPath{
		ConnectionID: "c1",
		Segments: []Segment{
			{X: 2, Y: 2, From: nil, To: dir(s)},
			{X: 2, Y: 3, From: dir(n), To: dir(s)},
			{X: 2, Y: 4, From: dir(n), To: nil},
		},
	}
	before := len(g.TileUsage)
	g.ApplyBeltPath(path)
	if g.Cell(2, 3).Kind != BeltCell {
		t.Fatal("expected belt cell at (2,3)")
	}
	if u := g.TileUsage[[2]int{2, 3}]; u.Vertical != 1 {
		t.Fatalf("expected vertical usage 1, got %+v", u)
	}
	g.RemoveBeltPath("c1")
	if g.Cell(2, 3).Kind != Empty {
		t.Fatal("expected (2,3) to revert to Empty")
	}
	if len(g.TileUsage) != before {
		t.Fatalf("expected tile usage map to fully drain, got %d entries", len(g.TileUsage))
	}
}

func TestCloneIsIndependent(t *testing.T) {
	g := New(5, 5)
	m := model.Machine{ID: "m1", Type: model.Type3x3, X: 0, Y: 0, Orientation: model.North}
	g.Place(m)

	clone := g.Clone()
	clone.RemoveMachine("m1")

	if _, ok := g.Machines["m1"]; !ok {
		t.Fatal("expected original grid to still have m1")
	}
	if g.Cell(0, 0).Kind != MachineCell {
		t.Fatal("expected original grid's cells to be unaffected by clone mutation")
	}
}
