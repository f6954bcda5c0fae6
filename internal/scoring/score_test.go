package scoring

import (
	"testing"

	"beltforge/internal/grid"
	"beltforge/internal/model"
)

func TestTotalWeightsComponents(t *testing.T) {
	s := Score{Belts: 10, Area: 4, Corners: 2}
	got := s.Total()
	want := 10*1.0 + 4*0.5 + 2*0.3
	if got != want {
		t.Fatalf("Total() = %v, want %v", got, want)
	}
}

func TestCompareLexicographicWithEpsilon(t *testing.T) {
	a := Score{Belts: 10, Area: 5, Corners: 1}
	b := Score{Belts: 10 + 1e-9, Area: 5, Corners: 1}
	if c := Compare(a, b); c != 0 {
		t.Fatalf("expected ties within epsilon, got %d", c)
	}
	c := Score{Belts: 9, Area: 100, Corners: 100}
	if Compare(c, a) >= 0 {
		t.Fatal("expected fewer belts to win regardless of area/corners")
	}
	d := Score{Belts: 10, Area: 4, Corners: 100}
	if Compare(d, a) >= 0 {
		t.Fatal("expected equal belts, lower area to win regardless of corners")
	}
}

func TestRoutedScoreCountsSegmentsAndCorners(t *testing.T) {
	g := grid.New(10, 10)
	n := model.North
	e := model.East
	path := grid.BeltPath{
		ConnectionID: "c1",
		Segments: []grid.Segment{
			{X: 1, Y: 1, From: nil, To: dirPtr(e)},
			{X: 2, Y: 1, From: dirPtr(e), To: dirPtr(n)},
			{X: 2, Y: 0, From: dirPtr(n), To: nil},
		},
	}
	g.ApplyBeltPath(path)

	m := model.Machine{ID: "m1", Type: model.Type3x3, X: 5, Y: 5, Orientation: model.North}
	g.Place(m)

	score := Routed(g)
	if score.Belts != 3 {
		t.Fatalf("expected 3 belt segments, got %v", score.Belts)
	}
	if score.Corners != 1 {
		t.Fatalf("expected exactly 1 corner, got %v", score.Corners)
	}
	if score.Area <= 0 {
		t.Fatal("expected a positive bounding box area once cells are occupied")
	}
}

func TestRoutedScoreEmptyGridHasZeroArea(t *testing.T) {
	g := grid.New(5, 5)
	score := Routed(g)
	if score.Area != 0 || score.Belts != 0 || score.Corners != 0 {
		t.Fatalf("expected an all-zero score for an empty grid, got %+v", score)
	}
}

func TestFastScoreCountsTurnsRequiringBothAxes(t *testing.T) {
	g := grid.New(12, 12)
	a := model.Machine{ID: "a", Type: model.Type3x3, X: 0, Y: 4, Orientation: model.West}
	b := model.Machine{ID: "b", Type: model.Type3x3, X: 5, Y: 5, Orientation: model.North}
	g.Place(a)
	g.Place(b)
	conn := model.Connection{ID: "c1", SourceMachine: "a", SourcePort: 1, TargetMachine: "b", TargetPort: 1}
	if err := g.AddConnection(conn); err != nil {
		t.Fatalf("AddConnection failed: %v", err)
	}

	score := Fast(g)
	if score.Corners != 1 {
		t.Fatalf("expected 1 connection requiring a turn, got %v", score.Corners)
	}
	if score.Belts <= 0 {
		t.Fatal("expected a positive Manhattan belt estimate")
	}
}

func dirPtr(d model.Direction) *model.Direction { return &d }
