package routing

import (
	"testing"

	"beltforge/internal/geometry"
	"beltforge/internal/grid"
	"beltforge/internal/model"
)

func mustPorts(t *testing.T, g *grid.GridState, m model.Machine) (inputs, outputs []model.Port) {
	t.Helper()
	if !g.Place(m) {
		t.Fatalf("failed to place machine %s", m.ID)
	}
	return g.Ports(m.ID)
}

func TestFindPathStraightVerticalNoCorners(t *testing.T) {
	g := grid.New(10, 10)
	a := model.Machine{ID: "a", Type: model.Type3x3, X: 0, Y: 0, Orientation: model.North}
	b := model.Machine{ID: "b", Type: model.Type3x3, X: 0, Y: 6, Orientation: model.North}
	_, aOut := mustPorts(t, g, a)
	bIn, _ := mustPorts(t, g, b)

	path, ok := routeTestConn(t, g, aOut[1], bIn[1])
	if !ok {
		t.Fatal("expected a path")
	}
	for _, seg := range path.Segments {
		if seg.IsCorner() {
			t.Fatalf("expected a straight path, got corner at (%d,%d)", seg.X, seg.Y)
		}
	}
	first := path.Segments[0]
	fx, fy := geometry.ExternalTile(aOut[1])
	if first.X != fx || first.Y != fy {
		t.Fatalf("expected path to start at source external tile (%d,%d), got (%d,%d)", fx, fy, first.X, first.Y)
	}
	last := path.Segments[len(path.Segments)-1]
	lx, ly := geometry.ExternalTile(bIn[1])
	if last.X != lx || last.Y != ly {
		t.Fatalf("expected path to end at target external tile (%d,%d), got (%d,%d)", lx, ly, last.X, last.Y)
	}
}

func TestFindPathAroundACornerCostsExactlyOneTurn(t *testing.T) {
	g := grid.New(12, 12)
	a := model.Machine{ID: "a", Type: model.Type3x3, X: 0, Y: 0, Orientation: model.West}
	b := model.Machine{ID: "b", Type: model.Type3x3, X: 5, Y: 5, Orientation: model.North}
	_, aOut := mustPorts(t, g, a)
	bIn, _ := mustPorts(t, g, b)

	path, ok := routeTestConn(t, g, aOut[1], bIn[1])
	if !ok {
		t.Fatal("expected a path")
	}
	corners := 0
	for _, seg := range path.Segments {
		if seg.IsCorner() {
			corners++
		}
	}
	if corners != 1 {
		t.Fatalf("expected exactly one corner on the minimal-cost route, got %d", corners)
	}
}

func TestFindPathTwoConnectionsCrossOrthogonallyOnOneTile(t *testing.T) {
	g := grid.New(13, 13)
	a := model.Machine{ID: "a", Type: model.Type3x3, X: 0, Y: 4, Orientation: model.West}
	b := model.Machine{ID: "b", Type: model.Type3x3, X: 9, Y: 4, Orientation: model.West}
	c := model.Machine{ID: "c", Type: model.Type3x3, X: 4, Y: 0, Orientation: model.North}
	d := model.Machine{ID: "d", Type: model.Type3x3, X: 4, Y: 9, Orientation: model.North}

	_, aOut := mustPorts(t, g, a)
	bIn, _ := mustPorts(t, g, b)
	_, cOut := mustPorts(t, g, c)
	dIn, _ := mustPorts(t, g, d)

	horizontal, ok := routeTestConn(t, g, aOut[1], bIn[1])
	if !ok {
		t.Fatal("expected the horizontal path to route")
	}
	g.ApplyBeltPath(horizontal)

	vertical, ok := routeTestConn(t, g, cOut[1], dIn[1])
	if !ok {
		t.Fatal("expected the vertical path to route despite the existing horizontal belt")
	}
	g.ApplyBeltPath(vertical)

	crossing := [2]int{5, 5}
	usage := g.TileUsage[crossing]
	if usage.Horizontal != 1 || usage.Vertical != 1 || usage.Corner != 0 {
		t.Fatalf("expected the crossing tile to carry one horizontal and one vertical use and no corner, got %+v", usage)
	}
}

func TestFindPathFailsWhenExternalTileOutOfBounds(t *testing.T) {
	g := grid.New(5, 5)
	src := model.Port{X: 2, Y: 0, ApproachDirection: model.North}
	tgt := model.Port{X: 2, Y: 0, ApproachDirection: model.North}
	if _, ok := FindPath(g, src, tgt, ""); ok {
		t.Fatal("expected failure when a port's external tile falls outside the grid")
	}
}

func TestFindPathFailsWhenBlockedByMachine(t *testing.T) {
	g := grid.New(6, 3)
	blocker := model.Machine{ID: "blk", Type: model.Type3x3, X: 1, Y: 0, Orientation: model.North}
	if !g.Place(blocker) {
		t.Fatal("failed to place blocker")
	}
	src := model.Port{X: 0, Y: 1, ApproachDirection: model.East}
	tgt := model.Port{X: 5, Y: 1, ApproachDirection: model.West}
	if _, ok := FindPath(g, src, tgt, ""); ok {
		t.Fatal("expected failure when the only row is fully blocked by a machine")
	}
}

func routeTestConn(t *testing.T, g *grid.GridState, src, tgt model.Port) (grid.BeltPath, bool) {
	t.Helper()
	return FindPath(g, src, tgt, "")
}
