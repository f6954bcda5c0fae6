// Package scoring computes the weighted objective the optimizer minimizes:
// total belt length, bounding-box area, and corner count, either from a
// fully routed grid or from the cheaper Manhattan-distance proxy used while
// a seed is still being assembled.
package scoring

import (
	"math"

	"beltforge/internal/geometry"
	"beltforge/internal/grid"
	"beltforge/internal/model"
)

const (
	beltWeight   = 1.0
	areaWeight   = 0.5
	cornerWeight = 0.3
	epsilon      = 1e-6
)

// Score is the three components the optimizer trades off against each
// other, plus their weighted sum.
type Score struct {
	Belts   float64
	Area    float64
	Corners float64
}

// Total is the weighted objective the SA acceptance rule consumes.
func (s Score) Total() float64 {
	return s.Belts*beltWeight + s.Area*areaWeight + s.Corners*cornerWeight
}

// Compare orders two scores lexicographically by (belts, area, corners),
// treating differences smaller than epsilon as ties. It returns -1 if a is
// preferred, 1 if b is preferred, 0 if they are equal within epsilon on
// every component.
func Compare(a, b Score) int {
	if c := compareComponent(a.Belts, b.Belts); c != 0 {
		return c
	}
	if c := compareComponent(a.Area, b.Area); c != 0 {
		return c
	}
	return compareComponent(a.Corners, b.Corners)
}

func compareComponent(a, b float64) int {
	d := a - b
	if d < -epsilon {
		return -1
	}
	if d > epsilon {
		return 1
	}
	return 0
}

// Routed evaluates a fully-routed grid: every connection must already have
// an applied belt path for its length to be counted.
func Routed(g *grid.GridState) Score {
	totalBelts := 0
	corners := 0
	for _, path := range g.BeltPaths {
		totalBelts += len(path.Segments)
		for _, seg := range path.Segments {
			if seg.IsCorner() {
				corners++
			}
		}
	}
	return Score{
		Belts:   float64(totalBelts),
		Area:    float64(occupiedBoundingBoxArea(g)),
		Corners: float64(corners),
	}
}

// occupiedBoundingBoxArea is the area of the rectangle enclosing every
// non-empty cell (machine or belt), or 0 when the grid carries nothing.
func occupiedBoundingBoxArea(g *grid.GridState) int {
	minX, minY := g.Width, g.Height
	maxX, maxY := -1, -1
	found := false
	for y := 0; y < g.Height; y++ {
		for x := 0; x < g.Width; x++ {
			if g.Cell(x, y).Kind == grid.Empty {
				continue
			}
			found = true
			if x < minX {
				minX = x
			}
			if x > maxX {
				maxX = x
			}
			if y < minY {
				minY = y
			}
			if y > maxY {
				maxY = y
			}
		}
	}
	if !found {
		return 0
	}
	return (maxX - minX + 1) * (maxY - minY + 1)
}

// Fast is the routing-free Manhattan proxy used by Phase 1, when a seed's
// connections have not yet been routed: belt length is approximated by the
// Manhattan distance between each connection's source and target external
// tiles, and a connection only contributes to the corner count when both
// axes differ (meaning at least one turn is unavoidable).
func Fast(g *grid.GridState) Score {
	totalBelts := 0
	corners := 0
	minX, minY := math.MaxInt32, math.MaxInt32
	maxX, maxY := math.MinInt32, math.MinInt32
	touch := func(x, y int) {
		if x < minX {
			minX = x
		}
		if x > maxX {
			maxX = x
		}
		if y < minY {
			minY = y
		}
		if y > maxY {
			maxY = y
		}
	}

	for _, m := range g.Machines {
		f, ok := geometry.MachineFootprint(m)
		if !ok {
			continue
		}
		touch(f.X, f.Y)
		touch(f.X+f.W-1, f.Y+f.H-1)
	}

	for _, conn := range g.Connections {
		src, tgt, ok := resolveEndpoints(g, conn)
		if !ok {
			continue
		}
		sx, sy := geometry.ExternalTile(src)
		tx, ty := geometry.ExternalTile(tgt)
		touch(sx, sy)
		touch(tx, ty)

		totalBelts += geometry.ManhattanDistance(sx, sy, tx, ty)
		if sx != tx && sy != ty {
			corners++
		}
	}

	area := 0
	if maxX >= minX && maxY >= minY {
		area = (maxX - minX + 1) * (maxY - minY + 1)
	}

	return Score{
		Belts:   float64(totalBelts),
		Area:    float64(area),
		Corners: float64(corners),
	}
}

// resolveEndpoints looks up the concrete source and target ports for a
// connection from its machines' derived port lists.
func resolveEndpoints(g *grid.GridState, conn model.Connection) (src, tgt model.Port, ok bool) {
	_, outputs := g.Ports(conn.SourceMachine)
	if conn.SourcePort < 0 || conn.SourcePort >= len(outputs) {
		return model.Port{}, model.Port{}, false
	}
	inputs, _ := g.Ports(conn.TargetMachine)
	if conn.TargetPort < 0 || conn.TargetPort >= len(inputs) {
		return model.Port{}, model.Port{}, false
	}
	return outputs[conn.SourcePort], inputs[conn.TargetPort], true
}
