// Package geometry computes machine footprints and port positions from a
// Machine's type, position, and orientation. It is pure and stateless: it
// never touches a GridState.
package geometry

import (
	"math"

	"beltforge/internal/model"

	"golang.org/x/exp/constraints"
)

func clamp[T constraints.Ordered](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Footprint is the oriented rectangle a machine occupies.
type Footprint struct {
	X, Y, W, H int
}

// Contains reports whether (x,y) lies inside the footprint.
func (f Footprint) Contains(x, y int) bool {
	return x >= f.X && x < f.X+f.W && y >= f.Y && y < f.Y+f.H
}

// Tiles returns every grid cell covered by the footprint.
func (f Footprint) Tiles() [][2]int {
	tiles := make([][2]int, 0, f.W*f.H)
	for dy := 0; dy < f.H; dy++ {
		for dx := 0; dx < f.W; dx++ {
			tiles = append(tiles, [2]int{f.X + dx, f.Y + dy})
		}
	}
	return tiles
}

// MachineFootprint returns the oriented rectangle a machine occupies.
func MachineFootprint(m model.Machine) (Footprint, bool) {
	w, h, ok := m.Dimensions()
	if !ok {
		return Footprint{}, false
	}
	return Footprint{X: m.X, Y: m.Y, W: w, H: h}, true
}

// faceLength returns the number of tile slots along the face a belt would
// approach from direction d, for a footprint of width w and height h.
func faceLength(d model.Direction, w, h int) int {
	if d.Horizontal() {
		return h
	}
	return w
}

// facePositions returns the n evenly distributed tile coordinates along the
// face of footprint f that an approach direction d points away from, using
// round(i*(span-1)/(n-1)) for n>=2 and the centered tile for n==1.
func facePositions(f Footprint, d model.Direction, n int) [][2]int {
	span := faceLength(d, f.W, f.H)
	positions := make([][2]int, n)
	for i := 0; i < n; i++ {
		var offset int
		if n == 1 {
			offset = (span - 1) / 2
		} else {
			offset = int(math.Round(float64(i) * float64(span-1) / float64(n-1)))
		}
		offset = clamp(offset, 0, span-1)

		var x, y int
		switch d {
		case model.North:
			x, y = f.X+offset, f.Y
		case model.South:
			x, y = f.X+offset, f.Y+f.H-1
		case model.East:
			x, y = f.X+f.W-1, f.Y+offset
		case model.West:
			x, y = f.X, f.Y+offset
		}
		positions[i] = [2]int{x, y}
	}
	return positions
}

// Ports derives the input and output ports of a machine. Regular machine
// types get one port per tile along the input face (the face the
// machine's orientation points at) and the output face (the opposite
// face). Anchor machines get zero inputs and a single output centered on
// the face opposite their orientation.
func Ports(m model.Machine) (inputs, outputs []model.Port) {
	f, ok := MachineFootprint(m)
	if !ok {
		return nil, nil
	}
	outputFace := m.Orientation.Opposite()

	if m.Type.Immovable() {
		pos := facePositions(f, outputFace, 1)[0]
		outputs = []model.Port{{
			MachineID:         m.ID,
			Role:              model.Output,
			Index:             0,
			X:                 pos[0],
			Y:                 pos[1],
			ApproachDirection: outputFace,
		}}
		return nil, outputs
	}

	inputFace := m.Orientation
	n := faceLength(inputFace, f.W, f.H)
	if n < 1 {
		n = 1
	}

	inPositions := facePositions(f, inputFace, n)
	outPositions := facePositions(f, outputFace, n)

	inputs = make([]model.Port, n)
	outputs = make([]model.Port, n)
	for i := 0; i < n; i++ {
		inputs[i] = model.Port{
			MachineID:         m.ID,
			Role:              model.Input,
			Index:             i,
			X:                 inPositions[i][0],
			Y:                 inPositions[i][1],
			ApproachDirection: inputFace,
		}
		outputs[i] = model.Port{
			MachineID:         m.ID,
			Role:              model.Output,
			Index:             i,
			X:                 outPositions[i][0],
			Y:                 outPositions[i][1],
			ApproachDirection: outputFace,
		}
	}
	return inputs, outputs
}

// ExternalTile is the tile one step outside a port along its approach
// direction — the belt start/end tile for that port.
func ExternalTile(p model.Port) (x, y int) {
	return p.X + p.ApproachDirection.Dx(), p.Y + p.ApproachDirection.Dy()
}

// ManhattanDistance is |dx|+|dy| between two tiles.
func ManhattanDistance(x1, y1, x2, y2 int) int {
	return absInt(x1-x2) + absInt(y1-y2)
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
