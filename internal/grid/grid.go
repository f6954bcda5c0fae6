// Package grid implements the bounded square grid: cell occupancy, machine
// placement/removal, port derivation, and the belt-tile-usage bookkeeping
// that the routing engine reads and mutates. It holds no pathfinding logic
// of its own — see internal/routing for the A* search.
package grid

import (
	"fmt"

	"beltforge/internal/geometry"
	"beltforge/internal/model"
)

// CellKind tags what occupies a grid cell.
type CellKind int

const (
	Empty CellKind = iota
	MachineCell
	BeltCell
)

// Cell is one tile of the grid.
type Cell struct {
	Kind      CellKind
	MachineID string
	Belts     []string // connection ids passing through, when Kind == BeltCell
}

// TileUsage is the per-tile belt occupancy accounting described in spec §3.
// Counts never go negative; GridState never stores a TileUsage whose three
// fields are all zero.
type TileUsage struct {
	Horizontal int
	Vertical   int
	Corner     int
}

func (u TileUsage) empty() bool {
	return u.Horizontal == 0 && u.Vertical == 0 && u.Corner == 0
}

// Segment is one tile of a belt path. From is nil only at the path's first
// segment, To is nil only at its last.
type Segment struct {
	X, Y int
	From *model.Direction
	To   *model.Direction
}

// IsCorner reports whether the segment turns: both directions are set and
// lie on different axes.
func (s Segment) IsCorner() bool {
	if s.From == nil || s.To == nil {
		return false
	}
	return s.From.Horizontal() != s.To.Horizontal()
}

// BeltPath is the ordered list of segments routed for one connection. The
// first segment sits just outside the source port, the last just outside
// the target port.
type BeltPath struct {
	ConnectionID string
	Segments     []Segment
}

// GridState is a width x height belt-factory grid: cells, placed machines,
// wired connections, their routed belt paths, and per-tile belt usage.
type GridState struct {
	Width, Height int
	cells         [][]Cell // cells[y][x]
	Machines      map[string]model.Machine
	Connections   map[string]model.Connection
	BeltPaths     map[string]BeltPath
	TileUsage     map[[2]int]TileUsage

	nextMachineSeq int
	nextConnSeq    int
}

// New creates an empty width x height grid.
func New(width, height int) *GridState {
	cells := make([][]Cell, height)
	for y := range cells {
		cells[y] = make([]Cell, width)
	}
	return &GridState{
		Width:       width,
		Height:      height,
		cells:       cells,
		Machines:    make(map[string]model.Machine),
		Connections: make(map[string]model.Connection),
		BeltPaths:   make(map[string]BeltPath),
		TileUsage:   make(map[[2]int]TileUsage),
	}
}

// InBounds reports whether (x,y) lies within the grid.
func (g *GridState) InBounds(x, y int) bool {
	return x >= 0 && x < g.Width && y >= 0 && y < g.Height
}

// Cell returns the cell at (x,y). Callers must check InBounds first.
func (g *GridState) Cell(x, y int) Cell {
	return g.cells[y][x]
}

// NextMachineID returns a fresh, grid-scoped machine identifier.
func (g *GridState) NextMachineID() string {
	g.nextMachineSeq++
	return fmt.Sprintf("m%d", g.nextMachineSeq)
}

// NextConnectionID returns a fresh, grid-scoped connection identifier.
func (g *GridState) NextConnectionID() string {
	g.nextConnSeq++
	return fmt.Sprintf("c%d", g.nextConnSeq)
}

// Place stamps a machine's oriented footprint into the grid as
// MachineCell(m.ID). It fails (without mutating anything) if any target
// tile is out of bounds or already owned by a different machine.
func (g *GridState) Place(m model.Machine) bool {
	f, ok := geometry.MachineFootprint(m)
	if !ok {
		return false
	}
	for _, t := range f.Tiles() {
		x, y := t[0], t[1]
		if !g.InBounds(x, y) {
			return false
		}
		cell := g.cells[y][x]
		if cell.Kind == MachineCell && cell.MachineID != m.ID {
			return false
		}
	}
	for _, t := range f.Tiles() {
		x, y := t[0], t[1]
		g.cells[y][x] = Cell{Kind: MachineCell, MachineID: m.ID}
	}
	g.Machines[m.ID] = m
	return true
}

// ClearCells un-stamps a machine's footprint back to Empty without
// touching belts, connections, or the machine's entry in g.Machines. This
// is the grid-model-level primitive (spec §4.1): callers repositioning a
// machine during optimization use this, then Place it again elsewhere.
func (g *GridState) ClearCells(machineID string) {
	m, ok := g.Machines[machineID]
	if !ok {
		return
	}
	f, ok := geometry.MachineFootprint(m)
	if !ok {
		return
	}
	for _, t := range f.Tiles() {
		x, y := t[0], t[1]
		if g.InBounds(x, y) && g.cells[y][x].MachineID == machineID {
			g.cells[y][x] = Cell{}
		}
	}
}

// RemoveMachine is the full external-API lifecycle operation: it clears
// the machine's cells, cascade-removes every connection attached to it
// (tearing down their belt paths first), and deletes the machine itself.
func (g *GridState) RemoveMachine(machineID string) {
	if _, ok := g.Machines[machineID]; !ok {
		return
	}
	for connID, conn := range g.Connections {
		if conn.SourceMachine == machineID || conn.TargetMachine == machineID {
			g.RemoveBeltPath(connID)
			delete(g.Connections, connID)
		}
	}
	g.ClearCells(machineID)
	delete(g.Machines, machineID)
}

// Ports derives the input/output ports of a placed machine.
func (g *GridState) Ports(machineID string) (inputs, outputs []model.Port) {
	m, ok := g.Machines[machineID]
	if !ok {
		return nil, nil
	}
	return geometry.Ports(m)
}

// AddConnection records a new connection after validating the (machine,
// port-index, role) uniqueness invariant from spec §3: at most one
// connection may use a given output or input port.
func (g *GridState) AddConnection(conn model.Connection) error {
	for _, existing := range g.Connections {
		if existing.SourceMachine == conn.SourceMachine && existing.SourcePort == conn.SourcePort {
			return fmt.Errorf("output port %s[%d] already wired", conn.SourceMachine, conn.SourcePort)
		}
		if existing.TargetMachine == conn.TargetMachine && existing.TargetPort == conn.TargetPort {
			return fmt.Errorf("input port %s[%d] already wired", conn.TargetMachine, conn.TargetPort)
		}
	}
	if conn.SourceMachine == conn.TargetMachine {
		return fmt.Errorf("connection %s: machine cannot connect to itself", conn.ID)
	}
	g.Connections[conn.ID] = conn
	return nil
}

// EffectiveUsage returns the tile usage at (x,y) with excludeConnID's own
// contribution subtracted out — used by the router so a connection being
// rerouted never blocks itself.
func (g *GridState) EffectiveUsage(x, y int, excludeConnID string) TileUsage {
	u := g.TileUsage[[2]int{x, y}]
	if excludeConnID == "" {
		return u
	}
	if path, ok := g.BeltPaths[excludeConnID]; ok {
		for _, seg := range path.Segments {
			if seg.X != x || seg.Y != y {
				continue
			}
			if seg.IsCorner() {
				u.Corner--
			} else if seg.From != nil && seg.From.Horizontal() || seg.To != nil && seg.To.Horizontal() {
				u.Horizontal--
			} else {
				u.Vertical--
			}
		}
	}
	return u
}

// ApplyBeltPath turns each traversed Empty cell into a Belt cell carrying
// the connection id, and increments per-tile usage counts. The path must
// not yet be applied; callers must not Apply over a tile owned by a
// machine.
func (g *GridState) ApplyBeltPath(path BeltPath) {
	for _, seg := range path.Segments {
		key := [2]int{seg.X, seg.Y}
		cell := g.cells[seg.Y][seg.X]
		cell.Kind = BeltCell
		cell.Belts = append(cell.Belts, path.ConnectionID)
		g.cells[seg.Y][seg.X] = cell

		u := g.TileUsage[key]
		switch {
		case seg.IsCorner():
			u.Corner++
		case segHorizontal(seg):
			u.Horizontal++
		default:
			u.Vertical++
		}
		g.TileUsage[key] = u
	}
	g.BeltPaths[path.ConnectionID] = path
}

// RemoveBeltPath reverses ApplyBeltPath's bookkeeping for a connection.
// Cells whose belt list becomes empty revert to Empty.
func (g *GridState) RemoveBeltPath(connID string) {
	path, ok := g.BeltPaths[connID]
	if !ok {
		return
	}
	for _, seg := range path.Segments {
		key := [2]int{seg.X, seg.Y}
		cell := g.cells[seg.Y][seg.X]
		cell.Belts = removeID(cell.Belts, connID)
		if len(cell.Belts) == 0 {
			cell = Cell{}
		}
		g.cells[seg.Y][seg.X] = cell

		u := g.TileUsage[key]
		switch {
		case seg.IsCorner():
			u.Corner--
		case segHorizontal(seg):
			u.Horizontal--
		default:
			u.Vertical--
		}
		if u.empty() {
			delete(g.TileUsage, key)
		} else {
			g.TileUsage[key] = u
		}
	}
	delete(g.BeltPaths, connID)
}

func segHorizontal(s Segment) bool {
	if s.From != nil {
		return s.From.Horizontal()
	}
	if s.To != nil {
		return s.To.Horizontal()
	}
	return false
}

func removeID(ids []string, target string) []string {
	out := ids[:0]
	for _, id := range ids {
		if id != target {
			out = append(out, id)
		}
	}
	return out
}

// Clone returns a deep copy sufficient for independent evaluation: every
// map and the cell matrix are copied, so mutating the clone never affects
// the original.
func (g *GridState) Clone() *GridState {
	clone := &GridState{
		Width:          g.Width,
		Height:         g.Height,
		Machines:       make(map[string]model.Machine, len(g.Machines)),
		Connections:    make(map[string]model.Connection, len(g.Connections)),
		BeltPaths:      make(map[string]BeltPath, len(g.BeltPaths)),
		TileUsage:      make(map[[2]int]TileUsage, len(g.TileUsage)),
		nextMachineSeq: g.nextMachineSeq,
		nextConnSeq:    g.nextConnSeq,
	}
	clone.cells = make([][]Cell, g.Height)
	for y := range g.cells {
		row := make([]Cell, g.Width)
		for x, c := range g.cells[y] {
			row[x] = Cell{Kind: c.Kind, MachineID: c.MachineID, Belts: append([]string(nil), c.Belts...)}
		}
		clone.cells[y] = row
	}
	for k, v := range g.Machines {
		clone.Machines[k] = v
	}
	for k, v := range g.Connections {
		clone.Connections[k] = v
	}
	for k, v := range g.BeltPaths {
		clone.BeltPaths[k] = BeltPath{ConnectionID: v.ConnectionID, Segments: append([]Segment(nil), v.Segments...)}
	}
	for k, v := range g.TileUsage {
		clone.TileUsage[k] = v
	}
	return clone
}
