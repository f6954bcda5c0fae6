// Package model defines the core value types shared across beltforge:
// machines, their ports, and the connections wired between them.
package model

// VersionedRecord captures schema and codec evolution for persistent data,
// used by the layout exchange format and the archive/layout store.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// Direction is one of the four cardinal directions, used both as a
// machine orientation and as a belt/port approach direction.
type Direction int

const (
	North Direction = iota
	East
	South
	West
)

func (d Direction) String() string {
	switch d {
	case North:
		return "north"
	case East:
		return "east"
	case South:
		return "south"
	case West:
		return "west"
	default:
		return "unknown"
	}
}

// Opposite returns the direction pointing the other way.
func (d Direction) Opposite() Direction {
	return (d + 2) % 4
}

// Dx and Dy return the unit grid offset of moving one step in direction d.
func (d Direction) Dx() int {
	switch d {
	case East:
		return 1
	case West:
		return -1
	default:
		return 0
	}
}

func (d Direction) Dy() int {
	switch d {
	case South:
		return 1
	case North:
		return -1
	default:
		return 0
	}
}

// Horizontal reports whether d is an East/West direction (as opposed to
// North/South).
func (d Direction) Horizontal() bool {
	return d == East || d == West
}

// MachineType is an enum of fixed machine footprints.
type MachineType string

const (
	Type3x3    MachineType = "3x3"
	Type5x5    MachineType = "5x5"
	Type6x4    MachineType = "6x4"
	TypeAnchor MachineType = "anchor3x1"
)

// BaseDimensions returns the (width, height) of the type before any
// orientation is applied; NORTH/SOUTH keep this, EAST/WEST swap it.
func (t MachineType) BaseDimensions() (w, h int, ok bool) {
	switch t {
	case Type3x3:
		return 3, 3, true
	case Type5x5:
		return 5, 5, true
	case Type6x4:
		return 6, 4, true
	case TypeAnchor:
		return 3, 1, true
	default:
		return 0, 0, false
	}
}

// Immovable reports whether machines of this type are pinned: their
// position and orientation must be preserved across every transformation.
func (t MachineType) Immovable() bool {
	return t == TypeAnchor
}

// Machine is a placed (or about-to-be-placed) instance of a MachineType.
type Machine struct {
	ID          string      `json:"id"`
	Type        MachineType `json:"type"`
	X           int         `json:"x"`
	Y           int         `json:"y"`
	Orientation Direction   `json:"orientation"`
}

// Dimensions returns the oriented (width, height) occupied by the machine.
func (m Machine) Dimensions() (w, h int, ok bool) {
	bw, bh, ok := m.Type.BaseDimensions()
	if !ok {
		return 0, 0, false
	}
	if m.Orientation.Horizontal() {
		return bh, bw, true
	}
	return bw, bh, true
}

// PortRole distinguishes an input port (belt arrives) from an output port
// (belt departs).
type PortRole int

const (
	Input PortRole = iota
	Output
)

// Port is a single input or output slot on a machine's face.
type Port struct {
	MachineID         string
	Role              PortRole
	Index             int
	X, Y              int
	ApproachDirection Direction
}

// Connection is a directed wire from one machine's output port to
// another machine's input port.
type Connection struct {
	ID            string `json:"id"`
	SourceMachine string `json:"source_machine"`
	SourcePort    int    `json:"source_port"`
	TargetMachine string `json:"target_machine"`
	TargetPort    int    `json:"target_port"`
}
