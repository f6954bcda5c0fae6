package layoutio

import (
	"encoding/json"
	"errors"
	"fmt"

	"beltforge/internal/grid"
	"beltforge/internal/model"
)

// CurrentVersion is the only version this package emits. Import accepts
// exactly this version; anything else is a version mismatch, mirroring
// the teacher's storage.checkVersion rather than attempting to sniff and
// upgrade an unknown wire shape.
const CurrentVersion = 1

// ErrVersionMismatch is returned when a document's version field isn't
// CurrentVersion.
var ErrVersionMismatch = errors.New("layoutio: version mismatch")

// ErrUnknownMachineType is returned when a machine record's type tag is
// neither a known model.MachineType nor a recognized legacy alias.
var ErrUnknownMachineType = errors.New("layoutio: unknown machine type")

// ErrMalformed is returned for structurally broken documents: a
// connection referencing a machine id absent from the machine list, or a
// duplicate machine id.
var ErrMalformed = errors.New("layoutio: malformed document")

// legacyTypeAliases maps retired machine-type tags to their current
// equivalent. Per spec §9's open question, this migration is applied
// without further justification — not silently dropped, not rejected —
// and every application is recorded in ImportReport.MigratedAliases.
var legacyTypeAliases = map[string]model.MachineType{
	"5x3": model.Type6x4,
}

// Document is the version=1 wire shape: grid dimensions plus flat
// machine and connection lists, each entry keyed by a stable id so the
// round-trip test (export, then import, then re-place) reconstructs the
// identical grid.
type Document struct {
	Version     int                `json:"version"`
	GridWidth   int                `json:"grid_width"`
	GridHeight  int                `json:"grid_height"`
	Machines    []MachineRecord    `json:"machines"`
	Connections []ConnectionRecord `json:"connections"`
}

// MachineRecord is one machine entry: id, type tag, position, and
// orientation tag (the lowercase Direction.String() form).
type MachineRecord struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	X           int    `json:"x"`
	Y           int    `json:"y"`
	Orientation string `json:"orientation"`
}

// ConnectionRecord is one connection entry, addressed by machine id and
// port index rather than by object reference.
type ConnectionRecord struct {
	ID            string `json:"id"`
	SourceMachine string `json:"source_machine"`
	SourcePort    int    `json:"source_port"`
	TargetMachine string `json:"target_machine"`
	TargetPort    int    `json:"target_port"`
}

// ImportReport surfaces anything import did besides a literal decode, so
// a caller can audit it rather than have it happen invisibly.
type ImportReport struct {
	MigratedAliases []string
}

// Export builds a version=1 Document from a grid's placed machines and
// the caller's connection list (not g.Connections — callers in the
// middle of a phase, same as portassign/polish, may be holding a
// connection list that hasn't been written back to the grid yet).
func Export(g *grid.GridState, conns []model.Connection) ([]byte, error) {
	doc := Document{
		Version:     CurrentVersion,
		GridWidth:   g.Width,
		GridHeight:  g.Height,
		Machines:    make([]MachineRecord, 0, len(g.Machines)),
		Connections: make([]ConnectionRecord, 0, len(conns)),
	}
	for _, m := range g.Machines {
		doc.Machines = append(doc.Machines, MachineRecord{
			ID:          m.ID,
			Type:        string(m.Type),
			X:           m.X,
			Y:           m.Y,
			Orientation: m.Orientation.String(),
		})
	}
	for _, c := range conns {
		doc.Connections = append(doc.Connections, ConnectionRecord{
			ID:            c.ID,
			SourceMachine: c.SourceMachine,
			SourcePort:    c.SourcePort,
			TargetMachine: c.TargetMachine,
			TargetPort:    c.TargetPort,
		})
	}
	return json.Marshal(doc)
}

// Import decodes a version=1 Document back into machines and
// connections. It does not construct a grid or call AddConnection — a
// caller assembles those the same way it would for any freshly
// constructed layout, so self-wired connections and overlapping
// placements are rejected by grid/AddConnection at that point, not here.
func Import(data []byte) ([]model.Machine, []model.Connection, ImportReport, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, nil, ImportReport{}, fmt.Errorf("layoutio: decode: %w", err)
	}
	if doc.Version != CurrentVersion {
		return nil, nil, ImportReport{}, fmt.Errorf("%w: got %d, want %d", ErrVersionMismatch, doc.Version, CurrentVersion)
	}

	var report ImportReport
	seen := make(map[string]bool, len(doc.Machines))
	machines := make([]model.Machine, 0, len(doc.Machines))
	for _, rec := range doc.Machines {
		if rec.ID == "" || seen[rec.ID] {
			return nil, nil, ImportReport{}, fmt.Errorf("%w: duplicate or empty machine id %q", ErrMalformed, rec.ID)
		}
		seen[rec.ID] = true

		mtype, migrated, ok := resolveMachineType(rec.Type)
		if !ok {
			return nil, nil, ImportReport{}, fmt.Errorf("%w: %q", ErrUnknownMachineType, rec.Type)
		}
		if migrated {
			report.MigratedAliases = append(report.MigratedAliases, fmt.Sprintf("%s: %s->%s", rec.ID, rec.Type, mtype))
		}

		dir, ok := parseDirection(rec.Orientation)
		if !ok {
			return nil, nil, ImportReport{}, fmt.Errorf("%w: machine %s has unknown orientation %q", ErrMalformed, rec.ID, rec.Orientation)
		}

		machines = append(machines, model.Machine{
			ID:          rec.ID,
			Type:        mtype,
			X:           rec.X,
			Y:           rec.Y,
			Orientation: dir,
		})
	}

	conns := make([]model.Connection, 0, len(doc.Connections))
	connIDs := make(map[string]bool, len(doc.Connections))
	for _, rec := range doc.Connections {
		if rec.ID == "" || connIDs[rec.ID] {
			return nil, nil, ImportReport{}, fmt.Errorf("%w: duplicate or empty connection id %q", ErrMalformed, rec.ID)
		}
		connIDs[rec.ID] = true
		if !seen[rec.SourceMachine] || !seen[rec.TargetMachine] {
			return nil, nil, ImportReport{}, fmt.Errorf("%w: connection %s references an unknown machine", ErrMalformed, rec.ID)
		}
		conns = append(conns, model.Connection{
			ID:            rec.ID,
			SourceMachine: rec.SourceMachine,
			SourcePort:    rec.SourcePort,
			TargetMachine: rec.TargetMachine,
			TargetPort:    rec.TargetPort,
		})
	}

	return machines, conns, report, nil
}

// resolveMachineType accepts a current type tag as-is, or migrates a
// recognized legacy alias. ok is false for any other tag.
func resolveMachineType(tag string) (mtype model.MachineType, migrated bool, ok bool) {
	candidate := model.MachineType(tag)
	if _, _, valid := candidate.BaseDimensions(); valid {
		return candidate, false, true
	}
	if alias, found := legacyTypeAliases[tag]; found {
		return alias, true, true
	}
	return "", false, false
}

func parseDirection(tag string) (model.Direction, bool) {
	switch tag {
	case "north":
		return model.North, true
	case "east":
		return model.East, true
	case "south":
		return model.South, true
	case "west":
		return model.West, true
	default:
		return 0, false
	}
}
