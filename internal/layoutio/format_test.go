package layoutio

import (
	"testing"

	"beltforge/internal/grid"
	"beltforge/internal/model"
)

func sampleGrid() (*grid.GridState, []model.Connection) {
	g := grid.New(10, 10)
	g.Place(model.Machine{ID: "a", Type: model.Type3x3, X: 0, Y: 0, Orientation: model.North})
	g.Place(model.Machine{ID: "b", Type: model.Type3x3, X: 0, Y: 6, Orientation: model.South})
	conns := []model.Connection{
		{ID: "c1", SourceMachine: "a", SourcePort: 1, TargetMachine: "b", TargetPort: 1},
	}
	return g, conns
}

func TestExportImportRoundTripsMachinesAndConnections(t *testing.T) {
	g, conns := sampleGrid()

	data, err := Export(g, conns)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	machines, gotConns, report, err := Import(data)
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if len(report.MigratedAliases) != 0 {
		t.Fatalf("expected no migrations, got %v", report.MigratedAliases)
	}
	if len(machines) != 2 {
		t.Fatalf("expected 2 machines, got %d", len(machines))
	}
	if len(gotConns) != 1 || gotConns[0].ID != "c1" {
		t.Fatalf("expected connection c1 to round-trip, got %v", gotConns)
	}

	byID := make(map[string]model.Machine, len(machines))
	for _, m := range machines {
		byID[m.ID] = m
	}
	original := g.Machines["a"]
	roundTripped := byID["a"]
	if roundTripped != original {
		t.Fatalf("machine a changed across round trip: %+v -> %+v", original, roundTripped)
	}
}

func TestImportMigratesTheLegacy5x3Alias(t *testing.T) {
	data := []byte(`{
		"version": 1,
		"grid_width": 10,
		"grid_height": 10,
		"machines": [{"id": "a", "type": "5x3", "x": 0, "y": 0, "orientation": "north"}],
		"connections": []
	}`)

	machines, _, report, err := Import(data)
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if machines[0].Type != model.Type6x4 {
		t.Fatalf("expected 5x3 to migrate to 6x4, got %s", machines[0].Type)
	}
	if len(report.MigratedAliases) != 1 {
		t.Fatalf("expected one migration recorded, got %v", report.MigratedAliases)
	}
}

func TestImportRejectsAnUnknownMachineType(t *testing.T) {
	data := []byte(`{
		"version": 1,
		"grid_width": 10,
		"grid_height": 10,
		"machines": [{"id": "a", "type": "9x9", "x": 0, "y": 0, "orientation": "north"}],
		"connections": []
	}`)
	if _, _, _, err := Import(data); err == nil {
		t.Fatal("expected an error for an unrecognized machine type")
	}
}

func TestImportRejectsAConnectionReferencingAnUnknownMachine(t *testing.T) {
	data := []byte(`{
		"version": 1,
		"grid_width": 10,
		"grid_height": 10,
		"machines": [{"id": "a", "type": "3x3", "x": 0, "y": 0, "orientation": "north"}],
		"connections": [{"id": "c1", "source_machine": "a", "source_port": 0, "target_machine": "ghost", "target_port": 0}]
	}`)
	if _, _, _, err := Import(data); err == nil {
		t.Fatal("expected an error for a connection referencing an unknown machine")
	}
}

func TestImportRejectsAVersionMismatch(t *testing.T) {
	data := []byte(`{"version": 2, "grid_width": 10, "grid_height": 10, "machines": [], "connections": []}`)
	if _, _, _, err := Import(data); err == nil {
		t.Fatal("expected a version mismatch error")
	}
}
