package seeds

import (
	"testing"

	"beltforge/internal/grid"
	"beltforge/internal/model"
)

func chainInput(n int) Input {
	machines := make([]model.Machine, n)
	for i := 0; i < n; i++ {
		machines[i] = model.Machine{ID: idOf(i), Type: model.Type3x3}
	}
	conns := make([]model.Connection, 0, n-1)
	for i := 0; i < n-1; i++ {
		conns = append(conns, model.Connection{
			ID:            idOf(i) + "_" + idOf(i+1),
			SourceMachine: idOf(i),
			SourcePort:    0,
			TargetMachine: idOf(i + 1),
			TargetPort:    0,
		})
	}
	return Input{Machines: machines, Connections: conns, Width: 40, Height: 40}
}

func idOf(i int) string {
	return "m" + string(rune('a'+i))
}

func TestGreedyPlacesEveryMachineWithoutOverlap(t *testing.T) {
	in := chainInput(5)
	g, ok := greedy(in)
	if !ok {
		t.Fatal("expected greedy to succeed on a simple chain")
	}
	if len(g.Machines) != 5 {
		t.Fatalf("expected 5 placed machines, got %d", len(g.Machines))
	}
	assertNoOverlap(t, g)
}

func TestTopologyLayeredAssignsSourceMachinesToLayerZero(t *testing.T) {
	in := chainInput(4)
	layer := assignLayers(in.Machines, in.Connections)
	if layer[idOf(0)] != 0 {
		t.Fatalf("expected the chain's first machine at layer 0, got %d", layer[idOf(0)])
	}
	for i := 1; i < 4; i++ {
		if layer[idOf(i)] != i {
			t.Fatalf("expected machine %d at layer %d, got %d", i, i, layer[idOf(i)])
		}
	}
}

func TestTopologyLayeredPlacesEveryMachine(t *testing.T) {
	in := chainInput(6)
	g, ok := topologyLayered(in)
	if !ok {
		t.Fatal("expected topology-layered to succeed on a simple chain")
	}
	if len(g.Machines) != 6 {
		t.Fatalf("expected 6 placed machines, got %d", len(g.Machines))
	}
	assertNoOverlap(t, g)
}

func TestTwoLayerExhaustiveAbstainsWhenDepthIsNotTwo(t *testing.T) {
	in := chainInput(4) // four layers, 0..3
	if _, ok := twoLayerExhaustive(in); ok {
		t.Fatal("expected two-layer exhaustive to abstain on a four-layer chain")
	}
}

func TestTwoLayerExhaustiveHandlesASmallBipartiteSet(t *testing.T) {
	machines := []model.Machine{
		{ID: "s1", Type: model.Type3x3},
		{ID: "s2", Type: model.Type3x3},
		{ID: "t1", Type: model.Type3x3},
		{ID: "t2", Type: model.Type3x3},
	}
	conns := []model.Connection{
		{ID: "c1", SourceMachine: "s1", SourcePort: 0, TargetMachine: "t1", TargetPort: 0},
		{ID: "c2", SourceMachine: "s2", SourcePort: 0, TargetMachine: "t2", TargetPort: 0},
	}
	in := Input{Machines: machines, Connections: conns, Width: 30, Height: 30}
	g, ok := twoLayerExhaustive(in)
	if !ok {
		t.Fatal("expected two-layer exhaustive to find a layout")
	}
	if len(g.Machines) != 4 {
		t.Fatalf("expected 4 placed machines, got %d", len(g.Machines))
	}
}

func TestBestReturnsASeedPlacingEveryMachine(t *testing.T) {
	in := chainInput(3)
	result, ok := Best(in)
	if !ok {
		t.Fatal("expected at least one seed to succeed")
	}
	if len(result.Grid.Machines) != 3 {
		t.Fatalf("expected 3 placed machines in the winning seed, got %d", len(result.Grid.Machines))
	}
}

// assertNoOverlap re-derives each machine's footprint from its recorded
// position/orientation and checks no two claim the same tile — a
// consistency check on top of grid.Place's own overlap rejection.
func assertNoOverlap(t *testing.T, g *grid.GridState) {
	t.Helper()
	owner := make(map[[2]int]string)
	for id, m := range g.Machines {
		w, h, ok := m.Dimensions()
		if !ok {
			t.Fatalf("machine %s has no known dimensions", id)
		}
		for dy := 0; dy < h; dy++ {
			for dx := 0; dx < w; dx++ {
				key := [2]int{m.X + dx, m.Y + dy}
				if other, taken := owner[key]; taken {
					t.Fatalf("tile %v claimed by both %s and %s", key, other, id)
				}
				owner[key] = id
			}
		}
	}
}
