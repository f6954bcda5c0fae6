package storage

import (
	"context"
	"testing"

	"beltforge/internal/anneal"
	"beltforge/internal/model"
)

func TestMemoryStoreLayoutRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	input := sampleSnapshot()
	if err := store.SaveLayout(ctx, input); err != nil {
		t.Fatalf("save layout: %v", err)
	}

	output, ok, err := store.GetLayout(ctx, input.Name)
	if err != nil {
		t.Fatalf("get layout: %v", err)
	}
	if !ok {
		t.Fatal("expected persisted layout")
	}
	if output.Name != input.Name || len(output.Machines) != len(input.Machines) {
		t.Fatalf("unexpected layout: %+v", output)
	}
}

func TestMemoryStoreListLayoutsIsSortedByName(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	for _, name := range []string{"zeta", "alpha", "mu"} {
		snap := sampleSnapshot()
		snap.Name = name
		if err := store.SaveLayout(ctx, snap); err != nil {
			t.Fatalf("save layout %s: %v", name, err)
		}
	}

	names, err := store.ListLayouts(ctx)
	if err != nil {
		t.Fatalf("list layouts: %v", err)
	}
	want := []string{"alpha", "mu", "zeta"}
	if len(names) != len(want) {
		t.Fatalf("unexpected names: %v", names)
	}
	for i, name := range want {
		if names[i] != name {
			t.Fatalf("expected sorted names %v, got %v", want, names)
		}
	}
}

func TestMemoryStoreEliteArchiveRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	input := []anneal.EliteEntry{
		{
			Machines:    map[string]model.Machine{"a": {ID: "a", X: 0, Y: 0, Orientation: model.North}},
			Score:       scoreFixture(),
			Fingerprint: "a:0,0,north",
		},
	}
	if err := store.SaveEliteArchive(ctx, "run-1", input); err != nil {
		t.Fatalf("save archive: %v", err)
	}

	output, ok, err := store.GetEliteArchive(ctx, "run-1")
	if err != nil {
		t.Fatalf("get archive: %v", err)
	}
	if !ok {
		t.Fatal("expected persisted archive")
	}
	if len(output) != 1 || output[0].Fingerprint != input[0].Fingerprint {
		t.Fatalf("unexpected archive: %+v", output)
	}
}

func TestMemoryStoreGetMissingLayoutReportsNotFound(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	_, ok, err := store.GetLayout(ctx, "does-not-exist")
	if err != nil {
		t.Fatalf("get layout: %v", err)
	}
	if ok {
		t.Fatal("expected not-found for a missing layout")
	}
}
