//go:build sqlite

package storage

import (
	"context"
	"path/filepath"
	"testing"

	"beltforge/internal/anneal"
	"beltforge/internal/model"
)

func TestSQLiteStoreLayoutAndArchiveRoundTrip(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "beltforge.db")

	store := NewSQLiteStore(dbPath)
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})

	snapshot := sampleSnapshot()
	if err := store.SaveLayout(ctx, snapshot); err != nil {
		t.Fatalf("save layout: %v", err)
	}

	loaded, ok, err := store.GetLayout(ctx, snapshot.Name)
	if err != nil {
		t.Fatalf("get layout: %v", err)
	}
	if !ok {
		t.Fatalf("expected layout %s", snapshot.Name)
	}
	if loaded.Name != snapshot.Name || len(loaded.Machines) != len(snapshot.Machines) {
		t.Fatalf("unexpected layout loaded: %+v", loaded)
	}

	names, err := store.ListLayouts(ctx)
	if err != nil {
		t.Fatalf("list layouts: %v", err)
	}
	if len(names) != 1 || names[0] != snapshot.Name {
		t.Fatalf("unexpected layout names: %v", names)
	}

	archive := []anneal.EliteEntry{
		{
			Machines:    map[string]model.Machine{"a": {ID: "a", X: 2, Y: 2, Orientation: model.East}},
			Score:       scoreFixture(),
			Fingerprint: "a:2,2,east",
		},
	}
	if err := store.SaveEliteArchive(ctx, "run-1", archive); err != nil {
		t.Fatalf("save archive: %v", err)
	}

	loadedArchive, ok, err := store.GetEliteArchive(ctx, "run-1")
	if err != nil {
		t.Fatalf("get archive: %v", err)
	}
	if !ok {
		t.Fatal("expected archive run-1")
	}
	if len(loadedArchive) != 1 || loadedArchive[0].Fingerprint != archive[0].Fingerprint {
		t.Fatalf("unexpected archive loaded: %+v", loadedArchive)
	}
}

func TestSQLiteStorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "beltforge.db")

	first := NewSQLiteStore(dbPath)
	if err := first.Init(ctx); err != nil {
		t.Fatalf("first init: %v", err)
	}
	snapshot := sampleSnapshot()
	snapshot.Name = "persisted-layout"
	if err := first.SaveLayout(ctx, snapshot); err != nil {
		t.Fatalf("first save: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("first close: %v", err)
	}

	second := NewSQLiteStore(dbPath)
	if err := second.Init(ctx); err != nil {
		t.Fatalf("second init: %v", err)
	}
	t.Cleanup(func() {
		_ = second.Close()
	})

	loaded, ok, err := second.GetLayout(ctx, snapshot.Name)
	if err != nil {
		t.Fatalf("second get: %v", err)
	}
	if !ok || loaded.Name != snapshot.Name {
		t.Fatalf("expected persisted layout, got ok=%t value=%+v", ok, loaded)
	}
}
