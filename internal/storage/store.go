// Package storage persists two kinds of beltforge state across process
// invocations: named layout snapshots (a placed grid a caller wants to
// retrieve later by name) and elite archives (the diversity-capped pool
// of high-quality layouts an optimizer run produces, fed back into a
// later run via Config.IncomingArchive for cross-invocation continuity).
// Grounded on the teacher's internal/storage: same Store interface shape,
// same memory/sqlite backend split, same Encode*/Decode* codec pattern —
// swapped from Genome/Population/ScapeSummary entities to Layout/Archive
// ones.
package storage

import (
	"context"

	"beltforge/internal/anneal"
	"beltforge/internal/model"
	"beltforge/internal/scoring"
)

// LayoutSnapshot is a named, persisted grid: enough to reconstruct it
// (machine placements, connections, grid bounds) plus the score it was
// saved with, so a caller doesn't need to re-evaluate on load.
type LayoutSnapshot struct {
	model.VersionedRecord
	Name        string             `json:"name"`
	GridWidth   int                `json:"grid_width"`
	GridHeight  int                `json:"grid_height"`
	Machines    []model.Machine    `json:"machines"`
	Connections []model.Connection `json:"connections"`
	Score       scoring.Score      `json:"score"`
	Routed      bool               `json:"routed"`
}

// Store defines persistence operations for layout snapshots and elite
// archives, keyed by an arbitrary name/run id the caller controls.
type Store interface {
	Init(ctx context.Context) error

	SaveLayout(ctx context.Context, snapshot LayoutSnapshot) error
	GetLayout(ctx context.Context, name string) (LayoutSnapshot, bool, error)
	ListLayouts(ctx context.Context) ([]string, error)

	SaveEliteArchive(ctx context.Context, runID string, entries []anneal.EliteEntry) error
	GetEliteArchive(ctx context.Context, runID string) ([]anneal.EliteEntry, bool, error)
}
