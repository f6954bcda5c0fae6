package anneal

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"beltforge/internal/grid"
	"beltforge/internal/model"
	"beltforge/internal/rng"
	"beltforge/internal/scoring"
)

// EliteEntry is one archived layout: a machine/connection snapshot, its
// routed score, and a sorted fingerprint for cheap identity comparison.
type EliteEntry struct {
	Machines    map[string]model.Machine
	Connections []model.Connection
	Score       scoring.Score
	Fingerprint string
}

// Archive is a size-capped pool of diverse high-quality layouts used to
// bias restart seeding, per spec §4.5 and §9 ("each repair-beam attempt
// spawns a sub-stream"; restarts sample the archive with the same bias).
// Entries are kept sorted best score first.
type Archive struct {
	entries     []EliteEntry
	capacity    int
	minDistance float64
}

// NewArchive creates an archive with the given capacity and minimum
// diversity distance between any two entries.
func NewArchive(capacity int, minDistance float64) *Archive {
	if capacity < 1 {
		capacity = 1
	}
	return &Archive{capacity: capacity, minDistance: minDistance}
}

// Consider offers a candidate to the archive. If an existing entry is
// within minDistance, the candidate replaces it only if strictly better.
// Otherwise it is added if there's room, or replaces the archive's worst
// entry if it beats it. Returns whether the archive changed.
func (a *Archive) Consider(entry EliteEntry) bool {
	for i, existing := range a.entries {
		if Distance(entry.Machines, existing.Machines) < a.minDistance {
			if scoring.Compare(entry.Score, existing.Score) < 0 {
				a.entries[i] = entry
				a.resort()
				return true
			}
			return false
		}
	}
	if len(a.entries) < a.capacity {
		a.entries = append(a.entries, entry)
		a.resort()
		return true
	}
	worst := len(a.entries) - 1
	if scoring.Compare(entry.Score, a.entries[worst].Score) < 0 {
		a.entries[worst] = entry
		a.resort()
		return true
	}
	return false
}

func (a *Archive) resort() {
	sort.SliceStable(a.entries, func(i, j int) bool {
		return scoring.Compare(a.entries[i].Score, a.entries[j].Score) < 0
	})
}

// Sample draws an entry biased toward the top of the archive via
// rng.EliteBiasedIndex, per spec §4.5's restart rule.
func (a *Archive) Sample(src rng.Source) (EliteEntry, bool) {
	if len(a.entries) == 0 {
		return EliteEntry{}, false
	}
	idx := rng.EliteBiasedIndex(src, len(a.entries))
	return a.entries[idx], true
}

// Len reports how many entries the archive currently holds.
func (a *Archive) Len() int { return len(a.entries) }

// Entries returns a defensive copy of the archive's contents, best first.
func (a *Archive) Entries() []EliteEntry {
	return append([]EliteEntry(nil), a.entries...)
}

// SnapshotMachines copies a grid's machine map so it can be stored in an
// EliteEntry without aliasing live grid state.
func SnapshotMachines(g *grid.GridState) map[string]model.Machine {
	out := make(map[string]model.Machine, len(g.Machines))
	for id, m := range g.Machines {
		out[id] = m
	}
	return out
}

// RebuildGrid reconstructs a grid from an archive entry's snapshot.
func RebuildGrid(width, height int, entry EliteEntry) *grid.GridState {
	g := grid.New(width, height)
	for _, m := range entry.Machines {
		g.Place(m)
	}
	return g
}

// Fingerprint builds the sorted "id:x,y,orient|..." string from spec §6.
func Fingerprint(machines map[string]model.Machine) string {
	ids := make([]string, 0, len(machines))
	for id := range machines {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		m := machines[id]
		parts = append(parts, fmt.Sprintf("%s:%d,%d,%s", id, m.X, m.Y, m.Orientation))
	}
	return strings.Join(parts, "|")
}

// Distance is the diversity metric from spec §6: per-machine L1 position
// distance plus 0/1 for orientation mismatch, averaged over shared
// machine ids. Two layouts with no machine ids in common are maximally
// distant.
func Distance(a, b map[string]model.Machine) float64 {
	shared := 0
	total := 0.0
	for id, ma := range a {
		mb, ok := b[id]
		if !ok {
			continue
		}
		shared++
		total += float64(absInt(ma.X-mb.X) + absInt(ma.Y-mb.Y))
		if ma.Orientation != mb.Orientation {
			total++
		}
	}
	if shared == 0 {
		return math.MaxFloat64
	}
	return total / float64(shared)
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
