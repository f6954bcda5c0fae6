// Package optimizer orchestrates the five optimizer phases (seed
// generation, fast-score annealing, routed-score annealing, port
// assignment, compaction/orientation polish) into the single run_optimizer
// operation, plus the deep-search continuous-loop state machine that
// chains fixed-budget invocations together. It is the consumer-facing
// layer: everything below it (anneal, seeds, portassign, polish,
// operators) is phase machinery with no notion of "a run."
package optimizer

import (
	"beltforge/internal/anneal"
)

// Config is the normalized set of options recognized by run_optimizer.
// Fields left at their zero value are filled in by Normalize; of those
// defaults only TimeBudgetMs depends on the mode. DefaultNormalConfig and
// DefaultDeepConfig are the per-mode presets, mirroring how the
// teacher's platform.Config/EvolutionConfig pair separates a small
// evolution's defaults from a long-running one's.
type Config struct {
	// Mode is "normal" or "deep"; anything else normalizes to "normal".
	Mode string

	// TimeBudgetMs is the wall-clock deadline in deep mode; ignored in
	// normal mode, which has no timeout and runs every restart/attempt
	// to completion.
	TimeBudgetMs int

	// Phase1Restarts and Phase2Attempts are how many independent SA
	// runs each phase performs before taking its best result forward.
	Phase1Restarts int
	Phase2Attempts int

	// LocalPolishPasses is how many compaction+orientation-polish
	// rounds Phase 4 runs, each optionally followed by a short, cooler
	// SA run per spec §4.7's "polish passes may interleave with a
	// short, cooler SA run when running deeper modes."
	LocalPolishPasses int

	// UseExplorationSeeds enables Phase 0's four seed generators
	// alongside the current layout as a seed candidate. When false,
	// only the current layout is considered.
	UseExplorationSeeds bool

	// AdaptiveOps toggles the operator dispatcher's reward-weighted
	// adaptive schedule; false falls back to fixed base weights.
	AdaptiveOps bool

	// ElitePoolSize and EliteMinDistance size and space the elite
	// archive. EliteDiversityHash is accepted for forward compatibility
	// with a future fingerprinting scheme but unused: the archive's
	// diversity check is the position/orientation Distance function
	// from spec §6, not a hash.
	ElitePoolSize      int
	EliteDiversityHash string
	EliteMinDistance   float64

	// LargeMoveRate, LargeMoveRateEarly, LargeMoveRateLate,
	// LargeMoveCooldownAfterImprove, CriticalNetRate, ClusterMoveMinSize
	// and ClusterMoveMaxSize are recognized and normalized here, but
	// the current operator dispatcher (internal/operators) reads its
	// own fixed constants rather than these fields — see DESIGN.md for
	// why that wiring was deferred rather than dropped.
	LargeMoveRate                 float64
	LargeMoveRateEarly            float64
	LargeMoveRateLate             float64
	LargeMoveCooldownAfterImprove int
	CriticalNetRate               float64
	ClusterMoveMinSize            int
	ClusterMoveMaxSize            int
	RepairBeamWidth               int

	// AdaptiveWindow, AdaptiveWarmupIterations, AdaptiveMaxOperatorProb,
	// AdaptiveStagnationResetWindow and AdaptiveFlattenFactor configure
	// the operator dispatcher's reward-weighted schedule
	// (internal/operators.DispatcherOptions). Normalize defaults them to
	// the dispatcher's own former hardcoded constants, so a caller that
	// never sets them sees identical behavior to before these fields
	// existed.
	AdaptiveWindow                int
	AdaptiveWarmupIterations      int
	AdaptiveMaxOperatorProb       float64
	AdaptiveStagnationResetWindow int
	AdaptiveFlattenFactor         float64

	// PlateauChunks is how many consecutive deep-mode chunks without an
	// improvement trigger AUTO_PLATEAU_STOP.
	PlateauChunks int

	// Seed drives the deterministic LCG; zero means "use the system
	// PRNG," matching spec §5's "when no seed is supplied."
	Seed uint32

	// PersistEliteArchive requests that Result.Archive be populated so
	// a caller can feed it back as IncomingArchive on a later call,
	// per spec's "persisting the elite archive between invocations."
	PersistEliteArchive bool
	IncomingArchive     []anneal.EliteEntry
}

// Normalize fills every unset field with a default, coercing invalid
// values (negative counts, an unrecognized mode) rather than rejecting
// them outright — Run hands this function whatever the caller supplied
// and trusts it to produce a usable config.
func (c *Config) Normalize() {
	if c.Mode != "deep" {
		c.Mode = "normal"
	}
	if c.TimeBudgetMs <= 0 && c.Mode == "deep" {
		c.TimeBudgetMs = 2000
	}
	if c.Phase1Restarts <= 0 {
		c.Phase1Restarts = 1
	}
	if c.Phase2Attempts <= 0 {
		c.Phase2Attempts = 1
	}
	if c.LocalPolishPasses <= 0 {
		c.LocalPolishPasses = 1
	}
	if c.ElitePoolSize <= 0 {
		c.ElitePoolSize = 8
	}
	if c.EliteMinDistance <= 0 {
		c.EliteMinDistance = 3
	}
	if c.LargeMoveRate <= 0 {
		c.LargeMoveRate = 0.25
	}
	if c.LargeMoveRateEarly <= 0 {
		c.LargeMoveRateEarly = 0.25
	}
	if c.LargeMoveRateLate <= 0 {
		c.LargeMoveRateLate = 0.08
	}
	if c.CriticalNetRate <= 0 {
		c.CriticalNetRate = c.LargeMoveRate / 2
	}
	if c.ClusterMoveMinSize <= 0 {
		c.ClusterMoveMinSize = 2
	}
	if c.ClusterMoveMaxSize < c.ClusterMoveMinSize {
		c.ClusterMoveMaxSize = 6
	}
	if c.RepairBeamWidth <= 0 {
		c.RepairBeamWidth = 3
	}
	if c.PlateauChunks <= 0 {
		c.PlateauChunks = 5
	}
	if c.LargeMoveCooldownAfterImprove <= 0 {
		c.LargeMoveCooldownAfterImprove = 3
	}
	if c.AdaptiveWindow <= 0 {
		c.AdaptiveWindow = 20
	}
	if c.AdaptiveWarmupIterations <= 0 {
		c.AdaptiveWarmupIterations = 50
	}
	if c.AdaptiveMaxOperatorProb <= 0 {
		c.AdaptiveMaxOperatorProb = 0.45
	}
	if c.AdaptiveStagnationResetWindow <= 0 {
		c.AdaptiveStagnationResetWindow = 150
	}
	if c.AdaptiveFlattenFactor <= 0 {
		c.AdaptiveFlattenFactor = 0.5
	}
}

// DefaultNormalConfig is a reasonable one-shot configuration: a couple of
// restarts per phase, seeds enabled, adaptive dispatch on, no time limit.
func DefaultNormalConfig() Config {
	c := Config{
		Mode:                "normal",
		Phase1Restarts:      2,
		Phase2Attempts:      2,
		LocalPolishPasses:   1,
		UseExplorationSeeds: true,
		AdaptiveOps:         true,
	}
	c.Normalize()
	return c
}

// DefaultDeepConfig is the deep-mode preset: a 5-second chunk budget,
// more restarts per phase, several polish passes with interleaved SA, and
// archive persistence on by default so a caller chaining Session.Advance
// calls gets continuity for free.
func DefaultDeepConfig() Config {
	c := Config{
		Mode:                "deep",
		TimeBudgetMs:        5000,
		Phase1Restarts:      4,
		Phase2Attempts:      4,
		LocalPolishPasses:   3,
		UseExplorationSeeds: true,
		AdaptiveOps:         true,
		PersistEliteArchive: true,
	}
	c.Normalize()
	return c
}
