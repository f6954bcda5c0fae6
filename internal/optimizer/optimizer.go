package optimizer

import (
	"sort"
	"time"

	"beltforge/internal/anneal"
	"beltforge/internal/grid"
	"beltforge/internal/model"
	"beltforge/internal/operators"
	"beltforge/internal/polish"
	"beltforge/internal/portassign"
	"beltforge/internal/rng"
	"beltforge/internal/routing"
	"beltforge/internal/scoring"
	"beltforge/internal/seeds"
)

// Unroutable-penalty constants from spec §4.5's "UNROUTABLE_BASE +
// k1*|E| + k2*|V| added to the fast score when routing fails." The
// penalty is folded into Score.Belts (weight 1.0 in Total()) rather than
// carried as a separate field, so it drives both SA acceptance and
// Compare with the same lexicographic priority as real belt length —
// see DESIGN.md for why Belts was chosen over Area/Corners.
const (
	unroutableBase   = 1000.0
	unroutableEdgeK  = 50.0
	unroutableNodeK  = 20.0
)

// ProgressEvent is one progress callback firing: the running best score,
// which phase produced it, and the cumulative iteration count for that
// phase's SA run (0 for the non-SA phases).
type ProgressEvent struct {
	Phase      string
	Best       scoring.Score
	Iterations int
}

// ProgressFunc receives one ProgressEvent per outer SA batch, plus one
// synthetic event per non-SA phase boundary.
type ProgressFunc func(ProgressEvent)

// Diagnostic is a recorded ProgressEvent, kept on Result so a caller that
// didn't wire a ProgressFunc can still inspect the run's trajectory
// afterward.
type Diagnostic struct {
	Phase      string
	Best       scoring.Score
	Iterations int
}

// Result is the outcome of one optimizer invocation.
type Result struct {
	Grid        *grid.GridState
	Connections []model.Connection
	Score       scoring.Score
	Routed      bool
	Iterations  int
	Diagnostics []Diagnostic
	// Archive is populated only when cfg.PersistEliteArchive is set.
	Archive *anneal.Archive
}

type candidateSnapshot struct {
	grid   *grid.GridState
	conns  []model.Connection
	routed bool
	score  scoring.Score
}

// wins reports whether (candRouted, candScore) should replace
// (curRouted, curScore): routed beats unroutable, and within the same
// routed-ness bucket the lower score wins. This is the same rule
// internal/seeds and internal/polish each define locally; the optimizer
// needs it at the phase-boundary level too, comparing across seeds,
// restarts, and the original baseline.
func wins(candRouted bool, candScore scoring.Score, curRouted bool, curScore scoring.Score) bool {
	if candRouted != curRouted {
		return candRouted
	}
	return scoring.Compare(candScore, curScore) < 0
}

// regressed reports whether (candRouted, candScore) is strictly worse
// than (baseRouted, baseScore) — the mirror of wins with ties read as
// acceptable, used for the final baseline-monotonicity guarantee.
func regressed(candRouted bool, candScore scoring.Score, baseRouted bool, baseScore scoring.Score) bool {
	if candRouted != baseRouted {
		return !candRouted
	}
	return scoring.Compare(candScore, baseScore) > 0
}

// Run performs one full Phase 0 through Phase 4 pass: seed selection,
// fast-score annealing, routed-score annealing, port reassignment, and
// compaction/orientation polish. Normal mode runs every configured
// restart/attempt to completion; deep mode (whether Run is called
// directly or through Session) bounds the same machinery by a wall-clock
// deadline. The returned layout is never worse, by the routed-then-score
// ordering, than the input grid's own routed score — when every phase
// fails to improve on it, the original is returned unchanged.
func Run(g *grid.GridState, conns []model.Connection, cfg Config, onProgress ProgressFunc, shouldStop func() bool) Result {
	cfg.Normalize()

	src := newSource(cfg.Seed)
	archive := anneal.NewArchive(cfg.ElitePoolSize, cfg.EliteMinDistance)
	for _, e := range cfg.IncomingArchive {
		archive.Consider(e)
	}

	var deadline time.Time
	if cfg.Mode == "deep" && cfg.TimeBudgetMs > 0 {
		deadline = time.Now().Add(time.Duration(cfg.TimeBudgetMs) * time.Millisecond)
	}

	result := runPhases(g, conns, cfg, archive, src, onProgress, shouldStop, deadline)
	if cfg.PersistEliteArchive {
		result.Archive = archive
	}
	return result
}

func newSource(seed uint32) rng.Source {
	if seed != 0 {
		return rng.NewLCG(seed)
	}
	return rng.NewSystemSource()
}

func combineStop(shouldStop func() bool, deadline time.Time) func() bool {
	return func() bool {
		if shouldStop != nil && shouldStop() {
			return true
		}
		return !deadline.IsZero() && time.Now().After(deadline)
	}
}

// runPhases is the shared engine behind Run and Session.Advance: given a
// starting grid/connection list, an archive to read from and contribute
// to, and an RNG source, it executes every phase and returns the best
// layout found, never regressing below the input's own routed score.
func runPhases(g *grid.GridState, conns []model.Connection, cfg Config, archive *anneal.Archive, src rng.Source, onProgress ProgressFunc, shouldStop func() bool, deadline time.Time) Result {
	stop := combineStop(shouldStop, deadline)

	var diagnostics []Diagnostic
	report := func(best scoring.Score, phase string, iterations int) {
		diagnostics = append(diagnostics, Diagnostic{Phase: phase, Best: best, Iterations: iterations})
		if onProgress != nil {
			onProgress(ProgressEvent{Phase: phase, Best: best, Iterations: iterations})
		}
	}

	baselineGrid := freshMachineGrid(g)
	baselineConns := append([]model.Connection(nil), conns...)
	baselineRouted, baselineScore, _ := evaluateRouted(baselineGrid, baselineConns)

	if len(g.Machines) == 0 {
		return Result{Grid: baselineGrid, Connections: baselineConns, Score: baselineScore, Routed: baselineRouted}
	}

	dispatcher := operators.NewDispatcher(operators.All(), cfg.AdaptiveOps, operators.DispatcherOptions{
		Window:                cfg.AdaptiveWindow,
		WarmupIterations:      cfg.AdaptiveWarmupIterations,
		MaxOperatorProb:       cfg.AdaptiveMaxOperatorProb,
		StagnationResetWindow: cfg.AdaptiveStagnationResetWindow,
		FlattenFactor:         cfg.AdaptiveFlattenFactor,
	})
	iterTotal := 0

	// Phase 0: seed selection. The current layout always participates
	// as a candidate; exploration seeds join it when enabled.
	curGrid, curConns, curRouted, curScore := baselineGrid, baselineConns, baselineRouted, baselineScore
	if cfg.UseExplorationSeeds && len(conns) > 0 {
		if seedResult, ok := seeds.Best(seeds.Input{
			Machines:    machineSlice(g),
			Connections: conns,
			Width:       g.Width,
			Height:      g.Height,
		}); ok {
			seedConns := portassign.Reassign(seedResult.Grid, connectionSlice(seedResult.Grid))
			seedGrid := freshMachineGrid(seedResult.Grid)
			seedRouted, seedScore, _ := evaluateRouted(seedGrid, seedConns)
			if wins(seedRouted, seedScore, curRouted, curScore) {
				curGrid, curConns, curRouted, curScore = seedGrid, seedConns, seedRouted, seedScore
			}
		}
	}
	report(curScore, "phase0", 0)

	if stop() {
		return finalize(curGrid, curConns, curRouted, curScore, baselineGrid, baselineConns, baselineRouted, baselineScore, iterTotal, diagnostics)
	}

	// Phase 1: fast-score annealing. phase1Restarts independent runs,
	// each after the first optionally seeded from the elite archive.
	phase1Cfg := anneal.DefaultConfig()
	best1 := candidateSnapshot{grid: curGrid, conns: curConns, routed: true, score: scoring.Fast(wireFresh(curGrid, curConns))}
	for attempt := 0; attempt < cfg.Phase1Restarts; attempt++ {
		if stop() {
			break
		}
		startGrid, startConns := best1.grid, best1.conns
		if attempt > 0 {
			if entry, ok := archive.Sample(src); ok {
				rebuilt := anneal.RebuildGrid(g.Width, g.Height, entry)
				startGrid = anneal.Kick(rebuilt, entry.Connections, dispatcher, src)
				startConns = entry.Connections
			}
		}
		phase1Start := wireFresh(startGrid, startConns)
		result := anneal.Run(phase1Start, startConns, phase1Cfg, dispatcher, phase1Evaluator, src.Spawn(), "phase1", report, stop)
		iterTotal += result.Iterations

		candConns := connectionSlice(result.BestTotal)
		if scoring.Compare(result.BestTotalScore, best1.score) < 0 {
			best1 = candidateSnapshot{grid: result.BestTotal, conns: candConns, routed: true, score: result.BestTotalScore}
		}
		archive.Consider(eliteEntryFrom(result.BestTotal, candConns, result.BestTotalScore))
	}

	// Phase 2: routed-score annealing, with the unroutable-penalty
	// fallback folded into phase2Evaluator.
	phase2Cfg := anneal.DefaultConfig()
	phase2StartGrid := freshMachineGrid(best1.grid)
	phase2StartConns := best1.conns
	best2 := candidateSnapshot{grid: phase2StartGrid, conns: phase2StartConns, routed: best1.routed, score: best1.score}
	have2 := false
	for attempt := 0; attempt < cfg.Phase2Attempts; attempt++ {
		if stop() {
			break
		}
		startGrid, startConns := phase2StartGrid, phase2StartConns
		if attempt > 0 {
			if entry, ok := archive.Sample(src); ok {
				rebuilt := anneal.RebuildGrid(g.Width, g.Height, entry)
				startGrid = anneal.Kick(rebuilt, entry.Connections, dispatcher, src)
				startConns = entry.Connections
			}
		}
		trialStart := wireFresh(startGrid, startConns)
		result := anneal.Run(trialStart, startConns, phase2Cfg, dispatcher, phase2Evaluator, src.Spawn(), "phase2", report, stop)
		iterTotal += result.Iterations

		if result.BestRoutable != nil {
			candConns := connectionSlice(result.BestRoutable)
			cand := candidateSnapshot{grid: result.BestRoutable, conns: candConns, routed: true, score: result.BestRoutableScore}
			if !have2 || wins(cand.routed, cand.score, best2.routed, best2.score) {
				best2, have2 = cand, true
			}
			archive.Consider(eliteEntryFrom(result.BestRoutable, candConns, result.BestRoutableScore))
		} else if !have2 {
			candConns := connectionSlice(result.BestTotal)
			best2 = candidateSnapshot{grid: result.BestTotal, conns: candConns, routed: false, score: result.BestTotalScore}
		}
	}

	// Phase 3: port reassignment.
	phase3Grid := freshMachineGrid(best2.grid)
	phase3Conns := portassign.Reassign(phase3Grid, best2.conns)
	_, score3, _ := evaluateRouted(phase3Grid, phase3Conns)
	report(score3, "phase3", 0)

	// Phase 4: compaction + orientation polish, localPolishPasses
	// rounds, each but the last followed by a short cooler SA run.
	polishGrid := phase3Grid
	polishConns := phase3Conns
	for pass := 0; pass < cfg.LocalPolishPasses; pass++ {
		if stop() {
			break
		}
		polishGrid = polish.Polish(polishGrid, polishConns)
		if pass == cfg.LocalPolishPasses-1 {
			continue
		}
		coolerCfg := phase2Cfg
		coolerCfg.InitialTemp = phase2Cfg.MinTemp * 8
		if phase2Cfg.BatchSize/4 > 3 {
			coolerCfg.BatchSize = phase2Cfg.BatchSize / 4
		} else {
			coolerCfg.BatchSize = 3
		}
		trialStart := wireFresh(polishGrid, polishConns)
		result := anneal.Run(trialStart, polishConns, coolerCfg, dispatcher, phase2Evaluator, src.Spawn(), "phase4_polish_sa", report, stop)
		iterTotal += result.Iterations
		if result.BestRoutable != nil {
			polishGrid = freshMachineGrid(result.BestRoutable)
			polishConns = connectionSlice(result.BestRoutable)
		}
	}

	finalRouted, finalScore, finalGrid := evaluateRouted(polishGrid, polishConns)
	report(finalScore, "phase4", 0)

	return finalize(finalGrid, polishConns, finalRouted, finalScore, baselineGrid, baselineConns, baselineRouted, baselineScore, iterTotal, diagnostics)
}

// finalize applies the baseline-monotonicity guarantee: the candidate
// wins only if it doesn't regress on the baseline.
func finalize(candGrid *grid.GridState, candConns []model.Connection, candRouted bool, candScore scoring.Score, baseGrid *grid.GridState, baseConns []model.Connection, baseRouted bool, baseScore scoring.Score, iterations int, diagnostics []Diagnostic) Result {
	if regressed(candRouted, candScore, baseRouted, baseScore) {
		return Result{Grid: baseGrid, Connections: baseConns, Score: baseScore, Routed: baseRouted, Iterations: iterations, Diagnostics: diagnostics}
	}
	return Result{Grid: candGrid, Connections: candConns, Score: candScore, Routed: candRouted, Iterations: iterations, Diagnostics: diagnostics}
}

func eliteEntryFrom(g *grid.GridState, conns []model.Connection, score scoring.Score) anneal.EliteEntry {
	machines := anneal.SnapshotMachines(g)
	return anneal.EliteEntry{
		Machines:    machines,
		Connections: conns,
		Score:       score,
		Fingerprint: anneal.Fingerprint(machines),
	}
}

// phase1Evaluator is Phase 1's Manhattan-proxy evaluator: always
// "routed" since it never invokes the router at all.
func phase1Evaluator(g *grid.GridState) (bool, scoring.Score) {
	return true, scoring.Fast(g)
}

// phase2Evaluator builds a fresh routing attempt from g's own machines
// and connections (so it sees whatever try_different_port mutated this
// trial) and scores it routed if every connection found a path, else
// falls back to the fast score plus the unroutable penalty.
func phase2Evaluator(g *grid.GridState) (bool, scoring.Score) {
	conns := connectionSlice(g)
	route := freshMachineGrid(g)
	wireConnections(route, conns)
	if routeAllSorted(route) {
		return true, scoring.Routed(route)
	}
	score := scoring.Fast(route)
	score.Belts += unroutableBase + unroutableEdgeK*float64(len(conns)) + unroutableNodeK*float64(len(route.Machines))
	return false, score
}

// evaluateRouted builds a fresh grid from mg's machines plus conns,
// attempts to route every connection, and returns the routed score when
// that succeeds or the fast score otherwise, along with the grid it
// built (which carries applied belt paths only when routed is true).
func evaluateRouted(mg *grid.GridState, conns []model.Connection) (routed bool, score scoring.Score, g *grid.GridState) {
	route := freshMachineGrid(mg)
	wireConnections(route, conns)
	if routeAllSorted(route) {
		return true, scoring.Routed(route), route
	}
	return false, scoring.Fast(route), route
}

func wireFresh(mg *grid.GridState, conns []model.Connection) *grid.GridState {
	fresh := freshMachineGrid(mg)
	wireConnections(fresh, conns)
	return fresh
}

func freshMachineGrid(g *grid.GridState) *grid.GridState {
	fresh := grid.New(g.Width, g.Height)
	for _, m := range g.Machines {
		fresh.Place(m)
	}
	return fresh
}

func wireConnections(g *grid.GridState, conns []model.Connection) {
	ordered := append([]model.Connection(nil), conns...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })
	for _, c := range ordered {
		g.AddConnection(c)
	}
}

// routeAllSorted attempts to find and apply a belt path for every
// connection on g in id order, stopping at the first failure.
func routeAllSorted(g *grid.GridState) bool {
	ids := make([]string, 0, len(g.Connections))
	for id := range g.Connections {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		conn := g.Connections[id]
		sp, tp, ok := resolveEndpoints(g, conn)
		if !ok {
			return false
		}
		path, ok := routing.FindPath(g, sp, tp, "")
		if !ok {
			return false
		}
		path.ConnectionID = id
		routing.Apply(g, path)
	}
	return true
}

func resolveEndpoints(g *grid.GridState, c model.Connection) (src, tgt model.Port, ok bool) {
	_, outputs := g.Ports(c.SourceMachine)
	if c.SourcePort < 0 || c.SourcePort >= len(outputs) {
		return model.Port{}, model.Port{}, false
	}
	inputs, _ := g.Ports(c.TargetMachine)
	if c.TargetPort < 0 || c.TargetPort >= len(inputs) {
		return model.Port{}, model.Port{}, false
	}
	return outputs[c.SourcePort], inputs[c.TargetPort], true
}

func connectionSlice(g *grid.GridState) []model.Connection {
	ids := make([]string, 0, len(g.Connections))
	for id := range g.Connections {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]model.Connection, len(ids))
	for i, id := range ids {
		out[i] = g.Connections[id]
	}
	return out
}

func machineSlice(g *grid.GridState) []model.Machine {
	ids := make([]string, 0, len(g.Machines))
	for id := range g.Machines {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]model.Machine, len(ids))
	for i, id := range ids {
		out[i] = g.Machines[id]
	}
	return out
}
