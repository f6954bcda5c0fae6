// Package anneal implements the SA core described in spec §4.5: the
// temperature schedule, acceptance rule, reheat, and elite-archive
// bookkeeping shared by Phase 1 (fast-score) and Phase 2 (routed-score)
// annealing. It is deliberately blind to what it's scoring — the caller
// supplies an Evaluator so the same loop drives both phases.
package anneal

import (
	"math"

	"beltforge/internal/grid"
	"beltforge/internal/model"
	"beltforge/internal/operators"
	"beltforge/internal/rng"
	"beltforge/internal/scoring"
)

// Config is the cooling schedule and batching knobs for one SA phase.
type Config struct {
	InitialTemp             float64
	CoolingRate             float64
	MinTemp                 float64
	BatchSize               int
	IterPerTemp             int
	ReheatStagnationBatches int
	ImprovementThreshold    float64
	CooldownBatches         int
}

// DefaultConfig is a reasonable schedule for either phase; the optimizer
// uses it unchanged for Phases 1 and 2 and derives Phase 4's cooler run
// from it.
func DefaultConfig() Config {
	return Config{
		InitialTemp:             100,
		CoolingRate:             0.92,
		MinTemp:                 0.5,
		BatchSize:               20,
		IterPerTemp:             5,
		ReheatStagnationBatches: 5,
		ImprovementThreshold:    0.01,
		CooldownBatches:         3,
	}
}

// Evaluator scores a grid for SA acceptance. Phase 1's evaluator is the
// pure Manhattan proxy; Phase 2's folds an unroutable penalty into the
// score so unroutable and routable candidates stay comparable by Total().
type Evaluator func(g *grid.GridState) (routed bool, score scoring.Score)

type scoredEval struct {
	routed bool
	score  scoring.Score
}

func evalCandidate(g *grid.GridState, eval Evaluator) scoredEval {
	routed, score := eval(g)
	return scoredEval{routed: routed, score: score}
}

type candidate struct {
	grid   *grid.GridState
	routed bool
	score  scoring.Score
}

// Progress is invoked once per outer batch with the running best total
// score, a caller-supplied phase label, and the iteration count so far.
type Progress func(best scoring.Score, phase string, iterations int)

// Result is the outcome of one Run.
type Result struct {
	// BestRoutable is the best fully-routed grid observed, or nil if
	// nothing routed during the run.
	BestRoutable      *grid.GridState
	BestRoutableScore scoring.Score
	// BestTotal is the lowest-Total() candidate seen regardless of
	// routed-ness, used to seed the next phase or the elite archive.
	BestTotal       *grid.GridState
	BestTotalScore  scoring.Score
	BestTotalRouted bool
	Iterations      int
}

// Run drives the cooling schedule from spec §4.5: each outer batch
// performs BatchSize*IterPerTemp operator-dispatch iterations under
// Metropolis acceptance, then cools T by CoolingRate, reheating after
// ReheatStagnationBatches consecutive batches with no best improvement.
// shouldStop is polled once per outer batch (never mid-A*, never
// mid-operator), per spec §5's batch-granular cancellation rule. A nil
// predicate means the run always goes to completion.
func Run(start *grid.GridState, conns []model.Connection, cfg Config, dispatcher *operators.Dispatcher, eval Evaluator, src rng.Source, phase string, progress Progress, shouldStop func() bool) Result {
	current := start.Clone()
	currentEval := evalCandidate(current, eval)

	best := candidate{grid: current.Clone(), routed: currentEval.routed, score: currentEval.score}
	var bestRoutable *grid.GridState
	var bestRoutableScore scoring.Score
	if currentEval.routed {
		bestRoutable = current.Clone()
		bestRoutableScore = currentEval.score
	}

	temp := cfg.InitialTemp
	stagnantBatches := 0
	cooldownRemaining := 0
	iterations := 0
	fallbackMoveIndex := dispatcher.IndexOf("move_toward_neighbor")

	for temp > cfg.MinTemp {
		improvedThisBatch := false

		for i := 0; i < cfg.BatchSize*cfg.IterPerTemp; i++ {
			fraction := temperatureFraction(temp, cfg.InitialTemp, cfg.MinTemp)
			opIndex := dispatcher.Select(src, fraction)
			if cooldownRemaining > 0 && operators.IsLargeMove(dispatcher.Name(opIndex)) && fallbackMoveIndex >= 0 {
				opIndex = fallbackMoveIndex
			}

			trial := current.Clone()
			applied := dispatcher.Apply(opIndex, trial, conns, src)
			iterations++
			if !applied {
				dispatcher.RecordOutcome(opIndex, false, 0)
				continue
			}

			trialEval := evalCandidate(trial, eval)
			delta := trialEval.score.Total() - currentEval.score.Total()

			accept := delta < 0
			if !accept && temp > 0 {
				accept = src.Float64() < math.Exp(-delta/temp)
			}
			dispatcher.RecordOutcome(opIndex, delta < 0, delta)
			if accept {
				current = trial
				currentEval = trialEval
			}

			if trialEval.score.Total() < best.score.Total()-1e-9 {
				prevBestTotal := best.score.Total()
				best = candidate{grid: trial.Clone(), routed: trialEval.routed, score: trialEval.score}
				improvedThisBatch = true
				if improvementRatio(prevBestTotal, best.score.Total()) >= cfg.ImprovementThreshold {
					cooldownRemaining = cfg.CooldownBatches
				}
			}
			if trialEval.routed && (bestRoutable == nil || scoring.Compare(trialEval.score, bestRoutableScore) < 0) {
				bestRoutable = trial.Clone()
				bestRoutableScore = trialEval.score
			}
		}

		if improvedThisBatch {
			stagnantBatches = 0
		} else {
			stagnantBatches++
		}
		if cooldownRemaining > 0 {
			cooldownRemaining--
		}
		if progress != nil {
			progress(best.score, phase, iterations)
		}

		if shouldStop != nil && shouldStop() {
			break
		}

		if stagnantBatches >= cfg.ReheatStagnationBatches {
			temp = math.Min(cfg.InitialTemp/2, 3*temp)
			current = best.grid.Clone()
			currentEval = scoredEval{routed: best.routed, score: best.score}
			stagnantBatches = 0
			continue
		}
		temp *= cfg.CoolingRate
	}

	return Result{
		BestRoutable:      bestRoutable,
		BestRoutableScore: bestRoutableScore,
		BestTotal:         best.grid,
		BestTotalScore:    best.score,
		BestTotalRouted:   best.routed,
		Iterations:        iterations,
	}
}

func temperatureFraction(temp, initial, min float64) float64 {
	if initial <= min {
		return 0
	}
	f := (temp - min) / (initial - min)
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	default:
		return f
	}
}

func improvementRatio(prevBest, newBest float64) float64 {
	if prevBest == 0 {
		if newBest < 0 {
			return 1
		}
		return 0
	}
	return (prevBest - newBest) / math.Abs(prevBest)
}

// Kick applies one or two random operator applications to a clone of g,
// used when a restart is seeded from the elite archive. The kicks are
// applied without routing g or the result; Kick checks no routability.
func Kick(g *grid.GridState, conns []model.Connection, dispatcher *operators.Dispatcher, src rng.Source) *grid.GridState {
	trial := g.Clone()
	kicks := 1 + src.Intn(2)
	opCount := len(operators.All())
	for i := 0; i < kicks; i++ {
		dispatcher.Apply(src.Intn(opCount), trial, conns, src)
	}
	return trial
}
