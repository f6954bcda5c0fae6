package operators

import (
	"math"

	"beltforge/internal/grid"
	"beltforge/internal/model"
	"beltforge/internal/rng"
)

const (
	adaptiveWindow           = 20
	adaptiveDecay            = 0.9
	adaptiveMaxOperatorProb  = 0.45
	adaptiveWarmupIterations = 50
	stagnationResetWindow    = 150
	adaptiveFlattenFactor    = 0.5
	largeMoveRateEarly       = 0.25
	largeMoveRateLate        = 0.08

	// operatorProbabilityFloor is the minimum share every operator keeps
	// in the adaptive distribution regardless of reward, so a cold-streak
	// operator is never starved to zero and can still be sampled back into
	// relevance the moment it pays off.
	operatorProbabilityFloor = 0.01
)

var largeMoveNames = map[string]bool{
	"cluster_destroy_repair": true,
	"critical_net_focus":     true,
}

// DispatcherOptions carries the adaptive schedule's tunables, normally
// sourced from optimizer.Config so a caller's settings reach the
// dispatcher instead of being shadowed by this package's own constants.
// Zero-valued fields are filled in by NewDispatcher with the constants
// above, so an empty DispatcherOptions reproduces the historical fixed
// behavior.
type DispatcherOptions struct {
	// Window bounds how many recent positive gains per operator feed the
	// decayed-mean reward; the oldest entry is dropped once the window
	// fills, so an operator's reward actually forgets a stale high gain
	// instead of merely discounting it forever.
	Window int
	// WarmupIterations is how many Select calls use base weights only,
	// before the reward-weighted schedule takes over.
	WarmupIterations int
	// MaxOperatorProb caps any single operator's share of the adaptive
	// distribution before the floor-then-remainder allocation runs.
	MaxOperatorProb float64
	// StagnationResetWindow is how many consecutive RecordOutcome calls
	// without an improving move (improved set) before the distribution
	// blends back toward base weights and large moves are re-admitted
	// regardless of temperature. The dispatcher does not see the run's
	// best score, so a move that improves only on the current candidate
	// also resets the count.
	StagnationResetWindow int
	// FlattenFactor is how strongly a stagnating run blends the adaptive
	// distribution back toward base weights (0 = no blend, 1 = pure base).
	FlattenFactor float64
}

// DefaultDispatcherOptions reproduces this package's own constants, for
// callers that don't need to override the adaptive schedule.
func DefaultDispatcherOptions() DispatcherOptions {
	return DispatcherOptions{
		Window:                adaptiveWindow,
		WarmupIterations:      adaptiveWarmupIterations,
		MaxOperatorProb:       adaptiveMaxOperatorProb,
		StagnationResetWindow: stagnationResetWindow,
		FlattenFactor:         adaptiveFlattenFactor,
	}
}

func normalizeDispatcherOptions(opts DispatcherOptions) DispatcherOptions {
	if opts.Window <= 0 {
		opts.Window = adaptiveWindow
	}
	if opts.WarmupIterations <= 0 {
		opts.WarmupIterations = adaptiveWarmupIterations
	}
	if opts.MaxOperatorProb <= 0 {
		opts.MaxOperatorProb = adaptiveMaxOperatorProb
	}
	if opts.StagnationResetWindow <= 0 {
		opts.StagnationResetWindow = stagnationResetWindow
	}
	if opts.FlattenFactor <= 0 {
		opts.FlattenFactor = adaptiveFlattenFactor
	}
	return opts
}

// Dispatcher selects an operator each SA iteration using the adaptive
// reward-weighted schedule, falling back to fixed base weights during
// warm-up or when adaption is disabled.
type Dispatcher struct {
	ops      []Operator
	base     []float64
	reward   []float64
	gains    [][]float64
	adaptive bool
	opts     DispatcherOptions

	iteration           int
	iterationsSinceBest int
}

// NewDispatcher builds a dispatcher over ops with equal base weights,
// except that the two large-move operators share largeMoveRateEarly between
// them and the remaining operators split the rest. Zero-valued fields in
// opts fall back to this package's own constants.
func NewDispatcher(ops []Operator, adaptive bool, opts DispatcherOptions) *Dispatcher {
	base := make([]float64, len(ops))
	smallCount := 0
	for _, o := range ops {
		if !largeMoveNames[o.Name()] {
			smallCount++
		}
	}
	sharedScale := math.Max(0.05, 1-largeMoveRateEarly)
	for i, o := range ops {
		if largeMoveNames[o.Name()] {
			base[i] = largeMoveRateEarly / 2
		} else if smallCount > 0 {
			base[i] = sharedScale / float64(smallCount)
		}
	}
	return &Dispatcher{
		ops:      ops,
		base:     base,
		reward:   make([]float64, len(ops)),
		gains:    make([][]float64, len(ops)),
		adaptive: adaptive,
		opts:     normalizeDispatcherOptions(opts),
	}
}

// RecordOutcome feeds back the score delta of the move the dispatcher most
// recently picked (negative is an improvement), pushing the gain into that
// operator's rolling window and recomputing its decayed-mean reward, and
// updating the stagnation counter.
func (d *Dispatcher) RecordOutcome(opIndex int, improved bool, delta float64) {
	d.iteration++
	if improved {
		gain := -delta
		if gain < 0 {
			gain = 0
		}
		d.gains[opIndex] = pushGain(d.gains[opIndex], gain, d.opts.Window)
		d.reward[opIndex] = decayedMean(d.gains[opIndex])
		d.iterationsSinceBest = 0
	} else {
		d.iterationsSinceBest++
	}
}

// pushGain appends gain to window, trimming from the front once the
// window exceeds size so only the most recent size gains are retained.
func pushGain(window []float64, gain float64, size int) []float64 {
	window = append(window, gain)
	if len(window) > size {
		window = window[len(window)-size:]
	}
	return window
}

// decayedMean recomputes a decay-weighted average over gains, most recent
// entry weighted highest by adaptiveDecay per step back. Because it is
// recomputed fresh from the bounded window every call, an operator that
// goes cold has its reward fall off once the old gains age out of the
// window, rather than lingering indefinitely the way an unbounded EMA
// would.
func decayedMean(gains []float64) float64 {
	if len(gains) == 0 {
		return 0
	}
	sum, weightSum, weight := 0.0, 0.0, 1.0
	for i := len(gains) - 1; i >= 0; i-- {
		sum += weight * gains[i]
		weightSum += weight
		weight *= adaptiveDecay
	}
	return sum / weightSum
}

// Select picks an operator index according to the current distribution
// and a temperature fraction in [0,1] (how far T is from minTemp toward
// initialTemp), used to gate how aggressively large moves are offered.
func (d *Dispatcher) Select(src rng.Source, temperatureFraction float64) int {
	weights := d.distribution(temperatureFraction)
	total := 0.0
	for _, w := range weights {
		total += w
	}
	if total <= 0 {
		return src.Intn(len(d.ops))
	}
	roll := src.Float64() * total
	acc := 0.0
	for i, w := range weights {
		acc += w
		if roll <= acc {
			return i
		}
	}
	return len(weights) - 1
}

func (d *Dispatcher) distribution(temperatureFraction float64) []float64 {
	if !d.adaptive || d.iteration < d.opts.WarmupIterations {
		return d.gatedBase(temperatureFraction)
	}

	weights := make([]float64, len(d.ops))
	for i := range d.ops {
		multiplier := 1 + math.Log(1+d.reward[i])
		weights[i] = d.base[i] * multiplier
		if weights[i] > d.opts.MaxOperatorProb {
			weights[i] = d.opts.MaxOperatorProb
		}
	}
	weights = d.gateLargeMoves(weights, temperatureFraction)

	if d.iterationsSinceBest >= d.opts.StagnationResetWindow {
		for i := range weights {
			weights[i] = weights[i]*(1-d.opts.FlattenFactor) + d.base[i]*d.opts.FlattenFactor
		}
	}
	return allocate(weights, d.opts.MaxOperatorProb)
}

// allocate turns capped per-operator weights into a probability
// distribution summing to 1: every operator is first given
// operatorProbabilityFloor, then the remaining mass is handed out in
// proportion to weight. An operator that would exceed maxProb instead
// gets only enough to reach the cap, and the leftover it couldn't absorb
// is redistributed among the operators that still have room, repeating
// until none do.
func allocate(weights []float64, maxProb float64) []float64 {
	n := len(weights)
	if n == 0 {
		return weights
	}
	floor := operatorProbabilityFloor
	if floor*float64(n) > 1 {
		floor = 1 / float64(n)
	}

	probs := make([]float64, n)
	remaining := 1.0
	room := make([]bool, n)
	for i := range probs {
		probs[i] = floor
		remaining -= floor
		room[i] = maxProb > floor
	}

	for remaining > 1e-9 {
		sumWeight := 0.0
		openCount := 0
		for i, has := range room {
			if has {
				sumWeight += weights[i]
				openCount++
			}
		}
		if openCount == 0 {
			break
		}
		if sumWeight <= 0 {
			share := remaining / float64(openCount)
			for i, has := range room {
				if has {
					probs[i] += share
				}
			}
			break
		}

		consumed := 0.0
		for i, has := range room {
			if !has {
				continue
			}
			share := remaining * weights[i] / sumWeight
			avail := maxProb - probs[i]
			if share >= avail {
				probs[i] += avail
				consumed += avail
				room[i] = false
			} else {
				probs[i] += share
				consumed += share
			}
		}
		remaining -= consumed
		if consumed <= 1e-12 {
			break
		}
	}
	return probs
}

func (d *Dispatcher) gatedBase(temperatureFraction float64) []float64 {
	weights := append([]float64(nil), d.base...)
	return d.gateLargeMoves(weights, temperatureFraction)
}

func (d *Dispatcher) gateLargeMoves(weights []float64, temperatureFraction float64) []float64 {
	rate := largeMoveRateLate
	if temperatureFraction >= 0.45 {
		rate = largeMoveRateEarly
	}
	if float64(d.iterationsSinceBest) > 0.6*float64(d.opts.StagnationResetWindow) {
		rate = largeMoveRateEarly
	}
	for i, o := range d.ops {
		if largeMoveNames[o.Name()] {
			weights[i] = rate / 2
		}
	}
	return weights
}

// Apply dispatches to a specific operator by index, mirroring the plain
// Operator.Apply signature — used both by Select-driven iterations and by
// forced-operator callers (elite-archive kicks, deterministic tests).
func (d *Dispatcher) Apply(index int, g *grid.GridState, conns []model.Connection, src rng.Source) bool {
	return d.ops[index].Apply(g, conns, src)
}

// IndexOf returns the position of the named operator, or -1.
func (d *Dispatcher) IndexOf(name string) int {
	for i, o := range d.ops {
		if o.Name() == name {
			return i
		}
	}
	return -1
}

// Name returns the operator name at index, for callers (e.g. the SA core)
// that need to recognize large moves without reaching into internals.
func (d *Dispatcher) Name(index int) string {
	return d.ops[index].Name()
}

// IsLargeMove reports whether name is one of the disruptive, time-gated
// operators (cluster_destroy_repair, critical_net_focus).
func IsLargeMove(name string) bool {
	return largeMoveNames[name]
}
