package seeds

import (
	"beltforge/internal/grid"
	"beltforge/internal/model"
	"beltforge/internal/scoring"
)

const permutationBudget = 4000

// twoLayerExhaustive fires only when the topology has exactly two
// longest-path layers and the combined permutation space of the two rows
// is small enough to brute force. It tries every ordering of both rows,
// routes each, and keeps the best-scoring candidate, preferring any
// routable one; when none routes it keeps the best by fast score.
func twoLayerExhaustive(in Input) (*grid.GridState, bool) {
	layer := assignLayers(in.Machines, in.Connections)
	maxLayer := 0
	for _, l := range layer {
		if l > maxLayer {
			maxLayer = l
		}
	}
	if maxLayer != 1 {
		return nil, false
	}

	byID := make(map[string]model.Machine, len(in.Machines))
	var top, bot []model.Machine
	for _, m := range in.Machines {
		byID[m.ID] = m
		if layer[m.ID] == 0 {
			top = append(top, m)
		} else {
			bot = append(bot, m)
		}
	}

	if factorial(len(top))*factorial(len(bot)) > permutationBudget {
		return nil, false
	}

	var best *grid.GridState
	var bestScore scoring.Score
	bestRoutable := false
	found := false

	permute(top, func(topOrder []model.Machine) {
		permute(bot, func(botOrder []model.Machine) {
			g := buildTwoRowGrid(in, topOrder, botOrder)
			if g == nil {
				return
			}
			routable := routeAll(g)
			var sc scoring.Score
			if routable {
				sc = scoring.Routed(g)
			} else {
				sc = scoring.Fast(g)
			}
			if !found || (routable && !bestRoutable) || (routable == bestRoutable && scoring.Compare(sc, bestScore) < 0) {
				found = true
				best = g
				bestScore = sc
				bestRoutable = routable
			}
		})
	})

	return best, found
}

func buildTwoRowGrid(in Input, top, bot []model.Machine) *grid.GridState {
	g := grid.New(in.Width, in.Height)
	y := placementGap
	for _, row := range [][]model.Machine{top, bot} {
		x := placementGap
		rowHeight := 0
		for _, m := range row {
			m.Orientation = model.North
			w, h, ok := m.Dimensions()
			if !ok {
				return nil
			}
			m.X, m.Y = x, y
			if !fits(g, m) {
				return nil
			}
			g.Place(m)
			x += w + placementGap
			if h > rowHeight {
				rowHeight = h
			}
		}
		y += rowHeight + placementGap
	}
	if !wireConnections(g, in.Connections) {
		return nil
	}
	return g
}

func factorial(n int) int {
	if n <= 1 {
		return 1
	}
	result := 1
	for i := 2; i <= n; i++ {
		result *= i
	}
	return result
}

// permute calls visit once for every ordering of items, using an
// in-place Heap's algorithm swap sequence.
func permute(items []model.Machine, visit func([]model.Machine)) {
	n := len(items)
	if n == 0 {
		visit(nil)
		return
	}
	work := append([]model.Machine(nil), items...)
	c := make([]int, n)
	visit(append([]model.Machine(nil), work...))
	i := 0
	for i < n {
		if c[i] < i {
			if i%2 == 0 {
				work[0], work[i] = work[i], work[0]
			} else {
				work[c[i]], work[i] = work[i], work[c[i]]
			}
			visit(append([]model.Machine(nil), work...))
			c[i]++
			i = 0
		} else {
			c[i] = 0
			i++
		}
	}
}
