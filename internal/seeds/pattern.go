package seeds

import (
	"math"
	"sort"

	"beltforge/internal/grid"
	"beltforge/internal/model"
)

// patternAware recognizes two specific topologies where a specialized row
// placement beats the general layering pass, and abstains (ok=false) for
// everything else.
func patternAware(in Input) (*grid.GridState, bool) {
	if len(in.Machines) == 0 {
		return nil, false
	}
	if g, ok := threeLayerBipartite(in); ok {
		return g, true
	}
	if g, ok := ringWithChords(in); ok {
		return g, true
	}
	return nil, false
}

// threeLayerBipartite fires when every machine falls into exactly three
// longest-path layers and every connection runs strictly from one layer
// to the next (no layer-skipping edges): a clean source -> mid -> sink
// shape. Rows are packed in id order, which is enough structure for the
// case this specializes.
func threeLayerBipartite(in Input) (*grid.GridState, bool) {
	layer := assignLayers(in.Machines, in.Connections)
	maxLayer := 0
	for _, l := range layer {
		if l > maxLayer {
			maxLayer = l
		}
	}
	if maxLayer != 2 {
		return nil, false
	}
	for _, c := range in.Connections {
		if layer[c.TargetMachine] != layer[c.SourceMachine]+1 {
			return nil, false
		}
	}

	rows := make(map[int][]model.Machine)
	for _, m := range in.Machines {
		rows[layer[m.ID]] = append(rows[layer[m.ID]], m)
	}
	for l := range rows {
		sort.Slice(rows[l], func(i, j int) bool { return rows[l][i].ID < rows[l][j].ID })
	}

	g := grid.New(in.Width, in.Height)
	y := placementGap
	for l := 0; l <= maxLayer; l++ {
		x := placementGap
		rowHeight := 0
		for _, m := range rows[l] {
			m.Orientation = model.North
			w, h, ok := m.Dimensions()
			if !ok {
				return nil, false
			}
			m.X, m.Y = x, y
			if !fits(g, m) {
				return nil, false
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
		return nil, false
	}
	return g, true
}

// ringWithChords fires for eight-or-more machines whose undirected
// connection graph is connected with every machine touching at least two
// others (a ring backbone, possibly with extra chord connections). It
// arranges machines around a circle in breadth-first visiting order,
// which keeps ring neighbors adjacent even when chords are present.
func ringWithChords(in Input) (*grid.GridState, bool) {
	if len(in.Machines) < 8 {
		return nil, false
	}
	adjacency := make(map[string][]string)
	for _, c := range in.Connections {
		adjacency[c.SourceMachine] = append(adjacency[c.SourceMachine], c.TargetMachine)
		adjacency[c.TargetMachine] = append(adjacency[c.TargetMachine], c.SourceMachine)
	}
	for _, m := range in.Machines {
		if len(adjacency[m.ID]) < 2 {
			return nil, false
		}
	}

	order := bfsOrder(in.Machines, adjacency)
	if len(order) != len(in.Machines) {
		return nil, false // graph isn't connected
	}

	byID := make(map[string]model.Machine, len(in.Machines))
	for _, m := range in.Machines {
		byID[m.ID] = m
	}

	cx := float64(in.Width) / 2
	cy := float64(in.Height) / 2
	radius := cx
	if cy < radius {
		radius = cy
	}
	radius -= 4
	if radius < 2 {
		radius = 2
	}

	g := grid.New(in.Width, in.Height)
	n := len(order)
	for i, id := range order {
		m := byID[id]
		m.Orientation = model.North
		angle := 2 * math.Pi * float64(i) / float64(n)
		x := int(cx + radius*math.Cos(angle))
		y := int(cy + radius*math.Sin(angle))
		m.X, m.Y = x, y
		if !fits(g, m) {
			repaired, ok := spiralSearch(g, m, x, y)
			if !ok {
				return nil, false
			}
			m = repaired
		}
		g.Place(m)
	}
	if !wireConnections(g, in.Connections) {
		return nil, false
	}
	return g, true
}

func bfsOrder(machines []model.Machine, adjacency map[string][]string) []string {
	if len(machines) == 0 {
		return nil
	}
	visited := make(map[string]bool, len(machines))
	queue := []string{machines[0].ID}
	visited[machines[0].ID] = true
	var order []string
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		order = append(order, cur)
		neighbors := append([]string(nil), adjacency[cur]...)
		sort.Strings(neighbors)
		for _, n := range neighbors {
			if !visited[n] {
				visited[n] = true
				queue = append(queue, n)
			}
		}
	}
	return order
}
