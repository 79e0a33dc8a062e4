// Package layout places lineage nodes on a left-to-right layered drawing.
//
// Compute runs four phases: ranks come from longest-path layering over the
// graph with back edges reversed, layers are ordered with alternating
// barycenter sweeps, boxes are stacked within each layer, and the centred
// coordinates are converted to top-left anchors.
package layout

import (
	"math"
	"sort"

	"github.com/leapstack-labs/leaplineage/internal/dag"
	"github.com/leapstack-labs/leaplineage/internal/lineage"
)

// Options holds the geometry parameters. Zero values fall back to the defaults.
//
// RankSep is the empty gap between the right edge of one layer and the left
// edge of the next, so layers repeat every NodeWidth+RankSep. That stride is
// always at least the node width, whatever RankSep is.
type Options struct {
	NodeWidth  float64 `json:"node_width" koanf:"node_width"`
	BaseHeight float64 `json:"base_height" koanf:"base_height"`
	RowHeight  float64 `json:"row_height" koanf:"row_height"`
	NodeSep    float64 `json:"node_sep" koanf:"node_sep"`
	RankSep    float64 `json:"rank_sep" koanf:"rank_sep"`
	MarginX    float64 `json:"margin_x" koanf:"margin_x"`
	MarginY    float64 `json:"margin_y" koanf:"margin_y"`
	Passes     int     `json:"passes" koanf:"passes"`
}

// Default geometry, matching the lineage viewer's node cards.
const (
	DefaultNodeWidth  = 240
	DefaultBaseHeight = 80
	DefaultRowHeight  = 28
	DefaultNodeSep    = 120
	DefaultRankSep    = 200
	DefaultMarginX    = 60
	DefaultMarginY    = 60
	DefaultPasses     = 8
)

// DefaultOptions returns the default geometry.
func DefaultOptions() Options {
	return Options{
		NodeWidth:  DefaultNodeWidth,
		BaseHeight: DefaultBaseHeight,
		RowHeight:  DefaultRowHeight,
		NodeSep:    DefaultNodeSep,
		RankSep:    DefaultRankSep,
		MarginX:    DefaultMarginX,
		MarginY:    DefaultMarginY,
		Passes:     DefaultPasses,
	}
}

// WithDefaults replaces unset or negative values with the defaults.
func (o Options) WithDefaults() Options {
	d := DefaultOptions()
	pick := func(v, def float64) float64 {
		if v <= 0 {
			return def
		}
		return v
	}
	o.NodeWidth = pick(o.NodeWidth, d.NodeWidth)
	o.BaseHeight = pick(o.BaseHeight, d.BaseHeight)
	o.RowHeight = pick(o.RowHeight, d.RowHeight)
	o.NodeSep = pick(o.NodeSep, d.NodeSep)
	o.RankSep = pick(o.RankSep, d.RankSep)
	o.MarginX = pick(o.MarginX, d.MarginX)
	o.MarginY = pick(o.MarginY, d.MarginY)
	if o.Passes <= 0 {
		o.Passes = d.Passes
	}
	return o
}

// NodeHeight returns the box height for a node with the given row count.
// A node without rows still reserves one row.
func (o Options) NodeHeight(rows int) float64 {
	if rows < 1 {
		rows = 1
	}
	return o.BaseHeight + float64(rows)*o.RowHeight
}

// Node is the input shape: an id and the number of field rows it renders.
type Node struct {
	ID   string
	Rows int
}

// Edge is a directed input edge between node ids.
type Edge struct {
	Source string
	Target string
}

// Position is a top-left anchored box.
type Position struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Rank   int     `json:"rank"`
	Order  int     `json:"order"`
}

// Result is the output of Compute.
type Result struct {
	Positions map[string]Position `json:"positions"`
	Layers    [][]string          `json:"layers"`
	Width     float64             `json:"width"`
	Height    float64             `json:"height"`
	Reversed  int                 `json:"reversed"`
	Crossings int                 `json:"crossings"`
}

// Position returns the box for id. A missing id means the node was not
// positioned; callers treat that as "not yet placed".
func (r *Result) Position(id string) (Position, bool) {
	if r == nil {
		return Position{}, false
	}
	p, ok := r.Positions[id]
	return p, ok
}

// ForGraph lays out an aggregated lineage graph. Each node renders one row per field.
func ForGraph(g *lineage.Graph, opts Options) *Result {
	if g == nil {
		return Compute(nil, nil, opts)
	}
	nodes := make([]Node, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		nodes = append(nodes, Node{ID: n.ID, Rows: len(n.Fields)})
	}
	edges := make([]Edge, 0, len(g.Edges))
	for _, e := range g.Edges {
		edges = append(edges, Edge{Source: e.Source, Target: e.Target})
	}
	return Compute(nodes, edges, opts)
}

// Compute lays out nodes and edges. Node order is the tie breaker everywhere,
// so equal input always yields equal output. Self loops, duplicate edges and
// edges to unknown nodes are ignored.
func Compute(nodes []Node, edges []Edge, opts Options) *Result {
	opts = opts.WithDefaults()
	res := &Result{Positions: make(map[string]Position), Layers: [][]string{}}
	if len(nodes) == 0 {
		return res
	}

	g := dag.NewGraph()
	rows := make(map[string]int, len(nodes))
	for _, n := range nodes {
		if _, dup := rows[n.ID]; dup {
			continue
		}
		rows[n.ID] = n.Rows
		g.AddNode(n.ID, nil)
	}
	for _, e := range edges {
		// unknown endpoints and self loops are rejected by AddEdge
		_ = g.AddEdge(e.Source, e.Target)
	}

	acyclic, reversed := g.Acyclic()
	res.Reversed = reversed

	lg := buildLayers(acyclic)
	res.Crossings = lg.order(opts.Passes)

	place(lg, rows, opts, res)
	return res
}

// place assigns coordinates from the final ordering.
func place(lg *layered, rows map[string]int, opts Options, res *Result) {
	heights := make([]float64, len(lg.layers))
	tallest := 0.0
	for r, layer := range lg.layers {
		n := 0
		for _, idx := range layer {
			v := lg.vertices[idx]
			if v.virtual {
				continue
			}
			heights[r] += opts.NodeHeight(rows[v.id])
			n++
		}
		if n > 1 {
			heights[r] += float64(n-1) * opts.NodeSep
		}
		tallest = math.Max(tallest, heights[r])
	}

	res.Layers = make([][]string, len(lg.layers))
	for r, layer := range lg.layers {
		cx := opts.MarginX + float64(r)*(opts.NodeWidth+opts.RankSep) + opts.NodeWidth/2
		cursor := opts.MarginY + (tallest-heights[r])/2
		ids := make([]string, 0, len(layer))
		for _, idx := range layer {
			v := lg.vertices[idx]
			if v.virtual {
				continue
			}
			h := opts.NodeHeight(rows[v.id])
			cy := cursor + h/2
			cursor += h + opts.NodeSep

			res.Positions[v.id] = Position{
				X:      cx - opts.NodeWidth/2,
				Y:      cy - h/2,
				Width:  opts.NodeWidth,
				Height: h,
				Rank:   r,
				Order:  len(ids),
			}
			ids = append(ids, v.id)
		}
		res.Layers[r] = ids
	}

	ranks := float64(len(lg.layers))
	res.Width = 2*opts.MarginX + ranks*opts.NodeWidth + (ranks-1)*opts.RankSep
	res.Height = 2*opts.MarginY + tallest
}

// vertex is a real node or a virtual node splitting a long edge.
type vertex struct {
	id      string
	virtual bool
	rank    int
	up      []int // neighbours in rank-1
	down    []int // neighbours in rank+1
}

// layered is the proper layered graph: every edge spans exactly one rank.
type layered struct {
	vertices []vertex
	layers   [][]int
}

func buildLayers(g *dag.Graph) *layered {
	levels := g.GetExecutionLevels()

	lg := &layered{layers: make([][]int, len(levels))}
	index := make(map[string]int, g.NodeCount())
	for r, ids := range levels {
		for _, id := range ids {
			index[id] = lg.add(vertex{id: id, rank: r})
		}
	}

	for _, e := range g.Edges() {
		from, to := index[e.From], index[e.To]
		prev := from
		for r := lg.vertices[from].rank + 1; r < lg.vertices[to].rank; r++ {
			v := lg.add(vertex{id: e.From + "->" + e.To, virtual: true, rank: r})
			lg.link(prev, v)
			prev = v
		}
		lg.link(prev, to)
	}
	return lg
}

func (lg *layered) add(v vertex) int {
	idx := len(lg.vertices)
	lg.vertices = append(lg.vertices, v)
	lg.layers[v.rank] = append(lg.layers[v.rank], idx)
	return idx
}

func (lg *layered) link(upper, lower int) {
	lg.vertices[upper].down = append(lg.vertices[upper].down, lower)
	lg.vertices[lower].up = append(lg.vertices[lower].up, upper)
}

// order runs alternating barycenter sweeps and keeps the ordering with the
// fewest crossings, preferring the earliest on ties. It returns that count.
func (lg *layered) order(passes int) int {
	pos := make([]int, len(lg.vertices))
	lg.index(pos)

	best := lg.snapshot()
	bestCrossings := lg.crossings(pos)

	for pass := 0; pass < passes && bestCrossings > 0; pass++ {
		if pass%2 == 0 {
			for r := 1; r < len(lg.layers); r++ {
				lg.sweep(r, pos, func(v *vertex) []int { return v.up })
			}
		} else {
			for r := len(lg.layers) - 2; r >= 0; r-- {
				lg.sweep(r, pos, func(v *vertex) []int { return v.down })
			}
		}

		if c := lg.crossings(pos); c < bestCrossings {
			bestCrossings = c
			best = lg.snapshot()
		}
	}

	lg.layers = best
	return bestCrossings
}

// sweep reorders layer r by the mean position of each vertex's neighbours.
// A vertex without neighbours keeps its current position as its weight.
func (lg *layered) sweep(r int, pos []int, neighbours func(*vertex) []int) {
	layer := lg.layers[r]
	weight := make(map[int]float64, len(layer))
	for _, idx := range layer {
		adj := neighbours(&lg.vertices[idx])
		if len(adj) == 0 {
			weight[idx] = float64(pos[idx])
			continue
		}
		sum := 0
		for _, n := range adj {
			sum += pos[n]
		}
		weight[idx] = float64(sum) / float64(len(adj))
	}

	sort.SliceStable(layer, func(i, j int) bool {
		return weight[layer[i]] < weight[layer[j]]
	})
	for i, idx := range layer {
		pos[idx] = i
	}
}

// crossings counts pairwise crossings between every pair of adjacent layers.
func (lg *layered) crossings(pos []int) int {
	total := 0
	for r := 0; r+1 < len(lg.layers); r++ {
		var segs [][2]int
		for _, idx := range lg.layers[r] {
			for _, d := range lg.vertices[idx].down {
				segs = append(segs, [2]int{pos[idx], pos[d]})
			}
		}
		for i := 0; i < len(segs); i++ {
			for j := i + 1; j < len(segs); j++ {
				a, b := segs[i], segs[j]
				if (a[0] < b[0] && a[1] > b[1]) || (a[0] > b[0] && a[1] < b[1]) {
					total++
				}
			}
		}
	}
	return total
}

func (lg *layered) index(pos []int) {
	for _, layer := range lg.layers {
		for i, idx := range layer {
			pos[idx] = i
		}
	}
}

func (lg *layered) snapshot() [][]int {
	out := make([][]int, len(lg.layers))
	for r, layer := range lg.layers {
		out[r] = append([]int(nil), layer...)
	}
	return out
}
