package layout

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leaplineage/internal/lineage"
)

func nodes(ids ...string) []Node {
	out := make([]Node, 0, len(ids))
	for _, id := range ids {
		out = append(out, Node{ID: id, Rows: 1})
	}
	return out
}

func TestCompute_Empty(t *testing.T) {
	res := Compute(nil, nil, Options{})
	require.NotNil(t, res)
	assert.Empty(t, res.Positions)
	assert.Empty(t, res.Layers)
	assert.Zero(t, res.Width)
	assert.Zero(t, res.Height)
}

func TestCompute_EmptyEncodesArrays(t *testing.T) {
	data, err := json.Marshal(Compute(nil, nil, Options{}))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"layers":[]`)
	assert.Contains(t, string(data), `"positions":{}`)
}

func TestCompute_LayerStrideCoversNodeWidth(t *testing.T) {
	// a gap narrower than the node still leaves adjacent layers apart
	opts := Options{NodeWidth: 300, RankSep: 20}
	res := Compute(nodes("a", "b"), []Edge{{"a", "b"}}, opts)

	a, b := res.Positions["a"], res.Positions["b"]
	assert.Equal(t, float64(320), b.X-a.X)
	assert.GreaterOrEqual(t, b.X-(a.X+a.Width), float64(20))
}

func TestCompute_Chain(t *testing.T) {
	opts := DefaultOptions()
	res := Compute(nodes("a", "b", "c"), []Edge{{"a", "b"}, {"b", "c"}}, opts)

	assert.Equal(t, [][]string{{"a"}, {"b"}, {"c"}}, res.Layers)

	a, b, c := res.Positions["a"], res.Positions["b"], res.Positions["c"]
	assert.Equal(t, opts.MarginX, a.X)
	assert.Equal(t, opts.MarginY, a.Y)
	assert.Equal(t, a.X+opts.NodeWidth+opts.RankSep, b.X)
	assert.Equal(t, b.X+opts.NodeWidth+opts.RankSep, c.X)
	assert.Equal(t, 0, a.Rank)
	assert.Equal(t, 2, c.Rank)
	assert.Zero(t, res.Reversed)
}

func TestCompute_NodeHeight(t *testing.T) {
	opts := DefaultOptions()
	res := Compute([]Node{{ID: "empty", Rows: 0}, {ID: "wide", Rows: 5}}, nil, opts)

	assert.Equal(t, opts.BaseHeight+opts.RowHeight, res.Positions["empty"].Height)
	assert.Equal(t, opts.BaseHeight+5*opts.RowHeight, res.Positions["wide"].Height)
	assert.Equal(t, opts.NodeWidth, res.Positions["wide"].Width)
}

func TestCompute_NoOverlapWithinLayer(t *testing.T) {
	opts := DefaultOptions()
	in := []Node{{"src", 2}, {"t1", 4}, {"t2", 1}, {"t3", 7}}
	res := Compute(in, []Edge{{"src", "t1"}, {"src", "t2"}, {"src", "t3"}}, opts)

	require.Len(t, res.Layers, 2)
	layer := res.Layers[1]
	require.Len(t, layer, 3)
	for i := 1; i < len(layer); i++ {
		prev := res.Positions[layer[i-1]]
		cur := res.Positions[layer[i]]
		assert.GreaterOrEqual(t, cur.Y-(prev.Y+prev.Height), opts.NodeSep,
			"%s and %s overlap", layer[i-1], layer[i])
	}
}

func TestCompute_LaterRankIsRightOfEarlierRank(t *testing.T) {
	opts := DefaultOptions()
	res := Compute(nodes("a", "b", "c", "d", "e"),
		[]Edge{{"a", "b"}, {"a", "c"}, {"c", "d"}, {"b", "d"}, {"d", "e"}, {"a", "e"}}, opts)

	for id, p := range res.Positions {
		for other, q := range res.Positions {
			if q.Rank > p.Rank {
				assert.GreaterOrEqual(t, q.X, p.X+opts.NodeWidth+opts.RankSep,
					"%s (rank %d) vs %s (rank %d)", other, q.Rank, id, p.Rank)
			}
		}
	}
}

func TestCompute_LayersCentredVertically(t *testing.T) {
	opts := DefaultOptions()
	res := Compute(nodes("a", "b", "c"), []Edge{{"a", "b"}, {"a", "c"}}, opts)

	a := res.Positions["a"]
	b := res.Positions["b"]
	c := res.Positions["c"]
	top, bottom := b.Y, c.Y+c.Height
	assert.InDelta(t, (top+bottom)/2, a.Y+a.Height/2, 1e-9)
	assert.Equal(t, opts.MarginY, b.Y)
}

func TestCompute_CycleTerminates(t *testing.T) {
	done := make(chan *Result, 1)
	go func() {
		done <- Compute(nodes("a", "b"), []Edge{{"a", "b"}, {"b", "a"}}, Options{})
	}()

	select {
	case res := <-done:
		require.Len(t, res.Positions, 2)
		assert.Equal(t, 1, res.Reversed)
		assert.Less(t, res.Positions["a"].X, res.Positions["b"].X)
	case <-time.After(5 * time.Second):
		t.Fatal("layout did not terminate on a cycle")
	}
}

func TestCompute_LongCycle(t *testing.T) {
	res := Compute(nodes("a", "b", "c", "d"),
		[]Edge{{"a", "b"}, {"b", "c"}, {"c", "d"}, {"d", "b"}}, Options{})

	require.Len(t, res.Positions, 4)
	assert.Equal(t, 1, res.Reversed)
	assert.Equal(t, 0, res.Positions["a"].Rank)
	assert.Equal(t, 1, res.Positions["b"].Rank)
	assert.Equal(t, 2, res.Positions["c"].Rank)
	assert.Equal(t, 3, res.Positions["d"].Rank)
}

func TestCompute_IsolatedNodesArePositioned(t *testing.T) {
	res := Compute(nodes("a", "b", "lonely"), []Edge{{"a", "b"}}, Options{})

	p, ok := res.Position("lonely")
	require.True(t, ok)
	assert.Equal(t, 0, p.Rank)
	assert.Equal(t, []string{"a", "lonely"}, res.Layers[0])
}

func TestCompute_IgnoresBadEdges(t *testing.T) {
	res := Compute(nodes("a", "b"),
		[]Edge{{"a", "a"}, {"a", "ghost"}, {"ghost", "b"}, {"a", "b"}, {"a", "b"}}, Options{})

	assert.Len(t, res.Positions, 2)
	assert.Equal(t, [][]string{{"a"}, {"b"}}, res.Layers)
	_, ok := res.Position("ghost")
	assert.False(t, ok)
}

func TestCompute_DuplicateNodeKeepsFirst(t *testing.T) {
	res := Compute([]Node{{"a", 1}, {"a", 9}}, nil, DefaultOptions())

	assert.Len(t, res.Positions, 1)
	assert.Equal(t, DefaultOptions().NodeHeight(1), res.Positions["a"].Height)
}

func TestCompute_BarycenterRemovesCrossing(t *testing.T) {
	// first-seen order puts c above d, which crosses a->d and b->c
	res := Compute(nodes("a", "b", "c", "d"), []Edge{{"a", "d"}, {"b", "c"}}, Options{})

	assert.Equal(t, [][]string{{"a", "b"}, {"d", "c"}}, res.Layers)
	assert.Zero(t, res.Crossings)
	assert.Less(t, res.Positions["d"].Y, res.Positions["c"].Y)
}

func TestCompute_VirtualNodesAreHidden(t *testing.T) {
	res := Compute(nodes("a", "b", "c"), []Edge{{"a", "b"}, {"b", "c"}, {"a", "c"}}, Options{})

	assert.Len(t, res.Positions, 3)
	for _, layer := range res.Layers {
		assert.Len(t, layer, 1)
	}
}

func TestCompute_Deterministic(t *testing.T) {
	in := nodes("m", "k", "z", "a", "q", "b")
	edges := []Edge{{"m", "z"}, {"k", "a"}, {"m", "a"}, {"z", "q"}, {"a", "b"}, {"q", "m"}, {"k", "b"}}

	first := Compute(in, edges, Options{})
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, Compute(in, edges, Options{}))
	}
}

func TestCompute_Dimensions(t *testing.T) {
	opts := DefaultOptions()
	res := Compute(nodes("a", "b"), []Edge{{"a", "b"}}, opts)

	assert.Equal(t, 2*opts.MarginX+2*opts.NodeWidth+opts.RankSep, res.Width)
	assert.Equal(t, 2*opts.MarginY+opts.NodeHeight(1), res.Height)
}

func TestOptions_WithDefaults(t *testing.T) {
	got := Options{NodeWidth: 100, RankSep: -5}.WithDefaults()

	assert.Equal(t, float64(100), got.NodeWidth)
	assert.Equal(t, float64(DefaultRankSep), got.RankSep)
	assert.Equal(t, DefaultPasses, got.Passes)
}

func TestForGraph(t *testing.T) {
	g := &lineage.Graph{
		Nodes: []lineage.Node{
			{ID: "DB.T1", Label: "DB.T1", Fields: []lineage.Field{{Name: "c1", Direction: lineage.DirectionOut}}},
			{ID: "DB.T2", Label: "DB.T2", Fields: []lineage.Field{
				{Name: "a", Direction: lineage.DirectionIn},
				{Name: "b", Direction: lineage.DirectionIn},
			}},
		},
		Edges: []lineage.Edge{{ID: "edge-0", Source: "DB.T1", Target: "DB.T2", SourceField: "c1", TargetField: "a"}},
	}

	opts := DefaultOptions()
	res := ForGraph(g, opts)

	require.Len(t, res.Positions, 2)
	assert.Equal(t, opts.NodeHeight(2), res.Positions["DB.T2"].Height)
	assert.Equal(t, 1, res.Positions["DB.T2"].Rank)

	assert.Empty(t, ForGraph(nil, opts).Positions)
}
