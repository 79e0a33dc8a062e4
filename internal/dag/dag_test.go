package dag

import (
	"reflect"
	"testing"
)

func TestGraph_AddNodeAndEdge(t *testing.T) {
	g := NewGraph()

	g.AddNode("a", nil)
	g.AddNode("b", nil)
	g.AddNode("c", nil)

	if g.NodeCount() != 3 {
		t.Errorf("expected 3 nodes, got %d", g.NodeCount())
	}

	if err := g.AddEdge("a", "b"); err != nil {
		t.Fatalf("AddEdge failed: %v", err)
	}
	if err := g.AddEdge("b", "c"); err != nil {
		t.Fatalf("AddEdge failed: %v", err)
	}

	if g.EdgeCount() != 2 {
		t.Errorf("expected 2 edges, got %d", g.EdgeCount())
	}
}

func TestGraph_AddNodeTwiceKeepsPosition(t *testing.T) {
	g := NewGraph()
	g.AddNode("a", 1)
	g.AddNode("b", 2)
	g.AddNode("a", 3)

	if got := g.IDs(); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("expected [a b], got %v", got)
	}
	n, _ := g.GetNode("a")
	if n.Data != 3 {
		t.Errorf("expected data to be replaced, got %v", n.Data)
	}
}

func TestGraph_AddEdgeInvalidNodes(t *testing.T) {
	g := NewGraph()
	g.AddNode("a", nil)

	if err := g.AddEdge("a", "nonexistent"); err == nil {
		t.Error("expected error for nonexistent child node")
	}
	if err := g.AddEdge("nonexistent", "a"); err == nil {
		t.Error("expected error for nonexistent parent node")
	}
}

func TestGraph_SelfLoop(t *testing.T) {
	g := NewGraph()
	g.AddNode("a", nil)

	if err := g.AddEdge("a", "a"); err == nil {
		t.Error("expected error for self-loop")
	}
}

func TestGraph_DuplicateEdges(t *testing.T) {
	g := NewGraph()
	g.AddNode("a", nil)
	g.AddNode("b", nil)

	_ = g.AddEdge("a", "b")
	_ = g.AddEdge("a", "b")

	if g.EdgeCount() != 1 {
		t.Errorf("expected 1 edge after duplicate, got %d", g.EdgeCount())
	}
	if len(g.GetParents("b")) != 1 {
		t.Errorf("expected 1 parent, got %d", len(g.GetParents("b")))
	}
}

func TestGraph_GetParentsAndChildren(t *testing.T) {
	g := NewGraph()
	g.AddNode("a", nil)
	g.AddNode("b", nil)
	g.AddNode("c", nil)

	_ = g.AddEdge("a", "c")
	_ = g.AddEdge("b", "c")

	if got := g.GetParents("c"); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("expected parents [a b], got %v", got)
	}
	if got := g.GetChildren("a"); !reflect.DeepEqual(got, []string{"c"}) {
		t.Errorf("expected children [c], got %v", got)
	}
}

func TestGraph_EdgesInInsertionOrder(t *testing.T) {
	g := NewGraph()
	for _, id := range []string{"c", "a", "b"} {
		g.AddNode(id, nil)
	}
	_ = g.AddEdge("a", "b")
	_ = g.AddEdge("c", "b")
	_ = g.AddEdge("c", "a")

	want := []Edge{{"c", "b"}, {"c", "a"}, {"a", "b"}}
	if got := g.Edges(); !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestGraph_HasCycle(t *testing.T) {
	g := NewGraph()
	g.AddNode("a", nil)
	g.AddNode("b", nil)
	g.AddNode("c", nil)

	_ = g.AddEdge("a", "b")
	_ = g.AddEdge("b", "c")

	if hasCycle, _ := g.HasCycle(); hasCycle {
		t.Error("expected no cycle")
	}

	_ = g.AddEdge("c", "a")

	hasCycle, path := g.HasCycle()
	if !hasCycle {
		t.Error("expected cycle after adding c -> a")
	}
	if len(path) == 0 {
		t.Error("expected a cycle path")
	}
}

func TestGraph_BackEdges(t *testing.T) {
	tests := []struct {
		name  string
		nodes []string
		edges []Edge
		want  []Edge
	}{
		{
			name:  "acyclic",
			nodes: []string{"a", "b", "c"},
			edges: []Edge{{"a", "b"}, {"b", "c"}, {"a", "c"}},
			want:  nil,
		},
		{
			name:  "two node cycle",
			nodes: []string{"a", "b"},
			edges: []Edge{{"a", "b"}, {"b", "a"}},
			want:  []Edge{{"b", "a"}},
		},
		{
			name:  "three node cycle",
			nodes: []string{"a", "b", "c"},
			edges: []Edge{{"a", "b"}, {"b", "c"}, {"c", "a"}},
			want:  []Edge{{"c", "a"}},
		},
		{
			name:  "cycle found from later start",
			nodes: []string{"x", "a", "b"},
			edges: []Edge{{"a", "b"}, {"b", "a"}},
			want:  []Edge{{"b", "a"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGraph()
			for _, id := range tt.nodes {
				g.AddNode(id, nil)
			}
			for _, e := range tt.edges {
				if err := g.AddEdge(e.From, e.To); err != nil {
					t.Fatalf("AddEdge failed: %v", err)
				}
			}
			if got := g.BackEdges(); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestGraph_Acyclic(t *testing.T) {
	g := NewGraph()
	g.AddNode("a", nil)
	g.AddNode("b", nil)
	g.AddNode("c", nil)
	_ = g.AddEdge("a", "b")
	_ = g.AddEdge("b", "c")
	_ = g.AddEdge("c", "a")

	acyclic, reversed := g.Acyclic()
	if reversed != 1 {
		t.Errorf("expected 1 reversed edge, got %d", reversed)
	}
	if hasCycle, path := acyclic.HasCycle(); hasCycle {
		t.Errorf("expected acyclic copy, found cycle %v", path)
	}
	if acyclic.EdgeCount() != 3 {
		t.Errorf("expected 3 edges, got %d", acyclic.EdgeCount())
	}
	// the original is untouched
	if hasCycle, _ := g.HasCycle(); !hasCycle {
		t.Error("expected original graph to keep its cycle")
	}
}

func TestGraph_AcyclicMergesOpposingEdge(t *testing.T) {
	g := NewGraph()
	g.AddNode("a", nil)
	g.AddNode("b", nil)
	_ = g.AddEdge("a", "b")
	_ = g.AddEdge("b", "a")

	acyclic, reversed := g.Acyclic()
	if reversed != 1 {
		t.Errorf("expected 1 reversed edge, got %d", reversed)
	}
	if acyclic.EdgeCount() != 1 {
		t.Errorf("expected reversed edge to merge into a -> b, got %d edges", acyclic.EdgeCount())
	}
}

func TestGraph_TopologicalSort(t *testing.T) {
	g := NewGraph()
	g.AddNode("a", nil)
	g.AddNode("b", nil)
	g.AddNode("c", nil)
	g.AddNode("d", nil)

	// a -> b -> d
	// a -> c -> d
	_ = g.AddEdge("a", "b")
	_ = g.AddEdge("a", "c")
	_ = g.AddEdge("b", "d")
	_ = g.AddEdge("c", "d")

	sorted, err := g.TopologicalSort()
	if err != nil {
		t.Fatalf("TopologicalSort failed: %v", err)
	}

	var ids []string
	for _, n := range sorted {
		ids = append(ids, n.ID)
	}
	if want := []string{"a", "b", "c", "d"}; !reflect.DeepEqual(ids, want) {
		t.Errorf("expected %v, got %v", want, ids)
	}
}

func TestGraph_TopologicalSortWithCycle(t *testing.T) {
	g := NewGraph()
	g.AddNode("a", nil)
	g.AddNode("b", nil)
	_ = g.AddEdge("a", "b")
	_ = g.AddEdge("b", "a")

	if _, err := g.TopologicalSort(); err == nil {
		t.Error("expected error for cyclic graph")
	}
}

func TestGraph_Ranks(t *testing.T) {
	g := NewGraph()
	for _, id := range []string{"a", "b", "c", "d", "lonely"} {
		g.AddNode(id, nil)
	}
	// a -> b -> c, a -> c, c -> d
	_ = g.AddEdge("a", "b")
	_ = g.AddEdge("b", "c")
	_ = g.AddEdge("a", "c")
	_ = g.AddEdge("c", "d")

	want := map[string]int{"a": 0, "b": 1, "c": 2, "d": 3, "lonely": 0}
	if got := g.Ranks(); !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestGraph_RanksWithCycle(t *testing.T) {
	g := NewGraph()
	g.AddNode("a", nil)
	g.AddNode("b", nil)
	g.AddNode("c", nil)
	_ = g.AddEdge("a", "b")
	_ = g.AddEdge("b", "c")
	_ = g.AddEdge("c", "a")

	want := map[string]int{"a": 0, "b": 1, "c": 2}
	if got := g.Ranks(); !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestGraph_GetExecutionLevels(t *testing.T) {
	g := NewGraph()
	g.AddNode("a", nil)
	g.AddNode("b", nil)
	g.AddNode("c", nil)
	g.AddNode("d", nil)

	// Level 0: a, b
	// Level 1: c (depends on a)
	// Level 2: d (depends on c and b)
	_ = g.AddEdge("a", "c")
	_ = g.AddEdge("c", "d")
	_ = g.AddEdge("b", "d")

	levels := g.GetExecutionLevels()
	want := [][]string{{"a", "b"}, {"c"}, {"d"}}
	if !reflect.DeepEqual(levels, want) {
		t.Errorf("expected %v, got %v", want, levels)
	}
}

func TestGraph_GetExecutionLevelsEmpty(t *testing.T) {
	if levels := NewGraph().GetExecutionLevels(); levels != nil {
		t.Errorf("expected nil levels, got %v", levels)
	}
}

func TestGraph_GetUpstreamNodes(t *testing.T) {
	g := NewGraph()
	for _, id := range []string{"raw", "stg", "int", "mart"} {
		g.AddNode(id, nil)
	}
	_ = g.AddEdge("raw", "stg")
	_ = g.AddEdge("stg", "int")
	_ = g.AddEdge("int", "mart")

	if got := g.GetUpstreamNodes("mart", 0); !reflect.DeepEqual(got, []string{"int", "stg", "raw"}) {
		t.Errorf("expected nearest-first ancestors, got %v", got)
	}
	if got := g.GetUpstreamNodes("mart", 1); !reflect.DeepEqual(got, []string{"int"}) {
		t.Errorf("expected depth-limited ancestors, got %v", got)
	}
	if got := g.GetUpstreamNodes("raw", 0); len(got) != 0 {
		t.Errorf("expected no ancestors for root, got %v", got)
	}
	if got := g.GetUpstreamNodes("missing", 0); got != nil {
		t.Errorf("expected nil for unknown node, got %v", got)
	}
}

func TestGraph_GetDownstreamNodes(t *testing.T) {
	g := NewGraph()
	for _, id := range []string{"a", "b", "c", "d"} {
		g.AddNode(id, nil)
	}
	_ = g.AddEdge("a", "b")
	_ = g.AddEdge("a", "c")
	_ = g.AddEdge("c", "d")

	if got := g.GetDownstreamNodes("a", 0); !reflect.DeepEqual(got, []string{"b", "c", "d"}) {
		t.Errorf("expected [b c d], got %v", got)
	}
	if got := g.GetDownstreamNodes("a", 1); !reflect.DeepEqual(got, []string{"b", "c"}) {
		t.Errorf("expected [b c], got %v", got)
	}
}

func TestGraph_TraversalTerminatesOnCycle(t *testing.T) {
	g := NewGraph()
	g.AddNode("a", nil)
	g.AddNode("b", nil)
	_ = g.AddEdge("a", "b")
	_ = g.AddEdge("b", "a")

	if got := g.GetDownstreamNodes("a", 0); !reflect.DeepEqual(got, []string{"b"}) {
		t.Errorf("expected [b], got %v", got)
	}
	if got := g.GetUpstreamNodes("a", 0); !reflect.DeepEqual(got, []string{"b"}) {
		t.Errorf("expected [b], got %v", got)
	}
}

func TestGraph_GetRootsAndLeaves(t *testing.T) {
	g := NewGraph()
	g.AddNode("a", nil)
	g.AddNode("b", nil)
	g.AddNode("c", nil)
	g.AddNode("d", nil)

	_ = g.AddEdge("a", "c")
	_ = g.AddEdge("b", "c")

	if got := g.GetRoots(); !reflect.DeepEqual(got, []string{"a", "b", "d"}) {
		t.Errorf("expected roots [a b d], got %v", got)
	}
	if got := g.GetLeaves(); !reflect.DeepEqual(got, []string{"c", "d"}) {
		t.Errorf("expected leaves [c d], got %v", got)
	}
	if !g.IsIsolated("d") {
		t.Error("expected d to be isolated")
	}
	if g.IsIsolated("a") {
		t.Error("expected a to have edges")
	}
}

func TestGraph_Subgraph(t *testing.T) {
	g := NewGraph()
	g.AddNode("a", nil)
	g.AddNode("b", nil)
	g.AddNode("c", nil)
	g.AddNode("d", nil)

	_ = g.AddEdge("a", "b")
	_ = g.AddEdge("b", "c")
	_ = g.AddEdge("c", "d")

	sub := g.Subgraph([]string{"b", "c", "zzz"})

	if sub.NodeCount() != 2 {
		t.Errorf("expected 2 nodes, got %d", sub.NodeCount())
	}
	if sub.EdgeCount() != 1 {
		t.Errorf("expected 1 edge, got %d", sub.EdgeCount())
	}
}
