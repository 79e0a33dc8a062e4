// Package dag provides directed graph operations for lineage layout and tracing.
// Nodes and edges keep insertion order so every traversal is deterministic.
// Cycles are tolerated: BackEdges and Acyclic break them for ranking.
package dag

import (
	"fmt"
)

// Node represents a node in the graph.
type Node struct {
	// ID is the unique identifier (table id)
	ID string
	// Data holds arbitrary node data
	Data interface{}
}

// Edge is a directed edge between two node ids.
type Edge struct {
	From string
	To   string
}

// Graph represents a directed graph that may contain cycles.
type Graph struct {
	nodes   map[string]*Node
	order   []string            // node ids in first-seen order
	edges   map[string][]string // parent -> children, insertion order
	parents map[string][]string // child -> parents, insertion order
}

// NewGraph creates a new empty graph.
func NewGraph() *Graph {
	return &Graph{
		nodes:   make(map[string]*Node),
		edges:   make(map[string][]string),
		parents: make(map[string][]string),
	}
}

// AddNode adds a node to the graph. Re-adding an id keeps its position and
// replaces its data.
func (g *Graph) AddNode(id string, data interface{}) {
	if n, exists := g.nodes[id]; exists {
		n.Data = data
		return
	}
	g.nodes[id] = &Node{ID: id, Data: data}
	g.order = append(g.order, id)
	g.edges[id] = []string{}
	g.parents[id] = []string{}
}

// AddEdge adds a directed edge from parent to child.
// Duplicate edges are ignored; self loops and unknown nodes are errors.
func (g *Graph) AddEdge(parentID, childID string) error {
	if _, exists := g.nodes[parentID]; !exists {
		return fmt.Errorf("parent node %q does not exist", parentID)
	}
	if _, exists := g.nodes[childID]; !exists {
		return fmt.Errorf("child node %q does not exist", childID)
	}
	if parentID == childID {
		return fmt.Errorf("self-loop detected: %s", parentID)
	}

	if !contains(g.edges[parentID], childID) {
		g.edges[parentID] = append(g.edges[parentID], childID)
		g.parents[childID] = append(g.parents[childID], parentID)
	}
	return nil
}

// GetNode returns a node by ID.
func (g *Graph) GetNode(id string) (*Node, bool) {
	node, exists := g.nodes[id]
	return node, exists
}

// GetParents returns the direct predecessors of a node.
func (g *Graph) GetParents(id string) []string {
	return g.parents[id]
}

// GetChildren returns the direct successors of a node.
func (g *Graph) GetChildren(id string) []string {
	return g.edges[id]
}

// IDs returns node ids in first-seen order.
func (g *Graph) IDs() []string {
	out := make([]string, len(g.order))
	copy(out, g.order)
	return out
}

// Edges returns all edges, grouped by parent in first-seen order.
func (g *Graph) Edges() []Edge {
	var out []Edge
	for _, from := range g.order {
		for _, to := range g.edges[from] {
			out = append(out, Edge{From: from, To: to})
		}
	}
	return out
}

// NodeCount returns the number of nodes in the graph.
func (g *Graph) NodeCount() int {
	return len(g.nodes)
}

// EdgeCount returns the number of edges in the graph.
func (g *Graph) EdgeCount() int {
	count := 0
	for _, children := range g.edges {
		count += len(children)
	}
	return count
}

// HasCycle returns true if the graph contains a cycle, along with the cycle path.
func (g *Graph) HasCycle() (bool, []string) {
	visited := make(map[string]bool)
	recStack := make(map[string]bool)
	path := make(map[string]string)

	var cyclePath []string

	var dfs func(id string) bool
	dfs = func(id string) bool {
		visited[id] = true
		recStack[id] = true

		for _, childID := range g.edges[id] {
			if !visited[childID] {
				path[childID] = id
				if dfs(childID) {
					return true
				}
			} else if recStack[childID] {
				cyclePath = []string{childID}
				for curr := id; curr != childID; curr = path[curr] {
					cyclePath = append([]string{curr}, cyclePath...)
				}
				cyclePath = append([]string{childID}, cyclePath...)
				return true
			}
		}

		recStack[id] = false
		return false
	}

	for _, id := range g.order {
		if !visited[id] && dfs(id) {
			return true, cyclePath
		}
	}

	return false, nil
}

// BackEdges returns the edges that close a cycle during a depth-first search
// started from each node in first-seen order. Reversing them makes the graph
// acyclic.
func (g *Graph) BackEdges() []Edge {
	const (
		white = iota
		grey
		black
	)
	state := make(map[string]int, len(g.order))
	var back []Edge

	var visit func(id string)
	visit = func(id string) {
		state[id] = grey
		for _, child := range g.edges[id] {
			switch state[child] {
			case white:
				visit(child)
			case grey:
				back = append(back, Edge{From: id, To: child})
			}
		}
		state[id] = black
	}

	for _, id := range g.order {
		if state[id] == white {
			visit(id)
		}
	}
	return back
}

// Acyclic returns a copy of the graph with every back edge reversed.
// The second result is the number of reversed edges.
func (g *Graph) Acyclic() (*Graph, int) {
	back := make(map[Edge]bool)
	for _, e := range g.BackEdges() {
		back[e] = true
	}

	out := NewGraph()
	for _, id := range g.order {
		out.AddNode(id, g.nodes[id].Data)
	}
	for _, e := range g.Edges() {
		if back[e] {
			_ = out.AddEdge(e.To, e.From)
			continue
		}
		_ = out.AddEdge(e.From, e.To)
	}
	return out, len(back)
}

// TopologicalSort returns nodes in topological order (parents before children).
// Ties are broken by first-seen order. Returns an error if the graph contains a cycle.
func (g *Graph) TopologicalSort() ([]*Node, error) {
	if hasCycle, cyclePath := g.HasCycle(); hasCycle {
		return nil, fmt.Errorf("cycle detected: %v", cyclePath)
	}

	indegree := make(map[string]int, len(g.order))
	for _, id := range g.order {
		indegree[id] = len(g.parents[id])
	}

	queue := make([]string, 0, len(g.order))
	for _, id := range g.order {
		if indegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	result := make([]*Node, 0, len(g.order))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		result = append(result, g.nodes[id])
		for _, child := range g.edges[id] {
			indegree[child]--
			if indegree[child] == 0 {
				queue = append(queue, child)
			}
		}
	}

	return result, nil
}

// Ranks assigns every node its longest-path distance from a source.
// Cycles are broken by reversing back edges first, so every node gets a
// finite rank.
func (g *Graph) Ranks() map[string]int {
	acyclic, _ := g.Acyclic()
	sorted, err := acyclic.TopologicalSort()
	if err != nil {
		// Unreachable: reversing DFS back edges always yields a DAG.
		panic(fmt.Sprintf("dag: acyclic copy still has a cycle: %v", err))
	}

	ranks := make(map[string]int, len(sorted))
	for _, node := range sorted {
		r := ranks[node.ID]
		for _, child := range acyclic.edges[node.ID] {
			if r+1 > ranks[child] {
				ranks[child] = r + 1
			}
		}
	}
	return ranks
}

// GetExecutionLevels groups node ids by rank. Level 0 holds the sources.
// Ids inside a level keep first-seen order.
func (g *Graph) GetExecutionLevels() [][]string {
	if len(g.order) == 0 {
		return nil
	}
	ranks := g.Ranks()

	maxLevel := 0
	for _, r := range ranks {
		if r > maxLevel {
			maxLevel = r
		}
	}

	levels := make([][]string, maxLevel+1)
	for i := range levels {
		levels[i] = []string{}
	}
	for _, id := range g.order {
		levels[ranks[id]] = append(levels[ranks[id]], id)
	}
	return levels
}

// GetUpstreamNodes returns the ancestors of id, nearest first.
// A maxDepth of 0 means unlimited.
func (g *Graph) GetUpstreamNodes(id string, maxDepth int) []string {
	return g.walk(id, maxDepth, g.GetParents)
}

// GetDownstreamNodes returns the descendants of id, nearest first.
// A maxDepth of 0 means unlimited.
func (g *Graph) GetDownstreamNodes(id string, maxDepth int) []string {
	return g.walk(id, maxDepth, g.GetChildren)
}

// walk does a breadth-first traversal along next. The start node is never
// part of the result, even when a cycle leads back to it.
func (g *Graph) walk(start string, maxDepth int, next func(string) []string) []string {
	if _, ok := g.nodes[start]; !ok {
		return nil
	}

	visited := map[string]bool{start: true}
	var result []string
	frontier := []string{start}

	for depth := 1; len(frontier) > 0 && (maxDepth == 0 || depth <= maxDepth); depth++ {
		var reached []string
		for _, id := range frontier {
			for _, n := range next(id) {
				if visited[n] {
					continue
				}
				visited[n] = true
				result = append(result, n)
				reached = append(reached, n)
			}
		}
		frontier = reached
	}
	return result
}

// GetRoots returns nodes with no parents.
func (g *Graph) GetRoots() []string {
	var roots []string
	for _, id := range g.order {
		if len(g.parents[id]) == 0 {
			roots = append(roots, id)
		}
	}
	return roots
}

// GetLeaves returns nodes with no children.
func (g *Graph) GetLeaves() []string {
	var leaves []string
	for _, id := range g.order {
		if len(g.edges[id]) == 0 {
			leaves = append(leaves, id)
		}
	}
	return leaves
}

// IsIsolated reports whether a node has neither parents nor children.
func (g *Graph) IsIsolated(id string) bool {
	return len(g.parents[id]) == 0 && len(g.edges[id]) == 0
}

// Subgraph returns a new graph containing only the specified nodes and their edges.
func (g *Graph) Subgraph(nodeIDs []string) *Graph {
	subgraph := NewGraph()
	nodeSet := make(map[string]bool)

	for _, id := range nodeIDs {
		if node, exists := g.nodes[id]; exists {
			nodeSet[id] = true
			subgraph.AddNode(id, node.Data)
		}
	}

	for _, id := range subgraph.order {
		for _, childID := range g.edges[id] {
			if nodeSet[childID] {
				_ = subgraph.AddEdge(id, childID)
			}
		}
	}

	return subgraph
}

// contains checks if a slice contains a string.
func contains(slice []string, str string) bool {
	for _, s := range slice {
		if s == str {
			return true
		}
	}
	return false
}
