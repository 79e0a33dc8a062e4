package lineage

import "time"

// Direction describes how a column participates in lineage.
type Direction string

// Column directions. The zero value means no observation yet.
const (
	DirectionIn   Direction = "in"   // only ever a target
	DirectionOut  Direction = "out"  // only ever a source
	DirectionBoth Direction = "both" // seen as source and target
)

// Field is a column of a table node.
type Field struct {
	Name      string    `json:"name" yaml:"name"`
	Direction Direction `json:"direction" yaml:"direction"`
}

// Node is a table or dataset.
type Node struct {
	ID     string  `json:"id" yaml:"id"`
	Label  string  `json:"label" yaml:"label"`
	Fields []Field `json:"fields" yaml:"fields"`
}

// Edge is one column-to-column relationship taken from one record.
type Edge struct {
	ID           string `json:"id" yaml:"id"`
	Source       string `json:"source" yaml:"source"`
	Target       string `json:"target" yaml:"target"`
	SourceField  string `json:"sourceField" yaml:"sourceField"`
	TargetField  string `json:"targetField" yaml:"targetField"`
	RelationType string `json:"relationType,omitempty" yaml:"relationType,omitempty"`
	EffectType   string `json:"effectType,omitempty" yaml:"effectType,omitempty"`
	SourceFile   string `json:"sourceFile,omitempty" yaml:"sourceFile,omitempty"`
}

// Stats summarizes one aggregation run.
type Stats struct {
	TotalNodes     int      `json:"totalNodes" yaml:"totalNodes"`
	TotalEdges     int      `json:"totalEdges" yaml:"totalEdges"`
	RecordsSeen    int      `json:"recordsSeen" yaml:"recordsSeen"`
	RecordsSkipped int      `json:"recordsSkipped" yaml:"recordsSkipped"`
	FailedBatches  []string `json:"failedBatches,omitempty" yaml:"failedBatches,omitempty"`
}

// Graph is the aggregated result handed to the rendering layer.
type Graph struct {
	Nodes       []Node    `json:"nodes" yaml:"nodes"`
	Edges       []Edge    `json:"edges" yaml:"edges"`
	FileCount   int       `json:"fileCount" yaml:"fileCount"`
	GeneratedAt time.Time `json:"generatedAt" yaml:"generatedAt"`
	Stats       *Stats    `json:"stats,omitempty" yaml:"stats,omitempty"`
}

// IsEmpty reports whether the graph has neither nodes nor edges.
func (g *Graph) IsEmpty() bool {
	return g == nil || (len(g.Nodes) == 0 && len(g.Edges) == 0)
}

// Node returns the node with the given id.
func (g *Graph) Node(id string) (*Node, bool) {
	for i := range g.Nodes {
		if g.Nodes[i].ID == id {
			return &g.Nodes[i], true
		}
	}
	return nil, false
}
