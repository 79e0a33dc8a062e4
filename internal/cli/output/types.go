package output

import (
	"time"

	"github.com/leapstack-labs/leaplineage/internal/lineage"
)

// TraceOutput is the JSON shape of the trace command.
type TraceOutput struct {
	Root       string          `json:"root"`
	Depth      int             `json:"depth"`
	Fields     []lineage.Field `json:"fields"`
	Upstream   []string        `json:"upstream"`
	Downstream []string        `json:"downstream"`
	Sources    []string        `json:"sources"`
	Sinks      []string        `json:"sinks"`
	Edges      []TraceEdge     `json:"edges"`
}

// TraceEdge is a table-level edge inside a trace.
type TraceEdge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// ImportOutput is the JSON shape of the import command.
type ImportOutput struct {
	Source  string   `json:"source"`
	Target  string   `json:"target"`
	Table   string   `json:"table"`
	Batches int      `json:"batches"`
	Rows    int      `json:"rows"`
	Columns []string `json:"columns"`
	Failed  []string `json:"failed,omitempty"`
}

// HistoryEntry is one run in the history command's JSON output.
type HistoryEntry struct {
	ID             string     `json:"id"`
	Source         string     `json:"source"`
	Status         string     `json:"status"`
	StartedAt      time.Time  `json:"startedAt"`
	CompletedAt    *time.Time `json:"completedAt,omitempty"`
	DurationMs     int64      `json:"durationMs"`
	Files          int        `json:"files"`
	Failed         int        `json:"failed"`
	Nodes          int        `json:"nodes"`
	Edges          int        `json:"edges"`
	RecordsSkipped int        `json:"recordsSkipped"`
	Error          string     `json:"error,omitempty"`
}
