package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leaplineage/internal/cli/output"
	"github.com/leapstack-labs/leaplineage/internal/dag"
	"github.com/leapstack-labs/leaplineage/internal/lineage"
)

// TraceOptions holds options for the trace command.
type TraceOptions struct {
	Upstream   bool
	Downstream bool
	Depth      int
}

// NewTraceCommand creates the trace command.
func NewTraceCommand() *cobra.Command {
	opts := &TraceOptions{}

	cmd := &cobra.Command{
		Use:   "trace <table>",
		Short: "Show upstream and downstream tables",
		Long: `Display the tables a table reads from and the tables that read from it.

The trace follows table-level edges of the aggregated graph, so it shows how
data flows across tables and which tables a change would affect. Table names
are matched exactly first, then case-insensitively.`,
		Example: `  # Full trace of a table
  leaplineage trace STG.ORDERS

  # Only what feeds the table
  leaplineage trace STG.ORDERS --downstream=false

  # Limit traversal depth
  leaplineage trace STG.ORDERS --depth 1

  # Output as JSON
  leaplineage trace STG.ORDERS -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(cmd, args[0], opts)
		},
	}

	cmd.Flags().BoolVar(&opts.Upstream, "upstream", true, "Include upstream tables")
	cmd.Flags().BoolVar(&opts.Downstream, "downstream", true, "Include downstream tables")
	cmd.Flags().IntVar(&opts.Depth, "depth", 0, "Max traversal depth (0 = unlimited)")

	return cmd
}

func runTrace(cmd *cobra.Command, table string, opts *TraceOptions) error {
	if opts.Depth < 0 {
		return fmt.Errorf("depth must not be negative: %d", opts.Depth)
	}

	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	g, err := cmdCtx.Service.Build(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to build lineage graph: %w", err)
	}

	tables := tableGraph(g)
	root, ok := resolveTable(tables, table)
	if !ok {
		return fmt.Errorf("table not found: %s", table)
	}

	trace := traceTable(g, tables, root, opts)

	r := cmdCtx.Renderer
	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(trace)
	case output.ModeMarkdown:
		return traceMarkdown(r, trace, opts)
	default:
		return traceText(r, trace, opts)
	}
}

// tableGraph collapses column edges into a table-level graph.
func tableGraph(g *lineage.Graph) *dag.Graph {
	tables := dag.NewGraph()
	for _, n := range g.Nodes {
		tables.AddNode(n.ID, n.Label)
	}
	for _, e := range g.Edges {
		// self references carry no table-level information
		_ = tables.AddEdge(e.Source, e.Target)
	}
	return tables
}

// resolveTable finds name among the graph's ids, falling back to a case-insensitive match.
func resolveTable(tables *dag.Graph, name string) (string, bool) {
	if _, ok := tables.GetNode(name); ok {
		return name, true
	}
	for _, id := range tables.IDs() {
		if strings.EqualFold(id, name) {
			return id, true
		}
	}
	return "", false
}

// traceTable walks from root and keeps the table-level edges among the traced
// tables. Sources and sinks are the ends of that neighbourhood.
func traceTable(g *lineage.Graph, tables *dag.Graph, root string, opts *TraceOptions) output.TraceOutput {
	trace := output.TraceOutput{
		Root:       root,
		Depth:      opts.Depth,
		Fields:     []lineage.Field{},
		Upstream:   []string{},
		Downstream: []string{},
		Sources:    []string{},
		Sinks:      []string{},
		Edges:      []output.TraceEdge{},
	}
	if n, ok := g.Node(root); ok && len(n.Fields) > 0 {
		trace.Fields = n.Fields
	}

	inTrace := map[string]bool{root: true}
	if opts.Upstream {
		if up := tables.GetUpstreamNodes(root, opts.Depth); up != nil {
			trace.Upstream = up
		}
		for _, id := range trace.Upstream {
			inTrace[id] = true
		}
	}
	if opts.Downstream {
		if down := tables.GetDownstreamNodes(root, opts.Depth); down != nil {
			trace.Downstream = down
		}
		for _, id := range trace.Downstream {
			inTrace[id] = true
		}
	}

	// graph order keeps the edge list stable
	var ids []string
	for _, id := range tables.IDs() {
		if inTrace[id] {
			ids = append(ids, id)
		}
	}
	sub := tables.Subgraph(ids)
	for _, e := range sub.Edges() {
		trace.Edges = append(trace.Edges, output.TraceEdge{From: e.From, To: e.To})
	}
	if roots := sub.GetRoots(); roots != nil {
		trace.Sources = roots
	}
	if leaves := sub.GetLeaves(); leaves != nil {
		trace.Sinks = leaves
	}
	return trace
}

// traceText outputs the trace in styled text format.
func traceText(r *output.Renderer, trace output.TraceOutput, opts *TraceOptions) error {
	styles := r.Styles()

	r.Header(1, "Lineage for "+trace.Root)

	if opts.Upstream {
		r.Println(styles.Header2.Render(fmt.Sprintf("Upstream tables (%d):", len(trace.Upstream))))
		for _, id := range trace.Upstream {
			r.Printf("  %s\n", styles.Table.Render(id))
		}
		r.Println("")
	}

	if opts.Downstream {
		r.Println(styles.Header2.Render(fmt.Sprintf("Downstream tables (%d):", len(trace.Downstream))))
		for _, id := range trace.Downstream {
			r.Printf("  %s\n", styles.Table.Render(id))
		}
		r.Println("")
	}

	r.Println(styles.Muted.Render(fmt.Sprintf("%d fields, %d table-level edges; sources: %s; sinks: %s",
		len(trace.Fields), len(trace.Edges), strings.Join(trace.Sources, ", "), strings.Join(trace.Sinks, ", "))))
	return nil
}

// traceMarkdown outputs the trace in markdown format.
func traceMarkdown(r *output.Renderer, trace output.TraceOutput, opts *TraceOptions) error {
	r.Println(output.FormatHeader(1, "Lineage for "+trace.Root))
	r.Println("")

	if opts.Upstream {
		r.Println(output.FormatHeader(2, "Upstream"))
		r.Println(output.FormatList(trace.Upstream))
		r.Println("")
	}
	if opts.Downstream {
		r.Println(output.FormatHeader(2, "Downstream"))
		r.Println(output.FormatList(trace.Downstream))
		r.Println("")
	}

	if len(trace.Fields) > 0 {
		r.Println(output.FormatHeader(2, "Fields"))
		for _, f := range trace.Fields {
			r.Printf("- %s (%s)\n", f.Name, f.Direction)
		}
		r.Println("")
	}

	r.Println(output.FormatKeyValue("Sources", strings.Join(trace.Sources, ", ")))
	r.Println(output.FormatKeyValue("Sinks", strings.Join(trace.Sinks, ", ")))
	r.Println("")

	if len(trace.Edges) > 0 {
		r.Println(output.FormatHeader(2, "Edges"))
		for _, e := range trace.Edges {
			r.Printf("- %s -> %s\n", e.From, e.To)
		}
		r.Println("")
	}
	return nil
}
