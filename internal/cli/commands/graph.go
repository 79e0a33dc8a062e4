package commands

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/leapstack-labs/leaplineage/internal/cli/output"
	"github.com/leapstack-labs/leaplineage/internal/lineage"
)

// GraphOptions holds options for the graph command.
type GraphOptions struct {
	File   string
	Format string
}

// NewGraphCommand creates the graph command.
func NewGraphCommand() *cobra.Command {
	opts := &GraphOptions{}

	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Aggregate lineage batches into a graph",
		Long: `Read every batch from the source and aggregate them into a table graph.

Each table becomes a node carrying its columns and their direction, and each
accepted lineage record becomes one column-to-column edge. Records missing a
table or column are skipped; unreadable batches are reported but never fatal.

Output adapts to environment:
  - Terminal: Styled summary with node and edge tables
  - Piped/Scripted: Markdown format (agent-friendly)
  - --output json: the graph document served by /api/lineage`,
		Example: `  # Summarize the default result directory
  leaplineage graph

  # Aggregate another directory as JSON
  leaplineage graph --results-dir ./out -o json

  # Write the graph document to a file
  leaplineage graph --file lineage.json
  leaplineage graph --file lineage.yaml --format yaml`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runGraph(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.File, "file", "f", "", "Write the graph document to this file")
	cmd.Flags().StringVar(&opts.Format, "format", "", "Document format for --file (json|yaml, default: by extension)")

	return cmd
}

func runGraph(cmd *cobra.Command, opts *GraphOptions) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	r := cmdCtx.Renderer

	g, err := cmdCtx.Service.Build(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to build lineage graph: %w", err)
	}

	if opts.File != "" {
		if err := writeGraphFile(g, opts.File, opts.Format); err != nil {
			return err
		}
		r.Success(fmt.Sprintf("Wrote %d nodes and %d edges to %s", len(g.Nodes), len(g.Edges), opts.File))
		return nil
	}

	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(g)
	case output.ModeMarkdown:
		return graphMarkdown(r, g)
	default:
		return graphText(r, g)
	}
}

// graphFormat picks the document format from the flag or the file extension.
func graphFormat(path, format string) (string, error) {
	if format == "" {
		lower := strings.ToLower(path)
		if strings.HasSuffix(lower, ".yaml") || strings.HasSuffix(lower, ".yml") {
			return "yaml", nil
		}
		return "json", nil
	}
	switch f := strings.ToLower(format); f {
	case "json", "yaml":
		return f, nil
	case "yml":
		return "yaml", nil
	default:
		return "", fmt.Errorf("unsupported format %q (want json or yaml)", format)
	}
}

func encodeGraph(g *lineage.Graph, format string) ([]byte, error) {
	var buf bytes.Buffer
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(g); err != nil {
			return nil, fmt.Errorf("failed to encode graph: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("failed to encode graph: %w", err)
		}
	default:
		enc := json.NewEncoder(&buf)
		enc.SetIndent("", "  ")
		if err := enc.Encode(g); err != nil {
			return nil, fmt.Errorf("failed to encode graph: %w", err)
		}
	}
	return buf.Bytes(), nil
}

func writeGraphFile(g *lineage.Graph, path, format string) error {
	f, err := graphFormat(path, format)
	if err != nil {
		return err
	}
	data, err := encodeGraph(g, f)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// directionCounts returns how many fields of n are in, out and both.
func directionCounts(n lineage.Node) (in, out, both int) {
	for _, f := range n.Fields {
		switch f.Direction {
		case lineage.DirectionIn:
			in++
		case lineage.DirectionOut:
			out++
		case lineage.DirectionBoth:
			both++
		}
	}
	return in, out, both
}

func nodeRows(g *lineage.Graph) [][]string {
	rows := make([][]string, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		in, out, both := directionCounts(n)
		rows = append(rows, []string{
			n.ID,
			fmt.Sprintf("%d", len(n.Fields)),
			fmt.Sprintf("%d", in),
			fmt.Sprintf("%d", out),
			fmt.Sprintf("%d", both),
		})
	}
	return rows
}

// tableShape summarises the table-level graph behind the column edges.
type tableShape struct {
	Tables   int
	Links    int
	Levels   []int // tables per rank, sources first
	Sources  int
	Sinks    int
	Isolated int
}

func shapeOf(g *lineage.Graph) tableShape {
	tables := tableGraph(g)
	shape := tableShape{Tables: tables.NodeCount(), Links: tables.EdgeCount()}
	for _, level := range tables.GetExecutionLevels() {
		shape.Levels = append(shape.Levels, len(level))
	}
	for _, id := range tables.IDs() {
		if tables.IsIsolated(id) {
			shape.Isolated++
		}
	}
	// isolated tables are both roots and leaves; count them once
	shape.Sources = len(tables.GetRoots()) - shape.Isolated
	shape.Sinks = len(tables.GetLeaves()) - shape.Isolated
	return shape
}

func (s tableShape) levelList() string {
	parts := make([]string, 0, len(s.Levels))
	for _, n := range s.Levels {
		parts = append(parts, fmt.Sprintf("%d", n))
	}
	return strings.Join(parts, " / ")
}

// graphText outputs the graph in styled text format.
func graphText(r *output.Renderer, g *lineage.Graph) error {
	styles := r.Styles()

	r.Header(1, "Lineage Graph")

	if g.IsEmpty() {
		r.Println(styles.Muted.Render("No lineage records found"))
	} else {
		r.Table([]string{"Table", "Fields", "In", "Out", "Both"}, nodeRows(g))
		r.Println("")
	}

	if g.Stats != nil && len(g.Stats.FailedBatches) > 0 {
		r.Warning(fmt.Sprintf("%d batch(es) could not be read: %s",
			len(g.Stats.FailedBatches), strings.Join(g.Stats.FailedBatches, ", ")))
	}

	summary := fmt.Sprintf("Total: %d tables, %d edges from %d batches", len(g.Nodes), len(g.Edges), g.FileCount)
	if g.Stats != nil && g.Stats.RecordsSkipped > 0 {
		summary += fmt.Sprintf(" (%d records skipped)", g.Stats.RecordsSkipped)
	}
	r.Println(styles.Muted.Render(summary))

	if !g.IsEmpty() {
		shape := shapeOf(g)
		r.Println(styles.Muted.Render(fmt.Sprintf("Table links: %d over %d levels (%s); %d sources, %d sinks, %d isolated",
			shape.Links, len(shape.Levels), shape.levelList(), shape.Sources, shape.Sinks, shape.Isolated)))
	}

	return nil
}

// graphMarkdown outputs the graph in markdown format.
func graphMarkdown(r *output.Renderer, g *lineage.Graph) error {
	r.Println(output.FormatHeader(1, "Lineage Graph"))
	r.Println("")

	r.Println(output.FormatHeader(2, "Tables"))
	if g.IsEmpty() {
		r.Println("No lineage records found")
	}
	for _, n := range g.Nodes {
		r.Printf("- %s\n", n.ID)
		for _, f := range n.Fields {
			r.Printf("  - %s (%s)\n", f.Name, f.Direction)
		}
	}
	r.Println("")

	if len(g.Edges) > 0 {
		r.Println(output.FormatHeader(2, "Edges"))
		for _, e := range g.Edges {
			r.Printf("- %s.%s -> %s.%s\n", e.Source, e.SourceField, e.Target, e.TargetField)
		}
		r.Println("")
	}

	r.Println(output.FormatHeader(2, "Summary"))
	r.Println(output.FormatKeyValue("Tables", fmt.Sprintf("%d", len(g.Nodes))))
	r.Println(output.FormatKeyValue("Edges", fmt.Sprintf("%d", len(g.Edges))))
	r.Println(output.FormatKeyValue("Batches", fmt.Sprintf("%d", g.FileCount)))
	if !g.IsEmpty() {
		shape := shapeOf(g)
		r.Println(output.FormatKeyValue("Table Links", fmt.Sprintf("%d", shape.Links)))
		r.Println(output.FormatKeyValue("Levels", shape.levelList()))
		r.Println(output.FormatKeyValue("Sources", fmt.Sprintf("%d", shape.Sources)))
		r.Println(output.FormatKeyValue("Sinks", fmt.Sprintf("%d", shape.Sinks)))
		r.Println(output.FormatKeyValue("Isolated", fmt.Sprintf("%d", shape.Isolated)))
	}
	if g.Stats != nil {
		r.Println(output.FormatKeyValue("Records Skipped", fmt.Sprintf("%d", g.Stats.RecordsSkipped)))
		if len(g.Stats.FailedBatches) > 0 {
			r.Println(output.FormatKeyValue("Failed Batches", strings.Join(g.Stats.FailedBatches, ", ")))
		}
	}

	return nil
}
