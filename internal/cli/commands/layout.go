package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leaplineage/internal/cli/output"
	"github.com/leapstack-labs/leaplineage/internal/layout"
	"github.com/leapstack-labs/leaplineage/internal/lineage"
)

// layoutOutput is the JSON shape of the layout command, matching /api/lineage/layout.
type layoutOutput struct {
	GeneratedAt time.Time `json:"generatedAt"`
	*layout.Result
}

// NewLayoutCommand creates the layout command.
func NewLayoutCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "layout",
		Short: "Compute node positions for the lineage graph",
		Long: `Aggregate the source and lay the graph out left to right.

Tables are assigned to ranks by longest path from the sources, ordered within
each rank to reduce edge crossings, and stacked without overlap. Cycles are
broken by reversing back edges. Geometry comes from the layout section of
leaplineage.yaml.`,
		Example: `  # Show ranks and positions
  leaplineage layout

  # Positions as JSON
  leaplineage layout -o json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLayout(cmd)
		},
	}

	return cmd
}

func runLayout(cmd *cobra.Command) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	r := cmdCtx.Renderer

	g, res, err := cmdCtx.Service.Layout(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to lay out lineage graph: %w", err)
	}

	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(layoutOutput{GeneratedAt: g.GeneratedAt, Result: res})
	case output.ModeMarkdown:
		return layoutMarkdown(r, res)
	default:
		return layoutText(r, g, res)
	}
}

func positionRows(res *layout.Result) [][]string {
	var rows [][]string
	for _, layer := range res.Layers {
		for _, id := range layer {
			p := res.Positions[id]
			rows = append(rows, []string{
				id,
				fmt.Sprintf("%d", p.Rank),
				fmt.Sprintf("%d", p.Order),
				fmt.Sprintf("%.0f", p.X),
				fmt.Sprintf("%.0f", p.Y),
				fmt.Sprintf("%.0f", p.Width),
				fmt.Sprintf("%.0f", p.Height),
			})
		}
	}
	return rows
}

var positionHeader = []string{"Table", "Rank", "Order", "X", "Y", "Width", "Height"}

// layoutText outputs positions in styled text format.
func layoutText(r *output.Renderer, g *lineage.Graph, res *layout.Result) error {
	styles := r.Styles()

	r.Header(1, "Lineage Layout")

	if len(res.Positions) == 0 {
		r.Println(styles.Muted.Render("No lineage records found"))
		return nil
	}

	r.Table(positionHeader, positionRows(res))
	r.Println("")

	summary := fmt.Sprintf("%d tables in %d ranks, canvas %.0fx%.0f", len(g.Nodes), len(res.Layers), res.Width, res.Height)
	if res.Reversed > 0 {
		summary += fmt.Sprintf(", %d edge(s) reversed to break cycles", res.Reversed)
	}
	if res.Crossings > 0 {
		summary += fmt.Sprintf(", %d crossing(s)", res.Crossings)
	}
	r.Println(styles.Muted.Render(summary))

	return nil
}

// layoutMarkdown outputs ranks and positions in markdown format.
func layoutMarkdown(r *output.Renderer, res *layout.Result) error {
	r.Println(output.FormatHeader(1, "Lineage Layout"))
	r.Println("")

	for rank, layer := range res.Layers {
		r.Println(output.FormatHeader(2, fmt.Sprintf("Rank %d", rank)))
		r.Println(output.FormatList(layer))
		r.Println("")
	}

	if len(res.Positions) > 0 {
		r.Println(output.FormatHeader(2, "Positions"))
		r.Table(positionHeader, positionRows(res))
		r.Println("")
	}

	r.Println(output.FormatHeader(2, "Summary"))
	r.Println(output.FormatKeyValue("Width", fmt.Sprintf("%.0f", res.Width)))
	r.Println(output.FormatKeyValue("Height", fmt.Sprintf("%.0f", res.Height)))
	r.Println(output.FormatKeyValue("Reversed Edges", fmt.Sprintf("%d", res.Reversed)))
	r.Println(output.FormatKeyValue("Crossings", fmt.Sprintf("%d", res.Crossings)))

	return nil
}
