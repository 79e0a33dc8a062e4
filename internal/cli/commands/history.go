package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leaplineage/internal/cli/output"
	"github.com/leapstack-labs/leaplineage/internal/state"
)

// HistoryOptions holds options for the history command.
type HistoryOptions struct {
	Limit int
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand() *cobra.Command {
	opts := &HistoryOptions{}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded aggregation runs",
		Long: `List aggregation runs recorded in the run history database, newest first.

Every graph, layout, trace and server rebuild records a run with its batch,
node and edge counts. Graphs and positions themselves are never stored.`,
		Example: `  # Last 20 runs
  leaplineage history

  # Every run as JSON
  leaplineage history --limit 0 -o json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHistory(cmd, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 20, "Number of runs to show (0 = all)")

	return cmd
}

func runHistory(cmd *cobra.Command, opts *HistoryOptions) error {
	cmdCtx, cleanup, err := NewCommandContextWithoutSource(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	runs, err := cmdCtx.Store.ListRuns(opts.Limit)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	r := cmdCtx.Renderer
	switch r.EffectiveMode() {
	case output.ModeJSON:
		entries := make([]output.HistoryEntry, 0, len(runs))
		for _, run := range runs {
			entries = append(entries, historyEntry(run))
		}
		return r.JSON(entries)
	case output.ModeMarkdown:
		r.Println(output.FormatHeader(1, "Run History"))
		r.Println("")
		if len(runs) == 0 {
			r.Println("No runs recorded")
			return nil
		}
		r.Table(historyHeader, historyRows(runs))
	default:
		r.Header(1, "Run History")
		if len(runs) == 0 {
			r.Println(r.Styles().Muted.Render("No runs recorded"))
			return nil
		}
		r.Table(historyHeader, historyRows(runs))
	}
	return nil
}

var historyHeader = []string{"Started", "Status", "Source", "Batches", "Failed", "Nodes", "Edges", "Skipped", "Duration"}

func historyRows(runs []*state.Run) [][]string {
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		duration := "-"
		if run.CompletedAt != nil {
			duration = run.Duration().Round(time.Millisecond).String()
		}
		status := string(run.Status)
		if run.Error != "" {
			status += ": " + run.Error
		}
		rows = append(rows, []string{
			run.StartedAt.Local().Format("2006-01-02 15:04:05"),
			status,
			run.Source,
			fmt.Sprintf("%d", run.FileCount),
			fmt.Sprintf("%d", run.FailedCount),
			fmt.Sprintf("%d", run.NodeCount),
			fmt.Sprintf("%d", run.EdgeCount),
			fmt.Sprintf("%d", run.RecordsSkipped),
			duration,
		})
	}
	return rows
}

func historyEntry(run *state.Run) output.HistoryEntry {
	return output.HistoryEntry{
		ID:             run.ID,
		Source:         run.Source,
		Status:         string(run.Status),
		StartedAt:      run.StartedAt,
		CompletedAt:    run.CompletedAt,
		DurationMs:     run.Duration().Milliseconds(),
		Files:          run.FileCount,
		Failed:         run.FailedCount,
		Nodes:          run.NodeCount,
		Edges:          run.EdgeCount,
		RecordsSkipped: run.RecordsSkipped,
		Error:          run.Error,
	}
}
