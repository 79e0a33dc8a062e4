package commands

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leaplineage/internal/batch"
	"github.com/leapstack-labs/leaplineage/internal/cli/output"
	"github.com/leapstack-labs/leaplineage/internal/lineage"
	"github.com/leapstack-labs/leaplineage/pkg/adapter"
)

// ImportOptions holds options for the import command.
// Target, DSN and table are read through the warehouse config section.
type ImportOptions struct {
	Target      string
	DSN         string
	Table       string
	BatchColumn string
}

// NewImportCommand creates the import command.
func NewImportCommand() *cobra.Command {
	opts := &ImportOptions{}

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Load lineage batches into a warehouse table",
		Long: `Read every batch from the source and write the records into one warehouse table.

The table is recreated with one TEXT column per CSV header, a batch column
holding the batch name and a sequence column numbering the rows, so a
warehouse:<type> source reads them back in the same order. Batches that cannot
be read are reported and left out.`,
		Example: `  # Load the result directory into a local DuckDB file
  leaplineage import --target duckdb --dsn lineage.duckdb

  # Load into Postgres under a custom table name
  leaplineage import --target postgres --dsn "$DATABASE_URL" --table lineage.records`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runImport(cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Target, "target", "", "Warehouse type (duckdb|postgres|sqlite)")
	cmd.Flags().StringVar(&opts.DSN, "dsn", "", "Warehouse connection string")
	cmd.Flags().StringVar(&opts.Table, "table", "", "Destination table (default: lineage_table)")
	cmd.Flags().StringVar(&opts.BatchColumn, "batch-column", "", "Column holding the batch name (default: FILE_NAME)")

	return cmd
}

func runImport(cmd *cobra.Command) error {
	cfg := getConfig()
	if strings.HasPrefix(cfg.SourceURI(), batch.WarehouseScheme) {
		return fmt.Errorf("cannot import from a warehouse source: %s", cfg.SourceURI())
	}
	wh := cfg.Warehouse
	if err := wh.Validate(); err != nil {
		return fmt.Errorf("invalid warehouse configuration: %w", err)
	}

	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := cmd.Context()
	logger := cmdCtx.Logger

	load, err := cmdCtx.Source.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", cmdCtx.Source.Name(), err)
	}

	columns, rows := flattenBatches(load.Batches, wh.BatchColumn, wh.SequenceColumn)

	adp, err := adapter.NewAdapter(wh.ToAdapter(), logger)
	if err != nil {
		return err
	}
	if err := adp.Connect(ctx, wh.ToAdapter()); err != nil {
		return fmt.Errorf("failed to connect to %s: %w", wh.Type, err)
	}
	defer func() { _ = adp.Close() }()

	if err := adp.WriteRecords(ctx, wh.Table, columns, rows); err != nil {
		return fmt.Errorf("failed to write %s: %w", wh.Table, err)
	}

	result := output.ImportOutput{
		Source:  cmdCtx.Source.Name(),
		Target:  wh.Type,
		Table:   wh.Table,
		Batches: len(load.Batches),
		Rows:    len(rows),
		Columns: columns,
	}
	for _, f := range load.Failed {
		result.Failed = append(result.Failed, f.Label)
		logger.Warn("batch not imported", slog.String("batch", f.Label), slog.String("error", f.Err.Error()))
	}

	r := cmdCtx.Renderer
	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(result)
	case output.ModeMarkdown:
		r.Println(output.FormatHeader(1, "Import"))
		r.Println("")
		r.Println(output.FormatKeyValue("Source", result.Source))
		r.Println(output.FormatKeyValue("Target", result.Target))
		r.Println(output.FormatKeyValue("Table", result.Table))
		r.Println(output.FormatKeyValue("Batches", fmt.Sprintf("%d", result.Batches)))
		r.Println(output.FormatKeyValue("Rows", fmt.Sprintf("%d", result.Rows)))
		if len(result.Failed) > 0 {
			r.Println(output.FormatKeyValue("Failed", strings.Join(result.Failed, ", ")))
		}
	default:
		if len(result.Failed) > 0 {
			r.Warning(fmt.Sprintf("%d batch(es) skipped: %s", len(result.Failed), strings.Join(result.Failed, ", ")))
		}
		r.Success(fmt.Sprintf("Imported %d rows from %d batches into %s (%s)",
			result.Rows, result.Batches, result.Table, result.Target))
	}
	return nil
}

// flattenBatches turns batches into one row set. Columns are the sorted union
// of every record's headers followed by batchColumn and seqColumn; missing
// values are empty. The sequence numbers rows from 1 in batch order.
func flattenBatches(batches []lineage.Batch, batchColumn, seqColumn string) ([]string, [][]string) {
	seen := make(map[string]bool)
	var headers []string
	for _, b := range batches {
		for _, rec := range b.Records {
			for key := range rec {
				if key == batchColumn || key == seqColumn || seen[key] {
					continue
				}
				seen[key] = true
				headers = append(headers, key)
			}
		}
	}
	sort.Strings(headers)
	columns := append(headers, batchColumn, seqColumn)

	var rows [][]string
	for _, b := range batches {
		for _, rec := range b.Records {
			row := make([]string, len(columns))
			for i, col := range headers {
				row[i] = rec[col]
			}
			row[len(headers)] = b.Label
			row[len(headers)+1] = batch.FormatSequence(len(rows) + 1)
			rows = append(rows, row)
		}
	}
	return columns, rows
}
