package batch

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/leaplineage/internal/lineage"
	"github.com/leapstack-labs/leaplineage/pkg/adapter"
)

// Warehouse defaults, matching the table the extraction pipeline loads.
// DefaultSequenceColumn holds the row order written by import.
const (
	DefaultTable          = "lineage_table"
	DefaultBatchColumn    = "FILE_NAME"
	DefaultSequenceColumn = "ROW_SEQ"
)

// WarehouseSource reads lineage rows from a table. Rows are grouped into
// batches by BatchColumn in first-seen order; column names are upper-cased
// to match the record keys.
//
// When the table has SequenceColumn, batches come back ordered by their
// lowest sequence value and rows by sequence inside each batch. Tables
// without it are read in whatever order the database returns.
type WarehouseSource struct {
	Adapter        adapter.Adapter
	Table          string
	BatchColumn    string
	SequenceColumn string
	Logger         *slog.Logger

	// owned adapters are closed by Close
	owned bool
}

// Name implements Source.
func (s *WarehouseSource) Name() string {
	return fmt.Sprintf("warehouse:%s/%s", s.Adapter.DialectName(), s.table())
}

func (s *WarehouseSource) table() string {
	if s.Table == "" {
		return DefaultTable
	}
	return s.Table
}

func (s *WarehouseSource) batchColumn() string {
	if s.BatchColumn == "" {
		return DefaultBatchColumn
	}
	return strings.ToUpper(s.BatchColumn)
}

func (s *WarehouseSource) sequenceColumn() string {
	if s.SequenceColumn == "" {
		return DefaultSequenceColumn
	}
	return strings.ToUpper(s.SequenceColumn)
}

// firstSequenceAlias names the computed lowest sequence of a row's batch.
const firstSequenceAlias = "BATCH_FIRST_SEQ"

// FormatSequence renders a row sequence so text columns sort numerically.
func FormatSequence(n int) string {
	return fmt.Sprintf("%010d", n)
}

// selectQuery builds the read query. Ordering needs the sequence column; with
// a batch column too, batches sort by their lowest sequence so per-batch
// numbering that restarts at 1 still reads back deterministically.
func (s *WarehouseSource) selectQuery(ctx context.Context, table string, logger *slog.Logger) string {
	query := "SELECT * FROM " + table

	meta, err := s.Adapter.GetTableMetadata(ctx, table)
	if err != nil {
		logger.Debug("table metadata unavailable, reading unordered",
			slog.String("table", table), slog.String("error", err.Error()))
		return query
	}

	var seqCol, batchCol string
	for _, c := range meta.Columns {
		switch {
		case strings.EqualFold(c.Name, s.sequenceColumn()):
			seqCol = adapter.QuoteIdentifier(c.Name)
		case strings.EqualFold(c.Name, s.batchColumn()):
			batchCol = adapter.QuoteIdentifier(c.Name)
		}
	}
	if seqCol == "" {
		logger.Debug("no sequence column, reading unordered", slog.String("table", table))
		return query
	}
	if batchCol == "" {
		return query + " ORDER BY " + seqCol
	}
	return fmt.Sprintf("SELECT * FROM (SELECT *, MIN(%s) OVER (PARTITION BY %s) AS %s FROM %s) AS ordered ORDER BY %s, %s, %s",
		seqCol, batchCol, firstSequenceAlias, table, firstSequenceAlias, batchCol, seqCol)
}

// Load implements Source. Rows without a batch value are labelled with the
// table name.
func (s *WarehouseSource) Load(ctx context.Context) (*Load, error) {
	logger := orDiscard(s.Logger)
	table := s.table()
	if err := adapter.ValidateTableName(table); err != nil {
		return nil, err
	}

	rows, err := s.Adapter.Query(ctx, s.selectQuery(ctx, table, logger)) //nolint:gosec // table validated, columns quoted
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("columns of %s: %w", table, err)
	}
	keys := make([]string, len(cols))
	for i, c := range cols {
		keys[i] = strings.ToUpper(strings.TrimSpace(c))
	}

	batchCol := s.batchColumn()
	seqCol := s.sequenceColumn()
	index := make(map[string]int)
	load := &Load{}

	values := make([]sql.NullString, len(cols))
	dest := make([]any, len(cols))
	for i := range values {
		dest[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}

		label := table
		rec := make(lineage.Record, len(keys))
		for i, k := range keys {
			if !values[i].Valid {
				continue
			}
			if k == seqCol || k == firstSequenceAlias {
				continue
			}
			if k == batchCol {
				if v := strings.TrimSpace(values[i].String); v != "" {
					label = v
				}
				continue
			}
			rec[k] = values[i].String
		}

		n, ok := index[label]
		if !ok {
			n = len(load.Batches)
			index[label] = n
			load.Batches = append(load.Batches, lineage.Batch{Label: label})
		}
		load.Batches[n].Records = append(load.Batches[n].Records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", table, err)
	}

	logger.Debug("read warehouse table",
		slog.String("table", table),
		slog.Int("batches", len(load.Batches)))
	return load, nil
}

// Close releases an adapter opened by Open.
func (s *WarehouseSource) Close() error {
	if s.owned {
		return s.Adapter.Close()
	}
	return nil
}
