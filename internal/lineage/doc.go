// Package lineage aggregates column-level lineage records into a table graph.
//
// Records are flat key/value rows produced by an external lineage extraction
// tool, one row per source column -> target column relationship. The package
// resolves both endpoints of every row, deduplicates tables and columns, and
// emits one edge per accepted row.
//
// # Record keys
//
// Each endpoint is read with a role prefix (SOURCE or TARGET):
//
//	<ROLE>_TABLE      preferred table name
//	<ROLE>_DB         database part of a synthesized name
//	<ROLE>_SCHEMA     schema part of a synthesized name
//	<ROLE>_TABLE_ID   table id, last part of a synthesized name and final fallback
//	<ROLE>_COLUMN     preferred column name
//	<ROLE>_COLUMN_ID  column fallback
//
// RELATION_TYPE and EFFECTTYPE are carried through to the edge verbatim.
//
// # Basic Usage
//
//	agg := lineage.NewAggregator()
//	agg.AddBatch(lineage.Batch{Label: "orders.csv", Records: records})
//	graph := agg.Graph()
//
//	for _, n := range graph.Nodes {
//	    fmt.Printf("%s: %d fields\n", n.ID, len(n.Fields))
//	}
//
// Rows missing either endpoint are skipped silently. Upstream tools emit
// partial rows routinely, so a skip is filtering rather than failure.
package lineage
