// Package adapter provides the warehouse adapter contract used to read and
// write lineage tables.
//
// Concrete adapters live in pkg/adapters/ subdirectories and register
// themselves from init():
//
//	import _ "github.com/leapstack-labs/leaplineage/pkg/adapters/duckdb"
package adapter

import (
	"context"
	"database/sql"
)

// Config holds configuration for connecting to a database.
type Config struct {
	Type     string
	Path     string
	DSN      string
	Host     string
	Port     int
	Database string
	Username string
	Password string
	Schema   string
	Options  map[string]string
	Params   map[string]any
}

// Column represents a column in a database table.
type Column struct {
	Name     string
	Type     string
	Nullable bool
	Position int
}

// Metadata holds metadata about a database table.
type Metadata struct {
	Schema   string
	Name     string
	Columns  []Column
	RowCount int64
}

// Rows wraps sql.Rows so callers never import a driver.
type Rows struct {
	*sql.Rows
}

// Adapter defines the interface that all warehouse adapters must implement.
type Adapter interface {
	// Connect establishes a connection to the database using the provided config.
	Connect(ctx context.Context, cfg Config) error

	// Close closes the database connection and releases resources.
	Close() error

	// Exec executes a SQL statement that doesn't return rows.
	Exec(ctx context.Context, sql string) error

	// Query executes a SQL statement that returns rows.
	Query(ctx context.Context, sql string) (*Rows, error)

	// GetTableMetadata retrieves metadata for a specified table.
	GetTableMetadata(ctx context.Context, table string) (*Metadata, error)

	// WriteRecords replaces table with TEXT columns and inserts rows.
	// Every row must have len(columns) values.
	WriteRecords(ctx context.Context, table string, columns []string, rows [][]string) error

	// DialectName returns the SQL dialect name (duckdb, postgres, sqlite).
	DialectName() string

	// Placeholder returns the bind parameter for 1-based position i.
	Placeholder(i int) string
}
