package config

import "strings"

// Default configuration values.
const (
	DefaultResultsDir  = "result"
	DefaultStateFile   = ".leaplineage/state.db"
	DefaultPort        = 5173
	DefaultConcurrency = 8
	DefaultWarehouse   = "duckdb"
)

// DefaultSchemaForType returns the default schema for a warehouse type.
func DefaultSchemaForType(dbType string) string {
	if strings.ToLower(dbType) == "postgres" {
		return "public"
	}
	return "main"
}
