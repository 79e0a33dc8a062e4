// Package main provides the CLI for leaplineage.
package main

import (
	"os"

	"github.com/leapstack-labs/leaplineage/internal/cli"

	// Warehouse adapters register themselves for warehouse: sources and import.
	_ "github.com/leapstack-labs/leaplineage/pkg/adapters/duckdb"
	_ "github.com/leapstack-labs/leaplineage/pkg/adapters/postgres"
	_ "github.com/leapstack-labs/leaplineage/pkg/adapters/sqlite"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
