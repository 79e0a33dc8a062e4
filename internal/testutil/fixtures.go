package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// Edge is one SOURCE_TABLE.SOURCE_COLUMN -> TARGET_TABLE.TARGET_COLUMN row.
type Edge struct {
	SourceTable, SourceColumn string
	TargetTable, TargetColumn string
}

// LineageCSV renders edges as a results file with the four direct columns.
func LineageCSV(edges ...Edge) string {
	var b strings.Builder
	b.WriteString("SOURCE_TABLE,SOURCE_COLUMN,TARGET_TABLE,TARGET_COLUMN\n")
	for _, e := range edges {
		b.WriteString(strings.Join([]string{e.SourceTable, e.SourceColumn, e.TargetTable, e.TargetColumn}, ","))
		b.WriteString("\n")
	}
	return b.String()
}

// ResultsDir creates a temp directory holding files (name -> content).
func ResultsDir(t testing.TB, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		WriteFile(t, dir, name, content)
	}
	return dir
}

// WriteFile writes content to dir/name and returns the path.
func WriteFile(t testing.TB, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}
