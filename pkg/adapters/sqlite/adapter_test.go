package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/leapstack-labs/leaplineage/pkg/adapter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func connect(t *testing.T) *Adapter {
	t.Helper()
	adp := New(nil)
	require.NoError(t, adp.Connect(context.Background(), adapter.Config{
		Path: filepath.Join(t.TempDir(), "lineage.db"),
	}))
	t.Cleanup(func() { _ = adp.Close() })
	return adp
}

func TestAdapter_WriteRecordsAndMetadata(t *testing.T) {
	ctx := context.Background()
	adp := connect(t)

	columns := []string{"SOURCE_TABLE", "TARGET_TABLE", "FILE_NAME"}
	rows := [][]string{
		{"DB.T1", "DB.T2", "a.csv"},
		{"DB.T2", "DB.T3", "a.csv"},
		{"DB.T3", "DB.T1", "b.csv"},
	}
	require.NoError(t, adp.WriteRecords(ctx, "lineage_table", columns, rows))

	meta, err := adp.GetTableMetadata(ctx, "lineage_table")
	require.NoError(t, err)
	assert.Equal(t, "main", meta.Schema)
	assert.Equal(t, int64(3), meta.RowCount)
	require.Len(t, meta.Columns, 3)
	assert.Equal(t, "SOURCE_TABLE", meta.Columns[0].Name)
	assert.Equal(t, 1, meta.Columns[0].Position)
	assert.Equal(t, "TEXT", meta.Columns[0].Type)
	assert.True(t, meta.Columns[0].Nullable)
}

func TestAdapter_InMemoryKeepsSingleConnection(t *testing.T) {
	ctx := context.Background()
	adp := New(nil)
	require.NoError(t, adp.Connect(ctx, adapter.Config{}))
	defer func() { _ = adp.Close() }()

	require.NoError(t, adp.WriteRecords(ctx, "t", []string{"a"}, [][]string{{"x"}}))

	rows, err := adp.Query(ctx, "SELECT a FROM t")
	require.NoError(t, err)
	defer func() { _ = rows.Close() }()
	require.True(t, rows.Next())
}

func TestAdapter_GetTableMetadataErrors(t *testing.T) {
	ctx := context.Background()

	_, err := New(nil).GetTableMetadata(ctx, "t")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not established")

	adp := connect(t)
	_, err = adp.GetTableMetadata(ctx, "missing")
	assert.Error(t, err)

	_, err = adp.GetTableMetadata(ctx, "drop table;")
	assert.Error(t, err)
}

func TestAdapter_Registry(t *testing.T) {
	factory, ok := adapter.Get("sqlite")
	require.True(t, ok)
	adp := factory(nil)
	assert.Equal(t, "sqlite", adp.DialectName())
	assert.Equal(t, "?", adp.Placeholder(1))
}
