package state

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store := NewSQLiteStore(nil)
	require.NoError(t, store.Open(":memory:"))
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStore_OpenClose(t *testing.T) {
	store := NewSQLiteStore(nil)
	require.NoError(t, store.Open(":memory:"))
	assert.Equal(t, ":memory:", store.Path())
	require.NoError(t, store.Close())
}

func TestSQLiteStore_Migrate(t *testing.T) {
	store := setupTestStore(t)

	version, err := store.GetMigrationVersion()
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)

	rows, err := store.db.Query("SELECT 1 FROM runs LIMIT 1")
	require.NoError(t, err)
	_ = rows.Close()

	// migrating twice is a no-op
	require.NoError(t, store.Migrate())
}

func TestSQLiteStore_NotOpened(t *testing.T) {
	store := NewSQLiteStore(nil)

	_, err := store.CreateRun("dir")
	require.Error(t, err)
	_, err = store.GetRun("x")
	require.Error(t, err)
	_, err = store.ListRuns(0)
	require.Error(t, err)
	require.Error(t, store.Migrate())
	assert.NoError(t, store.Close())
}

func TestSQLiteStore_RunLifecycle(t *testing.T) {
	tests := []struct {
		name    string
		status  RunStatus
		summary Summary
		errMsg  string
	}{
		{
			name:    "completed run",
			status:  RunStatusCompleted,
			summary: Summary{FileCount: 3, FailedCount: 1, NodeCount: 4, EdgeCount: 5, RecordsSeen: 12, RecordsSkipped: 2},
		},
		{
			name:   "failed run keeps error",
			status: RunStatusFailed,
			errMsg: "no batches",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := setupTestStore(t)

			run, err := store.CreateRun("./results")
			require.NoError(t, err)
			require.NotEmpty(t, run.ID)
			assert.Equal(t, RunStatusRunning, run.Status)
			assert.Zero(t, run.Duration())

			got, err := store.GetRun(run.ID)
			require.NoError(t, err)
			assert.Equal(t, RunStatusRunning, got.Status)
			assert.Nil(t, got.CompletedAt)
			assert.True(t, got.StartedAt.Equal(run.StartedAt))

			require.NoError(t, store.CompleteRun(run.ID, tt.status, tt.summary, tt.errMsg))

			got, err = store.GetRun(run.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.status, got.Status)
			require.NotNil(t, got.CompletedAt)
			assert.False(t, got.CompletedAt.Before(got.StartedAt))
			assert.GreaterOrEqual(t, got.Duration(), time.Duration(0))
			assert.Equal(t, tt.errMsg, got.Error)
			assert.Equal(t, tt.summary.FileCount, got.FileCount)
			assert.Equal(t, tt.summary.FailedCount, got.FailedCount)
			assert.Equal(t, tt.summary.NodeCount, got.NodeCount)
			assert.Equal(t, tt.summary.EdgeCount, got.EdgeCount)
			assert.Equal(t, tt.summary.RecordsSeen, got.RecordsSeen)
			assert.Equal(t, tt.summary.RecordsSkipped, got.RecordsSkipped)
		})
	}
}

func TestSQLiteStore_RunNotFound(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.GetRun("missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run not found")

	err = store.CompleteRun("missing", RunStatusCompleted, Summary{}, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run not found")
}

func TestSQLiteStore_GetLatestRun(t *testing.T) {
	store := setupTestStore(t)

	latest, err := store.GetLatestRun("a")
	require.NoError(t, err)
	assert.Nil(t, latest)

	first, err := store.CreateRun("a")
	require.NoError(t, err)
	_, err = store.CreateRun("b")
	require.NoError(t, err)
	second, err := store.CreateRun("a")
	require.NoError(t, err)

	latest, err = store.GetLatestRun("a")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, second.ID, latest.ID)
	assert.NotEqual(t, first.ID, latest.ID)
}

func TestSQLiteStore_ListRuns(t *testing.T) {
	store := setupTestStore(t)

	var ids []string
	for _, src := range []string{"a", "b", "c", "d"} {
		run, err := store.CreateRun(src)
		require.NoError(t, err)
		ids = append(ids, run.ID)
	}

	all, err := store.ListRuns(0)
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, ids[3], all[0].ID)
	assert.Equal(t, ids[0], all[3].ID)

	limited, err := store.ListRuns(2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, "d", limited[0].Source)
	assert.Equal(t, "c", limited[1].Source)
}

func TestSQLiteStore_FilePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	store := NewSQLiteStore(nil)
	require.NoError(t, store.Open(path))
	run, err := store.CreateRun("dir")
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened := NewSQLiteStore(nil)
	require.NoError(t, reopened.Open(path))
	defer func() { _ = reopened.Close() }()

	got, err := reopened.GetRun(run.ID)
	require.NoError(t, err)
	assert.Equal(t, "dir", got.Source)
}
