package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leaplineage/internal/batch"
	"github.com/leapstack-labs/leaplineage/internal/lineage"
	"github.com/leapstack-labs/leaplineage/internal/state"
	"github.com/leapstack-labs/leaplineage/internal/testutil"
)

// countingSource serves fixed batches and counts loads.
type countingSource struct {
	load  *batch.Load
	err   error
	loads atomic.Int32
}

func (c *countingSource) Name() string { return "fake" }

func (c *countingSource) Load(context.Context) (*batch.Load, error) {
	c.loads.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	return c.load, nil
}

func record(st, sc, tt, tc string) lineage.Record {
	return lineage.Record{"SOURCE_TABLE": st, "SOURCE_COLUMN": sc, "TARGET_TABLE": tt, "TARGET_COLUMN": tc}
}

func fixtureLoad() *batch.Load {
	return &batch.Load{
		Batches: []lineage.Batch{
			{Label: "a.csv", Records: []lineage.Record{record("DB.T1", "c1", "DB.T2", "c1")}},
			{Label: "b.csv", Records: []lineage.Record{record("DB.T2", "c1", "DB.T3", "c9"), {"SOURCE_TABLE": "X"}}},
		},
		Failed: []batch.Failure{{Label: "bad.csv", Err: errors.New("decode: boom")}},
	}
}

func fixedClock() time.Time {
	return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
}

func newStore(t *testing.T) *state.SQLiteStore {
	t.Helper()
	store := state.NewSQLiteStore(nil)
	require.NoError(t, store.Open(":memory:"))
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestNew_RequiresSource(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)
}

func TestService_Build(t *testing.T) {
	src := &countingSource{load: fixtureLoad()}
	store := newStore(t)
	svc, err := New(Config{Source: src, Store: store, Now: fixedClock, Logger: testutil.NewTestLogger(t)})
	require.NoError(t, err)

	updates := svc.Notifier().Subscribe()
	defer svc.Notifier().Unsubscribe(updates)

	g, err := svc.Build(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, g.FileCount)
	assert.Len(t, g.Nodes, 3)
	assert.Len(t, g.Edges, 2)
	assert.Equal(t, fixedClock(), g.GeneratedAt)
	require.NotNil(t, g.Stats)
	assert.Equal(t, []string{"bad.csv"}, g.Stats.FailedBatches)
	assert.Equal(t, 1, g.Stats.RecordsSkipped)

	cached, gen := svc.Current()
	assert.Same(t, g, cached)
	assert.Equal(t, uint64(1), gen)
	assert.Equal(t, uint64(1), <-updates)

	run, err := store.GetLatestRun("fake")
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, state.RunStatusCompleted, run.Status)
	assert.Equal(t, 2, run.FileCount)
	assert.Equal(t, 1, run.FailedCount)
	assert.Equal(t, 3, run.NodeCount)
	assert.Equal(t, 2, run.EdgeCount)
	assert.Equal(t, 3, run.RecordsSeen)
	assert.Equal(t, 1, run.RecordsSkipped)
}

func TestService_BuildFailureKeepsCache(t *testing.T) {
	src := &countingSource{load: fixtureLoad()}
	store := newStore(t)
	svc, err := New(Config{Source: src, Store: store})
	require.NoError(t, err)

	first, err := svc.Build(context.Background())
	require.NoError(t, err)

	src.err = errors.New("bucket gone")
	_, err = svc.Build(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket gone")

	cached, gen := svc.Current()
	assert.Same(t, first, cached)
	assert.Equal(t, uint64(1), gen)

	runs, err := store.ListRuns(0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, state.RunStatusFailed, runs[0].Status)
	assert.Contains(t, runs[0].Error, "bucket gone")
}

func TestService_GraphRebuildsWithoutThrottle(t *testing.T) {
	src := &countingSource{load: fixtureLoad()}
	svc, err := New(Config{Source: src})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := svc.Graph(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, int32(3), src.loads.Load())
}

func TestService_GraphThrottled(t *testing.T) {
	src := &countingSource{load: fixtureLoad()}
	svc, err := New(Config{Source: src, MinRebuildInterval: time.Hour})
	require.NoError(t, err)

	first, err := svc.Graph(context.Background())
	require.NoError(t, err)
	second, err := svc.Graph(context.Background())
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, int32(1), src.loads.Load())
}

func TestService_GraphLiveServesCache(t *testing.T) {
	src := &countingSource{load: fixtureLoad()}
	svc, err := New(Config{Source: src})
	require.NoError(t, err)
	svc.SetLive(true)

	_, err = svc.Graph(context.Background())
	require.NoError(t, err)
	_, err = svc.Graph(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int32(1), src.loads.Load())
}

func TestService_Layout(t *testing.T) {
	svc, err := New(Config{Source: &countingSource{load: fixtureLoad()}})
	require.NoError(t, err)

	g, res, err := svc.Layout(context.Background())
	require.NoError(t, err)
	require.NotNil(t, g)
	assert.Len(t, res.Positions, len(g.Nodes))
	assert.Equal(t, [][]string{{"DB.T1"}, {"DB.T2"}, {"DB.T3"}}, res.Layers)
	assert.Equal(t, svc.LayoutOptions().NodeWidth, res.Positions["DB.T1"].Width)
}

func TestService_DirectorySource(t *testing.T) {
	dir := testutil.ResultsDir(t, map[string]string{
		"one.csv": testutil.LineageCSV(testutil.Edge{SourceTable: "S.A", SourceColumn: "x", TargetTable: "S.B", TargetColumn: "y"}),
		"two.csv": testutil.LineageCSV(testutil.Edge{SourceTable: "S.B", SourceColumn: "y", TargetTable: "S.A", TargetColumn: "x"}),
	})

	svc, err := New(Config{Source: &batch.DirSource{Dir: dir}})
	require.NoError(t, err)

	g, err := svc.Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, g.FileCount)

	a, ok := g.Node("S.A")
	require.True(t, ok)
	assert.Equal(t, lineage.DirectionBoth, a.Fields[0].Direction)
}
