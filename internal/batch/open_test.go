package batch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leaplineage/pkg/adapter"
)

func TestOpen(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		uri     string
		check   func(t *testing.T, src Source)
		wantErr string
	}{
		{
			name: "plain directory",
			uri:  "results",
			check: func(t *testing.T, src Source) {
				dir, ok := src.(*DirSource)
				require.True(t, ok)
				assert.Equal(t, "results", dir.Dir)
			},
		},
		{
			name: "file uri",
			uri:  "file:///var/lineage",
			check: func(t *testing.T, src Source) {
				assert.Equal(t, "/var/lineage", src.Name())
			},
		},
		{
			name: "s3 bucket",
			uri:  "s3://lake/lineage",
			check: func(t *testing.T, src Source) {
				obj, ok := src.(*ObjectSource)
				require.True(t, ok)
				assert.Equal(t, "lineage/", obj.Prefix)
				_, isS3 := obj.Store.(*S3Store)
				assert.True(t, isS3)
			},
		},
		{
			name:    "unknown scheme",
			uri:     "ftp://host/dir",
			wantErr: "unsupported source",
		},
		{
			name:    "empty",
			uri:     "",
			wantErr: "source is empty",
		},
		{
			name:    "unknown warehouse",
			uri:     "warehouse:oracle",
			wantErr: "unknown adapter type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, err := Open(ctx, tt.uri, Options{})
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			tt.check(t, src)
			assert.NoError(t, Close(src))
		})
	}
}

func TestOpen_WarehouseTypeFromConfig(t *testing.T) {
	src, err := Open(context.Background(), "warehouse:", Options{Warehouse: WarehouseConfig{Type: "sqlite", Table: "runs"}})
	require.NoError(t, err)
	defer func() { _ = Close(src) }()

	wh, ok := src.(*WarehouseSource)
	require.True(t, ok)
	assert.Equal(t, "sqlite", wh.Adapter.DialectName())
	assert.Equal(t, "warehouse:sqlite/runs", wh.Name())
	assert.True(t, adapter.IsRegistered("sqlite"))
}
