package batch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/leaplineage/pkg/adapter"
)

// WarehouseConfig selects the adapter and table for warehouse sources.
type WarehouseConfig struct {
	Type           string
	DSN            string
	Table          string
	BatchColumn    string
	SequenceColumn string
	Params         map[string]any
}

// Options configures Open.
type Options struct {
	Pattern     string
	Concurrency int
	ObjectStore ObjectStoreConfig
	Warehouse   WarehouseConfig
	Logger      *slog.Logger
}

// WarehouseScheme prefixes warehouse source URIs, e.g. "warehouse:duckdb".
const WarehouseScheme = "warehouse:"

// Open picks the source for uri:
//
//	results            local directory (also file://results)
//	s3://bucket/prefix object store (gs:// and azblob:// too)
//	warehouse:duckdb   warehouse table; the type defaults to opts.Warehouse.Type
//
// Warehouse sources hold a connection; release it with Close.
func Open(ctx context.Context, uri string, opts Options) (Source, error) {
	logger := orDiscard(opts.Logger)

	switch {
	case strings.HasPrefix(uri, WarehouseScheme):
		return openWarehouse(ctx, strings.TrimPrefix(uri, WarehouseScheme), opts, logger)

	case strings.HasPrefix(uri, "s3://"), strings.HasPrefix(uri, "gs://"), strings.HasPrefix(uri, "azblob://"):
		loc, err := ParseObjectURI(uri)
		if err != nil {
			return nil, err
		}
		store, err := NewObjectStore(ctx, loc, opts.ObjectStore)
		if err != nil {
			return nil, err
		}
		return &ObjectSource{
			URI:         uri,
			Store:       store,
			Prefix:      loc.Prefix,
			Pattern:     opts.Pattern,
			Concurrency: opts.Concurrency,
			Logger:      logger,
		}, nil

	case strings.Contains(uri, "://") && !strings.HasPrefix(uri, "file://"):
		return nil, fmt.Errorf("unsupported source %q", uri)

	default:
		dir := strings.TrimPrefix(uri, "file://")
		if dir == "" {
			return nil, fmt.Errorf("source is empty")
		}
		return &DirSource{
			Dir:         dir,
			Pattern:     opts.Pattern,
			Concurrency: opts.Concurrency,
			Logger:      logger,
		}, nil
	}
}

func openWarehouse(ctx context.Context, typ string, opts Options, logger *slog.Logger) (Source, error) {
	wh := opts.Warehouse
	if typ == "" {
		typ = wh.Type
	}

	adp, err := adapter.NewAdapter(adapter.Config{Type: typ, DSN: wh.DSN, Params: wh.Params}, logger)
	if err != nil {
		return nil, err
	}
	if err := adp.Connect(ctx, adapter.Config{Type: typ, DSN: wh.DSN, Params: wh.Params}); err != nil {
		return nil, fmt.Errorf("connect %s warehouse: %w", typ, err)
	}

	return &WarehouseSource{
		Adapter:        adp,
		Table:          wh.Table,
		BatchColumn:    wh.BatchColumn,
		SequenceColumn: wh.SequenceColumn,
		Logger:         logger,
		owned:          true,
	}, nil
}

// Close releases the source if it holds resources.
func Close(src Source) error {
	if c, ok := src.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
