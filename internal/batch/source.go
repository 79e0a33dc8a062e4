// Package batch loads lineage record batches from a results directory, an
// object store bucket or a warehouse table.
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/leaplineage/internal/lineage"
)

// DefaultConcurrency bounds parallel batch reads.
const DefaultConcurrency = 8

// Source supplies an ordered list of named batches.
type Source interface {
	// Name describes the source for logs and run history.
	Name() string

	// Load reads every batch. It fails only when the batch list itself cannot
	// be obtained; unreadable or undecodable batches are reported in Failed.
	Load(ctx context.Context) (*Load, error)
}

// Failure is a batch that could not be read or decoded.
type Failure struct {
	Label string
	Err   error
}

func (f Failure) Error() string {
	return fmt.Sprintf("%s: %v", f.Label, f.Err)
}

// Load is the result of reading a source.
type Load struct {
	Batches []lineage.Batch
	Failed  []Failure
}

// Aggregate feeds the load into agg, parsed batches first in source order.
func (l *Load) Aggregate(agg *lineage.Aggregator) {
	for _, b := range l.Batches {
		agg.AddBatch(b)
	}
	for _, f := range l.Failed {
		agg.MarkFailed(f.Label)
	}
}

// readFunc returns the raw bytes of the batch named label.
type readFunc func(ctx context.Context, label string) ([]byte, error)

// readAll reads and decodes labels with at most concurrency readers, keeping
// label order in the result. Per-batch failures never abort the others.
func readAll(ctx context.Context, labels []string, concurrency int, read readFunc, logger *slog.Logger) (*Load, error) {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	type outcome struct {
		records []lineage.Record
		err     error
	}
	results := make([]outcome, len(labels))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, label := range labels {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			data, err := read(gctx, label)
			if err != nil {
				results[i] = outcome{err: fmt.Errorf("read: %w", err)}
				return nil
			}
			records, err := DecodeCSV(data)
			if err != nil {
				results[i] = outcome{err: fmt.Errorf("decode: %w", err)}
				return nil
			}
			results[i] = outcome{records: records}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	load := &Load{}
	for i, label := range labels {
		res := results[i]
		if res.err != nil {
			logger.Warn("skipping batch", slog.String("batch", label), slog.String("error", res.err.Error()))
			load.Failed = append(load.Failed, Failure{Label: label, Err: res.err})
			continue
		}
		load.Batches = append(load.Batches, lineage.Batch{Label: label, Records: res.records})
	}
	return load, nil
}

// matchFold matches name against a glob pattern ignoring case, so *.csv
// also selects RESULT.CSV.
func matchFold(pattern, name string) bool {
	ok, _ := path.Match(strings.ToLower(pattern), strings.ToLower(name))
	return ok
}

func orDiscard(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return logger
}
