// Package service builds lineage graphs from a batch source and keeps the
// latest one for the HTTP server and the CLI.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/leapstack-labs/leaplineage/internal/batch"
	"github.com/leapstack-labs/leaplineage/internal/layout"
	"github.com/leapstack-labs/leaplineage/internal/lineage"
	"github.com/leapstack-labs/leaplineage/internal/notifier"
	"github.com/leapstack-labs/leaplineage/internal/state"
)

// Config holds the collaborators of a Service.
type Config struct {
	Source batch.Source
	// Store records run history. Optional.
	Store  state.Store
	Layout layout.Options
	// MinRebuildInterval throttles on-demand rebuilds. Zero rebuilds on every call.
	MinRebuildInterval time.Duration
	Logger             *slog.Logger
	// Now overrides the aggregation clock in tests.
	Now func() time.Time
}

// Service aggregates the source on demand and caches the result.
type Service struct {
	source   batch.Source
	store    state.Store
	layout   layout.Options
	limiter  *rate.Limiter
	logger   *slog.Logger
	now      func() time.Time
	notifier *notifier.Notifier

	buildMu sync.Mutex

	mu         sync.RWMutex
	graph      *lineage.Graph
	generation uint64
	live       bool
}

// New creates a Service.
func New(cfg Config) (*Service, error) {
	if cfg.Source == nil {
		return nil, fmt.Errorf("service requires a batch source")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	limit := rate.Inf
	if cfg.MinRebuildInterval > 0 {
		limit = rate.Every(cfg.MinRebuildInterval)
	}

	return &Service{
		source:   cfg.Source,
		store:    cfg.Store,
		layout:   cfg.Layout.WithDefaults(),
		limiter:  rate.NewLimiter(limit, 1),
		logger:   logger,
		now:      cfg.Now,
		notifier: notifier.New(),
	}, nil
}

// Notifier returns the notifier that receives a generation after every rebuild.
func (s *Service) Notifier() *notifier.Notifier {
	return s.notifier
}

// SourceName returns the name of the underlying source.
func (s *Service) SourceName() string {
	return s.source.Name()
}

// LayoutOptions returns the geometry used by Layout.
func (s *Service) LayoutOptions() layout.Options {
	return s.layout
}

// SetLive marks the cache as kept fresh by a watcher or a schedule.
// While live, Graph serves the cache instead of rebuilding.
func (s *Service) SetLive(live bool) {
	s.mu.Lock()
	s.live = live
	s.mu.Unlock()
}

// Current returns the cached graph and its generation, or nil before the first build.
func (s *Service) Current() (*lineage.Graph, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.graph, s.generation
}

// Build reads the source, aggregates it, records the run and replaces the cache.
// Unreadable batches are skipped and reported in the graph stats; only a
// source that cannot be listed at all fails the build.
func (s *Service) Build(ctx context.Context) (*lineage.Graph, error) {
	s.buildMu.Lock()
	defer s.buildMu.Unlock()

	start := time.Now()
	run := s.startRun()

	g, err := s.aggregate(ctx, run)
	if err != nil {
		s.finishRun(run, state.RunStatusFailed, state.Summary{}, err.Error())
		return nil, err
	}

	s.finishRun(run, state.RunStatusCompleted, summarize(g), "")

	s.mu.Lock()
	s.graph = g
	s.generation++
	gen := s.generation
	s.mu.Unlock()

	s.logger.Info("lineage graph built",
		slog.String("source", s.source.Name()),
		slog.Int("files", g.FileCount),
		slog.Int("nodes", len(g.Nodes)),
		slog.Int("edges", len(g.Edges)),
		slog.Duration("took", time.Since(start)),
	)
	s.notifier.Broadcast(gen)
	return g, nil
}

func (s *Service) aggregate(ctx context.Context, run *state.Run) (g *lineage.Graph, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.finishRun(run, state.RunStatusFailed, state.Summary{}, fmt.Sprint(r))
			panic(r)
		}
	}()

	load, err := s.source.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", s.source.Name(), err)
	}

	opts := []lineage.Option{lineage.WithLogger(s.logger)}
	if s.now != nil {
		opts = append(opts, lineage.WithClock(s.now))
	}
	agg := lineage.NewAggregator(opts...)
	load.Aggregate(agg)
	return agg.Graph(), nil
}

// Graph returns a graph for a request. A live cache is served as is.
// Otherwise the source is rebuilt unless the limiter denies it, in which
// case the cached graph is returned.
func (s *Service) Graph(ctx context.Context) (*lineage.Graph, error) {
	s.mu.RLock()
	cached, live := s.graph, s.live
	s.mu.RUnlock()

	if cached != nil && (live || !s.limiter.Allow()) {
		return cached, nil
	}
	return s.Build(ctx)
}

// Layout returns the graph from Graph together with its positions.
func (s *Service) Layout(ctx context.Context) (*lineage.Graph, *layout.Result, error) {
	g, err := s.Graph(ctx)
	if err != nil {
		return nil, nil, err
	}
	return g, layout.ForGraph(g, s.layout), nil
}

func (s *Service) startRun() *state.Run {
	if s.store == nil {
		return nil
	}
	run, err := s.store.CreateRun(s.source.Name())
	if err != nil {
		s.logger.Warn("failed to record run start", slog.String("error", err.Error()))
		return nil
	}
	return run
}

func (s *Service) finishRun(run *state.Run, status state.RunStatus, summary state.Summary, errMsg string) {
	if run == nil {
		return
	}
	if err := s.store.CompleteRun(run.ID, status, summary, errMsg); err != nil {
		s.logger.Warn("failed to record run completion",
			slog.String("run", run.ID), slog.String("error", err.Error()))
	}
}

func summarize(g *lineage.Graph) state.Summary {
	sum := state.Summary{
		FileCount: g.FileCount,
		NodeCount: len(g.Nodes),
		EdgeCount: len(g.Edges),
	}
	if g.Stats != nil {
		sum.FailedCount = len(g.Stats.FailedBatches)
		sum.RecordsSeen = g.Stats.RecordsSeen
		sum.RecordsSkipped = g.Stats.RecordsSkipped
	}
	return sum
}
