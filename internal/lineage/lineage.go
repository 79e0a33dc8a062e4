package lineage

import (
	"fmt"
	"log/slog"
	"sort"
	"time"
)

// MergeDirection widens an existing direction with a new observation.
// The first observation sets the direction, a conflicting one promotes it to
// both, and both is absorbing.
func MergeDirection(existing, observed Direction) Direction {
	switch {
	case existing == "":
		return observed
	case existing == observed:
		return existing
	default:
		return DirectionBoth
	}
}

// tableAccumulator collects the fields of one table during a run.
type tableAccumulator struct {
	id     string
	label  string
	fields map[string]Direction
}

// Aggregator builds a Graph from batches of records.
// An Aggregator holds the state of a single run and is not safe for
// concurrent use; create one per run.
type Aggregator struct {
	logger *slog.Logger
	now    func() time.Time

	tables map[string]*tableAccumulator
	order  []string
	edges  []Edge
	seq    int

	files   int
	seen    int
	skipped int
	failed  []string
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithLogger sets the logger used to report skipped records.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Aggregator) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithClock overrides the clock used for the generation timestamp.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) {
		if now != nil {
			a.now = now
		}
	}
}

// NewAggregator creates an empty aggregator.
func NewAggregator(opts ...Option) *Aggregator {
	a := &Aggregator{
		logger: slog.New(slog.DiscardHandler),
		now:    time.Now,
		tables: make(map[string]*tableAccumulator),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// AddBatch adds every record of a successfully parsed batch, in order.
func (a *Aggregator) AddBatch(b Batch) {
	a.files++
	accepted := 0
	for _, rec := range b.Records {
		if a.AddRecord(b.Label, rec) {
			accepted++
		}
	}
	a.logger.Debug("batch aggregated",
		slog.String("batch", b.Label),
		slog.Int("records", len(b.Records)),
		slog.Int("accepted", accepted))
}

// MarkFailed notes a batch that could not be read or parsed.
// The batch contributes no records and is not counted in FileCount.
func (a *Aggregator) MarkFailed(label string) {
	a.failed = append(a.failed, label)
}

// AddRecord adds one record from the batch named label.
// It reports whether the record was accepted.
func (a *Aggregator) AddRecord(label string, rec Record) bool {
	a.seen++

	source, ok := ExtractEndpoint(rec, RoleSource)
	if !ok {
		a.skip(label, RoleSource)
		return false
	}
	target, ok := ExtractEndpoint(rec, RoleTarget)
	if !ok {
		a.skip(label, RoleTarget)
		return false
	}

	a.register(source, DirectionOut)
	a.register(target, DirectionIn)

	a.edges = append(a.edges, Edge{
		ID:           fmt.Sprintf("edge-%d", a.seq),
		Source:       source.TableID,
		Target:       target.TableID,
		SourceField:  source.Column,
		TargetField:  target.Column,
		RelationType: rec.Get(KeyRelationType),
		EffectType:   rec.Get(KeyEffectType),
		SourceFile:   label,
	})
	a.seq++
	return true
}

func (a *Aggregator) skip(label string, role Role) {
	a.skipped++
	a.logger.Debug("record skipped", slog.String("batch", label), slog.String("missing", string(role)))
}

// register ensures the endpoint's table and column exist and widens the
// column direction with observed.
func (a *Aggregator) register(ep Endpoint, observed Direction) {
	t, ok := a.tables[ep.TableID]
	if !ok {
		t = &tableAccumulator{
			id:     ep.TableID,
			label:  ep.TableLabel,
			fields: make(map[string]Direction),
		}
		a.tables[ep.TableID] = t
		a.order = append(a.order, ep.TableID)
	}
	t.fields[ep.Column] = MergeDirection(t.fields[ep.Column], observed)
}

// Graph assembles the result. Nodes keep first-seen order, fields are sorted
// by name and edges keep sequence order. The accumulated state is left
// intact, so Graph may be called again after more records are added.
func (a *Aggregator) Graph() *Graph {
	nodes := make([]Node, 0, len(a.order))
	for _, id := range a.order {
		t := a.tables[id]
		fields := make([]Field, 0, len(t.fields))
		for name, dir := range t.fields {
			fields = append(fields, Field{Name: name, Direction: dir})
		}
		sort.Slice(fields, func(i, j int) bool {
			return fields[i].Name < fields[j].Name
		})
		nodes = append(nodes, Node{ID: t.id, Label: t.label, Fields: fields})
	}

	edges := make([]Edge, len(a.edges))
	copy(edges, a.edges)
	for _, e := range edges {
		if _, ok := a.tables[e.Source]; !ok {
			panic(fmt.Sprintf("lineage: edge %s references unregistered source %q", e.ID, e.Source))
		}
		if _, ok := a.tables[e.Target]; !ok {
			panic(fmt.Sprintf("lineage: edge %s references unregistered target %q", e.ID, e.Target))
		}
	}

	var failed []string
	if len(a.failed) > 0 {
		failed = append(failed, a.failed...)
	}

	return &Graph{
		Nodes:       nodes,
		Edges:       edges,
		FileCount:   a.files,
		GeneratedAt: a.now().UTC(),
		Stats: &Stats{
			TotalNodes:     len(nodes),
			TotalEdges:     len(edges),
			RecordsSeen:    a.seen,
			RecordsSkipped: a.skipped,
			FailedBatches:  failed,
		},
	}
}

// Aggregate builds a graph from batches with a fresh Aggregator.
func Aggregate(batches ...Batch) *Graph {
	agg := NewAggregator()
	for _, b := range batches {
		agg.AddBatch(b)
	}
	return agg.Graph()
}
