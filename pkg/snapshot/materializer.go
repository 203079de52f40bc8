// ABOUTME: Builds snapshots by merging the base graph with time-selected named graphs
// ABOUTME: An index entry without a backing graph is incoherence, never skipped silently

package snapshot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nainya/timegraph/internal/logger"
	"github.com/nainya/timegraph/internal/metrics"
	"github.com/nainya/timegraph/pkg/quadstore"
	"github.com/nainya/timegraph/pkg/rdf"
	"github.com/nainya/timegraph/pkg/timeindex"
)

// Source is a store a snapshot can be taken from
type Source interface {
	Index() *timeindex.Index
	Backend() quadstore.Store
}

// Options configures a Materializer
type Options struct {
	// DropStale removes index entries whose graph is missing and carries on
	// instead of failing with ErrIncoherence.
	DropStale bool
	Logger    *logger.Logger
	Metrics   *metrics.Metrics
}

// Materializer builds snapshots
type Materializer struct {
	dropStale bool
	log       *logger.Logger
	metrics   *metrics.Metrics
}

// NewMaterializer creates a Materializer
func NewMaterializer(opts Options) *Materializer {
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	return &Materializer{
		dropStale: opts.DropStale,
		log:       opts.Logger.SnapshotLogger(),
		metrics:   opts.Metrics,
	}
}

// Materialize merges the base graph of src with every named graph sel picks
func (m *Materializer) Materialize(ctx context.Context, src Source, sel Selector) (*Snapshot, error) {
	start := time.Now()
	id := uuid.NewString()

	snap, err := m.materialize(ctx, id, src, sel)

	graphs, triples := 0, 0
	if snap != nil {
		graphs, triples = len(snap.Graphs), snap.model.Len()
	}
	m.metrics.RecordMaterialization(graphs, time.Since(start), err)
	m.log.LogMaterialize(id, sel.String(), graphs, triples, time.Since(start), err)
	return snap, err
}

func (m *Materializer) materialize(ctx context.Context, id string, src Source, sel Selector) (*Snapshot, error) {
	x := src.Index()
	if x == nil {
		return nil, ErrNoTimeIndexSet
	}
	m.metrics.RecordLookup(sel.Kind())
	candidates := sel.selectGraphs(x)

	backend := src.Backend()
	base, err := backend.Graph(ctx, rdf.DefaultGraph)
	if err != nil {
		return nil, fmt.Errorf("reading base graph: %w", err)
	}
	model := rdf.NewGraph()
	model.AddAll(base)

	graphs := make([]string, 0, len(candidates))
	for _, g := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		part, err := backend.Graph(ctx, g)
		if errors.Is(err, quadstore.ErrGraphNotFound) {
			m.metrics.RecordIncoherence()
			if !m.dropStale {
				m.log.Error("index references a missing graph").Str("graph", g).Send()
				return nil, fmt.Errorf("%w: %s", ErrIncoherence, g)
			}
			x.Remove(g)
			m.log.Warn("dropped stale index entry").Str("graph", g).Send()
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("reading graph %s: %w", g, err)
		}
		model.AddAll(part)
		graphs = append(graphs, g)
	}

	return &Snapshot{
		ID:        id,
		Selector:  sel,
		Graphs:    graphs,
		CreatedAt: time.Now().UTC(),
		model:     model,
	}, nil
}
