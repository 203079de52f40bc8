// ABOUTME: Temporal graph store: a quad store plus its time index and change feed
// ABOUTME: One lock serialises mutation, propagation and index maintenance

package timegraph

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nainya/timegraph/internal/logger"
	"github.com/nainya/timegraph/internal/metrics"
	"github.com/nainya/timegraph/pkg/changefeed"
	"github.com/nainya/timegraph/pkg/quadstore"
	"github.com/nainya/timegraph/pkg/rdf"
	"github.com/nainya/timegraph/pkg/temporal"
	"github.com/nainya/timegraph/pkg/timeindex"
)

var (
	// ErrReadOnly is returned by mutators of a mirror store
	ErrReadOnly = errors.New("timegraph: store is read-only")

	// ErrUnknownGraph indicates a named graph with no registered span
	ErrUnknownGraph = errors.New("timegraph: graph has no registered span")

	// ErrAmbiguousGraph indicates a named graph sharing its span with another
	// graph, so span addressing cannot reach it
	ErrAmbiguousGraph = errors.New("timegraph: graph span is not unique")
)

// Roles used in logs and metrics
const (
	RolePersistent = "persistent"
	RoleMirror     = "mirror"
)

// Namer derives the id of a new named graph from its span
type Namer func(span temporal.Span) string

// PrefixNamer names graphs prefix + canonical span text, e.g. graph://2005/P3Y
func PrefixNamer(prefix string) Namer {
	return func(span temporal.Span) string {
		return prefix + span.String()
	}
}

// Options configures a Store
type Options struct {
	Role       string
	Vocabulary timeindex.Vocabulary
	Namer      Namer
	ReadOnly   bool
	Logger     *logger.Logger
	Metrics    *metrics.Metrics
}

// Store is the authoritative (or mirrored) temporal graph
type Store struct {
	mu         sync.Mutex
	backend    quadstore.Store
	index      atomic.Pointer[timeindex.Index]
	dispatcher *changefeed.Dispatcher

	role     string
	vocab    timeindex.Vocabulary
	namer    Namer
	readOnly bool
	log      *logger.Logger
	indexLog *logger.Logger
	metrics  *metrics.Metrics
}

// Stats summarises a store
type Stats struct {
	Role         string
	Quads        int
	Graphs       int
	IndexEntries int
	Listeners    int
}

// New wraps backend. The index is nil until BuildIndex runs.
func New(backend quadstore.Store, opts Options) *Store {
	if opts.Role == "" {
		opts.Role = RolePersistent
	}
	if opts.Namer == nil {
		opts.Namer = PrefixNamer("graph://")
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	return &Store{
		backend:    backend,
		dispatcher: changefeed.NewDispatcher(),
		role:       opts.Role,
		vocab:      opts.Vocabulary.WithDefaults(),
		namer:      opts.Namer,
		readOnly:   opts.ReadOnly,
		log:        opts.Logger.StoreLogger(opts.Role),
		indexLog:   opts.Logger.IndexLogger(),
		metrics:    opts.Metrics,
	}
}

// Backend returns the underlying quad store
func (s *Store) Backend() quadstore.Store { return s.backend }

// Index returns the time index, or nil if it has not been built
func (s *Store) Index() *timeindex.Index { return s.index.Load() }

// Vocabulary returns the description vocabulary
func (s *Store) Vocabulary() timeindex.Vocabulary { return s.vocab }

// Role returns "persistent" or "mirror"
func (s *Store) Role() string { return s.role }

// ReadOnly reports whether public mutators are disabled
func (s *Store) ReadOnly() bool { return s.readOnly }

// BuildIndex (re)builds the time index from this store's context graph.
// On failure the previous index, if any, stays installed.
func (s *Store) BuildIndex(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buildIndexLocked(ctx)
}

func (s *Store) buildIndexLocked(ctx context.Context) error {
	start := time.Now()

	model, err := s.backend.Graph(ctx, s.vocab.ContextGraph)
	if errors.Is(err, quadstore.ErrGraphNotFound) {
		model, err = rdf.NewGraph(), nil
	}
	if err != nil {
		return fmt.Errorf("reading context graph: %w", err)
	}

	x, err := timeindex.Build(ctx, model, s.vocab)
	s.metrics.RecordStoreOperation(s.role, "build_index", time.Since(start), err)
	if err != nil {
		s.indexLog.Error("index build failed").Str("role", s.role).Err(err).Send()
		return err
	}

	s.index.Store(x)
	s.indexLog.LogIndexBuilt(x.Len(), time.Since(start))
	s.refreshStats(ctx)
	return nil
}

func (s *Store) indexLocked(ctx context.Context) (*timeindex.Index, error) {
	if x := s.index.Load(); x != nil {
		return x, nil
	}
	if err := s.buildIndexLocked(ctx); err != nil {
		return nil, err
	}
	return s.index.Load(), nil
}

// EnsureGraph returns the graph registered for span, creating, describing and
// indexing a new one if needed. It emits no change event.
func (s *Store) EnsureGraph(ctx context.Context, span temporal.Span) (string, error) {
	if s.readOnly {
		return "", ErrReadOnly
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensureGraphLocked(ctx, span)
}

func (s *Store) ensureGraphLocked(ctx context.Context, span temporal.Span) (string, error) {
	if span.IsZero() {
		return "", fmt.Errorf("%w: empty span", temporal.ErrInvalidTemporalValue)
	}
	x, err := s.indexLocked(ctx)
	if err != nil {
		return "", err
	}
	if id, ok := x.GraphForSpan(span); ok {
		return id, nil
	}

	id := s.namer(span)
	if err := s.backend.CreateNamedGraph(ctx, id); err != nil {
		return "", err
	}
	if err := s.describeLocked(ctx, id, span); err != nil {
		return "", err
	}
	x.Add(id, span)

	s.log.Debug("named graph created").Str("graph", id).Str("span", span.String()).Send()
	return id, nil
}

// describeLocked replaces the context description of id
func (s *Store) describeLocked(ctx context.Context, id string, span temporal.Span) error {
	subject := rdf.IRI(id)
	var stale []rdf.Triple
	err := s.backend.FindQuads(ctx, quadstore.Pattern{Graph: s.vocab.ContextGraph, S: subject}, func(q rdf.Quad) bool {
		stale = append(stale, q.Triple)
		return true
	})
	if err != nil {
		return err
	}
	for _, t := range stale {
		if isDescriptionPredicate(s.vocab, t.P) {
			if err := s.backend.RemoveTripleFromGraph(ctx, s.vocab.ContextGraph, t); err != nil {
				return err
			}
		}
	}
	for _, t := range s.vocab.Describe(id, span) {
		if err := s.backend.AddTripleToGraph(ctx, s.vocab.ContextGraph, t); err != nil {
			return err
		}
	}
	return nil
}

func isDescriptionPredicate(v timeindex.Vocabulary, p rdf.Term) bool {
	switch p.Value {
	case v.BeginYear, v.BeginMonth, v.BeginDay, v.DurationYears, v.DurationMonths, v.DurationDays:
		return true
	}
	return false
}

// Insert adds fact to the graph for span, or to the base graph when span is nil
func (s *Store) Insert(ctx context.Context, span *temporal.Span, fact rdf.Triple) error {
	return s.mutate(ctx, changefeed.Insertion{GraphSpan: span, Fact: fact})
}

// Remove deletes fact from the graph for span, or from the base graph when span is nil
func (s *Store) Remove(ctx context.Context, span *temporal.Span, fact rdf.Triple) error {
	if span == nil {
		return s.mutate(ctx, changefeed.NewBaseRemoval(fact))
	}
	return s.mutate(ctx, changefeed.NewSpanRemoval(*span, fact))
}

// RemoveQuad deletes a fully qualified quad
func (s *Store) RemoveQuad(ctx context.Context, q rdf.Quad) error {
	return s.mutate(ctx, changefeed.NewQuadRemoval(q))
}

// Apply performs a recorded event as a regular mutation, used to replay journals
func (s *Store) Apply(ctx context.Context, ev changefeed.Event) error {
	return s.mutate(ctx, ev)
}

// Subscribe registers a listener for every successful mutation
func (s *Store) Subscribe(l changefeed.Listener) func() {
	return s.dispatcher.Subscribe(l)
}

// mutate applies ev and then delivers it to every listener before returning.
// Listener failures do not undo the mutation; they surface as ErrPropagation.
func (s *Store) mutate(ctx context.Context, ev changefeed.Event) error {
	if s.readOnly {
		return ErrReadOnly
	}
	if err := ev.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applyAndPublishLocked(ctx, ev)
}

func (s *Store) applyAndPublishLocked(ctx context.Context, ev changefeed.Event) error {
	start := time.Now()
	err := s.applyLocked(ctx, ev)
	s.metrics.RecordStoreOperation(s.role, ev.Kind(), time.Since(start), err)
	s.log.LogStoreOperation(ev.Kind(), time.Since(start), 1, err)
	if err != nil {
		return err
	}
	s.refreshStats(ctx)

	perr := s.dispatcher.Publish(ctx, ev)
	s.metrics.RecordPropagation(ev.Kind(), perr)
	if perr != nil {
		failed := 0
		if pe, ok := changefeed.AsPropagationError(perr); ok {
			failed = len(pe.Failures)
		}
		s.log.SyncLogger().LogPropagationFailure(changefeed.Describe(ev), failed, perr)
		return perr
	}
	return nil
}

// applyLocked performs the backend mutation an event describes
func (s *Store) applyLocked(ctx context.Context, ev changefeed.Event) error {
	switch e := ev.(type) {
	case changefeed.Insertion:
		graph := rdf.DefaultGraph
		if e.GraphSpan != nil {
			id, err := s.ensureGraphLocked(ctx, *e.GraphSpan)
			if err != nil {
				return err
			}
			graph = id
		}
		return s.backend.AddTripleToGraph(ctx, graph, e.Fact)

	case changefeed.Removal:
		switch e.Addressing() {
		case changefeed.AddressQuad:
			return s.backend.RemoveQuad(ctx, *e.Quad)
		case changefeed.AddressSpan:
			x, err := s.indexLocked(ctx)
			if err != nil {
				return err
			}
			id, ok := x.GraphForSpan(*e.GraphSpan)
			if !ok {
				// nothing was ever stored under this span
				return nil
			}
			return s.backend.RemoveTripleFromGraph(ctx, id, e.Fact)
		default:
			return s.backend.RemoveTripleFromGraph(ctx, rdf.DefaultGraph, e.Fact)
		}

	default:
		return fmt.Errorf("%w: unsupported event %T", changefeed.ErrInvalidEvent, ev)
	}
}

// MirrorListener returns a listener that replays events onto mirror.
// The mirror forwards each applied event to its own subscribers.
func MirrorListener(mirror *Store) changefeed.Listener {
	return changefeed.ListenerFunc(func(ctx context.Context, ev changefeed.Event) error {
		mirror.mu.Lock()
		defer mirror.mu.Unlock()
		return mirror.applyAndPublishLocked(ctx, ev)
	})
}

// CopyTo copies every quad into dst and subscribes l in one step under the
// write lock, so l observes exactly the mutations that follow the copy.
func (s *Store) CopyTo(ctx context.Context, dst quadstore.Store, l changefeed.Listener) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	n, err := quadstore.Copy(ctx, s.backend, dst)
	s.metrics.RecordStoreOperation(s.role, "copy", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("copying store: %w", err)
	}
	s.log.LogStoreOperation("copy", time.Since(start), n, nil)

	if l == nil {
		return func() {}, nil
	}
	return s.dispatcher.Subscribe(l), nil
}

// GraphsAt returns the graphs valid at i
func (s *Store) GraphsAt(i temporal.Instant) ([]string, error) {
	x := s.Index()
	if x == nil {
		return nil, timeindex.ErrNoTimeIndexSet
	}
	s.metrics.RecordLookup("instant")
	return x.GraphsForInstant(i), nil
}

// GraphsOver returns the graphs whose span overlaps sp
func (s *Store) GraphsOver(sp temporal.Span) ([]string, error) {
	x := s.Index()
	if x == nil {
		return nil, timeindex.ErrNoTimeIndexSet
	}
	s.metrics.RecordLookup("span")
	return x.GraphsForSpan(sp), nil
}

// SpanOf returns the span registered for a named graph
func (s *Store) SpanOf(graphID string) (temporal.Span, error) {
	x := s.Index()
	if x == nil {
		return temporal.Span{}, timeindex.ErrNoTimeIndexSet
	}
	s.metrics.RecordLookup("exact")
	sp, ok := x.SpanFor(graphID)
	if !ok {
		return temporal.Span{}, fmt.Errorf("%w: %s", ErrUnknownGraph, graphID)
	}
	return sp, nil
}

// Stats reports sizes
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	st := Stats{Role: s.role, Listeners: s.dispatcher.Len()}

	n, err := s.backend.Len(ctx)
	if err != nil {
		return st, err
	}
	st.Quads = n

	graphs, err := s.backend.ListGraphs(ctx)
	if err != nil {
		return st, err
	}
	st.Graphs = len(graphs)

	if x := s.Index(); x != nil {
		st.IndexEntries = x.Len()
	}
	return st, nil
}

func (s *Store) refreshStats(ctx context.Context) {
	if s.metrics == nil {
		return
	}
	if st, err := s.Stats(ctx); err == nil {
		s.metrics.UpdateStoreStats(s.role, st.Quads, st.IndexEntries)
	}
}

// Close closes the backend
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backend.Close()
}
