package timegraph

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nainya/timegraph/internal/metrics"
	"github.com/nainya/timegraph/pkg/changefeed"
	"github.com/nainya/timegraph/pkg/quadstore"
	"github.com/nainya/timegraph/pkg/rdf"
	"github.com/nainya/timegraph/pkg/temporal"
	"github.com/nainya/timegraph/pkg/timeindex"
)

const ex = "http://example.org/"

func triple(s, p, o string) rdf.Triple {
	return rdf.NewTriple(rdf.IRI(ex+s), rdf.IRI(ex+p), rdf.Literal(o))
}

func spanOf(t *testing.T, s string) *temporal.Span {
	t.Helper()
	sp, err := temporal.ParseSpan(s)
	require.NoError(t, err)
	return &sp
}

func newStore(t *testing.T) *Store {
	t.Helper()
	s := New(quadstore.NewMemory(), Options{Metrics: metrics.NewMetrics(prometheus.NewRegistry())})
	require.NoError(t, s.BuildIndex(context.Background()))
	return s
}

func TestEnsureGraphReusesExactSpan(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	id, err := s.EnsureGraph(ctx, *spanOf(t, "2005/P3Y"))
	require.NoError(t, err)
	assert.Equal(t, "graph://2005/P3Y", id)

	again, err := s.EnsureGraph(ctx, *spanOf(t, "2005/P3Y"))
	require.NoError(t, err)
	assert.Equal(t, id, again)

	other, err := s.EnsureGraph(ctx, *spanOf(t, "2005"))
	require.NoError(t, err)
	assert.NotEqual(t, id, other)

	ok, err := s.Backend().ContainsGraph(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok)

	// The context graph describes both graphs, so a rebuild agrees
	x, err := timeindex.Build(ctx, mustGraph(t, s, s.Vocabulary().ContextGraph), s.Vocabulary())
	require.NoError(t, err)
	assert.Equal(t, 2, x.Len())
	sp, ok := x.SpanFor(id)
	require.True(t, ok)
	assert.Equal(t, "2005/P3Y", sp.String())
}

func mustGraph(t *testing.T, s *Store, id string) rdf.Model {
	t.Helper()
	m, err := s.Backend().Graph(context.Background(), id)
	require.NoError(t, err)
	return m
}

func TestInsertAndRemoveAddressing(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	sp := spanOf(t, "2005")

	require.NoError(t, s.Insert(ctx, nil, triple("a", "p", "base")))
	require.NoError(t, s.Insert(ctx, sp, triple("a", "p", "temporal")))

	assert.True(t, mustGraph(t, s, rdf.DefaultGraph).Contains(triple("a", "p", "base")))
	id, _ := s.Index().GraphForSpan(*sp)
	assert.True(t, mustGraph(t, s, id).Contains(triple("a", "p", "temporal")))

	require.NoError(t, s.Remove(ctx, sp, triple("a", "p", "temporal")))
	assert.False(t, mustGraph(t, s, id).Contains(triple("a", "p", "temporal")))

	require.NoError(t, s.Remove(ctx, nil, triple("a", "p", "base")))
	assert.Equal(t, 0, mustGraph(t, s, rdf.DefaultGraph).Len())

	require.NoError(t, s.Insert(ctx, sp, triple("b", "p", "q")))
	require.NoError(t, s.RemoveQuad(ctx, rdf.NewQuad(id, triple("b", "p", "q"))))
	assert.Equal(t, 0, mustGraph(t, s, id).Len())

	// removing under a span that was never used is a no-op
	require.NoError(t, s.Remove(ctx, spanOf(t, "1900"), triple("b", "p", "q")))
}

func TestEventsDeliveredBeforeReturn(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	var got []changefeed.Event
	s.Subscribe(changefeed.ListenerFunc(func(ctx context.Context, ev changefeed.Event) error {
		got = append(got, ev)
		return nil
	}))

	require.NoError(t, s.Insert(ctx, spanOf(t, "2005"), triple("a", "p", "o")))
	require.NoError(t, s.Remove(ctx, nil, triple("a", "p", "o")))
	_, err := s.EnsureGraph(ctx, *spanOf(t, "2010"))
	require.NoError(t, err)

	require.Len(t, got, 2, "graph creation is bookkeeping and emits nothing")
	ins, ok := got[0].(changefeed.Insertion)
	require.True(t, ok)
	assert.Equal(t, "2005", ins.GraphSpan.String())
	rem, ok := got[1].(changefeed.Removal)
	require.True(t, ok)
	assert.Equal(t, changefeed.AddressBase, rem.Addressing())
}

func TestPropagationFailureKeepsMutation(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	s.Subscribe(changefeed.ListenerFunc(func(ctx context.Context, ev changefeed.Event) error {
		return errors.New("replica offline")
	}))

	err := s.Insert(ctx, nil, triple("a", "p", "o"))
	assert.ErrorIs(t, err, changefeed.ErrPropagation)
	assert.True(t, mustGraph(t, s, rdf.DefaultGraph).Contains(triple("a", "p", "o")), "no rollback")
}

func TestInvalidEventsRejected(t *testing.T) {
	s := newStore(t)
	err := s.Insert(context.Background(), nil, rdf.Triple{S: rdf.IRI(ex + "a")})
	assert.ErrorIs(t, err, changefeed.ErrInvalidEvent)
}

func TestLazyIndexBuild(t *testing.T) {
	ctx := context.Background()
	s := New(quadstore.NewMemory(), Options{})
	assert.Nil(t, s.Index())

	_, err := s.GraphsAt(temporal.Now())
	assert.ErrorIs(t, err, timeindex.ErrNoTimeIndexSet)

	require.NoError(t, s.Insert(ctx, spanOf(t, "2005"), triple("a", "p", "o")))
	require.NotNil(t, s.Index())
	assert.Equal(t, 1, s.Index().Len())
}

func TestMirrorReplicatesEvents(t *testing.T) {
	ctx := context.Background()
	primary := newStore(t)
	require.NoError(t, primary.Insert(ctx, spanOf(t, "2005/P3Y"), triple("a", "p", "before")))

	mirror := New(quadstore.NewMemory(), Options{Role: RoleMirror, ReadOnly: true})
	unsub, err := primary.CopyTo(ctx, mirror.Backend(), MirrorListener(mirror))
	require.NoError(t, err)
	defer unsub()
	require.NoError(t, mirror.BuildIndex(ctx))

	id, ok := mirror.Index().GraphForSpan(*spanOf(t, "2005/P3Y"))
	require.True(t, ok, "mirror index built from its own context graph copy")
	assert.True(t, mustGraph(t, mirror, id).Contains(triple("a", "p", "before")))
	assert.NotSame(t, primary.Index(), mirror.Index())

	require.NoError(t, primary.Insert(ctx, nil, triple("b", "p", "base")))
	require.NoError(t, primary.Insert(ctx, spanOf(t, "2010"), triple("c", "p", "new")))
	assert.True(t, mustGraph(t, mirror, rdf.DefaultGraph).Contains(triple("b", "p", "base")))

	newID, ok := mirror.Index().GraphForSpan(*spanOf(t, "2010"))
	require.True(t, ok)
	assert.True(t, mustGraph(t, mirror, newID).Contains(triple("c", "p", "new")))

	require.NoError(t, primary.RemoveQuad(ctx, rdf.NewQuad(id, triple("a", "p", "before"))))
	assert.False(t, mustGraph(t, mirror, id).Contains(triple("a", "p", "before")))

	pst, err := primary.Stats(ctx)
	require.NoError(t, err)
	mst, err := mirror.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, pst.Quads, mst.Quads)
	assert.Equal(t, pst.IndexEntries, mst.IndexEntries)
	assert.Equal(t, 1, pst.Listeners)
}

func TestReadOnlyMirror(t *testing.T) {
	ctx := context.Background()
	mirror := New(quadstore.NewMemory(), Options{Role: RoleMirror, ReadOnly: true})

	assert.ErrorIs(t, mirror.Insert(ctx, nil, triple("a", "p", "o")), ErrReadOnly)
	assert.ErrorIs(t, mirror.Remove(ctx, nil, triple("a", "p", "o")), ErrReadOnly)
	assert.ErrorIs(t, mirror.RemoveQuad(ctx, rdf.NewQuad(rdf.DefaultGraph, triple("a", "p", "o"))), ErrReadOnly)
	_, err := mirror.EnsureGraph(ctx, *spanOf(t, "2005"))
	assert.ErrorIs(t, err, ErrReadOnly)
	_, err = mirror.Import(ctx, nil, strings.NewReader(""))
	assert.ErrorIs(t, err, ErrReadOnly)
}

func TestImport(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	data := `<http://example.org/a> <http://example.org/p> "one" .
<http://example.org/a> <http://example.org/p> "two" .
`
	n, err := s.Import(ctx, spanOf(t, "2005"), strings.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	id, _ := s.Index().GraphForSpan(*spanOf(t, "2005"))
	quads := `<http://example.org/b> <http://example.org/p> "three" <` + id + `> .
<http://example.org/b> <http://example.org/p> "base" .
`
	n, err = s.Import(ctx, nil, strings.NewReader(quads))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 3, mustGraph(t, s, id).Len())
	assert.Equal(t, 1, mustGraph(t, s, rdf.DefaultGraph).Len())

	_, err = s.Import(ctx, nil, strings.NewReader(`<http://example.org/b> <http://example.org/p> "x" <graph://unknown> .`))
	assert.ErrorIs(t, err, ErrUnknownGraph)
}

func TestImportRejectsLabelWithSharedSpan(t *testing.T) {
	ctx := context.Background()
	backend := quadstore.NewMemory()
	s := New(backend, Options{})
	v := s.Vocabulary()

	from2005 := *spanOf(t, "2005")
	for _, id := range []string{"graph://a", "graph://b"} {
		require.NoError(t, backend.CreateNamedGraph(ctx, id))
		for _, tr := range v.Describe(id, from2005) {
			require.NoError(t, backend.AddTripleToGraph(ctx, v.ContextGraph, tr))
		}
	}
	require.NoError(t, s.BuildIndex(ctx))

	_, err := s.Import(ctx, nil, strings.NewReader(`<http://example.org/s> <http://example.org/p> "o" <graph://b> .`))
	assert.ErrorIs(t, err, ErrAmbiguousGraph)
	assert.Equal(t, 0, mustGraph(t, s, "graph://a").Len(), "statement must not land in another graph")
	assert.Equal(t, 0, mustGraph(t, s, "graph://b").Len())

	// graph://a is the graph span addressing resolves to, so its label is unambiguous
	n, err := s.Import(ctx, nil, strings.NewReader(`<http://example.org/s> <http://example.org/p> "o" <graph://a> .`))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, mustGraph(t, s, "graph://a").Len())
}

func TestStatsGaugesFollowMutations(t *testing.T) {
	ctx := context.Background()
	m := metrics.NewMetrics(prometheus.NewRegistry())
	s := New(quadstore.NewMemory(), Options{Metrics: m})
	require.NoError(t, s.BuildIndex(ctx))

	quads := func() float64 { return testutil.ToFloat64(m.StoreQuadsTotal.WithLabelValues(RolePersistent)) }
	entries := func() float64 { return testutil.ToFloat64(m.IndexEntries.WithLabelValues(RolePersistent)) }
	assert.Equal(t, 0.0, quads())
	assert.Equal(t, 0.0, entries())

	require.NoError(t, s.Insert(ctx, spanOf(t, "2005/P3Y"), triple("a", "p", "1")))
	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, float64(st.Quads), quads())
	assert.Equal(t, 1.0, entries())

	require.NoError(t, s.Insert(ctx, nil, triple("b", "p", "2")))
	assert.Equal(t, float64(st.Quads+1), quads())

	require.NoError(t, s.Remove(ctx, nil, triple("b", "p", "2")))
	assert.Equal(t, float64(st.Quads), quads())
}
