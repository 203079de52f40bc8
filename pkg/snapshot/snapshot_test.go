package snapshot_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nainya/timegraph/internal/metrics"
	"github.com/nainya/timegraph/pkg/query"
	"github.com/nainya/timegraph/pkg/quadstore"
	"github.com/nainya/timegraph/pkg/rdf"
	"github.com/nainya/timegraph/pkg/snapshot"
	"github.com/nainya/timegraph/pkg/temporal"
	"github.com/nainya/timegraph/pkg/timegraph"
	"github.com/nainya/timegraph/pkg/timeindex"
)

const ex = "http://example.org/"

func fact(s, o string) rdf.Triple {
	return rdf.NewTriple(rdf.IRI(ex+s), rdf.IRI(ex+"value"), rdf.Literal(o))
}

func span(t *testing.T, s string) *temporal.Span {
	t.Helper()
	sp, err := temporal.ParseSpan(s)
	require.NoError(t, err)
	return &sp
}

func instant(t *testing.T, s string) temporal.Instant {
	t.Helper()
	i, err := temporal.ParseInstant(s)
	require.NoError(t, err)
	return i
}

// populated holds graph://2005/P1Y and graph://2005/P3Y plus one base fact
func populated(t *testing.T) *timegraph.Store {
	t.Helper()
	ctx := context.Background()
	s := timegraph.New(quadstore.NewMemory(), timegraph.Options{})
	require.NoError(t, s.BuildIndex(ctx))
	require.NoError(t, s.Insert(ctx, nil, fact("base", "always")))
	require.NoError(t, s.Insert(ctx, span(t, "2005/P1Y"), fact("a", "2005 only")))
	require.NoError(t, s.Insert(ctx, span(t, "2005/P3Y"), fact("b", "2005 to 2008")))
	return s
}

func TestMaterializeIsUnionOfRelevantGraphs(t *testing.T) {
	ctx := context.Background()
	s := populated(t)
	m := snapshot.NewMaterializer(snapshot.Options{})

	tests := []struct {
		at     string
		graphs []string
		facts  []rdf.Triple
	}{
		{"2004", []string{}, []rdf.Triple{fact("base", "always")}},
		{"2005-06-01", []string{"graph://2005/P1Y", "graph://2005/P3Y"},
			[]rdf.Triple{fact("base", "always"), fact("a", "2005 only"), fact("b", "2005 to 2008")}},
		{"2006", []string{"graph://2005/P3Y"},
			[]rdf.Triple{fact("base", "always"), fact("b", "2005 to 2008")}},
		{"2008", []string{}, []rdf.Triple{fact("base", "always")}},
	}

	for _, tt := range tests {
		t.Run(tt.at, func(t *testing.T) {
			snap, err := m.Materialize(ctx, s, snapshot.At(instant(t, tt.at)))
			require.NoError(t, err)
			assert.ElementsMatch(t, tt.graphs, snap.Graphs)

			want := rdf.NewGraph()
			for _, f := range tt.facts {
				want.Add(f)
			}
			assert.True(t, rdf.Equal(want, snap.Model()), "got %v", snap.Model().Triples())
			assert.NotEmpty(t, snap.ID)
			assert.Empty(t, snap.Parent)
		})
	}
}

func TestMaterializeOverSpan(t *testing.T) {
	s := populated(t)
	snap, err := snapshot.NewMaterializer(snapshot.Options{}).
		Materialize(context.Background(), s, snapshot.Over(*span(t, "2007/P5Y")))
	require.NoError(t, err)
	assert.Equal(t, []string{"graph://2005/P3Y"}, snap.Graphs)
	assert.Equal(t, 2, snap.Len())
	assert.Equal(t, "over 2007/P5Y", snap.Selector.String())
}

func TestMaterializeWithoutIndex(t *testing.T) {
	s := timegraph.New(quadstore.NewMemory(), timegraph.Options{})
	_, err := snapshot.NewMaterializer(snapshot.Options{}).
		Materialize(context.Background(), s, snapshot.At(temporal.Now()))
	assert.ErrorIs(t, err, snapshot.ErrNoTimeIndexSet)
	assert.ErrorIs(t, err, timeindex.ErrNoTimeIndexSet)
}

type staticSource struct {
	index   *timeindex.Index
	backend quadstore.Store
}

func (s staticSource) Index() *timeindex.Index { return s.index }
func (s staticSource) Backend() quadstore.Store { return s.backend }

func incoherentSource(t *testing.T) staticSource {
	ctx := context.Background()
	backend := quadstore.NewMemory()
	require.NoError(t, backend.CreateNamedGraph(ctx, "graph://real"))
	require.NoError(t, backend.AddTripleToGraph(ctx, "graph://real", fact("r", "real")))

	x := timeindex.New()
	x.Add("graph://real", *span(t, "2005"))
	x.Add("graph://ghost", *span(t, "2005"))
	return staticSource{index: x, backend: backend}
}

func TestIncoherenceFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	met := metrics.NewMetrics(reg)
	src := incoherentSource(t)

	_, err := snapshot.NewMaterializer(snapshot.Options{Metrics: met}).
		Materialize(context.Background(), src, snapshot.At(instant(t, "2005")))
	require.ErrorIs(t, err, snapshot.ErrIncoherence)
	assert.Contains(t, err.Error(), "graph://ghost")
	assert.Equal(t, 2, src.index.Len(), "index left untouched")
	assert.Equal(t, 1.0, testutil.ToFloat64(met.IncoherenceTotal))
}

func TestDropStaleRepairsIndex(t *testing.T) {
	src := incoherentSource(t)

	snap, err := snapshot.NewMaterializer(snapshot.Options{DropStale: true}).
		Materialize(context.Background(), src, snapshot.At(instant(t, "2005")))
	require.NoError(t, err)
	assert.Equal(t, []string{"graph://real"}, snap.Graphs)
	assert.True(t, snap.Model().Contains(fact("r", "real")))
	_, ok := src.index.SpanFor("graph://ghost")
	assert.False(t, ok)
}

func TestSnapshotQueries(t *testing.T) {
	ctx := context.Background()
	snap, err := snapshot.NewMaterializer(snapshot.Options{}).
		Materialize(ctx, populated(t), snapshot.At(instant(t, "2006")))
	require.NoError(t, err)

	res, err := snap.Select(ctx, `SELECT ?s WHERE { ?s <http://example.org/value> ?v }`)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Len())

	derived, err := snap.ExecuteConstruct(ctx,
		`CONSTRUCT { ?s <http://example.org/seen> "yes" } WHERE { ?s <http://example.org/value> ?v }`)
	require.NoError(t, err)
	assert.Equal(t, snap.ID, derived.Parent)
	assert.NotEqual(t, snap.ID, derived.ID)
	assert.Empty(t, derived.Graphs)
	assert.Equal(t, 2, derived.Len())

	_, err = snap.ExecuteConstruct(ctx, `SELECT ?s WHERE { ?s ?p ?o }`)
	assert.ErrorIs(t, err, query.ErrSyntax)
}

func TestEncode(t *testing.T) {
	ctx := context.Background()
	snap, err := snapshot.NewMaterializer(snapshot.Options{}).
		Materialize(ctx, populated(t), snapshot.At(instant(t, "2006")))
	require.NoError(t, err)

	var nt bytes.Buffer
	require.NoError(t, snap.Encode(&nt, snapshot.FormatNTriples))
	assert.Equal(t, 2, strings.Count(nt.String(), "\n"))

	var nq bytes.Buffer
	require.NoError(t, snap.Encode(&nq, snapshot.FormatNQuads))
	assert.Equal(t, 2, strings.Count(nq.String(), "<"+snap.IRI()+">"))

	dec := rdf.NewDecoder(&nt)
	q, err := dec.Decode()
	require.NoError(t, err)
	assert.True(t, snap.Model().Contains(q.Triple))

	assert.ErrorIs(t, snap.Encode(&bytes.Buffer{}, "turtle"), query.ErrUnsupportedQueryFormat)
}
