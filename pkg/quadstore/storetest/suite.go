// Package storetest holds a conformance suite shared by every quadstore.Store.
package storetest

import (
	"context"
	"errors"
	"testing"

	"github.com/nainya/timegraph/pkg/quadstore"
	"github.com/nainya/timegraph/pkg/rdf"
)

const ex = "http://example.org/"

// Run exercises the quadstore.Store contract against a fresh store returned by makeStore.
// The suite closes the store when done.
func Run(t *testing.T, makeStore func(t *testing.T) quadstore.Store) {
	t.Helper()

	s := makeStore(t)
	ctx := context.Background()

	alice := rdf.IRI(ex + "alice")
	knows := rdf.IRI(ex + "knows")
	name := rdf.IRI(ex + "name")
	bob := rdf.IRI(ex + "bob")

	// Base graph always exists
	if ok, err := s.ContainsGraph(ctx, rdf.DefaultGraph); err != nil || !ok {
		t.Fatalf("ContainsGraph(base): ok=%v err=%v", ok, err)
	}

	// Named graphs
	if err := s.CreateNamedGraph(ctx, "graph://2005"); err != nil {
		t.Fatalf("CreateNamedGraph: %v", err)
	}
	if err := s.CreateNamedGraph(ctx, "graph://2005"); err != nil {
		t.Fatalf("CreateNamedGraph twice: %v", err)
	}
	if ok, err := s.ContainsGraph(ctx, "graph://2005"); err != nil || !ok {
		t.Fatalf("ContainsGraph: ok=%v err=%v", ok, err)
	}
	if ok, err := s.ContainsGraph(ctx, "graph://missing"); err != nil || ok {
		t.Fatalf("ContainsGraph(missing): ok=%v err=%v", ok, err)
	}
	if _, err := s.Graph(ctx, "graph://missing"); !errors.Is(err, quadstore.ErrGraphNotFound) {
		t.Fatalf("Graph(missing): expected ErrGraphNotFound, got %v", err)
	}

	// Quads
	q1 := rdf.NewQuad(rdf.DefaultGraph, rdf.NewTriple(alice, knows, bob))
	q2 := rdf.NewQuad("graph://2005", rdf.NewTriple(alice, name, rdf.LangLiteral("Alice", "en")))
	q3 := rdf.NewQuad("graph://2008", rdf.NewTriple(bob, name, rdf.Integer(7)))
	for _, q := range []rdf.Quad{q1, q2, q3, q1} {
		if err := s.AddQuad(ctx, q); err != nil {
			t.Fatalf("AddQuad(%s): %v", q, err)
		}
	}
	if n, err := s.Len(ctx); err != nil || n != 3 {
		t.Fatalf("Len: n=%d err=%v (duplicates must collapse)", n, err)
	}
	if ok, _ := s.ContainsGraph(ctx, "graph://2008"); !ok {
		t.Fatalf("AddQuad must create missing graphs")
	}

	graphs, err := s.ListGraphs(ctx)
	if err != nil {
		t.Fatalf("ListGraphs: %v", err)
	}
	want := []string{"graph://2005", "graph://2008", rdf.DefaultGraph}
	if len(graphs) != len(want) {
		t.Fatalf("ListGraphs: got %v, want %v", graphs, want)
	}
	for i := range want {
		if graphs[i] != want[i] {
			t.Fatalf("ListGraphs: got %v, want %v", graphs, want)
		}
	}

	// Pattern matching
	count := func(p quadstore.Pattern) int {
		n := 0
		if err := s.FindQuads(ctx, p, func(rdf.Quad) bool { n++; return true }); err != nil {
			t.Fatalf("FindQuads(%+v): %v", p, err)
		}
		return n
	}
	if n := count(quadstore.Pattern{}); n != 3 {
		t.Fatalf("FindQuads(all): %d", n)
	}
	if n := count(quadstore.Pattern{P: name}); n != 2 {
		t.Fatalf("FindQuads(P=name): %d", n)
	}
	if n := count(quadstore.Pattern{Graph: "graph://2005", P: name}); n != 1 {
		t.Fatalf("FindQuads(G,P): %d", n)
	}
	if n := count(quadstore.Pattern{O: rdf.Integer(7)}); n != 1 {
		t.Fatalf("FindQuads(O=7): %d", n)
	}

	var got rdf.Quad
	if err := s.FindQuads(ctx, quadstore.Pattern{Graph: "graph://2005"}, func(q rdf.Quad) bool {
		got = q
		return false
	}); err != nil {
		t.Fatalf("FindQuads: %v", err)
	}
	if got != q2 {
		t.Fatalf("FindQuads round trip: got %v, want %v", got, q2)
	}

	// Callbacks may write to the store
	if err := s.FindQuads(ctx, quadstore.Pattern{Graph: "graph://2008"}, func(q rdf.Quad) bool {
		if err := s.AddTripleToGraph(ctx, "graph://copy", q.Triple); err != nil {
			t.Fatalf("re-entrant AddTripleToGraph: %v", err)
		}
		return true
	}); err != nil {
		t.Fatalf("FindQuads: %v", err)
	}

	// Graph view is a detached copy
	m, err := s.Graph(ctx, "graph://2005")
	if err != nil {
		t.Fatalf("Graph: %v", err)
	}
	if m.Len() != 1 || !m.Contains(q2.Triple) {
		t.Fatalf("Graph: unexpected contents %v", m.Triples())
	}

	// Removal
	if err := s.RemoveQuad(ctx, q2); err != nil {
		t.Fatalf("RemoveQuad: %v", err)
	}
	if err := s.RemoveQuad(ctx, q2); err != nil {
		t.Fatalf("RemoveQuad(absent) must be a no-op: %v", err)
	}
	if err := s.RemoveTripleFromGraph(ctx, rdf.DefaultGraph, q1.Triple); err != nil {
		t.Fatalf("RemoveTripleFromGraph: %v", err)
	}
	if n := count(quadstore.Pattern{}); n != 2 {
		t.Fatalf("after removals: %d quads", n)
	}
	if m.Len() != 1 {
		t.Fatalf("detached graph view changed after removal")
	}
	if ok, _ := s.ContainsGraph(ctx, "graph://2005"); !ok {
		t.Fatalf("emptied graph must still exist")
	}

	// Invalid quads
	bad := rdf.NewQuad(rdf.DefaultGraph, rdf.NewTriple(rdf.Literal("x"), knows, bob))
	if err := s.AddQuad(ctx, bad); !errors.Is(err, quadstore.ErrInvalidQuad) {
		t.Fatalf("AddQuad(literal subject): expected ErrInvalidQuad, got %v", err)
	}
	if err := s.AddQuad(ctx, rdf.NewQuad(rdf.DefaultGraph, rdf.Triple{S: alice})); !errors.Is(err, quadstore.ErrInvalidQuad) {
		t.Fatalf("AddQuad(partial): expected ErrInvalidQuad, got %v", err)
	}

	// Copy into a fresh memory store
	dst := quadstore.NewMemory()
	n, err := quadstore.Copy(ctx, s, dst)
	if err != nil || n != 2 {
		t.Fatalf("Copy: n=%d err=%v", n, err)
	}
	if ok, _ := dst.ContainsGraph(ctx, "graph://2005"); !ok {
		t.Fatalf("Copy must carry empty graphs")
	}

	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
