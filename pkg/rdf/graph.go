// ABOUTME: Triples, quads and an in-memory set-of-triples graph
// ABOUTME: Model is the read-only view handed to queries and snapshot consumers

package rdf

import (
	"slices"
)

// Triple is a subject/predicate/object statement
type Triple struct {
	S Term
	P Term
	O Term
}

// NewTriple creates a triple
func NewTriple(s, p, o Term) Triple {
	return Triple{S: s, P: p, O: o}
}

// Matches reports whether the triple satisfies the pattern (zero terms match anything)
func (t Triple) Matches(p Triple) bool {
	return t.S.Matches(p.S) && t.P.Matches(p.P) && t.O.Matches(p.O)
}

// IsGround reports whether all three positions are set
func (t Triple) IsGround() bool {
	return !t.S.IsZero() && !t.P.IsZero() && !t.O.IsZero()
}

// String returns the N-Triples line without the trailing newline
func (t Triple) String() string {
	return t.S.String() + " " + t.P.String() + " " + t.O.String() + " ."
}

// Compare orders triples by subject, predicate, object
func (t Triple) Compare(o Triple) int {
	if c := t.S.Compare(o.S); c != 0 {
		return c
	}
	if c := t.P.Compare(o.P); c != 0 {
		return c
	}
	return t.O.Compare(o.O)
}

// Quad is a triple placed in a named graph
type Quad struct {
	Graph string
	Triple
}

// NewQuad creates a quad
func NewQuad(graph string, t Triple) Quad {
	return Quad{Graph: graph, Triple: t}
}

// String returns the N-Quads line without the trailing newline.
// Quads in the default graph are written as plain triples.
func (q Quad) String() string {
	if q.Graph == "" || q.Graph == DefaultGraph {
		return q.Triple.String()
	}
	return q.S.String() + " " + q.P.String() + " " + q.O.String() + " <" + q.Graph + "> ."
}

// Model is a read-only view over a set of triples
type Model interface {
	// Find calls fn for each triple matching the pattern until fn returns false
	Find(pattern Triple, fn func(Triple) bool)
	Contains(t Triple) bool
	Len() int
	// Triples returns every triple in a deterministic order
	Triples() []Triple
}

// Graph is a mutable set of triples. It is not safe for concurrent use.
// Subject and predicate indexes keep Find proportional to the matches of
// its most selective bound position.
type Graph struct {
	triples     map[Triple]struct{}
	bySubject   map[Term]map[Triple]struct{}
	byPredicate map[Term]map[Triple]struct{}
}

// NewGraph creates an empty graph
func NewGraph() *Graph {
	return &Graph{
		triples:     make(map[Triple]struct{}),
		bySubject:   make(map[Term]map[Triple]struct{}),
		byPredicate: make(map[Term]map[Triple]struct{}),
	}
}

// Add inserts a triple, returning false if it was already present
func (g *Graph) Add(t Triple) bool {
	if _, ok := g.triples[t]; ok {
		return false
	}
	g.triples[t] = struct{}{}
	addTo(g.bySubject, t.S, t)
	addTo(g.byPredicate, t.P, t)
	return true
}

// Remove deletes a triple, returning false if it was absent
func (g *Graph) Remove(t Triple) bool {
	if _, ok := g.triples[t]; !ok {
		return false
	}
	delete(g.triples, t)
	removeFrom(g.bySubject, t.S, t)
	removeFrom(g.byPredicate, t.P, t)
	return true
}

func addTo(idx map[Term]map[Triple]struct{}, k Term, t Triple) {
	set, ok := idx[k]
	if !ok {
		set = make(map[Triple]struct{})
		idx[k] = set
	}
	set[t] = struct{}{}
}

func removeFrom(idx map[Term]map[Triple]struct{}, k Term, t Triple) {
	set := idx[k]
	delete(set, t)
	if len(set) == 0 {
		delete(idx, k)
	}
}

// Contains reports membership
func (g *Graph) Contains(t Triple) bool {
	_, ok := g.triples[t]
	return ok
}

// Len returns the number of triples
func (g *Graph) Len() int {
	return len(g.triples)
}

// Find implements Model. Matches are visited in Triple.Compare order.
func (g *Graph) Find(pattern Triple, fn func(Triple) bool) {
	if pattern.IsGround() {
		if g.Contains(pattern) {
			fn(pattern)
		}
		return
	}

	candidates := g.triples
	if !pattern.S.IsZero() {
		candidates = g.bySubject[pattern.S]
	}
	if !pattern.P.IsZero() {
		if set := g.byPredicate[pattern.P]; len(set) < len(candidates) || pattern.S.IsZero() {
			candidates = set
		}
	}

	matches := make([]Triple, 0, len(candidates))
	for t := range candidates {
		if t.Matches(pattern) {
			matches = append(matches, t)
		}
	}
	slices.SortFunc(matches, Triple.Compare)
	for _, t := range matches {
		if !fn(t) {
			return
		}
	}
}

// Triples implements Model
func (g *Graph) Triples() []Triple {
	out := make([]Triple, 0, len(g.triples))
	for t := range g.triples {
		out = append(out, t)
	}
	slices.SortFunc(out, Triple.Compare)
	return out
}

// AddAll merges every triple of m into g (set union)
func (g *Graph) AddAll(m Model) {
	m.Find(Triple{}, func(t Triple) bool {
		g.Add(t)
		return true
	})
}

// Clone returns an independent copy
func (g *Graph) Clone() *Graph {
	c := NewGraph()
	for t := range g.triples {
		c.Add(t)
	}
	return c
}

// Equal reports whether two models hold the same triples
func Equal(a, b Model) bool {
	if a.Len() != b.Len() {
		return false
	}
	equal := true
	a.Find(Triple{}, func(t Triple) bool {
		equal = b.Contains(t)
		return equal
	})
	return equal
}
