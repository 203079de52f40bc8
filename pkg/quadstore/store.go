// Package quadstore defines the quad storage contract consumed by the
// temporal layer, with an in-memory and a SQLite implementation.
package quadstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/nainya/timegraph/pkg/rdf"
)

var (
	ErrGraphNotFound = errors.New("quadstore: graph not found")
	ErrClosed        = errors.New("quadstore: store closed")
	ErrInvalidQuad   = errors.New("quadstore: invalid quad")
)

// Pattern selects quads. Empty Graph and zero terms match anything.
type Pattern struct {
	Graph string
	S     rdf.Term
	P     rdf.Term
	O     rdf.Term
}

// Triple returns the triple part of the pattern
func (p Pattern) Triple() rdf.Triple {
	return rdf.NewTriple(p.S, p.P, p.O)
}

// Matches reports whether q satisfies the pattern
func (p Pattern) Matches(q rdf.Quad) bool {
	return (p.Graph == "" || p.Graph == q.Graph) && q.Triple.Matches(p.Triple())
}

// Store is a set of named graphs. The base graph (rdf.DefaultGraph) always exists.
// Adding to a graph that does not exist yet creates it.
type Store interface {
	CreateNamedGraph(ctx context.Context, id string) error
	ContainsGraph(ctx context.Context, id string) (bool, error)
	// ListGraphs returns every graph id, sorted, including the base graph
	ListGraphs(ctx context.Context) ([]string, error)

	// FindQuads calls fn for each matching quad until fn returns false.
	// fn may call back into the store.
	FindQuads(ctx context.Context, p Pattern, fn func(rdf.Quad) bool) error

	AddQuad(ctx context.Context, q rdf.Quad) error
	RemoveQuad(ctx context.Context, q rdf.Quad) error
	AddTripleToGraph(ctx context.Context, graph string, t rdf.Triple) error
	RemoveTripleFromGraph(ctx context.Context, graph string, t rdf.Triple) error

	// Graph returns a detached copy of one graph as a read-only model
	Graph(ctx context.Context, id string) (rdf.Model, error)

	// Len returns the total number of quads
	Len(ctx context.Context) (int, error)
	Close() error
}

func validate(q rdf.Quad) error {
	switch {
	case q.Graph == "":
		return fmt.Errorf("%w: empty graph id", ErrInvalidQuad)
	case !q.IsGround():
		return fmt.Errorf("%w: quad has unset terms", ErrInvalidQuad)
	case q.S.IsLiteral() || !q.P.IsIRI():
		return fmt.Errorf("%w: literal subject or non-IRI predicate", ErrInvalidQuad)
	}
	return nil
}

// Copy enumerates every quad of src into dst, creating empty graphs too
func Copy(ctx context.Context, src, dst Store) (int, error) {
	graphs, err := src.ListGraphs(ctx)
	if err != nil {
		return 0, err
	}
	for _, g := range graphs {
		if err := dst.CreateNamedGraph(ctx, g); err != nil {
			return 0, err
		}
	}

	var quads []rdf.Quad
	if err := src.FindQuads(ctx, Pattern{}, func(q rdf.Quad) bool {
		quads = append(quads, q)
		return true
	}); err != nil {
		return 0, err
	}
	for _, q := range quads {
		if err := dst.AddQuad(ctx, q); err != nil {
			return 0, err
		}
	}
	return len(quads), nil
}
