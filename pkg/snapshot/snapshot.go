package snapshot

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/nainya/timegraph/pkg/query"
	"github.com/nainya/timegraph/pkg/rdf"
)

// Output formats accepted by Encode
const (
	FormatNTriples = "ntriples"
	FormatNQuads   = "nquads"
)

// Snapshot is an immutable materialized view
type Snapshot struct {
	ID string
	// Parent is the snapshot a CONSTRUCT result was derived from
	Parent    string
	Selector  Selector
	Graphs    []string
	CreatedAt time.Time

	model *rdf.Graph
}

// Model returns the merged triples. Callers must not modify it.
func (s *Snapshot) Model() rdf.Model { return s.model }

// Len returns the number of merged triples
func (s *Snapshot) Len() int { return s.model.Len() }

// IRI names the snapshot as a graph
func (s *Snapshot) IRI() string { return "urn:uuid:" + s.ID }

// Select runs a SELECT query against the merged model
func (s *Snapshot) Select(ctx context.Context, q string) (*query.Results, error) {
	return query.NewEngine(s.model).Select(ctx, q)
}

// ExecuteConstruct runs a CONSTRUCT query and wraps its output as a derived snapshot
func (s *Snapshot) ExecuteConstruct(ctx context.Context, q string) (*Snapshot, error) {
	g, err := query.NewEngine(s.model).Construct(ctx, q)
	if err != nil {
		return nil, err
	}
	return &Snapshot{
		ID:        uuid.NewString(),
		Parent:    s.ID,
		Selector:  s.Selector,
		CreatedAt: time.Now().UTC(),
		model:     g,
	}, nil
}

// Encode writes the snapshot as N-Triples, or as N-Quads in the graph named by IRI
func (s *Snapshot) Encode(w io.Writer, format string) error {
	enc := rdf.NewEncoder(w)
	var write func(rdf.Triple) error
	switch format {
	case FormatNTriples:
		write = enc.WriteTriple
	case FormatNQuads:
		graph := s.IRI()
		write = func(t rdf.Triple) error { return enc.WriteQuad(rdf.NewQuad(graph, t)) }
	default:
		return fmt.Errorf("%w: %q", query.ErrUnsupportedQueryFormat, format)
	}

	for _, t := range s.model.Triples() {
		if err := write(t); err != nil {
			return err
		}
	}
	return enc.Flush()
}
