package timegraph

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/nainya/timegraph/pkg/rdf"
	"github.com/nainya/timegraph/pkg/temporal"
)

// Import reads N-Triples or N-Quads from r and inserts every statement.
// With a span, all statements go to that span's graph. Without one, a
// statement's own graph must be the base graph or the only graph registered
// with its span; insertions address graphs by span, so a label whose span is
// shared fails with ErrAmbiguousGraph.
// Each statement is an ordinary insertion and is propagated to listeners.
func (s *Store) Import(ctx context.Context, span *temporal.Span, r io.Reader) (int, error) {
	if s.readOnly {
		return 0, ErrReadOnly
	}

	dec := rdf.NewDecoder(r)
	n := 0
	for {
		q, err := dec.Decode()
		if errors.Is(err, io.EOF) {
			return n, nil
		}
		if err != nil {
			return n, err
		}

		target := span
		if target == nil && q.Graph != rdf.DefaultGraph {
			if q.Graph == s.vocab.ContextGraph {
				return n, fmt.Errorf("%w: the context graph is maintained by the store", ErrUnknownGraph)
			}
			if s.Index() == nil {
				if err := s.BuildIndex(ctx); err != nil {
					return n, err
				}
			}
			sp, err := s.labelSpan(q.Graph)
			if err != nil {
				return n, err
			}
			target = &sp
		}

		if err := s.Insert(ctx, target, q.Triple); err != nil {
			return n, err
		}
		n++
	}
}

// labelSpan resolves a graph label to a span that addresses exactly that graph
func (s *Store) labelSpan(graphID string) (temporal.Span, error) {
	sp, err := s.SpanOf(graphID)
	if err != nil {
		return temporal.Span{}, err
	}
	if id, ok := s.Index().GraphForSpan(sp); ok && id != graphID {
		return temporal.Span{}, fmt.Errorf("%w: %s shares span %s with %s", ErrAmbiguousGraph, graphID, sp, id)
	}
	return sp, nil
}
