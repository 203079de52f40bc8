// ABOUTME: Builds an Index from the context-description graph
// ABOUTME: One SELECT row per described graph; any bad description aborts the build

package timeindex

import (
	"context"
	"fmt"

	"github.com/nainya/timegraph/pkg/query"
	"github.com/nainya/timegraph/pkg/rdf"
	"github.com/nainya/timegraph/pkg/temporal"
)

var descriptionVars = []string{"y", "m", "d", "dy", "dm", "dd"}

// DescriptionQuery returns the SELECT extracting one row per described graph.
// Rows are anchored on the begin-year triple; graphs described without one
// are caught by Build separately.
func DescriptionQuery(v Vocabulary) query.Query {
	preds := v.predicates()
	b := query.Select(append([]string{"g"}, descriptionVars...)...).
		Distinct().
		Where(query.Pattern(query.V("g"), query.T(rdf.IRI(preds[0])), query.V(descriptionVars[0])))
	for i := 1; i < len(preds); i++ {
		b.Optional(query.Pattern(query.V("g"), query.T(rdf.IRI(preds[i])), query.V(descriptionVars[i])))
	}
	return b.Build()
}

// Build scans the context-description model and returns a fully populated
// index. On any corrupt description it returns ErrCorruptIndexData and no index.
func Build(ctx context.Context, model rdf.Model, v Vocabulary) (*Index, error) {
	v = v.WithDefaults()

	res, err := query.NewEngine(model).Execute(ctx, DescriptionQuery(v))
	if err != nil {
		return nil, fmt.Errorf("querying context graph: %w", err)
	}

	x := New()
	for _, row := range res.Results.Bindings {
		g := row["g"]
		if !g.IsIRI() {
			return nil, fmt.Errorf("%w: description subject %s is not an IRI", ErrCorruptIndexData, g)
		}
		if _, dup := x.SpanFor(g.Value); dup {
			return nil, fmt.Errorf("%w: conflicting descriptions for %s", ErrCorruptIndexData, g.Value)
		}

		span, err := spanFromRow(row)
		if err != nil {
			return nil, fmt.Errorf("%w: graph %s: %v", ErrCorruptIndexData, g.Value, err)
		}
		x.Add(g.Value, span)
	}

	if err := checkUnanchored(ctx, model, v, x); err != nil {
		return nil, err
	}
	return x, nil
}

// checkUnanchored rejects subjects carrying temporal fields but no begin year
func checkUnanchored(ctx context.Context, model rdf.Model, v Vocabulary, x *Index) error {
	var bad string
	for _, pred := range v.predicates()[1:] {
		if err := ctx.Err(); err != nil {
			return err
		}
		model.Find(rdf.Triple{P: rdf.IRI(pred)}, func(t rdf.Triple) bool {
			if _, ok := x.SpanFor(t.S.Value); ok && t.S.IsIRI() {
				return true
			}
			bad = t.S.String()
			return false
		})
		if bad != "" {
			return fmt.Errorf("%w: graph %s: missing begin year", ErrCorruptIndexData, bad)
		}
	}
	return nil
}

func spanFromRow(row query.Binding) (temporal.Span, error) {
	ints := make(map[string]*int, len(descriptionVars))
	for _, v := range descriptionVars {
		t, ok := row[v]
		if !ok {
			continue
		}
		n, err := t.Int()
		if err != nil {
			return temporal.Span{}, err
		}
		ints[v] = &n
	}

	if ints["y"] == nil {
		return temporal.Span{}, fmt.Errorf("missing begin year")
	}
	start, err := temporal.FromFields(*ints["y"], ints["m"], ints["d"])
	if err != nil {
		return temporal.Span{}, err
	}

	var dur temporal.Duration
	if p := ints["dy"]; p != nil {
		dur.Years = *p
	}
	if p := ints["dm"]; p != nil {
		dur.Months = *p
	}
	if p := ints["dd"]; p != nil {
		dur.Days = *p
	}
	return temporal.NewSpan(start, dur)
}
