// ABOUTME: Predicates describing a named graph's validity span in the context graph
// ABOUTME: Describe renders a span as triples; Build reads them back

package timeindex

import (
	"github.com/nainya/timegraph/pkg/rdf"
	"github.com/nainya/timegraph/pkg/temporal"
)

// Namespace of the default description predicates
const Namespace = "http://timegraph.nainya.dev/ontology#"

// DefaultContextGraph holds the temporal descriptions of every named graph
const DefaultContextGraph = "urn:x-timegraph:context"

// Vocabulary names the context graph and the description predicates.
// Month and day values are 0-based integers.
type Vocabulary struct {
	ContextGraph   string
	BeginYear      string
	BeginMonth     string
	BeginDay       string
	DurationYears  string
	DurationMonths string
	DurationDays   string
}

// DefaultVocabulary returns the built-in predicate IRIs
func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		ContextGraph:   DefaultContextGraph,
		BeginYear:      Namespace + "beginYear",
		BeginMonth:     Namespace + "beginMonth",
		BeginDay:       Namespace + "beginDay",
		DurationYears:  Namespace + "durationYears",
		DurationMonths: Namespace + "durationMonths",
		DurationDays:   Namespace + "durationDays",
	}
}

// WithDefaults fills unset fields from DefaultVocabulary
func (v Vocabulary) WithDefaults() Vocabulary {
	d := DefaultVocabulary()
	fill := func(dst *string, def string) {
		if *dst == "" {
			*dst = def
		}
	}
	fill(&v.ContextGraph, d.ContextGraph)
	fill(&v.BeginYear, d.BeginYear)
	fill(&v.BeginMonth, d.BeginMonth)
	fill(&v.BeginDay, d.BeginDay)
	fill(&v.DurationYears, d.DurationYears)
	fill(&v.DurationMonths, d.DurationMonths)
	fill(&v.DurationDays, d.DurationDays)
	return v
}

func (v Vocabulary) predicates() []string {
	return []string{v.BeginYear, v.BeginMonth, v.BeginDay, v.DurationYears, v.DurationMonths, v.DurationDays}
}

// Describe returns the context triples declaring that graphID is valid over span.
// Unset fields produce no triple.
func (v Vocabulary) Describe(graphID string, span temporal.Span) []rdf.Triple {
	g := rdf.IRI(graphID)
	start := span.Start()
	out := []rdf.Triple{rdf.NewTriple(g, rdf.IRI(v.BeginYear), rdf.Integer(start.Year()))}

	if m, ok := start.Month(); ok {
		out = append(out, rdf.NewTriple(g, rdf.IRI(v.BeginMonth), rdf.Integer(m)))
	}
	if d, ok := start.Day(); ok {
		out = append(out, rdf.NewTriple(g, rdf.IRI(v.BeginDay), rdf.Integer(d)))
	}

	dur := span.Duration()
	if dur.Years != 0 {
		out = append(out, rdf.NewTriple(g, rdf.IRI(v.DurationYears), rdf.Integer(dur.Years)))
	}
	if dur.Months != 0 {
		out = append(out, rdf.NewTriple(g, rdf.IRI(v.DurationMonths), rdf.Integer(dur.Months)))
	}
	if dur.Days != 0 {
		out = append(out, rdf.NewTriple(g, rdf.IRI(v.DurationDays), rdf.Integer(dur.Days)))
	}
	return out
}
