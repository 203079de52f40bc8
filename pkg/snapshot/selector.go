package snapshot

import (
	"github.com/nainya/timegraph/pkg/temporal"
	"github.com/nainya/timegraph/pkg/timeindex"
)

// Selector picks the named graphs that take part in a snapshot.
// The only implementations are At and Over.
type Selector interface {
	String() string
	Kind() string
	selectGraphs(x *timeindex.Index) []string
}

type atSelector struct{ instant temporal.Instant }

// At selects graphs whose span contains i
func At(i temporal.Instant) Selector { return atSelector{instant: i} }

func (s atSelector) String() string { return "at " + s.instant.String() }
func (atSelector) Kind() string { return "instant" }

func (s atSelector) selectGraphs(x *timeindex.Index) []string {
	return x.GraphsForInstant(s.instant)
}

type overSelector struct{ span temporal.Span }

// Over selects graphs whose span overlaps s
func Over(s temporal.Span) Selector { return overSelector{span: s} }

func (s overSelector) String() string { return "over " + s.span.String() }
func (overSelector) Kind() string { return "span" }

func (s overSelector) selectGraphs(x *timeindex.Index) []string {
	return x.GraphsForSpan(s.span)
}
