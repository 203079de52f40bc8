// Package changefeed carries insertions and removals from the authoritative
// store to its listeners, synchronously and in registration order.
package changefeed

import (
	"errors"
	"fmt"

	"github.com/nainya/timegraph/pkg/rdf"
	"github.com/nainya/timegraph/pkg/temporal"
)

var (
	// ErrPropagation indicates that one or more listeners failed to apply an event
	ErrPropagation = errors.New("changefeed: propagation failed")

	// ErrInvalidEvent indicates an event with zero or several addressing modes
	ErrInvalidEvent = errors.New("changefeed: invalid event")
)

// Event is either an Insertion or a Removal
type Event interface {
	// Kind returns "insert" or "remove"
	Kind() string
	// Validate checks the addressing invariants
	Validate() error
	event()
}

// Insertion adds Fact to the graph for GraphSpan, or to the base graph when nil
type Insertion struct {
	GraphSpan *temporal.Span
	Fact      rdf.Triple
}

func (Insertion) event() {}

// Kind implements Event
func (Insertion) Kind() string { return "insert" }

// Validate implements Event
func (e Insertion) Validate() error {
	if !e.Fact.IsGround() {
		return fmt.Errorf("%w: insertion of a partial triple", ErrInvalidEvent)
	}
	return nil
}

// Addressing says how a Removal locates its target
type Addressing int

const (
	AddressBase Addressing = iota
	AddressSpan
	AddressQuad
)

func (a Addressing) String() string {
	switch a {
	case AddressSpan:
		return "span"
	case AddressQuad:
		return "quad"
	default:
		return "base"
	}
}

// Removal deletes a fact addressed by exactly one of: Quad, GraphSpan+Fact,
// or Fact alone (base graph). Build it with NewQuadRemoval, NewSpanRemoval
// or NewBaseRemoval.
type Removal struct {
	GraphSpan *temporal.Span
	Fact      rdf.Triple
	Quad      *rdf.Quad
}

func (Removal) event() {}

// Kind implements Event
func (Removal) Kind() string { return "remove" }

// NewQuadRemoval addresses a fully qualified quad
func NewQuadRemoval(q rdf.Quad) Removal {
	return Removal{Quad: &q}
}

// NewSpanRemoval addresses the graph registered for span
func NewSpanRemoval(span temporal.Span, fact rdf.Triple) Removal {
	return Removal{GraphSpan: &span, Fact: fact}
}

// NewBaseRemoval addresses the base graph
func NewBaseRemoval(fact rdf.Triple) Removal {
	return Removal{Fact: fact}
}

// Addressing returns the addressing mode in use
func (e Removal) Addressing() Addressing {
	switch {
	case e.Quad != nil:
		return AddressQuad
	case e.GraphSpan != nil:
		return AddressSpan
	default:
		return AddressBase
	}
}

// Validate implements Event
func (e Removal) Validate() error {
	if e.Quad != nil {
		if e.GraphSpan != nil || !e.Fact.S.IsZero() || !e.Fact.P.IsZero() || !e.Fact.O.IsZero() {
			return fmt.Errorf("%w: removal mixes quad and span/fact addressing", ErrInvalidEvent)
		}
		if !e.Quad.IsGround() || e.Quad.Graph == "" {
			return fmt.Errorf("%w: removal of a partial quad", ErrInvalidEvent)
		}
		return nil
	}
	if !e.Fact.IsGround() {
		return fmt.Errorf("%w: removal of a partial triple", ErrInvalidEvent)
	}
	return nil
}

// Target returns the triple being removed regardless of addressing
func (e Removal) Target() rdf.Triple {
	if e.Quad != nil {
		return e.Quad.Triple
	}
	return e.Fact
}

// Describe renders an event for logs
func Describe(ev Event) string {
	switch e := ev.(type) {
	case Insertion:
		return fmt.Sprintf("insert %s into %s", e.Fact, spanLabel(e.GraphSpan))
	case Removal:
		switch e.Addressing() {
		case AddressQuad:
			return fmt.Sprintf("remove %s", e.Quad)
		default:
			return fmt.Sprintf("remove %s from %s", e.Fact, spanLabel(e.GraphSpan))
		}
	default:
		return "unknown event"
	}
}

func spanLabel(s *temporal.Span) string {
	if s == nil {
		return "base"
	}
	return s.String()
}
