// ABOUTME: Query model for the SPARQL subset: patterns, groups, results
// ABOUTME: Queries are built by the parser or programmatically via Builder

package query

import (
	"github.com/nainya/timegraph/pkg/rdf"
)

// QueryType defines the form of a query
type QueryType int

const (
	QuerySelect QueryType = iota
	QueryConstruct
)

// String returns the SPARQL keyword for the query form
func (t QueryType) String() string {
	if t == QueryConstruct {
		return "CONSTRUCT"
	}
	return "SELECT"
}

// Node is one position of a triple pattern: a variable or a fixed term
type Node struct {
	Var  string
	Term rdf.Term
}

// V creates a variable node (name without the leading '?')
func V(name string) Node { return Node{Var: name} }

// T creates a fixed-term node
func T(term rdf.Term) Node { return Node{Term: term} }

// IsVar reports whether the node is a variable
func (n Node) IsVar() bool { return n.Var != "" }

// TriplePattern is a triple whose positions may be variables
type TriplePattern struct {
	S Node
	P Node
	O Node
}

// Pattern creates a triple pattern
func Pattern(s, p, o Node) TriplePattern {
	return TriplePattern{S: s, P: p, O: o}
}

// Group is a basic graph pattern with nested OPTIONAL groups
type Group struct {
	Patterns  []TriplePattern
	Optionals []Group
}

// Query is a parsed or built query
type Query struct {
	Type     QueryType
	Vars     []string // projected variables; empty means all (SELECT *)
	Distinct bool
	Template []TriplePattern // CONSTRUCT only
	Where    Group
	Limit    int // 0 means no limit
}

// Binding maps variable names to terms for one solution
type Binding map[string]rdf.Term

// Results is the solution sequence of a SELECT query
type Results struct {
	Vars     []string
	Bindings []Binding
}

// Len returns the number of solutions
func (r *Results) Len() int {
	return len(r.Bindings)
}

// Result is the outcome of Execute: Results for SELECT, Graph for CONSTRUCT
type Result struct {
	Type    QueryType
	Results *Results
	Graph   *rdf.Graph
}

// Builder constructs queries programmatically
type Builder struct {
	q       Query
	current *Group
}

// Select starts a SELECT query over the given variables
func Select(vars ...string) *Builder {
	b := &Builder{q: Query{Type: QuerySelect, Vars: vars}}
	b.current = &b.q.Where
	return b
}

// Construct starts a CONSTRUCT query with the given template
func Construct(template ...TriplePattern) *Builder {
	b := &Builder{q: Query{Type: QueryConstruct, Template: template}}
	b.current = &b.q.Where
	return b
}

// Distinct removes duplicate solutions
func (b *Builder) Distinct() *Builder {
	b.q.Distinct = true
	return b
}

// Where appends required patterns
func (b *Builder) Where(patterns ...TriplePattern) *Builder {
	b.current.Patterns = append(b.current.Patterns, patterns...)
	return b
}

// Optional appends an OPTIONAL group
func (b *Builder) Optional(patterns ...TriplePattern) *Builder {
	b.current.Optionals = append(b.current.Optionals, Group{Patterns: patterns})
	return b
}

// Limit caps the number of solutions
func (b *Builder) Limit(n int) *Builder {
	b.q.Limit = n
	return b
}

// Build returns the constructed query
func (b *Builder) Build() Query {
	return b.q
}
