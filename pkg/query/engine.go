// ABOUTME: Query engine evaluating SELECT and CONSTRUCT against an rdf.Model
// ABOUTME: Nested-loop join over triple patterns with left-join OPTIONAL groups

package query

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/nainya/timegraph/pkg/rdf"
)

// Engine executes queries against one read-only model
type Engine struct {
	model rdf.Model
}

// NewEngine creates a new query engine over m
func NewEngine(m rdf.Model) *Engine {
	return &Engine{model: m}
}

// Execute runs a query and returns results
func (e *Engine) Execute(ctx context.Context, q Query) (*Result, error) {
	switch q.Type {
	case QuerySelect:
		res, err := e.executeSelect(ctx, q)
		if err != nil {
			return nil, err
		}
		return &Result{Type: QuerySelect, Results: res}, nil
	case QueryConstruct:
		g, err := e.executeConstruct(ctx, q)
		if err != nil {
			return nil, err
		}
		return &Result{Type: QueryConstruct, Graph: g}, nil
	default:
		return nil, fmt.Errorf("unsupported query type: %d", q.Type)
	}
}

// Select parses and runs a SELECT query
func (e *Engine) Select(ctx context.Context, src string) (*Results, error) {
	q, err := Parse(src)
	if err != nil {
		return nil, err
	}
	if q.Type != QuerySelect {
		return nil, fmt.Errorf("%w: expected SELECT, got %s", ErrSyntax, q.Type)
	}
	return e.executeSelect(ctx, q)
}

// Construct parses and runs a CONSTRUCT query
func (e *Engine) Construct(ctx context.Context, src string) (*rdf.Graph, error) {
	q, err := Parse(src)
	if err != nil {
		return nil, err
	}
	if q.Type != QueryConstruct {
		return nil, fmt.Errorf("%w: expected CONSTRUCT, got %s", ErrSyntax, q.Type)
	}
	return e.executeConstruct(ctx, q)
}

func (e *Engine) executeSelect(ctx context.Context, q Query) (*Results, error) {
	solutions, err := e.evalGroup(ctx, q.Where, []Binding{{}})
	if err != nil {
		return nil, err
	}

	vars := q.Vars
	if len(vars) == 0 {
		vars = groupVars(q.Where)
	}

	res := &Results{Vars: vars}
	seen := make(map[string]bool)
	for _, sol := range solutions {
		row := make(Binding, len(vars))
		for _, v := range vars {
			if t, ok := sol[v]; ok {
				row[v] = t
			}
		}
		if q.Distinct {
			key := rowKey(vars, row)
			if seen[key] {
				continue
			}
			seen[key] = true
		}
		res.Bindings = append(res.Bindings, row)
		if q.Limit > 0 && len(res.Bindings) >= q.Limit {
			break
		}
	}
	return res, nil
}

func (e *Engine) executeConstruct(ctx context.Context, q Query) (*rdf.Graph, error) {
	solutions, err := e.evalGroup(ctx, q.Where, []Binding{{}})
	if err != nil {
		return nil, err
	}
	if q.Limit > 0 && len(solutions) > q.Limit {
		solutions = solutions[:q.Limit]
	}

	out := rdf.NewGraph()
	for i, sol := range solutions {
		for _, tp := range q.Template {
			t, ok := instantiate(tp, sol, i)
			if ok {
				out.Add(t)
			}
		}
	}
	return out, nil
}

// evalGroup joins the group's patterns onto the incoming solutions
func (e *Engine) evalGroup(ctx context.Context, g Group, in []Binding) ([]Binding, error) {
	solutions := in
	for _, tp := range g.Patterns {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var next []Binding
		for _, sol := range solutions {
			e.match(tp, sol, func(b Binding) {
				next = append(next, b)
			})
		}
		solutions = next
		if len(solutions) == 0 {
			return nil, nil
		}
	}

	for _, opt := range g.Optionals {
		var next []Binding
		for _, sol := range solutions {
			ext, err := e.evalGroup(ctx, opt, []Binding{sol})
			if err != nil {
				return nil, err
			}
			if len(ext) == 0 {
				next = append(next, sol)
				continue
			}
			next = append(next, ext...)
		}
		solutions = next
	}
	return solutions, nil
}

func (e *Engine) match(tp TriplePattern, sol Binding, emit func(Binding)) {
	pattern := rdf.Triple{
		S: resolve(tp.S, sol),
		P: resolve(tp.P, sol),
		O: resolve(tp.O, sol),
	}
	e.model.Find(pattern, func(t rdf.Triple) bool {
		b := sol
		var ok bool
		if b, ok = bind(b, tp.S, t.S); !ok {
			return true
		}
		if b, ok = bind(b, tp.P, t.P); !ok {
			return true
		}
		if b, ok = bind(b, tp.O, t.O); !ok {
			return true
		}
		emit(b)
		return true
	})
}

func resolve(n Node, sol Binding) rdf.Term {
	if !n.IsVar() {
		return n.Term
	}
	return sol[n.Var]
}

// bind extends sol with n=t, copying on first write; it fails on a conflicting binding
func bind(sol Binding, n Node, t rdf.Term) (Binding, bool) {
	if !n.IsVar() {
		return sol, true
	}
	if cur, ok := sol[n.Var]; ok {
		return sol, cur == t
	}
	out := make(Binding, len(sol)+1)
	for k, v := range sol {
		out[k] = v
	}
	out[n.Var] = t
	return out, true
}

func instantiate(tp TriplePattern, sol Binding, row int) (rdf.Triple, bool) {
	var terms [3]rdf.Term
	for i, n := range []Node{tp.S, tp.P, tp.O} {
		switch {
		case n.IsVar():
			t, ok := sol[n.Var]
			if !ok {
				return rdf.Triple{}, false
			}
			terms[i] = t
		case n.Term.Kind == rdf.KindBlank:
			// fresh blank node per solution
			terms[i] = rdf.Blank(n.Term.Value + "_" + strconv.Itoa(row))
		default:
			terms[i] = n.Term
		}
	}
	if terms[0].IsLiteral() || !terms[1].IsIRI() {
		return rdf.Triple{}, false
	}
	return rdf.NewTriple(terms[0], terms[1], terms[2]), true
}

// groupVars lists the named variables of a group in order of first appearance
func groupVars(g Group) []string {
	var vars []string
	var walk func(Group)
	walk = func(g Group) {
		for _, tp := range g.Patterns {
			for _, n := range []Node{tp.S, tp.P, tp.O} {
				if n.IsVar() && !strings.HasPrefix(n.Var, "_:") && !slices.Contains(vars, n.Var) {
					vars = append(vars, n.Var)
				}
			}
		}
		for _, o := range g.Optionals {
			walk(o)
		}
	}
	walk(g)
	return vars
}

func rowKey(vars []string, row Binding) string {
	var b strings.Builder
	for _, v := range vars {
		b.WriteString(row[v].String())
		b.WriteByte(0)
	}
	return b.String()
}
