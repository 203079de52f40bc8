// ABOUTME: RDF terms (IRIs, blank nodes, literals) and their N-Triples form
// ABOUTME: The zero Term is a wildcard when used inside a pattern

package rdf

import (
	"fmt"
	"strconv"
	"strings"
)

// Well-known IRIs
const (
	XSDString  = "http://www.w3.org/2001/XMLSchema#string"
	XSDInteger = "http://www.w3.org/2001/XMLSchema#integer"
	RDFType    = "http://www.w3.org/1999/02/22-rdf-syntax-ns#type"
	LangString = "http://www.w3.org/1999/02/22-rdf-syntax-ns#langString"
)

// DefaultGraph is the id of the base graph holding facts without a time scope
const DefaultGraph = "urn:x-timegraph:base"

// TermKind distinguishes the three RDF term kinds
type TermKind uint8

const (
	KindIRI TermKind = iota + 1
	KindBlank
	KindLiteral
)

// Term is a node in an RDF graph
type Term struct {
	Kind     TermKind
	Value    string
	Datatype string // literals only, empty means xsd:string
	Lang     string // literals only
}

// IRI creates an IRI term
func IRI(v string) Term {
	return Term{Kind: KindIRI, Value: v}
}

// Blank creates a blank node term
func Blank(id string) Term {
	return Term{Kind: KindBlank, Value: id}
}

// Literal creates a plain string literal
func Literal(v string) Term {
	return Term{Kind: KindLiteral, Value: v}
}

// TypedLiteral creates a literal with a datatype IRI
func TypedLiteral(v, datatype string) Term {
	if datatype == XSDString {
		datatype = ""
	}
	return Term{Kind: KindLiteral, Value: v, Datatype: datatype}
}

// LangLiteral creates a language-tagged literal
func LangLiteral(v, lang string) Term {
	return Term{Kind: KindLiteral, Value: v, Lang: strings.ToLower(lang)}
}

// Integer creates an xsd:integer literal
func Integer(n int) Term {
	return Term{Kind: KindLiteral, Value: strconv.Itoa(n), Datatype: XSDInteger}
}

// IsZero reports whether the term is unset (a wildcard)
func (t Term) IsZero() bool {
	return t.Kind == 0
}

// IsIRI reports whether the term is an IRI
func (t Term) IsIRI() bool { return t.Kind == KindIRI }

// IsLiteral reports whether the term is a literal
func (t Term) IsLiteral() bool { return t.Kind == KindLiteral }

// Int parses the literal's lexical form as an integer
func (t Term) Int() (int, error) {
	if t.Kind != KindLiteral {
		return 0, fmt.Errorf("%w: %s is not a literal", ErrMalformedTerm, t)
	}
	n, err := strconv.Atoi(strings.TrimSpace(t.Value))
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not an integer", ErrMalformedTerm, t.Value)
	}
	return n, nil
}

// Matches reports whether t satisfies the pattern term p
func (t Term) Matches(p Term) bool {
	return p.IsZero() || t == p
}

// String returns the N-Triples encoding of the term
func (t Term) String() string {
	switch t.Kind {
	case KindIRI:
		return "<" + t.Value + ">"
	case KindBlank:
		return "_:" + t.Value
	case KindLiteral:
		s := `"` + escapeLiteral(t.Value) + `"`
		switch {
		case t.Lang != "":
			return s + "@" + t.Lang
		case t.Datatype != "":
			return s + "^^<" + t.Datatype + ">"
		default:
			return s
		}
	default:
		return ""
	}
}

// Compare orders terms by kind and then by encoded form
func (t Term) Compare(o Term) int {
	if t.Kind != o.Kind {
		if t.Kind < o.Kind {
			return -1
		}
		return 1
	}
	return strings.Compare(t.String(), o.String())
}

var literalEscaper = strings.NewReplacer(
	`\`, `\\`,
	`"`, `\"`,
	"\n", `\n`,
	"\r", `\r`,
	"\t", `\t`,
)

func escapeLiteral(s string) string {
	return literalEscaper.Replace(s)
}
