// ABOUTME: Lexer and recursive-descent parser for the SPARQL subset
// ABOUTME: PREFIX, SELECT [DISTINCT], CONSTRUCT, WHERE, OPTIONAL and LIMIT

package query

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/nainya/timegraph/pkg/rdf"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIRI
	tokPName
	tokVar
	tokString
	tokInt
	tokBlank
	tokKeyword
	tokPunct
	tokLang
	tokDTMark
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

var keywords = map[string]bool{
	"PREFIX": true, "SELECT": true, "CONSTRUCT": true, "WHERE": true,
	"OPTIONAL": true, "DISTINCT": true, "LIMIT": true, "A": true,
}

func lex(src string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case unicode.IsSpace(rune(c)):
			i++
		case c == '#':
			for i < len(src) && src[i] != '\n' {
				i++
			}
		case c == '<':
			end := strings.IndexByte(src[i:], '>')
			if end < 0 {
				return nil, syntaxErr(i, "unterminated IRI")
			}
			toks = append(toks, token{tokIRI, src[i+1 : i+end], i})
			i += end + 1
		case c == '?' || c == '$':
			j := i + 1
			for j < len(src) && isNameChar(src[j]) {
				j++
			}
			if j == i+1 {
				return nil, syntaxErr(i, "empty variable name")
			}
			toks = append(toks, token{tokVar, src[i+1 : j], i})
			i = j
		case c == '"':
			s, n, err := lexString(src[i:])
			if err != nil {
				return nil, syntaxErr(i, err.Error())
			}
			toks = append(toks, token{tokString, s, i})
			i += n
		case c == '@':
			j := i + 1
			for j < len(src) && (isNameChar(src[j]) || src[j] == '-') {
				j++
			}
			toks = append(toks, token{tokLang, src[i+1 : j], i})
			i = j
		case c == '^' && i+1 < len(src) && src[i+1] == '^':
			toks = append(toks, token{tokDTMark, "^^", i})
			i += 2
		case c == '_' && i+1 < len(src) && src[i+1] == ':':
			j := i + 2
			for j < len(src) && isNameChar(src[j]) {
				j++
			}
			toks = append(toks, token{tokBlank, src[i+2 : j], i})
			i = j
		case strings.IndexByte("{}.*();,", c) >= 0:
			toks = append(toks, token{tokPunct, string(c), i})
			i++
		case c == '-' || c == '+' || (c >= '0' && c <= '9'):
			j := i + 1
			for j < len(src) && src[j] >= '0' && src[j] <= '9' {
				j++
			}
			toks = append(toks, token{tokInt, src[i:j], i})
			i = j
		case isNameChar(c) || c == ':':
			j := i
			for j < len(src) && (isNameChar(src[j]) || src[j] == ':' || src[j] == '-' || src[j] == '.' && j+1 < len(src) && isNameChar(src[j+1])) {
				j++
			}
			word := src[i:j]
			switch {
			case strings.Contains(word, ":"):
				toks = append(toks, token{tokPName, word, i})
			case keywords[strings.ToUpper(word)]:
				toks = append(toks, token{tokKeyword, strings.ToUpper(word), i})
			default:
				return nil, syntaxErr(i, fmt.Sprintf("unexpected word %q", word))
			}
			i = j
		default:
			return nil, syntaxErr(i, fmt.Sprintf("unexpected character %q", c))
		}
	}
	toks = append(toks, token{kind: tokEOF, pos: len(src)})
	return toks, nil
}

func lexString(s string) (string, int, error) {
	var b strings.Builder
	for i := 1; i < len(s); i++ {
		switch s[i] {
		case '"':
			return b.String(), i + 1, nil
		case '\\':
			i++
			if i >= len(s) {
				return "", 0, fmt.Errorf("unterminated string")
			}
			switch s[i] {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			default:
				b.WriteByte(s[i])
			}
		default:
			b.WriteByte(s[i])
		}
	}
	return "", 0, fmt.Errorf("unterminated string")
}

func isNameChar(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}

func syntaxErr(pos int, msg string) error {
	return fmt.Errorf("%w: at offset %d: %s", ErrSyntax, pos, msg)
}

type parser struct {
	toks     []token
	pos      int
	prefixes map[string]string
}

// Parse parses a SELECT or CONSTRUCT query
func Parse(src string) (Query, error) {
	toks, err := lex(src)
	if err != nil {
		return Query{}, err
	}
	p := &parser{toks: toks, prefixes: map[string]string{}}
	return p.parseQuery()
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) accept(kind tokenKind, text string) bool {
	t := p.peek()
	if t.kind == kind && t.text == text {
		p.pos++
		return true
	}
	return false
}

func (p *parser) expect(kind tokenKind, text string) error {
	if !p.accept(kind, text) {
		t := p.peek()
		return syntaxErr(t.pos, fmt.Sprintf("expected %q, found %q", text, t.text))
	}
	return nil
}

func (p *parser) parseQuery() (Query, error) {
	var q Query

	for p.accept(tokKeyword, "PREFIX") {
		name := p.next()
		if name.kind != tokPName || !strings.HasSuffix(name.text, ":") {
			return q, syntaxErr(name.pos, "expected prefix name")
		}
		iri := p.next()
		if iri.kind != tokIRI {
			return q, syntaxErr(iri.pos, "expected prefix IRI")
		}
		p.prefixes[strings.TrimSuffix(name.text, ":")] = iri.text
	}

	switch {
	case p.accept(tokKeyword, "SELECT"):
		q.Type = QuerySelect
		q.Distinct = p.accept(tokKeyword, "DISTINCT")
		if !p.accept(tokPunct, "*") {
			for p.peek().kind == tokVar {
				q.Vars = append(q.Vars, p.next().text)
			}
			if len(q.Vars) == 0 {
				return q, syntaxErr(p.peek().pos, "SELECT needs '*' or at least one variable")
			}
		}
	case p.accept(tokKeyword, "CONSTRUCT"):
		q.Type = QueryConstruct
		if err := p.expect(tokPunct, "{"); err != nil {
			return q, err
		}
		tmpl, err := p.parseTriples(true)
		if err != nil {
			return q, err
		}
		if err := p.expect(tokPunct, "}"); err != nil {
			return q, err
		}
		q.Template = tmpl
	default:
		t := p.peek()
		return q, syntaxErr(t.pos, fmt.Sprintf("expected SELECT or CONSTRUCT, found %q", t.text))
	}

	p.accept(tokKeyword, "WHERE")
	g, err := p.parseGroup()
	if err != nil {
		return q, err
	}
	q.Where = g

	if p.accept(tokKeyword, "LIMIT") {
		t := p.next()
		n, err := strconv.Atoi(t.text)
		if t.kind != tokInt || err != nil || n < 0 {
			return q, syntaxErr(t.pos, "LIMIT expects a non-negative integer")
		}
		q.Limit = n
	}

	if t := p.peek(); t.kind != tokEOF {
		return q, syntaxErr(t.pos, fmt.Sprintf("unexpected %q after query", t.text))
	}
	return q, nil
}

func (p *parser) parseGroup() (Group, error) {
	var g Group
	if err := p.expect(tokPunct, "{"); err != nil {
		return g, err
	}
	for {
		switch {
		case p.accept(tokPunct, "}"):
			return g, nil
		case p.accept(tokKeyword, "OPTIONAL"):
			opt, err := p.parseGroup()
			if err != nil {
				return g, err
			}
			g.Optionals = append(g.Optionals, opt)
			p.accept(tokPunct, ".")
		case p.peek().kind == tokEOF:
			return g, syntaxErr(p.peek().pos, "unterminated group")
		default:
			tp, err := p.parseTriple(false)
			if err != nil {
				return g, err
			}
			g.Patterns = append(g.Patterns, tp...)
			p.accept(tokPunct, ".")
		}
	}
}

// parseTriples reads dot-separated triples until a closing brace
func (p *parser) parseTriples(template bool) ([]TriplePattern, error) {
	var out []TriplePattern
	for p.peek().kind != tokEOF && !(p.peek().kind == tokPunct && p.peek().text == "}") {
		tps, err := p.parseTriple(template)
		if err != nil {
			return nil, err
		}
		out = append(out, tps...)
		p.accept(tokPunct, ".")
	}
	return out, nil
}

// parseTriple reads one subject with its predicate-object lists (';' and ',')
func (p *parser) parseTriple(template bool) ([]TriplePattern, error) {
	s, err := p.parseNode(template, false)
	if err != nil {
		return nil, err
	}
	var out []TriplePattern
	for {
		pr, err := p.parseNode(template, true)
		if err != nil {
			return nil, err
		}
		for {
			o, err := p.parseNode(template, false)
			if err != nil {
				return nil, err
			}
			out = append(out, Pattern(s, pr, o))
			if !p.accept(tokPunct, ",") {
				break
			}
		}
		if !p.accept(tokPunct, ";") {
			return out, nil
		}
	}
}

func (p *parser) parseNode(template, predicate bool) (Node, error) {
	t := p.next()
	switch t.kind {
	case tokVar:
		return V(t.text), nil
	case tokIRI:
		return T(rdf.IRI(t.text)), nil
	case tokPName:
		iri, err := p.expand(t)
		if err != nil {
			return Node{}, err
		}
		return T(rdf.IRI(iri)), nil
	case tokKeyword:
		if t.text == "A" && predicate {
			return T(rdf.IRI(rdf.RDFType)), nil
		}
	case tokInt:
		if !predicate {
			n, err := strconv.Atoi(t.text)
			if err != nil {
				return Node{}, syntaxErr(t.pos, "invalid integer")
			}
			return T(rdf.Integer(n)), nil
		}
	case tokString:
		if !predicate {
			return p.literal(t.text)
		}
	case tokBlank:
		if template && !predicate {
			return T(rdf.Blank(t.text)), nil
		}
		if !predicate {
			// blank nodes in patterns behave as anonymous variables
			return V("_:" + t.text), nil
		}
	}
	return Node{}, syntaxErr(t.pos, fmt.Sprintf("unexpected %q", t.text))
}

func (p *parser) literal(value string) (Node, error) {
	switch t := p.peek(); t.kind {
	case tokLang:
		p.next()
		return T(rdf.LangLiteral(value, t.text)), nil
	case tokDTMark:
		p.next()
		dt := p.next()
		switch dt.kind {
		case tokIRI:
			return T(rdf.TypedLiteral(value, dt.text)), nil
		case tokPName:
			iri, err := p.expand(dt)
			if err != nil {
				return Node{}, err
			}
			return T(rdf.TypedLiteral(value, iri)), nil
		}
		return Node{}, syntaxErr(dt.pos, "expected datatype IRI")
	}
	return T(rdf.Literal(value)), nil
}

func (p *parser) expand(t token) (string, error) {
	prefix, local, _ := strings.Cut(t.text, ":")
	ns, ok := p.prefixes[prefix]
	if !ok {
		return "", syntaxErr(t.pos, fmt.Sprintf("undeclared prefix %q", prefix))
	}
	return ns + local, nil
}
