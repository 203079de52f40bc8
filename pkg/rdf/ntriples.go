// ABOUTME: Line-based N-Triples / N-Quads decoder and encoder
// ABOUTME: Used for import, snapshot export and SQLite term storage

package rdf

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// ParseTerm decodes a single N-Triples term
func ParseTerm(s string) (Term, error) {
	t, rest, err := readTerm(strings.TrimSpace(s))
	if err != nil {
		return Term{}, err
	}
	if strings.TrimSpace(rest) != "" {
		return Term{}, fmt.Errorf("%w: trailing input %q", ErrMalformedTerm, rest)
	}
	return t, nil
}

// ParseLine decodes one N-Triples or N-Quads line. Blank lines and comments
// return ok=false. Triples without a graph land in DefaultGraph.
func ParseLine(line string) (q Quad, ok bool, err error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return Quad{}, false, nil
	}

	rest := line
	var terms [3]Term
	for i := range terms {
		terms[i], rest, err = readTerm(rest)
		if err != nil {
			return Quad{}, false, err
		}
		rest = strings.TrimLeft(rest, " \t")
	}

	graph := DefaultGraph
	if strings.HasPrefix(rest, "<") {
		var g Term
		g, rest, err = readTerm(rest)
		if err != nil {
			return Quad{}, false, err
		}
		graph = g.Value
		rest = strings.TrimLeft(rest, " \t")
	}

	if !strings.HasPrefix(rest, ".") {
		return Quad{}, false, fmt.Errorf("%w: missing terminating '.' in %q", ErrMalformedTerm, line)
	}
	if tail := strings.TrimSpace(rest[1:]); tail != "" && !strings.HasPrefix(tail, "#") {
		return Quad{}, false, fmt.Errorf("%w: trailing input after '.' in %q", ErrMalformedTerm, line)
	}

	if terms[0].Kind == KindLiteral || terms[1].Kind != KindIRI {
		return Quad{}, false, fmt.Errorf("%w: invalid statement %q", ErrMalformedTerm, line)
	}
	return NewQuad(graph, NewTriple(terms[0], terms[1], terms[2])), true, nil
}

func readTerm(s string) (Term, string, error) {
	switch {
	case strings.HasPrefix(s, "<"):
		end := strings.IndexByte(s, '>')
		if end < 0 {
			return Term{}, "", fmt.Errorf("%w: unterminated IRI in %q", ErrMalformedTerm, s)
		}
		return IRI(s[1:end]), s[end+1:], nil

	case strings.HasPrefix(s, "_:"):
		end := strings.IndexAny(s, " \t")
		if end < 0 {
			end = len(s)
		}
		if end == 2 {
			return Term{}, "", fmt.Errorf("%w: empty blank node label", ErrMalformedTerm)
		}
		return Blank(s[2:end]), s[end:], nil

	case strings.HasPrefix(s, `"`):
		return readLiteral(s)

	default:
		return Term{}, "", fmt.Errorf("%w: unexpected input %q", ErrMalformedTerm, s)
	}
}

func readLiteral(s string) (Term, string, error) {
	var b strings.Builder
	i := 1
	for ; i < len(s); i++ {
		c := s[i]
		if c == '"' {
			break
		}
		if c != '\\' {
			b.WriteByte(c)
			continue
		}
		i++
		if i >= len(s) {
			break
		}
		switch s[i] {
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 't':
			b.WriteByte('\t')
		case '"', '\\':
			b.WriteByte(s[i])
		default:
			return Term{}, "", fmt.Errorf("%w: unknown escape \\%c", ErrMalformedTerm, s[i])
		}
	}
	if i >= len(s) {
		return Term{}, "", fmt.Errorf("%w: unterminated literal in %q", ErrMalformedTerm, s)
	}

	value := b.String()
	rest := s[i+1:]

	switch {
	case strings.HasPrefix(rest, "@"):
		end := strings.IndexAny(rest, " \t")
		if end < 0 {
			end = len(rest)
		}
		return LangLiteral(value, rest[1:end]), rest[end:], nil
	case strings.HasPrefix(rest, "^^"):
		dt, tail, err := readTerm(rest[2:])
		if err != nil {
			return Term{}, "", err
		}
		if dt.Kind != KindIRI {
			return Term{}, "", fmt.Errorf("%w: datatype must be an IRI", ErrMalformedTerm)
		}
		return TypedLiteral(value, dt.Value), tail, nil
	default:
		return Literal(value), rest, nil
	}
}

// Decoder reads quads from an N-Triples or N-Quads stream
type Decoder struct {
	scanner *bufio.Scanner
	line    int
}

// NewDecoder creates a decoder over r
func NewDecoder(r io.Reader) *Decoder {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	return &Decoder{scanner: sc}
}

// Decode returns the next quad or io.EOF
func (d *Decoder) Decode() (Quad, error) {
	for d.scanner.Scan() {
		d.line++
		q, ok, err := ParseLine(d.scanner.Text())
		if err != nil {
			return Quad{}, fmt.Errorf("line %d: %w", d.line, err)
		}
		if ok {
			return q, nil
		}
	}
	if err := d.scanner.Err(); err != nil {
		return Quad{}, err
	}
	return Quad{}, io.EOF
}

// Encoder writes triples or quads one per line
type Encoder struct {
	w *bufio.Writer
}

// NewEncoder creates an encoder over w. Call Flush when done.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: bufio.NewWriter(w)}
}

// WriteTriple writes an N-Triples line
func (e *Encoder) WriteTriple(t Triple) error {
	_, err := e.w.WriteString(t.String() + "\n")
	return err
}

// WriteQuad writes an N-Quads line
func (e *Encoder) WriteQuad(q Quad) error {
	_, err := e.w.WriteString(q.String() + "\n")
	return err
}

// Flush flushes buffered output
func (e *Encoder) Flush() error {
	return e.w.Flush()
}
