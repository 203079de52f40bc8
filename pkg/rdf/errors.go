// Package rdf provides the RDF value types shared by the stores, the query
// engine and the snapshot materializer, plus a line-based N-Triples/N-Quads codec.
package rdf

import "errors"

var (
	// ErrMalformedTerm indicates an unparseable term or line
	ErrMalformedTerm = errors.New("rdf: malformed term")
)
