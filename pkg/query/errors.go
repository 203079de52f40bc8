// Package query implements the small SPARQL subset used to extract temporal
// descriptions and to derive restricted snapshots with CONSTRUCT.
package query

import "errors"

var (
	// ErrSyntax indicates a query that could not be parsed
	ErrSyntax = errors.New("query: syntax error")

	// ErrUnsupportedQueryFormat indicates an unknown result or output format
	ErrUnsupportedQueryFormat = errors.New("query: unsupported query format")
)
