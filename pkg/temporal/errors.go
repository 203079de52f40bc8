// Package temporal implements partially-specified calendar instants and
// validity spans, and the containment relation the time index is built on.
package temporal

import "errors"

var (
	// ErrInvalidTemporalValue indicates a malformed calendar component
	ErrInvalidTemporalValue = errors.New("temporal: invalid temporal value")
)
