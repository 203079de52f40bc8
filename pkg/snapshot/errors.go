// Package snapshot materializes the union of the base graph and every
// named graph relevant to a point or range in time.
package snapshot

import (
	"errors"

	"github.com/nainya/timegraph/pkg/timeindex"
)

var (
	// ErrNoTimeIndexSet means the source has no time index yet
	ErrNoTimeIndexSet = timeindex.ErrNoTimeIndexSet

	// ErrIncoherence means the index names a graph the backend does not hold
	ErrIncoherence = errors.New("snapshot: index references a missing graph")
)
