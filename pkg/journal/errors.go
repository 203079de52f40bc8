// Package journal implements an append-only, checksummed log of change events
package journal

import "errors"

var (
	// ErrCorrupted indicates a corrupted journal entry (CRC mismatch)
	ErrCorrupted = errors.New("journal: corrupted entry")

	// ErrInvalidEntry indicates an entry whose payload cannot be decoded
	ErrInvalidEntry = errors.New("journal: invalid entry")

	// ErrClosed indicates an operation on a closed journal
	ErrClosed = errors.New("journal: closed")

	// ErrNotFound indicates no journal files exist
	ErrNotFound = errors.New("journal: no journal files")

	// ErrTruncated indicates a truncated journal entry
	ErrTruncated = errors.New("journal: truncated entry")
)
