// Package timeindex maps named-graph identifiers to validity spans and
// answers which graphs are valid at an instant or over a span.
package timeindex

import (
	"errors"
	"slices"
	"strings"
	"sync"

	"github.com/nainya/timegraph/pkg/temporal"
)

var (
	// ErrCorruptIndexData indicates missing or unparseable temporal metadata
	ErrCorruptIndexData = errors.New("timeindex: corrupt index data")

	// ErrNoTimeIndexSet indicates a lookup before the index was built
	ErrNoTimeIndexSet = errors.New("timeindex: no time index set")
)

// Entry pairs a graph id with its span
type Entry struct {
	GraphID string
	Span    temporal.Span
}

// finder is the lookup structure behind an Index.
// Implementations must return ids sorted and deduplicated.
type finder interface {
	put(id string, s temporal.Span)
	remove(id string) bool
	get(id string) (temporal.Span, bool)
	matchInstant(i temporal.Instant) []string
	matchSpan(s temporal.Span) []string
	exact(s temporal.Span) (string, bool)
	len() int
	entries() []Entry
}

// Index is safe for concurrent use
type Index struct {
	mu sync.RWMutex
	f  finder
}

// New creates an empty index
func New() *Index {
	return &Index{f: newLinearFinder()}
}

// Add inserts or overwrites the span for graphID (last write wins)
func (x *Index) Add(graphID string, s temporal.Span) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.f.put(graphID, s)
}

// Remove deletes the entry for graphID, reporting whether it existed
func (x *Index) Remove(graphID string) bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.f.remove(graphID)
}

// SpanFor returns the span registered for graphID
func (x *Index) SpanFor(graphID string) (temporal.Span, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.f.get(graphID)
}

// GraphsForInstant returns every graph whose span contains i
func (x *Index) GraphsForInstant(i temporal.Instant) []string {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.f.matchInstant(i)
}

// GraphsForSpan returns every graph whose span overlaps s
func (x *Index) GraphsForSpan(s temporal.Span) []string {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.f.matchSpan(s)
}

// GraphForSpan finds a graph registered with exactly this span
func (x *Index) GraphForSpan(s temporal.Span) (string, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.f.exact(s)
}

// Len returns the number of entries
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.f.len()
}

// Entries returns all entries sorted by graph id
func (x *Index) Entries() []Entry {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.f.entries()
}

// linearFinder scans every entry on each lookup
type linearFinder struct {
	spans map[string]temporal.Span
}

func newLinearFinder() *linearFinder {
	return &linearFinder{spans: make(map[string]temporal.Span)}
}

func (l *linearFinder) put(id string, s temporal.Span) { l.spans[id] = s }

func (l *linearFinder) remove(id string) bool {
	_, ok := l.spans[id]
	delete(l.spans, id)
	return ok
}

func (l *linearFinder) get(id string) (temporal.Span, bool) {
	s, ok := l.spans[id]
	return s, ok
}

func (l *linearFinder) matchInstant(i temporal.Instant) []string {
	return l.filter(func(s temporal.Span) bool { return s.Contains(i) })
}

func (l *linearFinder) matchSpan(q temporal.Span) []string {
	return l.filter(func(s temporal.Span) bool { return s.Overlaps(q) })
}

func (l *linearFinder) exact(q temporal.Span) (string, bool) {
	ids := l.filter(func(s temporal.Span) bool { return s.Equal(q) })
	if len(ids) == 0 {
		return "", false
	}
	return ids[0], true
}

func (l *linearFinder) filter(keep func(temporal.Span) bool) []string {
	var ids []string
	for id, s := range l.spans {
		if keep(s) {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

func (l *linearFinder) len() int { return len(l.spans) }

func (l *linearFinder) entries() []Entry {
	out := make([]Entry, 0, len(l.spans))
	for id, s := range l.spans {
		out = append(out, Entry{GraphID: id, Span: s})
	}
	slices.SortFunc(out, func(a, b Entry) int {
		return strings.Compare(a.GraphID, b.GraphID)
	})
	return out
}
