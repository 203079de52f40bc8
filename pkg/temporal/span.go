// ABOUTME: Validity spans: a start instant plus an optional calendar duration
// ABOUTME: Spans without a duration are open-ended (valid from start onward)

package temporal

import (
	"fmt"
	"strings"
	"time"
)

// Duration is a calendar duration. A zero Duration means "no declared end".
type Duration struct {
	Years  int
	Months int
	Days   int
}

// IsZero reports whether no component is set
func (d Duration) IsZero() bool {
	return d.Years == 0 && d.Months == 0 && d.Days == 0
}

// finest returns the finest precision carrying a non-zero component
func (d Duration) finest() Precision {
	switch {
	case d.Days != 0:
		return PrecisionDay
	case d.Months != 0:
		return PrecisionMonth
	case d.Years != 0:
		return PrecisionYear
	default:
		return 0
	}
}

// String renders the duration in ISO 8601 form (P3Y2M1D)
func (d Duration) String() string {
	if d.IsZero() {
		return "P0D"
	}
	var b strings.Builder
	b.WriteByte('P')
	if d.Years != 0 {
		fmt.Fprintf(&b, "%dY", d.Years)
	}
	if d.Months != 0 {
		fmt.Fprintf(&b, "%dM", d.Months)
	}
	if d.Days != 0 {
		fmt.Fprintf(&b, "%dD", d.Days)
	}
	return b.String()
}

// Span is the validity interval [start, start+duration) of a named graph
type Span struct {
	start    Instant
	duration Duration
}

// NewSpan validates and creates a span.
// Duration components finer than the start's precision are rejected.
func NewSpan(start Instant, d Duration) (Span, error) {
	if start.IsZero() {
		return Span{}, fmt.Errorf("%w: span without start", ErrInvalidTemporalValue)
	}
	if d.Years < 0 || d.Months < 0 || d.Days < 0 {
		return Span{}, fmt.Errorf("%w: negative duration %+v", ErrInvalidTemporalValue, d)
	}
	if f := d.finest(); f > start.prec {
		return Span{}, fmt.Errorf("%w: %s duration on a %s-precision start",
			ErrInvalidTemporalValue, f, start.prec)
	}
	return Span{start: start, duration: d}, nil
}

// Since creates an open-ended span starting at start
func Since(start Instant) (Span, error) {
	return NewSpan(start, Duration{})
}

// Start returns the start instant
func (s Span) Start() Instant {
	return s.start
}

// Duration returns the declared duration
func (s Span) Duration() Duration {
	return s.duration
}

// IsZero reports whether the span is unset
func (s Span) IsZero() bool {
	return s.start.IsZero()
}

// Bounded reports whether the span has a declared end
func (s Span) Bounded() bool {
	return !s.duration.IsZero()
}

// End returns the exclusive end of a bounded span
func (s Span) End() (time.Time, bool) {
	if !s.Bounded() {
		return time.Time{}, false
	}
	return s.start.Lo().AddDate(s.duration.Years, s.duration.Months, s.duration.Days), true
}

// Contains reports whether i falls in [start, end). Both bounds compare at
// the coarser of the two precisions, so unset fields match any value: a
// year-only instant is contained by an open span starting anywhere in that
// year, and an instant sharing its bucket with the end is excluded.
func (s Span) Contains(i Instant) bool {
	if s.IsZero() || i.IsZero() {
		return false
	}
	if s.start.Compare(i) > 0 {
		return false
	}
	end, bounded := s.EndInstant()
	if !bounded {
		return true
	}
	return i.Compare(end) < 0
}

// EndInstant returns the exclusive end at the start's precision
func (s Span) EndInstant() (Instant, bool) {
	end, bounded := s.End()
	if !bounded {
		return Instant{}, false
	}
	return FromTime(end).truncate(s.start.prec), true
}

// ContainsSpan reports whether o's start falls within s
func (s Span) ContainsSpan(o Span) bool {
	return s.Contains(o.start)
}

// Overlaps reports whether two spans intersect
func (s Span) Overlaps(o Span) bool {
	return s.ContainsSpan(o) || o.ContainsSpan(s)
}

// Equal reports structural equality of start and duration
func (s Span) Equal(o Span) bool {
	return s.start.Equal(o.start) && s.duration == o.duration
}

// String renders the span as start or start/duration (2005/P3Y)
func (s Span) String() string {
	if !s.Bounded() {
		return s.start.String()
	}
	return s.start.String() + "/" + s.duration.String()
}
