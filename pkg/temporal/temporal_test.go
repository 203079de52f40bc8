// ABOUTME: Tests for the calendar instant and span algebra
// ABOUTME: Covers containment, exclusive ends, wildcards and validation

package temporal

import (
	"errors"
	"testing"
	"time"
)

func mustInstant(t *testing.T, s string) Instant {
	t.Helper()
	i, err := ParseInstant(s)
	if err != nil {
		t.Fatalf("ParseInstant(%q): %v", s, err)
	}
	return i
}

func mustSpan(t *testing.T, s string) Span {
	t.Helper()
	sp, err := ParseSpan(s)
	if err != nil {
		t.Fatalf("ParseSpan(%q): %v", s, err)
	}
	return sp
}

func TestInstantValidation(t *testing.T) {
	cases := []struct {
		name string
		fn   func() (Instant, error)
	}{
		{"negative year", func() (Instant, error) { return Year(-1) }},
		{"month too large", func() (Instant, error) { return YearMonth(2005, 12) }},
		{"negative month", func() (Instant, error) { return YearMonth(2005, -1) }},
		{"day too large", func() (Instant, error) { return Date(2005, 0, 31) }},
		{"negative day", func() (Instant, error) { return Date(2005, 0, -1) }},
		{"day without month", func() (Instant, error) {
			d := 3
			return FromFields(2005, nil, &d)
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := tc.fn(); !errors.Is(err, ErrInvalidTemporalValue) {
				t.Errorf("expected ErrInvalidTemporalValue, got %v", err)
			}
		})
	}
}

func TestFromFieldsPrecision(t *testing.T) {
	m, d := 3, 0

	i, err := FromFields(2005, &m, &d)
	if err != nil {
		t.Fatalf("FromFields: %v", err)
	}
	if i.Precision() != PrecisionDay {
		t.Errorf("expected day precision, got %s", i.Precision())
	}
	if i.String() != "2005-04-01" {
		t.Errorf("expected 2005-04-01, got %s", i.String())
	}

	i, err = FromFields(2005, &m, nil)
	if err != nil {
		t.Fatalf("FromFields: %v", err)
	}
	if i.Precision() != PrecisionMonth {
		t.Errorf("expected month precision, got %s", i.Precision())
	}
}

func TestNow(t *testing.T) {
	orig := nowFunc
	defer func() { nowFunc = orig }()
	nowFunc = func() time.Time { return time.Date(2024, time.March, 9, 15, 0, 0, 0, time.UTC) }

	now := Now()
	if now.Precision() != PrecisionDay {
		t.Fatalf("expected day precision, got %s", now.Precision())
	}
	if now.String() != "2024-03-09" {
		t.Errorf("expected 2024-03-09, got %s", now.String())
	}
	if m, _ := now.Month(); m != 2 {
		t.Errorf("expected 0-based month 2, got %d", m)
	}
}

func TestDayOverflowWrapsIntoNextMonth(t *testing.T) {
	// February has no 31st day; the bucket normalizes into March
	i, err := Date(2005, 1, 30)
	if err != nil {
		t.Fatalf("Date: %v", err)
	}
	want := time.Date(2005, time.March, 3, 0, 0, 0, 0, time.UTC)
	if !i.Lo().Equal(want) {
		t.Errorf("expected %v, got %v", want, i.Lo())
	}
}

func TestCompatibleAtCoarserPrecision(t *testing.T) {
	year := mustInstant(t, "2005")
	day := mustInstant(t, "2005-07-14")
	other := mustInstant(t, "2006-07-14")

	if !year.Compatible(day) || !day.Compatible(year) {
		t.Error("year-only instant should be compatible with any day in that year")
	}
	if year.Compatible(other) {
		t.Error("different years should not be compatible")
	}
	if year.Equal(day) {
		t.Error("Equal must include precision")
	}
	if c := mustInstant(t, "2005-03").Compare(mustInstant(t, "2005-07-01")); c != -1 {
		t.Errorf("expected -1, got %d", c)
	}
}

func TestCompareNormalizesDayOverflow(t *testing.T) {
	overflow, err := Date(2005, 1, 30) // February day index 30
	if err != nil {
		t.Fatal(err)
	}
	march3 := mustInstant(t, "2005-03-03")
	if !overflow.Compatible(march3) {
		t.Errorf("%s covers %s and should be compatible", overflow, march3)
	}
	if c := overflow.Compare(mustInstant(t, "2005-02")); c != 1 {
		t.Errorf("overflowed day should order after February, got %d", c)
	}
	if !overflow.Compatible(mustInstant(t, "2005-03")) {
		t.Error("overflowed day should fall in March")
	}
}

func TestUnboundedSpanContainsFuture(t *testing.T) {
	s := mustSpan(t, "2005")

	for _, in := range []string{"2005", "2005-01", "2005-12-31", "2006", "2150-06-01"} {
		if !s.Contains(mustInstant(t, in)) {
			t.Errorf("unbounded span %s should contain %s", s, in)
		}
	}
	if s.Contains(mustInstant(t, "2004-12-31")) {
		t.Error("span should not contain instants before its start")
	}
}

func TestBoundedSpanExclusiveEnd(t *testing.T) {
	for _, start := range []string{"2005", "2005-06", "2005-06-15"} {
		for d := 1; d <= 5; d++ {
			s, err := NewSpan(mustInstant(t, start), Duration{Years: d})
			if err != nil {
				t.Fatalf("NewSpan: %v", err)
			}

			last, _ := Year(2005 + d - 1)
			end, _ := Year(2005 + d)
			if !s.Contains(last) {
				t.Errorf("%s should contain %s", s, last)
			}
			if s.Contains(end) {
				t.Errorf("%s should not contain %s", s, end)
			}
		}
	}
}

func TestEndComparedAtCoarserPrecision(t *testing.T) {
	s := mustSpan(t, "2005-06-15/P1Y")

	cases := map[string]bool{
		"2005-06-14": false,
		"2005-06-15": true,
		"2005-06":    true,
		"2006-05":    true,
		"2006-06-14": true,
		"2006-06-15": false,
		"2006-06":    false, // shares its bucket with the end
		"2006":       false,
	}
	for in, want := range cases {
		if got := s.Contains(mustInstant(t, in)); got != want {
			t.Errorf("%s.Contains(%s) = %v, want %v", s, in, got, want)
		}
	}

	end, ok := s.EndInstant()
	if !ok || end.String() != "2006-06-15" {
		t.Errorf("unexpected end %v (%v)", end, ok)
	}
	if _, ok := mustSpan(t, "2005-06").EndInstant(); ok {
		t.Error("open span has no end")
	}
}

func TestContainsTreatsUnsetFieldsAsWildcards(t *testing.T) {
	s := mustSpan(t, "2005-04/P2M")

	cases := map[string]bool{
		"2005":       false, // the end falls in 2005 too
		"2005-03":    false,
		"2005-04":    true,
		"2005-05-31": true,
		"2005-06":    false,
		"2004":       false,
	}
	for in, want := range cases {
		if got := s.Contains(mustInstant(t, in)); got != want {
			t.Errorf("%s.Contains(%s) = %v, want %v", s, in, got, want)
		}
	}

	long := mustSpan(t, "2005-04/P1Y")
	if !long.Contains(mustInstant(t, "2005")) {
		t.Errorf("%s should contain the year of its start", long)
	}
	if !mustSpan(t, "2005-04").Contains(mustInstant(t, "2005")) {
		t.Error("open span should contain the year of its start")
	}
}

func TestSpanRelations(t *testing.T) {
	a := mustSpan(t, "2005/P3Y")
	b := mustSpan(t, "2007")
	c := mustSpan(t, "2008-02")

	if !a.ContainsSpan(mustSpan(t, "2006-05/P10Y")) {
		t.Error("span starting inside a should be contained")
	}
	if a.ContainsSpan(c) {
		t.Error("span starting after a's end should not be contained")
	}
	if !a.Overlaps(b) || !b.Overlaps(a) {
		t.Error("a and b should overlap")
	}
	if a.Overlaps(c) {
		t.Error("a and c should not overlap")
	}
	if !mustSpan(t, "2001").Overlaps(a) {
		t.Error("an unbounded earlier span overlaps a")
	}
}

func TestFinerDurationRejected(t *testing.T) {
	cases := []struct {
		start string
		d     Duration
	}{
		{"2005", Duration{Months: 6}},
		{"2005", Duration{Years: 1, Days: 2}},
		{"2005-04", Duration{Days: 10}},
	}
	for _, tc := range cases {
		if _, err := NewSpan(mustInstant(t, tc.start), tc.d); !errors.Is(err, ErrInvalidTemporalValue) {
			t.Errorf("NewSpan(%s, %v): expected ErrInvalidTemporalValue, got %v", tc.start, tc.d, err)
		}
	}

	if _, err := NewSpan(mustInstant(t, "2005"), Duration{Years: -1}); !errors.Is(err, ErrInvalidTemporalValue) {
		t.Errorf("negative duration should be rejected, got %v", err)
	}
	if _, err := NewSpan(Instant{}, Duration{}); !errors.Is(err, ErrInvalidTemporalValue) {
		t.Errorf("zero start should be rejected, got %v", err)
	}
	if _, err := NewSpan(mustInstant(t, "2005-04-01"), Duration{Years: 1, Months: 2, Days: 3}); err != nil {
		t.Errorf("day-precision start accepts any duration: %v", err)
	}
}

func TestParseRoundTrip(t *testing.T) {
	for _, s := range []string{"2005", "2005-04", "2005-04-01", "2005/P3Y", "2005-04/P1Y2M", "2005-04-01/P1D"} {
		sp := mustSpan(t, s)
		if sp.String() != s {
			t.Errorf("expected %s, got %s", s, sp.String())
		}
	}

	for _, bad := range []string{"", "abc", "2005-13", "2005-00", "2005/3Y", "2005/P", "2005/PY", "2005/P3W", "2005/P3"} {
		if _, err := ParseSpan(bad); !errors.Is(err, ErrInvalidTemporalValue) {
			t.Errorf("ParseSpan(%q): expected ErrInvalidTemporalValue, got %v", bad, err)
		}
	}
}

func TestSpanEqual(t *testing.T) {
	if !mustSpan(t, "2005/P3Y").Equal(mustSpan(t, "2005/P3Y")) {
		t.Error("identical spans should be equal")
	}
	if mustSpan(t, "2005/P3Y").Equal(mustSpan(t, "2005")) {
		t.Error("bounded and unbounded spans differ")
	}
	if mustSpan(t, "2005").Equal(mustSpan(t, "2005-01")) {
		t.Error("precision is part of equality")
	}
}
