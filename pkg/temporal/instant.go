// ABOUTME: Calendar instants with year, month or day precision
// ABOUTME: Unset fields act as wildcards when instants are compared

package temporal

import (
	"fmt"
	"time"
)

// Precision is the finest calendar field set on an instant
type Precision uint8

const (
	PrecisionYear  Precision = 1
	PrecisionMonth Precision = 2
	PrecisionDay   Precision = 3
)

const (
	MaxMonth = 11 // months are 0-based
	MaxDay   = 30 // days are 0-based
)

// String returns the precision name
func (p Precision) String() string {
	switch p {
	case PrecisionYear:
		return "year"
	case PrecisionMonth:
		return "month"
	case PrecisionDay:
		return "day"
	default:
		return "none"
	}
}

// Instant is a point in time known to year, month or day precision.
// The zero Instant is unset and is rejected by span constructors.
type Instant struct {
	year  int
	month int
	day   int
	prec  Precision
}

// nowFunc is replaced in tests
var nowFunc = time.Now

// Year creates a year-precision instant
func Year(year int) (Instant, error) {
	if year < 0 {
		return Instant{}, fmt.Errorf("%w: negative year %d", ErrInvalidTemporalValue, year)
	}
	return Instant{year: year, prec: PrecisionYear}, nil
}

// YearMonth creates a month-precision instant (month is 0-based)
func YearMonth(year, month int) (Instant, error) {
	i, err := Year(year)
	if err != nil {
		return Instant{}, err
	}
	if month < 0 || month > MaxMonth {
		return Instant{}, fmt.Errorf("%w: month %d out of range 0..%d", ErrInvalidTemporalValue, month, MaxMonth)
	}
	i.month = month
	i.prec = PrecisionMonth
	return i, nil
}

// Date creates a day-precision instant (month and day are 0-based)
func Date(year, month, day int) (Instant, error) {
	i, err := YearMonth(year, month)
	if err != nil {
		return Instant{}, err
	}
	if day < 0 || day > MaxDay {
		return Instant{}, fmt.Errorf("%w: day %d out of range 0..%d", ErrInvalidTemporalValue, day, MaxDay)
	}
	i.day = day
	i.prec = PrecisionDay
	return i, nil
}

// FromFields builds an instant from optional month and day fields.
// A day without a month is rejected.
func FromFields(year int, month, day *int) (Instant, error) {
	switch {
	case month == nil && day != nil:
		return Instant{}, fmt.Errorf("%w: day set without month", ErrInvalidTemporalValue)
	case month == nil:
		return Year(year)
	case day == nil:
		return YearMonth(year, *month)
	default:
		return Date(year, *month, *day)
	}
}

// Now returns the current UTC date at day precision
func Now() Instant {
	return FromTime(nowFunc())
}

// FromTime converts a wall-clock time to a day-precision instant
func FromTime(t time.Time) Instant {
	t = t.UTC()
	return Instant{
		year:  t.Year(),
		month: int(t.Month()) - 1,
		day:   t.Day() - 1,
		prec:  PrecisionDay,
	}
}

// IsZero reports whether the instant is unset
func (i Instant) IsZero() bool {
	return i.prec == 0
}

// Precision returns the finest field set
func (i Instant) Precision() Precision {
	return i.prec
}

// Year returns the year
func (i Instant) Year() int {
	return i.year
}

// Month returns the 0-based month, if set
func (i Instant) Month() (int, bool) {
	return i.month, i.prec >= PrecisionMonth
}

// Day returns the 0-based day, if set
func (i Instant) Day() (int, bool) {
	return i.day, i.prec >= PrecisionDay
}

// Lo returns the first day covered by the instant
func (i Instant) Lo() time.Time {
	month, day := 0, 0
	if i.prec >= PrecisionMonth {
		month = i.month
	}
	if i.prec >= PrecisionDay {
		day = i.day
	}
	// time.Date normalizes day overflow into the following month
	return time.Date(i.year, time.Month(month+1), day+1, 0, 0, 0, 0, time.UTC)
}

// Hi returns the first day after the instant's bucket
func (i Instant) Hi() time.Time {
	lo := i.Lo()
	switch i.prec {
	case PrecisionYear:
		return lo.AddDate(1, 0, 0)
	case PrecisionMonth:
		return lo.AddDate(0, 1, 0)
	default:
		return lo.AddDate(0, 0, 1)
	}
}

// Compare orders two instants at the coarser of their precisions.
// Day overflow is normalized first, so February day index 30 compares as
// early March. It returns -1, 0 or +1.
func (i Instant) Compare(o Instant) int {
	a, b := i.normalized(), o.normalized()
	if c := cmpInt(a.year, b.year); c != 0 {
		return c
	}
	prec := min(a.prec, b.prec)
	if prec >= PrecisionMonth {
		if c := cmpInt(a.month, b.month); c != 0 {
			return c
		}
	}
	if prec >= PrecisionDay {
		return cmpInt(a.day, b.day)
	}
	return 0
}

// normalized rewrites a day-precision instant from its calendar day
func (i Instant) normalized() Instant {
	if i.prec != PrecisionDay {
		return i
	}
	return FromTime(i.Lo())
}

// truncate drops fields finer than p
func (i Instant) truncate(p Precision) Instant {
	if p >= i.prec {
		return i
	}
	switch p {
	case PrecisionYear:
		return Instant{year: i.year, prec: PrecisionYear}
	case PrecisionMonth:
		return Instant{year: i.year, month: i.month, prec: PrecisionMonth}
	default:
		return i
	}
}

// Compatible reports whether the instants are equal at the coarser precision
func (i Instant) Compatible(o Instant) bool {
	return i.Compare(o) == 0
}

// Equal reports structural equality, including precision
func (i Instant) Equal(o Instant) bool {
	return i == o
}

// String renders the instant with 1-based month and day (2005, 2005-04, 2005-04-01)
func (i Instant) String() string {
	switch i.prec {
	case PrecisionYear:
		return fmt.Sprintf("%04d", i.year)
	case PrecisionMonth:
		return fmt.Sprintf("%04d-%02d", i.year, i.month+1)
	case PrecisionDay:
		return fmt.Sprintf("%04d-%02d-%02d", i.year, i.month+1, i.day+1)
	default:
		return ""
	}
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
