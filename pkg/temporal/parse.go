package temporal

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseInstant parses 2005, 2005-04 or 2005-04-01 (1-based month and day)
func ParseInstant(s string) (Instant, error) {
	parts := strings.Split(strings.TrimSpace(s), "-")
	if len(parts) == 0 || len(parts) > 3 || parts[0] == "" {
		return Instant{}, fmt.Errorf("%w: cannot parse instant %q", ErrInvalidTemporalValue, s)
	}

	nums := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return Instant{}, fmt.Errorf("%w: cannot parse instant %q", ErrInvalidTemporalValue, s)
		}
		nums[i] = n
	}

	switch len(nums) {
	case 1:
		return Year(nums[0])
	case 2:
		return YearMonth(nums[0], nums[1]-1)
	default:
		return Date(nums[0], nums[1]-1, nums[2]-1)
	}
}

// ParseDuration parses an ISO 8601 calendar duration such as P3Y2M1D
func ParseDuration(s string) (Duration, error) {
	s = strings.TrimSpace(s)
	if len(s) < 2 || (s[0] != 'P' && s[0] != 'p') {
		return Duration{}, fmt.Errorf("%w: cannot parse duration %q", ErrInvalidTemporalValue, s)
	}

	var d Duration
	num := ""
	for _, r := range strings.ToUpper(s[1:]) {
		switch {
		case r >= '0' && r <= '9':
			num += string(r)
		case r == 'Y' || r == 'M' || r == 'D':
			if num == "" {
				return Duration{}, fmt.Errorf("%w: cannot parse duration %q", ErrInvalidTemporalValue, s)
			}
			n, err := strconv.Atoi(num)
			if err != nil {
				return Duration{}, fmt.Errorf("%w: cannot parse duration %q", ErrInvalidTemporalValue, s)
			}
			switch r {
			case 'Y':
				d.Years = n
			case 'M':
				d.Months = n
			case 'D':
				d.Days = n
			}
			num = ""
		default:
			return Duration{}, fmt.Errorf("%w: unsupported duration component %q in %q", ErrInvalidTemporalValue, r, s)
		}
	}
	if num != "" {
		return Duration{}, fmt.Errorf("%w: dangling number in duration %q", ErrInvalidTemporalValue, s)
	}
	return d, nil
}

// ParseSpan parses start or start/duration, e.g. 2005 or 2005-04/P1Y2M
func ParseSpan(s string) (Span, error) {
	startText, durText, hasDur := strings.Cut(strings.TrimSpace(s), "/")

	start, err := ParseInstant(startText)
	if err != nil {
		return Span{}, err
	}
	if !hasDur {
		return Since(start)
	}

	d, err := ParseDuration(durText)
	if err != nil {
		return Span{}, err
	}
	return NewSpan(start, d)
}
