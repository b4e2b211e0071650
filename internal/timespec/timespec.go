package timespec

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Schedule holds the spans of each ISO weekday, Monday first.
// It is immutable once built and safe for concurrent use.
type Schedule struct {
	days [7][]TimeSpan
}

var reDayGroup = regexp.MustCompile(`([1-7]+)\[([0-9:,-]+)\]`)

// Parse builds a Schedule from time-spec notation.
//
// Text outside day-group clauses is ignored. At least one clause must be
// present.
func Parse(raw string) (*Schedule, error) {
	groups := reDayGroup.FindAllStringSubmatch(raw, -1)
	if len(groups) == 0 {
		return nil, fmt.Errorf("%w %q: no day group like 12345[09:00-17:00]", ErrMalformedSpec, raw)
	}

	s := &Schedule{}
	for _, g := range groups {
		days, body := g[1], g[2]
		parts := strings.Split(body, ",")
		spans := make([]TimeSpan, 0, len(parts))
		for _, p := range parts {
			span, err := ParseSpan(p)
			if err != nil {
				return nil, fmt.Errorf("day group %q: %w", g[0], err)
			}
			spans = append(spans, span)
		}
		for _, d := range days {
			idx := int(d - '1')
			s.days[idx] = append(s.days[idx], spans...)
		}
	}
	return s, nil
}

// MustParse is like Parse but panics on error. Intended for tests and constants.
func MustParse(raw string) *Schedule {
	s, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return s
}

// ISOWeekday returns the ISO 8601 day of week of t: Monday=1 .. Sunday=7.
func ISOWeekday(t time.Time) int {
	return (int(t.Weekday())+6)%7 + 1
}

// IsActive reports whether t, in its own location, falls inside any span
// of its weekday.
func (s *Schedule) IsActive(t time.Time) bool {
	if s == nil {
		return false
	}
	tod := TimeOfDayOf(t)
	for _, span := range s.days[ISOWeekday(t)-1] {
		if span.Contains(tod) {
			return true
		}
	}
	return false
}

// Spans returns a copy of the spans of the given ISO weekday (1..7).
func (s *Schedule) Spans(day int) []TimeSpan {
	if s == nil || day < 1 || day > 7 {
		return nil
	}
	return slices.Clone(s.days[day-1])
}

func (s *Schedule) Empty() bool {
	if s == nil {
		return true
	}
	for _, d := range s.days {
		if len(d) > 0 {
			return false
		}
	}
	return true
}

func (s *Schedule) Equal(o *Schedule) bool {
	if s == nil || o == nil {
		return s == o
	}
	for i := range s.days {
		if !slices.Equal(s.days[i], o.days[i]) {
			return false
		}
	}
	return true
}

// String renders canonical notation. Weekdays with identical span lists
// share one clause, e.g. "1245[09:00-12:00,13:00-15:00],3[09:00-11:00]".
func (s *Schedule) String() string {
	if s == nil {
		return ""
	}
	var (
		b    strings.Builder
		done [7]bool
	)
	for i := range s.days {
		if done[i] || len(s.days[i]) == 0 {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		for j := i; j < len(s.days); j++ {
			if !done[j] && slices.Equal(s.days[i], s.days[j]) {
				done[j] = true
				b.WriteString(strconv.Itoa(j + 1))
			}
		}
		b.WriteByte('[')
		for k, span := range s.days[i] {
			if k > 0 {
				b.WriteByte(',')
			}
			b.WriteString(span.String())
		}
		b.WriteByte(']')
	}
	return b.String()
}
