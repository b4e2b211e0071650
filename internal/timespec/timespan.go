package timespec

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

var (
	ErrMalformedSpan = errors.New("malformed time span")
	ErrMalformedSpec = errors.New("malformed time spec")
)

const secondsPerDay = 24 * 60 * 60

// TimeOfDay is a wall-clock time as seconds since local midnight.
type TimeOfDay int

// Midnight is the reserved span end meaning "until the end of the day".
const Midnight TimeOfDay = 0

func Clock(hour, minute, second int) TimeOfDay {
	return TimeOfDay(hour*3600 + minute*60 + second)
}

// TimeOfDayOf returns the wall-clock time of t in t's own location.
// Sub-second precision is dropped.
func TimeOfDayOf(t time.Time) TimeOfDay {
	h, m, s := t.Clock()
	return Clock(h, m, s)
}

func (t TimeOfDay) Hour() int   { return int(t) / 3600 }
func (t TimeOfDay) Minute() int { return int(t) % 3600 / 60 }
func (t TimeOfDay) Second() int { return int(t) % 60 }

func (t TimeOfDay) String() string {
	if t.Second() != 0 {
		return fmt.Sprintf("%02d:%02d:%02d", t.Hour(), t.Minute(), t.Second())
	}
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

// TimeSpan is a single daily interval. Both ends are inclusive.
type TimeSpan struct {
	Start TimeOfDay
	End   TimeOfDay
}

var reClock = regexp.MustCompile(`^([01][0-9]|2[0-3]):([0-5][0-9])$`)

// ParseSpan parses "HH:MM-HH:MM".
func ParseSpan(raw string) (TimeSpan, error) {
	startRaw, endRaw, ok := strings.Cut(raw, "-")
	if !ok {
		return TimeSpan{}, fmt.Errorf("%w %q: missing '-' separator", ErrMalformedSpan, raw)
	}
	start, err := parseClock(startRaw)
	if err != nil {
		return TimeSpan{}, fmt.Errorf("%w %q: start: %v", ErrMalformedSpan, raw, err)
	}
	end, err := parseClock(endRaw)
	if err != nil {
		return TimeSpan{}, fmt.Errorf("%w %q: end: %v", ErrMalformedSpan, raw, err)
	}
	return TimeSpan{Start: start, End: end}, nil
}

func parseClock(v string) (TimeOfDay, error) {
	m := reClock.FindStringSubmatch(v)
	if len(m) != 3 {
		return 0, fmt.Errorf("invalid HH:MM %q", v)
	}
	hh := int(m[1][0]-'0')*10 + int(m[1][1]-'0')
	mm := int(m[2][0]-'0')*10 + int(m[2][1]-'0')
	return Clock(hh, mm, 0), nil
}

// Contains reports whether t falls inside the span.
//
// A span ending at Midnight has no upper bound. Otherwise there is no
// wraparound: a span whose end precedes its start contains nothing.
func (s TimeSpan) Contains(t TimeOfDay) bool {
	if s.End == Midnight {
		return s.Start <= t
	}
	return s.Start <= t && t <= s.End
}

func (s TimeSpan) String() string {
	return s.Start.String() + "-" + s.End.String()
}
