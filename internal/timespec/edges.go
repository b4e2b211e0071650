package timespec

import (
	"time"

	"github.com/robfig/cron/v3"
)

// Edges returns a cron.Schedule firing at every instant where the
// activity of s may change: span starts and the second after span ends.
func Edges(s *Schedule) cron.Schedule {
	return edges{s: s}
}

type edges struct{ s *Schedule }

// Next returns the first edge strictly after t, or the zero time if the
// schedule has no spans (which robfig/cron treats as "never").
func (e edges) Next(t time.Time) time.Time {
	if e.s.Empty() {
		return time.Time{}
	}
	y, m, d := t.Date()
	loc := t.Location()

	var next time.Time
	consider := func(c time.Time) {
		if c.After(t) && (next.IsZero() || c.Before(next)) {
			next = c
		}
	}

	// Eight days covers a schedule with a single weekday whose only edge
	// is earlier today.
	for off := 0; off <= 7; off++ {
		day := time.Date(y, m, d+off, 0, 0, 0, 0, loc)
		for _, span := range e.s.days[ISOWeekday(day)-1] {
			if span.End != Midnight && span.End < span.Start {
				continue
			}
			consider(at(day, span.Start))
			if span.End == Midnight {
				consider(time.Date(y, m, d+off+1, 0, 0, 0, 0, loc))
			} else {
				consider(at(day, span.End+1))
			}
		}
		if !next.IsZero() {
			return next
		}
	}
	return next
}

func at(day time.Time, tod TimeOfDay) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, tod.Hour(), tod.Minute(), tod.Second(), 0, day.Location())
}
