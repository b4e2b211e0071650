package timespec

import (
	"errors"
	"testing"
	"time"
)

func TestParseSpan(t *testing.T) {
	t.Parallel()
	tests := []struct {
		raw   string
		start TimeOfDay
		end   TimeOfDay
	}{
		{raw: "09:00-17:00", start: Clock(9, 0, 0), end: Clock(17, 0, 0)},
		{raw: "00:00-23:59", start: 0, end: Clock(23, 59, 0)},
		{raw: "22:30-00:00", start: Clock(22, 30, 0), end: Midnight},
		{raw: "13:00-12:00", start: Clock(13, 0, 0), end: Clock(12, 0, 0)},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseSpan(tt.raw)
			if err != nil {
				t.Fatalf("ParseSpan(%q) error: %v", tt.raw, err)
			}
			if got.Start != tt.start || got.End != tt.end {
				t.Fatalf("ParseSpan(%q) = %v, want %v-%v", tt.raw, got, tt.start, tt.end)
			}
			if got.String() != tt.raw {
				t.Fatalf("String() = %q, want %q", got.String(), tt.raw)
			}
			again, err := ParseSpan(got.String())
			if err != nil || again != got {
				t.Fatalf("round trip = %v (%v), want %v", again, err, got)
			}
		})
	}
}

func TestParseSpanInvalid(t *testing.T) {
	t.Parallel()
	for _, raw := range []string{
		"",
		"09:00",
		"09:00/17:00",
		"25:00-26:00",
		"24:00-01:00",
		"09:60-10:00",
		"09:00-10:61",
		"9:00-10:00",
		"09:00-10:00-11:00",
		"09:00 - 10:00",
		"ab:cd-ef:gh",
	} {
		if _, err := ParseSpan(raw); !errors.Is(err, ErrMalformedSpan) {
			t.Fatalf("ParseSpan(%q) error = %v, want ErrMalformedSpan", raw, err)
		}
	}
}

func TestContainsInclusiveBoundaries(t *testing.T) {
	t.Parallel()
	span := TimeSpan{Start: Clock(9, 0, 0), End: Clock(17, 0, 0)}

	if !span.Contains(span.Start) || !span.Contains(span.End) {
		t.Fatal("both boundaries must be contained")
	}
	if span.Contains(Clock(8, 59, 59)) {
		t.Fatal("08:59:59 must be outside")
	}
	if span.Contains(Clock(17, 0, 1)) {
		t.Fatal("17:00:01 must be outside")
	}
}

func TestContainsMidnightSentinel(t *testing.T) {
	t.Parallel()
	span := TimeSpan{Start: Clock(22, 0, 0), End: Midnight}

	if !span.Contains(span.Start) {
		t.Fatal("start must be contained")
	}
	if !span.Contains(Clock(23, 59, 59)) {
		t.Fatal("span ending at 00:00 must run to the end of the day")
	}
	if span.Contains(Clock(0, 0, 0)) || span.Contains(Clock(21, 59, 59)) {
		t.Fatal("times before start must be outside")
	}

	allDay := TimeSpan{Start: 0, End: Midnight}
	if !allDay.Contains(0) || !allDay.Contains(Clock(12, 0, 0)) {
		t.Fatal("00:00-00:00 must cover the whole day")
	}
}

func TestContainsNoWraparound(t *testing.T) {
	t.Parallel()
	span := TimeSpan{Start: Clock(22, 0, 0), End: Clock(2, 0, 0)}
	for _, tod := range []TimeOfDay{Clock(23, 0, 0), Clock(1, 0, 0), Clock(12, 0, 0)} {
		if span.Contains(tod) {
			t.Fatalf("reversed span must not contain %v", tod)
		}
	}
}

func TestTimeOfDayOf(t *testing.T) {
	t.Parallel()
	ts := time.Date(2024, 1, 1, 17, 0, 0, 900_000_000, time.UTC)
	if got := TimeOfDayOf(ts); got != Clock(17, 0, 0) {
		t.Fatalf("TimeOfDayOf = %v, want 17:00 (sub-second dropped)", got)
	}
	if s := Clock(8, 5, 9).String(); s != "08:05:09" {
		t.Fatalf("String = %q", s)
	}
}
