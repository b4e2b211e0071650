// Package clock resolves "now" in a configured timezone.
package clock

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Clock returns the current wall-clock instant in its location.
type Clock interface {
	Now() time.Time
	Location() *time.Location
}

// Zone is the real clock pinned to a location.
type Zone struct {
	loc *time.Location
}

// LoadZone resolves an IANA timezone name. An empty name means host local time.
func LoadZone(name string) (Zone, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Zone{loc: time.Local}, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return Zone{}, fmt.Errorf("unknown timezone %q: %w", name, err)
	}
	return Zone{loc: loc}, nil
}

// InZone returns a Zone for an already resolved location.
func InZone(loc *time.Location) Zone {
	if loc == nil {
		loc = time.Local
	}
	return Zone{loc: loc}
}

func (z Zone) Now() time.Time { return time.Now().In(z.Location()) }

func (z Zone) Location() *time.Location {
	if z.loc == nil {
		return time.Local
	}
	return z.loc
}

// Manual is a settable clock for tests.
type Manual struct {
	mu  sync.Mutex
	now time.Time
}

func NewManual(now time.Time) *Manual { return &Manual{now: now} }

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *Manual) Location() *time.Location {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now.Location()
}

func (m *Manual) Set(now time.Time) {
	m.mu.Lock()
	m.now = now
	m.mu.Unlock()
}

func (m *Manual) Advance(d time.Duration) time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
	return m.now
}
