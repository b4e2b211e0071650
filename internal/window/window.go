// Package window answers "is the command allowed to run right now".
package window

import (
	"sync/atomic"
	"time"

	"during/internal/clock"
	"during/internal/timespec"
)

// Activity is what the supervisor loop consults once per tick.
type Activity interface {
	Active() bool
}

// Func adapts a function to Activity.
type Func func() bool

func (f Func) Active() bool { return f() }

type binding struct {
	schedule *timespec.Schedule
	clock    clock.Clock
}

// Oracle evaluates a schedule against a clock. The pair can be replaced
// atomically (config reload); each schedule stays immutable.
type Oracle struct {
	cur atomic.Pointer[binding]
}

func New(s *timespec.Schedule, c clock.Clock) *Oracle {
	o := &Oracle{}
	o.Apply(s, c)
	return o
}

func (o *Oracle) Apply(s *timespec.Schedule, c clock.Clock) {
	if c == nil {
		c = clock.InZone(nil)
	}
	o.cur.Store(&binding{schedule: s, clock: c})
}

func (o *Oracle) Active() bool {
	b := o.cur.Load()
	return b.schedule.IsActive(b.clock.Now())
}

// ActiveAt evaluates t converted to the oracle's location.
func (o *Oracle) ActiveAt(t time.Time) bool {
	b := o.cur.Load()
	return b.schedule.IsActive(t.In(b.clock.Location()))
}

func (o *Oracle) Schedule() *timespec.Schedule { return o.cur.Load().schedule }

func (o *Oracle) Clock() clock.Clock { return o.cur.Load().clock }
