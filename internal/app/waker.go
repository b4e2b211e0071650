package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"during/internal/timespec"
	logx "during/pkg/logx"
)

// edgeWaker nudges the loop at every window boundary so the child starts and
// stops on time even with a coarse tick.
type edgeWaker struct {
	log   logx.Logger
	nudge func()

	mu      sync.Mutex
	c       *cron.Cron
	entryID cron.EntryID
}

func newEdgeWaker(log logx.Logger, nudge func()) *edgeWaker {
	return &edgeWaker{log: log, nudge: nudge}
}

// Start (re)registers the boundaries of s in loc. A running cron is replaced
// because its location is fixed at construction.
func (w *edgeWaker) Start(s *timespec.Schedule, loc *time.Location) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.c != nil {
		<-w.c.Stop().Done()
	}
	w.c = cron.New(cron.WithLocation(loc), cron.WithLogger(cronLogger{log: w.log}))
	w.entryID = w.c.Schedule(timespec.Edges(s), cron.FuncJob(w.nudge))
	w.c.Start()

	next := w.c.Entry(w.entryID).Next
	if next.IsZero() {
		// Entry.Next is filled in by the run loop; compute it directly.
		next = timespec.Edges(s).Next(time.Now().In(loc))
	}
	w.log.Debug("edge waker started", logx.String("tz", loc.String()), logx.Time("next", next))
}

// Next reports the next scheduled boundary, zero when there is none.
func (w *edgeWaker) Next() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.c == nil {
		return time.Time{}
	}
	return w.c.Entry(w.entryID).Next
}

func (w *edgeWaker) Stop(ctx context.Context) {
	w.mu.Lock()
	c := w.c
	w.c = nil
	w.mu.Unlock()

	if c == nil {
		return
	}
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
	}
}

// cronLogger routes cron's own diagnostics through logx.
type cronLogger struct {
	log logx.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Trace("cron: "+msg, kvFields(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error("cron: "+msg, append(kvFields(keysAndValues), logx.Err(err))...)
}

func kvFields(kv []interface{}) []logx.Field {
	out := make([]logx.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out = append(out, logx.Any(fmt.Sprint(kv[i]), kv[i+1]))
	}
	return out
}
