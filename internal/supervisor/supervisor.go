package supervisor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"during/internal/process"
	"during/internal/window"
	logx "during/pkg/logx"
)

const DefaultTick = time.Second

type State int

const (
	StateIdle State = iota
	StateRunning
	// StateStopping is Running with the termination request latched.
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

type Config struct {
	Command process.Command
	// Tick is the polling interval. Defaults to DefaultTick.
	Tick time.Duration
	// KillAfter escalates to a forceful kill when the child is still alive
	// this long after the termination signal. Zero waits forever.
	KillAfter time.Duration
}

// Outcome of one tick. Done means the child finished inside its window
// and the program should exit with ExitCode.
type Outcome struct {
	Done     bool
	ExitCode int
}

// Snapshot is a point-in-time view of the loop, for status reporting.
type Snapshot struct {
	State       State
	Pid         int
	RunID       string
	StartedAt   time.Time
	StopAskedAt time.Time
	Runs        int
	Terms       int
	Kills       int
}

// Observer is called from the loop goroutine after every state change.
type Observer func(Snapshot)

type Option func(*Loop)

func WithLogger(log logx.Logger) Option { return func(l *Loop) { l.log = log } }

func WithObserver(fn Observer) Option { return func(l *Loop) { l.observer = fn } }

// WithClock sets the time source used for KillAfter accounting.
func WithClock(now func() time.Time) Option { return func(l *Loop) { l.now = now } }

type Loop struct {
	cfg      Config
	activity window.Activity
	spawner  process.Spawner
	log      logx.Logger
	observer Observer
	now      func() time.Time
	wake     chan struct{}
	stopWarn *rate.Limiter

	mu            sync.Mutex
	child         process.Process
	runID         string
	startedAt     time.Time
	termRequested bool
	termAt        time.Time
	killSent      bool
	runs          int
	terms         int
	kills         int
}

func New(cfg Config, activity window.Activity, spawner process.Spawner, opts ...Option) *Loop {
	if cfg.Tick <= 0 {
		cfg.Tick = DefaultTick
	}
	if spawner == nil {
		spawner = process.ExecSpawner{}
	}
	l := &Loop{
		cfg:      cfg,
		activity: activity,
		spawner:  spawner,
		now:      time.Now,
		wake:     make(chan struct{}, 1),
		stopWarn: rate.NewLimiter(rate.Every(30*time.Second), 1),
	}
	for _, o := range opts {
		o(l)
	}
	if l.log.IsZero() {
		l.log = logx.Nop()
	}
	return l
}

// Nudge requests an early tick. It never blocks.
func (l *Loop) Nudge() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

func (l *Loop) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stateLocked()
}

func (l *Loop) stateLocked() State {
	switch {
	case l.child == nil:
		return StateIdle
	case l.termRequested:
		return StateStopping
	default:
		return StateRunning
	}
}

func (l *Loop) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshotLocked()
}

func (l *Loop) snapshotLocked() Snapshot {
	s := Snapshot{
		State:       l.stateLocked(),
		RunID:       l.runID,
		StartedAt:   l.startedAt,
		StopAskedAt: l.termAt,
		Runs:        l.runs,
		Terms:       l.terms,
		Kills:       l.kills,
	}
	if l.child != nil {
		s.Pid = l.child.Pid()
	}
	return s
}

// Run ticks until the child completes inside a window, a fatal error
// occurs, or ctx is cancelled. On cancellation a live child is asked to
// terminate and awaited; the returned code is then 0.
func (l *Loop) Run(ctx context.Context) (int, error) {
	ticker := time.NewTicker(l.cfg.Tick)
	defer ticker.Stop()

	l.log.Debug("loop started", logx.Duration("tick", l.cfg.Tick), logx.Duration("kill_after", l.cfg.KillAfter))
	for {
		if ctx.Err() != nil {
			return 0, l.shutdown()
		}

		out, err := l.Step()
		if err != nil {
			l.abandon()
			return 1, err
		}
		if out.Done {
			return out.ExitCode, nil
		}

		select {
		case <-ctx.Done():
		case <-ticker.C:
		case <-l.wake:
		}
	}
}

// Step performs exactly one tick.
func (l *Loop) Step() (Outcome, error) {
	l.mu.Lock()
	before := l.stateLocked()
	out, err := l.stepLocked()
	changed := l.stateLocked() != before
	snap := l.snapshotLocked()
	l.mu.Unlock()

	if changed && l.observer != nil {
		l.observer(snap)
	}
	return out, err
}

func (l *Loop) stepLocked() (Outcome, error) {
	if l.child == nil {
		if !l.activity.Active() {
			return Outcome{}, nil
		}
		return Outcome{}, l.spawnLocked()
	}

	status, exited, err := l.child.Poll()
	if err != nil {
		return Outcome{}, kind(process.ErrWait, err)
	}
	if exited {
		log := l.runLog()
		if !l.termRequested {
			log.Info("command finished inside window", logx.Int("exit_code", status.ExitCode), logx.String("signal", status.Signal))
			return Outcome{Done: true, ExitCode: status.ExitCode}, nil
		}
		log.Info("command stopped; waiting for next window",
			logx.Int("exit_code", status.ExitCode),
			logx.String("signal", status.Signal),
			logx.Duration("took", l.now().Sub(l.termAt)),
		)
		l.resetLocked()
		return Outcome{}, nil
	}

	if l.activity.Active() {
		return Outcome{}, nil
	}

	if !l.termRequested {
		if err := l.child.Terminate(); err != nil {
			return Outcome{}, kind(process.ErrSignal, err)
		}
		l.termRequested = true
		l.termAt = l.now()
		l.terms++
		l.runLog().Info("window closed; termination requested")
		return Outcome{}, nil
	}

	waited := l.now().Sub(l.termAt)
	if l.cfg.KillAfter > 0 && !l.killSent && waited >= l.cfg.KillAfter {
		if err := l.child.Kill(); err != nil {
			return Outcome{}, kind(process.ErrSignal, err)
		}
		l.killSent = true
		l.kills++
		l.runLog().Warn("command ignored termination; killed", logx.Duration("waited", waited))
		return Outcome{}, nil
	}
	if l.stopWarn.Allow() && waited > 0 {
		l.runLog().Warn("still waiting for command to exit", logx.Duration("waited", waited))
	}
	return Outcome{}, nil
}

func (l *Loop) spawnLocked() error {
	p, err := l.spawner.Spawn(l.cfg.Command)
	if err != nil {
		return kind(process.ErrSpawn, err)
	}
	l.child = p
	l.runID = uuid.NewString()
	l.startedAt = l.now()
	l.runs++
	l.runLog().Info("window open; command started", logx.Strs("argv", l.cfg.Command.Argv()))
	return nil
}

func (l *Loop) resetLocked() {
	l.child = nil
	l.runID = ""
	l.startedAt = time.Time{}
	l.termRequested = false
	l.termAt = time.Time{}
	l.killSent = false
}

func (l *Loop) runLog() logx.Logger {
	fields := []logx.Field{logx.String("run_id", l.runID)}
	if l.child != nil {
		fields = append(fields, logx.Int("pid", l.child.Pid()))
	}
	return l.log.With(fields...)
}

// abandon makes a best-effort attempt not to leave an uncontrolled child
// behind after a fatal error.
func (l *Loop) abandon() {
	l.mu.Lock()
	child := l.child
	log := l.runLog()
	l.mu.Unlock()
	if child == nil {
		return
	}
	if err := child.Kill(); err != nil {
		log.Error("could not kill command after fatal error", logx.Err(err))
	}
}

// shutdown forwards termination to a live child and waits for it to exit.
func (l *Loop) shutdown() error {
	l.mu.Lock()
	child := l.child
	if child == nil {
		l.mu.Unlock()
		return nil
	}
	if !l.termRequested {
		if err := child.Terminate(); err != nil {
			l.mu.Unlock()
			return kind(process.ErrSignal, err)
		}
		l.termRequested = true
		l.termAt = l.now()
		l.terms++
	}
	var killC <-chan time.Time
	if l.cfg.KillAfter > 0 && !l.killSent {
		t := time.NewTimer(max(l.cfg.KillAfter-l.now().Sub(l.termAt), 0))
		defer t.Stop()
		killC = t.C
	}
	log := l.runLog()
	snap := l.snapshotLocked()
	l.mu.Unlock()

	log.Info("shutting down; waiting for command to exit")
	if l.observer != nil {
		l.observer(snap)
	}

	for {
		select {
		case <-child.Done():
			status, _, err := child.Poll()
			l.mu.Lock()
			l.resetLocked()
			snap := l.snapshotLocked()
			l.mu.Unlock()
			if l.observer != nil {
				l.observer(snap)
			}
			if err != nil {
				return kind(process.ErrWait, err)
			}
			log.Info("command stopped on shutdown", logx.Int("exit_code", status.ExitCode), logx.String("signal", status.Signal))
			return nil
		case <-killC:
			killC = nil
			if err := child.Kill(); err != nil {
				return kind(process.ErrSignal, err)
			}
			l.mu.Lock()
			l.killSent = true
			l.kills++
			l.mu.Unlock()
			log.Warn("command ignored termination on shutdown; killed")
		}
	}
}

func kind(sentinel, err error) error {
	if errors.Is(err, sentinel) {
		return err
	}
	return fmt.Errorf("%w: %w", sentinel, err)
}
