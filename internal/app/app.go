package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"during/internal/config"
	"during/internal/eventbus"
	"during/internal/process"
	"during/internal/runtime/routines"
	"during/internal/supervisor"
	"during/internal/window"
	logx "during/pkg/logx"
	"during/pkg/systemd"
)

// ErrNoCommand is returned when neither the command line nor the config
// file names a command.
var ErrNoCommand = errors.New("no command given")

const shutdownGrace = 5 * time.Second

type Options struct {
	// ConfigPath is optional. Without it the configuration comes from Overlay alone.
	ConfigPath string
	// Overlay applies command-line overrides. It runs on the initial config
	// and again on every reload.
	Overlay func(*config.Config)

	// LogOutput is the console sink (default stderr).
	LogOutput io.Writer
	// Spawner defaults to process.ExecSpawner.
	Spawner process.Spawner
}

type App struct {
	cfgm    *config.ConfigManager
	overlay func(*config.Config)

	logs *logx.Service
	log  logx.Logger

	oracle *window.Oracle
	loop   *supervisor.Loop
	waker  *edgeWaker
	notify *systemd.Notifier
	events *eventbus.Bus[supervisor.Snapshot]

	mu      sync.Mutex
	applied *config.Config
	watch   bool
}

func New(opts Options) (*App, error) {
	overlay := opts.Overlay
	if overlay == nil {
		overlay = func(*config.Config) {}
	}

	raw := &config.Config{}
	var cfgm *config.ConfigManager
	if opts.ConfigPath != "" {
		cfgm = config.NewConfigManager(opts.ConfigPath)
		cfg, err := cfgm.Load()
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", config.ErrConfig, opts.ConfigPath, err)
		}
		raw = cfg
	}

	cfg := merge(raw, overlay)
	rt, err := cfg.Resolve()
	if err != nil {
		return nil, err
	}
	if len(rt.Command) == 0 || rt.Command[0] == "" {
		return nil, fmt.Errorf("%w: %w", config.ErrConfig, ErrNoCommand)
	}

	logs, root := logx.NewTo(opts.LogOutput, cfg.Logging.Log())
	log := root.With(logx.String("comp", "app"))

	a := &App{
		cfgm:    cfgm,
		overlay: overlay,
		logs:    logs,
		log:     log,
		oracle:  window.New(rt.Schedule, rt.Clock),
		notify:  systemd.NewNotifier(root.With(logx.String("comp", "systemd"))),
		events:  eventbus.New[supervisor.Snapshot](),
		applied: cfg,
		watch:   cfg.Watch && cfgm != nil,
	}
	a.loop = supervisor.New(supervisor.Config{
		Command:   process.Command{Path: rt.Command[0], Args: rt.Command[1:]},
		Tick:      rt.Tick,
		KillAfter: rt.KillAfter,
	}, a.oracle, opts.Spawner,
		supervisor.WithLogger(root.With(logx.String("comp", "supervisor"))),
		supervisor.WithObserver(a.events.Publish),
	)
	a.waker = newEdgeWaker(root.With(logx.String("comp", "waker")), a.loop.Nudge)

	log.Debug("configured",
		logx.String("timespec", rt.Schedule.String()),
		logx.String("tz", rt.Clock.Location().String()),
		logx.Strs("command", rt.Command),
		logx.Duration("tick", rt.Tick),
		logx.Duration("kill_after", rt.KillAfter),
		logx.Bool("watch", a.watch),
	)
	return a, nil
}

func merge(raw *config.Config, overlay func(*config.Config)) *config.Config {
	cfg := *raw
	overlay(&cfg)
	return &cfg
}

func (a *App) Loop() *supervisor.Loop { return a.loop }

func (a *App) Oracle() *window.Oracle { return a.oracle }

// Run supervises the command until it completes inside a window, a fatal
// error occurs, or ctx is cancelled. The returned code is the process exit
// code to use.
func (a *App) Run(ctx context.Context) (int, error) {
	defer func() { _ = a.logs.Close() }()

	g := routines.New(ctx,
		routines.WithLogger(a.log.With(logx.String("comp", "routines"))),
		routines.WithCancelOnError(true),
	)

	a.waker.Start(a.oracle.Schedule(), a.oracle.Clock().Location())
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		a.waker.Stop(stopCtx)
	}()

	events, unsub := a.events.Subscribe(16)
	g.Go0("state.report", func(c context.Context) {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				a.report(e)
			}
		}
	})

	g.Go0("systemd.watchdog", func(c context.Context) {
		if err := a.notify.Watchdog(c); err != nil {
			a.log.Warn("systemd watchdog disabled", logx.Err(err))
		}
	})

	if a.watch {
		a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
		a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
			_, err := merge(cfg, a.overlay).Resolve()
			return err
		})
		sub := a.cfgm.Subscribe(4)
		g.Go0("config.reload", func(c context.Context) {
			defer a.cfgm.Unsubscribe(sub)
			for {
				select {
				case <-c.Done():
					return
				case cfg, ok := <-sub:
					if !ok {
						return
					}
					a.reload(cfg)
				}
			}
		})
		g.Go("config.watch", a.cfgm.Watch)
	}

	if _, err := a.notify.Ready(); err != nil {
		a.log.Warn("systemd ready notification failed", logx.Err(err))
	}

	code, err := a.loop.Run(g.Context())

	if _, nerr := a.notify.Stopping(); nerr != nil {
		a.log.Debug("systemd stopping notification failed", logx.Err(nerr))
	}
	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if werr := g.Stop(stopCtx); werr != nil && err == nil && !errors.Is(werr, context.DeadlineExceeded) {
		// A helper failed and cancelled the loop.
		return 1, werr
	}
	if err != nil {
		a.log.Error("supervision failed", logx.Err(err))
		return 1, err
	}
	a.log.Debug("finished", logx.Int("exit_code", code))
	return code, nil
}

// reload applies a new config file. The loop picks up the window on its next
// tick; process settings only change on restart.
func (a *App) reload(raw *config.Config) {
	cfg := merge(raw, a.overlay)
	rt, err := cfg.Resolve()
	if err != nil {
		// The validator already rejected this; keep the running config.
		a.log.Warn("config reload rejected", logx.Err(err))
		return
	}

	a.mu.Lock()
	prev := a.applied
	a.applied = cfg
	a.mu.Unlock()

	sections, attrs, restart := config.SummarizeConfigChange(prev, cfg)
	if len(sections) == 0 {
		return
	}
	a.logs.Apply(cfg.Logging.Log())
	a.oracle.Apply(rt.Schedule, rt.Clock)
	a.waker.Start(rt.Schedule, rt.Clock.Location())
	a.loop.Nudge()

	a.log.Info("config reloaded", append(attrs, logx.Strs("sections", sections))...)
	if restart {
		a.log.Warn("some changes take effect after restart", logx.Strs("sections", sections))
	}
}

// report mirrors a loop state change into the log and the systemd status line.
func (a *App) report(e eventbus.Event[supervisor.Snapshot]) {
	s := e.Data
	a.log.Debug("state changed",
		logx.String("state", s.State.String()),
		logx.Int("pid", s.Pid),
		logx.String("run_id", s.RunID),
		logx.Time("at", e.Time),
	)

	var status string
	switch s.State {
	case supervisor.StateRunning:
		status = fmt.Sprintf("running pid %d (run %d)", s.Pid, s.Runs)
	case supervisor.StateStopping:
		status = fmt.Sprintf("stopping pid %d", s.Pid)
	default:
		status = "waiting for window"
		if next := a.waker.Next(); !next.IsZero() {
			status += "; next change " + next.Format(time.RFC3339)
		}
	}
	if _, err := a.notify.Status(status); err != nil {
		a.log.Debug("systemd status notification failed", logx.Err(err))
	}
}
