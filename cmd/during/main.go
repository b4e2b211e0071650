package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"during/internal/app"
	"during/internal/config"
	"during/internal/process"
	"during/internal/timespec"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], os.Stderr, runApp)
	cancel()
	os.Exit(code)
}

type runner func(ctx context.Context, opts app.Options) (int, error)

func runApp(ctx context.Context, opts app.Options) (int, error) {
	a, err := app.New(opts)
	if err != nil {
		return 1, err
	}
	return a.Run(ctx)
}

// execute parses args, runs the wrapper and returns the process exit code.
func execute(ctx context.Context, args []string, stderr io.Writer, run runner) int {
	c := &cli{run: run}
	root := newRootCmd(c)
	root.SetArgs(args)
	root.SetErr(stderr)
	root.SetOut(stderr)

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "during: %s: %v\n", errorKind(err), err)
		if c.code == 0 {
			return 1
		}
		return c.code
	}
	return c.code
}

type cli struct {
	run  runner
	code int

	timespec   string
	timezone   string
	configPath string
	tick       string
	killAfter  string
	watch      bool
	logLevel   string
	logFile    string
	verbose    bool
}

func newRootCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "during [flags] [--] COMMAND [ARG...]",
		Short: "Run a command only during scheduled time windows",
		Long: `during starts COMMAND when the current time enters a window of the
timespec and asks it to terminate when the window closes. It exits with the
command's own status once the command finishes inside a window.

Timespec format: DAYS[HH:MM-HH:MM,...] groups joined by commas, days 1=Mon..7=Sun.
An end of 00:00 means end of day. Example: 12345[09:00-12:00,13:00-17:00],67[10:00-14:00]`,
		Version:       version(),
		Args:          cobra.ArbitraryArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := c.run(cmd.Context(), app.Options{
				ConfigPath: c.configPath,
				Overlay:    c.overlay(cmd.Flags(), args),
				LogOutput:  cmd.ErrOrStderr(),
			})
			c.code = code
			return err
		},
	}

	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return fmt.Errorf("%w: %w", config.ErrConfig, err)
	})

	f := cmd.Flags()
	// Everything after the command name belongs to the command.
	f.SetInterspersed(false)
	f.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		if name == "timezone" {
			name = "tz"
		}
		return pflag.NormalizedName(name)
	})

	f.StringVarP(&c.timespec, "timespec", "t", "", "active windows, e.g. 12345[09:00-17:00]")
	f.StringVar(&c.timezone, "tz", "", "IANA timezone for the windows (default: local time); alias --timezone")
	f.StringVarP(&c.configPath, "config", "c", "", "YAML or JSON config file; flags override it")
	f.StringVar(&c.tick, "tick", "", "polling interval (default 1s)")
	f.StringVar(&c.killAfter, "kill-after", "", "kill the command if it is still running this long after SIGTERM (default: never)")
	f.BoolVar(&c.watch, "watch", false, "reload timespec, timezone and logging when the config file changes")
	f.StringVar(&c.logLevel, "log-level", "", "log level: trace, debug, info, warn, error (default error)")
	f.StringVar(&c.logFile, "log-file", "", "also write JSON logs to this file")
	f.BoolVarP(&c.verbose, "verbose", "v", false, "debug logging to stderr")

	return cmd
}

// overlay applies only the flags that were given, so unset flags keep the
// config file values.
func (c *cli) overlay(fs *pflag.FlagSet, args []string) func(*config.Config) {
	argv := append([]string(nil), args...)
	return func(cfg *config.Config) {
		if fs.Changed("timespec") {
			cfg.Timespec = c.timespec
		}
		if fs.Changed("tz") {
			cfg.Timezone = c.timezone
		}
		if fs.Changed("tick") {
			cfg.Tick = c.tick
		}
		if fs.Changed("kill-after") {
			cfg.KillAfter = c.killAfter
		}
		if fs.Changed("watch") {
			cfg.Watch = c.watch
		}
		if fs.Changed("log-level") {
			cfg.Logging.Level = c.logLevel
			cfg.Logging.Console = true
		}
		if fs.Changed("log-file") {
			cfg.Logging.File = config.LoggingFile{Enabled: c.logFile != "", Path: c.logFile}
		}
		if c.verbose {
			cfg.Logging.Level = "debug"
			cfg.Logging.Console = true
		}
		if len(argv) > 0 {
			cfg.Command = argv
		}
	}
}

// errorKind names the failure class for the final diagnostic.
func errorKind(err error) string {
	switch {
	case errors.Is(err, timespec.ErrMalformedSpan):
		return "MalformedSpan"
	case errors.Is(err, timespec.ErrMalformedSpec):
		return "MalformedSpec"
	case errors.Is(err, process.ErrSpawn):
		return "SpawnFailure"
	case errors.Is(err, process.ErrSignal):
		return "SignalFailure"
	case errors.Is(err, process.ErrWait):
		return "WaitFailure"
	case errors.Is(err, config.ErrConfig):
		return "ConfigError"
	default:
		return "Failure"
	}
}

func version() string {
	info, ok := debug.ReadBuildInfo()
	if !ok || info.Main.Version == "" {
		return "devel"
	}
	v := info.Main.Version
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" && len(s.Value) >= 12 {
			v += " (" + s.Value[:12] + ")"
		}
	}
	return v
}
