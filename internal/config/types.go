package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"during/internal/clock"
	"during/internal/timespec"
	logx "during/pkg/logx"
)

// ErrConfig marks configuration that cannot be used as given.
var ErrConfig = errors.New("invalid config")

const DefaultTick = time.Second

// Config is the on-disk configuration. Command-line flags override it.
//
// Example (YAML):
//
//	timespec: "12345[09:00-17:00],67[10:00-12:00]"
//	timezone: Europe/Berlin
//	command: ["rsync", "-a", "/src/", "/dst/"]
//	kill_after: 30s
//	watch: true
//	logging:
//	  level: info
//	  console: true
type Config struct {
	Timespec string `json:"timespec"`
	// Timezone is an IANA name. Empty means host local time.
	Timezone string `json:"timezone,omitempty"`
	// Command is used when none is given on the command line.
	Command []string `json:"command,omitempty"`

	// Tick is a Go duration string (default "1s").
	Tick string `json:"tick,omitempty"`
	// KillAfter is a Go duration string. "0s" or empty never escalates.
	KillAfter string `json:"kill_after,omitempty"`

	// Watch reloads timespec, timezone and logging when the file changes.
	Watch bool `json:"watch,omitempty"`

	Logging LoggingConfig `json:"logging"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// Log converts the logging section for logx.
func (l LoggingConfig) Log() logx.Config {
	return logx.Config{
		Level:   l.Level,
		Console: l.Console,
		File:    logx.FileConfig{Enabled: l.File.Enabled, Path: l.File.Path},
	}
}

// Runtime is a validated Config in typed form.
type Runtime struct {
	Schedule  *timespec.Schedule
	Clock     clock.Zone
	Command   []string
	Tick      time.Duration
	KillAfter time.Duration
}

// Resolve validates c and converts it. Timespec errors keep their own kind
// (errors.Is matches both ErrConfig and the timespec sentinel).
func (c *Config) Resolve() (Runtime, error) {
	if c == nil {
		return Runtime{}, fmt.Errorf("%w: config is nil", ErrConfig)
	}
	var rt Runtime

	if strings.TrimSpace(c.Timespec) == "" {
		return Runtime{}, fmt.Errorf("%w: timespec is required", ErrConfig)
	}
	s, err := timespec.Parse(c.Timespec)
	if err != nil {
		return Runtime{}, fmt.Errorf("%w: timespec: %w", ErrConfig, err)
	}
	rt.Schedule = s

	if rt.Clock, err = clock.LoadZone(c.Timezone); err != nil {
		return Runtime{}, fmt.Errorf("%w: timezone: %w", ErrConfig, err)
	}

	if rt.Tick, err = ParseDurationOrDefault("tick", c.Tick, DefaultTick); err != nil {
		return Runtime{}, fmt.Errorf("%w: %w", ErrConfig, err)
	}
	if rt.KillAfter, err = ParseDurationField("kill_after", c.KillAfter); err != nil {
		return Runtime{}, fmt.Errorf("%w: %w", ErrConfig, err)
	}

	if !logx.KnownLevel(c.Logging.Level) {
		return Runtime{}, fmt.Errorf("%w: logging.level: unknown level %q", ErrConfig, c.Logging.Level)
	}
	if c.Logging.File.Enabled && strings.TrimSpace(c.Logging.File.Path) == "" {
		return Runtime{}, fmt.Errorf("%w: logging.file.path is required when file logging is enabled", ErrConfig)
	}

	rt.Command = append([]string(nil), c.Command...)
	return rt, nil
}
