package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"during/internal/app"
	"during/internal/config"
	"during/internal/process"
	"during/internal/timespec"
)

// capture records the options the CLI would start the app with.
func capture(code int, err error) (runner, *app.Options) {
	var got app.Options
	return func(_ context.Context, opts app.Options) (int, error) {
		got = opts
		return code, err
	}, &got
}

func resolved(t *testing.T, opts *app.Options, base config.Config) config.Config {
	t.Helper()
	require.NotNil(t, opts.Overlay)
	opts.Overlay(&base)
	return base
}

func TestFlagsStopAtCommand(t *testing.T) {
	run, opts := capture(0, nil)
	var stderr bytes.Buffer
	code := execute(context.Background(),
		[]string{"-t", "12345[09:00-17:00]", "--timezone", "UTC", "rsync", "-a", "--delete", "src/", "dst/"},
		&stderr, run)
	require.Equal(t, 0, code)
	require.Empty(t, stderr.String())

	cfg := resolved(t, opts, config.Config{})
	require.Equal(t, "12345[09:00-17:00]", cfg.Timespec)
	require.Equal(t, "UTC", cfg.Timezone)
	require.Equal(t, []string{"rsync", "-a", "--delete", "src/", "dst/"}, cfg.Command)
}

func TestDoubleDashSeparator(t *testing.T) {
	run, opts := capture(0, nil)
	code := execute(context.Background(), []string{"--tz", "UTC", "-t", "1[09:00-10:00]", "--", "-weird-name"}, &bytes.Buffer{}, run)
	require.Equal(t, 0, code)
	require.Equal(t, []string{"-weird-name"}, resolved(t, opts, config.Config{}).Command)
}

func TestUnsetFlagsKeepFileValues(t *testing.T) {
	run, opts := capture(0, nil)
	execute(context.Background(), []string{"-c", "during.yaml", "--kill-after", "5s"}, &bytes.Buffer{}, run)
	require.Equal(t, "during.yaml", opts.ConfigPath)

	cfg := resolved(t, opts, config.Config{
		Timespec: "7[10:00-12:00]",
		Tick:     "2s",
		Command:  []string{"backup"},
	})
	require.Equal(t, "7[10:00-12:00]", cfg.Timespec)
	require.Equal(t, "2s", cfg.Tick)
	require.Equal(t, "5s", cfg.KillAfter)
	require.Equal(t, []string{"backup"}, cfg.Command)
}

func TestVerboseEnablesDebugConsole(t *testing.T) {
	run, opts := capture(0, nil)
	execute(context.Background(), []string{"-v", "-t", "1[09:00-10:00]", "true"}, &bytes.Buffer{}, run)

	cfg := resolved(t, opts, config.Config{})
	require.Equal(t, "debug", cfg.Logging.Level)
	require.True(t, cfg.Logging.Console)
}

func TestChildExitCodeIsReturned(t *testing.T) {
	run, _ := capture(42, nil)
	require.Equal(t, 42, execute(context.Background(), []string{"-t", "1[09:00-10:00]", "false"}, &bytes.Buffer{}, run))
}

func TestFailureNamesErrorKind(t *testing.T) {
	run, _ := capture(1, fmt.Errorf("%w: nope", process.ErrSpawn))
	var stderr bytes.Buffer
	code := execute(context.Background(), []string{"-t", "1[09:00-10:00]", "nope"}, &stderr, run)
	require.Equal(t, 1, code)
	require.Contains(t, stderr.String(), "SpawnFailure")
}

func TestUnknownFlagIsConfigError(t *testing.T) {
	run, _ := capture(0, nil)
	var stderr bytes.Buffer
	code := execute(context.Background(), []string{"--no-such-flag", "true"}, &stderr, run)
	require.Equal(t, 1, code)
	require.Contains(t, stderr.String(), "ConfigError")
}

func TestHelpExitsZero(t *testing.T) {
	run, opts := capture(1, errors.New("must not run"))
	var out bytes.Buffer
	require.Equal(t, 0, execute(context.Background(), []string{"--help"}, &out, run))
	require.Contains(t, out.String(), "Timespec format")
	require.Nil(t, opts.Overlay)
}

func TestErrorKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{fmt.Errorf("%w: x", timespec.ErrMalformedSpan), "MalformedSpan"},
		{fmt.Errorf("%w: %w", config.ErrConfig, timespec.ErrMalformedSpan), "MalformedSpan"},
		{timespec.ErrMalformedSpec, "MalformedSpec"},
		{process.ErrSpawn, "SpawnFailure"},
		{process.ErrSignal, "SignalFailure"},
		{process.ErrWait, "WaitFailure"},
		{fmt.Errorf("%w: bad tick", config.ErrConfig), "ConfigError"},
		{errors.New("other"), "Failure"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, errorKind(tt.err), tt.err.Error())
	}
}

func TestEndToEndMalformedSpec(t *testing.T) {
	var stderr bytes.Buffer
	code := execute(context.Background(), []string{"-t", "every day", "true"}, &stderr, runApp)
	require.Equal(t, 1, code)
	require.Contains(t, stderr.String(), "MalformedSpec")
}
