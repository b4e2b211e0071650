package systemd

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	logx "during/pkg/logx"
)

func listen(t *testing.T) *net.UnixConn {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("skipped, unix only")
	}
	// Socket paths are length limited, keep the directory short.
	dir, err := os.MkdirTemp("", "sd")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(dir) })

	path := filepath.Join(dir, "notify.sock")
	conn, err := net.ListenUnixgram("unixgram", &net.UnixAddr{Name: path, Net: "unixgram"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	t.Setenv("NOTIFY_SOCKET", path)
	return conn
}

func read(t *testing.T, conn *net.UnixConn) string {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	buf := make([]byte, 256)
	n, err := conn.Read(buf)
	require.NoError(t, err)
	return string(buf[:n])
}

func TestNoSocketIsNoop(t *testing.T) {
	t.Setenv("NOTIFY_SOCKET", "")
	n := NewNotifier(logx.Nop())

	sent, err := n.Ready()
	require.NoError(t, err)
	require.False(t, sent)

	sent, err = n.Status("idle")
	require.NoError(t, err)
	require.False(t, sent)
}

func TestMessagesReachSocket(t *testing.T) {
	conn := listen(t)
	n := NewNotifier(logx.Nop())

	sent, err := n.Ready()
	require.NoError(t, err)
	require.True(t, sent)
	require.Equal(t, "READY=1", read(t, conn))

	_, err = n.Status("running pid 42")
	require.NoError(t, err)
	require.Equal(t, "STATUS=running pid 42", read(t, conn))

	_, err = n.Stopping()
	require.NoError(t, err)
	require.Equal(t, "STOPPING=1", read(t, conn))
}

func TestWatchdogDisabledReturnsImmediately(t *testing.T) {
	t.Setenv("WATCHDOG_USEC", "")
	t.Setenv("WATCHDOG_PID", "")
	n := NewNotifier(logx.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	require.NoError(t, n.Watchdog(ctx))
}

func TestWatchdogPings(t *testing.T) {
	conn := listen(t)
	t.Setenv("WATCHDOG_USEC", "40000")
	t.Setenv("WATCHDOG_PID", "")
	n := NewNotifier(logx.Nop())

	interval, err := n.WatchdogInterval()
	require.NoError(t, err)
	require.Equal(t, 40*time.Millisecond, interval)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- n.Watchdog(ctx) }()

	require.Equal(t, "WATCHDOG=1", read(t, conn))
	cancel()
	require.NoError(t, <-done)
}
