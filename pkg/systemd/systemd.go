// Package systemd reports service readiness and status to the service manager.
// Every call is a no-op outside a Type=notify unit.
package systemd

import (
	"context"
	"fmt"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	logx "during/pkg/logx"
)

type Notifier struct {
	log logx.Logger
}

func NewNotifier(log logx.Logger) *Notifier {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Notifier{log: log}
}

// Ready reports startup complete. sent is false when no notify socket is configured.
func (n *Notifier) Ready() (sent bool, err error) {
	return n.send(daemon.SdNotifyReady)
}

func (n *Notifier) Status(msg string) (bool, error) {
	return n.send("STATUS=" + msg)
}

func (n *Notifier) Stopping() (bool, error) {
	return n.send(daemon.SdNotifyStopping)
}

func (n *Notifier) send(state string) (bool, error) {
	sent, err := daemon.SdNotify(false, state)
	if err != nil {
		return false, fmt.Errorf("sd_notify %q: %w", state, err)
	}
	return sent, nil
}

// WatchdogInterval is the configured watchdog timeout, zero when disabled.
func (n *Notifier) WatchdogInterval() (time.Duration, error) {
	return daemon.SdWatchdogEnabled(false)
}

// Watchdog pings the service manager at half the watchdog timeout until ctx
// is done. It returns immediately when the watchdog is disabled.
func (n *Notifier) Watchdog(ctx context.Context) error {
	interval, err := n.WatchdogInterval()
	if err != nil {
		return fmt.Errorf("watchdog: %w", err)
	}
	if interval <= 0 {
		return nil
	}
	ticker := time.NewTicker(interval / 2)
	defer ticker.Stop()

	n.log.Debug("systemd watchdog enabled", logx.Duration("timeout", interval))
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := n.send(daemon.SdNotifyWatchdog); err != nil {
				n.log.Warn("watchdog ping failed", logx.Err(err))
			}
		}
	}
}
