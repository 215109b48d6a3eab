// Package systemd reports service state to systemd through sd_notify.
// Every call is a no-op when the process was not started by systemd.
package systemd

import (
	"context"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
)

// Notifier sends sd_notify states. The zero value is disabled.
type Notifier struct {
	enabled bool
}

func New(enabled bool) Notifier { return Notifier{enabled: enabled} }

func (n Notifier) send(state string) (bool, error) {
	if !n.enabled {
		return false, nil
	}
	return daemon.SdNotify(false, state)
}

// Ready reports startup completion. sent is false outside systemd.
func (n Notifier) Ready() (sent bool, err error) { return n.send(daemon.SdNotifyReady) }

func (n Notifier) Stopping() (bool, error) { return n.send(daemon.SdNotifyStopping) }

func (n Notifier) Reloading() (bool, error) { return n.send(daemon.SdNotifyReloading) }

// Status sets the free-form status line shown by systemctl status.
func (n Notifier) Status(s string) (bool, error) { return n.send("STATUS=" + s) }

// WatchdogInterval returns how often to ping, or 0 when WatchdogSec is unset.
func (n Notifier) WatchdogInterval() time.Duration {
	if !n.enabled {
		return 0
	}
	d, err := daemon.SdWatchdogEnabled(false)
	if err != nil || d <= 0 {
		return 0
	}
	return d / 2
}

// Watchdog pings until ctx is done. alive is consulted before each ping so a
// wedged process stops pinging and gets restarted.
func (n Notifier) Watchdog(ctx context.Context, alive func() bool) {
	every := n.WatchdogInterval()
	if every <= 0 {
		return
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if alive == nil || alive() {
				_, _ = n.send(daemon.SdNotifyWatchdog)
			}
		}
	}
}
