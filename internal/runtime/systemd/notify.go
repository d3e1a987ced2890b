// Package systemd reports service state to the systemd notify socket.
// Outside systemd every call is a no-op.
package systemd

import (
	"context"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	logx "stockbot/pkg/logx"
)

type Notifier struct {
	log      logx.Logger
	notify   func(unsetEnv bool, state string) (bool, error)
	watchdog func(unsetEnv bool) (time.Duration, error)
}

func New(log logx.Logger) *Notifier {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Notifier{log: log, notify: daemon.SdNotify, watchdog: daemon.SdWatchdogEnabled}
}

func (n *Notifier) send(state string) bool {
	ok, err := n.notify(false, state)
	if err != nil {
		n.log.Warn("sd_notify failed", logx.String("state", state), logx.Err(err))
		return false
	}
	return ok
}

// Ready marks startup complete.
func (n *Notifier) Ready() {
	if n.send(daemon.SdNotifyReady) {
		n.log.Debug("systemd notified", logx.String("state", "ready"))
	}
}

func (n *Notifier) Stopping() { n.send(daemon.SdNotifyStopping) }

// Reloading brackets a config reload; call the returned func when done.
func (n *Notifier) Reloading() func() {
	n.send(daemon.SdNotifyReloading)
	return func() { n.send(daemon.SdNotifyReady) }
}

// Status sets the free-form unit status line.
func (n *Notifier) Status(s string) { n.send("STATUS=" + s) }

// Watchdog pings at half the configured WatchdogSec until ctx is done.
// It returns nil at once when the unit has no watchdog.
func (n *Notifier) Watchdog(ctx context.Context) error {
	every, err := n.watchdog(false)
	if err != nil {
		n.log.Warn("watchdog config invalid", logx.Err(err))
		return nil
	}
	if every <= 0 {
		return nil
	}
	every /= 2
	n.log.Info("systemd watchdog enabled", logx.Duration("interval", every))

	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			n.send(daemon.SdNotifyWatchdog)
		}
	}
}
