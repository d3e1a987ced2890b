package systemd

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	logx "stockbot/pkg/logx"
)

type recorder struct {
	mu     sync.Mutex
	states []string
}

func (r *recorder) notify(_ bool, state string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, state)
	return true, nil
}

func (r *recorder) count(state string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.states {
		if s == state {
			n++
		}
	}
	return n
}

func newTestNotifier(r *recorder, wd time.Duration, wdErr error) *Notifier {
	n := New(logx.Nop())
	n.notify = r.notify
	n.watchdog = func(bool) (time.Duration, error) { return wd, wdErr }
	return n
}

func TestLifecycleStates(t *testing.T) {
	t.Parallel()
	r := &recorder{}
	n := newTestNotifier(r, 0, nil)

	n.Ready()
	done := n.Reloading()
	done()
	n.Status("polling")
	n.Stopping()

	want := []string{
		daemon.SdNotifyReady,
		daemon.SdNotifyReloading,
		daemon.SdNotifyReady,
		"STATUS=polling",
		daemon.SdNotifyStopping,
	}
	if len(r.states) != len(want) {
		t.Fatalf("states=%v", r.states)
	}
	for i := range want {
		if r.states[i] != want[i] {
			t.Fatalf("state[%d]=%q want %q", i, r.states[i], want[i])
		}
	}
}

func TestWatchdogDisabledReturnsImmediately(t *testing.T) {
	t.Parallel()
	for _, tc := range []struct {
		name string
		wd   time.Duration
		err  error
	}{
		{"no watchdog", 0, nil},
		{"bad env", 0, errors.New("bad WATCHDOG_USEC")},
	} {
		t.Run(tc.name, func(t *testing.T) {
			r := &recorder{}
			n := newTestNotifier(r, tc.wd, tc.err)
			if err := n.Watchdog(context.Background()); err != nil {
				t.Fatalf("err=%v", err)
			}
			if len(r.states) != 0 {
				t.Fatalf("unexpected notify: %v", r.states)
			}
		})
	}
}

func TestWatchdogPings(t *testing.T) {
	t.Parallel()
	r := &recorder{}
	n := newTestNotifier(r, 20*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- n.Watchdog(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for r.count(daemon.SdNotifyWatchdog) < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("watchdog pings=%d", r.count(daemon.SdNotifyWatchdog))
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("err=%v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("watchdog did not stop")
	}
}
