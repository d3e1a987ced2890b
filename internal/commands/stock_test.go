package commands

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"stockbot/internal/fault"
	"stockbot/internal/inventory"
	"stockbot/internal/notifier"
	"stockbot/internal/poller"
	rtsup "stockbot/internal/runtime/supervisor"
	"stockbot/internal/storage"
	"stockbot/internal/subscription"
	kit "stockbot/internal/transport"
	"stockbot/internal/transport/telegram/router"
	logx "stockbot/pkg/logx"
)

type replyRecorder struct {
	mu    sync.Mutex
	texts []string
}

func (r *replyRecorder) Start(context.Context, chan<- kit.Update) error { return nil }
func (r *replyRecorder) Stop(context.Context) error                     { return nil }
func (r *replyRecorder) SendText(_ context.Context, to kit.ChatTarget, text string, _ *kit.SendOptions) (kit.MessageRef, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.texts = append(r.texts, text)
	return kit.MessageRef{ChatID: to.ChatID}, nil
}
func (r *replyRecorder) SendSummary(context.Context, kit.ChatTarget, kit.Summary) (kit.MessageRef, error) {
	return kit.MessageRef{}, nil
}

func (r *replyRecorder) last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.texts) == 0 {
		return ""
	}
	return r.texts[len(r.texts)-1]
}

type fakePoller struct {
	state   *poller.State
	next    time.Time
	enabled []bool
	out     poller.Outcome
	err     error
	scopes  []poller.Scope
}

func (f *fakePoller) ManualScrape(_ context.Context, scope poller.Scope) (poller.Outcome, error) {
	f.scopes = append(f.scopes, scope)
	return f.out, f.err
}

func (f *fakePoller) SetAutoscrape(on bool) time.Time {
	f.enabled = append(f.enabled, on)
	f.state.SetEnabled(on)
	if !on {
		return time.Time{}
	}
	return f.next
}

func (f *fakePoller) Status() (poller.Status, string) { return f.state.Status(), poller.DefaultSchedule }
func (f *fakePoller) State() *poller.State            { return f.state }

type memStore struct {
	mu    sync.Mutex
	subs  map[string][]string
	audit []storage.AuditEntry
	err   error
}

func (m *memStore) LoadSubscriptions(context.Context) (map[string][]string, error) { return m.subs, nil }
func (m *memStore) SaveSubscriptions(_ context.Context, subs map[string][]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.subs = subs
	return nil
}
func (m *memStore) AppendAudit(_ context.Context, e storage.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audit = append(m.audit, e)
	return nil
}

type fixture struct {
	stock  *Stock
	poller *fakePoller
	store  *memStore
	subs   *subscription.Service
	ad     *replyRecorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := poller.NewState(true, 5*time.Minute)
	var snap inventory.Snapshot
	snap.Add("SEEDS STOCK", inventory.Item{Name: "Carrot Seed", Quantity: "x3"})
	snap.Add("SEEDS STOCK", inventory.Item{Name: "Tomato Seed", Quantity: "x1"})
	snap.Add("GEAR STOCK", inventory.Item{Name: "Watering Can", Quantity: "x2"})
	st.Commit(snap, nil, inventory.NewPolicy(inventory.DefaultAlwaysNotify), time.Date(2025, 6, 1, 14, 1, 0, 0, time.UTC))

	store := &memStore{}
	subs := subscription.New(store, subscription.DefaultCutoff, logx.Nop())
	fp := &fakePoller{state: st, next: time.Date(2025, 6, 1, 14, 6, 0, 0, time.UTC)}
	clock := time.Date(2025, 6, 1, 14, 3, 0, 0, time.UTC)
	s := New(Deps{Poller: fp, Subs: subs, Audit: store, Log: logx.Nop(), Now: func() time.Time { return clock }})
	return &fixture{stock: s, poller: fp, store: store, subs: subs, ad: &replyRecorder{}}
}

func (f *fixture) run(t *testing.T, from int64, name, args string) (string, error) {
	t.Helper()
	for _, c := range f.stock.Commands() {
		if c.Name != name {
			continue
		}
		req := &router.Request{
			Chat:    kit.ChatTarget{ChatID: -100},
			FromID:  from,
			Command: name,
			RawArgs: args,
			Args:    strings.Fields(args),
			Adapter: f.ad,
			Logger:  logx.Nop(),
		}
		err := c.Handle(context.Background(), req)
		return f.ad.last(), err
	}
	t.Fatalf("no command %q", name)
	return "", nil
}

func TestSubscribeFuzzyAndAsTyped(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	got, err := f.run(t, 7, "sub", "carot seed, xyz123")
	if err != nil {
		t.Fatalf("sub: %v", err)
	}
	want := "✅ Subscribed to: **Carrot Seed**, **xyz123**\nNo close match for **xyz123**, added as-is."
	if got != want {
		t.Fatalf("reply=%q\nwant %q", got, want)
	}
	if list := f.subs.List("7"); strings.Join(list, "|") != "Carrot Seed|xyz123" {
		t.Fatalf("list=%v", list)
	}

	got, _ = f.run(t, 7, "sub", "Carrot Seed")
	if got != "Already subscribed to **Carrot Seed**." {
		t.Fatalf("repeat reply=%q", got)
	}
	if list := f.subs.List("7"); len(list) != 2 {
		t.Fatalf("repeat subscribe changed list: %v", list)
	}
}

func TestSubscribeEmptyIsUsageError(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	got, err := f.run(t, 7, "sub", " , ")
	if !errors.Is(err, ErrUsage) || got != "⚠️ No valid items to subscribe." {
		t.Fatalf("reply=%q err=%v", got, err)
	}
	if len(f.store.audit) != 1 || f.store.audit[0].OK || f.store.audit[0].Command != "sub" {
		t.Fatalf("audit=%+v", f.store.audit)
	}
}

func TestSubscribeSaveFailureReported(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.store.err = errors.New("disk full")

	got, err := f.run(t, 7, "sub", "tomato seed")
	if err == nil || !strings.Contains(got, "Could not save") {
		t.Fatalf("reply=%q err=%v", got, err)
	}
	if list := f.subs.List("7"); len(list) != 1 {
		t.Fatalf("in-memory table should still hold the item: %v", list)
	}
}

func TestUnsubscribeAndMyList(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	if got, _ := f.run(t, 7, "mylist", ""); got != "📭 You have no subscriptions." {
		t.Fatalf("empty mylist=%q", got)
	}
	_, _ = f.run(t, 7, "sub", "Carrot Seed, Tomato Seed")
	if got, _ := f.run(t, 7, "mylist", ""); got != "📦 Your subscriptions: **Carrot Seed**, **Tomato Seed**" {
		t.Fatalf("mylist=%q", got)
	}

	got, err := f.run(t, 7, "unsub", "carrot seed, Beanstalk")
	if err != nil {
		t.Fatal(err)
	}
	if want := "❌ Unsubscribed: **Carrot Seed**\nNot subscribed to **Beanstalk**."; got != want {
		t.Fatalf("unsub=%q want %q", got, want)
	}
	_, _ = f.run(t, 7, "unsub", "tomato seed")
	if _, ok := f.subs.Snapshot()["7"]; ok {
		t.Fatalf("user with empty list should be dropped")
	}
}

func TestAutoscrape(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	got, err := f.run(t, 1, "autoscrape", "off")
	if err != nil || got != "⏸️ Auto-scrape disabled" {
		t.Fatalf("off: %q %v", got, err)
	}
	if f.poller.state.Enabled() {
		t.Fatalf("state still enabled")
	}
	got, err = f.run(t, 1, "autoscrape", "ON")
	if err != nil || got != "✅ Auto-scrape enabled! Next scrape at 14:06:00 UTC" {
		t.Fatalf("on: %q %v", got, err)
	}
	for _, bad := range []string{"", "maybe", "on off"} {
		got, err = f.run(t, 1, "autoscrape", bad)
		if !errors.Is(err, ErrUsage) || !strings.HasPrefix(got, "Usage:") {
			t.Fatalf("%q: %q %v", bad, got, err)
		}
	}
	if len(f.poller.enabled) != 2 {
		t.Fatalf("toggles=%v", f.poller.enabled)
	}
}

func TestAutoscrapeRequiresAdmin(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	for _, c := range f.stock.Commands() {
		want := router.AccessEveryone
		if c.Name == "autoscrape" {
			want = router.AccessAdmin
		}
		if c.Access != want {
			t.Fatalf("/%s access=%v want %v", c.Name, c.Access, want)
		}
	}
}

func TestScrapeOutcomes(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		out     poller.Outcome
		err     error
		reply   string
		wantErr bool
	}{
		{"ok", poller.Outcome{Items: 3, Mentions: 1}, nil, "✅ Update sent! 3 items, 1 alerts.", false},
		{"no sink", poller.Outcome{}, fault.SinkUnavailable(""), "❌ Stock chat not found!", true},
		{"scrape failed", poller.Outcome{Failure: fault.Timeout(context.DeadlineExceeded)}, fault.Timeout(context.DeadlineExceeded), "⚠️ Failed: request timeout", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			f.poller.out, f.poller.err = tc.out, tc.err
			got, err := f.run(t, 1, "scrape", "")
			if got != tc.reply || (err != nil) != tc.wantErr {
				t.Fatalf("reply=%q err=%v", got, err)
			}
			if len(f.poller.scopes) != 1 || f.poller.scopes[0].ChatID != -100 {
				t.Fatalf("scope=%+v", f.poller.scopes)
			}
			if len(f.store.audit) != 1 || f.store.audit[0].OK == tc.wantErr {
				t.Fatalf("audit=%+v", f.store.audit)
			}
		})
	}
}

func TestStatusText(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.poller.state.RecordFailure(errors.New("HTTP error 503"), time.Date(2025, 6, 1, 14, 2, 0, 0, time.UTC))

	got := StatusText(f.poller, 4, nil)
	for _, want := range []string{
		"Autoscrape: on (idle)",
		"Schedule: " + poller.DefaultSchedule,
		"Last poll: 14:01:00 UTC",
		"Last error: HTTP error 503 (14:02:00 UTC)",
		"Known items: 3 in 2 categories",
		"Polls: 1 ok, 1 failed",
		"Subscribers: 4",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("status missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "Deliveries:") {
		t.Fatalf("health lines without telemetry:\n%s", got)
	}
}

func TestStatusCommandShowsHealth(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.stock.health = func() Health {
		return Health{
			Delivery: notifier.Stats{Sent: 12, Failed: 2, Deduped: 1, Dropped: 3},
			LastFailure: notifier.HistoryItem{
				At:     time.Date(2025, 6, 1, 14, 2, 30, 0, time.UTC),
				ChatID: -100,
				Err:    "Forbidden: bot was kicked",
			},
			Tasks: rtsup.Counters{Active: 6, Restarts: 1, Panics: 1},
		}
	}

	got, err := f.run(t, 5, "status", "")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	for _, want := range []string{
		"Subscribers: 0",
		"Deliveries: 12 sent, 2 failed, 1 deduped, 3 dropped",
		"Last delivery error: Forbidden: bot was kicked (chat -100, 14:02:30 UTC)",
		"Tasks: 6 running, 1 restarts, 1 panics",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("status missing %q:\n%s", want, got)
		}
	}

	f.stock.health = func() Health { return Health{} }
	got, _ = f.run(t, 5, "status", "")
	if strings.Contains(got, "Last delivery error") {
		t.Fatalf("failure line without a failure:\n%s", got)
	}
}
