package notifier

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	kit "stockbot/internal/transport"
	logx "stockbot/pkg/logx"
)

type recordingAdapter struct {
	mu       sync.Mutex
	sent     []string
	failText int // number of SendText calls to fail before succeeding
}

func (a *recordingAdapter) Start(context.Context, chan<- kit.Update) error { return nil }
func (a *recordingAdapter) Stop(context.Context) error                     { return nil }

func (a *recordingAdapter) SendText(_ context.Context, to kit.ChatTarget, text string, _ *kit.SendOptions) (kit.MessageRef, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.failText > 0 {
		a.failText--
		return kit.MessageRef{}, errors.New("flood wait")
	}
	a.sent = append(a.sent, "text:"+text)
	return kit.MessageRef{ChatID: to.ChatID}, nil
}

func (a *recordingAdapter) SendSummary(_ context.Context, to kit.ChatTarget, s kit.Summary) (kit.MessageRef, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sent = append(a.sent, "summary:"+s.Title)
	return kit.MessageRef{ChatID: to.ChatID}, nil
}

func (a *recordingAdapter) messages() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.sent...)
}

func testConfig() Config {
	return Config{Enabled: true, Workers: 2, RatePerSec: 1000, RetryMax: 2, RetryBase: time.Millisecond, RetryMaxDelay: 5 * time.Millisecond}
}

func TestNotifyDeliversMessagesInOrder(t *testing.T) {
	t.Parallel()
	ad := &recordingAdapter{failText: 1}
	svc := New(testConfig(), ad, logx.Nop())
	svc.Start(context.Background())

	n := kit.Notification{
		Channel: "telegram",
		Target:  kit.ChatTarget{ChatID: 10},
		Messages: []kit.Payload{
			{Text: "Carrot Seed: <@1>"},
			{},
			{Summary: &kit.Summary{Title: "Stock Update"}},
		},
	}
	if err := svc.Notify(context.Background(), n); err != nil {
		t.Fatalf("Notify error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	svc.Stop(ctx)

	got := ad.messages()
	want := []string{"text:Carrot Seed: <@1>", "summary:Stock Update"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("sent = %v, want %v", got, want)
	}
	if st := svc.Stats(); st.Sent != 1 || st.Failed != 0 {
		t.Fatalf("stats = %+v", st)
	}
}

func TestNotifyPriorityPrefix(t *testing.T) {
	t.Parallel()
	ad := &recordingAdapter{}
	svc := New(testConfig(), ad, logx.Nop())
	svc.Start(context.Background())

	if err := svc.Notify(context.Background(), kit.Text(kit.ChatTarget{ChatID: 1}, 9, "all attempts failed")); err != nil {
		t.Fatalf("Notify error: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	svc.Stop(ctx)

	got := ad.messages()
	if len(got) != 1 || got[0] != "text:🚨 all attempts failed" {
		t.Fatalf("sent = %v", got)
	}
}

func TestNotifyDedupWindow(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.DedupWindow = time.Minute
	ad := &recordingAdapter{}
	svc := New(cfg, ad, logx.Nop())
	svc.Start(context.Background())

	n := kit.Text(kit.ChatTarget{ChatID: 1}, 0, "same")
	for i := 0; i < 3; i++ {
		if err := svc.Notify(context.Background(), n); err != nil {
			t.Fatalf("Notify error: %v", err)
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	svc.Stop(ctx)

	if got := ad.messages(); len(got) != 1 {
		t.Fatalf("sent = %v, want one delivery", got)
	}
	if st := svc.Stats(); st.Deduped != 2 {
		t.Fatalf("deduped = %d, want 2", st.Deduped)
	}
}

func TestNotifyRejectsWhenStoppedOrEmpty(t *testing.T) {
	t.Parallel()
	svc := New(testConfig(), &recordingAdapter{}, logx.Nop())
	if err := svc.Notify(context.Background(), kit.Text(kit.ChatTarget{ChatID: 1}, 0, "x")); !errors.Is(err, ErrStopped) {
		t.Fatalf("err = %v, want ErrStopped", err)
	}
	if err := svc.Notify(context.Background(), kit.Notification{Channel: "telegram"}); !errors.Is(err, ErrEmpty) {
		t.Fatalf("err = %v, want ErrEmpty", err)
	}

	disabled := New(Config{}, &recordingAdapter{}, logx.Nop())
	if err := disabled.Notify(context.Background(), kit.Text(kit.ChatTarget{ChatID: 1}, 0, "x")); !errors.Is(err, ErrDisabled) {
		t.Fatalf("err = %v, want ErrDisabled", err)
	}
}

func TestSendDeliversInlineWhileDisabled(t *testing.T) {
	t.Parallel()
	ad := &recordingAdapter{failText: 1}
	cfg := testConfig()
	cfg.Enabled = false
	svc := New(cfg, ad, logx.Nop())

	err := svc.Send(context.Background(), kit.Text(kit.ChatTarget{ChatID: 3}, 9, "down"))
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	got := ad.messages()
	if len(got) != 1 || got[0] != "text:🚨 down" {
		t.Fatalf("sent = %v", got)
	}
	if st := svc.Stats(); st.Sent != 1 || st.Queued != 0 {
		t.Fatalf("stats = %+v", st)
	}
	if err := svc.Send(context.Background(), kit.Notification{}); !errors.Is(err, ErrEmpty) {
		t.Fatalf("empty: %v", err)
	}
}

func TestLastFailureFromHistory(t *testing.T) {
	t.Parallel()
	ad := &recordingAdapter{failText: 1}
	cfg := testConfig()
	cfg.Enabled = false
	cfg.RetryMax = 0
	svc := New(cfg, ad, logx.Nop())

	if _, ok := svc.LastFailure(); ok {
		t.Fatal("failure reported before any delivery")
	}
	if err := svc.Send(context.Background(), kit.Text(kit.ChatTarget{ChatID: 7}, 0, "first")); err == nil {
		t.Fatal("first send succeeded, want flood wait")
	}
	if err := svc.Send(context.Background(), kit.Text(kit.ChatTarget{ChatID: 8}, 0, "second")); err != nil {
		t.Fatalf("second send: %v", err)
	}

	it, ok := svc.LastFailure()
	if !ok || it.ChatID != 7 || it.Err != "flood wait" {
		t.Fatalf("last failure = %+v, %v", it, ok)
	}
	h := svc.History()
	if len(h) != 2 || h[1].ChatID != 8 || h[1].Err != "" || h[1].Text != "second" {
		t.Fatalf("history = %+v", h)
	}
	if st := svc.Stats(); st.Sent != 1 || st.Failed != 1 {
		t.Fatalf("stats = %+v", st)
	}
}
