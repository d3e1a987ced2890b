package commands

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"stockbot/internal/fault"
	"stockbot/internal/notifier"
	"stockbot/internal/poller"
	rtsup "stockbot/internal/runtime/supervisor"
	"stockbot/internal/storage"
	"stockbot/internal/subscription"
	"stockbot/internal/transport/telegram/router"
	logx "stockbot/pkg/logx"
)

const clockLayout = "15:04:05 MST"

// Poller is the part of poller.Scheduler the commands use.
type Poller interface {
	ManualScrape(ctx context.Context, scope poller.Scope) (poller.Outcome, error)
	SetAutoscrape(on bool) time.Time
	Status() (poller.Status, string)
	State() *poller.State
}

// Auditor records command outcomes. storage.Store satisfies it.
type Auditor interface {
	AppendAudit(ctx context.Context, e storage.AuditEntry) error
}

// Health is the runtime telemetry /status appends after the scraper lines.
type Health struct {
	Delivery notifier.Stats
	// LastFailure is zero when no delivery failed recently.
	LastFailure notifier.HistoryItem
	Tasks       rtsup.Counters
}

type Deps struct {
	Poller Poller
	Subs   *subscription.Service
	Audit  Auditor       // optional
	Health func() Health // optional
	Log    logx.Logger
	Now    func() time.Time
}

// Stock serves the stock bot commands.
type Stock struct {
	poller Poller
	subs   *subscription.Service
	audit  Auditor
	health func() Health
	log    logx.Logger
	now    func() time.Time
}

func New(d Deps) *Stock {
	if d.Log.IsZero() {
		d.Log = logx.Nop()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return &Stock{poller: d.Poller, subs: d.Subs, audit: d.Audit, health: d.Health, log: d.Log, now: d.Now}
}

// Commands returns the router command set.
func (s *Stock) Commands() []router.Command {
	return []router.Command{
		{
			Name:        "scrape",
			Description: "fetch the stock now and post it",
			Usage:       "/scrape",
			Timeout:     time.Minute,
			Handle:      s.audited(s.scrape),
		},
		{
			Name:        "autoscrape",
			Description: "enable or disable scheduled scraping",
			Usage:       "/autoscrape on|off",
			Access:      router.AccessAdmin,
			Handle:      s.audited(s.autoscrape),
		},
		{
			Name:        "sub",
			Aliases:     []string{"subscribe"},
			Description: "get pinged when items are in stock",
			Usage:       "/sub item, item",
			Handle:      s.audited(s.subscribe),
		},
		{
			Name:        "unsub",
			Aliases:     []string{"unsubscribe"},
			Description: "stop pings for items",
			Usage:       "/unsub item, item",
			Handle:      s.audited(s.unsubscribe),
		},
		{
			Name:        "mylist",
			Description: "list your subscriptions",
			Usage:       "/mylist",
			Handle:      s.mylist,
		},
		{
			Name:        "status",
			Description: "show scraper status",
			Usage:       "/status",
			Handle:      s.status,
		},
	}
}

// audited records the outcome of state-changing commands.
func (s *Stock) audited(h router.HandlerFunc) router.HandlerFunc {
	return func(ctx context.Context, req *router.Request) error {
		start := s.now()
		err := h(ctx, req)
		if s.audit == nil {
			return err
		}
		e := storage.AuditEntry{
			At:            start,
			ActorID:       req.FromID,
			ActorUsername: req.FromUsername,
			ChatID:        req.Chat.ChatID,
			Command:       req.Command,
			Target:        req.RawArgs,
			OK:            err == nil,
			TookMS:        s.now().Sub(start).Milliseconds(),
		}
		if err != nil {
			e.Error = err.Error()
		}
		// the command may have used up its own deadline
		actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if aerr := s.audit.AppendAudit(actx, e); aerr != nil {
			s.log.Warn("audit append failed", logx.Err(aerr), logx.String("cmd", req.Command))
		}
		return err
	}
}

func userKey(req *router.Request) string { return strconv.FormatInt(req.FromID, 10) }

func (s *Stock) scrape(ctx context.Context, req *router.Request) error {
	out, err := s.poller.ManualScrape(ctx, poller.Scope{ChatID: req.Chat.ChatID})
	switch {
	case err == nil:
		return req.Reply(ctx, fmt.Sprintf("✅ Update sent! %d items, %d alerts.", out.Items, out.Mentions))
	case fault.Is(err, fault.KindSinkUnavailable):
		_ = req.Reply(ctx, "❌ Stock chat not found!")
	case out.Failure != nil:
		_ = req.Reply(ctx, fmt.Sprintf("⚠️ Failed: %v", out.Failure))
	default:
		_ = req.Reply(ctx, fmt.Sprintf("⚠️ Error: %v", err))
	}
	return err
}

// ErrUsage marks a malformed command.
var ErrUsage = errors.New("invalid usage")

func parseSwitch(s string) (on, ok bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "on", "true", "yes", "enable", "enabled", "1":
		return true, true
	case "off", "false", "no", "disable", "disabled", "0":
		return false, true
	}
	return false, false
}

func (s *Stock) autoscrape(ctx context.Context, req *router.Request) error {
	if len(req.Args) != 1 {
		_ = req.Reply(ctx, "Usage: /autoscrape on|off")
		return ErrUsage
	}
	on, ok := parseSwitch(req.Args[0])
	if !ok {
		_ = req.Reply(ctx, "Usage: /autoscrape on|off")
		return ErrUsage
	}
	next := s.poller.SetAutoscrape(on)
	if !on {
		return req.Reply(ctx, "⏸️ Auto-scrape disabled")
	}
	return req.Reply(ctx, "✅ Auto-scrape enabled! Next scrape at "+next.Format(clockLayout))
}

func bolds(items []string) string {
	parts := make([]string, len(items))
	for i, it := range items {
		parts[i] = "**" + it + "**"
	}
	return strings.Join(parts, ", ")
}

func (s *Stock) subscribe(ctx context.Context, req *router.Request) error {
	wants := subscription.SplitList(req.RawArgs)
	if len(wants) == 0 {
		_ = req.Reply(ctx, "⚠️ No valid items to subscribe.")
		return ErrUsage
	}
	res := s.subs.Subscribe(ctx, userKey(req), wants, s.poller.State().Known())

	var lines, chosen []string
	for _, a := range res.Added {
		chosen = append(chosen, a.Name)
	}
	if len(chosen) > 0 {
		lines = append(lines, "✅ Subscribed to: "+bolds(chosen))
	}
	for _, a := range res.Added {
		if a.AsTyped {
			lines = append(lines, "No close match for **"+a.Input+"**, added as-is.")
		}
	}
	for _, name := range res.Already {
		lines = append(lines, "Already subscribed to **"+name+"**.")
	}
	if res.Unverified && len(chosen) > 0 {
		lines = append(lines, "ℹ️ No stock has been scraped yet, so names were not checked.")
	}
	if res.SaveErr != nil {
		s.log.Error("subscriptions not saved", logx.Err(res.SaveErr))
		lines = append(lines, "⚠️ Could not save subscriptions; they will be lost on restart.")
	}
	if err := req.Reply(ctx, strings.Join(lines, "\n")); err != nil {
		return err
	}
	return res.SaveErr
}

func (s *Stock) unsubscribe(ctx context.Context, req *router.Request) error {
	wants := subscription.SplitList(req.RawArgs)
	if len(wants) == 0 {
		_ = req.Reply(ctx, "⚠️ No valid items to unsubscribe.")
		return ErrUsage
	}
	res := s.subs.Unsubscribe(ctx, userKey(req), wants)

	var lines []string
	if len(res.Removed) > 0 {
		lines = append(lines, "❌ Unsubscribed: "+bolds(res.Removed))
	}
	for _, name := range res.NotFound {
		lines = append(lines, "Not subscribed to **"+name+"**.")
	}
	if res.SaveErr != nil {
		s.log.Error("subscriptions not saved", logx.Err(res.SaveErr))
		lines = append(lines, "⚠️ Could not save subscriptions; they will be lost on restart.")
	}
	if err := req.Reply(ctx, strings.Join(lines, "\n")); err != nil {
		return err
	}
	return res.SaveErr
}

func (s *Stock) mylist(ctx context.Context, req *router.Request) error {
	items := s.subs.List(userKey(req))
	if len(items) == 0 {
		return req.Reply(ctx, "📭 You have no subscriptions.")
	}
	return req.Reply(ctx, "📦 Your subscriptions: "+bolds(items))
}

func (s *Stock) status(ctx context.Context, req *router.Request) error {
	var h *Health
	if s.health != nil {
		v := s.health()
		h = &v
	}
	return req.Reply(ctx, StatusText(s.poller, s.subs.Users(), h))
}

// StatusText renders the scraper status for operators. h may be nil.
func StatusText(p Poller, subscribers int, h *Health) string {
	st, schedule := p.Status()
	onOff := "off"
	if st.Enabled {
		onOff = "on"
	}
	lines := []string{
		"📊 **Stock scraper**",
		"Autoscrape: " + onOff + " (" + st.Phase.String() + ")",
		"Schedule: " + schedule,
		"Last poll: " + clock(st.LastPoll),
	}
	if st.Enabled && !st.NextPoll.IsZero() {
		lines = append(lines, "Next poll: "+clock(st.NextPoll))
	}
	if st.LastError != "" {
		lines = append(lines, "Last error: "+st.LastError+" ("+clock(st.LastErrAt)+")")
	}
	lines = append(lines,
		fmt.Sprintf("Known items: %d in %d categories", st.KnownItems, st.Categories),
		fmt.Sprintf("Polls: %d ok, %d failed", st.Polls, st.Failures),
		fmt.Sprintf("Subscribers: %d", subscribers),
	)
	if h == nil {
		return strings.Join(lines, "\n")
	}
	d := h.Delivery
	lines = append(lines, fmt.Sprintf("Deliveries: %d sent, %d failed, %d deduped, %d dropped", d.Sent, d.Failed, d.Deduped, d.Dropped))
	if f := h.LastFailure; f.Err != "" {
		lines = append(lines, fmt.Sprintf("Last delivery error: %s (chat %d, %s)", f.Err, f.ChatID, clock(f.At)))
	}
	lines = append(lines, fmt.Sprintf("Tasks: %d running, %d restarts, %d panics", h.Tasks.Active, h.Tasks.Restarts, h.Tasks.Panics))
	return strings.Join(lines, "\n")
}

func clock(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.Format(clockLayout)
}
