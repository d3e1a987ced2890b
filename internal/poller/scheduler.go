package poller

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"stockbot/internal/fault"
	"stockbot/internal/inventory"
	"stockbot/internal/scrape"
	kit "stockbot/internal/transport"
	logx "stockbot/pkg/logx"
)

const (
	DefaultCheckInterval = 10 * time.Second
	DefaultSinkCooldown  = 60 * time.Second
	DefaultErrorCooldown = 10 * time.Second
)

// Config is the hot-reloadable part of the scheduler.
type Config struct {
	Schedule      string
	Timezone      string
	Interval      time.Duration
	CheckInterval time.Duration
	SinkCooldown  time.Duration
	ErrorCooldown time.Duration

	AlwaysNotify  []string
	Title         string
	Color         int
	OwnerUserID   string
	OwnerFallback string
}

// Publisher queues outgoing notifications. notifier.Service satisfies it.
type Publisher interface {
	Notify(ctx context.Context, n kit.Notification) error
}

// Subscribers provides the current subscription table.
type Subscribers interface {
	Snapshot() map[string][]string
}

// SubscribersFunc adapts a function to Subscribers.
type SubscribersFunc func() map[string][]string

func (f SubscribersFunc) Snapshot() map[string][]string { return f() }

type Deps struct {
	State        *State
	Auto         scrape.Source // retrying source for the loop
	Manual       scrape.Source // single attempt for operator requests
	Destinations *Destinations
	Publisher    Publisher
	Subscribers  Subscribers
	Log          logx.Logger

	// Now and Sleep default to the wall clock.
	Now   func() time.Time
	Sleep scrape.Sleeper
}

// Scheduler runs the autonomous poll loop and serves manual scrapes.
type Scheduler struct {
	mu     sync.Mutex
	cfg    Config
	sched  *Schedule
	policy inventory.Policy

	state  *State
	auto   scrape.Source
	manual scrape.Source
	dest   *Destinations
	pub    Publisher
	subs   Subscribers
	log    logx.Logger
	now    func() time.Time
	sleep  scrape.Sleeper
}

func New(cfg Config, d Deps) (*Scheduler, error) {
	if d.State == nil || d.Auto == nil || d.Destinations == nil || d.Publisher == nil {
		return nil, errors.New("poller: state, source, destinations and publisher are required")
	}
	s := &Scheduler{
		state:  d.State,
		auto:   d.Auto,
		manual: d.Manual,
		dest:   d.Destinations,
		pub:    d.Publisher,
		subs:   d.Subscribers,
		log:    d.Log,
		now:    d.Now,
		sleep:  d.Sleep,
	}
	if s.manual == nil {
		s.manual = s.auto
	}
	if s.subs == nil {
		s.subs = SubscribersFunc(func() map[string][]string { return nil })
	}
	if s.log.IsZero() {
		s.log = logx.Nop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.sleep == nil {
		s.sleep = scrape.Sleep
	}
	if err := s.Apply(cfg); err != nil {
		return nil, err
	}
	return s, nil
}

// Apply validates and swaps the configuration. On error the previous
// configuration stays in effect.
func (s *Scheduler) Apply(cfg Config) error {
	if cfg.Schedule == "" {
		cfg.Schedule = DefaultSchedule
	}
	loc, err := LoadLocation(cfg.Timezone)
	if err != nil {
		return err
	}
	sched, err := ParseSchedule(cfg.Schedule, loc)
	if err != nil {
		return err
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = DefaultCheckInterval
	}
	if cfg.SinkCooldown <= 0 {
		cfg.SinkCooldown = DefaultSinkCooldown
	}
	if cfg.ErrorCooldown <= 0 {
		cfg.ErrorCooldown = DefaultErrorCooldown
	}
	if cfg.AlwaysNotify == nil {
		cfg.AlwaysNotify = inventory.DefaultAlwaysNotify
	}
	if cfg.Title == "" {
		cfg.Title = DefaultTitle
	}
	if cfg.Color == 0 {
		cfg.Color = DefaultColor
	}

	s.mu.Lock()
	s.cfg = cfg
	s.sched = sched
	s.policy = inventory.NewPolicy(cfg.AlwaysNotify)
	s.mu.Unlock()
	s.state.SetInterval(cfg.Interval)
	return nil
}

func (s *Scheduler) snapshot() (Config, *Schedule, inventory.Policy) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg, s.sched, s.policy
}

// State exposes the shared poll state.
func (s *Scheduler) State() *State { return s.state }

// NextPollTime returns the next aligned slot after now.
func (s *Scheduler) NextPollTime() time.Time {
	_, sched, _ := s.snapshot()
	return sched.Next(s.now())
}

// SetAutoscrape toggles the loop and returns the next aligned slot.
func (s *Scheduler) SetAutoscrape(on bool) time.Time {
	s.state.SetEnabled(on)
	s.log.Info("autoscrape toggled", logx.Bool("enabled", on))
	if !on {
		return time.Time{}
	}
	return s.NextPollTime()
}

// Run blocks until ctx is canceled. Cycle failures are logged and followed
// by a cooldown; they never end the loop.
func (s *Scheduler) Run(ctx context.Context) error {
	s.log.Info("poll loop started")
	defer s.state.setPhase(PhaseIdle, time.Time{})

	for {
		if err := ctx.Err(); err != nil {
			s.log.Info("poll loop stopped")
			return err
		}
		cfg, _, _ := s.snapshot()

		if !s.state.Enabled() {
			s.state.setPhase(PhaseIdle, time.Time{})
			s.idle(ctx, cfg.CheckInterval)
			continue
		}

		err := s.cycle(ctx)
		switch {
		case err == nil || ctx.Err() != nil:
		case fault.Is(err, fault.KindSinkUnavailable):
			s.log.Warn("output chat unavailable; cooling down", logx.Duration("cooldown", cfg.SinkCooldown), logx.Err(err))
			s.state.setPhase(PhaseIdle, time.Time{})
			_ = s.sleep(ctx, cfg.SinkCooldown)
		default:
			s.log.Error("poll cycle failed; cooling down", logx.Duration("cooldown", cfg.ErrorCooldown), logx.Err(err))
			s.state.setPhase(PhaseIdle, time.Time{})
			_ = s.sleep(ctx, cfg.ErrorCooldown)
		}
	}
}

func (s *Scheduler) idle(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-s.state.Wake():
	case <-t.C:
	}
}

// cycle waits for the next slot and polls once.
func (s *Scheduler) cycle(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("poll cycle panicked", logx.Any("panic", r), logx.Stack(string(debug.Stack())))
			err = fault.Unexpected(fmt.Errorf("panic: %v", r))
		}
	}()

	cfg, sched, _ := s.snapshot()
	now := s.now()
	next := sched.Next(now)
	s.state.setPhase(PhaseWaiting, next)
	s.log.Info("next scrape scheduled",
		logx.String("at", next.Format(footerLayout)),
		logx.Duration("wait", next.Sub(now).Round(100*time.Millisecond)),
	)

	fire, err := s.waitUntil(ctx, next, cfg.CheckInterval)
	if err != nil || !fire {
		return err
	}

	s.state.setPhase(PhasePolling, next)
	_, err = s.poll(ctx, Scope{}, s.auto, true)
	return err
}

// waitUntil sleeps in slices no longer than step so a disable takes effect
// mid-wait. It reports false when autoscrape was turned off.
func (s *Scheduler) waitUntil(ctx context.Context, target time.Time, step time.Duration) (bool, error) {
	for {
		if !s.state.Enabled() {
			return false, nil
		}
		rem := target.Sub(s.now())
		if rem <= 0 {
			return true, nil
		}
		if err := s.sleep(ctx, min(rem, step)); err != nil {
			return false, err
		}
	}
}

// Outcome summarizes one poll for the caller.
type Outcome struct {
	Target   kit.ChatTarget
	Changed  []string
	Mentions int
	Items    int
	// Failure is the scrape error that was reported to the output chat.
	Failure error
}

// poll runs one scrape and publishes the result. A failed scrape is reported
// to the output chat and recorded in Outcome.Failure with the snapshot left
// untouched; the returned error covers only what prevented reporting.
func (s *Scheduler) poll(ctx context.Context, scope Scope, src scrape.Source, scheduled bool) (Outcome, error) {
	cfg, _, policy := s.snapshot()
	scrapedAt := s.now()

	snap, scrapeErr := src.Scrape(ctx)
	if ctx.Err() != nil {
		return Outcome{}, ctx.Err()
	}

	to, err := s.dest.Resolve(ctx, scope)
	if err != nil {
		return Outcome{}, err
	}
	out := Outcome{Target: to}

	if scrapeErr != nil {
		s.state.RecordFailure(scrapeErr, scrapedAt)
		text := ManualFailureText(scrapeErr)
		if scheduled {
			text = CriticalText(OwnerMention(cfg.OwnerUserID, cfg.OwnerFallback), scrapeErr)
			s.log.Error("all scrape attempts failed", logx.Err(scrapeErr), logx.String("kind", fault.KindOf(scrapeErr).String()))
		} else {
			s.log.Warn("manual scrape failed", logx.Err(scrapeErr))
		}
		if nerr := s.pub.Notify(ctx, kit.Text(to, 0, text)); nerr != nil {
			s.log.Error("failure report not queued", logx.Err(nerr))
		}
		out.Failure = scrapeErr
		return out, nil
	}

	res := s.state.Commit(snap, s.subs.Snapshot(), policy, scrapedAt)
	report := BuildReport(snap, res.Mentions, scrapedAt.In(s.location()), scrapedAt.Add(cfg.Interval).In(s.location()), cfg.Title, cfg.Color)
	out.Changed = res.Changed
	out.Mentions = len(res.Mentions)
	out.Items = snap.ItemCount()

	s.log.Info("scrape committed",
		logx.Int("categories", snap.Len()),
		logx.Int("items", out.Items),
		logx.Strings("changed", res.Changed),
		logx.Int("mentions", out.Mentions),
	)
	if err := s.pub.Notify(ctx, report.Notification(to)); err != nil {
		return out, fmt.Errorf("publish report: %w", err)
	}
	return out, nil
}

func (s *Scheduler) location() *time.Location {
	_, sched, _ := s.snapshot()
	return sched.Location()
}

// ManualScrape runs one unretried scrape for an operator request. On failure
// the error is also posted to the output chat.
func (s *Scheduler) ManualScrape(ctx context.Context, scope Scope) (Outcome, error) {
	out, err := s.poll(ctx, scope, s.manual, false)
	if err != nil {
		return out, err
	}
	return out, out.Failure
}

// Status reports the shared state plus the configured schedule.
func (s *Scheduler) Status() (Status, string) {
	_, sched, _ := s.snapshot()
	return s.state.Status(), sched.String()
}
