package poller

import (
	"sync"
	"time"

	"stockbot/internal/inventory"
)

// Phase is the scheduler's current activity.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseWaiting
	PhasePolling
)

func (p Phase) String() string {
	switch p {
	case PhaseWaiting:
		return "waiting"
	case PhasePolling:
		return "polling"
	default:
		return "idle"
	}
}

// DefaultInterval is the nominal time between polls, used for "Next" estimates.
const DefaultInterval = 5 * time.Minute

// State is the poll state shared by the scheduler loop and command handlers.
type State struct {
	mu sync.Mutex

	enabled  bool
	interval time.Duration

	last    inventory.Snapshot
	hasLast bool
	known   inventory.KnownSet

	phase     Phase
	nextPoll  time.Time
	lastPoll  time.Time
	lastErr   error
	lastErrAt time.Time
	polls     uint64
	failures  uint64

	wake chan struct{}
}

func NewState(enabled bool, interval time.Duration) *State {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &State{
		enabled:  enabled,
		interval: interval,
		known:    inventory.KnownSet{},
		wake:     make(chan struct{}, 1),
	}
}

func (s *State) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

// SetEnabled toggles autoscrape and wakes an idle scheduler.
func (s *State) SetEnabled(on bool) {
	s.mu.Lock()
	s.enabled = on
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Wake fires after SetEnabled.
func (s *State) Wake() <-chan struct{} { return s.wake }

func (s *State) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

func (s *State) SetInterval(d time.Duration) {
	if d <= 0 {
		d = DefaultInterval
	}
	s.mu.Lock()
	s.interval = d
	s.mu.Unlock()
}

// Known returns the item names of the latest successful poll. The set is
// replaced wholesale on commit and never mutated, so callers may read it freely.
func (s *State) Known() inventory.KnownSet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.known
}

// Last returns a copy of the latest committed snapshot.
func (s *State) Last() (inventory.Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last.Clone(), s.hasLast
}

// CommitResult is what one successful poll changed.
type CommitResult struct {
	Changed  []string
	Mentions []inventory.Mention
}

// Commit diffs next against the previous snapshot, resolves mentions and
// replaces the stored snapshot and known set, all under one lock.
func (s *State) Commit(next inventory.Snapshot, subscribers map[string][]string, policy inventory.Policy, now time.Time) CommitResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed := policy.Changed(s.last, next)
	res := CommitResult{
		Changed:  changed,
		Mentions: inventory.ResolveMentions(next, changed, subscribers),
	}
	s.last = next.Clone()
	s.hasLast = true
	s.known = next.Known()
	s.lastPoll = now
	s.polls++
	return res
}

// RecordFailure keeps the error for status output. The snapshot is untouched.
func (s *State) RecordFailure(err error, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = err
	s.lastErrAt = now
	s.failures++
}

func (s *State) setPhase(p Phase, next time.Time) {
	s.mu.Lock()
	s.phase = p
	s.nextPoll = next
	s.mu.Unlock()
}

// Status is a point-in-time view for operators.
type Status struct {
	Enabled    bool
	Phase      Phase
	Interval   time.Duration
	NextPoll   time.Time
	LastPoll   time.Time
	LastError  string
	LastErrAt  time.Time
	Categories int
	KnownItems int
	Polls      uint64
	Failures   uint64
}

func (s *State) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{
		Enabled:    s.enabled,
		Phase:      s.phase,
		Interval:   s.interval,
		NextPoll:   s.nextPoll,
		LastPoll:   s.lastPoll,
		LastErrAt:  s.lastErrAt,
		Categories: s.last.Len(),
		KnownItems: len(s.known),
		Polls:      s.polls,
		Failures:   s.failures,
	}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	return st
}
