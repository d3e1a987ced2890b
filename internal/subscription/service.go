package subscription

import (
	"context"
	"sort"
	"strings"
	"sync"

	"stockbot/internal/inventory"
	logx "stockbot/pkg/logx"
)

// Table maps a user id to the item names that user follows.
type Table map[string][]string

// Clone returns a deep copy.
func (t Table) Clone() Table {
	out := make(Table, len(t))
	for uid, items := range t {
		out[uid] = append([]string(nil), items...)
	}
	return out
}

// Store persists the table. storage.Store satisfies it.
type Store interface {
	LoadSubscriptions(ctx context.Context) (map[string][]string, error)
	SaveSubscriptions(ctx context.Context, subs map[string][]string) error
}

// Added describes one item appended by Subscribe.
type Added struct {
	Input string
	Name  string
	// AsTyped is set when no known item was close enough and the input was kept verbatim.
	AsTyped bool
}

type SubscribeResult struct {
	Added   []Added
	Already []string
	// Unverified is set when no poll has succeeded yet, so nothing could be matched.
	Unverified bool
	// SaveErr reports a failed persist; the in-memory table is still updated.
	SaveErr error
}

type UnsubscribeResult struct {
	Removed  []string
	NotFound []string
	SaveErr  error
}

// Service guards the table and its persistence.
type Service struct {
	mu     sync.Mutex
	table  Table
	store  Store
	cutoff float64
	log    logx.Logger
}

func New(store Store, cutoff float64, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	if cutoff <= 0 || cutoff > 1 {
		cutoff = DefaultCutoff
	}
	return &Service{table: Table{}, store: store, cutoff: cutoff, log: log}
}

// Load replaces the in-memory table with the persisted one.
func (s *Service) Load(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	m, err := s.store.LoadSubscriptions(ctx)
	if err != nil {
		return err
	}
	t := make(Table, len(m))
	for uid, items := range m {
		if len(items) > 0 {
			t[uid] = append([]string(nil), items...)
		}
	}
	s.mu.Lock()
	s.table = t
	s.mu.Unlock()
	s.log.Info("subscriptions loaded", logx.Int("users", len(t)))
	return nil
}

// SetCutoff updates the similarity threshold (hot reload).
func (s *Service) SetCutoff(c float64) {
	if c <= 0 || c > 1 {
		c = DefaultCutoff
	}
	s.mu.Lock()
	s.cutoff = c
	s.mu.Unlock()
}

// SplitList splits a comma-separated request, trimming entries and dropping empty ones.
func SplitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Subscribe adds each requested item to the user's list. Names are resolved
// against known; an item already on the list (case-insensitive) is reported
// and left alone.
func (s *Service) Subscribe(ctx context.Context, userID string, wants []string, known inventory.KnownSet) SubscribeResult {
	corpus := known.Sorted()

	s.mu.Lock()
	defer s.mu.Unlock()

	res := SubscribeResult{Unverified: len(corpus) == 0}
	list := s.table[userID]
	for _, raw := range wants {
		want := strings.TrimSpace(raw)
		if want == "" {
			continue
		}
		name, asTyped := want, false
		if len(corpus) > 0 {
			if m, _, ok := BestMatch(want, corpus, s.cutoff); ok {
				name = m
			} else {
				asTyped = true
			}
		}
		if indexFold(list, name) >= 0 {
			res.Already = append(res.Already, name)
			continue
		}
		list = append(list, name)
		res.Added = append(res.Added, Added{Input: want, Name: name, AsTyped: asTyped})
	}
	if len(res.Added) == 0 {
		return res
	}
	s.table[userID] = list
	res.SaveErr = s.persistLocked(ctx)
	return res
}

// Unsubscribe removes the first case-insensitive match of each requested item.
func (s *Service) Unsubscribe(ctx context.Context, userID string, wants []string) UnsubscribeResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	var res UnsubscribeResult
	list := s.table[userID]
	for _, raw := range wants {
		want := strings.TrimSpace(raw)
		if want == "" {
			continue
		}
		i := indexFold(list, want)
		if i < 0 {
			res.NotFound = append(res.NotFound, want)
			continue
		}
		res.Removed = append(res.Removed, list[i])
		list = append(list[:i:i], list[i+1:]...)
	}
	if len(res.Removed) == 0 {
		return res
	}
	if len(list) == 0 {
		delete(s.table, userID)
	} else {
		s.table[userID] = list
	}
	res.SaveErr = s.persistLocked(ctx)
	return res
}

// List returns a copy of the user's subscriptions.
func (s *Service) List(userID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.table[userID]...)
}

// Snapshot returns a copy of the whole table.
func (s *Service) Snapshot() Table {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.table.Clone()
}

// Users returns the number of users with at least one subscription.
func (s *Service) Users() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.table)
}

// UserIDs returns subscriber ids in sorted order.
func (s *Service) UserIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.table))
	for uid := range s.table {
		out = append(out, uid)
	}
	sort.Strings(out)
	return out
}

func (s *Service) persistLocked(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	if err := s.store.SaveSubscriptions(ctx, s.table.Clone()); err != nil {
		s.log.Error("save subscriptions failed", logx.Err(err))
		return err
	}
	return nil
}

func indexFold(list []string, name string) int {
	for i, v := range list {
		if strings.EqualFold(v, name) {
			return i
		}
	}
	return -1
}
