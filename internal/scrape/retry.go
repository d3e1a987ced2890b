package scrape

import (
	"context"
	"errors"
	"time"

	"stockbot/internal/inventory"
	logx "stockbot/pkg/logx"
)

const (
	DefaultAttempts   = 3
	DefaultRetryDelay = 4 * time.Second
)

// Source produces one snapshot per call.
type Source interface {
	Scrape(ctx context.Context) (inventory.Snapshot, error)
}

// Scraper is a single Fetch+Parse attempt. Manual scrapes use it directly so
// the caller gets prompt feedback.
type Scraper struct {
	Fetcher Fetcher
	Parser  Parser
}

func (s Scraper) Scrape(ctx context.Context) (inventory.Snapshot, error) {
	raw, err := s.Fetcher.Fetch(ctx)
	if err != nil {
		return inventory.Snapshot{}, err
	}
	return s.Parser.Parse(raw)
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Sleep is the default Sleeper.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Retrier retries a Source a bounded number of times with a fixed delay.
type Retrier struct {
	Source   Source
	Attempts int
	Delay    time.Duration
	Sleep    Sleeper
	Log      logx.Logger
}

// Scrape returns the first success, or the most recent error once every
// attempt failed. There is no delay after the final attempt. A canceled
// delay returns the last scrape error joined with the context error.
func (r *Retrier) Scrape(ctx context.Context) (inventory.Snapshot, error) {
	attempts := r.Attempts
	if attempts <= 0 {
		attempts = DefaultAttempts
	}
	sleep := r.Sleep
	if sleep == nil {
		sleep = Sleep
	}
	log := r.Log
	if log.IsZero() {
		log = logx.Nop()
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		snap, err := r.Source.Scrape(ctx)
		if err == nil {
			if attempt > 1 {
				log.Info("scrape recovered", logx.Int("attempt", attempt), logx.Int("max", attempts))
			}
			return snap, nil
		}
		lastErr = err
		if attempt == attempts {
			break
		}
		log.Warn("scrape failed; retrying",
			logx.Int("attempt", attempt),
			logx.Int("max", attempts),
			logx.Duration("delay", r.Delay),
			logx.Err(err),
		)
		if serr := sleep(ctx, r.Delay); serr != nil {
			return inventory.Snapshot{}, errors.Join(lastErr, serr)
		}
	}
	return inventory.Snapshot{}, lastErr
}
