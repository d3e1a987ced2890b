package app

import (
	"context"
	"sync"

	"stockbot/internal/inventory"
	"stockbot/internal/scrape"
	logx "stockbot/pkg/logx"
)

type sourceFunc func(ctx context.Context) (inventory.Snapshot, error)

func (f sourceFunc) Scrape(ctx context.Context) (inventory.Snapshot, error) { return f(ctx) }

// sources owns the scrape pipeline and swaps it on config reload.
// In-flight scrapes finish on the pipeline they started with.
type sources struct {
	mu     sync.RWMutex
	auto   scrape.Source
	manual scrape.Source
	log    logx.Logger
}

func newSources(sc sourceConfig, log logx.Logger) *sources {
	s := &sources{log: log}
	s.apply(sc)
	return s
}

func (s *sources) apply(sc sourceConfig) {
	fetcher := scrape.NewHTTPFetcher(sc.fetch, s.log.With(logx.String("comp", "fetcher")))
	single := scrape.Scraper{Fetcher: fetcher, Parser: scrape.NewDocumentParser(sc.selectors, sc.dedicated)}
	retrier := &scrape.Retrier{
		Source:   single,
		Attempts: sc.attempts,
		Delay:    sc.delay,
		Log:      s.log.With(logx.String("comp", "retry")),
	}
	s.mu.Lock()
	s.auto = retrier
	s.manual = single
	s.mu.Unlock()
}

func (s *sources) current() (auto, manual scrape.Source) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.auto, s.manual
}

// Auto is the retrying source for the poll loop.
func (s *sources) Auto() scrape.Source {
	return sourceFunc(func(ctx context.Context) (inventory.Snapshot, error) {
		src, _ := s.current()
		return src.Scrape(ctx)
	})
}

// Manual is a single attempt for operator requests.
func (s *sources) Manual() scrape.Source {
	return sourceFunc(func(ctx context.Context) (inventory.Snapshot, error) {
		_, src := s.current()
		return src.Scrape(ctx)
	})
}
