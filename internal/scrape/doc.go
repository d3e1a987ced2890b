// Package scrape fetches the stock page and turns it into an inventory.Snapshot.
//
// The pieces compose as Fetcher -> Parser (Scraper, one attempt) and
// Retrier(Scraper) for the autonomous poll loop. All failures are *fault.Error
// values so the scheduler can tell timeouts, upstream outages and parse
// problems apart.
package scrape
