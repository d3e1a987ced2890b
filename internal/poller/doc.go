// Package poller drives the scrape -> diff -> notify cycle.
//
// The Scheduler waits for the next wall-clock aligned slot (by default
// minute 1, 6, ..., 56 of every hour), runs the retrying scrape, commits
// the snapshot to the shared State and publishes a mention digest followed
// by a stock summary. A failed cycle never ends the loop; only
// cancellation does.
//
// State is shared with the command handlers: manual scrapes commit through
// the same mutex, and subscription matching reads the known item set.
package poller
