package notifier

import "time"

// Config controls the async notification pipeline.
type Config struct {
	Enabled         bool
	Workers         int
	QueueSize       int
	RatePerSec      int
	RetryMax        int
	RetryBase       time.Duration
	RetryMaxDelay   time.Duration
	SendTimeout     time.Duration
	DedupWindow     time.Duration
	DedupMaxEntries int
}

type HistoryItem struct {
	At       time.Time
	ChatID   int64
	Priority int
	Messages int
	Text     string
	Err      string
}

// Stats are best-effort delivery counters.
type Stats struct {
	Queued  uint64
	Sent    uint64
	Failed  uint64
	Deduped uint64
	Dropped uint64
}
