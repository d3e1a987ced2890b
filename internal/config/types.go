package config

// Config is the on-disk configuration (config.json or config.yaml).
type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Logging  LoggingConfig  `json:"logging"`
	Source   SourceConfig   `json:"source"`
	Poll     PollConfig     `json:"poll"`
	Stock    StockConfig    `json:"stock"`

	Notifier *NotifierConfig `json:"notifier,omitempty"`
	Storage  *StorageConfig  `json:"storage,omitempty"`
}

type TelegramConfig struct {
	Token        string  `json:"token"`
	OwnerUserIDs []int64 `json:"owner_user_ids"`
	AdminUserIDs []int64 `json:"admin_user_ids,omitempty"`
	GroupLog     string  `json:"group_log"`
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout"`
}

type LoggingConfig struct {
	Level    string          `json:"level"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	ThreadID   int    `json:"thread_id"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// SourceConfig points the scraper at the stock page.
type SourceConfig struct {
	URL       string           `json:"url"`
	Timeout   string           `json:"timeout,omitempty"`
	UserAgent string           `json:"user_agent,omitempty"`
	Referer   string           `json:"referer,omitempty"`
	Selectors *SelectorsConfig `json:"selectors,omitempty"`
}

// SelectorsConfig overrides the CSS selectors used by the parser.
// Empty fields keep the built-in defaults.
type SelectorsConfig struct {
	Heading    string `json:"heading,omitempty"`
	HeadingTag string `json:"heading_tag,omitempty"`
	List       string `json:"list,omitempty"`
	Entry      string `json:"entry,omitempty"`
	Image      string `json:"image,omitempty"`
	Quantity   string `json:"quantity,omitempty"`

	// Dedicated lists category labels located by exact heading text
	// instead of the generic heading selector.
	Dedicated []string `json:"dedicated,omitempty"`
}

// PollConfig controls the autonomous poll loop.
//
// All durations are Go duration strings. Defaults (when omitted):
//   - enabled: true
//   - schedule: "1-59/5 * * * *" (minute 1, 6, 11, ...)
//   - interval: "5m"
//   - timezone: "America/New_York"
//   - retry_attempts: 3, retry_delay: "4s"
//   - check_interval: "10s", sink_cooldown: "60s", error_cooldown: "10s"
type PollConfig struct {
	Enabled       *bool  `json:"enabled,omitempty"`
	Schedule      string `json:"schedule,omitempty"`
	Interval      string `json:"interval,omitempty"`
	Timezone      string `json:"timezone,omitempty"`
	RetryAttempts int    `json:"retry_attempts,omitempty"`
	RetryDelay    string `json:"retry_delay,omitempty"`
	CheckInterval string `json:"check_interval,omitempty"`
	SinkCooldown  string `json:"sink_cooldown,omitempty"`
	ErrorCooldown string `json:"error_cooldown,omitempty"`
}

// EnabledOrDefault reports whether autoscrape starts enabled.
func (p PollConfig) EnabledOrDefault() bool {
	if p.Enabled == nil {
		return true
	}
	return *p.Enabled
}

// ChatRef is an output chat (and optional forum topic).
type ChatRef struct {
	ChatID   int64 `json:"chat_id"`
	ThreadID int   `json:"thread_id,omitempty"`
}

// StockConfig controls what is reported and where.
//
// AlwaysNotify nil means the built-in set (GEAR, SEEDS and EGGS STOCK);
// an explicit empty list disables it.
type StockConfig struct {
	Chats          []ChatRef `json:"chats"`
	OwnerUserID    int64     `json:"owner_user_id,omitempty"`
	OwnerFallback  string    `json:"owner_fallback,omitempty"`
	AlwaysNotify   []string  `json:"always_notify,omitempty"`
	MatchThreshold float64   `json:"match_threshold,omitempty"`
	Title          string    `json:"title,omitempty"`
	Color          int       `json:"color,omitempty"`
}

// NotifierConfig controls the async notification pipeline.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
// If the whole section is omitted, the notifier defaults to enabled=true.
type NotifierConfig struct {
	Enabled         bool   `json:"enabled"`
	Workers         int    `json:"workers"`
	QueueSize       int    `json:"queue_size"`
	RatePerSec      int    `json:"rate_per_sec"`
	RetryMax        int    `json:"retry_max"`
	RetryBase       string `json:"retry_base"`
	RetryMaxDelay   string `json:"retry_max_delay"`
	SendTimeout     string `json:"send_timeout,omitempty"`
	DedupWindow     string `json:"dedup_window"`
	DedupMaxEntries int    `json:"dedup_max_entries"`
}

// DefaultNotifier is used when the notifier section is omitted.
func DefaultNotifier() NotifierConfig {
	return NotifierConfig{
		Enabled:         true,
		Workers:         2,
		QueueSize:       512,
		RatePerSec:      3,
		RetryMax:        3,
		RetryBase:       "500ms",
		RetryMaxDelay:   "10s",
		SendTimeout:     "15s",
		DedupWindow:     "0s",
		DedupMaxEntries: 2000,
	}
}

// StorageConfig controls subscription persistence.
//
// Example:
//
//	"storage": { "driver": "file", "path": "./subscriptions.json" }
//
// When the section is omitted the file driver is used with Path
// "./subscriptions.json".
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

const DefaultStoragePath = "./subscriptions.json"

// DefaultStorage is used when the storage section is omitted.
func DefaultStorage() StorageConfig {
	return StorageConfig{Driver: "file", Path: DefaultStoragePath}
}
