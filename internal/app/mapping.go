package app

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"stockbot/internal/config"
	"stockbot/internal/notifier"
	"stockbot/internal/poller"
	"stockbot/internal/scrape"
	"stockbot/internal/storage"
	kit "stockbot/internal/transport"
	logx "stockbot/pkg/logx"
)

const defaultPollTimeout = 10 * time.Second

func mapLogConfig(cfg *config.Config, levelOverride string) logx.Config {
	lc := logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Chat: logx.ChatConfig{
			Enabled:    cfg.Logging.Telegram.Enabled,
			ThreadID:   cfg.Logging.Telegram.ThreadID,
			MinLevel:   cfg.Logging.Telegram.MinLevel,
			RatePerSec: cfg.Logging.Telegram.RatePerSec,
		},
	}
	if s := strings.TrimSpace(levelOverride); s != "" {
		lc.Level = s
	}
	// validated upstream; a bad value leaves the chat sink without a target
	if g := strings.TrimSpace(cfg.Telegram.GroupLog); g != "" {
		if id, err := strconv.ParseInt(g, 10, 64); err == nil {
			lc.Chat.ChatID = id
		}
	}
	return lc
}

func mapNotifierConfig(cfg *config.Config) (notifier.Config, error) {
	nc := config.DefaultNotifier()
	if cfg.Notifier != nil {
		nc = *cfg.Notifier
	}
	retryBase, err := config.ParseDurationOrDefault("notifier.retry_base", nc.RetryBase, 500*time.Millisecond)
	if err != nil {
		return notifier.Config{}, err
	}
	retryMax, err := config.ParseDurationOrDefault("notifier.retry_max_delay", nc.RetryMaxDelay, 10*time.Second)
	if err != nil {
		return notifier.Config{}, err
	}
	sendTimeout, err := config.ParseDurationOrDefault("notifier.send_timeout", nc.SendTimeout, 15*time.Second)
	if err != nil {
		return notifier.Config{}, err
	}
	dedup, err := config.ParseDurationField("notifier.dedup_window", nc.DedupWindow)
	if err != nil {
		return notifier.Config{}, err
	}
	return notifier.Config{
		Enabled:         nc.Enabled,
		Workers:         nc.Workers,
		QueueSize:       nc.QueueSize,
		RatePerSec:      nc.RatePerSec,
		RetryMax:        nc.RetryMax,
		RetryBase:       retryBase,
		RetryMaxDelay:   retryMax,
		SendTimeout:     sendTimeout,
		DedupWindow:     dedup,
		DedupMaxEntries: nc.DedupMaxEntries,
	}, nil
}

func mapStorageConfig(cfg *config.Config) (storage.Config, error) {
	sc := config.DefaultStorage()
	if cfg.Storage != nil {
		sc = *cfg.Storage
	}
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	busy, err := config.ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, time.Second)
	if err != nil {
		return storage.Config{}, err
	}
	switch driver {
	case "", "none":
		return storage.Config{}, nil
	case "file", "sqlite", "sqlite3":
		path := strings.TrimSpace(sc.Path)
		if path == "" {
			return storage.Config{}, fmt.Errorf("storage.path is required when storage.driver=%s", driver)
		}
		return storage.Config{Driver: driver, Path: path, BusyTimeout: busy}, nil
	default:
		return storage.Config{}, fmt.Errorf("unknown storage.driver: %s", sc.Driver)
	}
}

func mapChats(cfg *config.Config) []kit.ChatTarget {
	out := make([]kit.ChatTarget, 0, len(cfg.Stock.Chats))
	for _, c := range cfg.Stock.Chats {
		out = append(out, kit.ChatTarget{ChatID: c.ChatID, ThreadID: c.ThreadID})
	}
	return out
}

func mapPollerConfig(cfg *config.Config) (poller.Config, error) {
	p := cfg.Poll
	interval, err := config.ParseDurationOrDefault("poll.interval", p.Interval, poller.DefaultInterval)
	if err != nil {
		return poller.Config{}, err
	}
	check, err := config.ParseDurationOrDefault("poll.check_interval", p.CheckInterval, poller.DefaultCheckInterval)
	if err != nil {
		return poller.Config{}, err
	}
	sink, err := config.ParseDurationOrDefault("poll.sink_cooldown", p.SinkCooldown, poller.DefaultSinkCooldown)
	if err != nil {
		return poller.Config{}, err
	}
	errCool, err := config.ParseDurationOrDefault("poll.error_cooldown", p.ErrorCooldown, poller.DefaultErrorCooldown)
	if err != nil {
		return poller.Config{}, err
	}
	pc := poller.Config{
		Schedule:      strings.TrimSpace(p.Schedule),
		Timezone:      strings.TrimSpace(p.Timezone),
		Interval:      interval,
		CheckInterval: check,
		SinkCooldown:  sink,
		ErrorCooldown: errCool,
		AlwaysNotify:  cfg.Stock.AlwaysNotify,
		Title:         cfg.Stock.Title,
		Color:         cfg.Stock.Color,
		OwnerFallback: cfg.Stock.OwnerFallback,
	}
	if cfg.Stock.OwnerUserID != 0 {
		pc.OwnerUserID = strconv.FormatInt(cfg.Stock.OwnerUserID, 10)
	}
	return pc, nil
}

// sourceConfig is everything needed to build the scrape pipeline.
type sourceConfig struct {
	fetch     scrape.FetcherConfig
	selectors scrape.Selectors
	dedicated []string
	attempts  int
	delay     time.Duration
}

func mapSourceConfig(cfg *config.Config) (sourceConfig, error) {
	timeout, err := config.ParseDurationOrDefault("source.timeout", cfg.Source.Timeout, 0)
	if err != nil {
		return sourceConfig{}, err
	}
	delay, err := config.ParseDurationOrDefault("poll.retry_delay", cfg.Poll.RetryDelay, scrape.DefaultRetryDelay)
	if err != nil {
		return sourceConfig{}, err
	}
	sc := sourceConfig{
		fetch: scrape.FetcherConfig{
			URL:       strings.TrimSpace(cfg.Source.URL),
			Timeout:   timeout,
			UserAgent: cfg.Source.UserAgent,
			Referer:   cfg.Source.Referer,
		},
		dedicated: scrape.DedicatedCategories,
		attempts:  cfg.Poll.RetryAttempts,
		delay:     delay,
	}
	if sc.attempts <= 0 {
		sc.attempts = scrape.DefaultAttempts
	}
	if s := cfg.Source.Selectors; s != nil {
		sc.selectors = scrape.Selectors{
			Heading:    s.Heading,
			HeadingTag: s.HeadingTag,
			List:       s.List,
			Entry:      s.Entry,
			Image:      s.Image,
			Quantity:   s.Quantity,
		}
		if s.Dedicated != nil {
			sc.dedicated = s.Dedicated
		}
	}
	return sc, nil
}

// validate rejects configs the components would refuse on Apply.
func validate(cfg *config.Config) error {
	pc, err := mapPollerConfig(cfg)
	if err != nil {
		return err
	}
	loc, err := poller.LoadLocation(pc.Timezone)
	if err != nil {
		return fmt.Errorf("poll.timezone: %w", err)
	}
	if pc.Schedule != "" {
		if _, err := poller.ParseSchedule(pc.Schedule, loc); err != nil {
			return fmt.Errorf("poll.schedule: %w", err)
		}
	}
	if _, err := mapSourceConfig(cfg); err != nil {
		return err
	}
	if _, err := mapNotifierConfig(cfg); err != nil {
		return err
	}
	if _, err := mapStorageConfig(cfg); err != nil {
		return err
	}
	_, err = config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, defaultPollTimeout)
	return err
}
