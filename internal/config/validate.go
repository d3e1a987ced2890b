package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	logx "stockbot/pkg/logx"
)

// Validate checks everything that can be checked without building the
// runtime components. Schedule expressions are checked by the poller.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		return fmt.Errorf("telegram.token is required (or set %s)", EnvToken)
	}
	if _, err := ParseDurationField("telegram.poll_timeout", cfg.Telegram.PollTimeout); err != nil {
		return err
	}
	if g := strings.TrimSpace(cfg.Telegram.GroupLog); g != "" {
		if _, err := strconv.ParseInt(g, 10, 64); err != nil {
			return fmt.Errorf("telegram.group_log: invalid chat id %q", g)
		}
	}

	if lv := strings.TrimSpace(cfg.Logging.Level); lv != "" {
		if err := logx.ValidLevel(lv); err != nil {
			return fmt.Errorf("logging.level: %w", err)
		}
	}
	if lv := strings.TrimSpace(cfg.Logging.Telegram.MinLevel); lv != "" {
		if err := logx.ValidLevel(lv); err != nil {
			return fmt.Errorf("logging.telegram.min_level: %w", err)
		}
	}
	if cfg.Logging.Telegram.RatePerSec < 0 {
		return fmt.Errorf("logging.telegram.rate_per_sec must be >= 0")
	}

	if strings.TrimSpace(cfg.Source.URL) == "" {
		return fmt.Errorf("source.url is required")
	}
	if _, err := ParseDurationField("source.timeout", cfg.Source.Timeout); err != nil {
		return err
	}

	p := cfg.Poll
	for _, f := range []struct{ path, raw string }{
		{"poll.interval", p.Interval},
		{"poll.retry_delay", p.RetryDelay},
		{"poll.check_interval", p.CheckInterval},
		{"poll.sink_cooldown", p.SinkCooldown},
		{"poll.error_cooldown", p.ErrorCooldown},
	} {
		if _, err := ParseDurationField(f.path, f.raw); err != nil {
			return err
		}
	}
	if p.RetryAttempts < 0 {
		return fmt.Errorf("poll.retry_attempts must be >= 0")
	}
	if tz := strings.TrimSpace(p.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return fmt.Errorf("poll.timezone: invalid %q: %w", tz, err)
		}
	}

	s := cfg.Stock
	if s.MatchThreshold < 0 || s.MatchThreshold > 1 {
		return fmt.Errorf("stock.match_threshold must be within [0, 1]")
	}
	for i, c := range s.Chats {
		if c.ChatID == 0 {
			return fmt.Errorf("stock.chats[%d].chat_id is required", i)
		}
	}
	if s.Color < 0 || s.Color > 0xFFFFFF {
		return fmt.Errorf("stock.color must be an RGB value")
	}

	if n := cfg.Notifier; n != nil {
		if n.Workers < 0 || n.QueueSize < 0 || n.RatePerSec < 0 || n.RetryMax < 0 || n.DedupMaxEntries < 0 {
			return fmt.Errorf("notifier: counts must be >= 0")
		}
		for _, f := range []struct{ path, raw string }{
			{"notifier.retry_base", n.RetryBase},
			{"notifier.retry_max_delay", n.RetryMaxDelay},
			{"notifier.send_timeout", n.SendTimeout},
			{"notifier.dedup_window", n.DedupWindow},
		} {
			if _, err := ParseDurationField(f.path, f.raw); err != nil {
				return err
			}
		}
	}

	if st := cfg.Storage; st != nil {
		switch d := strings.ToLower(strings.TrimSpace(st.Driver)); d {
		case "", "none":
		case "file", "sqlite", "sqlite3":
			if strings.TrimSpace(st.Path) == "" {
				return fmt.Errorf("storage.path is required for driver %q", d)
			}
		default:
			return fmt.Errorf("storage.driver: unknown driver %q", st.Driver)
		}
		if _, err := ParseDurationField("storage.busy_timeout", st.BusyTimeout); err != nil {
			return err
		}
	}
	return nil
}
