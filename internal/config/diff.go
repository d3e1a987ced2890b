package config

import (
	"reflect"
	"sort"
	"strings"

	logx "stockbot/pkg/logx"
)

// SummarizeChange returns the changed top-level sections and structured
// attrs for logging. Secrets (the bot token) are never included.
func SummarizeChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 7)
	attrs := make([]logx.Field, 0, 24)

	ot, nt := oldCfg.Telegram, newCfg.Telegram
	if ot.Token != nt.Token ||
		strings.TrimSpace(ot.PollTimeout) != strings.TrimSpace(nt.PollTimeout) ||
		!reflect.DeepEqual(ot.OwnerUserIDs, nt.OwnerUserIDs) ||
		!reflect.DeepEqual(ot.AdminUserIDs, nt.AdminUserIDs) ||
		strings.TrimSpace(ot.GroupLog) != strings.TrimSpace(nt.GroupLog) {
		changed = append(changed, "telegram")
		attrs = append(attrs,
			logx.Bool("telegram.token_changed", ot.Token != nt.Token),
			logx.Int("telegram.owner_count", len(nt.OwnerUserIDs)),
			logx.Int("telegram.admin_count", len(nt.AdminUserIDs)),
			logx.Bool("telegram.group_log_set", strings.TrimSpace(nt.GroupLog) != ""),
		)
	}

	if !reflect.DeepEqual(oldCfg.Logging, newCfg.Logging) {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
			logx.Bool("logging.telegram_enabled", newCfg.Logging.Telegram.Enabled),
		)
	}

	if !reflect.DeepEqual(oldCfg.Source, newCfg.Source) {
		changed = append(changed, "source")
		attrs = append(attrs,
			logx.Bool("source.url_changed", oldCfg.Source.URL != newCfg.Source.URL),
			logx.String("source.timeout", strings.TrimSpace(newCfg.Source.Timeout)),
			logx.Bool("source.selectors_set", newCfg.Source.Selectors != nil),
		)
	}

	if !reflect.DeepEqual(oldCfg.Poll, newCfg.Poll) {
		changed = append(changed, "poll")
		attrs = append(attrs,
			logx.Bool("poll.enabled", newCfg.Poll.EnabledOrDefault()),
			logx.String("poll.schedule", strings.TrimSpace(newCfg.Poll.Schedule)),
			logx.String("poll.interval", strings.TrimSpace(newCfg.Poll.Interval)),
			logx.String("poll.timezone", strings.TrimSpace(newCfg.Poll.Timezone)),
			logx.Int("poll.retry_attempts", newCfg.Poll.RetryAttempts),
		)
	}

	if !reflect.DeepEqual(oldCfg.Stock, newCfg.Stock) {
		changed = append(changed, "stock")
		attrs = append(attrs,
			logx.Int("stock.chat_count", len(newCfg.Stock.Chats)),
			logx.Strings("stock.always_notify", newCfg.Stock.AlwaysNotify),
			logx.Float64("stock.match_threshold", newCfg.Stock.MatchThreshold),
		)
	}

	defN := DefaultNotifier()
	oldN, newN := &defN, &defN
	if oldCfg.Notifier != nil {
		oldN = oldCfg.Notifier
	}
	if newCfg.Notifier != nil {
		newN = newCfg.Notifier
	}
	if *oldN != *newN {
		changed = append(changed, "notifier")
		attrs = append(attrs,
			logx.Bool("notifier.enabled", newN.Enabled),
			logx.Int("notifier.workers", newN.Workers),
			logx.Int("notifier.queue_size", newN.QueueSize),
			logx.Int("notifier.rate_per_sec", newN.RatePerSec),
			logx.Int("notifier.retry_max", newN.RetryMax),
		)
	}

	defS := DefaultStorage()
	oldS, newS := &defS, &defS
	if oldCfg.Storage != nil {
		oldS = oldCfg.Storage
	}
	if newCfg.Storage != nil {
		newS = newCfg.Storage
	}
	if *oldS != *newS {
		changed = append(changed, "storage")
		attrs = append(attrs,
			logx.String("storage.driver", strings.TrimSpace(newS.Driver)),
			logx.Bool("storage.path_set", strings.TrimSpace(newS.Path) != ""),
		)
	}

	sort.Strings(changed)
	return changed, attrs
}
