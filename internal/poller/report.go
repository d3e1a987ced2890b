package poller

import (
	"fmt"
	"strings"
	"time"

	"stockbot/internal/inventory"
	kit "stockbot/internal/transport"
)

const (
	DefaultTitle         = "🌱 Grow A Garden Stock Update 🌱"
	DefaultColor         = 0x2ecc71
	DefaultOwnerFallback = "@owner"

	noItems      = "No items"
	footerLayout = "15:04:05 MST"
)

// Report is the user-facing output of one successful poll.
type Report struct {
	// Digest holds one "Item: <@u1> <@u2>" line per mentioned item; empty when nobody matched.
	Digest  string
	Summary kit.Summary
}

// BuildReport renders the digest and summary. next is the estimated next poll time.
func BuildReport(snap inventory.Snapshot, mentions []inventory.Mention, scrapedAt, next time.Time, title string, color int) Report {
	if title == "" {
		title = DefaultTitle
	}
	sum := kit.Summary{
		Title:     title,
		Color:     color,
		Timestamp: scrapedAt,
		Footer:    fmt.Sprintf("Scraped: %s | Next: %s", scrapedAt.Format(footerLayout), next.Format(footerLayout)),
	}
	for _, c := range snap.Categories {
		sum.Fields = append(sum.Fields, kit.Field{Name: c.Name, Value: categoryValue(c.Items)})
	}
	return Report{Digest: Digest(mentions), Summary: sum}
}

// Notification queues the digest (when present) ahead of the summary.
func (r Report) Notification(to kit.ChatTarget) kit.Notification {
	n := kit.Notification{Channel: "telegram", Target: to}
	if r.Digest != "" {
		n.Messages = append(n.Messages, kit.Payload{Text: r.Digest})
	}
	sum := r.Summary
	n.Messages = append(n.Messages, kit.Payload{Summary: &sum})
	return n
}

// Digest joins one line per mention, in mention order.
func Digest(mentions []inventory.Mention) string {
	lines := make([]string, 0, len(mentions))
	for _, m := range mentions {
		if len(m.Users) == 0 {
			continue
		}
		tags := make([]string, 0, len(m.Users))
		for _, u := range m.Users {
			tags = append(tags, kit.Mention(u))
		}
		lines = append(lines, m.Item+": "+strings.Join(tags, " "))
	}
	return strings.Join(lines, "\n")
}

func categoryValue(items []inventory.Item) string {
	if len(items) == 0 {
		return noItems
	}
	lines := make([]string, 0, len(items))
	for _, it := range items {
		lines = append(lines, it.Name+": "+it.Quantity)
	}
	return strings.Join(lines, "\n")
}

// OwnerMention tags the configured owner, or returns the fallback literal.
func OwnerMention(ownerID, fallback string) string {
	if id := strings.TrimSpace(ownerID); id != "" {
		return kit.Mention(id)
	}
	if fallback = strings.TrimSpace(fallback); fallback != "" {
		return fallback
	}
	return DefaultOwnerFallback
}

// CriticalText is posted when every scheduled attempt failed.
func CriticalText(owner string, err error) string {
	return fmt.Sprintf("%s ⚠️ **CRITICAL ERROR**\nAll scrape attempts failed! Last error: %v", owner, err)
}

// ManualFailureText is posted to the output chat when a manual scrape fails.
func ManualFailureText(err error) string {
	return fmt.Sprintf("⚠️ Manual scrape failed: %v", err)
}
