package adapter

import (
	"strings"

	kit "stockbot/internal/transport"
	"stockbot/pkg/tgui"
)

// textLimit stays under Telegram's 4096 character message cap.
const textLimit = 4000

// RenderText converts chat markup to Telegram HTML.
func RenderText(text string) string { return tgui.Markup(text).String() }

// RenderSummary lays a summary out as HTML: bold title, one bold heading
// per field followed by its lines, italic footer. Telegram has no accent
// color, so Color is not rendered.
func RenderSummary(s kit.Summary) string {
	parts := make([]tgui.H, 0, len(s.Fields)+2)
	if t := strings.TrimSpace(s.Title); t != "" {
		parts = append(parts, tgui.B(t))
	}
	for _, f := range s.Fields {
		parts = append(parts, tgui.JoinH("\n", tgui.B(f.Name), tgui.Markup(f.Value)))
	}
	if f := strings.TrimSpace(s.Footer); f != "" {
		parts = append(parts, tgui.I(f))
	}
	return tgui.JoinH("\n\n", parts...).String()
}

// splitText splits long messages into chunks Telegram accepts. It prefers
// newline boundaries and, for HTML, avoids cutting inside a tag.
func splitText(s string, limit int, parseMode string) []string {
	if limit <= 0 {
		limit = textLimit
	}
	rs := []rune(s)
	if len(rs) <= limit {
		return []string{s}
	}

	out := make([]string, 0, (len(rs)+limit-1)/limit)
	start := 0
	for start < len(rs) {
		end := min(start+limit, len(rs))

		if end < len(rs) {
			for i := end - 1; i > start; i-- {
				// avoid tiny chunks
				if rs[i] == '\n' && i-start >= limit/3 {
					end = i + 1
					break
				}
			}
		}

		if strings.EqualFold(parseMode, "HTML") && end < len(rs) {
			lastOpen, lastClose := -1, -1
			for i := start; i < end; i++ {
				switch rs[i] {
				case '<':
					lastOpen = i
				case '>':
					lastClose = i
				}
			}
			if lastOpen > lastClose && lastOpen > start+1 {
				end = lastOpen
			}
		}

		out = append(out, strings.TrimRight(string(rs[start:end]), "\n"))
		start = end
		for start < len(rs) && rs[start] == '\n' {
			start++
		}
	}
	return out
}
