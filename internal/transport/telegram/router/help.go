package router

import (
	"sort"
	"strings"

	"stockbot/pkg/tgui"
)

// HelpText renders the command list as Telegram HTML. Restricted commands
// go last.
func (m *Router) HelpText() string {
	cmds := m.Commands()
	sort.SliceStable(cmds, func(i, j int) bool {
		if cmds[i].Access != cmds[j].Access {
			return cmds[i].Access < cmds[j].Access
		}
		return cmds[i].Name < cmds[j].Name
	})

	lines := []tgui.H{tgui.Raw("📚 <b>Commands</b>"), ""}
	for _, c := range cmds {
		usage := strings.TrimSpace(c.Usage)
		if usage == "" {
			usage = "/" + c.Name
		}
		line := tgui.Raw("• ")
		if c.Access != AccessEveryone {
			line += "🔒 "
		}
		line += tgui.Code(usage)
		if d := strings.TrimSpace(c.Description); d != "" {
			line += tgui.Raw(" — ") + tgui.Esc(d)
		}
		lines = append(lines, line)
	}
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		out = append(out, l.String())
	}
	return strings.Join(out, "\n")
}
