package tgui

import (
	"fmt"
	"html"
	"regexp"
	"strconv"
	"strings"
)

// H represents HTML that is safe to pass to Telegram when ParseMode="HTML".
// Values of type H should be treated as already-escaped.
type H string

func (h H) String() string { return string(h) }

// Esc escapes text for Telegram HTML parse mode.
func Esc(s string) H { return H(html.EscapeString(s)) }

// Raw marks a string as already-safe HTML.
func Raw(s string) H { return H(s) }

func wrap(tag string, inner H) H { return H("<" + tag + ">" + inner.String() + "</" + tag + ">") }

func B(s string) H    { return wrap("b", Esc(s)) }
func I(s string) H    { return wrap("i", Esc(s)) }
func Code(s string) H { return wrap("code", Esc(s)) }

// Link builds an HTML link.
func Link(text, url string) H {
	return H(fmt.Sprintf(`<a href="%s">%s</a>`, html.EscapeString(url), html.EscapeString(text)))
}

// Mention links to a Telegram user ID.
func Mention(name string, userID int64) H {
	return Link(name, fmt.Sprintf("tg://user?id=%d", userID))
}

// JoinH joins non-blank safe HTML parts with sep.
func JoinH(sep string, parts ...H) H {
	ss := make([]string, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p.String()) == "" {
			continue
		}
		ss = append(ss, p.String())
	}
	return H(strings.Join(ss, sep))
}

var (
	// both patterns run on escaped text
	mentionRx = regexp.MustCompile(`&lt;@([^&\s]+)&gt;`)
	boldRx    = regexp.MustCompile(`\*\*(.+?)\*\*`)
)

// Markup converts chat markup to Telegram HTML. Everything is escaped;
// "**x**" becomes bold and "<@id>" with a numeric id becomes a user link.
// Mentions of non-numeric ids are kept as plain text.
func Markup(s string) H {
	out := Esc(s).String()
	out = mentionRx.ReplaceAllStringFunc(out, func(m string) string {
		id := mentionRx.FindStringSubmatch(m)[1]
		n, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			return "@" + id
		}
		return Mention(id, n).String()
	})
	out = boldRx.ReplaceAllString(out, "<b>$1</b>")
	return H(out)
}
