package tgui

import "testing"

func TestMarkup(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name, in string
		want H
	}{
		{"plain", "Carrot Seed: x3", "Carrot Seed: x3"},
		{"escape", "a < b & c", "a &lt; b &amp; c"},
		{"mention", "Carrot Seed: <@42>", `Carrot Seed: <a href="tg://user?id=42">42</a>`},
		{"two mentions", "<@1> <@2>", `<a href="tg://user?id=1">1</a> <a href="tg://user?id=2">2</a>`},
		{"non numeric mention", "<@owner>", "@owner"},
		{"bold", "<@7> ⚠️ **CRITICAL ERROR**", `<a href="tg://user?id=7">7</a> ⚠️ <b>CRITICAL ERROR</b>`},
		{"html in bold", "**<i>**", "<b>&lt;i&gt;</b>"},
		{"unpaired stars", "a ** b", "a ** b"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Markup(tc.in); got != tc.want {
				t.Fatalf("Markup(%q)=%q want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestTruncRunes(t *testing.T) {
	t.Parallel()

	if got := TruncRunes("héllo", 3); got != "hél…" {
		t.Fatalf("got %q", got)
	}
	if got := TruncRunes("hi", 3); got != "hi" {
		t.Fatalf("got %q", got)
	}
	if got := TruncRunes("hi", 0); got != "" {
		t.Fatalf("got %q", got)
	}
}

func TestJoinH(t *testing.T) {
	t.Parallel()

	if got := JoinH("\n", B("a"), "", I("b")); got != "<b>a</b>\n<i>b</i>" {
		t.Fatalf("got %q", got)
	}
}
