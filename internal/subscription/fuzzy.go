package subscription

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// DefaultCutoff is the minimum similarity ratio for a fuzzy match.
const DefaultCutoff = 0.6

// Similarity returns the ratio 2*M/T of matching characters between a and b,
// compared case-insensitively. 1.0 means identical.
func Similarity(a, b string) float64 {
	a = strings.ToLower(a)
	b = strings.ToLower(b)
	if a == "" && b == "" {
		return 1
	}
	return difflib.NewMatcher(chars(a), chars(b)).Ratio()
}

func chars(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}

// BestMatch returns the corpus entry most similar to want, provided its score
// reaches cutoff. Ties go to the lexically smaller name so results don't
// depend on map iteration order.
func BestMatch(want string, corpus []string, cutoff float64) (string, float64, bool) {
	if cutoff <= 0 || cutoff > 1 {
		cutoff = DefaultCutoff
	}
	var (
		best  string
		score = -1.0
	)
	for _, cand := range corpus {
		s := Similarity(cand, want)
		if s > score || (s == score && cand < best) {
			best, score = cand, s
		}
	}
	if score < cutoff {
		return "", max(score, 0), false
	}
	return best, score, true
}
