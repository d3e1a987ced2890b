package inventory

import (
	"sort"
	"strings"
)

// DefaultAlwaysNotify lists the categories that trigger mention evaluation on
// every poll regardless of content.
var DefaultAlwaysNotify = []string{"GEAR STOCK", "SEEDS STOCK", "EGGS STOCK"}

// Policy decides which categories of a new snapshot count as changed.
type Policy struct {
	always map[string]struct{}
}

func NewPolicy(alwaysNotify []string) Policy {
	p := Policy{always: map[string]struct{}{}}
	for _, c := range alwaysNotify {
		c = strings.TrimSpace(c)
		if c != "" {
			p.always[c] = struct{}{}
		}
	}
	return p
}

func (p Policy) AlwaysNotify(category string) bool {
	_, ok := p.always[category]
	return ok
}

// Changed returns the names of the categories in next that need mention
// evaluation, in next's display order.
//
// A category counts as changed when it is in the always-notify set, when prev
// has no such category, or when its item list differs from prev's element-wise.
func (p Policy) Changed(prev, next Snapshot) []string {
	out := make([]string, 0, len(next.Categories))
	for _, c := range next.Categories {
		if p.AlwaysNotify(c.Name) {
			out = append(out, c.Name)
			continue
		}
		old, ok := prev.Items(c.Name)
		if !ok || !equalItems(old, c.Items) {
			out = append(out, c.Name)
		}
	}
	return out
}

func equalItems(a, b []Item) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Mention is one digest line: an item name and the users to alert for it.
type Mention struct {
	Item  string
	Users []string
}

// ResolveMentions matches every item of the changed categories against the
// subscriber table (user id -> wanted item names, compared case-insensitively).
//
// Results are keyed by item name: the same name showing up in several changed
// categories accumulates into one line, and a user is listed at most once per
// line. Lines follow the first appearance of the item in the snapshot; users
// are ordered by id.
func ResolveMentions(snap Snapshot, changed []string, subscribers map[string][]string) []Mention {
	if len(changed) == 0 || len(subscribers) == 0 {
		return nil
	}

	// lower(item) -> user ids (sorted)
	index := map[string][]string{}
	uids := make([]string, 0, len(subscribers))
	for uid := range subscribers {
		uids = append(uids, uid)
	}
	sort.Strings(uids)
	for _, uid := range uids {
		seen := map[string]bool{}
		for _, want := range subscribers[uid] {
			k := strings.ToLower(strings.TrimSpace(want))
			if k == "" || seen[k] {
				continue
			}
			seen[k] = true
			index[k] = append(index[k], uid)
		}
	}

	isChanged := make(map[string]bool, len(changed))
	for _, c := range changed {
		isChanged[c] = true
	}

	var out []Mention
	pos := map[string]int{}
	for _, c := range snap.Categories {
		if !isChanged[c.Name] {
			continue
		}
		for _, it := range c.Items {
			users := index[strings.ToLower(it.Name)]
			if len(users) == 0 {
				continue
			}
			i, ok := pos[it.Name]
			if !ok {
				pos[it.Name] = len(out)
				out = append(out, Mention{Item: it.Name, Users: append([]string(nil), users...)})
				continue
			}
			out[i].Users = mergeUsers(out[i].Users, users)
		}
	}
	return out
}

func mergeUsers(have, add []string) []string {
	for _, u := range add {
		dup := false
		for _, h := range have {
			if h == u {
				dup = true
				break
			}
		}
		if !dup {
			have = append(have, u)
		}
	}
	return have
}
