package poller

import (
	"context"
	"sync"

	"stockbot/internal/fault"
	kit "stockbot/internal/transport"
	logx "stockbot/pkg/logx"
)

// Scope identifies where a request came from. The zero value means the
// autonomous loop.
type Scope struct {
	ChatID int64
}

// Destinations resolves the output chat for reports.
type Destinations struct {
	mu       sync.RWMutex
	chats    []kit.ChatTarget
	resolver kit.ChatResolver
	log      logx.Logger
}

// NewDestinations takes the configured output chats in priority order.
// resolver may be nil, in which case chats are trusted without a lookup.
func NewDestinations(chats []kit.ChatTarget, resolver kit.ChatResolver, log logx.Logger) *Destinations {
	if log.IsZero() {
		log = logx.Nop()
	}
	d := &Destinations{resolver: resolver, log: log}
	d.Set(chats)
	return d
}

func (d *Destinations) Set(chats []kit.ChatTarget) {
	cp := make([]kit.ChatTarget, 0, len(chats))
	for _, c := range chats {
		if c.ChatID != 0 {
			cp = append(cp, c)
		}
	}
	d.mu.Lock()
	d.chats = cp
	d.mu.Unlock()
}

func (d *Destinations) Chats() []kit.ChatTarget {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]kit.ChatTarget(nil), d.chats...)
}

// Resolve prefers the caller's chat when it is a configured output chat,
// then falls back to the configured chats in order.
func (d *Destinations) Resolve(ctx context.Context, scope Scope) (kit.ChatTarget, error) {
	chats := d.Chats()
	if len(chats) == 0 {
		return kit.ChatTarget{}, fault.SinkUnavailable("no output chat configured")
	}

	ordered := chats
	if scope.ChatID != 0 {
		for i, c := range chats {
			if c.ChatID == scope.ChatID {
				ordered = append([]kit.ChatTarget{c}, append(append([]kit.ChatTarget(nil), chats[:i]...), chats[i+1:]...)...)
				break
			}
		}
	}

	for _, c := range ordered {
		if d.resolver == nil {
			return c, nil
		}
		if err := d.resolver.ResolveChat(ctx, c.ChatID); err != nil {
			d.log.Warn("output chat unreachable", logx.Int64("chat_id", c.ChatID), logx.Err(err))
			continue
		}
		return c, nil
	}
	return kit.ChatTarget{}, fault.SinkUnavailable("no reachable output chat")
}
