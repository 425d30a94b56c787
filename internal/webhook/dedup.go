package webhook

import "sync"

// defaultDedupLimit matches the upstream retry horizon: once the set grows
// past this many ids it is cleared wholesale rather than evicted per entry.
const defaultDedupLimit = 5000

// Guard remembers processed event and message ids so webhook retries do
// not trigger duplicate replies or bookings.
type Guard struct {
	mu       sync.Mutex
	limit    int
	events   map[string]struct{}
	messages map[string]struct{}
}

func NewGuard(limit int) *Guard {
	if limit <= 0 {
		limit = defaultDedupLimit
	}
	return &Guard{
		limit:    limit,
		events:   make(map[string]struct{}),
		messages: make(map[string]struct{}),
	}
}

// Seen atomically checks and marks both ids. It returns true when either
// id was already recorded; a delivery is a duplicate if its event OR its
// message was handled before.
func (g *Guard) Seen(eventID, messageID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	_, eventSeen := g.events[eventID]
	_, messageSeen := g.messages[messageID]
	if eventSeen || messageSeen {
		return true
	}

	if len(g.events) >= g.limit {
		g.events = make(map[string]struct{})
	}
	if len(g.messages) >= g.limit {
		g.messages = make(map[string]struct{})
	}
	g.events[eventID] = struct{}{}
	g.messages[messageID] = struct{}{}
	return false
}

// Len reports how many event ids are currently tracked.
func (g *Guard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.events)
}
