package events

import (
	"context"
	"strconv"
	"strings"
	"sync"
)

const hubHistoryLimit = 2048

// Hub keeps a bounded history of committed events and fans them out to live
// subscribers. Slow subscribers drop events rather than block the ledger.
type Hub struct {
	mu      sync.Mutex
	subs    map[uint64]chan Committed
	nextID  uint64
	history []Committed
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[uint64]chan Committed)}
}

// Emit implements the Emitter interface. Non-ledger events are ignored.
func (h *Hub) Emit(evt Event) {
	committed, ok := evt.(Committed)
	if h == nil || !ok || committed.Evt == nil {
		return
	}
	committed.Evt = committed.Evt.Clone()

	h.mu.Lock()
	h.history = append(h.history, committed)
	if len(h.history) > hubHistoryLimit {
		excess := len(h.history) - hubHistoryLimit
		trimmed := make([]Committed, hubHistoryLimit)
		copy(trimmed, h.history[excess:])
		h.history = trimmed
	}
	// Sends happen under the lock so cancel cannot close a channel mid-send.
	for _, ch := range h.subs {
		select {
		case ch <- committed:
		default:
		}
	}
	h.mu.Unlock()
}

// Subscribe registers a subscriber and returns the retained events committed
// after the supplied sequence cursor. The returned cancel func is idempotent
// and is also invoked when ctx ends.
func (h *Hub) Subscribe(ctx context.Context, cursor string) (<-chan Committed, func(), []Committed) {
	updates := make(chan Committed, 32)

	var since uint64
	if trimmed := strings.TrimSpace(cursor); trimmed != "" {
		if parsed, err := strconv.ParseUint(trimmed, 10, 64); err == nil {
			since = parsed
		}
	}

	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = updates
	backlog := make([]Committed, 0, len(h.history))
	for _, entry := range h.history {
		if entry.Seq > since {
			backlog = append(backlog, entry)
		}
	}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			if sub, ok := h.subs[id]; ok {
				delete(h.subs, id)
				close(sub)
			}
			h.mu.Unlock()
		})
	}
	if ctx != nil {
		go func() {
			<-ctx.Done()
			cancel()
		}()
	}
	return updates, cancel, backlog
}
