// Package feed broadcasts live intelligence events to connected
// operator clients.
package feed

import (
	"sync"
	"time"

	"github.com/priyankdesai/jaal/internal/intel"
)

const subscriberBuffer = 32

// Event is one item on the live feed.
type Event struct {
	SessionID string        `json:"session_id"`
	Type      string        `json:"type"`
	Record    *intel.Record `json:"record,omitempty"`
	At        time.Time     `json:"at"`
}

const (
	EventExtraction       = "extraction"
	EventSessionCompleted = "session_completed"
)

// Hub fans events out to subscribers. Slow subscribers drop events
// rather than stall the pipeline.
type Hub struct {
	mu   sync.Mutex
	subs map[chan Event]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[chan Event]struct{})}
}

// Subscribe registers a listener. The returned cancel function must be
// called when the listener goes away.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if _, ok := h.subs[ch]; ok {
			delete(h.subs, ch)
			close(ch)
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

// Publish delivers the event to every live subscriber.
func (h *Hub) Publish(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
