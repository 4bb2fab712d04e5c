// Package feed fans persisted progress records out to connected exercise-UI
// clients, so an open module view updates without polling.
package feed

import (
	"log/slog"
	"sync"

	"github.com/lumen-edu/progress-engine/internal/progress"
)

const subscriberBuffer = 8

// Hub routes published records to per-user subscribers. It implements
// progress.Publisher.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[chan *progress.ProgressRecord]struct{}
}

// NewHub creates a new feed hub.
func NewHub() *Hub {
	return &Hub{
		subs: make(map[string]map[chan *progress.ProgressRecord]struct{}),
	}
}

// Publish delivers a record to every subscriber of the user. Slow
// subscribers are skipped rather than blocked on.
func (h *Hub) Publish(userID string, rec *progress.ProgressRecord) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.subs[userID] {
		select {
		case ch <- rec:
		default:
			slog.Warn("dropping progress update for slow subscriber", "user_id", userID)
		}
	}
}

// Subscribe registers interest in one user's progress updates. The returned
// cancel func must be called when the subscriber goes away.
func (h *Hub) Subscribe(userID string) (<-chan *progress.ProgressRecord, func()) {
	ch := make(chan *progress.ProgressRecord, subscriberBuffer)

	h.mu.Lock()
	if h.subs[userID] == nil {
		h.subs[userID] = make(map[chan *progress.ProgressRecord]struct{})
	}
	h.subs[userID][ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		delete(h.subs[userID], ch)
		if len(h.subs[userID]) == 0 {
			delete(h.subs, userID)
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

// SubscriberCount reports how many subscribers a user currently has.
func (h *Hub) SubscriberCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[userID])
}
