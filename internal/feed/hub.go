// Package feed broadcasts completed verifications to live websocket viewers.
package feed

import (
	"log/slog"
	"sync"
	"time"

	"github.com/ashureev/truthguard/internal/domain"
)

// SubscriberBuffer is the number of undelivered events a subscriber may hold
// before it is dropped.
const SubscriberBuffer = 16

// Event is the public projection of a verification. It never carries the
// caller's identity or message text.
type Event struct {
	ID         string         `json:"id"`
	Channel    domain.Channel `json:"channel"`
	Verdict    domain.Verdict `json:"verdict"`
	Status     domain.Status  `json:"status"`
	Confidence float64        `json:"confidence"`
	Timestamp  time.Time      `json:"timestamp"`
}

// EventFromRecord projects a stored record onto a feed event.
func EventFromRecord(rec *domain.VerificationRecord) Event {
	return Event{
		ID:         rec.ID,
		Channel:    rec.Channel,
		Verdict:    rec.Verdict,
		Status:     rec.Status,
		Confidence: rec.Confidence,
		Timestamp:  rec.CreatedAt,
	}
}

// Subscription is one viewer's event stream. C is closed when the
// subscription ends, either by Unsubscribe or because the viewer fell behind.
type Subscription struct {
	C  <-chan Event
	ch chan Event
	id uint64
}

// Hub fans events out to subscribers without ever blocking the publisher.
type Hub struct {
	mu     sync.Mutex
	subs   map[uint64]*Subscription
	nextID uint64
	closed bool
	logger *slog.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		subs:   make(map[uint64]*Subscription),
		logger: logger,
	}
}

// Subscribe registers a new viewer. The returned subscription is already
// closed if the hub has been shut down.
func (h *Hub) Subscribe() *Subscription {
	ch := make(chan Event, SubscriberBuffer)
	sub := &Subscription{C: ch, ch: ch}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(ch)
		return sub
	}
	h.nextID++
	sub.id = h.nextID
	h.subs[sub.id] = sub
	return sub
}

// Unsubscribe removes a viewer. It is safe to call more than once.
func (h *Hub) Unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(sub.id)
}

// Publish delivers ev to every subscriber. A subscriber whose buffer is full
// is dropped.
func (h *Hub) Publish(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, sub := range h.subs {
		select {
		case sub.ch <- ev:
		default:
			h.logger.Warn("Feed subscriber too slow, dropping", "subscriber", id)
			h.removeLocked(id)
		}
	}
}

// Len returns the number of active subscribers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close ends every subscription. Later subscriptions are closed immediately.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for id := range h.subs {
		h.removeLocked(id)
	}
}

func (h *Hub) removeLocked(id uint64) {
	if sub, ok := h.subs[id]; ok {
		delete(h.subs, id)
		close(sub.ch)
	}
}
