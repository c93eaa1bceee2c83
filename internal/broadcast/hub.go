package broadcast

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/crabnebula-dev/gitbutler/internal/domain"
	"github.com/crabnebula-dev/gitbutler/internal/metrics"
)

// Outbox receives events on behalf of one subscriber. Push must not block
// and returns false when the subscriber can no longer receive.
type Outbox interface {
	Push(ev domain.WireEvent) bool
}

// Hub is the registry of event-stream subscribers.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[uuid.UUID]Outbox
	metrics     *metrics.HubMetrics
}

// NewHub creates an empty hub. m may be nil.
func NewHub(m *metrics.HubMetrics) *Hub {
	return &Hub{
		subscribers: make(map[uuid.UUID]Outbox),
		metrics:     m,
	}
}

// Register adds out under id. An existing registration with the same id is
// replaced.
func (h *Hub) Register(id uuid.UUID, out Outbox) {
	h.mu.Lock()
	h.subscribers[id] = out
	n := len(h.subscribers)
	h.mu.Unlock()

	h.metrics.SetSubscribers(n)
	slog.Debug("Subscriber registered", "connection_id", id, "subscribers", n)
}

// Deregister removes id. Unknown ids are ignored.
func (h *Hub) Deregister(id uuid.UUID) {
	h.mu.Lock()
	delete(h.subscribers, id)
	n := len(h.subscribers)
	h.mu.Unlock()

	h.metrics.SetSubscribers(n)
	slog.Debug("Subscriber deregistered", "connection_id", id, "subscribers", n)
}

// Send delivers a copy of ev to every subscriber registered at the time of
// the call. Closed subscribers are skipped.
func (h *Hub) Send(ev domain.WireEvent) {
	h.mu.RLock()
	targets := make([]Outbox, 0, len(h.subscribers))
	for _, out := range h.subscribers {
		targets = append(targets, out)
	}
	h.mu.RUnlock()

	delivered, skipped := 0, 0
	for _, out := range targets {
		if deliver(out, ev.Clone()) {
			delivered++
		} else {
			skipped++
		}
	}

	h.metrics.ObserveSend(delivered, skipped)
	if skipped > 0 {
		slog.Debug("Event skipped closed subscribers", "event", ev.Name, "skipped", skipped)
	}
}

func deliver(out Outbox, ev domain.WireEvent) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Subscriber push panicked", "event", ev.Name, "panic", r)
			ok = false
		}
	}()
	return out.Push(ev)
}

// Count returns the number of registered subscribers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}
