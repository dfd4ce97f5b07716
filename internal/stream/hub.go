// Package stream pushes store change notifications to websocket clients.
package stream

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/aristath/stockfolio/internal/modules/portfolio"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Event types
const (
	EventReady            = "ready"
	EventPortfolioChanged = "portfolio_changed"
	EventQuotesRefreshed  = "quotes_refreshed"
)

const clientBuffer = 32

// Event is one message sent to clients
type Event struct {
	Type         string    `json:"type"`
	Version      uint64    `json:"version"`
	PortfolioIDs []string  `json:"portfolioIds,omitempty"`
	Tickers      []string  `json:"tickers,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

type subscriber struct {
	id   string
	send chan Event
}

// Hub fans events out to connected clients. Slow clients lose events rather
// than blocking publishers.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]*subscriber
	dropped     atomic.Uint64
	now         func() time.Time
	log         zerolog.Logger
}

// NewHub creates an empty hub
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		subscribers: make(map[string]*subscriber),
		now:         time.Now,
		log:         log.With().Str("component", "stream_hub").Logger(),
	}
}

// Subscribe registers a client and returns its id and event channel.
// The channel is closed by Unsubscribe.
func (h *Hub) Subscribe() (string, <-chan Event) {
	sub := &subscriber{id: uuid.NewString(), send: make(chan Event, clientBuffer)}

	h.mu.Lock()
	h.subscribers[sub.id] = sub
	h.mu.Unlock()

	return sub.id, sub.send
}

// Unsubscribe removes a client
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if sub, ok := h.subscribers[id]; ok {
		delete(h.subscribers, id)
		close(sub.send)
	}
}

// Count returns the number of connected clients
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// Publish sends ev to every client without blocking
func (h *Hub) Publish(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = h.now().UTC()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, sub := range h.subscribers {
		select {
		case sub.send <- ev:
		default:
			h.dropped.Add(1)
			h.log.Warn().
				Str("client", sub.id).
				Str("event", ev.Type).
				Msg("Client buffer full, dropping event")
		}
	}
}

// Dropped returns how many events were discarded for full client buffers
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

// Listen is the store listener publishing portfolio_changed
func (h *Hub) Listen(change portfolio.Change) {
	h.Publish(Event{
		Type:         EventPortfolioChanged,
		Version:      change.Version,
		PortfolioIDs: change.PortfolioIDs,
	})
}

// Close disconnects every subscriber
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, sub := range h.subscribers {
		delete(h.subscribers, id)
		close(sub.send)
	}
}
