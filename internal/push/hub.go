// Package push fans live notifications out to a user's connected clients.
package push

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/phrazzld/tasknotify/internal/domain"
)

// DefaultBuffer is the per-subscription channel capacity.
const DefaultBuffer = 16

// Subscription receives the notifications pushed to one user.
type Subscription struct {
	C      <-chan domain.NotificationSummary
	ch     chan domain.NotificationSummary
	userID uuid.UUID
	hub    *Hub
	once   sync.Once
}

// Close unsubscribes and closes C. It is safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() { s.hub.remove(s) })
}

// Hub is an in-process registry of live subscriptions keyed by user.
type Hub struct {
	mu     sync.RWMutex
	subs   map[uuid.UUID]map[*Subscription]struct{}
	buffer int
	logger *slog.Logger
}

// NewHub creates a Hub. A non-positive buffer uses DefaultBuffer.
func NewHub(buffer int, logger *slog.Logger) *Hub {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		subs:   make(map[uuid.UUID]map[*Subscription]struct{}),
		buffer: buffer,
		logger: logger.With("component", "push_hub"),
	}
}

// Subscribe registers a new subscription for userID.
func (h *Hub) Subscribe(userID uuid.UUID) *Subscription {
	ch := make(chan domain.NotificationSummary, h.buffer)
	sub := &Subscription{C: ch, ch: ch, userID: userID, hub: h}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[userID] == nil {
		h.subs[userID] = make(map[*Subscription]struct{})
	}
	h.subs[userID][sub] = struct{}{}
	return sub
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.subs[sub.userID]; ok {
		delete(set, sub)
		if len(set) == 0 {
			delete(h.subs, sub.userID)
		}
	}
	close(sub.ch)
}

// PushToUser delivers summary to every subscription of userID without
// blocking. A subscription whose buffer is full misses the message.
func (h *Hub) PushToUser(userID uuid.UUID, summary domain.NotificationSummary) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.subs[userID] {
		select {
		case sub.ch <- summary:
		default:
			h.logger.Warn("dropped push for slow subscriber",
				"user_id", userID,
				"notification_id", summary.ID)
		}
	}
}

// Subscribers returns the number of live subscriptions for userID.
func (h *Hub) Subscribers(userID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[userID])
}
