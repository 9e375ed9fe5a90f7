// Package notifier pushes projection changes to connected WebSocket subscribers.
package notifier

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/goran-ethernal/MarketIndexor/internal/logger"
	"github.com/goran-ethernal/MarketIndexor/pkg/events"
)

var (
	// ErrQueueFull is returned by Send when a subscriber's outbound queue has no room.
	ErrQueueFull = errors.New("subscriber queue full")
	// ErrSubscriberClosed is returned by Send after the subscriber was closed.
	ErrSubscriberClosed = errors.New("subscriber closed")
)

// Subscriber receives serialized broadcasts. Send must not block.
type Subscriber interface {
	ID() string
	Send(msg []byte) error
	Close() error
}

// Hub is the in-memory subscriber set.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]Subscriber
	log  *logger.Logger
}

// NewHub creates an empty hub.
func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		subs: make(map[string]Subscriber),
		log:  log,
	}
}

// Register adds s to the set. A subscriber registered twice under the same ID replaces the first.
func (h *Hub) Register(s Subscriber) {
	h.mu.Lock()
	prev, replaced := h.subs[s.ID()]
	h.subs[s.ID()] = s
	n := len(h.subs)
	h.mu.Unlock()

	if replaced && prev != s {
		_ = prev.Close()
	}

	subscribersSet(n)
	h.log.Debugf("subscriber %s registered, %d connected", s.ID(), n)
}

// Deregister removes and closes the subscriber with the given ID. Unknown IDs are ignored.
func (h *Hub) Deregister(id string) {
	h.mu.Lock()
	s, ok := h.subs[id]
	delete(h.subs, id)
	n := len(h.subs)
	h.mu.Unlock()

	if !ok {
		return
	}

	if err := s.Close(); err != nil {
		h.log.Debugf("closing subscriber %s: %v", id, err)
	}

	subscribersSet(n)
	h.log.Debugf("subscriber %s deregistered, %d connected", id, n)
}

// Broadcast serializes b once and offers it to every subscriber.
// Subscribers that fail the send are deregistered.
func (h *Hub) Broadcast(b *events.Broadcast) error {
	if b == nil {
		return nil
	}

	msg, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("encode %s broadcast: %w", b.Type, err)
	}

	h.mu.RLock()
	targets := make([]Subscriber, 0, len(h.subs))
	for _, s := range h.subs {
		targets = append(targets, s)
	}
	h.mu.RUnlock()

	broadcastInc(string(b.Type))

	for _, s := range targets {
		if err := s.Send(msg); err != nil {
			droppedInc(dropReason(err))
			h.log.Warnf("dropping subscriber %s: %v", s.ID(), err)
			h.Deregister(s.ID())
		}
	}

	return nil
}

// Len returns the number of registered subscribers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.subs)
}

// Close deregisters every subscriber.
func (h *Hub) Close() {
	h.mu.RLock()
	ids := make([]string, 0, len(h.subs))
	for id := range h.subs {
		ids = append(ids, id)
	}
	h.mu.RUnlock()

	for _, id := range ids {
		h.Deregister(id)
	}
}

func dropReason(err error) string {
	switch {
	case errors.Is(err, ErrQueueFull):
		return "queue_full"
	case errors.Is(err, ErrSubscriberClosed):
		return "closed"
	default:
		return "send_error"
	}
}
