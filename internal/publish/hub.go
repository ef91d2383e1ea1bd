package publish

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/fichas-scanner/internal/common"
	"github.com/joseph-ayodele/fichas-scanner/internal/extract"
)

// Subscription receives every message published after it was created.
type Subscription struct {
	ID uuid.UUID
	C  <-chan Message

	ch  chan Message
	hub *Hub
}

// Close detaches the subscription and closes C.
func (s *Subscription) Close() {
	s.hub.unsubscribe(s.ID)
}

// Hub is an in-process broadcast channel. Delivery is best effort: a
// subscriber whose buffer is full misses the message.
type Hub struct {
	logger        *slog.Logger
	defaultBuffer int

	mu     sync.RWMutex
	subs   map[uuid.UUID]*Subscription
	closed bool
}

func NewHub(defaultBuffer int, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	if defaultBuffer <= 0 {
		defaultBuffer = 16
	}
	return &Hub{logger: logger, defaultBuffer: defaultBuffer, subs: make(map[uuid.UUID]*Subscription)}
}

// Subscribe registers a listener. buffer <= 0 uses the hub default.
func (h *Hub) Subscribe(buffer int) (*Subscription, error) {
	if buffer <= 0 {
		buffer = h.defaultBuffer
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, fmt.Errorf("%w: hub closed", common.ErrPublishFailure)
	}
	ch := make(chan Message, buffer)
	s := &Subscription{ID: uuid.New(), C: ch, ch: ch, hub: h}
	h.subs[s.ID] = s
	h.logger.Debug("subscriber added", "subscriber_id", s.ID, "subscribers", len(h.subs))
	return s, nil
}

func (h *Hub) unsubscribe(id uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s, ok := h.subs[id]; ok {
		delete(h.subs, id)
		close(s.ch)
		h.logger.Debug("subscriber removed", "subscriber_id", id, "subscribers", len(h.subs))
	}
}

// Subscribers returns the number of live subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Publish broadcasts rec. Having no subscribers is not an error.
func (h *Hub) Publish(ctx context.Context, rec extract.Record) error {
	_, err := h.Broadcast(ctx, BuildMessage(rec))
	return err
}

// Broadcast validates msg and offers it to every subscriber, returning how
// many received it.
func (h *Hub) Broadcast(ctx context.Context, msg Message) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, common.Kind(common.ErrPublishFailure, err)
	}
	if _, err := msg.Encode(); err != nil {
		return 0, common.Kind(common.ErrPublishFailure, err)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return 0, fmt.Errorf("%w: hub closed", common.ErrPublishFailure)
	}

	delivered, dropped := 0, 0
	for id, s := range h.subs {
		select {
		case s.ch <- cloneMessage(msg):
			delivered++
		default:
			dropped++
			h.logger.Warn("subscriber buffer full, message dropped", "subscriber_id", id)
		}
	}
	h.logger.Info("message published", "type", msg.Type, "delivered", delivered, "dropped", dropped)
	return delivered, nil
}

// Close closes every subscription. Later publishes fail.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, s := range h.subs {
		close(s.ch)
		delete(h.subs, id)
	}
}

func cloneMessage(m Message) Message {
	data := make(map[string]string, len(m.Data))
	for k, v := range m.Data {
		data[k] = v
	}
	return Message{Type: m.Type, Data: data}
}
