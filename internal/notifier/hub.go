package notifier

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"go-offline-proxy/internal/interfaces"
	"go-offline-proxy/internal/metrics"
	"go-offline-proxy/internal/models"
)

const defaultBuffer = 8

// Ensure Hub implements interfaces.ClientNotifier
var _ interfaces.ClientNotifier = (*Hub)(nil)

// Hub fans client messages out to every subscriber. A subscriber whose
// buffer is full misses the message instead of blocking the broadcast.
type Hub struct {
	mu      sync.RWMutex
	clients map[uint64]chan models.ClientMessage
	nextID  uint64
	buffer  int
	closed  bool
	logger  *zap.Logger
}

// NewHub creates a hub with the given per-subscriber buffer
func NewHub(buffer int, logger *zap.Logger) *Hub {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Hub{
		clients: make(map[uint64]chan models.ClientMessage),
		buffer:  buffer,
		logger:  logger,
	}
}

// Subscribe registers a client. The channel is closed on Unsubscribe or Close.
func (h *Hub) Subscribe() (uint64, <-chan models.ClientMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan models.ClientMessage, h.buffer)
	if h.closed {
		close(ch)
		return 0, ch
	}

	h.nextID++
	id := h.nextID
	h.clients[id] = ch
	metrics.SetConnectedClients(len(h.clients))
	h.logger.Debug("Client subscribed", zap.Uint64("client_id", id), zap.Int("clients", len(h.clients)))
	return id, ch
}

// Unsubscribe removes a client and closes its channel
func (h *Hub) Unsubscribe(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch, ok := h.clients[id]
	if !ok {
		return
	}
	delete(h.clients, id)
	close(ch)
	metrics.SetConnectedClients(len(h.clients))
	h.logger.Debug("Client unsubscribed", zap.Uint64("client_id", id), zap.Int("clients", len(h.clients)))
}

// Broadcast delivers msg to every subscriber and returns how many received it
func (h *Hub) Broadcast(_ context.Context, msg models.ClientMessage) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for id, ch := range h.clients {
		select {
		case ch <- msg:
			delivered++
		default:
			h.logger.Warn("Dropping message for slow client",
				zap.Uint64("client_id", id),
				zap.String("type", msg.Type))
		}
	}

	h.logger.Info("Broadcast client message",
		zap.String("type", msg.Type),
		zap.Int("delivered", delivered),
		zap.Int("clients", len(h.clients)))
	return delivered
}

// Count returns the number of subscribers
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every subscriber
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, ch := range h.clients {
		close(ch)
		delete(h.clients, id)
	}
	h.closed = true
	metrics.SetConnectedClients(0)
}
