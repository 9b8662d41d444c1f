package realtime

import (
	"sync"

	"github.com/goccy/go-json"
)

// Client represents a single websocket subscriber.
// The network connection itself is managed in the ws handler. Send is called
// with the hub locked and must not block; implementations queue the message.
type Client interface {
	Send(message []byte) bool
	Close()
}

// Event types pushed to subscribers.
const (
	EventOrderCached = "order_cached"
)

// Event is the payload broadcast to every subscriber.
type Event struct {
	Type           string `json:"type"`
	OrderID        string `json:"orderId,omitempty"`
	TrackingNumber string `json:"trackingNumber,omitempty"`
	Items          int    `json:"items"`
	Version        int    `json:"version"`
}

// Hub maintains subscribed clients and broadcasts events to them.
type Hub struct {
	mu      sync.RWMutex
	clients map[Client]struct{}
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[Client]struct{})}
}

// Register adds a client.
func (h *Hub) Register(client Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client] = struct{}{}
}

// Unregister removes a client.
func (h *Hub) Unregister(client Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, client)
}

// Len returns the number of subscribers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends message to all clients and returns how many accepted it.
func (h *Hub) Broadcast(message []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	sent := 0
	for c := range h.clients {
		// a failed client is cleaned up by its own handler
		if c.Send(message) {
			sent++
		}
	}
	return sent
}

// Publish encodes evt and broadcasts it.
func (h *Hub) Publish(evt Event) (int, error) {
	if evt.Version == 0 {
		evt.Version = 1
	}
	b, err := json.Marshal(evt)
	if err != nil {
		return 0, err
	}
	return h.Broadcast(b), nil
}
