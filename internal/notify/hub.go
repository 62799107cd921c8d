package notify

import (
	"fmt"
	"log/slog"
	"sync"
)

// Derived views a client may need to re-query after a write.
const (
	ViewRecipes   = "recipes"
	ViewInventory = "inventory"
	ViewDay       = "day"
	ViewWeek      = "week"
	ViewSettings  = "settings"
)

// Message tells clients that something changed and which views are stale.
type Message struct {
	Type   string         `json:"type"`
	Entity string         `json:"entity"`
	Action string         `json:"action"`
	ID     string         `json:"id,omitempty"`
	Stale  []string       `json:"stale,omitempty"`
	Extra  map[string]any `json:"extra,omitempty"`
}

// NewMessage derives Type from entity and action, e.g. log_entry_created.
func NewMessage(entity, action, id string, stale []string, extra map[string]any) Message {
	return Message{
		Type:   fmt.Sprintf("%s_%s", entity, action),
		Entity: entity,
		Action: action,
		ID:     id,
		Stale:  stale,
		Extra:  extra,
	}
}

// Broadcaster is the write side of a Hub.
type Broadcaster interface {
	Broadcast(msg Message)
}

// Nop discards every message.
type Nop struct{}

func (Nop) Broadcast(Message) {}

// Hub fans messages out to connected websocket clients.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	logger  *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients: make(map[*Client]struct{}),
		logger:  logger,
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", "clients", h.ClientCount())
}

// Unregister removes c and closes its send channel. Calling it twice is
// safe.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// Broadcast never blocks: a client whose buffer is full misses the message.
// Clients subscribed to other views are skipped.
func (h *Hub) Broadcast(msg Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	dropped := 0
	for c := range h.clients {
		if !c.wants(msg) {
			continue
		}
		select {
		case c.send <- msg:
		default:
			dropped++
		}
	}
	if dropped > 0 {
		h.logger.Warn("websocket clients behind, message dropped", "type", msg.Type, "dropped", dropped)
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
