package websocket

import (
	"encoding/json"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/scythe504/hotseat-backend/internal"
	"github.com/scythe504/hotseat-backend/internal/metrics"
)

// =============================================================================
// HUB: SESSION CHANNELS
// =============================================================================

// Hub groups connections into per-session channels. Broadcast never blocks:
// a connection whose send buffer is full is dropped instead.
type Hub struct {
	mu      sync.RWMutex
	rooms   map[string]map[*Client]struct{}
	clients map[*Client]struct{}

	metrics *metrics.WebSocketMetrics
}

func NewHub(m *metrics.WebSocketMetrics) *Hub {
	if m == nil {
		m = metrics.NewWebSocketMetrics(prometheus.NewRegistry())
	}
	return &Hub{
		rooms:   make(map[string]map[*Client]struct{}),
		clients: make(map[*Client]struct{}),
		metrics: m,
	}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.metrics.Connections.Inc()
}

// unregister removes c from its channel and the hub and closes its send queue.
func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	_, known := h.clients[c]
	if known {
		delete(h.clients, c)
		h.leaveLocked(c)
	}
	h.mu.Unlock()

	if known {
		h.metrics.Connections.Dec()
		c.closeSend()
	}
}

// Subscribe moves c into the channel of code and returns the channel it was
// in before, or "" if none. An empty code only leaves the current channel.
func (h *Hub) Subscribe(c *Client, code string) string {
	h.mu.Lock()
	defer h.mu.Unlock()

	previous := c.room
	if previous == code {
		return previous
	}
	h.leaveLocked(c)
	if code != "" {
		members, ok := h.rooms[code]
		if !ok {
			members = make(map[*Client]struct{})
			h.rooms[code] = members
		}
		members[c] = struct{}{}
	}
	c.room = code
	return previous
}

func (h *Hub) leaveLocked(c *Client) {
	if c.room == "" {
		return
	}
	if members, ok := h.rooms[c.room]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, c.room)
		}
	}
	c.room = ""
}

// Members reports how many connections are in the channel of code.
func (h *Hub) Members(code string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[code])
}

// Broadcast queues msg on every connection of the session channel, in call
// order per connection.
func (h *Hub) Broadcast(code string, msg internal.Message[any]) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Str("event", msg.Type).Msg("[Broadcast] failed to marshal event")
		return
	}

	var slow []*Client
	h.mu.RLock()
	for c := range h.rooms[code] {
		if c.enqueue(data) {
			h.metrics.MessagesEnqueued.Inc()
			continue
		}
		slow = append(slow, c)
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.metrics.DroppedClients.Inc()
		log.Warn().
			Str("connection_id", c.id).
			Str("session_code", code).
			Msg("[Broadcast] send buffer full, dropping connection")
		c.drop()
	}
}

// CloseAll disconnects every connection, for shutdown.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.drop()
	}
	log.Info().Int("connections", len(clients)).Msg("[CloseAll] websocket connections closed")
}
