// Package events broadcasts engine events (distributions, tier moves,
// snapshots) to WebSocket subscribers. Delivery is best-effort: slow
// clients are dropped rather than allowed to stall the engine.
package events

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Event types published by the engine.
const (
	TypeDistributionExecuted = "distribution_executed"
	TypeTierUpgraded         = "tier_upgraded"
	TypeSellProcessed        = "sell_processed"
	TypeSnapshotTaken        = "snapshot_taken"
)

const (
	writeWait      = 10 * time.Second
	clientBufSize  = 16
	maxMessageSize = 512
)

// Event is one broadcast message.
type Event struct {
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// Hub fans events out to connected WebSocket clients.
type Hub struct {
	logger   *log.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// NewHub creates an event hub.
func NewHub(logger *log.Logger) *Hub {
	if logger == nil {
		logger = log.Default()
	}
	return &Hub{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Engine events are public reads; origin checks belong to
			// the fronting API layer.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
	}
}

// ServeHTTP upgrades the connection and subscribes it to all events.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("websocket upgrade failed: %v", err)
		return
	}

	c := &client{
		conn: conn,
		send: make(chan []byte, clientBufSize),
	}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()
	h.logger.Printf("websocket client connected (%d total)", count)

	go h.writePump(c)
	go h.readPump(c)
}

// Broadcast publishes an event to every connected client. Clients with
// full buffers are disconnected; the engine never blocks on them.
func (h *Hub) Broadcast(eventType string, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		h.logger.Printf("marshal %s payload: %v", eventType, err)
		return
	}
	msg, err := json.Marshal(Event{
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Payload:   raw,
	})
	if err != nil {
		h.logger.Printf("marshal %s event: %v", eventType, err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			delete(h.clients, c)
			close(c.send)
			h.logger.Printf("dropping slow websocket client")
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects all clients.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
}

func (h *Hub) writePump(c *client) {
	defer c.conn.Close()
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.remove(c)
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// readPump drains and discards client messages so pings and close
// frames are processed.
func (h *Hub) readPump(c *client) {
	c.conn.SetReadLimit(maxMessageSize)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			h.remove(c)
			return
		}
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}
