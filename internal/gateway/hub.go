// Package gateway pushes bot events to browser clients over WebSocket.
// The hub implements model.EventSink: the trading loop publishes typed
// events and the hub fans them out to every connected client, dropping
// frames for slow consumers rather than blocking the loop.
package gateway

import (
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"algotrader/internal/model"
	"algotrader/internal/session"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Dashboard is served from another origin in development.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub manages WebSocket clients and event fan-out.
type Hub struct {
	state *session.State

	// OnDrop is called when a frame is dropped for a slow client.
	OnDrop func()

	mu      sync.RWMutex
	clients map[*Client]bool
}

// NewHub creates a hub bound to the session state it snapshots for the
// init message.
func NewHub(state *session.State) *Hub {
	return &Hub{
		state:   state,
		clients: make(map[*Client]bool),
	}
}

// Publish fans an event out to all connected clients. Never blocks: a
// client with a full send queue loses the frame.
func (h *Hub) Publish(ev model.Event) {
	payload := ev.JSON()

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		select {
		case client.send <- payload:
		default:
			if h.OnDrop != nil {
				h.OnDrop()
			}
		}
	}
}

// HandleWS upgrades an HTTP connection and registers the client.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[gateway] ws upgrade failed: %v", err)
		return
	}

	client := &Client{
		conn: conn,
		send: make(chan []byte, 256),
		hub:  h,
	}

	h.mu.Lock()
	h.clients[client] = true
	count := len(h.clients)
	h.mu.Unlock()

	log.Printf("[gateway] ws client connected (%d total)", count)

	client.sendInitialState()
	go client.writePump()
	go client.readPump()
}

// RemoveClient removes a client from the hub.
func (h *Hub) RemoveClient(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// ClientCount returns the number of connected WS clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
