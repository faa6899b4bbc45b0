package server

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Event names pushed over the websocket
const (
	EventPlaybackChanged = "playback:changed"
	EventProxyReady      = "proxy:ready"
	EventJobProgress     = "job:progress"
	EventStrategyChanged = "strategy:changed"
)

// Event is one notification frame on the event socket
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The server binds to loopback only, the origin carries no signal
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub fans engine notifications out to connected websocket clients.
// Writes are serialized because gorilla connections are not safe for
// concurrent writers.
type Hub struct {
	log zerolog.Logger

	mu      sync.Mutex
	clients map[*websocket.Conn]bool
	closed  bool
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		log:     logger,
		clients: make(map[*websocket.Conn]bool),
	}
}

// Broadcast pushes one event to every client, dropping clients whose
// connection has gone away
func (h *Hub) Broadcast(ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		h.log.Error().Err(err).Str("type", ev.Type).Msg("marshal event")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.clients {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			h.log.Debug().Err(err).Msg("dropping event client")
			conn.Close()
			delete(h.clients, conn)
		}
	}
}

// ClientCount returns the number of connected sockets
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and keeps the connection registered
// until the peer goes away. Inbound messages are discarded; the
// socket is notify only.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[conn] = true
	n := len(h.clients)
	h.mu.Unlock()

	h.log.Debug().Int("clients", n).Msg("event client connected")

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.mu.Lock()
	delete(h.clients, conn)
	h.mu.Unlock()
	conn.Close()

	h.log.Debug().Msg("event client disconnected")
}

// Close disconnects every client and rejects future connections
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for conn := range h.clients {
		conn.Close()
		delete(h.clients, conn)
	}
}
