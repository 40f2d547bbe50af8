package server

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nshruti113/netguard-dashboard/internal/logging"
	"github.com/nshruti113/netguard-dashboard/internal/telemetry"
)

const (
	writeWait = 5 * time.Second
	// events queued per client before it counts as stalled
	sendBuffer = 64
)

// Event types pushed over the WebSocket
const (
	EventView     = "view"
	EventRedirect = "redirect"
	EventAlerts   = "alerts"
)

// Event is one message pushed to dashboard clients
type Event struct {
	Type    string `json:"type"`
	View    string `json:"view,omitempty"`
	Payload any    `json:"payload,omitempty"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ErrClientGone is returned by Send for a client that is no longer connected
// or cannot keep up.
var ErrClientGone = errors.New("websocket client gone")

// client owns one connection. Only its writer goroutine writes to conn.
type client struct {
	conn *websocket.Conn
	send chan Event
	done chan struct{}
	once sync.Once
}

func (c *client) stop() {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

func (c *client) writeLoop() {
	for {
		select {
		case <-c.done:
			return
		case ev := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(ev); err != nil {
				logging.Logger.WithError(err).Debug("WebSocket write failed, dropping client")
				c.stop()
				return
			}
		}
	}
}

// Hub tracks connected WebSocket clients. Broadcast only queues events, so
// a slow client never holds up the caller; a client whose queue is full
// is disconnected.
type Hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]*client
}

func NewHub() *Hub {
	return &Hub{clients: make(map[*websocket.Conn]*client)}
}

func (h *Hub) add(conn *websocket.Conn) *client {
	c := &client{conn: conn, send: make(chan Event, sendBuffer), done: make(chan struct{})}
	h.mu.Lock()
	h.clients[conn] = c
	n := len(h.clients)
	h.mu.Unlock()
	telemetry.WebSocketClients.Set(float64(n))
	return c
}

func (h *Hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	c, ok := h.clients[conn]
	delete(h.clients, conn)
	n := len(h.clients)
	h.mu.Unlock()
	if ok {
		c.stop()
	}
	telemetry.WebSocketClients.Set(float64(n))
}

// Len returns the number of connected clients
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// enqueue must be called with h.mu held
func (h *Hub) enqueue(c *client, ev Event) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- ev:
		return true
	default:
		return false
	}
}

// Send queues ev for a single client
func (h *Hub) Send(conn *websocket.Conn, ev Event) error {
	h.mu.Lock()
	c, ok := h.clients[conn]
	queued := ok && h.enqueue(c, ev)
	h.mu.Unlock()
	if !queued {
		if ok {
			h.remove(conn)
		}
		return ErrClientGone
	}
	return nil
}

// Broadcast queues ev for every client, dropping those that fell behind
func (h *Hub) Broadcast(ev Event) {
	h.mu.Lock()
	var dead []*websocket.Conn
	for conn, c := range h.clients {
		if !h.enqueue(c, ev) {
			dead = append(dead, conn)
		}
	}
	h.mu.Unlock()

	for _, conn := range dead {
		logging.Logger.Debug("WebSocket client fell behind, dropping it")
		h.remove(conn)
	}
}

// Serve upgrades the request and keeps the connection registered until
// the client goes away. hello runs once before the read loop starts.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, hello func(*websocket.Conn)) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Logger.WithError(err).Warn("WebSocket upgrade failed")
		return
	}
	c := h.add(conn)
	defer h.remove(conn)
	go c.writeLoop()

	logging.Logger.WithField("remote", r.RemoteAddr).Info("WebSocket client connected")
	if hello != nil {
		hello(conn)
	}

	// Clients only listen; reading detects the close
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			logging.Logger.WithError(err).Debug("WebSocket client gone")
			return
		}
	}
}

// Close disconnects every client
func (h *Hub) Close() {
	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for conn := range h.clients {
		conns = append(conns, conn)
	}
	h.mu.Unlock()
	for _, conn := range conns {
		h.remove(conn)
	}
}
