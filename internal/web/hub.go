package web

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sweeney/ac-mqtt-bridge/internal/logging"
)

const (
	wsSendBuffer   = 16
	wsPingInterval = 30 * time.Second
	wsPongWait     = 10 * time.Second
	wsMaxMessage   = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Hub fans published state payloads out to websocket clients. A client that
// connects gets the most recent payload straight away.
type Hub struct {
	log *logging.Logger

	mu      sync.RWMutex
	clients map[*wsClient]struct{}
	last    []byte
}

type wsClient struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// NewHub creates an empty Hub.
func NewHub(log *logging.Logger) *Hub {
	if log == nil {
		log = logging.Nop()
	}
	return &Hub{log: log, clients: make(map[*wsClient]struct{})}
}

// Broadcast queues payload for every client. Slow clients miss messages
// rather than block the caller.
func (h *Hub) Broadcast(payload []byte) {
	data := append([]byte(nil), payload...)

	// Send channels are only closed under the write lock, so the
	// non-blocking sends below cannot hit a closed channel.
	h.mu.Lock()
	defer h.mu.Unlock()
	h.last = data
	for c := range h.clients {
		c.trySend(data)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Run blocks until ctx is done, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.closeAll()
}

// ServeHTTP upgrades the request and registers the connection.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warnw("websocket upgrade failed", "err", err)
		return
	}
	c := &wsClient{hub: h, conn: conn, send: make(chan []byte, wsSendBuffer)}
	h.register(c)
	go c.writePump()
	go c.readPump()
}

func (h *Hub) register(c *wsClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	if h.last != nil {
		c.trySend(h.last)
	}
	n := len(h.clients)
	h.mu.Unlock()

	h.log.Debugw("websocket client connected", "clients", n)
}

// unregister closes the send channel exactly once, from whichever path
// removes the client first.
func (h *Hub) unregister(c *wsClient) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()

	h.log.Debugw("websocket client disconnected", "clients", n)
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		close(c.send)
		c.conn.Close()
		delete(h.clients, c)
	}
}

// trySend must be called with the hub lock held.
func (c *wsClient) trySend(data []byte) {
	select {
	case c.send <- data:
	default:
		c.hub.log.Debugw("websocket client too slow, dropping message")
	}
}

// readPump discards inbound frames; it only exists to process pongs and
// notice the peer going away.
func (c *wsClient) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(wsMaxMessage)
	c.conn.SetReadDeadline(time.Now().Add(wsPingInterval + wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wsPingInterval + wsPongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.log.Debugw("websocket read error", "err", err)
			}
			return
		}
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(wsPingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(wsPongWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(wsPongWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
