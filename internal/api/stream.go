package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	streamWriteWait = 10 * time.Second
	streamPongWait  = 60 * time.Second
	streamPingEvery = 54 * time.Second
	streamReadLimit = 4096
)

// Hub fans finished-cycle and scheduler events out to every connected
// stream client. The client set is owned exclusively by the Run
// goroutine; Broadcast only feeds a channel and never blocks.
type Hub struct {
	register   chan *wsClient
	unregister chan *wsClient
	events     chan []byte
	connected  atomic.Int64
	logger     *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		events:     make(chan []byte, 256),
		logger:     logger.With("component", "stream"),
	}
}

// Run owns the client set; call in a goroutine.
func (h *Hub) Run() {
	clients := make(map[*wsClient]struct{})

	drop := func(c *wsClient) {
		if _, ok := clients[c]; !ok {
			return
		}
		delete(clients, c)
		close(c.send)
		h.connected.Store(int64(len(clients)))
	}

	for {
		select {
		case c := <-h.register:
			clients[c] = struct{}{}
			h.connected.Store(int64(len(clients)))
			h.logger.Info("stream client connected", "clients", len(clients))

		case c := <-h.unregister:
			drop(c)
			h.logger.Info("stream client disconnected", "clients", len(clients))

		case payload := <-h.events:
			for c := range clients {
				select {
				case c.send <- payload:
				default:
					// Slow reader; cut it loose.
					drop(c)
				}
			}
		}
	}
}

// Broadcast queues an event for every connected client. A full backlog
// drops the event rather than stalling the trading path.
func (h *Hub) Broadcast(evt Event) {
	payload, err := json.Marshal(evt)
	if err != nil {
		h.logger.Error("stream event marshal failed", "error", err)
		return
	}
	select {
	case h.events <- payload:
	default:
		h.logger.Warn("stream backlog full, event dropped", "type", evt.Type)
	}
}

// Clients reports the connected client count.
func (h *Hub) Clients() int {
	return int(h.connected.Load())
}

type wsClient struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

func (c *wsClient) write(messageType int, payload []byte) error {
	c.conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
	return c.conn.WriteMessage(messageType, payload)
}

func (c *wsClient) writePump() {
	ping := time.NewTicker(streamPingEvery)
	defer func() {
		ping.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			if !ok {
				c.write(websocket.CloseMessage, nil)
				return
			}
			if err := c.write(websocket.TextMessage, payload); err != nil {
				return
			}

		case <-ping.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards client frames; the stream is one-way and inbound
// traffic exists only to carry pong keepalives and the close handshake.
func (c *wsClient) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(streamReadLimit)
	c.conn.SetReadDeadline(time.Now().Add(streamPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(streamPongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("stream read error", "error", err)
			}
			return
		}
	}
}

// newOriginChecker admits the configured origins; an empty list admits
// everything (local single-operator use).
func newOriginChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, origin := range allowed {
		set[origin] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

func (h *Hub) serveWS(upgrader *websocket.Upgrader, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	c := &wsClient{hub: h, conn: conn, send: make(chan []byte, 64)}
	h.register <- c
	go c.writePump()
	go c.readPump()
}
