// Package websocket streams JSON messages to websocket clients, either
// fanned out by a Hub or fed one by one by a subscription stream.
package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Hub maintains the notification clients and broadcasts to all of them.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan Message
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
	logger     *zerolog.Logger
}

// NewHub creates a hub. Register and Broadcast do not block before Run.
func NewHub(logger *zerolog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Message, 256),
		register:   make(chan *Client, 16),
		unregister: make(chan *Client, 16),
		logger:     logger,
	}
}

// Run serves registrations and broadcasts until ctx is done, then closes
// every client.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				client.Close()
			}
			h.clients = make(map[*Client]bool)
			h.mu.Unlock()
			h.logger.Info().Msg("WebSocket hub shut down")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Info().
				Str("client_id", client.id).
				Int("total_clients", total).
				Msg("WebSocket client connected")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.Close()
			}
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Info().
				Str("client_id", client.id).
				Int("total_clients", total).
				Msg("WebSocket client disconnected")

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				if !client.Send(message) {
					// too slow, drop it
					client.Close()
					delete(h.clients, client)
					h.logger.Warn().Str("client_id", client.id).Msg("WebSocket client buffer full, disconnected")
				}
			}
			h.mu.Unlock()
		}
	}
}

// Register adds client to the hub.
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes client from the hub and closes it. When the hub is
// saturated or stopped the client is only closed; the next broadcast
// drops it.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	default:
		client.Close()
	}
}

// Broadcast queues message for every client. It drops the message when
// the hub is saturated.
func (h *Hub) Broadcast(message Message) {
	select {
	case h.broadcast <- message:
	default:
		h.logger.Warn().Str("type", message.Type).Msg("Broadcast channel full, message dropped")
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Message is one websocket frame.
type Message struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Clients only send control frames.
	maxMessageSize = 512

	sendBuffer = 256
)

// Client is one websocket connection. A client without a hub is fed
// directly through Send.
type Client struct {
	id     string
	hub    *Hub
	conn   *websocket.Conn
	logger *zerolog.Logger

	mu     sync.Mutex
	send   chan Message
	closed bool
	done   chan struct{}
	once   sync.Once
}

// NewClient wraps conn. hub may be nil.
func NewClient(id string, hub *Hub, conn *websocket.Conn) *Client {
	c := &Client{
		id:   id,
		hub:  hub,
		conn: conn,
		send: make(chan Message, sendBuffer),
		done: make(chan struct{}),
	}
	if hub != nil {
		c.logger = hub.logger
	} else {
		nop := zerolog.Nop()
		c.logger = &nop
	}
	return c
}

// WithLogger sets the logger of a hubless client.
func (c *Client) WithLogger(logger *zerolog.Logger) *Client {
	c.logger = logger
	return c
}

// ID returns the client id.
func (c *Client) ID() string {
	return c.id
}

// Send queues message without blocking. It reports false when the client
// is closed or its buffer is full.
func (c *Client) Send(message Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- message:
		return true
	default:
		return false
	}
}

// Close stops the write pump after the queued messages.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// Done is closed when the peer goes away.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// ReadPump discards incoming frames and detects the peer going away.
func (c *Client) ReadPump() {
	defer func() {
		c.once.Do(func() { close(c.done) })
		if c.hub != nil {
			c.hub.Unregister(c)
		}
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn().Err(err).Str("client_id", c.id).Msg("WebSocket read error")
			}
			return
		}
	}
}

// WritePump writes queued messages and keepalive pings until the client
// is closed or a write fails.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}

			data, err := json.Marshal(message)
			if err != nil {
				c.logger.Error().Err(err).Str("type", message.Type).Msg("Failed to marshal WebSocket message")
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
