package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/voicevibe/backend/metrics"
)

// Application close codes sent after the upgrade.
const (
	CloseUnauthorized = 4001
	CloseNotFound     = 4004
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 10 * 1024 * 1024
	sendBuffer     = 256
)

// Hub tracks live audio connections.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	stopped    chan struct{}
	mu         sync.RWMutex
}

// Client is one WebSocket connection bound to a practice session.
type Client struct {
	Hub       *Hub
	Conn      *websocket.Conn
	Send      chan []byte
	UserID    string
	SessionID string

	// OnText and OnBinary run on the read goroutine, in frame order.
	OnText   func(*Client, []byte)
	OnBinary func(*Client, []byte)

	done      chan struct{}
	closeOnce sync.Once
	closeMsg  []byte
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		stopped:    make(chan struct{}),
	}
}

func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			metrics.WebSocketOpened()
			slog.Info("Client registered", "user_id", client.UserID, "session_id", client.SessionID)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.shutdown()
				metrics.WebSocketClosed()
			}
			h.mu.Unlock()
			slog.Info("Client unregistered", "user_id", client.UserID, "session_id", client.SessionID)

		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				client.Close(websocket.CloseGoingAway, "Server shutting down")
				delete(h.clients, client)
				metrics.WebSocketClosed()
			}
			h.mu.Unlock()
			close(h.stopped)
			return
		}
	}
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) RegisterClient(conn *websocket.Conn, userID, sessionID string) *Client {
	client := NewClient(conn, userID, sessionID)
	client.Hub = h
	select {
	case h.register <- client:
	case <-h.stopped:
		client.shutdown()
	}
	return client
}

// NewClient builds a client that is not tracked by any hub.
func NewClient(conn *websocket.Conn, userID, sessionID string) *Client {
	return &Client{
		Conn:      conn,
		Send:      make(chan []byte, sendBuffer),
		UserID:    userID,
		SessionID: sessionID,
		done:      make(chan struct{}),
	}
}

func (c *Client) shutdown() {
	c.closeOnce.Do(func() { close(c.done) })
}

// SendJSON queues v for the write pump. Messages to a closed or saturated client are dropped.
func (c *Client) SendJSON(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("Failed to marshal message", "error", err, "session_id", c.SessionID)
		return
	}
	select {
	case <-c.done:
	case c.Send <- data:
	default:
		slog.Warn("Send buffer full, dropping message", "session_id", c.SessionID)
	}
}

// Close asks the write pump to flush queued messages, send a close frame with code and
// reason, and drop the connection.
func (c *Client) Close(code int, reason string) {
	c.closeOnce.Do(func() {
		c.closeMsg = websocket.FormatCloseMessage(code, reason)
		close(c.done)
	})
}

// Reject closes a freshly upgraded connection that will never get pumps.
func Reject(conn *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	if err := conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait)); err != nil {
		slog.Debug("Failed to write close frame", "error", err)
	}
	conn.Close()
}

// ReadPump dispatches frames until the connection fails. It unregisters the client on exit.
func (c *Client) ReadPump() {
	defer func() {
		if c.Hub != nil {
			select {
			case c.Hub.unregister <- c:
			case <-c.Hub.stopped:
			}
		}
		c.shutdown()
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				slog.Error("WebSocket error", "error", err, "session_id", c.SessionID)
			}
			return
		}
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))

		switch messageType {
		case websocket.TextMessage:
			if c.OnText != nil {
				c.OnText(c, data)
			}
		case websocket.BinaryMessage:
			if c.OnBinary != nil {
				c.OnBinary(c, data)
			}
		}
	}
}

// WritePump writes queued messages, one frame each, and keeps the connection alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			c.drain()
			return
		}
	}
}

// drain writes what is already queued so final events reach the client, then the close frame.
func (c *Client) drain() {
	for {
		select {
		case message := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		default:
			if c.closeMsg != nil {
				c.Conn.WriteControl(websocket.CloseMessage, c.closeMsg, time.Now().Add(writeWait))
			}
			return
		}
	}
}
