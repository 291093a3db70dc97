package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"botview/internal/interfaces"
	"botview/internal/logger"
	"botview/internal/types"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The dashboard is served from a different origin during development.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// MessageType defines the type of WebSocket message
type MessageType string

const (
	ViewUpdate       MessageType = "view_update"
	ConnectionStatus MessageType = "connection_status"
)

// Message is the envelope of every frame pushed to a client.
type Message struct {
	Type MessageType `json:"type"`
	Data any         `json:"data"`
}

type ConnectionStatusData struct {
	Status    string `json:"status"`
	ClientID  string `json:"clientId"`
	Timestamp int64  `json:"timestamp"`
}

// Client is one websocket connection. The hub owns Send and closes it when
// the client is dropped.
type Client struct {
	Conn *websocket.Conn
	Send chan []byte
	Hub  *Hub
	ID   string
}

func newClient(conn *websocket.Conn, hub *Hub) *Client {
	return &Client{
		Conn: conn,
		Send: make(chan []byte, sendBuffer),
		Hub:  hub,
		ID:   "client_" + uuid.NewString()[:8],
	}
}

// readPump drains control frames until the peer goes away. Commands come in
// over the REST routes, so text frames are ignored.
func (c *Client) readPump() {
	defer func() {
		c.Hub.unregisterClient(c)
		_ = c.Conn.Close()
	}()

	c.Conn.SetReadLimit(512)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn(context.Background(), "WebSocket read failed", "client_id", c.ID, "error", err)
			}
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logger.Warn(context.Background(), "WebSocket write failed", "client_id", c.ID, "error", err)
				return
			}
		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Hub maintains active clients and broadcasts messages
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mutex      sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, sendBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run serves register, unregister and broadcast requests until ctx ends,
// then drops every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mutex.Lock()
			for client := range h.clients {
				close(client.Send)
				delete(h.clients, client)
			}
			h.mutex.Unlock()
			return

		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			n := len(h.clients)
			h.mutex.Unlock()
			logger.Info(ctx, "WebSocket client connected", "client_id", client.ID, "clients", n)

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
				logger.Info(ctx, "WebSocket client disconnected", "client_id", client.ID, "clients", len(h.clients))
			}
			h.mutex.Unlock()

		case message := <-h.broadcast:
			h.mutex.Lock()
			for client := range h.clients {
				select {
				case client.Send <- message:
				default:
					// slow reader
					close(client.Send)
					delete(h.clients, client)
					logger.Warn(ctx, "WebSocket client dropped", "client_id", client.ID)
				}
			}
			h.mutex.Unlock()
		}
	}
}

// registerClient reports false once the hub has stopped.
func (h *Hub) registerClient(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) unregisterClient(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Broadcast queues a message for every client. It never blocks: when the
// queue is full the message is dropped and the next view supersedes it.
func (h *Hub) Broadcast(msgType MessageType, data any) {
	payload, err := encode(msgType, data)
	if err != nil {
		logger.ErrorWithErr(context.Background(), "Failed to encode WebSocket message", err, "type", msgType)
		return
	}
	select {
	case h.broadcast <- payload:
	default:
		logger.Warn(context.Background(), "WebSocket broadcast queue full, dropping message", "type", msgType)
	}
}

// Follow pushes every view the engine publishes until cancel is called.
func (h *Hub) Follow(eng interfaces.Engine) (cancel func()) {
	return eng.Subscribe(func(v types.View) {
		h.Broadcast(ViewUpdate, v)
	})
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

func encode(msgType MessageType, data any) ([]byte, error) {
	return json.Marshal(Message{Type: msgType, Data: data})
}
