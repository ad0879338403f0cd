package notifyhub

import (
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"

	"github.com/moyoez/cloudsend/tool"
	"github.com/moyoez/cloudsend/types"
)

var WriteTimeout = 5 * time.Second

// client is one WebSocket connection. gorilla connections allow a single
// concurrent writer, so writes are serialized per connection.
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// Hub holds WebSocket connections and broadcasts notifications to all clients.
// Implements types.NotifyHub.
type Hub struct {
	mu      sync.RWMutex
	clients map[*websocket.Conn]*client
}

func New() *Hub {
	return &Hub{
		clients: make(map[*websocket.Conn]*client),
	}
}

// register adds conn to the broadcast set and returns its serialized writer.
func (h *Hub) register(conn *websocket.Conn) *client {
	h.mu.Lock()
	defer h.mu.Unlock()
	c := &client{conn: conn}
	h.clients[conn] = c
	return c
}

func (h *Hub) Unregister(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, conn)
}

// Len returns the number of connected clients.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends the notification as JSON to all registered connections.
// A client that cannot be written to is dropped.
func (h *Hub) Broadcast(notification *types.Notification) {
	if notification == nil {
		return
	}
	payload, err := sonic.Marshal(notification)
	if err != nil {
		tool.DefaultLogger.Errorf("[NotifyHub] Failed to marshal notification: %v", err)
		return
	}

	h.mu.RLock()
	clients := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		if err := c.write(payload); err != nil {
			tool.DefaultLogger.Debugf("[NotifyHub] Dropping client: %v", err)
			h.Unregister(c.conn)
			_ = c.conn.Close()
		}
	}
}

func (c *client) write(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(WriteTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}
