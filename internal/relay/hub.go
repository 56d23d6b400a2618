package relay

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Ghoster04/AntCrime/internal/realtime"
)

const (
	sendBuffer   = 64
	writeTimeout = 10 * time.Second
)

type hubClient struct {
	id   string
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

func newClient(h *Hub, conn *websocket.Conn) *hubClient {
	return &hubClient{
		id:   uuid.NewString(),
		hub:  h,
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}
}

func (c *hubClient) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			c.hub.Remove(c)
			return
		}
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// Hub fans notifications out to every connected console. Each client has
// its own buffered send queue drained by a write pump; a client whose queue
// is full is disconnected rather than allowed to stall the others.
type Hub struct {
	mu      sync.RWMutex
	clients map[*hubClient]struct{}
	log     *zap.Logger
}

func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		clients: make(map[*hubClient]struct{}),
		log:     log,
	}
}

// Add registers conn and starts its write pump.
func (h *Hub) Add(conn *websocket.Conn) *hubClient {
	c := newClient(h, conn)

	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	go c.writePump()

	connectedClients.Set(float64(n))
	h.log.Info("client connected", zap.String("client_id", c.id), zap.Int("clients", n))
	return c
}

// Remove unregisters c and closes its queue, which ends the write pump and
// closes the connection. Safe to call more than once.
func (h *Hub) Remove(c *hubClient) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()

	if ok {
		connectedClients.Set(float64(n))
		h.log.Info("client disconnected", zap.String("client_id", c.id), zap.Int("clients", n))
	}
}

// Broadcast marshals msg once and queues it for every client.
func (h *Hub) Broadcast(t realtime.EventType, msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	h.mu.RLock()
	clients := make([]*hubClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	eventsBroadcast.WithLabelValues(string(t)).Inc()
	for _, c := range clients {
		if !h.offer(c, data) {
			droppedClients.Inc()
			h.log.Warn("client too slow, disconnecting", zap.String("client_id", c.id))
			h.Remove(c)
		}
	}
	return nil
}

// offer queues data without blocking. It reports false when the queue is
// full; a client removed concurrently counts as delivered.
func (h *Hub) offer(c *hubClient, data []byte) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.clients[c]; !ok {
		return true
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.RLock()
	clients := make([]*hubClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		h.Remove(c)
	}
}
