package game

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	log "github.com/sirupsen/logrus"
)

const (
	BROADCAST_BUFFER = 256
	CLIENT_BUFFER    = 256
	WRITE_DEADLINE   = 10 * time.Second
)

// Conn is the part of a websocket connection the hub writes to.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

type Client struct {
	conn   Conn
	userID string
	send   chan []byte
	mu     sync.Mutex
	closed bool
}

// Hub is the single fan-out point. Events are marshalled once in Run and
// queued to every client; each client has one writer so it sees events in
// publish order.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan Event
	register   chan *Client
	unregister chan *Client
	stop       chan struct{}
	mu         sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Event, BROADCAST_BUFFER),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		stop:       make(chan struct{}),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case <-h.stop:
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				client.close()
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			log.WithFields(log.Fields{"user_id": client.userID, "total": total}).Info("[WS] Client connected")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.close()
				log.WithFields(log.Fields{"user_id": client.userID, "total": len(h.clients)}).Info("[WS] Client disconnected")
			}
			h.mu.Unlock()

		case event := <-h.broadcast:
			data, err := json.Marshal(Wrap(event))
			if err != nil {
				log.WithError(err).Error("[WS] Marshal error")
				continue
			}

			h.mu.RLock()
			for client := range h.clients {
				client.enqueue(data)
			}
			h.mu.RUnlock()
		}
	}
}

// Stop ends Run and closes every client.
func (h *Hub) Stop() {
	select {
	case <-h.stop:
	default:
		close(h.stop)
	}
}

// Publish queues an event for every client. It never blocks; when the
// buffer is full the event is dropped.
func (h *Hub) Publish(event Event) {
	select {
	case h.broadcast <- event:
	default:
		log.WithField("type", event.Type()).Warn("[WS] Broadcast channel full, dropping message")
	}
}

func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// RegisterClient starts the client's writer and adds it to the fan-out.
func (h *Hub) RegisterClient(conn Conn, userID string) *Client {
	client := &Client{
		conn:   conn,
		userID: userID,
		send:   make(chan []byte, CLIENT_BUFFER),
	}
	go client.writePump()
	select {
	case h.register <- client:
	case <-h.stop:
		client.close()
	}
	return client
}

func (h *Hub) UnregisterClient(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.stop:
	}
}

// Send queues a direct reply to this client only.
func (c *Client) Send(v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		log.WithError(err).Error("[WS] Send marshal error")
		return
	}
	c.enqueue(data)
}

func (c *Client) enqueue(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- data:
	default:
		log.WithField("user_id", c.userID).Warn("[WS] Client buffer full, dropping message")
	}
}

func (c *Client) writePump() {
	for data := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(WRITE_DEADLINE))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.WithError(err).WithField("user_id", c.userID).Warn("[WS] Write error")
		}
	}
	c.conn.Close()
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}
