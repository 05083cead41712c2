package stream

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"oneoftools/internal/models"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 64
)

// Message is the frame pushed to subscribers
type Message struct {
	Type      string           `json:"type"`
	Slug      string           `json:"slug"`
	Data      *models.NFTEvent `json:"data,omitempty"`
	Timestamp int64            `json:"timestamp"`
}

type client struct {
	conn *websocket.Conn
	slug string
	send chan []byte
}

// Hub fans recorded activities out to websocket subscribers of each collection
type Hub struct {
	mu       sync.RWMutex
	clients  map[string]map[*client]struct{}
	upgrader websocket.Upgrader
}

// NewHub creates a hub. An empty allowedOrigins accepts any origin.
func NewHub(allowedOrigins []string) *Hub {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowed[origin] = true
	}
	return &Hub{
		clients: make(map[string]map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return len(allowed) == 0 || origin == "" || allowed[origin]
			},
		},
	}
}

// Subscribers returns the number of live connections for slug
func (h *Hub) Subscribers(slug string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[slug])
}

// Broadcast sends event to every subscriber of slug. Subscribers whose buffer is full are dropped.
func (h *Hub) Broadcast(slug string, event *models.NFTEvent) {
	msg, err := json.Marshal(Message{Type: "activity", Slug: slug, Data: event, Timestamp: time.Now().UnixMilli()})
	if err != nil {
		logrus.Errorf("failed to marshal activity: %v", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients[slug] {
		select {
		case c.send <- msg:
		default:
			logrus.WithField("slug", slug).Warn("Dropping slow websocket subscriber")
			h.removeLocked(c)
		}
	}
}

// Serve upgrades the request and subscribes the connection to slug
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, slug string) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	c := &client{conn: conn, slug: slug, send: make(chan []byte, sendBuffer)}
	hello, _ := json.Marshal(Message{Type: "connected", Slug: slug, Timestamp: time.Now().UnixMilli()})
	c.send <- hello

	h.mu.Lock()
	if h.clients[slug] == nil {
		h.clients[slug] = make(map[*client]struct{})
	}
	h.clients[slug][c] = struct{}{}
	h.mu.Unlock()

	go h.writePump(c)
	go h.readPump(c)
	return nil
}

// Close disconnects every subscriber
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, set := range h.clients {
		for c := range set {
			h.removeLocked(c)
		}
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

func (h *Hub) removeLocked(c *client) {
	set, ok := h.clients[c.slug]
	if !ok {
		return
	}
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.clients, c.slug)
	}
	close(c.send)
}

// readPump only consumes control frames; subscribers never send data
func (h *Hub) readPump(c *client) {
	defer func() {
		h.remove(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				logrus.WithField("slug", c.slug).Debugf("websocket write error: %v", err)
				h.remove(c)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.remove(c)
				return
			}
		}
	}
}
