package ws

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Hub fans monitoring snapshots out to connected WebSocket clients. Each
// client only receives snapshots for the companies its token entitles it to.
type Hub struct {
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*client]struct{}
}

type client struct {
	conn      *websocket.Conn
	send      chan []byte
	companies map[int64]bool
}

func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
		clients: make(map[*client]struct{}),
	}
}

// Subscribe upgrades the request and registers the connection for the given
// companies. It returns once the connection is set up; pumps run in their own
// goroutines.
func (h *Hub) Subscribe(w http.ResponseWriter, r *http.Request, companyIDs []int64) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logrus.WithError(err).Warn("websocket upgrade failed")
		return
	}

	companies := make(map[int64]bool, len(companyIDs))
	for _, id := range companyIDs {
		companies[id] = true
	}
	c := &client{
		conn:      conn,
		send:      make(chan []byte, 16),
		companies: companies,
	}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	go h.writePump(c)
	go h.readPump(c)
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// readPump discards client messages; it exists to notice closes and answer
// pings.
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
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Broadcast delivers one company's snapshot to every entitled client. Clients
// whose send buffer is full are dropped.
func (h *Hub) Broadcast(companyID int64, payload []byte) {
	h.mu.RLock()
	var slow []*client
	for c := range h.clients {
		if !c.companies[companyID] {
			continue
		}
		select {
		case c.send <- payload:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()
	for _, c := range slow {
		h.remove(c)
		c.conn.Close()
	}
}

// companyFromChannel extracts the company id from a monitoring:<id>:live
// channel name.
func companyFromChannel(channel string) (int64, bool) {
	parts := strings.Split(channel, ":")
	if len(parts) != 3 {
		return 0, false
	}
	id, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// Pump forwards messages from a Redis monitoring subscription into the hub
// until the context is cancelled.
func (h *Hub) Pump(ctx context.Context, sub *redis.PubSub) {
	defer sub.Close()
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			companyID, ok := companyFromChannel(msg.Channel)
			if !ok {
				logrus.WithField("channel", msg.Channel).Warn("unexpected pub/sub channel")
				continue
			}
			h.Broadcast(companyID, []byte(msg.Payload))
		}
	}
}
