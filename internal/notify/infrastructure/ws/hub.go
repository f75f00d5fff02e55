package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/sushiko/orderflow/internal/notify/registry"
)

const (
	writeWait      = 5 * time.Second
	maxControlSize = 512
	sendBuffer     = 16
)

// Hub owns the live websocket connections and implements the dispatcher's
// Pusher interface. Clients manage their own group interest with join/leave
// control messages; on disconnect every membership is dropped.
type Hub struct {
	log      *slog.Logger
	reg      *registry.Registry
	upgrader websocket.Upgrader

	mu    sync.RWMutex
	conns map[string]*connection
}

type connection struct {
	id   string
	sock *websocket.Conn
	send chan []byte
	done chan struct{}
}

func NewHub(log *slog.Logger, reg *registry.Registry) *Hub {
	return &Hub{
		log: log,
		reg: reg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The storefront and dashboard are served from other origins.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		conns: map[string]*connection{},
	}
}

// HandleWS upgrades the request and serves the connection until it closes.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	sock, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "err", err)
		return
	}

	c := &connection{
		id:   uuid.NewString(),
		sock: sock,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}

	h.mu.Lock()
	h.conns[c.id] = c
	h.mu.Unlock()
	h.log.Info("connection opened", "conn_id", c.id)

	go c.writePump()
	h.readLoop(c)
}

type controlMsg struct {
	Action string `json:"action"`
	Group  string `json:"group"`
}

func (h *Hub) readLoop(c *connection) {
	defer h.drop(c)
	c.sock.SetReadLimit(maxControlSize)

	for {
		_, data, err := c.sock.ReadMessage()
		if err != nil {
			return
		}
		var msg controlMsg
		if err := json.Unmarshal(data, &msg); err != nil || !validGroup(msg.Group) {
			h.log.Warn("ignoring malformed control message", "conn_id", c.id)
			continue
		}
		switch msg.Action {
		case "join":
			h.reg.Join(c.id, msg.Group)
		case "leave":
			h.reg.Leave(c.id, msg.Group)
		}
	}
}

func (h *Hub) drop(c *connection) {
	h.mu.Lock()
	delete(h.conns, c.id)
	h.mu.Unlock()

	h.reg.Drop(c.id)
	close(c.done)
	_ = c.sock.Close()
	h.log.Info("connection closed", "conn_id", c.id)
}

// Send queues a payload for one connection. Blocks at most until ctx
// expires; the caller treats any error as a best-effort failure.
func (h *Hub) Send(ctx context.Context, connID string, payload []byte) error {
	h.mu.RLock()
	c, ok := h.conns[connID]
	h.mu.RUnlock()
	if !ok {
		return errors.New("unknown connection")
	}

	select {
	case c.send <- payload:
		return nil
	case <-c.done:
		return errors.New("connection closed")
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *connection) writePump() {
	defer func() { _ = c.sock.Close() }()
	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			_ = c.sock.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.sock.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	}
}

func validGroup(group string) bool {
	if group == registry.GroupAdmin {
		return true
	}
	return strings.HasPrefix(group, "customer:") || strings.HasPrefix(group, "order:")
}
