// Package notify delivers persisted notifications to live websocket subscribers.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/JunoAX/greenquest-go/internal/models"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Client is one websocket subscriber bound to an account
type Client struct {
	Conn      *websocket.Conn
	AccountID uuid.UUID
	writeMu   sync.Mutex
}

// SafeWriteJSON serializes writes, since gorilla connections allow only one concurrent writer
func (c *Client) SafeWriteJSON(v interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.Conn.WriteJSON(v)
}

func (c *Client) ping() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.Conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

// Hub fans notifications out to the connected clients of their account
type Hub struct {
	mu      sync.RWMutex
	clients map[uuid.UUID]map[*Client]bool
	logger  *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{clients: make(map[uuid.UUID]map[*Client]bool), logger: logger}
}

// Register adds a client to its account's fan-out set
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clients[c.AccountID] == nil {
		h.clients[c.AccountID] = make(map[*Client]bool)
	}
	h.clients[c.AccountID][c] = true
	h.logger.Debug("Notification client registered",
		zap.String("account_id", c.AccountID.String()),
		zap.Int("account_clients", len(h.clients[c.AccountID])))
}

// Unregister removes the client and closes its connection
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if set, ok := h.clients[c.AccountID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.clients, c.AccountID)
		}
	}
	h.mu.Unlock()

	c.Conn.Close()
}

// Broadcast writes the notification to every client of its account. Clients
// whose write fails are dropped.
func (h *Hub) Broadcast(ctx context.Context, n models.Notification) error {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.clients[n.AccountID]))
	for c := range h.clients[n.AccountID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if err := c.SafeWriteJSON(n); err != nil {
			h.logger.Warn("Dropping notification client",
				zap.String("account_id", n.AccountID.String()),
				zap.Error(err))
			h.Unregister(c)
		}
	}
	return nil
}

// Count returns the number of connected clients
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	total := 0
	for _, set := range h.clients {
		total += len(set)
	}
	return total
}

// Serve registers the connection and blocks until the peer goes away. The feed
// is server to client only; inbound frames are read and discarded to process pongs.
func (h *Hub) Serve(ctx context.Context, conn *websocket.Conn, accountID uuid.UUID) {
	client := &Client{Conn: conn, AccountID: accountID}
	h.Register(client)
	defer h.Unregister(client)

	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := client.ping(); err != nil {
				return
			}
		}
	}
}
