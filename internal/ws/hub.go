package ws

import (
	"encoding/json"
	"sync"
)

const (
	ToastSuccess = "success"
	ToastError   = "error"
	ToastWarning = "warning"
	ToastInfo    = "info"
)

// Toast is a short-lived notification shown to the user.
type Toast struct {
	Type    string `json:"type"`
	Title   string `json:"title"`
	Message string `json:"message,omitempty"`
}

type envelope struct {
	Event string `json:"event"`
	Toast Toast  `json:"toast"`
}

// Client represents a single WebSocket connection of a user.
type Client struct {
	UserID string
	Send   chan []byte
	hub    *Hub
	mu     sync.Mutex
	closed bool
}

func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	if c.hub != nil {
		c.hub.unregister(c)
	}
	close(c.Send)
}

// Hub maintains the set of active clients and fans notifications out to them.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	// userID -> clients (one user can have multiple connections)
	byUser map[string]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		byUser:  make(map[string]map[*Client]struct{}),
	}
}

// Subscribe registers a new client for userID with a send buffer of size buf.
func (h *Hub) Subscribe(userID string, buf int) *Client {
	c := &Client{UserID: userID, Send: make(chan []byte, buf)}
	h.Register(c)
	return c
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c.hub = h
	h.clients[c] = struct{}{}
	if h.byUser[c.UserID] == nil {
		h.byUser[c.UserID] = make(map[*Client]struct{})
	}
	h.byUser[c.UserID][c] = struct{}{}
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, c)
	if m := h.byUser[c.UserID]; m != nil {
		delete(m, c)
		if len(m) == 0 {
			delete(h.byUser, c.UserID)
		}
	}
}

// Publish sends t to every connection of userID. Clients whose buffer is
// full miss the message.
func (h *Hub) Publish(userID string, t Toast) {
	data, _ := json.Marshal(envelope{Event: "toast", Toast: t})
	h.mu.RLock()
	m := h.byUser[userID]
	clients := make([]*Client, 0, len(m))
	for c := range m {
		clients = append(clients, c)
	}
	h.mu.RUnlock()
	deliver(clients, data)
}

// Broadcast sends t to every connected client.
func (h *Hub) Broadcast(t Toast) {
	data, _ := json.Marshal(envelope{Event: "toast", Toast: t})
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()
	deliver(clients, data)
}

func deliver(clients []*Client, data []byte) {
	for _, c := range clients {
		c.mu.Lock()
		if !c.closed {
			select {
			case c.Send <- data:
			default:
			}
		}
		c.mu.Unlock()
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
