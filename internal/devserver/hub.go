package devserver

import (
	"log/slog"
	"sync"

	"github.com/coder/websocket"
)

// Hub tracks open chatbot connections so they can be closed on shutdown.
type Hub struct {
	mu     sync.RWMutex
	active map[string]*websocket.Conn
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		active: make(map[string]*websocket.Conn),
	}
}

// Register adds a connection under connID.
func (h *Hub) Register(connID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.active[connID] = conn
	slog.Info("Chatbot connection registered", "conn_id", connID)
}

// Unregister removes connID if it still maps to conn.
func (h *Hub) Unregister(connID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if current, ok := h.active[connID]; ok && current == conn {
		delete(h.active, connID)
		slog.Info("Chatbot connection unregistered", "conn_id", connID)
	}
}

// Count returns the number of open connections.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.active)
}

// CloseAll closes every open connection with the given status.
func (h *Hub) CloseAll(code websocket.StatusCode, reason string) {
	h.mu.Lock()
	conns := h.active
	h.active = make(map[string]*websocket.Conn)
	h.mu.Unlock()

	for id, conn := range conns {
		_ = conn.Close(code, reason)
		slog.Info("Chatbot connection closed", "conn_id", id, "reason", reason)
	}
}
