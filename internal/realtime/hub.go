// Package realtime pushes board refresh notifications to websocket clients
// watching a project.
package realtime

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/monocle-dev/scrumboard/internal/logging"
)

const (
	WriteWait      = 10 * time.Second
	PongWait       = 60 * time.Second
	PingPeriod     = (PongWait * 9) / 10
	MaxMessageSize = 512
)

type Message struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	ProjectID uint   `json:"projectId"`
	Resource  string `json:"resource,omitempty"`
}

type Hub struct {
	mu      sync.RWMutex
	clients map[uint]map[*websocket.Conn]bool

	// gorilla connections allow a single concurrent writer.
	writeMu sync.Mutex
}

func NewHub() *Hub {
	return &Hub{clients: make(map[uint]map[*websocket.Conn]bool)}
}

// Default is the hub the HTTP handlers publish to.
var Default = NewHub()

func (h *Hub) Register(projectID uint, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clients[projectID] == nil {
		h.clients[projectID] = make(map[*websocket.Conn]bool)
	}
	h.clients[projectID][conn] = true
}

func (h *Hub) Unregister(projectID uint, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if clients, exists := h.clients[projectID]; exists {
		delete(clients, conn)

		if len(clients) == 0 {
			delete(h.clients, projectID)
		}
	}
}

// ClientCount returns the number of connections watching projectID.
func (h *Hub) ClientCount(projectID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.clients[projectID])
}

// BroadcastRefresh tells every client of projectID that resource changed.
// Connections that fail to receive are dropped.
func (h *Hub) BroadcastRefresh(projectID uint, resource string) {
	h.mu.RLock()
	clients, exists := h.clients[projectID]
	if !exists || len(clients) == 0 {
		h.mu.RUnlock()
		return
	}

	// Copy so the lock is not held while writing.
	conns := make([]*websocket.Conn, 0, len(clients))
	for conn := range clients {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	msg := Message{
		Type:      "refresh",
		Message:   "Board data updated",
		ProjectID: projectID,
		Resource:  resource,
	}

	h.writeMu.Lock()
	defer h.writeMu.Unlock()

	for _, conn := range conns {
		if err := conn.SetWriteDeadline(time.Now().Add(WriteWait)); err != nil {
			logging.Logger.Warn("failed to set write deadline for broadcast", "project_id", projectID, "err", err)
			continue
		}

		if err := conn.WriteJSON(msg); err != nil {
			logging.Logger.Warn("failed to broadcast refresh", "project_id", projectID, "err", err)
			h.Unregister(projectID, conn)
			conn.Close()
		}
	}
}
