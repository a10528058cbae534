// Package push fans live game events out to WebSocket subscribers.
package push

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/coder/websocket"
)

// EventType identifies a push event.
type EventType string

const (
	// EventAggregates carries the latest scoring aggregates after any mutation.
	EventAggregates EventType = "aggregates"
	// EventTurn carries a committed generator turn.
	EventTurn EventType = "turn"
	// EventSummary carries the round summary when a session reaches its end.
	EventSummary EventType = "summary"
)

// Event is one message pushed to subscribers of an owner's tab.
type Event struct {
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id"`
	Payload   any       `json:"payload,omitempty"`
}

// Hub manages active WebSocket subscribers keyed by user and tab. One tab
// holds at most one connection; a reconnect replaces the previous one.
type Hub struct {
	mu     sync.RWMutex
	active map[string]map[string]*websocket.Conn
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		active: make(map[string]map[string]*websocket.Conn),
	}
}

// Register adds a connection for a user/tab, closing any previous one.
func (h *Hub) Register(userID, tabID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.active[userID]; !exists {
		h.active[userID] = make(map[string]*websocket.Conn)
	}

	if existing, exists := h.active[userID][tabID]; exists && existing != conn {
		_ = existing.Close(websocket.StatusNormalClosure, "connection replaced")
	}

	h.active[userID][tabID] = conn
	slog.Info("Push subscriber registered", "user_id", userID, "tab_id", tabID)
}

// Unregister removes a connection for a user/tab if it is still the current one.
func (h *Hub) Unregister(userID, tabID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if tabs, ok := h.active[userID]; ok {
		if current, exists := tabs[tabID]; exists && current == conn {
			delete(tabs, tabID)
			if len(tabs) == 0 {
				delete(h.active, userID)
			}
			slog.Info("Push subscriber unregistered", "user_id", userID, "tab_id", tabID)
		}
	}
}

// Publish sends an event to the subscriber of a user/tab, if any. Delivery is
// best effort; a slow or broken subscriber does not fail the caller.
func (h *Hub) Publish(userID, tabID string, event Event) {
	h.mu.RLock()
	var conn *websocket.Conn
	if tabs, ok := h.active[userID]; ok {
		conn = tabs[tabID]
	}
	h.mu.RUnlock()

	if conn == nil {
		return
	}

	data, err := json.Marshal(event)
	if err != nil {
		slog.Warn("Failed to marshal push event", "error", err, "type", event.Type)
		return
	}
	if err := conn.Write(context.Background(), websocket.MessageText, data); err != nil {
		slog.Debug("Push write failed", "error", err, "user_id", userID, "tab_id", tabID)
	}
}

// CloseUser terminates every connection a user holds.
func (h *Hub) CloseUser(userID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	tabs, ok := h.active[userID]
	if !ok {
		return
	}
	for tid, conn := range tabs {
		_ = conn.Close(websocket.StatusNormalClosure, "connection closed")
		slog.Info("Push subscriber closed", "user_id", userID, "tab_id", tid)
	}
	delete(h.active, userID)
}
