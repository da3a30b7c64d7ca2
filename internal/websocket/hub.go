// Package websocket streams live booking-state updates to browsers. Each
// client subscribes to one session; every workflow transition is pushed as a
// full state snapshot so the UI never has to reconstruct state from deltas.
package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// MessageType represents the type of WebSocket message
type MessageType string

const (
	MessageTypeStateUpdated  MessageType = "state_updated"
	MessageTypeHoldAbandoned MessageType = "hold_abandoned"
	MessageTypeFlowFailed    MessageType = "flow_failed"
)

// Message represents a WebSocket message
type Message struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"sessionId"`
	FromStage string      `json:"fromStage,omitempty"`
	Stage     string      `json:"stage,omitempty"`
	State     interface{} `json:"state,omitempty"`
	Message   string      `json:"message,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// Hub manages WebSocket connections per booking session
type Hub struct {
	clients    map[string]map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan *Message
	mu         sync.RWMutex
	log        *logrus.Logger
}

// NewHub creates a new Hub
func NewHub(log *logrus.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *Message, 256),
		log:        log,
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.sessionID] == nil {
				h.clients[client.sessionID] = make(map[*Client]bool)
			}
			h.clients[client.sessionID][client] = true
			h.log.WithFields(logrus.Fields{
				"session_id": client.sessionID,
				"watchers":   len(h.clients[client.sessionID]),
			}).Debug("WebSocket client registered")
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.clients[client.sessionID]; ok {
				if _, ok := clients[client]; ok {
					delete(clients, client)
					close(client.send)
					if len(clients) == 0 {
						delete(h.clients, client.sessionID)
					}
				}
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			data, err := json.Marshal(message)
			if err != nil {
				h.log.WithError(err).Warn("WebSocket message marshal failed")
				continue
			}

			h.mu.RLock()
			clients := h.clients[message.SessionID]
			h.mu.RUnlock()

			for client := range clients {
				select {
				case client.send <- data:
				default:
					// Slow consumer: drop it rather than block the hub.
					h.mu.Lock()
					delete(h.clients[message.SessionID], client)
					close(client.send)
					h.mu.Unlock()
				}
			}
		}
	}
}

// BroadcastState pushes a fresh state snapshot to everyone watching a session.
func (h *Hub) BroadcastState(sessionID, fromStage, stage string, state interface{}) {
	h.broadcast <- &Message{
		Type:      MessageTypeStateUpdated,
		SessionID: sessionID,
		FromStage: fromStage,
		Stage:     stage,
		State:     state,
		Timestamp: time.Now().UnixMilli(),
	}
}

// BroadcastHoldAbandoned tells watchers their hold was deliberately dropped.
func (h *Hub) BroadcastHoldAbandoned(sessionID, holdID string, state interface{}) {
	h.broadcast <- &Message{
		Type:      MessageTypeHoldAbandoned,
		SessionID: sessionID,
		State:     state,
		Message:   "Seat hold " + holdID + " abandoned; seats stay blocked until expiry",
		Timestamp: time.Now().UnixMilli(),
	}
}

// BroadcastFlowFailed tells watchers the flow failed terminally.
func (h *Hub) BroadcastFlowFailed(sessionID, stage, reason string, state interface{}) {
	h.broadcast <- &Message{
		Type:      MessageTypeFlowFailed,
		SessionID: sessionID,
		Stage:     stage,
		Message:   reason,
		State:     state,
		Timestamp: time.Now().UnixMilli(),
	}
}

// WatcherCount returns the number of clients watching a session.
func (h *Hub) WatcherCount(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[sessionID])
}
