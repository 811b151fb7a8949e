// Package events is an operator event stream: a websocket hub that
// broadcasts purge completions and freshness transitions as they happen.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Event types broadcast on the admin event stream.
const (
	TypePurgeCompleted     = "purge_completed"
	TypeFreshnessTransition = "freshness_transition"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Event is one message delivered to every connected operator client.
type Event struct {
	Type      string         `json:"type"`
	Data      map[string]any `json:"data"`
	Timestamp time.Time      `json:"timestamp"`
}

// Hub manages websocket connections and fans out cache lifecycle events.
type Hub struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan Event
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	mu         sync.RWMutex
	logger     *slog.Logger
}

// NewHub builds an event Hub. Start must be run in its own goroutine.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan Event, 256),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		logger:     logger,
	}
}

// Start runs the hub's dispatch loop until ctx is canceled.
func (h *Hub) Start(ctx context.Context) {
	h.logger.Info("event hub starting")
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			h.logger.Info("event hub stopped")
			return

		case conn := <-h.register:
			h.mu.Lock()
			h.clients[conn] = true
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("event client registered", "total_clients", n)

		case conn := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				conn.Close()
			}
			h.mu.Unlock()

		case event := <-h.broadcast:
			h.mu.RLock()
			for conn := range h.clients {
				go h.send(conn, event)
			}
			h.mu.RUnlock()
		}
	}
}

func (h *Hub) send(conn *websocket.Conn, event Event) {
	conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if err := conn.WriteJSON(event); err != nil {
		h.logger.Warn("event send failed", "error", err)
		select {
		case h.unregister <- conn:
		default:
		}
	}
}

// PurgeCompleted broadcasts that a purge finished.
func (h *Hub) PurgeCompleted(kind, uri string, keysDeleted int) {
	h.emit(TypePurgeCompleted, map[string]any{
		"kind": kind, "uri": uri, "keys_deleted": keysDeleted,
	})
}

// FreshnessTransition broadcasts a fresh/soft-stale/hard-stale state change.
func (h *Hub) FreshnessTransition(key, from, to string) {
	h.emit(TypeFreshnessTransition, map[string]any{
		"key": key, "from": from, "to": to,
	})
}

func (h *Hub) emit(eventType string, data map[string]any) {
	event := Event{Type: eventType, Data: data, Timestamp: time.Now()}
	select {
	case h.broadcast <- event:
	default:
		h.logger.Warn("event channel full, dropping event", "type", eventType)
	}
}

// ServeWS upgrades the request to a websocket and registers the caller
// as an event subscriber. GET /admin/events
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("event websocket upgrade failed", "error", err)
		return
	}
	h.register <- conn
	go h.readPump(conn)
}

func (h *Hub) readPump(conn *websocket.Conn) {
	defer func() { h.unregister <- conn }()
	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		conn.Close()
	}
	h.clients = make(map[*websocket.Conn]bool)
}

// Marshal serializes an Event; admin consumers that read the stream
// outside a websocket client can use it against logged events.
func Marshal(e Event) ([]byte, error) { return json.Marshal(e) }
