package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayushi512rai/Lack-of-Accessibility/internal/app"
)

const (
	// clientBuffer is how many updates a slow client may lag behind before
	// updates to it are dropped.
	clientBuffer = 16
	writeWait    = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// UpdatesHub pushes every app.Update to websocket clients at /api/updates.
// It implements app.Sink.
type UpdatesHub struct {
	snapshot func() app.Update
	log      *slog.Logger

	mu      sync.RWMutex
	clients map[*websocket.Conn]chan []byte
}

// NewUpdatesHub creates a hub. snapshot, if set, is sent to each client on
// connect.
func NewUpdatesHub(snapshot func() app.Update, log *slog.Logger) *UpdatesHub {
	if log == nil {
		log = slog.Default()
	}
	return &UpdatesHub{
		snapshot: snapshot,
		log:      log.With(slog.String("component", "updates")),
		clients:  make(map[*websocket.Conn]chan []byte),
	}
}

// Publish broadcasts u without blocking.
func (h *UpdatesHub) Publish(u app.Update) {
	msg, err := json.Marshal(u)
	if err != nil {
		h.log.Error("encode update", slog.String("error", err.Error()))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, send := range h.clients {
		select {
		case send <- msg:
		default:
		}
	}
}

// Clients returns the number of connected clients.
func (h *UpdatesHub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *UpdatesHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade", slog.String("error", err.Error()))
		return
	}
	defer conn.Close()

	send := make(chan []byte, clientBuffer)
	if h.snapshot != nil {
		if msg, err := json.Marshal(h.snapshot()); err == nil {
			send <- msg
		}
	}

	h.mu.Lock()
	h.clients[conn] = send
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		// Keep connection alive by reading messages
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case msg := <-send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	}
}
