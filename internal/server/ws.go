package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/gvf/internal/app"
	"github.com/ayusman/gvf/internal/geometry"
	"github.com/ayusman/gvf/internal/session"
)

const (
	writeWait     = 5 * time.Second
	clientBacklog = 64
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// EventsHandler streams session events to WebSocket clients. Points a
// client sends as JSON text messages are fed to the session.
type EventsHandler struct {
	app     *app.App
	cancel  func()
	clients map[*websocket.Conn]chan []byte
	mu      sync.RWMutex
}

// NewEventsHandler creates an EventsHandler subscribed to the app events.
func NewEventsHandler(a *app.App) *EventsHandler {
	h := &EventsHandler{
		app:     a,
		clients: make(map[*websocket.Conn]chan []byte),
	}
	h.cancel = a.Subscribe(h.broadcast)
	return h
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	send := make(chan []byte, clientBacklog)
	h.mu.Lock()
	h.clients[conn] = send
	h.mu.Unlock()

	done := make(chan struct{})
	go h.write(conn, send, done)

	defer func() {
		h.remove(conn)
		<-done
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			break
		}

		var p geometry.Point3D
		if err := json.Unmarshal(msg, &p); err != nil {
			log.Printf("websocket: ignoring malformed sample: %v", err)
			continue
		}
		if _, err := h.app.AddSample(p); err != nil && !errors.Is(err, session.ErrInvalidState) {
			log.Printf("websocket: error processing sample: %v", err)
		}
	}
}

// write drains the client queue until it is closed.
func (h *EventsHandler) write(conn *websocket.Conn, send <-chan []byte, done chan<- struct{}) {
	defer close(done)

	for msg := range send {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			conn.Close()
			return
		}
	}
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
}

func (h *EventsHandler) remove(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if send, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		close(send)
	}
}

// broadcast queues an event for every connected client. A client that
// falls behind misses events rather than stalling the session.
func (h *EventsHandler) broadcast(e app.Event) {
	msg, err := json.Marshal(e)
	if err != nil {
		log.Printf("websocket: failed to encode %s event: %v", e.Type, err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for conn, send := range h.clients {
		select {
		case send <- msg:
		default:
			log.Printf("websocket: dropping %s event for %s", e.Type, conn.RemoteAddr())
		}
	}
}

// Clients returns the number of connected clients.
func (h *EventsHandler) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close unsubscribes from the app and disconnects every client.
func (h *EventsHandler) Close() {
	h.cancel()

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn, send := range h.clients {
		delete(h.clients, conn)
		close(send)
	}
}
