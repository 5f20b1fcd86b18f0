// Package stream pushes dispatch lifecycle events to websocket subscribers,
// so dashboards and contractor apps see rounds, assignments and escalations
// as they happen.
package stream

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/CleanExpo/Disaster-Recovery-sub021/core/events"
	"github.com/CleanExpo/Disaster-Recovery-sub021/core/logger"
	"github.com/CleanExpo/Disaster-Recovery-sub021/internal/eventbus"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// envelope is the wire frame for every pushed event.
type envelope struct {
	Type string `json:"type"`
	At   string `json:"at"`
	Data any    `json:"data"`
}

// Hub relays bus events to connected websocket clients.
type Hub struct {
	logger logger.Logger

	clientsMu sync.Mutex
	clients   map[*websocket.Conn]bool

	done chan struct{}
	once sync.Once
}

// NewHub creates a Hub and starts relaying from bus.
func NewHub(bus eventbus.EventBus, log logger.Logger) *Hub {
	h := &Hub{
		logger:  log,
		clients: make(map[*websocket.Conn]bool),
		done:    make(chan struct{}),
	}
	ch := bus.Subscribe()
	go h.relay(ch)
	return h
}

// HandleWS upgrades the request and registers the client.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Errorf("websocket upgrade: %v", err)
		return
	}
	h.addClient(conn)
}

// Register mounts the stream endpoint on mux.
func (h *Hub) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/stream", h.HandleWS)
}

// ClientCount reports how many clients are connected.
func (h *Hub) ClientCount() int {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()
	return len(h.clients)
}

// Close disconnects every client and stops the relay.
func (h *Hub) Close() {
	h.once.Do(func() { close(h.done) })
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()
	for conn := range h.clients {
		conn.Close()
	}
	h.clients = make(map[*websocket.Conn]bool)
}

func (h *Hub) addClient(conn *websocket.Conn) {
	h.clientsMu.Lock()
	h.clients[conn] = true
	h.clientsMu.Unlock()

	// Drain reads so pings and close frames are handled; drop the client
	// on the first error.
	go func() {
		defer h.removeClient(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (h *Hub) removeClient(conn *websocket.Conn) {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()
	if h.clients[conn] {
		conn.Close()
		delete(h.clients, conn)
	}
}

func (h *Hub) relay(ch <-chan eventbus.Event) {
	for {
		select {
		case <-h.done:
			return
		case evt, ok := <-ch:
			if !ok {
				return
			}
			h.broadcast(evt)
		}
	}
}

func (h *Hub) broadcast(evt eventbus.Event) {
	frame := envelope{
		Type: eventType(evt),
		At:   time.Now().UTC().Format(time.RFC3339),
		Data: evt,
	}
	payload, err := json.Marshal(frame)
	if err != nil {
		h.logger.Errorf("marshal stream event: %v", err)
		return
	}

	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()
	for conn := range h.clients {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			conn.Close()
			delete(h.clients, conn)
		}
	}
}

func eventType(evt eventbus.Event) string {
	switch evt.(type) {
	case events.JobDispatchedEvent:
		return "job_dispatched"
	case events.InvitationEvent:
		return "invitation"
	case events.AssignmentEvent:
		return "assignment"
	case events.RoundExpiredEvent:
		return "round_expired"
	case events.EscalationEvent:
		return "escalation"
	case events.CancellationEvent:
		return "cancellation"
	default:
		return "event"
	}
}
