// Package realtime streams driver locations to websocket subscribers.
package realtime

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const writeWait = 5 * time.Second

// Message is what subscribers receive.
type Message struct {
	Type     string    `json:"type"`
	DriverID string    `json:"driver_id"`
	Lat      float64   `json:"lat"`
	Lng      float64   `json:"lng"`
	At       time.Time `json:"at"`
}

// session serialises writes to one connection.
type session struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *session) send(msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteJSON(msg)
}

// Hub keeps websocket subscribers per driver.
type Hub struct {
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu   sync.RWMutex
	subs map[string]map[*session]struct{}
}

// NewHub creates a Hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger: logger,
		subs:   make(map[string]map[*session]struct{}),
	}
}

// Serve upgrades the request and streams driverID's locations until the client leaves.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, driverID string) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	s := &session{conn: conn}
	h.add(driverID, s)
	defer func() {
		h.remove(driverID, s)
		_ = conn.Close()
	}()

	// Reads only detect the close; subscribers send nothing meaningful.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return nil
		}
	}
}

// Broadcast sends msg to every subscriber of msg.DriverID and returns how many got it.
func (h *Hub) Broadcast(msg Message) int {
	h.mu.RLock()
	targets := make([]*session, 0, len(h.subs[msg.DriverID]))
	for s := range h.subs[msg.DriverID] {
		targets = append(targets, s)
	}
	h.mu.RUnlock()

	sent := 0
	for _, s := range targets {
		if err := s.send(msg); err != nil {
			h.logger.Debug("ws send failed; dropping subscriber", "driver_id", msg.DriverID, "error", err)
			h.remove(msg.DriverID, s)
			_ = s.conn.Close()
			continue
		}
		sent++
	}
	return sent
}

// BroadcastLocation sends a location_update for driverID stamped now.
func (h *Hub) BroadcastLocation(driverID string, lat, lng float64) int {
	return h.Broadcast(Message{Type: "location_update", DriverID: driverID, Lat: lat, Lng: lng, At: time.Now().UTC()})
}

// Subscribers returns the number of live subscribers of driverID.
func (h *Hub) Subscribers(driverID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[driverID])
}

func (h *Hub) add(driverID string, s *session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[driverID] == nil {
		h.subs[driverID] = make(map[*session]struct{})
	}
	h.subs[driverID][s] = struct{}{}
}

func (h *Hub) remove(driverID string, s *session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs[driverID], s)
	if len(h.subs[driverID]) == 0 {
		delete(h.subs, driverID)
	}
}
