package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"nhooyr.io/websocket"

	"github.com/scrypster/troupe/pkg/types"
)

// SessionHub manages WebSocket connections grouped by chat session and
// delivers completed turns to the session they belong to. It implements the
// scheduler's delivery sink: a turn is only ever sent to clients watching
// its own session, never to a different, later one.
type SessionHub struct {
	mu       sync.Mutex
	sessions map[string]map[clientInterface]bool
	// allowedOrigins guards the upgrade endpoint against cross-site
	// connections. Derived from the configured host and port.
	allowedOrigins map[string]bool
	originPatterns []string
	closed         bool
}

// clientInterface allows for both real clients and mock clients.
type clientInterface interface {
	getSendChannel() chan []byte
	close()
}

// Client represents one WebSocket connection watching one session.
type Client struct {
	hub       *SessionHub
	sessionID string
	conn      *websocket.Conn
	send      chan []byte
}

func (c *Client) getSendChannel() chan []byte {
	return c.send
}

func (c *Client) close() {
	if c.conn != nil {
		_ = c.conn.Close(websocket.StatusNormalClosure, "")
	}
}

// NewSessionHub creates a hub that accepts local connections on the given
// port.
func NewSessionHub(port int) *SessionHub {
	return &SessionHub{
		sessions: make(map[string]map[clientInterface]bool),
		allowedOrigins: map[string]bool{
			fmt.Sprintf("http://localhost:%d", port): true,
			fmt.Sprintf("http://127.0.0.1:%d", port): true,
		},
		originPatterns: []string{
			fmt.Sprintf("localhost:%d", port),
			fmt.Sprintf("127.0.0.1:%d", port),
		},
	}
}

// Register adds a client to a session's watcher set.
func (h *SessionHub) Register(sessionID string, client clientInterface) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(client.getSendChannel())
		return
	}
	watchers, ok := h.sessions[sessionID]
	if !ok {
		watchers = make(map[clientInterface]bool)
		h.sessions[sessionID] = watchers
	}
	watchers[client] = true
	log.Printf("WebSocket client connected to session %s (watchers: %d)", sessionID, len(watchers))
}

// Unregister removes a client from its session's watcher set.
func (h *SessionHub) Unregister(sessionID string, client clientInterface) {
	h.mu.Lock()
	defer h.mu.Unlock()
	watchers, ok := h.sessions[sessionID]
	if !ok || !watchers[client] {
		return
	}
	delete(watchers, client)
	close(client.getSendChannel())
	if len(watchers) == 0 {
		delete(h.sessions, sessionID)
	}
	log.Printf("WebSocket client disconnected from session %s (watchers: %d)", sessionID, len(watchers))
}

// Deliver sends a completed turn to every client watching its session.
// Clients whose send buffer is full are dropped rather than allowed to
// stall delivery for the rest.
func (h *SessionHub) Deliver(turn *types.ChatTurn) {
	data, err := json.Marshal(TurnEvent{Type: "turn", Turn: turn})
	if err != nil {
		log.Printf("ERROR: failed to marshal turn %s: %v", turn.ID, err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	watchers := h.sessions[turn.SessionID]
	for client := range watchers {
		select {
		case client.getSendChannel() <- data:
		default:
			delete(watchers, client)
			close(client.getSendChannel())
		}
	}
	if len(watchers) == 0 {
		delete(h.sessions, turn.SessionID)
	}
}

// Stop disconnects every client and refuses further registrations.
func (h *SessionHub) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for _, watchers := range h.sessions {
		for client := range watchers {
			close(client.getSendChannel())
			client.close()
		}
	}
	h.sessions = make(map[string]map[clientInterface]bool)
	log.Println("WebSocket hub stopped")
}

// ServeHTTP handles WebSocket upgrade requests for
// GET /ws/sessions/{session}.
func (h *SessionHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("session")
	if sessionID == "" {
		http.Error(w, "missing session id", http.StatusBadRequest)
		return
	}

	// Validate Origin header
	if origin := r.Header.Get("Origin"); origin != "" && !h.allowedOrigins[origin] {
		http.Error(w, "Forbidden: invalid origin", http.StatusForbidden)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		log.Printf("ERROR: WebSocket upgrade failed: %v", err)
		return
	}

	client := &Client{
		hub:       h,
		sessionID: sessionID,
		conn:      conn,
		send:      make(chan []byte, 256),
	}

	h.Register(sessionID, client)

	go client.writePump()
	go client.readPump()
}

// writePump sends delivered turns to the WebSocket connection.
func (c *Client) writePump() {
	defer func() {
		c.hub.Unregister(c.sessionID, c)
		_ = c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for message := range c.send {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := c.conn.Write(ctx, websocket.MessageText, message)
		cancel()

		if err != nil {
			log.Printf("ERROR: WebSocket write failed: %v", err)
			return
		}
	}
}

// readPump drains messages from the WebSocket connection to detect
// disconnections. Clients never send application messages; turns are
// submitted over the REST API.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c.sessionID, c)
		_ = c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		if _, _, err := c.conn.Read(context.Background()); err != nil {
			return
		}
	}
}

// MockClient is a mock client for testing.
type MockClient struct {
	SendChan chan []byte
}

func (m *MockClient) getSendChannel() chan []byte {
	return m.SendChan
}

func (m *MockClient) close() {
	// No-op for mock client
}
