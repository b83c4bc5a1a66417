package websocket

import (
	"encoding/json"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gfearing/fearings-services/internal/estimator"
	"github.com/gfearing/fearings-services/internal/logger"
	"github.com/gfearing/fearings-services/internal/metrics"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Message types pushed to the page
const (
	TypeConnection    = "connection"
	TypeEstimateState = "estimate_state"
	TypePong          = "pong"
)

// Hub maintains the active clients of every session and pushes state to them
type Hub struct {
	// Registered clients by session ID
	clients map[string]map[*Client]bool

	// Register requests from the clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	done     chan struct{}
	stopOnce sync.Once

	mutex sync.RWMutex

	logger *zerolog.Logger
}

// Client is a middleman between the websocket connection and the hub
type Client struct {
	conn *websocket.Conn

	// Buffered channel of outbound messages
	Send chan []byte

	SessionID string
	ClientIP  string

	Hub *Hub

	// current reads the session state; it is sent once the client is registered
	current func() estimator.Snapshot

	ConnectedAt time.Time
	LastPing    time.Time
}

// Message represents a generic WebSocket message
type Message struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 512

	// Outbound buffer per client
	sendBufferSize = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     sameOrigin,
}

// sameOrigin accepts requests without an Origin header or whose origin host matches the request host
func sameOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return u.Host == r.Host
}

// NewHub creates a new WebSocket hub
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logger.Global(),
	}
}

// Run starts the hub's main loop; it returns after Stop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case <-h.done:
			h.closeAll()
			return
		}
	}
}

// Stop ends the main loop and closes every client
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
	})
}

// registerClient registers a new client
func (h *Hub) registerClient(client *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if h.clients[client.SessionID] == nil {
		h.clients[client.SessionID] = make(map[*Client]bool)
	}
	h.clients[client.SessionID][client] = true

	metrics.Get().IncrementWSConnection()

	h.logger.Info().
		Str("session_id", client.SessionID).
		Int("session_connections", len(h.clients[client.SessionID])).
		Msg("WebSocket client registered")

	client.SendMessage(Message{
		Type:      TypeConnection,
		Data:      map[string]string{"status": "connected"},
		Timestamp: time.Now(),
	})

	// Read under the hub lock: pushes for later transitions wait behind it
	// and earlier transitions are already part of the snapshot.
	if client.current != nil {
		client.SendMessage(StateMessage(client.current()))
	}
}

// unregisterClient unregisters a client
func (h *Hub) unregisterClient(client *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if h.removeLocked(client) {
		h.logger.Info().
			Str("session_id", client.SessionID).
			Int("remaining_connections", len(h.clients[client.SessionID])).
			Msg("WebSocket client unregistered")
	}
}

// removeLocked drops client and closes its channel; the caller holds the write lock
func (h *Hub) removeLocked(client *Client) bool {
	clients, ok := h.clients[client.SessionID]
	if !ok {
		return false
	}
	if _, ok := clients[client]; !ok {
		return false
	}

	delete(clients, client)
	close(client.Send)
	metrics.Get().DecrementWSConnection()

	if len(clients) == 0 {
		delete(h.clients, client.SessionID)
	}
	return true
}

func (h *Hub) closeAll() {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	for _, clients := range h.clients {
		for client := range clients {
			h.removeLocked(client)
		}
	}
}

// SendToSession sends a message to all connections of a session.
// Clients whose buffer is full are dropped.
func (h *Hub) SendToSession(sessionID string, message interface{}) {
	data, err := json.Marshal(message)
	if err != nil {
		h.logger.Error().
			Err(err).
			Str("session_id", sessionID).
			Msg("Failed to marshal message for session")
		return
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()

	clients, exists := h.clients[sessionID]
	if !exists {
		h.logger.Debug().
			Str("session_id", sessionID).
			Msg("No WebSocket connections found for session")
		return
	}

	for client := range clients {
		select {
		case client.Send <- data:
			metrics.Get().IncrementWSMessageOut()
		default:
			h.logger.Warn().
				Str("session_id", sessionID).
				Msg("Client send buffer full, closing connection")
			h.removeLocked(client)
		}
	}
}

// SendState pushes an estimate state snapshot to a session
func (h *Hub) SendState(snap estimator.Snapshot) {
	h.SendToSession(snap.SessionID, StateMessage(snap))
}

// StateMessage wraps a snapshot in an estimate_state message
func StateMessage(snap estimator.Snapshot) Message {
	return Message{
		Type:      TypeEstimateState,
		Data:      snap,
		Timestamp: time.Now(),
	}
}

// GetConnectionCount returns the total number of active connections
func (h *Hub) GetConnectionCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	count := 0
	for _, clients := range h.clients {
		count += len(clients)
	}
	return count
}

// GetSessionConnectionCount returns the number of connections for a session
func (h *Hub) GetSessionConnectionCount(sessionID string) int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	return len(h.clients[sessionID])
}

// RegisterClient is a public method to register a client (for testing)
func (h *Hub) RegisterClient(client *Client) {
	h.registerClient(client)
}

// UnregisterClient is a public method to unregister a client (for testing)
func (h *Hub) UnregisterClient(client *Client) {
	h.unregisterClient(client)
}
