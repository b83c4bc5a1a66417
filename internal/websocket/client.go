package websocket

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gfearing/fearings-services/internal/estimator"
	"github.com/gfearing/fearings-services/internal/logger"
	"github.com/gfearing/fearings-services/internal/metrics"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// ServeWS upgrades the request and attaches the connection to sessionID.
// current is read at registration and sent right after the welcome message.
func (h *Hub) ServeWS(c *gin.Context, sessionID string, current func() estimator.Snapshot) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error().
			Err(err).
			Str("session_id", sessionID).
			Msg("Failed to upgrade WebSocket connection")
		return
	}

	client := &Client{
		conn:        conn,
		Send:        make(chan []byte, sendBufferSize),
		SessionID:   sessionID,
		ClientIP:    c.ClientIP(),
		Hub:         h,
		current:     current,
		ConnectedAt: time.Now(),
		LastPing:    time.Now(),
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	logger.AuditWebSocket(c.Request.Context(), logger.AuditActionWSConnect, sessionID, client.ClientIP, nil)

	go client.writePump()
	go client.readPump()
}

// readPump pumps messages from the websocket connection to the hub.
// At most one reader runs per connection.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.Hub.unregister <- c:
		case <-c.Hub.done:
		}
		c.conn.Close()
		logger.AuditWebSocket(context.Background(), logger.AuditActionWSDisconnect, c.SessionID, c.ClientIP, map[string]interface{}{
			"connected_for_ms": time.Since(c.ConnectedAt).Milliseconds(),
		})
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.LastPing = time.Now()
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.logger.Error().
					Err(err).
					Str("session_id", c.SessionID).
					Msg("WebSocket connection closed unexpectedly")
			}
			break
		}

		c.handleMessage(message)
	}
}

// writePump pumps messages from the hub to the websocket connection.
// At most one writer runs per connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			// One JSON document per frame
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage processes incoming messages from the client
func (c *Client) handleMessage(data []byte) {
	metrics.Get().IncrementWSMessageIn()

	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		c.Hub.logger.Debug().
			Err(err).
			Str("session_id", c.SessionID).
			Msg("Failed to unmarshal client message")
		return
	}

	switch msg.Type {
	case "ping":
		c.SendMessage(Message{
			Type:      TypePong,
			Timestamp: time.Now(),
		})

	default:
		c.Hub.logger.Debug().
			Str("session_id", c.SessionID).
			Str("message_type", msg.Type).
			Msg("Unknown message type received from client")
	}
}

// SendMessage queues a message for this client; it is dropped if the buffer is full
func (c *Client) SendMessage(message interface{}) {
	data, err := json.Marshal(message)
	if err != nil {
		c.Hub.logger.Error().
			Err(err).
			Str("session_id", c.SessionID).
			Msg("Failed to marshal message for client")
		return
	}

	defer func() {
		// Send may already be closed by the hub
		if recover() != nil {
			c.Hub.logger.Debug().Str("session_id", c.SessionID).Msg("Message for closed client dropped")
		}
	}()

	select {
	case c.Send <- data:
	default:
		c.Hub.logger.Warn().
			Str("session_id", c.SessionID).
			Msg("Client send buffer full, message dropped")
	}
}

// GetConnectionInfo returns information about this client connection
func (c *Client) GetConnectionInfo() map[string]interface{} {
	return map[string]interface{}{
		"session_id":   c.SessionID,
		"client_ip":    c.ClientIP,
		"connected_at": c.ConnectedAt,
		"last_ping":    c.LastPing,
	}
}
