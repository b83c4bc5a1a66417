package handler

import (
	"net/http"

	"github.com/gfearing/fearings-services/internal/middleware"
	"github.com/gfearing/fearings-services/internal/session"
	"github.com/gfearing/fearings-services/internal/websocket"
	"github.com/gin-gonic/gin"
)

// WebSocketHandler handles WebSocket-related HTTP requests
type WebSocketHandler struct {
	hub   *websocket.Hub
	store *session.Store
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(hub *websocket.Hub, store *session.Store) *WebSocketHandler {
	return &WebSocketHandler{
		hub:   hub,
		store: store,
	}
}

// HandleConnection upgrades the request and streams the session's estimate state
func (h *WebSocketHandler) HandleConnection(c *gin.Context) {
	sessionID := middleware.GetSessionID(c)
	sess := h.store.GetOrCreate(sessionID)
	h.hub.ServeWS(c, sessionID, sess.Snapshot)
}

// GetConnectionStats returns WebSocket connection statistics
func (h *WebSocketHandler) GetConnectionStats(c *gin.Context) {
	sessionID := middleware.GetSessionID(c)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": map[string]interface{}{
			"total_connections":   h.hub.GetConnectionCount(),
			"session_connections": h.hub.GetSessionConnectionCount(sessionID),
		},
	})
}
