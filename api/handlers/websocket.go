package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/querystream-gateway/backend/internal/ws"
)

// WebSocketHandler upgrades browser connections into notification sessions.
type WebSocketHandler struct {
	wsHandler *ws.Handler
}

// NewWebSocketHandler creates a new WebSocketHandler.
func NewWebSocketHandler(wsHandler *ws.Handler) *WebSocketHandler {
	return &WebSocketHandler{
		wsHandler: wsHandler,
	}
}

// Connect handles GET /api/ws/:user_id?request_id=... — upgrades the request
// into a session registered under the client-supplied request id. The user id
// is used for logging and attribution only; authentication is assumed to
// happen upstream.
func (h *WebSocketHandler) Connect(c *gin.Context) {
	userID := c.Param("user_id")
	requestID := c.Query("request_id")
	if requestID == "" {
		sendError(c, http.StatusBadRequest, "VALIDATION_ERROR", "request_id query parameter is required")
		return
	}

	if err := h.wsHandler.HandleConnection(c.Writer, c.Request, userID, requestID); err != nil {
		// Upgrade failure already wrote the response.
		return
	}
}

// RegisterRoutes registers the WebSocket routes on a Gin router group.
func (h *WebSocketHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/ws/:user_id", h.Connect)
}
