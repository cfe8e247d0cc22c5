package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/querystream-gateway/backend/internal/model"
	"github.com/querystream-gateway/backend/internal/ws"
)

// EventHandler lets collaborating services publish engine events onto the
// fan-out bus.
type EventHandler struct {
	bus *ws.Bus
}

// NewEventHandler creates a new EventHandler.
func NewEventHandler(bus *ws.Bus) *EventHandler {
	return &EventHandler{bus: bus}
}

// Publish handles POST /api/events — validates the event envelope and
// broadcasts it to every session dispatch loop.
func (h *EventHandler) Publish(c *gin.Context) {
	var ev model.Event
	if err := c.ShouldBindJSON(&ev); err != nil {
		sendError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid event body: "+err.Error())
		return
	}
	if ev.TraceID == "" {
		sendError(c, http.StatusBadRequest, "VALIDATION_ERROR", "trace_id is required")
		return
	}

	h.bus.Publish(ev)
	c.JSON(http.StatusAccepted, gin.H{"status": "published"})
}

// RegisterRoutes registers the event ingest route on a Gin router group.
func (h *EventHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/events", h.Publish)
}
