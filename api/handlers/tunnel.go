package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/querystream-gateway/backend/internal/tunnel"
)

// TunnelHandler re-exposes a configured upstream WebSocket endpoint through
// the gateway's own connection.
type TunnelHandler struct {
	upstreamURL string
}

// NewTunnelHandler creates a new TunnelHandler for the upstream URL.
func NewTunnelHandler(upstreamURL string) *TunnelHandler {
	return &TunnelHandler{upstreamURL: upstreamURL}
}

// Proxy handles GET /api/wsproxy — dials the upstream first so a dial
// failure is reported as 502 instead of aborting mid-handshake, then
// upgrades the client and pumps both directions until either side closes.
func (h *TunnelHandler) Proxy(c *gin.Context) {
	upstream, err := tunnel.Dial(h.upstreamURL)
	if err != nil {
		log.Printf("tunnel: %v", err)
		sendError(c, http.StatusBadGateway, "UPSTREAM_UNAVAILABLE", "failed to reach upstream websocket")
		return
	}

	client, err := tunnel.Upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		upstream.Close()
		return
	}

	t := tunnel.New(client, upstream)
	log.Printf("tunnel %s: relaying to %s", t.ID(), h.upstreamURL)
	t.Run()
}

// RegisterRoutes registers the tunnel route on a Gin router group.
func (h *TunnelHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/wsproxy", h.Proxy)
}
