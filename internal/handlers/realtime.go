package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ihuzaapp/shopperd/internal/middleware"
	"github.com/ihuzaapp/shopperd/internal/realtime"
)

// RealtimeHandler upgrades dashboard connections onto the event hub.
type RealtimeHandler struct {
	hub *realtime.Hub
}

// NewRealtimeHandler constructs the handler.
func NewRealtimeHandler(hub *realtime.Hub) *RealtimeHandler {
	return &RealtimeHandler{hub: hub}
}

// Stream serves the websocket. Streams come from the `streams` query
// parameter, comma separated; omitted means all of them.
func (h *RealtimeHandler) Stream(c *gin.Context) {
	shopperID := c.GetString(middleware.CtxShopperIDKey)

	streams := []string{
		realtime.StreamOrders,
		realtime.StreamAlerts,
		realtime.StreamHistory,
		realtime.StreamChat,
	}
	if raw := strings.TrimSpace(c.Query("streams")); raw != "" {
		streams = strings.Split(raw, ",")
	}

	h.hub.Serve(shopperID, streams, c.Writer, c.Request)
}
