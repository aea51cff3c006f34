package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ihuzaapp/shopperd/internal/history"
	"github.com/ihuzaapp/shopperd/internal/middleware"
	"github.com/ihuzaapp/shopperd/internal/realtime"
	"github.com/ihuzaapp/shopperd/pkg/response"
)

// NotificationsHandler exposes the notification history.
type NotificationsHandler struct {
	store history.Store
	hub   *realtime.Hub
}

// NewNotificationsHandler constructs the handler.
func NewNotificationsHandler(store history.Store, hub *realtime.Hub) *NotificationsHandler {
	return &NotificationsHandler{store: store, hub: hub}
}

// List returns history entries for the current shopper, newest first.
func (h *NotificationsHandler) List(c *gin.Context) {
	shopperID := c.GetString(middleware.CtxShopperIDKey)
	limit := parseIntQuery(c, "limit", history.Cap)

	items, err := h.store.List(c.Request.Context(), shopperID, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithMeta(c, http.StatusOK, items, &response.Meta{Total: len(items)})
}

// MarkRead flips one entry to read.
func (h *NotificationsHandler) MarkRead(c *gin.Context) {
	shopperID := c.GetString(middleware.CtxShopperIDKey)
	itemID := strings.TrimSpace(c.Param("id"))

	item, err := h.store.MarkRead(c.Request.Context(), shopperID, itemID)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.hub.Publish(shopperID, realtime.Event{
		Stream: realtime.StreamHistory,
		Type:   "read",
		Data:   item,
	})
	response.Success(c, http.StatusOK, item)
}

// MarkAllRead flips every unread entry for the shopper.
func (h *NotificationsHandler) MarkAllRead(c *gin.Context) {
	shopperID := c.GetString(middleware.CtxShopperIDKey)

	if err := h.store.MarkAllRead(c.Request.Context(), shopperID); err != nil {
		response.Error(c, err)
		return
	}

	h.hub.Publish(shopperID, realtime.Event{
		Stream: realtime.StreamHistory,
		Type:   "read_all",
	})
	response.Success(c, http.StatusOK, gin.H{"read": true})
}

// Open marks the entry read and returns it together with its order id so the
// dashboard can navigate. Opening implies reading.
func (h *NotificationsHandler) Open(c *gin.Context) {
	shopperID := c.GetString(middleware.CtxShopperIDKey)
	itemID := strings.TrimSpace(c.Param("id"))

	item, err := h.store.MarkRead(c.Request.Context(), shopperID, itemID)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.hub.Publish(shopperID, realtime.Event{
		Stream: realtime.StreamHistory,
		Type:   "read",
		Data:   item,
	})
	response.Success(c, http.StatusOK, gin.H{
		"item":    item,
		"orderId": item.OrderID,
	})
}

func parseIntQuery(c *gin.Context, name string, fallback int) int {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return fallback
	}
	return value
}
