package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ihuzaapp/shopperd/internal/engine"
	"github.com/ihuzaapp/shopperd/internal/middleware"
	"github.com/ihuzaapp/shopperd/internal/models"
	apperrors "github.com/ihuzaapp/shopperd/pkg/errors"
	"github.com/ihuzaapp/shopperd/pkg/response"
)

// EngineHandler controls per-shopper matching sessions.
type EngineHandler struct {
	manager *engine.Manager
}

// NewEngineHandler constructs the handler.
func NewEngineHandler(manager *engine.Manager) *EngineHandler {
	return &EngineHandler{manager: manager}
}

// Coordinates are pointers so a legitimate 0 (equator, prime meridian) is
// distinguishable from an absent field.
type startSessionRequest struct {
	Latitude  *float64 `json:"latitude" binding:"required,gte=-90,lte=90"`
	Longitude *float64 `json:"longitude" binding:"required,gte=-180,lte=180"`
}

// Start launches or restarts the shopper's matching session at a location.
// Restarting clears the shopper's claims and cooldown.
func (h *EngineHandler) Start(c *gin.Context) {
	shopperID := c.GetString(middleware.CtxShopperIDKey)

	var req startSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperrors.NewBadRequest("latitude and longitude are required").WithInternal(err))
		return
	}

	h.manager.Start(shopperID, models.Location{
		Latitude:  *req.Latitude,
		Longitude: *req.Longitude,
	})
	response.Success(c, http.StatusOK, h.manager.Status(shopperID))
}

// Stop halts the shopper's matching session.
func (h *EngineHandler) Stop(c *gin.Context) {
	shopperID := c.GetString(middleware.CtxShopperIDKey)

	if !h.manager.Status(shopperID).Running {
		response.Error(c, apperrors.ErrEngineNotRunning)
		return
	}
	h.manager.Stop(shopperID)
	response.Success(c, http.StatusOK, gin.H{"running": false})
}

// Status reports the shopper's current session.
func (h *EngineHandler) Status(c *gin.Context) {
	shopperID := c.GetString(middleware.CtxShopperIDKey)
	response.Success(c, http.StatusOK, h.manager.Status(shopperID))
}
