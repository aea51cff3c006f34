package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ihuzaapp/shopperd/internal/dispatch"
	apperrors "github.com/ihuzaapp/shopperd/pkg/errors"
	"github.com/ihuzaapp/shopperd/pkg/response"
)

// AlertsHandler lets the dashboard report its delivery capabilities: audio
// unlock after first interaction, and the OS notification permission state.
type AlertsHandler struct {
	sound  *dispatch.SoundChannel
	system *dispatch.SystemChannel
}

// NewAlertsHandler constructs the handler.
func NewAlertsHandler(sound *dispatch.SoundChannel, system *dispatch.SystemChannel) *AlertsHandler {
	return &AlertsHandler{sound: sound, system: system}
}

// UnlockAudio marks audio as playable for sound cues.
func (h *AlertsHandler) UnlockAudio(c *gin.Context) {
	h.sound.Unlock()
	response.Success(c, http.StatusOK, gin.H{"audio": "unlocked"})
}

type permissionRequest struct {
	State string `json:"state" binding:"required"`
}

// SetPermission records the dashboard-reported OS notification permission.
func (h *AlertsHandler) SetPermission(c *gin.Context) {
	var req permissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperrors.NewBadRequest("state is required").WithInternal(err))
		return
	}

	switch req.State {
	case dispatch.PermissionGranted, dispatch.PermissionDenied, dispatch.PermissionDefault:
		h.system.SetPermission(req.State)
		response.Success(c, http.StatusOK, gin.H{"permission": h.system.Permission()})
	default:
		response.Error(c, apperrors.NewBadRequest("unknown permission state"))
	}
}
