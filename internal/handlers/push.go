package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ihuzaapp/shopperd/internal/middleware"
	"github.com/ihuzaapp/shopperd/internal/push"
	apperrors "github.com/ihuzaapp/shopperd/pkg/errors"
	"github.com/ihuzaapp/shopperd/pkg/response"
)

// PushHandler exposes the push ingest webhook and the device-token registry.
type PushHandler struct {
	transport *push.WebhookTransport
	tokens    *push.TokenRegistry
}

// NewPushHandler constructs the handler.
func NewPushHandler(transport *push.WebhookTransport, tokens *push.TokenRegistry) *PushHandler {
	return &PushHandler{transport: transport, tokens: tokens}
}

// Ingest accepts one provider push message addressed to a shopper.
func (h *PushHandler) Ingest(c *gin.Context) {
	shopperID := c.GetString(middleware.CtxShopperIDKey)

	var msg push.Message
	if err := c.ShouldBindJSON(&msg); err != nil {
		response.Error(c, apperrors.NewBadRequest("malformed push message").WithInternal(err))
		return
	}
	if msg.Type == "" {
		response.Error(c, apperrors.NewBadRequest("push message type is required"))
		return
	}

	if err := h.transport.Dispatch(c.Request.Context(), shopperID, msg); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusAccepted, gin.H{"delivered": true})
}

type registerTokenRequest struct {
	Token    string `json:"token" binding:"required"`
	Platform string `json:"platform"`
}

// RegisterToken saves the shopper's device token.
func (h *PushHandler) RegisterToken(c *gin.Context) {
	shopperID := c.GetString(middleware.CtxShopperIDKey)

	var req registerTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperrors.NewBadRequest("token is required").WithInternal(err))
		return
	}

	changed, err := h.tokens.Save(c.Request.Context(), shopperID, req.Token, req.Platform)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"registered": true, "changed": changed})
}

// UnregisterToken drops the shopper's device token.
func (h *PushHandler) UnregisterToken(c *gin.Context) {
	shopperID := c.GetString(middleware.CtxShopperIDKey)

	if err := h.tokens.Forget(c.Request.Context(), shopperID); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"registered": false})
}
