package api

import (
	"github.com/gin-gonic/gin"

	"github.com/ihuzaapp/shopperd/internal/handlers"
)

func registerAlertRoutes(api *gin.RouterGroup, handler *handlers.AlertsHandler) {
	group := api.Group("/alerts")
	{
		group.POST("/unlock-audio", handler.UnlockAudio)
		group.POST("/permission", handler.SetPermission)
	}
}
