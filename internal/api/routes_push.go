package api

import (
	"github.com/gin-gonic/gin"

	"github.com/ihuzaapp/shopperd/internal/handlers"
)

func registerPushRoutes(api *gin.RouterGroup, handler *handlers.PushHandler) {
	api.POST("/push", handler.Ingest)

	group := api.Group("/push/token")
	{
		group.POST("", handler.RegisterToken)
		group.DELETE("", handler.UnregisterToken)
	}
}
