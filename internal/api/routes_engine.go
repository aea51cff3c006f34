package api

import (
	"github.com/gin-gonic/gin"

	"github.com/ihuzaapp/shopperd/internal/handlers"
)

func registerEngineRoutes(api *gin.RouterGroup, handler *handlers.EngineHandler) {
	group := api.Group("/engine")
	{
		group.POST("/start", handler.Start)
		group.POST("/stop", handler.Stop)
		group.GET("/status", handler.Status)
	}
}
