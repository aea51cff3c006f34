package api

import (
	"github.com/gin-gonic/gin"

	"github.com/ihuzaapp/shopperd/internal/handlers"
)

func registerOrderRoutes(api *gin.RouterGroup, handler *handlers.OrdersHandler) {
	group := api.Group("/orders")
	{
		group.GET("", handler.List)
		group.GET("/:id", handler.Get)
		group.POST("/:id/accept", handler.Accept)
	}
}
