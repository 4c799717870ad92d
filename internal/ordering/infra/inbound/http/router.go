package http

import "github.com/gin-gonic/gin"

func RegisterOrderRoutes(r *gin.Engine, handler *OrderHandler) {
	orders := r.Group("/orders")
	{
		orders.POST("/", handler.CreateOrder)
		orders.GET("/:id", handler.GetOrder)
		orders.PUT("/:id/cancel", handler.CancelOrder)
		orders.PUT("/:id/ship", handler.ShipOrder)
	}
}
