package routes

import (
	"order-tracker-api/internal/handlers"
	"order-tracker-api/internal/metrics"
	"order-tracker-api/internal/middleware"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(h *handlers.Handler, m *metrics.Metrics) *gin.Engine {
	// Create a new GIN Router
	ginRouter := gin.New()
	ginRouter.Use(gin.Recovery())
	ginRouter.Use(middleware.RequestLogger(h.Logger))

	// CORS middleware (for frontend integration)
	ginRouter.Use(middleware.CORS())

	// Health check endpoint
	ginRouter.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":        "ok",
			"message":       "Order Tracker API is running",
			"memoryEntries": h.Cache.MemoryLen(),
			"subscribers":   h.Hub.Len(),
		})
	})
	ginRouter.GET("/metrics", gin.WrapH(m.Handler()))

	api := ginRouter.Group("/api")
	{
		api.POST("/orders", h.IngestOrders)
		api.GET("/tracking", h.ListRecentTracking)
		api.GET("/tracking/:code", h.GetTracking)
		// Realtime cache events
		api.GET("/events", h.Events)
	}

	return ginRouter
}
