package api

import (
	"github.com/gin-gonic/gin"
)

func SetupRoutes(router *gin.Engine, srv *Server) {
	// Enable CORS
	router.Use(CORSMiddleware())

	// Health check
	router.GET("/health", func(c *gin.Context) {
		GetHealth(c, srv)
	})

	// API routes
	api := router.Group("/api")
	{
		api.GET("/session", func(c *gin.Context) {
			GetSession(c, srv)
		})

		devices := api.Group("/devices")
		{
			devices.GET("", func(c *gin.Context) {
				GetDevices(c, srv)
			})
			devices.GET("/:device_id", func(c *gin.Context) {
				GetDevice(c, srv)
			})
			devices.POST("/:device_id/track", func(c *gin.Context) {
				TrackDevice(c, srv)
			})
		}

		api.GET("/follow", func(c *gin.Context) {
			GetFollow(c, srv)
		})

		mapGroup := api.Group("/map")
		{
			mapGroup.GET("", func(c *gin.Context) {
				GetMap(c, srv)
			})
			mapGroup.POST("/drag", func(c *gin.Context) {
				DragMap(c, srv)
			})
			mapGroup.POST("/zoom", func(c *gin.Context) {
				ZoomMap(c, srv)
			})
		}

		api.GET("/journal", func(c *gin.Context) {
			GetJournal(c, srv)
		})
	}

	// WebSocket route
	router.GET("/ws", func(c *gin.Context) {
		HandleWebSocket(srv, c)
	})
}

func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
