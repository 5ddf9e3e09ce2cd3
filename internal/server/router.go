package server

import (
	"github.com/gin-gonic/gin"
)

// SetupRouter creates and configures the Gin router.
func SetupRouter(api *API, castAPI *CastAPI, hub *SessionHub) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(corsMiddleware())

	// Catalog and voting
	songs := r.Group("/api/songs")
	{
		songs.GET("", api.Songs)
		songs.GET("/:id/audio", api.SongAudio)
		songs.GET("/:id/waveform", api.SongWaveform)
		songs.POST("/:id/vote", api.Vote)
	}

	r.GET("/api/base-names", api.BaseNames)
	r.GET("/api/results", api.Results)
	r.POST("/api/scan", api.Scan)
	r.POST("/api/clear", api.Clear)
	r.GET("/api/config", api.Config)

	// Shareable session configurations
	blocks := r.Group("/api/blocks")
	{
		blocks.POST("", api.CreateBlock)
		blocks.GET("", api.Blocks)
		blocks.GET("/:id", api.Block)
		blocks.DELETE("/:id", api.DeleteBlock)
	}

	// Remote playback (HEOS)
	heos := r.Group("/api/heos")
	{
		heos.POST("/discover", castAPI.Discover)
		heos.GET("/devices", castAPI.Devices)
		heos.POST("/play", castAPI.Play)
		heos.POST("/stop", castAPI.Stop)
	}

	// Session event feed
	if hub != nil {
		r.GET("/api/session/events", hub.Events)
	}

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}

// corsMiddleware handles CORS for browser requests.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
