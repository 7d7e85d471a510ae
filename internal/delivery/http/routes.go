package http

import (
	"github.com/gin-gonic/gin"

	"github.com/finsight/backend/config"
)

// SetupRouter creates and configures the Gin router
func SetupRouter(cfg *config.Config, handler *Handler) *gin.Engine {
	// Set Gin mode based on environment
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware
	router.Use(RecoveryMiddleware())
	router.Use(LoggerMiddleware())
	router.Use(CORSMiddleware(cfg.Server.AllowedOrigins))

	// Health check endpoint
	router.GET("/health", handler.HealthCheck)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		receipts := v1.Group("/receipts")
		{
			receipts.POST("/process", handler.ProcessReceipt)
			receipts.POST("/preview", handler.PreviewReceipt)
			receipts.POST("/validate", handler.ValidateImage)
			receipts.POST("/batch", handler.ProcessBatch)
		}
	}

	return router
}
