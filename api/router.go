package api

import (
	"clipforge/config"
	"clipforge/jobstore"
	"clipforge/pipeline"
	"clipforge/store"

	"github.com/gin-gonic/gin"
)

func SetupRouter(exec *pipeline.Executor, jobs jobstore.Store, gateway store.Gateway, cfg *config.Config) *gin.Engine {
	r := gin.Default()
	h := NewHandler(exec, jobs, gateway, cfg)

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	v1 := r.Group("/api/v1")
	v1.Use(AuthMiddleware(cfg))
	{
		// Async pipeline endpoints
		v1.POST("/split", h.handleSplit)
		v1.POST("/metadata", h.handleMetadata)
		v1.POST("/clips", h.handleClips)
		v1.POST("/face-clips", h.handleFaceClips)
		v1.POST("/join", h.handleJoin)

		// Job lifecycle endpoints
		v1.GET("/jobs/:jobId", h.handleGetJob)
		v1.POST("/jobs/:jobId/stop", h.handleStopJob)

		// Remote file management endpoints
		v1.GET("/files", h.handleListFiles)
		v1.GET("/files/signed-url", h.handleSignedURL)
		v1.DELETE("/files", h.handleDeleteFile)
		v1.POST("/files/delete-batch", h.handleDeleteBatch)
	}
	return r
}
