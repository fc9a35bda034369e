package routes

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"docstream-platform/internal/storage"
	"docstream-platform/middleware"
	"docstream-platform/repositories"
	"docstream-platform/services"
)

// Handlers bundles everything the HTTP layer depends on.
type Handlers struct {
	Documents   *repositories.DocumentRepository
	Jobs        *repositories.JobRepository
	Credentials *repositories.CredentialRepository
	Store       *storage.ObjectStore
	Uploads     *services.UploadService
}

// SetupRouter wires middleware and all API routes.
func SetupRouter(h *Handlers) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(cors.Default())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api", middleware.RequireTenant())
	{
		api.POST("/documents/upload", h.InitUpload)
		api.POST("/versions/:versionId/complete", h.CompleteUpload)
		api.GET("/documents", h.ListDocuments)
		api.GET("/documents/:id", h.GetDocument)
		api.PATCH("/documents/:id", h.PatchDocument)
		api.DELETE("/documents/:id", h.DeleteDocument)
		api.GET("/documents/:id/versions/:versionId/download", h.DownloadVersion)
		api.GET("/jobs/:id", h.GetJob)
		api.PUT("/tenant/credentials", h.SaveTenantCredentials)
	}

	return r
}
