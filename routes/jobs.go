package routes

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"docstream-platform/middleware"
	"docstream-platform/repositories"
)

// GetJob returns the status of an ingestion job, scoped to the tenant.
func (h *Handlers) GetJob(c *gin.Context) {
	tenantID := middleware.TenantID(c)

	job, err := h.Jobs.GetForTenant(c.Request.Context(), tenantID, c.Param("id"))
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			notFound(c, "job not found")
			return
		}
		internalError(c, "get job failed", err)
		return
	}

	resp := gin.H{
		"id":          job.ID,
		"versionId":   job.VersionID,
		"sourceType":  job.SourceType,
		"status":      job.Status,
		"stage":       job.Stage,
		"attempts":    job.Attempts,
		"maxAttempts": job.MaxAttempts,
		"createdAt":   job.CreatedAt,
	}
	if job.ErrorCode != "" {
		resp["errorCode"] = job.ErrorCode
		resp["lastError"] = job.LastError
	}
	if job.StartedAt != nil {
		resp["startedAt"] = job.StartedAt
	}
	if job.CompletedAt != nil {
		resp["completedAt"] = job.CompletedAt
	}
	if job.NextRetryAt != nil {
		resp["nextRetryAt"] = job.NextRetryAt
	}
	if len(job.Metrics) > 0 {
		resp["metrics"] = job.Metrics
	}

	c.JSON(http.StatusOK, resp)
}
