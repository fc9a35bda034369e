package routes

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"docstream-platform/internal/logger"
	"docstream-platform/middleware"
	"docstream-platform/repositories"
	"docstream-platform/services"
)

type initUploadRequest struct {
	DocumentID string `json:"documentId"`
	Title      string `json:"title"`
	Filename   string `json:"filename" binding:"required"`
	MimeType   string `json:"mimeType" binding:"required"`
	UploaderID string `json:"uploaderId"`
}

// InitUpload reserves a new document or a new version of an existing one and
// returns a presigned upload ticket.
func (h *Handlers) InitUpload(c *gin.Context) {
	tenantID := middleware.TenantID(c)

	var req initUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "filename and mimeType are required")
		return
	}

	ticket, err := h.Uploads.InitUpload(c.Request.Context(), tenantID, req.DocumentID, req.Title, req.Filename, req.MimeType, req.UploaderID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrUnsupportedFilename):
			respondError(c, http.StatusBadRequest, "unsupported_format", "file type not supported")
		case errors.Is(err, repositories.ErrNotFound):
			notFound(c, "document not found")
		case errors.Is(err, repositories.ErrDocumentFrozen):
			respondError(c, http.StatusConflict, "document_deleted", "document is deleted")
		default:
			internalError(c, "init upload failed", err)
		}
		return
	}

	c.JSON(http.StatusCreated, ticket)
}

type completeUploadRequest struct {
	FileSize int64 `json:"fileSize"`
}

// CompleteUpload materializes an uploaded version and queues ingestion. The
// declared fileSize, when sent, is checked against the stored object.
func (h *Handlers) CompleteUpload(c *gin.Context) {
	tenantID := middleware.TenantID(c)
	versionID := c.Param("versionId")

	var req completeUploadRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid request body")
			return
		}
	}

	job, err := h.Uploads.CompleteUpload(c.Request.Context(), tenantID, versionID, req.FileSize)
	if err != nil {
		switch {
		case errors.Is(err, repositories.ErrNotFound):
			notFound(c, "version not found")
		case errors.Is(err, services.ErrVersionNotUploaded):
			respondError(c, http.StatusConflict, "upload_incomplete", "no object found at the version's key")
		case errors.Is(err, services.ErrSizeMismatch):
			respondError(c, http.StatusConflict, "size_mismatch", "stored object size does not match declared fileSize")
		default:
			internalError(c, "complete upload failed", err)
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "queued",
		"jobId":  job.ID,
	})
}

// ListDocuments returns a page of the tenant's documents.
func (h *Handlers) ListDocuments(c *gin.Context) {
	tenantID := middleware.TenantID(c)
	limit := queryInt(c, "limit", 20, 100)
	offset := queryInt(c, "offset", 0, 1<<30)

	docs, total, err := h.Documents.ListDocuments(c.Request.Context(), tenantID, limit, offset)
	if err != nil {
		internalError(c, "list documents failed", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"documents": docs,
		"total":     total,
		"limit":     limit,
		"offset":    offset,
	})
}

// GetDocument returns one document.
func (h *Handlers) GetDocument(c *gin.Context) {
	tenantID := middleware.TenantID(c)

	doc, err := h.Documents.GetDocument(c.Request.Context(), tenantID, c.Param("id"))
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			notFound(c, "document not found")
			return
		}
		internalError(c, "get document failed", err)
		return
	}

	c.JSON(http.StatusOK, doc)
}

type patchDocumentRequest struct {
	Title  *string  `json:"title"`
	Labels []string `json:"labels"`
}

// PatchDocument updates mutable document metadata.
func (h *Handlers) PatchDocument(c *gin.Context) {
	tenantID := middleware.TenantID(c)

	var req patchDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	err := h.Documents.UpdateDocument(c.Request.Context(), tenantID, c.Param("id"), req.Title, req.Labels)
	if err != nil {
		switch {
		case errors.Is(err, repositories.ErrNotFound):
			notFound(c, "document not found")
		case errors.Is(err, repositories.ErrDocumentFrozen):
			respondError(c, http.StatusConflict, "document_deleted", "document is deleted")
		default:
			internalError(c, "update document failed", err)
		}
		return
	}

	doc, err := h.Documents.GetDocument(c.Request.Context(), tenantID, c.Param("id"))
	if err != nil {
		internalError(c, "get document failed", err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

// DeleteDocument marks a document deleted and terminally fails its in-flight
// jobs. Object cleanup happens out of band.
func (h *Handlers) DeleteDocument(c *gin.Context) {
	tenantID := middleware.TenantID(c)
	id := c.Param("id")

	err := h.Documents.MarkDeletedPending(c.Request.Context(), tenantID, id)
	if err != nil {
		switch {
		case errors.Is(err, repositories.ErrNotFound):
			notFound(c, "document not found")
		case errors.Is(err, repositories.ErrDocumentFrozen):
			// Already deleted; idempotent success.
			c.JSON(http.StatusOK, gin.H{"status": "deleted"})
		default:
			internalError(c, "delete document failed", err)
		}
		return
	}

	failed, err := h.Jobs.FailNonTerminalByDocument(c.Request.Context(), id)
	if err != nil {
		// The document is already marked; job cleanup also happens at stage
		// boundaries, so log and keep going.
		logger.Error("failing jobs for deleted document failed", "documentId", id, "error", err)
	} else if failed > 0 {
		logger.Info("cancelled in-flight jobs for deleted document", "documentId", id, "jobs", failed)
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// DownloadVersion returns a presigned GET URL for a version's original bytes.
func (h *Handlers) DownloadVersion(c *gin.Context) {
	tenantID := middleware.TenantID(c)

	version, err := h.Documents.GetVersion(c.Request.Context(), tenantID, c.Param("versionId"))
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			notFound(c, "version not found")
			return
		}
		internalError(c, "get version failed", err)
		return
	}
	if version.DocumentID != c.Param("id") {
		notFound(c, "version not found")
		return
	}

	url, err := h.Store.GetDownloadURL(c.Request.Context(), version.ObjectKey, 15*time.Minute)
	if err != nil {
		internalError(c, "presign download failed", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"downloadUrl": url,
		"expiresIn":   900,
	})
}

func queryInt(c *gin.Context, name string, def, max int) int {
	raw := c.Query(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}
