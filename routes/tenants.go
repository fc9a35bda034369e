package routes

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"docstream-platform/middleware"
	"docstream-platform/utils"
)

type tenantCredentialsRequest struct {
	AccessKey   string `json:"accessKey" binding:"required"`
	Secret      string `json:"secret" binding:"required"`
	Bucket      string `json:"bucket"`
	NotifyPhone string `json:"notifyPhone"`
}

// SaveTenantCredentials stores a tenant's object-store credential override,
// encrypted at rest. The optional notification phone is normalized to E.164
// before storage.
func (h *Handlers) SaveTenantCredentials(c *gin.Context) {
	tenantID := middleware.TenantID(c)

	var req tenantCredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "accessKey and secret are required")
		return
	}

	if req.NotifyPhone != "" {
		normalized, err := utils.NormalizePhone(req.NotifyPhone, "1")
		if err != nil {
			if errors.Is(err, utils.ErrInvalidPhone) {
				badRequest(c, "notifyPhone is not a valid phone number")
				return
			}
			internalError(c, "normalize phone failed", err)
			return
		}
		req.NotifyPhone = normalized
	}

	blob, err := json.Marshal(req)
	if err != nil {
		internalError(c, "encode credentials failed", err)
		return
	}
	if err := h.Credentials.Save(c.Request.Context(), tenantID, blob); err != nil {
		internalError(c, "save credentials failed", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "saved"})
}
