package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// TenantIDKey is the context key holding the authenticated tenant id.
const TenantIDKey = "tenantID"

// RequireTenant rejects requests without a valid X-Tenant-ID header. Every
// data-plane route runs behind it; handlers read the tenant from the context
// and never from the request again.
func RequireTenant() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID := c.GetHeader("X-Tenant-ID")
		if tenantID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":      "missing X-Tenant-ID header",
				"error_code": "unauthorized",
			})
			return
		}
		if _, err := uuid.Parse(tenantID); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":      "X-Tenant-ID must be a UUID",
				"error_code": "unauthorized",
			})
			return
		}
		c.Set(TenantIDKey, tenantID)
		c.Next()
	}
}

// TenantID reads the tenant set by RequireTenant.
func TenantID(c *gin.Context) string {
	return c.GetString(TenantIDKey)
}
