package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"docstream-platform/internal/logger"
)

// respondError emits the uniform error envelope: a human message plus a
// stable machine code.
func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{
		"error":      message,
		"error_code": code,
	})
}

func badRequest(c *gin.Context, message string) {
	respondError(c, http.StatusBadRequest, "bad_request", message)
}

func notFound(c *gin.Context, message string) {
	respondError(c, http.StatusNotFound, "not_found", message)
}

func internalError(c *gin.Context, message string, err error) {
	logger.Error(message, "path", c.FullPath(), "error", err)
	respondError(c, http.StatusInternalServerError, "internal", message)
}
