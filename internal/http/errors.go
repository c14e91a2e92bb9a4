package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"user-admin/internal/backup"
	"user-admin/internal/service"
)

const (
	msgValidationFailed = "Validation failed"
	msgInternal         = "Internal server error"
	msgUserNotFound     = "User not found"
)

func writeError(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg, "message": msg})
}

func writeValidationError(c *gin.Context, details []string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
		"error":   msgValidationFailed,
		"message": msgValidationFailed,
		"details": details,
	})
}

// writeServiceError maps service errors onto the public error taxonomy.
// Anything unrecognised is logged and reported as a bare 500.
func (h *Handler) writeServiceError(c *gin.Context, err error) {
	var vErr *service.ValidationError
	switch {
	case errors.As(err, &vErr):
		writeValidationError(c, vErr.Details)
	case errors.Is(err, service.ErrConflict):
		writeError(c, http.StatusConflict, "User already exists")
	case errors.Is(err, service.ErrNotFound):
		writeError(c, http.StatusNotFound, msgUserNotFound)
	case errors.Is(err, service.ErrInvalidCredentials):
		writeError(c, http.StatusUnauthorized, "Invalid credentials")
	case errors.Is(err, backup.ErrInProgress):
		writeError(c, http.StatusConflict, "Backup already in progress")
	default:
		h.logger.WithError(err).WithFields(logrus.Fields{
			"method": c.Request.Method,
			"path":   c.Request.URL.Path,
		}).Error("request failed")
		writeError(c, http.StatusInternalServerError, msgInternal)
	}
}
