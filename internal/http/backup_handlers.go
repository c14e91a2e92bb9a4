package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h *Handler) createBackup(c *gin.Context) {
	if h.backups == nil {
		writeError(c, http.StatusServiceUnavailable, "Backups not configured")
		return
	}

	b, err := h.backups.Run(c.Request.Context())
	if h.metrics != nil {
		h.metrics.RecordBackup(err)
	}
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, b)
}

func (h *Handler) listBackups(c *gin.Context) {
	if h.backups == nil {
		writeError(c, http.StatusServiceUnavailable, "Backups not configured")
		return
	}

	backups, err := h.backups.List(c.Request.Context())
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, backups)
}
