package handlers

import (
	"errors"
	"net/http"

	"eventease/internal/services"

	"github.com/gin-gonic/gin"
)

// TriggerScan runs a reminder scan immediately
func (h *Handler) TriggerScan(c *gin.Context) {
	results, err := h.scans.Trigger(c.Request.Context())
	if errors.Is(err, services.ErrScanInProgress) {
		h.handleError(c, http.StatusConflict, "A reminder scan is already in progress", err)
		return
	}
	if errors.Is(err, services.ErrSchedulerStopped) {
		h.handleError(c, http.StatusServiceUnavailable, "Reminder scheduler is shutting down", err)
		return
	}

	response := gin.H{"results": results}
	if err != nil {
		// Milestones that succeeded still report their counts
		response["error"] = err.Error()
		h.log.Warn("Manual reminder scan finished with errors")
	}
	c.JSON(http.StatusOK, response)
}

// ScanStatus reports the scheduler's last run
func (h *Handler) ScanStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.scans.Status())
}
