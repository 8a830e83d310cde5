package handlers

import (
	"net/http"

	"eventease/internal/auth"

	"github.com/gin-gonic/gin"
)

// RSVP registers the caller for an event
func (h *Handler) RSVP(c *gin.Context) {
	rsvp, err := h.reminders.RSVP(c.Request.Context(), auth.CurrentUserID(c), c.Param("id"))
	if err != nil {
		h.handleServiceError(c, "Server error saving RSVP", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "RSVP successful", "rsvp": rsvp})
}

// CancelRSVP withdraws the caller's RSVP. Any reminder for the event goes with it.
func (h *Handler) CancelRSVP(c *gin.Context) {
	if err := h.reminders.CancelRSVP(c.Request.Context(), auth.CurrentUserID(c), c.Param("id")); err != nil {
		h.handleServiceError(c, "Server error cancelling RSVP", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "RSVP cancelled"})
}
