package handlers

import (
	"bytes"
	"net/http"

	"eventease/internal/auth"
	"eventease/internal/services"

	"github.com/gin-gonic/gin"
)

// SetReminder snapshots the event onto the caller's reminder
func (h *Handler) SetReminder(c *gin.Context) {
	reminder, err := h.reminders.Set(c.Request.Context(), auth.CurrentUserID(c), c.Param("eventId"))
	if err != nil {
		h.handleServiceError(c, "Server error setting reminder", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Reminder set successfully", "reminder": reminder})
}

// RemoveReminder deletes the caller's reminder for an event
func (h *Handler) RemoveReminder(c *gin.Context) {
	if err := h.reminders.Remove(c.Request.Context(), auth.CurrentUserID(c), c.Param("eventId")); err != nil {
		h.handleServiceError(c, "Server error removing reminder", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Reminder removed successfully"})
}

// ListReminders returns the caller's reminders, soonest event first
func (h *Handler) ListReminders(c *gin.Context) {
	reminders, err := h.reminders.List(c.Request.Context(), auth.CurrentUserID(c))
	if err != nil {
		h.handleServiceError(c, "Server error fetching reminders", err)
		return
	}

	c.JSON(http.StatusOK, reminders)
}

// ReminderCalendar exports the caller's reminders as an iCalendar feed
func (h *Handler) ReminderCalendar(c *gin.Context) {
	reminders, err := h.reminders.List(c.Request.Context(), auth.CurrentUserID(c))
	if err != nil {
		h.handleServiceError(c, "Server error fetching reminders", err)
		return
	}

	var buf bytes.Buffer
	if err := services.WriteCalendar(&buf, services.BuildReminderCalendar(reminders, h.now())); err != nil {
		h.handleError(c, http.StatusInternalServerError, "Failed to build calendar", err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="eventease-reminders.ics"`)
	c.Data(http.StatusOK, "text/calendar; charset=utf-8", buf.Bytes())
}
