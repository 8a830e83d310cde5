package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"eventease/internal/auth"
	"eventease/internal/models"
	"eventease/internal/services"
	"eventease/internal/store"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ScanTrigger runs reminder scans on demand
type ScanTrigger interface {
	Trigger(ctx context.Context) ([]services.ScanResult, error)
	Status() services.SchedulerStatus
}

// UserLookup loads the caller's account
type UserLookup interface {
	User(ctx context.Context, userID string) (models.User, error)
}

// Handler serves the reminder API
type Handler struct {
	reminders *services.ReminderService
	users     UserLookup
	scans     ScanTrigger
	log       *zap.Logger
	now       func() time.Time
}

func New(reminders *services.ReminderService, users UserLookup, scans ScanTrigger, log *zap.Logger) *Handler {
	return &Handler{
		reminders: reminders,
		users:     users,
		scans:     scans,
		log:       log,
		now:       time.Now,
	}
}

// RegisterRoutes mounts every route on router. Everything under /api except
// the health check requires a bearer token.
func (h *Handler) RegisterRoutes(router gin.IRouter, tokens *auth.TokenManager) {
	router.GET("/", HomeHandler)
	router.GET("/health", HealthHandler)

	api := router.Group("/api")
	api.GET("/health", HealthHandler)

	protected := api.Group("")
	protected.Use(auth.AuthMiddleware(tokens))
	{
		protected.GET("/me", h.GetCurrentUser)

		protected.GET("/reminders", h.ListReminders)
		protected.GET("/reminders/calendar.ics", h.ReminderCalendar)
		protected.POST("/reminders/:eventId", h.SetReminder)
		protected.DELETE("/reminders/:eventId", h.RemoveReminder)

		protected.POST("/events/:id/rsvp", h.RSVP)
		protected.DELETE("/events/:id/rsvp", h.CancelRSVP)

		admin := protected.Group("/admin")
		admin.Use(auth.RequireRole(models.OrganizerRole))
		admin.POST("/reminders/scan", h.TriggerScan)
		admin.GET("/reminders/scan", h.ScanStatus)
	}
}

// handleError provides a consistent way to handle and log errors
func (h *Handler) handleError(c *gin.Context, status int, message string, err error) {
	if status >= http.StatusInternalServerError {
		h.log.Error(message, zap.Error(err), zap.String("path", c.Request.URL.Path))
	} else {
		h.log.Debug(message, zap.Error(err), zap.String("path", c.Request.URL.Path))
	}
	_ = c.Error(err)
	c.JSON(status, gin.H{"error": message})
}

// handleServiceError maps domain errors to HTTP statuses
func (h *Handler) handleServiceError(c *gin.Context, fallback string, err error) {
	switch {
	case errors.Is(err, store.ErrEventNotFound):
		h.handleError(c, http.StatusNotFound, "Event not found", err)
	case errors.Is(err, services.ErrRSVPRequired):
		h.handleError(c, http.StatusBadRequest, "You must RSVP to the event before setting a reminder", err)
	case errors.Is(err, store.ErrReminderNotFound):
		h.handleError(c, http.StatusNotFound, "Reminder not found", err)
	case errors.Is(err, store.ErrRSVPExists):
		h.handleError(c, http.StatusConflict, "You have already RSVP'd to this event", err)
	case errors.Is(err, store.ErrRSVPNotFound):
		h.handleError(c, http.StatusNotFound, "You have not RSVP'd to this event", err)
	case errors.Is(err, services.ErrInvalidEventSchedule), errors.Is(err, store.ErrInvalidSnapshot):
		h.handleError(c, http.StatusUnprocessableEntity, "Event has no valid date and time", err)
	default:
		h.handleError(c, http.StatusInternalServerError, fallback, err)
	}
}

// HomeHandler handles requests to the root path "/"
func HomeHandler(c *gin.Context) {
	c.String(http.StatusOK, "Welcome to EventEase!")
}

// HealthHandler is a simple health check endpoint
func HealthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "OK"})
}
