package handlers

import (
	"errors"
	"net/http"

	"eventease/internal/auth"
	"eventease/internal/store"

	"github.com/gin-gonic/gin"
)

// GetCurrentUser returns the currently authenticated user
func (h *Handler) GetCurrentUser(c *gin.Context) {
	userID := auth.CurrentUserID(c)

	user, err := h.users.User(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			h.handleError(c, http.StatusNotFound, "user not found", err)
			return
		}
		h.handleError(c, http.StatusInternalServerError, "database error", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":    user.ID,
		"name":  user.Name,
		"email": user.Email,
		"role":  user.Role,
	})
}
