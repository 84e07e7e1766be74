package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Marga-Ghale/aurora-pm-backend/internal/api/middleware"
	"github.com/Marga-Ghale/aurora-pm-backend/internal/models"
	"github.com/Marga-Ghale/aurora-pm-backend/internal/service"
)

// ============================================
// Activity Handler
// ============================================

// ActivityHandler handles activity-related HTTP requests
type ActivityHandler struct {
	activitySvc service.ActivityService
}

// NewActivityHandler creates a new activity handler
func NewActivityHandler(activitySvc service.ActivityService) *ActivityHandler {
	return &ActivityHandler{activitySvc: activitySvc}
}

// List returns the global feed, newest first.
// GET /api/activities?limit=
func (h *ActivityHandler) List(c *gin.Context) {
	limit, ok := limitParam(c)
	if !ok {
		return
	}

	activities, err := h.activitySvc.ListRecent(c.Request.Context(), limit)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, activities)
}

// AddComment - POST /api/activities/comments
func (h *ActivityHandler) AddComment(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}

	var req models.AddCommentRequest
	if !bindJSON(c, &req) {
		return
	}

	comment, err := h.activitySvc.AddComment(c.Request.Context(), userID, &req)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, comment)
}
