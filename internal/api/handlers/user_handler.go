package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Marga-Ghale/aurora-pm-backend/internal/api/middleware"
	"github.com/Marga-Ghale/aurora-pm-backend/internal/apperrors"
	"github.com/Marga-Ghale/aurora-pm-backend/internal/models"
	"github.com/Marga-Ghale/aurora-pm-backend/internal/service"
)

// ============================================
// User Handler
// ============================================

type UserHandler struct {
	userService service.UserService
}

func NewUserHandler(userService service.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// List - GET /api/users
func (h *UserHandler) List(c *gin.Context) {
	users, err := h.userService.List(c.Request.Context())
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

// Get - GET /api/users/:id
func (h *UserHandler) Get(c *gin.Context) {
	user, err := h.userService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// UpdatePreferences - PUT /api/users/me/preferences
func (h *UserHandler) UpdatePreferences(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}

	var req models.UpdatePreferencesRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.userService.UpdatePreferences(c.Request.Context(), userID, req)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// SetActive - PATCH /api/users/:id/active
func (h *UserHandler) SetActive(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}

	var req models.SetActiveRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.IsActive == nil {
		apperrors.BadRequestWithDetails(c, "isActive: is required", gin.H{"field": "isActive"})
		return
	}

	user, err := h.userService.SetActive(c.Request.Context(), userID, c.Param("id"), *req.IsActive)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}
