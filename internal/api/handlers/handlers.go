package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Marga-Ghale/aurora-pm-backend/internal/apperrors"
	"github.com/Marga-Ghale/aurora-pm-backend/internal/logger"
	"github.com/Marga-Ghale/aurora-pm-backend/internal/service"
)

// Handlers contains all HTTP handlers
type Handlers struct {
	Auth      *AuthHandler
	User      *UserHandler
	Project   *ProjectHandler
	Task      *TaskHandler
	Activity  *ActivityHandler
	Analytics *AnalyticsHandler
}

// NewHandlers creates all handlers
func NewHandlers(services *service.Services) *Handlers {
	return &Handlers{
		Auth:      NewAuthHandler(services.Auth, services.User),
		User:      NewUserHandler(services.User),
		Project:   NewProjectHandler(services.Project, services.Activity),
		Task:      NewTaskHandler(services.Task),
		Activity:  NewActivityHandler(services.Activity),
		Analytics: NewAnalyticsHandler(services.Analytics),
	}
}

// handleServiceError maps service errors onto the API error envelope.
func handleServiceError(c *gin.Context, err error) {
	_ = c.Error(err)

	if ve, ok := service.IsValidation(err); ok {
		apperrors.BadRequestWithDetails(c, ve.Error(), gin.H{"field": ve.Field})
		return
	}

	switch {
	case errors.Is(err, service.ErrNotFound):
		apperrors.NotFound(c, "")
	case errors.Is(err, service.ErrInvalidCredentials):
		apperrors.InvalidCredentials(c)
	case errors.Is(err, service.ErrInvalidToken), errors.Is(err, service.ErrUnauthorized):
		apperrors.Unauthorized(c, "")
	case errors.Is(err, service.ErrForbidden):
		apperrors.Forbidden(c, "")
	case errors.Is(err, service.ErrUserExists):
		apperrors.Conflict(c, "Email already registered")
	case errors.Is(err, service.ErrConflict):
		apperrors.Conflict(c, "")
	case errors.Is(err, service.ErrOwnerMembership):
		apperrors.BadRequest(c, "The project owner cannot be removed")
	case errors.Is(err, service.ErrInvalidValue):
		apperrors.BadRequest(c, "A value is malformed or out of range")
	case errors.Is(err, context.DeadlineExceeded):
		apperrors.GatewayTimeout(c)
	default:
		log := logger.Component("http")
		log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("Request failed")
		apperrors.InternalError(c, "")
	}
}

// bindJSON decodes the body and answers 400 on malformed input.
func bindJSON(c *gin.Context, dest interface{}) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		apperrors.BadRequest(c, "Invalid request body")
		return false
	}
	return true
}

// limitParam reads ?limit; absent means 0 (the service default).
func limitParam(c *gin.Context) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return 0, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		apperrors.BadRequestWithDetails(c, "limit must be a non-negative integer", gin.H{"field": "limit"})
		return 0, false
	}
	return limit, true
}

func deleted(c *gin.Context, what string) {
	c.JSON(http.StatusOK, gin.H{"message": what + " deleted successfully"})
}
