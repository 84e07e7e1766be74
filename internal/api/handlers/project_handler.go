package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Marga-Ghale/aurora-pm-backend/internal/api/middleware"
	"github.com/Marga-Ghale/aurora-pm-backend/internal/models"
	"github.com/Marga-Ghale/aurora-pm-backend/internal/service"
)

// ============================================
// Project Handler
// ============================================

type ProjectHandler struct {
	projectService  service.ProjectService
	activityService service.ActivityService
}

func NewProjectHandler(projectService service.ProjectService, activityService service.ActivityService) *ProjectHandler {
	return &ProjectHandler{
		projectService:  projectService,
		activityService: activityService,
	}
}

// List - List all projects, newest first
// GET /api/projects
func (h *ProjectHandler) List(c *gin.Context) {
	projects, err := h.projectService.List(c.Request.Context())
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, projects)
}

// Create - Create a new project
// POST /api/projects
func (h *ProjectHandler) Create(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}

	var req models.CreateProjectRequest
	if !bindJSON(c, &req) {
		return
	}

	project, err := h.projectService.Create(c.Request.Context(), userID, &req)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, project)
}

// Get - Get a project by ID
// GET /api/projects/:id
func (h *ProjectHandler) Get(c *gin.Context) {
	project, err := h.projectService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, project)
}

// Update - Update a project
// PUT /api/projects/:id
func (h *ProjectHandler) Update(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}

	var req models.UpdateProjectRequest
	if !bindJSON(c, &req) {
		return
	}

	project, err := h.projectService.Update(c.Request.Context(), userID, c.Param("id"), &req)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, project)
}

// Delete - Delete a project and its tasks
// DELETE /api/projects/:id
func (h *ProjectHandler) Delete(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}

	if err := h.projectService.Delete(c.Request.Context(), userID, c.Param("id")); err != nil {
		handleServiceError(c, err)
		return
	}
	deleted(c, "Project")
}

// ListMembers - GET /api/projects/:id/members
func (h *ProjectHandler) ListMembers(c *gin.Context) {
	members, err := h.projectService.ListMembers(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, members)
}

// AddMember - POST /api/projects/:id/members
func (h *ProjectHandler) AddMember(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}

	var req models.AddProjectMemberRequest
	if !bindJSON(c, &req) {
		return
	}

	member, err := h.projectService.AddMember(c.Request.Context(), userID, c.Param("id"), &req)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, member)
}

// RemoveMember - DELETE /api/projects/:id/members/:userId
func (h *ProjectHandler) RemoveMember(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}

	if err := h.projectService.RemoveMember(c.Request.Context(), userID, c.Param("id"), c.Param("userId")); err != nil {
		handleServiceError(c, err)
		return
	}
	deleted(c, "Member")
}

// Activities - GET /api/projects/:id/activities
func (h *ProjectHandler) Activities(c *gin.Context) {
	limit, ok := limitParam(c)
	if !ok {
		return
	}

	activities, err := h.activityService.ListByProject(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, activities)
}
