package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Marga-Ghale/aurora-pm-backend/internal/api/middleware"
	"github.com/Marga-Ghale/aurora-pm-backend/internal/models"
	"github.com/Marga-Ghale/aurora-pm-backend/internal/repository"
	"github.com/Marga-Ghale/aurora-pm-backend/internal/service"
)

// ============================================
// Task Handler
// ============================================

type TaskHandler struct {
	taskService service.TaskService
}

func NewTaskHandler(taskService service.TaskService) *TaskHandler {
	return &TaskHandler{taskService: taskService}
}

// List - List tasks, optionally filtered
// GET /api/tasks?projectId=&assigneeId=&status=
func (h *TaskHandler) List(c *gin.Context) {
	filter := repository.TaskFilter{
		ProjectID:  c.Query("projectId"),
		AssigneeID: c.Query("assigneeId"),
		Status:     c.Query("status"),
	}

	tasks, err := h.taskService.List(c.Request.Context(), filter)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, tasks)
}

// Create - Create a new task
// POST /api/tasks
func (h *TaskHandler) Create(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}

	var req models.CreateTaskRequest
	if !bindJSON(c, &req) {
		return
	}

	task, err := h.taskService.Create(c.Request.Context(), userID, &req)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// Get - GET /api/tasks/:id
func (h *TaskHandler) Get(c *gin.Context) {
	task, err := h.taskService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// ListSubtasks - GET /api/tasks/:id/subtasks
func (h *TaskHandler) ListSubtasks(c *gin.Context) {
	tasks, err := h.taskService.ListSubtasks(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, tasks)
}

// Update - Partially update a task
// PUT /api/tasks/:id
func (h *TaskHandler) Update(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}

	var req models.UpdateTaskRequest
	if !bindJSON(c, &req) {
		return
	}

	task, err := h.taskService.Update(c.Request.Context(), userID, c.Param("id"), &req)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// Delete - DELETE /api/tasks/:id
func (h *TaskHandler) Delete(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}

	if err := h.taskService.Delete(c.Request.Context(), userID, c.Param("id")); err != nil {
		handleServiceError(c, err)
		return
	}
	deleted(c, "Task")
}
