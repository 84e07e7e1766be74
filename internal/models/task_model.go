package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the wire format of task due dates.
const DateLayout = "2006-01-02"

type CreateTaskRequest struct {
	Title          string                 `json:"title" validate:"required,min=1,max=255"`
	Description    *string                `json:"description"`
	Status         string                 `json:"status" validate:"omitempty,task_status"`
	Priority       string                 `json:"priority" validate:"omitempty,priority"`
	Progress       *int                   `json:"progress" validate:"omitempty,min=0,max=100"`
	EstimatedHours *decimal.Decimal       `json:"estimatedHours"`
	DueDate        *string                `json:"dueDate"`
	Tags           []string               `json:"tags" validate:"omitempty,dive,min=1,max=50"`
	Metadata       map[string]interface{} `json:"metadata"`
	ProjectID      string                 `json:"projectId" validate:"required"`
	AssigneeID     *string                `json:"assigneeId"`
	ParentTaskID   *string                `json:"parentTaskId"`
}

// UpdateTaskRequest is a partial update; nil fields are left unchanged.
// An empty assigneeId or parentTaskId clears the reference.
type UpdateTaskRequest struct {
	Title          *string                `json:"title" validate:"omitempty,min=1,max=255"`
	Description    *string                `json:"description"`
	Status         *string                `json:"status" validate:"omitempty,task_status"`
	Priority       *string                `json:"priority" validate:"omitempty,priority"`
	Progress       *int                   `json:"progress" validate:"omitempty,min=0,max=100"`
	EstimatedHours *decimal.Decimal       `json:"estimatedHours"`
	ActualHours    *decimal.Decimal       `json:"actualHours"`
	DueDate        *string                `json:"dueDate"`
	Tags           *[]string              `json:"tags" validate:"omitempty,dive,min=1,max=50"`
	Metadata       map[string]interface{} `json:"metadata"`
	AssigneeID     *string                `json:"assigneeId"`
	ParentTaskID   *string                `json:"parentTaskId"`
}

type TaskResponse struct {
	ID             string                 `json:"id"`
	Title          string                 `json:"title"`
	Description    *string                `json:"description"`
	Status         string                 `json:"status"`
	Priority       string                 `json:"priority"`
	Progress       int                    `json:"progress"`
	EstimatedHours *decimal.Decimal       `json:"estimatedHours"`
	ActualHours    decimal.Decimal        `json:"actualHours"`
	DueDate        *string                `json:"dueDate"`
	CompletedAt    *time.Time             `json:"completedAt"`
	Tags           []string               `json:"tags"`
	Metadata       map[string]interface{} `json:"metadata"`
	ProjectID      string                 `json:"projectId"`
	Project        string                 `json:"project"`
	AssigneeID     *string                `json:"assigneeId"`
	Assignee       string                 `json:"assignee"`
	CreatedByID    string                 `json:"createdById"`
	ParentTaskID   *string                `json:"parentTaskId"`
	CreatedAt      time.Time              `json:"createdAt"`
	UpdatedAt      time.Time              `json:"updatedAt"`
}

// TaskDeleted is the task_deleted payload.
type TaskDeleted struct {
	ID        string `json:"id"`
	ProjectID string `json:"projectId"`
}
