package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Request models
type CreateProjectRequest struct {
	Name        string                 `json:"name" validate:"required,min=1,max=255"`
	Description *string                `json:"description"`
	Status      string                 `json:"status" validate:"omitempty,project_status"`
	Priority    string                 `json:"priority" validate:"omitempty,priority"`
	Progress    *int                   `json:"progress" validate:"omitempty,min=0,max=100"`
	StartDate   *time.Time             `json:"startDate"`
	EndDate     *time.Time             `json:"endDate"`
	Budget      *decimal.Decimal       `json:"budget"`
	Color       string                 `json:"color" validate:"omitempty,hexcolor6"`
	Settings    map[string]interface{} `json:"settings"`
	OwnerID     string                 `json:"ownerId"`
}

// UpdateProjectRequest is a partial update; nil fields are left unchanged.
type UpdateProjectRequest struct {
	Name        *string                `json:"name" validate:"omitempty,min=1,max=255"`
	Description *string                `json:"description"`
	Status      *string                `json:"status" validate:"omitempty,project_status"`
	Priority    *string                `json:"priority" validate:"omitempty,priority"`
	Progress    *int                   `json:"progress" validate:"omitempty,min=0,max=100"`
	StartDate   *time.Time             `json:"startDate"`
	EndDate     *time.Time             `json:"endDate"`
	Budget      *decimal.Decimal       `json:"budget"`
	Color       *string                `json:"color" validate:"omitempty,hexcolor6"`
	IsArchived  *bool                  `json:"isArchived"`
	Settings    map[string]interface{} `json:"settings"`
}

// Response models
type ProjectResponse struct {
	ID          string                 `json:"id"`
	Name        string                 `json:"name"`
	Description *string                `json:"description"`
	Status      string                 `json:"status"`
	Priority    string                 `json:"priority"`
	Progress    int                    `json:"progress"`
	StartDate   *time.Time             `json:"startDate"`
	EndDate     *time.Time             `json:"endDate"`
	Budget      *decimal.Decimal       `json:"budget"`
	Color       string                 `json:"color"`
	IsArchived  bool                   `json:"isArchived"`
	Settings    map[string]interface{} `json:"settings"`
	OwnerID     string                 `json:"ownerId"`
	Owner       *UserSummary           `json:"owner,omitempty"`
	Tasks       int                    `json:"tasks"`
	Completed   int                    `json:"completed"`
	Team        []string               `json:"team"`
	CreatedAt   time.Time              `json:"createdAt"`
	UpdatedAt   time.Time              `json:"updatedAt"`
}
