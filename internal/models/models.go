package models

import "time"

// ============================================
// Auth DTOs
// ============================================

type RegisterRequest struct {
	Name     string `json:"name" validate:"required,min=2,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type AuthResponse struct {
	User  UserResponse `json:"user"`
	Token string       `json:"token"`
}

// ============================================
// User DTOs
// ============================================

type UserResponse struct {
	ID          string                 `json:"id"`
	Email       string                 `json:"email"`
	Name        string                 `json:"name"`
	Avatar      *string                `json:"avatar,omitempty"`
	Role        string                 `json:"role"`
	IsActive    bool                   `json:"isActive"`
	LastLoginAt *time.Time             `json:"lastLoginAt"`
	Preferences map[string]interface{} `json:"preferences,omitempty"`
	CreatedAt   time.Time              `json:"createdAt"`
}

// UserSummary is the embedded form used inside projects and members.
type UserSummary struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// UpdatePreferencesRequest is merged key by key into the stored preferences.
type UpdatePreferencesRequest map[string]interface{}

type SetActiveRequest struct {
	IsActive *bool `json:"isActive" validate:"required"`
}

// ============================================
// Member DTOs
// ============================================

type ProjectMemberResponse struct {
	ID        string       `json:"id"`
	ProjectID string       `json:"projectId"`
	UserID    string       `json:"userId"`
	Role      string       `json:"role"`
	User      *UserSummary `json:"user,omitempty"`
	JoinedAt  time.Time    `json:"joinedAt"`
}

type AddProjectMemberRequest struct {
	UserID string `json:"userId" validate:"required"`
	Role   string `json:"role" validate:"omitempty,oneof=admin member viewer"`
}

// ============================================
// Activity DTOs
// ============================================

type ActivityProjectSummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type ActivityTaskSummary struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type ActivityResponse struct {
	ID          string                  `json:"id"`
	Type        string                  `json:"type"`
	Title       string                  `json:"title"`
	Description *string                 `json:"description"`
	Metadata    map[string]interface{}  `json:"metadata"`
	UserID      string                  `json:"userId"`
	User        string                  `json:"user"`
	ProjectID   *string                 `json:"projectId"`
	Project     *ActivityProjectSummary `json:"project,omitempty"`
	TaskID      *string                 `json:"taskId"`
	Task        *ActivityTaskSummary    `json:"task,omitempty"`
	Timestamp   time.Time               `json:"timestamp"`
}

type AddCommentRequest struct {
	ProjectID string `json:"projectId"`
	TaskID    string `json:"taskId"`
	Content   string `json:"content" validate:"required,max=5000"`
}

// CommentResponse is the comment_added payload.
type CommentResponse struct {
	ActivityID string    `json:"activityId"`
	UserID     string    `json:"userId"`
	User       string    `json:"user"`
	ProjectID  string    `json:"projectId,omitempty"`
	TaskID     string    `json:"taskId,omitempty"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"createdAt"`
}

// ============================================
// Analytics DTOs
// ============================================

type AnalyticsOverview struct {
	TotalProjects   int `json:"totalProjects"`
	ActiveProjects  int `json:"activeProjects"`
	TotalTasks      int `json:"totalTasks"`
	CompletedTasks  int `json:"completedTasks"`
	InProgressTasks int `json:"inProgressTasks"`
	TotalUsers      int `json:"totalUsers"`
	CompletionRate  int `json:"completionRate"`
}

// ChartData holds one value per day for the last seven days, oldest first.
type ChartData struct {
	Labels    []string `json:"labels"`
	Tasks     []int    `json:"tasks"`
	Completed []int    `json:"completed"`
}
