package types

import (
	"regexp"
	"slices"
)

// Task Status values
const (
	StatusTodo       = "todo"
	StatusInProgress = "in-progress"
	StatusReview     = "review"
	StatusDone       = "done"
	StatusCancelled  = "cancelled"
)

// Project Status values
const (
	ProjectPlanning  = "planning"
	ProjectActive    = "active"
	ProjectOnHold    = "on-hold"
	ProjectCompleted = "completed"
	ProjectCancelled = "cancelled"
)

// Priority values (shared by projects and tasks)
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// User roles
const (
	UserRoleAdmin   = "admin"
	UserRoleManager = "manager"
	UserRoleMember  = "member"
)

// Project member roles
const (
	RoleOwner  = "owner"
	RoleAdmin  = "admin"
	RoleMember = "member"
	RoleViewer = "viewer"
)

// Activity types
const (
	ActivityTaskCreated      = "task_created"
	ActivityTaskUpdated      = "task_updated"
	ActivityTaskCompleted    = "task_completed"
	ActivityTaskDeleted      = "task_deleted"
	ActivityProjectCreated   = "project_created"
	ActivityProjectUpdated   = "project_updated"
	ActivityProjectCompleted = "project_completed"
	ActivityProjectDeleted   = "project_deleted"
	ActivityCommentAdded     = "comment_added"
	ActivityUserJoined       = "user_joined"
	ActivityUserLeft         = "user_left"
	ActivityMilestoneReached = "milestone_reached"
	ActivityFileUploaded     = "file_uploaded"
	ActivityStatusChanged    = "status_changed"
)

// Defaults
const (
	DefaultProjectColor = "#3B82F6"
	MaxActivityFeed     = 50
)

var ValidTaskStatuses = []string{
	StatusTodo, StatusInProgress, StatusReview, StatusDone, StatusCancelled,
}

var ValidProjectStatuses = []string{
	ProjectPlanning, ProjectActive, ProjectOnHold, ProjectCompleted, ProjectCancelled,
}

var ValidPriorities = []string{
	PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent,
}

var ValidUserRoles = []string{
	UserRoleAdmin, UserRoleManager, UserRoleMember,
}

var ValidMemberRoles = []string{
	RoleOwner, RoleAdmin, RoleMember, RoleViewer,
}

var ValidActivityTypes = []string{
	ActivityTaskCreated, ActivityTaskUpdated, ActivityTaskCompleted, ActivityTaskDeleted,
	ActivityProjectCreated, ActivityProjectUpdated, ActivityProjectCompleted, ActivityProjectDeleted,
	ActivityCommentAdded, ActivityUserJoined, ActivityUserLeft, ActivityMilestoneReached,
	ActivityFileUploaded, ActivityStatusChanged,
}

var colorPattern = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

func IsValidTaskStatus(status string) bool {
	return slices.Contains(ValidTaskStatuses, status)
}

func IsValidProjectStatus(status string) bool {
	return slices.Contains(ValidProjectStatuses, status)
}

func IsValidPriority(priority string) bool {
	return slices.Contains(ValidPriorities, priority)
}

func IsValidUserRole(role string) bool {
	return slices.Contains(ValidUserRoles, role)
}

func IsValidMemberRole(role string) bool {
	return slices.Contains(ValidMemberRoles, role)
}

func IsValidActivityType(activityType string) bool {
	return slices.Contains(ValidActivityTypes, activityType)
}

// IsValidColor reports whether c is a six-digit hex color such as #3B82F6 (case-insensitive).
func IsValidColor(c string) bool {
	return colorPattern.MatchString(c)
}
