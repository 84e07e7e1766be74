package service

import (
	"github.com/shopspring/decimal"

	"github.com/Marga-Ghale/aurora-pm-backend/internal/models"
	"github.com/Marga-Ghale/aurora-pm-backend/internal/repository"
)

const (
	unassignedLabel  = "Unassigned"
	noProjectLabel   = "No Project"
	unknownUserLabel = "Unknown User"
)

func toUserResponse(u *repository.User) *models.UserResponse {
	return &models.UserResponse{
		ID:          u.ID,
		Email:       u.Email,
		Name:        u.Name,
		Avatar:      u.Avatar,
		Role:        u.Role,
		IsActive:    u.IsActive,
		LastLoginAt: u.LastLoginAt,
		Preferences: u.Preferences,
		CreatedAt:   u.CreatedAt,
	}
}

func toUserSummary(u *repository.User) *models.UserSummary {
	if u == nil {
		return nil
	}
	return &models.UserSummary{ID: u.ID, Name: u.Name, Email: u.Email}
}

func toProjectResponse(p *repository.Project, owner *repository.User, counts repository.TaskCounts, team []string) *models.ProjectResponse {
	if team == nil {
		team = []string{}
	}
	var budget *decimal.Decimal
	if p.Budget.Valid {
		b := p.Budget.Decimal
		budget = &b
	}
	return &models.ProjectResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Status:      p.Status,
		Priority:    p.Priority,
		Progress:    p.Progress,
		StartDate:   p.StartDate,
		EndDate:     p.EndDate,
		Budget:      budget,
		Color:       p.Color,
		IsArchived:  p.IsArchived,
		Settings:    p.Settings,
		OwnerID:     p.OwnerID,
		Owner:       toUserSummary(owner),
		Tasks:       counts.Total,
		Completed:   counts.Completed,
		Team:        team,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

// toTaskResponse denormalizes assignee and project names. Missing references
// fall back to the "Unassigned" and "No Project" labels.
func toTaskResponse(t *repository.Task, assignee *repository.User, project *repository.Project) *models.TaskResponse {
	resp := &models.TaskResponse{
		ID:           t.ID,
		Title:        t.Title,
		Description:  t.Description,
		Status:       t.Status,
		Priority:     t.Priority,
		Progress:     t.Progress,
		ActualHours:  t.ActualHours,
		CompletedAt:  t.CompletedAt,
		Tags:         []string(t.Tags),
		Metadata:     t.Metadata,
		ProjectID:    t.ProjectID,
		Project:      noProjectLabel,
		AssigneeID:   t.AssigneeID,
		Assignee:     unassignedLabel,
		CreatedByID:  t.CreatedByID,
		ParentTaskID: t.ParentTaskID,
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
	}
	if resp.Tags == nil {
		resp.Tags = []string{}
	}
	if t.EstimatedHours.Valid {
		h := t.EstimatedHours.Decimal
		resp.EstimatedHours = &h
	}
	if t.DueDate != nil {
		// drivers hand back timestamps in the server's zone; due dates are UTC calendar days
		d := t.DueDate.UTC().Format(models.DateLayout)
		resp.DueDate = &d
	}
	if assignee != nil {
		resp.Assignee = assignee.Name
	}
	if project != nil {
		resp.Project = project.Name
	}
	return resp
}

func toActivityResponse(a *repository.Activity, user *repository.User, project *repository.Project, task *repository.Task) *models.ActivityResponse {
	resp := &models.ActivityResponse{
		ID:          a.ID,
		Type:        a.Type,
		Title:       a.Title,
		Description: a.Description,
		Metadata:    a.Metadata,
		UserID:      a.UserID,
		User:        unknownUserLabel,
		ProjectID:   a.ProjectID,
		TaskID:      a.TaskID,
		Timestamp:   a.CreatedAt,
	}
	if resp.Metadata == nil {
		resp.Metadata = map[string]interface{}{}
	}
	if user != nil {
		resp.User = user.Name
	}
	if project != nil {
		resp.Project = &models.ActivityProjectSummary{ID: project.ID, Name: project.Name}
	}
	if task != nil {
		resp.Task = &models.ActivityTaskSummary{ID: task.ID, Title: task.Title}
	}
	return resp
}

func toMemberResponse(m *repository.ProjectMember, user *repository.User) *models.ProjectMemberResponse {
	return &models.ProjectMemberResponse{
		ID:        m.ID,
		ProjectID: m.ProjectID,
		UserID:    m.UserID,
		Role:      m.Role,
		User:      toUserSummary(user),
		JoinedAt:  m.JoinedAt,
	}
}

// ============================================
// Batch lookups
// ============================================

func usersByID(users []*repository.User) map[string]*repository.User {
	out := make(map[string]*repository.User, len(users))
	for _, u := range users {
		out[u.ID] = u
	}
	return out
}

func projectsByID(projects []*repository.Project) map[string]*repository.Project {
	out := make(map[string]*repository.Project, len(projects))
	for _, p := range projects {
		out[p.ID] = p
	}
	return out
}

func tasksByID(tasks []*repository.Task) map[string]*repository.Task {
	out := make(map[string]*repository.Task, len(tasks))
	for _, t := range tasks {
		out[t.ID] = t
	}
	return out
}

// idSet collects distinct non-empty ids.
type idSet struct {
	seen map[string]bool
	ids  []string
}

func (s *idSet) add(id *string) {
	if id == nil || *id == "" {
		return
	}
	if s.seen == nil {
		s.seen = make(map[string]bool)
	}
	if !s.seen[*id] {
		s.seen[*id] = true
		s.ids = append(s.ids, *id)
	}
}

func strPtr(s string) *string {
	return &s
}
