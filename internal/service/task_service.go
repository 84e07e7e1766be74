package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/Marga-Ghale/aurora-pm-backend/internal/models"
	"github.com/Marga-Ghale/aurora-pm-backend/internal/repository"
	"github.com/Marga-Ghale/aurora-pm-backend/internal/types"
)

// maxTaskDepth bounds the parent walk used for cycle detection.
const maxTaskDepth = 64

// ============================================
// Task Service
// ============================================

type TaskService interface {
	Create(ctx context.Context, actorID string, req *models.CreateTaskRequest) (*models.TaskResponse, error)
	List(ctx context.Context, filter repository.TaskFilter) ([]*models.TaskResponse, error)
	Get(ctx context.Context, id string) (*models.TaskResponse, error)
	ListSubtasks(ctx context.Context, id string) ([]*models.TaskResponse, error)
	Update(ctx context.Context, actorID, id string, req *models.UpdateTaskRequest) (*models.TaskResponse, error)
	Delete(ctx context.Context, actorID, id string) error
}

type taskService struct {
	repos       *repository.Repositories
	recorder    ActivityRecorder
	broadcaster Broadcaster
	analytics   cacheInvalidator
}

func NewTaskService(repos *repository.Repositories, recorder ActivityRecorder, broadcaster Broadcaster, analytics cacheInvalidator) TaskService {
	return &taskService{repos: repos, recorder: recorder, broadcaster: broadcaster, analytics: analytics}
}

func (s *taskService) Create(ctx context.Context, actorID string, req *models.CreateTaskRequest) (*models.TaskResponse, error) {
	req.Title = strings.TrimSpace(req.Title)
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	if err := checkAmount("estimatedHours", req.EstimatedHours, maxHours); err != nil {
		return nil, err
	}
	dueDate, err := parseDueDate(req.DueDate)
	if err != nil {
		return nil, err
	}

	project, err := s.repos.ProjectRepo.FindByID(ctx, req.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to load project: %w", err)
	}
	if project == nil {
		return nil, invalid("projectId", "project does not exist")
	}

	assignee, err := s.resolveAssignee(ctx, req.AssigneeID)
	if err != nil {
		return nil, err
	}

	task := &repository.Task{
		Title:       req.Title,
		Description: req.Description,
		Status:      orDefault(req.Status, types.StatusTodo),
		Priority:    orDefault(req.Priority, types.PriorityMedium),
		ActualHours: decimal.Zero,
		DueDate:     dueDate,
		Tags:        pq.StringArray(normalizeTags(req.Tags)),
		Metadata:    repository.JSONMap(req.Metadata),
		ProjectID:   project.ID,
		CreatedByID: actorID,
	}
	if task.Metadata == nil {
		task.Metadata = repository.JSONMap{}
	}
	if req.Progress != nil {
		task.Progress = *req.Progress
	}
	if req.EstimatedHours != nil {
		task.EstimatedHours = decimal.NewNullDecimal(*req.EstimatedHours)
	}
	if assignee != nil {
		task.AssigneeID = strPtr(assignee.ID)
	}
	if req.ParentTaskID != nil && *req.ParentTaskID != "" {
		if err := s.checkParent(ctx, "", project.ID, *req.ParentTaskID); err != nil {
			return nil, err
		}
		task.ParentTaskID = strPtr(*req.ParentTaskID)
	}

	if err := s.repos.TaskRepo.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}
	s.analytics.Invalidate(ctx)

	resp := toTaskResponse(task, assignee, project)
	s.broadcaster.BroadcastTaskCreated(resp)

	recordBestEffort(ctx, s.recorder, ActivityInput{
		Type:        types.ActivityTaskCreated,
		Title:       "New task created",
		Description: fmt.Sprintf("Task %q was created", task.Title),
		UserID:      actorID,
		ProjectID:   task.ProjectID,
		TaskID:      task.ID,
	})

	return resp, nil
}

func (s *taskService) List(ctx context.Context, filter repository.TaskFilter) ([]*models.TaskResponse, error) {
	if filter.Status != "" && !types.IsValidTaskStatus(filter.Status) {
		return nil, invalid("status", "must be one of: "+strings.Join(types.ValidTaskStatuses, ", "))
	}
	tasks, err := s.repos.TaskRepo.FindAll(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	return s.responses(ctx, tasks)
}

func (s *taskService) Get(ctx context.Context, id string) (*models.TaskResponse, error) {
	task, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	resp, err := s.responses(ctx, []*repository.Task{task})
	if err != nil {
		return nil, err
	}
	return resp[0], nil
}

func (s *taskService) ListSubtasks(ctx context.Context, id string) ([]*models.TaskResponse, error) {
	if _, err := s.find(ctx, id); err != nil {
		return nil, err
	}
	tasks, err := s.repos.TaskRepo.FindSubtasks(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list subtasks: %w", err)
	}
	return s.responses(ctx, tasks)
}

// Update applies only the supplied fields. Concurrent updates touching
// different fields both land; for the same field the last write wins.
func (s *taskService) Update(ctx context.Context, actorID, id string, req *models.UpdateTaskRequest) (*models.TaskResponse, error) {
	if req.Title != nil {
		trimmed := strings.TrimSpace(*req.Title)
		req.Title = &trimmed
	}
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	if err := checkAmount("estimatedHours", req.EstimatedHours, maxHours); err != nil {
		return nil, err
	}
	if err := checkAmount("actualHours", req.ActualHours, maxHours); err != nil {
		return nil, err
	}
	dueDate, err := parseDueDate(req.DueDate)
	if err != nil {
		return nil, err
	}

	if _, err := s.resolveAssignee(ctx, req.AssigneeID); err != nil {
		return nil, err
	}
	if req.ParentTaskID != nil && *req.ParentTaskID != "" {
		current, err := s.find(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := s.checkParent(ctx, id, current.ProjectID, *req.ParentTaskID); err != nil {
			return nil, err
		}
	}

	patch := &repository.TaskPatch{
		Title:          req.Title,
		Description:    req.Description,
		Status:         req.Status,
		Priority:       req.Priority,
		Progress:       req.Progress,
		EstimatedHours: req.EstimatedHours,
		ActualHours:    req.ActualHours,
		DueDate:        dueDate,
		AssigneeID:     req.AssigneeID,
		ParentTaskID:   req.ParentTaskID,
	}
	if req.Tags != nil {
		tags := normalizeTags(*req.Tags)
		patch.Tags = &tags
	}
	if req.Metadata != nil {
		patch.Metadata = repository.JSONMap(req.Metadata)
	}

	result, err := s.repos.TaskRepo.Update(ctx, id, patch)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to update task: %w", err)
	}
	task := result.Task
	s.analytics.Invalidate(ctx)

	resp, err := s.responses(ctx, []*repository.Task{task})
	if err != nil {
		return nil, err
	}
	s.broadcaster.BroadcastTaskUpdated(resp[0])

	if task.Status != result.PreviousStatus {
		in := ActivityInput{
			Type:        types.ActivityTaskUpdated,
			Title:       "Task updated",
			Description: fmt.Sprintf("Task %q status changed to %s", task.Title, task.Status),
			Metadata:    map[string]interface{}{"from": result.PreviousStatus, "to": task.Status},
			UserID:      actorID,
			ProjectID:   task.ProjectID,
			TaskID:      task.ID,
		}
		if task.Status == types.StatusDone {
			in.Type = types.ActivityTaskCompleted
			in.Title = "Task completed"
			in.Description = fmt.Sprintf("Task %q was completed", task.Title)
		}
		recordBestEffort(ctx, s.recorder, in)
	}

	return resp[0], nil
}

func (s *taskService) Delete(ctx context.Context, actorID, id string) error {
	task, err := s.find(ctx, id)
	if err != nil {
		return err
	}

	removed, err := s.repos.TaskRepo.Delete(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete task: %w", err)
	}
	s.analytics.Invalidate(ctx)

	// subtasks share the parent's project and go with it
	for _, tid := range removed {
		s.broadcaster.BroadcastTaskDeleted(task.ProjectID, tid)
	}
	recordBestEffort(ctx, s.recorder, ActivityInput{
		Type:        types.ActivityTaskDeleted,
		Title:       "Task deleted",
		Description: fmt.Sprintf("Task %q was deleted", task.Title),
		Metadata:    map[string]interface{}{"title": task.Title},
		UserID:      actorID,
		ProjectID:   task.ProjectID,
		TaskID:      task.ID,
	})
	return nil
}

// ============================================
// Helpers
// ============================================

func (s *taskService) find(ctx context.Context, id string) (*repository.Task, error) {
	task, err := s.repos.TaskRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load task: %w", err)
	}
	if task == nil {
		return nil, ErrNotFound
	}
	return task, nil
}

// resolveAssignee returns nil for an absent or empty id (which clears the assignee).
func (s *taskService) resolveAssignee(ctx context.Context, id *string) (*repository.User, error) {
	if id == nil || *id == "" {
		return nil, nil
	}
	user, err := s.repos.UserRepo.FindByID(ctx, *id)
	if err != nil {
		return nil, fmt.Errorf("failed to load assignee: %w", err)
	}
	if user == nil {
		return nil, invalid("assigneeId", "user does not exist")
	}
	return user, nil
}

// checkParent requires the parent to exist in the same project and not to be
// the task itself or one of its descendants.
func (s *taskService) checkParent(ctx context.Context, taskID, projectID, parentID string) error {
	if parentID == taskID {
		return invalid("parentTaskId", "a task cannot be its own parent")
	}
	parent, err := s.repos.TaskRepo.FindByID(ctx, parentID)
	if err != nil {
		return fmt.Errorf("failed to load parent task: %w", err)
	}
	if parent == nil {
		return invalid("parentTaskId", "parent task does not exist")
	}
	if parent.ProjectID != projectID {
		return invalid("parentTaskId", "parent task belongs to another project")
	}
	if taskID == "" {
		return nil
	}

	cursor := parent
	for depth := 0; cursor.ParentTaskID != nil && depth < maxTaskDepth; depth++ {
		if *cursor.ParentTaskID == taskID {
			return invalid("parentTaskId", "a task cannot be nested under its own subtask")
		}
		next, err := s.repos.TaskRepo.FindByID(ctx, *cursor.ParentTaskID)
		if err != nil {
			return fmt.Errorf("failed to load parent task: %w", err)
		}
		if next == nil {
			break
		}
		cursor = next
	}
	return nil
}

// responses joins assignee and project names with one query each.
func (s *taskService) responses(ctx context.Context, tasks []*repository.Task) ([]*models.TaskResponse, error) {
	var assigneeIDs, projectIDs idSet
	for _, t := range tasks {
		assigneeIDs.add(t.AssigneeID)
		pid := t.ProjectID
		projectIDs.add(&pid)
	}

	users, err := s.repos.UserRepo.FindByIDs(ctx, assigneeIDs.ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load assignees: %w", err)
	}
	projects, err := s.repos.ProjectRepo.FindByIDs(ctx, projectIDs.ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load projects: %w", err)
	}

	userMap, projectMap := usersByID(users), projectsByID(projects)
	out := make([]*models.TaskResponse, 0, len(tasks))
	for _, t := range tasks {
		var assignee *repository.User
		if t.AssigneeID != nil {
			assignee = userMap[*t.AssigneeID]
		}
		out = append(out, toTaskResponse(t, assignee, projectMap[t.ProjectID]))
	}
	return out, nil
}

// parseDueDate accepts YYYY-MM-DD or RFC 3339 and returns the date at UTC midnight.
func parseDueDate(value *string) (*time.Time, error) {
	if value == nil {
		return nil, nil
	}
	v := strings.TrimSpace(*value)
	if t, err := time.Parse(models.DateLayout, v); err == nil {
		return &t, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		d := t.UTC().Truncate(24 * time.Hour)
		return &d, nil
	}
	return nil, invalid("dueDate", "must be a date in YYYY-MM-DD format")
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	return out
}
