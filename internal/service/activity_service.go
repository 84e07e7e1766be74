package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/Marga-Ghale/aurora-pm-backend/internal/logger"
	"github.com/Marga-Ghale/aurora-pm-backend/internal/metrics"
	"github.com/Marga-Ghale/aurora-pm-backend/internal/models"
	"github.com/Marga-Ghale/aurora-pm-backend/internal/repository"
	"github.com/Marga-Ghale/aurora-pm-backend/internal/types"
)

// ============================================
// Activity Recorder
// ============================================

// ActivityInput describes one log entry. UserID is the acting user.
type ActivityInput struct {
	Type        string
	Title       string
	Description string
	Metadata    map[string]interface{}
	UserID      string
	ProjectID   string
	TaskID      string
}

// ActivityRecorder appends to the activity log and announces the entry.
// Entries are never modified after Record returns.
type ActivityRecorder interface {
	Record(ctx context.Context, in ActivityInput) (*models.ActivityResponse, error)
}

type activityRecorder struct {
	repos       *repository.Repositories
	broadcaster Broadcaster
}

func NewActivityRecorder(repos *repository.Repositories, broadcaster Broadcaster) ActivityRecorder {
	return &activityRecorder{repos: repos, broadcaster: broadcaster}
}

func (r *activityRecorder) Record(ctx context.Context, in ActivityInput) (*models.ActivityResponse, error) {
	if !types.IsValidActivityType(in.Type) {
		return nil, invalid("type", fmt.Sprintf("unknown activity type %q", in.Type))
	}
	if in.UserID == "" {
		return nil, invalid("userId", "is required")
	}
	if strings.TrimSpace(in.Title) == "" {
		return nil, invalid("title", "is required")
	}

	activity := &repository.Activity{
		Type:     in.Type,
		Title:    in.Title,
		Metadata: repository.JSONMap(in.Metadata),
		UserID:   in.UserID,
	}
	if activity.Metadata == nil {
		activity.Metadata = repository.JSONMap{}
	}
	if in.Description != "" {
		activity.Description = strPtr(in.Description)
	}
	if in.ProjectID != "" {
		activity.ProjectID = strPtr(in.ProjectID)
	}
	if in.TaskID != "" {
		activity.TaskID = strPtr(in.TaskID)
	}

	if err := r.repos.ActivityRepo.Create(ctx, activity); err != nil {
		return nil, fmt.Errorf("failed to record activity: %w", err)
	}
	metrics.ActivitiesRecorded.WithLabelValues(activity.Type).Inc()

	resp, err := denormalizeActivities(ctx, r.repos, []*repository.Activity{activity})
	if err != nil {
		// The entry is stored; announce it without names rather than not at all.
		log := logger.Component("activity")
		log.Warn().Err(err).Str("activity", activity.ID).Msg("Failed to resolve activity references")
		resp = []*models.ActivityResponse{toActivityResponse(activity, nil, nil, nil)}
	}

	r.broadcaster.BroadcastActivityAdded(resp[0])
	return resp[0], nil
}

// denormalizeActivities resolves user, project and task references with one
// lookup per entity kind.
func denormalizeActivities(ctx context.Context, repos *repository.Repositories, activities []*repository.Activity) ([]*models.ActivityResponse, error) {
	var userIDs, projectIDs, taskIDs idSet
	for _, a := range activities {
		uid := a.UserID
		userIDs.add(&uid)
		projectIDs.add(a.ProjectID)
		taskIDs.add(a.TaskID)
	}

	users, err := repos.UserRepo.FindByIDs(ctx, userIDs.ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load activity users: %w", err)
	}
	projects, err := repos.ProjectRepo.FindByIDs(ctx, projectIDs.ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load activity projects: %w", err)
	}
	tasks, err := repos.TaskRepo.FindByIDs(ctx, taskIDs.ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load activity tasks: %w", err)
	}

	userMap, projectMap, taskMap := usersByID(users), projectsByID(projects), tasksByID(tasks)
	out := make([]*models.ActivityResponse, 0, len(activities))
	for _, a := range activities {
		var project *repository.Project
		if a.ProjectID != nil {
			project = projectMap[*a.ProjectID]
		}
		var task *repository.Task
		if a.TaskID != nil {
			task = taskMap[*a.TaskID]
		}
		out = append(out, toActivityResponse(a, userMap[a.UserID], project, task))
	}
	return out, nil
}

// ============================================
// Activity Service
// ============================================

type ActivityService interface {
	ListRecent(ctx context.Context, limit int) ([]*models.ActivityResponse, error)
	ListByProject(ctx context.Context, projectID string, limit int) ([]*models.ActivityResponse, error)
	AddComment(ctx context.Context, userID string, req *models.AddCommentRequest) (*models.CommentResponse, error)
	// RecordComment serves websocket add_comment messages.
	RecordComment(ctx context.Context, userID, projectID, taskID, content string) error
}

type activityService struct {
	repos       *repository.Repositories
	recorder    ActivityRecorder
	broadcaster Broadcaster
}

func NewActivityService(repos *repository.Repositories, recorder ActivityRecorder, broadcaster Broadcaster) ActivityService {
	return &activityService{repos: repos, recorder: recorder, broadcaster: broadcaster}
}

func (s *activityService) ListRecent(ctx context.Context, limit int) ([]*models.ActivityResponse, error) {
	activities, err := s.repos.ActivityRepo.FindRecent(ctx, repository.ClampLimit(limit, types.MaxActivityFeed))
	if err != nil {
		return nil, fmt.Errorf("failed to list activities: %w", err)
	}
	return denormalizeActivities(ctx, s.repos, activities)
}

func (s *activityService) ListByProject(ctx context.Context, projectID string, limit int) ([]*models.ActivityResponse, error) {
	project, err := s.repos.ProjectRepo.FindByID(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to load project: %w", err)
	}
	if project == nil {
		return nil, ErrNotFound
	}

	activities, err := s.repos.ActivityRepo.FindByProject(ctx, projectID, repository.ClampLimit(limit, types.MaxActivityFeed))
	if err != nil {
		return nil, fmt.Errorf("failed to list project activities: %w", err)
	}
	return denormalizeActivities(ctx, s.repos, activities)
}

func (s *activityService) AddComment(ctx context.Context, userID string, req *models.AddCommentRequest) (*models.CommentResponse, error) {
	req.Content = strings.TrimSpace(req.Content)
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	if req.TaskID != "" {
		task, err := s.repos.TaskRepo.FindByID(ctx, req.TaskID)
		if err != nil {
			return nil, fmt.Errorf("failed to load task: %w", err)
		}
		if task == nil {
			return nil, invalid("taskId", "task does not exist")
		}
		if req.ProjectID == "" {
			req.ProjectID = task.ProjectID
		} else if req.ProjectID != task.ProjectID {
			return nil, invalid("taskId", "task does not belong to the project")
		}
	}
	if req.ProjectID != "" {
		project, err := s.repos.ProjectRepo.FindByID(ctx, req.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("failed to load project: %w", err)
		}
		if project == nil {
			return nil, invalid("projectId", "project does not exist")
		}
	}

	activity, err := s.recorder.Record(ctx, ActivityInput{
		Type:        types.ActivityCommentAdded,
		Title:       "New comment",
		Description: req.Content,
		Metadata:    map[string]interface{}{"content": req.Content},
		UserID:      userID,
		ProjectID:   req.ProjectID,
		TaskID:      req.TaskID,
	})
	if err != nil {
		return nil, err
	}

	comment := &models.CommentResponse{
		ActivityID: activity.ID,
		UserID:     userID,
		User:       activity.User,
		ProjectID:  req.ProjectID,
		TaskID:     req.TaskID,
		Content:    req.Content,
		CreatedAt:  activity.Timestamp,
	}
	s.broadcaster.BroadcastCommentAdded(comment)
	return comment, nil
}

func (s *activityService) RecordComment(ctx context.Context, userID, projectID, taskID, content string) error {
	_, err := s.AddComment(ctx, userID, &models.AddCommentRequest{
		ProjectID: projectID,
		TaskID:    taskID,
		Content:   content,
	})
	return err
}
