package service

import (
	"context"
	"time"

	"github.com/Marga-Ghale/aurora-pm-backend/internal/config"
	"github.com/Marga-Ghale/aurora-pm-backend/internal/models"
	"github.com/Marga-Ghale/aurora-pm-backend/internal/repository"
)

// Broadcaster publishes committed mutations to live clients. Implementations
// must not block and have no error to report: the write is already durable.
type Broadcaster interface {
	BroadcastProjectCreated(project *models.ProjectResponse)
	BroadcastProjectUpdated(project *models.ProjectResponse)
	BroadcastProjectDeleted(projectID string)
	BroadcastTaskCreated(task *models.TaskResponse)
	BroadcastTaskUpdated(task *models.TaskResponse)
	BroadcastTaskDeleted(projectID, taskID string)
	BroadcastActivityAdded(activity *models.ActivityResponse)
	BroadcastCommentAdded(comment *models.CommentResponse)
}

// Cache is the key/value store behind analytics. *db.RedisDB implements it.
type Cache interface {
	SetCache(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	GetCache(ctx context.Context, key string, dest interface{}) error
	DeleteCache(ctx context.Context, keys ...string) error
}

type noopBroadcaster struct{}

func (noopBroadcaster) BroadcastProjectCreated(*models.ProjectResponse) {}
func (noopBroadcaster) BroadcastProjectUpdated(*models.ProjectResponse) {}
func (noopBroadcaster) BroadcastProjectDeleted(string) {}
func (noopBroadcaster) BroadcastTaskCreated(*models.TaskResponse) {}
func (noopBroadcaster) BroadcastTaskUpdated(*models.TaskResponse) {}
func (noopBroadcaster) BroadcastTaskDeleted(string, string) {}
func (noopBroadcaster) BroadcastActivityAdded(*models.ActivityResponse) {}
func (noopBroadcaster) BroadcastCommentAdded(*models.CommentResponse) {}

// ============================================
// Services Container
// ============================================

type Services struct {
	Auth      AuthService
	User      UserService
	Project   ProjectService
	Task      TaskService
	Activity  ActivityService
	Analytics AnalyticsService
	Recorder  ActivityRecorder
}

// ServiceDeps contains all dependencies needed to create services
type ServiceDeps struct {
	Config      *config.Config
	Repos       *repository.Repositories
	Broadcaster Broadcaster
	Cache       Cache // optional
}

func NewServices(deps *ServiceDeps) *Services {
	broadcaster := deps.Broadcaster
	if broadcaster == nil {
		broadcaster = noopBroadcaster{}
	}

	analytics := NewAnalyticsService(deps.Repos, deps.Cache, deps.Config.AnalyticsCacheTTL)
	recorder := NewActivityRecorder(deps.Repos, broadcaster)

	return &Services{
		Auth:      NewAuthService(deps.Config, deps.Repos.UserRepo, analytics),
		User:      NewUserService(deps.Repos.UserRepo),
		Project:   NewProjectService(deps.Repos, recorder, broadcaster, analytics),
		Task:      NewTaskService(deps.Repos, recorder, broadcaster, analytics),
		Activity:  NewActivityService(deps.Repos, recorder, broadcaster),
		Analytics: analytics,
		Recorder:  recorder,
	}
}
