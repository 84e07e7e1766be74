package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/Marga-Ghale/aurora-pm-backend/internal/config"
	"github.com/Marga-Ghale/aurora-pm-backend/internal/db"
	"github.com/Marga-Ghale/aurora-pm-backend/internal/models"
	"github.com/Marga-Ghale/aurora-pm-backend/internal/repository"
	"github.com/Marga-Ghale/aurora-pm-backend/internal/types"
)

// recordingBroadcaster keeps every event in emission order.
type recordingBroadcaster struct {
	mu     sync.Mutex
	events  []string
	last    map[string]interface{}
	deleted []models.TaskDeleted
}

func newRecordingBroadcaster() *recordingBroadcaster {
	return &recordingBroadcaster{last: make(map[string]interface{})}
}

func (b *recordingBroadcaster) add(name string, payload interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, name)
	b.last[name] = payload
}

func (b *recordingBroadcaster) BroadcastProjectCreated(p *models.ProjectResponse) {
	b.add("project_created", p)
}
func (b *recordingBroadcaster) BroadcastProjectUpdated(p *models.ProjectResponse) {
	b.add("project_updated", p)
}
func (b *recordingBroadcaster) BroadcastProjectDeleted(id string) { b.add("project_deleted", id) }
func (b *recordingBroadcaster) BroadcastTaskCreated(t *models.TaskResponse) {
	b.add("task_created", t)
}
func (b *recordingBroadcaster) BroadcastTaskUpdated(t *models.TaskResponse) {
	b.add("task_updated", t)
}
func (b *recordingBroadcaster) BroadcastTaskDeleted(projectID, taskID string) {
	d := models.TaskDeleted{ID: taskID, ProjectID: projectID}
	b.add("task_deleted", d)
	b.mu.Lock()
	b.deleted = append(b.deleted, d)
	b.mu.Unlock()
}
func (b *recordingBroadcaster) BroadcastActivityAdded(a *models.ActivityResponse) {
	b.add("activity_added", a)
}
func (b *recordingBroadcaster) BroadcastCommentAdded(c *models.CommentResponse) {
	b.add("comment_added", c)
}

func (b *recordingBroadcaster) Events() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.events...)
}

func (b *recordingBroadcaster) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = nil
	b.deleted = nil
	b.last = make(map[string]interface{})
}

// mapCache stores JSON like the redis cache does.
type mapCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	deletes int
}

func newMapCache() *mapCache {
	return &mapCache{entries: make(map[string][]byte)}
}

func (c *mapCache) SetCache(_ context.Context, key string, value interface{}, _ time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = data
	return nil
}

func (c *mapCache) GetCache(_ context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	data, ok := c.entries[key]
	c.mu.Unlock()
	if !ok {
		return db.ErrCacheMiss
	}
	return json.Unmarshal(data, dest)
}

func (c *mapCache) DeleteCache(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.entries, k)
	}
	c.deletes++
	return nil
}

// ServiceTestSuite wires every service over the memory store.
type ServiceTestSuite struct {
	suite.Suite
	ctx         context.Context
	cfg         *config.Config
	repos       *repository.Repositories
	broadcaster *recordingBroadcaster
	cache       *mapCache
	svc         *Services
	alice       *repository.User
	bob         *repository.User
}

func (s *ServiceTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.cfg = &config.Config{JWTSecret: "test-secret", JWTExpiry: 1, AnalyticsCacheTTL: time.Minute}
	s.repos = repository.NewMemoryRepositories()
	s.broadcaster = newRecordingBroadcaster()
	s.cache = newMapCache()
	s.svc = NewServices(&ServiceDeps{
		Config:      s.cfg,
		Repos:       s.repos,
		Broadcaster: s.broadcaster,
		Cache:       s.cache,
	})
	s.alice = s.createUser("alice@example.com", "Alice", types.UserRoleMember)
	s.bob = s.createUser("bob@example.com", "Bob", types.UserRoleMember)
}

func (s *ServiceTestSuite) createUser(email, name, role string) *repository.User {
	u := &repository.User{
		Email: email, Name: name, Password: "x", Role: role, IsActive: true,
		Preferences: DefaultPreferences(),
	}
	s.Require().NoError(s.repos.UserRepo.Create(s.ctx, u))
	return u
}

func (s *ServiceTestSuite) createProject(actorID, name string) *models.ProjectResponse {
	p, err := s.svc.Project.Create(s.ctx, actorID, &models.CreateProjectRequest{Name: name})
	s.Require().NoError(err)
	return p
}

func (s *ServiceTestSuite) createTask(actorID, projectID, title string) *models.TaskResponse {
	t, err := s.svc.Task.Create(s.ctx, actorID, &models.CreateTaskRequest{Title: title, ProjectID: projectID})
	s.Require().NoError(err)
	return t
}

func (s *ServiceTestSuite) activities() []*models.ActivityResponse {
	list, err := s.svc.Activity.ListRecent(s.ctx, 0)
	s.Require().NoError(err)
	return list
}

func ptr[T any](v T) *T {
	return &v
}
