package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/Marga-Ghale/aurora-pm-backend/internal/types"
)

// memoryStore backs every in-memory repository so cascades can cross entity
// types under one lock. Values handed out are copies.
type memoryStore struct {
	mu         sync.RWMutex
	seq        uint64
	order      map[string]uint64
	users      map[string]*User
	projects   map[string]*Project
	tasks      map[string]*Task
	members    map[string]*ProjectMember
	activities []*Activity
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		order:    make(map[string]uint64),
		users:    make(map[string]*User),
		projects: make(map[string]*Project),
		tasks:    make(map[string]*Task),
		members:  make(map[string]*ProjectMember),
	}
}

func (s *memoryStore) track(id string) {
	s.seq++
	s.order[id] = s.seq
}

// newestFirst sorts by creation time then insertion order, both descending.
func (s *memoryStore) newestFirst(ids []string, createdAt func(string) time.Time) {
	sort.SliceStable(ids, func(i, j int) bool {
		ti, tj := createdAt(ids[i]), createdAt(ids[j])
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return s.order[ids[i]] > s.order[ids[j]]
	})
}

func cloneUser(u *User) *User {
	c := *u
	c.Preferences = u.Preferences.Clone()
	return &c
}

func cloneProject(p *Project) *Project {
	c := *p
	c.Settings = p.Settings.Clone()
	return &c
}

func cloneTask(t *Task) *Task {
	c := *t
	c.Tags = append(pq.StringArray{}, t.Tags...)
	c.Metadata = t.Metadata.Clone()
	return &c
}

func cloneActivity(a *Activity) *Activity {
	c := *a
	c.Metadata = a.Metadata.Clone()
	return &c
}

func strPtr(s string) *string {
	return &s
}

// ============================================
// Users
// ============================================

type memoryUserRepository struct {
	s *memoryStore
}

func (r *memoryUserRepository) Create(ctx context.Context, user *User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	user.Email = strings.ToLower(user.Email)
	for _, u := range r.s.users {
		if u.Email == user.Email {
			return ErrDuplicate
		}
	}
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	user.CreatedAt, user.UpdatedAt = now, now
	r.s.users[user.ID] = cloneUser(user)
	r.s.track(user.ID)
	return nil
}

func (r *memoryUserRepository) FindByID(ctx context.Context, id string) (*User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if u, ok := r.s.users[id]; ok {
		return cloneUser(u), nil
	}
	return nil, nil
}

func (r *memoryUserRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	email = strings.ToLower(email)
	for _, u := range r.s.users {
		if u.Email == email {
			return cloneUser(u), nil
		}
	}
	return nil, nil
}

func (r *memoryUserRepository) FindByIDs(ctx context.Context, ids []string) ([]*User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	users := make([]*User, 0, len(ids))
	for _, id := range ids {
		if u, ok := r.s.users[id]; ok {
			users = append(users, cloneUser(u))
		}
	}
	return users, nil
}

func (r *memoryUserRepository) FindAll(ctx context.Context) ([]*User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	users := make([]*User, 0, len(r.s.users))
	for _, u := range r.s.users {
		users = append(users, cloneUser(u))
	}
	sort.SliceStable(users, func(i, j int) bool {
		return r.s.order[users[i].ID] < r.s.order[users[j].ID]
	})
	return users, nil
}

func (r *memoryUserRepository) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return ErrNotFound
	}
	u.LastLoginAt = &at
	u.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *memoryUserRepository) UpdatePreferences(ctx context.Context, id string, prefs JSONMap) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return ErrNotFound
	}
	u.Preferences = prefs.Clone()
	u.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *memoryUserRepository) SetActive(ctx context.Context, id string, active bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return ErrNotFound
	}
	u.IsActive = active
	u.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *memoryUserRepository) Count(ctx context.Context) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return len(r.s.users), nil
}

// ============================================
// Projects
// ============================================

type memoryProjectRepository struct {
	s *memoryStore
}

func (r *memoryProjectRepository) Create(ctx context.Context, p *Project) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	r.s.projects[p.ID] = cloneProject(p)
	r.s.track(p.ID)
	return nil
}

func (r *memoryProjectRepository) FindByID(ctx context.Context, id string) (*Project, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if p, ok := r.s.projects[id]; ok {
		return cloneProject(p), nil
	}
	return nil, nil
}

func (r *memoryProjectRepository) FindByIDs(ctx context.Context, ids []string) ([]*Project, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	projects := make([]*Project, 0, len(ids))
	for _, id := range ids {
		if p, ok := r.s.projects[id]; ok {
			projects = append(projects, cloneProject(p))
		}
	}
	return projects, nil
}

func (r *memoryProjectRepository) FindAll(ctx context.Context) ([]*Project, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	ids := make([]string, 0, len(r.s.projects))
	for id := range r.s.projects {
		ids = append(ids, id)
	}
	r.s.newestFirst(ids, func(id string) time.Time { return r.s.projects[id].CreatedAt })
	projects := make([]*Project, 0, len(ids))
	for _, id := range ids {
		projects = append(projects, cloneProject(r.s.projects[id]))
	}
	return projects, nil
}

func (r *memoryProjectRepository) Update(ctx context.Context, id string, patch *ProjectPatch) (*ProjectUpdate, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.projects[id]
	if !ok {
		return nil, ErrNotFound
	}
	previous := p.Status
	if patch != nil {
		if patch.Name != nil {
			p.Name = *patch.Name
		}
		if patch.Description != nil {
			if *patch.Description == "" {
				p.Description = nil
			} else {
				p.Description = strPtr(*patch.Description)
			}
		}
		if patch.Status != nil {
			p.Status = *patch.Status
		}
		if patch.Priority != nil {
			p.Priority = *patch.Priority
		}
		if patch.Progress != nil {
			p.Progress = *patch.Progress
		}
		if patch.StartDate != nil {
			d := *patch.StartDate
			p.StartDate = &d
		}
		if patch.EndDate != nil {
			d := *patch.EndDate
			p.EndDate = &d
		}
		if patch.Budget != nil {
			p.Budget.Decimal = *patch.Budget
			p.Budget.Valid = true
		}
		if patch.Color != nil {
			p.Color = *patch.Color
		}
		if patch.IsArchived != nil {
			p.IsArchived = *patch.IsArchived
		}
		if patch.Settings != nil {
			p.Settings = patch.Settings.Clone()
		}
	}
	p.UpdatedAt = time.Now().UTC()
	return &ProjectUpdate{PreviousStatus: previous, Project: cloneProject(p)}, nil
}

func (r *memoryProjectRepository) Delete(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.projects[id]; !ok {
		return ErrNotFound
	}
	delete(r.s.projects, id)
	delete(r.s.order, id)
	for tid, t := range r.s.tasks {
		if t.ProjectID == id {
			delete(r.s.tasks, tid)
			delete(r.s.order, tid)
		}
	}
	for mid, m := range r.s.members {
		if m.ProjectID == id {
			delete(r.s.members, mid)
		}
	}
	return nil
}

func (r *memoryProjectRepository) FindAutoArchiveCandidates(ctx context.Context, updatedBefore time.Time) ([]*Project, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var projects []*Project
	for _, p := range r.s.projects {
		autoArchive, _ := p.Settings["autoArchive"].(bool)
		if p.Status == types.ProjectCompleted && !p.IsArchived && autoArchive && p.UpdatedAt.Before(updatedBefore) {
			projects = append(projects, cloneProject(p))
		}
	}
	return projects, nil
}

func (r *memoryProjectRepository) CountByStatus(ctx context.Context) (map[string]int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	counts := make(map[string]int)
	for _, p := range r.s.projects {
		counts[p.Status]++
	}
	return counts, nil
}

// ============================================
// Tasks
// ============================================

type memoryTaskRepository struct {
	s *memoryStore
}

func (r *memoryTaskRepository) Create(ctx context.Context, t *Task) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.Tags == nil {
		t.Tags = pq.StringArray{}
	}
	now := time.Now().UTC()
	t.CreatedAt, t.UpdatedAt = now, now
	if t.Status == types.StatusDone && t.CompletedAt == nil {
		t.CompletedAt = &now
	}
	r.s.tasks[t.ID] = cloneTask(t)
	r.s.track(t.ID)
	return nil
}

func (r *memoryTaskRepository) FindByID(ctx context.Context, id string) (*Task, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if t, ok := r.s.tasks[id]; ok {
		return cloneTask(t), nil
	}
	return nil, nil
}

func (r *memoryTaskRepository) FindByIDs(ctx context.Context, ids []string) ([]*Task, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	tasks := make([]*Task, 0, len(ids))
	for _, id := range ids {
		if t, ok := r.s.tasks[id]; ok {
			tasks = append(tasks, cloneTask(t))
		}
	}
	return tasks, nil
}

func (r *memoryTaskRepository) FindAll(ctx context.Context, filter TaskFilter) ([]*Task, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	ids := make([]string, 0, len(r.s.tasks))
	for id, t := range r.s.tasks {
		if filter.ProjectID != "" && t.ProjectID != filter.ProjectID {
			continue
		}
		if filter.AssigneeID != "" && (t.AssigneeID == nil || *t.AssigneeID != filter.AssigneeID) {
			continue
		}
		if filter.Status != "" && t.Status != filter.Status {
			continue
		}
		ids = append(ids, id)
	}
	r.s.newestFirst(ids, func(id string) time.Time { return r.s.tasks[id].CreatedAt })
	tasks := make([]*Task, 0, len(ids))
	for _, id := range ids {
		tasks = append(tasks, cloneTask(r.s.tasks[id]))
	}
	return tasks, nil
}

func (r *memoryTaskRepository) FindSubtasks(ctx context.Context, parentID string) ([]*Task, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var tasks []*Task
	for _, t := range r.s.tasks {
		if t.ParentTaskID != nil && *t.ParentTaskID == parentID {
			tasks = append(tasks, cloneTask(t))
		}
	}
	sort.SliceStable(tasks, func(i, j int) bool {
		return r.s.order[tasks[i].ID] < r.s.order[tasks[j].ID]
	})
	return tasks, nil
}

func (r *memoryTaskRepository) Update(ctx context.Context, id string, patch *TaskPatch) (*TaskUpdate, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tasks[id]
	if !ok {
		return nil, ErrNotFound
	}
	previous := t.Status
	now := time.Now().UTC()
	if patch != nil {
		if patch.Title != nil {
			t.Title = *patch.Title
		}
		if patch.Description != nil {
			if *patch.Description == "" {
				t.Description = nil
			} else {
				t.Description = strPtr(*patch.Description)
			}
		}
		if patch.Status != nil {
			t.Status = *patch.Status
			if t.Status == types.StatusDone && t.CompletedAt == nil {
				t.CompletedAt = &now
			}
		}
		if patch.Priority != nil {
			t.Priority = *patch.Priority
		}
		if patch.Progress != nil {
			t.Progress = *patch.Progress
		}
		if patch.EstimatedHours != nil {
			t.EstimatedHours.Decimal = *patch.EstimatedHours
			t.EstimatedHours.Valid = true
		}
		if patch.ActualHours != nil {
			t.ActualHours = *patch.ActualHours
		}
		if patch.DueDate != nil {
			d := *patch.DueDate
			t.DueDate = &d
		}
		if patch.Tags != nil {
			t.Tags = append(pq.StringArray{}, (*patch.Tags)...)
		}
		if patch.Metadata != nil {
			t.Metadata = patch.Metadata.Clone()
		}
		if patch.AssigneeID != nil {
			if *patch.AssigneeID == "" {
				t.AssigneeID = nil
			} else {
				t.AssigneeID = strPtr(*patch.AssigneeID)
			}
		}
		if patch.ParentTaskID != nil {
			if *patch.ParentTaskID == "" {
				t.ParentTaskID = nil
			} else {
				t.ParentTaskID = strPtr(*patch.ParentTaskID)
			}
		}
	}
	t.UpdatedAt = now
	return &TaskUpdate{PreviousStatus: previous, Task: cloneTask(t)}, nil
}

func (r *memoryTaskRepository) Delete(ctx context.Context, id string) ([]string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.tasks[id]; !ok {
		return nil, ErrNotFound
	}
	return r.deleteTree(id, nil), nil
}

// deleteTree mirrors the parent_task_id ON DELETE CASCADE rule and appends the
// removed ids to removed. Caller holds the lock.
func (r *memoryTaskRepository) deleteTree(id string, removed []string) []string {
	delete(r.s.tasks, id)
	delete(r.s.order, id)
	removed = append(removed, id)
	for cid, t := range r.s.tasks {
		if t.ParentTaskID != nil && *t.ParentTaskID == id {
			removed = r.deleteTree(cid, removed)
		}
	}
	return removed
}

func (r *memoryTaskRepository) CountByProject(ctx context.Context) (map[string]TaskCounts, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	counts := make(map[string]TaskCounts)
	for _, t := range r.s.tasks {
		c := counts[t.ProjectID]
		c.Total++
		if t.Status == types.StatusDone {
			c.Completed++
		}
		counts[t.ProjectID] = c
	}
	return counts, nil
}

func (r *memoryTaskRepository) CountByStatus(ctx context.Context) (map[string]int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	counts := make(map[string]int)
	for _, t := range r.s.tasks {
		counts[t.Status]++
	}
	return counts, nil
}

func (r *memoryTaskRepository) CountCreatedByDay(ctx context.Context, since time.Time) (map[string]int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	counts := make(map[string]int)
	for _, t := range r.s.tasks {
		if !t.CreatedAt.Before(since) {
			counts[t.CreatedAt.UTC().Format("2006-01-02")]++
		}
	}
	return counts, nil
}

func (r *memoryTaskRepository) CountCompletedByDay(ctx context.Context, since time.Time) (map[string]int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	counts := make(map[string]int)
	for _, t := range r.s.tasks {
		if t.CompletedAt != nil && !t.CompletedAt.Before(since) {
			counts[t.CompletedAt.UTC().Format("2006-01-02")]++
		}
	}
	return counts, nil
}

// ============================================
// Activities
// ============================================

type memoryActivityRepository struct {
	s *memoryStore
}

func (r *memoryActivityRepository) Create(ctx context.Context, a *Activity) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.Metadata == nil {
		a.Metadata = JSONMap{}
	}
	a.CreatedAt = time.Now().UTC()
	r.s.activities = append(r.s.activities, cloneActivity(a))
	return nil
}

func (r *memoryActivityRepository) FindRecent(ctx context.Context, limit int) ([]*Activity, error) {
	return r.find(limit, func(*Activity) bool { return true }), nil
}

func (r *memoryActivityRepository) FindByProject(ctx context.Context, projectID string, limit int) ([]*Activity, error) {
	return r.find(limit, func(a *Activity) bool {
		return a.ProjectID != nil && *a.ProjectID == projectID
	}), nil
}

// find walks the log from the newest entry backwards.
func (r *memoryActivityRepository) find(limit int, match func(*Activity) bool) []*Activity {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	limit = ClampLimit(limit, types.MaxActivityFeed)
	out := make([]*Activity, 0, limit)
	for i := len(r.s.activities) - 1; i >= 0 && len(out) < limit; i-- {
		if a := r.s.activities[i]; match(a) {
			out = append(out, cloneActivity(a))
		}
	}
	return out
}

// ============================================
// Project members
// ============================================

type memoryMemberRepository struct {
	s *memoryStore
}

func (r *memoryMemberRepository) Add(ctx context.Context, m *ProjectMember) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.members {
		if existing.ProjectID == m.ProjectID && existing.UserID == m.UserID {
			return ErrDuplicate
		}
	}
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	m.JoinedAt = time.Now().UTC()
	c := *m
	r.s.members[m.ID] = &c
	r.s.track(m.ID)
	return nil
}

func (r *memoryMemberRepository) Remove(ctx context.Context, projectID, userID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, m := range r.s.members {
		if m.ProjectID == projectID && m.UserID == userID {
			delete(r.s.members, id)
			delete(r.s.order, id)
			return nil
		}
	}
	return ErrNotFound
}

func (r *memoryMemberRepository) FindMember(ctx context.Context, projectID, userID string) (*ProjectMember, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, m := range r.s.members {
		if m.ProjectID == projectID && m.UserID == userID {
			c := *m
			return &c, nil
		}
	}
	return nil, nil
}

func (r *memoryMemberRepository) FindByProject(ctx context.Context, projectID string) ([]*ProjectMember, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	members := []*ProjectMember{}
	for _, m := range r.s.members {
		if m.ProjectID == projectID {
			c := *m
			members = append(members, &c)
		}
	}
	sort.SliceStable(members, func(i, j int) bool {
		return r.s.order[members[i].ID] < r.s.order[members[j].ID]
	})
	return members, nil
}

func (r *memoryMemberRepository) FindTeamNames(ctx context.Context) (map[string][]string, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	members := make([]*ProjectMember, 0, len(r.s.members))
	for _, m := range r.s.members {
		members = append(members, m)
	}
	sort.SliceStable(members, func(i, j int) bool {
		return r.s.order[members[i].ID] < r.s.order[members[j].ID]
	})
	team := make(map[string][]string)
	for _, m := range members {
		if u, ok := r.s.users[m.UserID]; ok {
			team[m.ProjectID] = append(team[m.ProjectID], u.Name)
		}
	}
	return team, nil
}
