package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Marga-Ghale/aurora-pm-backend/internal/logger"
	"github.com/Marga-Ghale/aurora-pm-backend/internal/models"
	"github.com/Marga-Ghale/aurora-pm-backend/internal/repository"
	"github.com/Marga-Ghale/aurora-pm-backend/internal/types"
)

// ============================================
// Project Service
// ============================================

type ProjectService interface {
	Create(ctx context.Context, actorID string, req *models.CreateProjectRequest) (*models.ProjectResponse, error)
	List(ctx context.Context) ([]*models.ProjectResponse, error)
	Get(ctx context.Context, id string) (*models.ProjectResponse, error)
	Update(ctx context.Context, actorID, id string, req *models.UpdateProjectRequest) (*models.ProjectResponse, error)
	Delete(ctx context.Context, actorID, id string) error

	AddMember(ctx context.Context, actorID, projectID string, req *models.AddProjectMemberRequest) (*models.ProjectMemberResponse, error)
	RemoveMember(ctx context.Context, actorID, projectID, userID string) error
	ListMembers(ctx context.Context, projectID string) ([]*models.ProjectMemberResponse, error)

	// AutoArchive archives completed projects that opted in and have not
	// changed since before cutoff. It returns the archived project ids.
	AutoArchive(ctx context.Context, cutoff time.Time) ([]string, error)
}

type projectService struct {
	repos       *repository.Repositories
	recorder    ActivityRecorder
	broadcaster Broadcaster
	analytics   cacheInvalidator
}

func NewProjectService(repos *repository.Repositories, recorder ActivityRecorder, broadcaster Broadcaster, analytics cacheInvalidator) ProjectService {
	return &projectService{repos: repos, recorder: recorder, broadcaster: broadcaster, analytics: analytics}
}

// DefaultProjectSettings returns the settings blob of a new project.
func DefaultProjectSettings() repository.JSONMap {
	return repository.JSONMap{
		"visibility":       "team",
		"allowGuestAccess": false,
		"autoArchive":      false,
	}
}

func (s *projectService) Create(ctx context.Context, actorID string, req *models.CreateProjectRequest) (*models.ProjectResponse, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	if err := checkDates(req.StartDate, req.EndDate); err != nil {
		return nil, err
	}
	if err := checkAmount("budget", req.Budget, maxBudget); err != nil {
		return nil, err
	}

	ownerID := req.OwnerID
	if ownerID == "" {
		ownerID = actorID
	}
	owner, err := s.repos.UserRepo.FindByID(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load owner: %w", err)
	}
	if owner == nil {
		return nil, invalid("ownerId", "user does not exist")
	}

	project := &repository.Project{
		Name:        req.Name,
		Description: req.Description,
		Status:      orDefault(req.Status, types.ProjectPlanning),
		Priority:    orDefault(req.Priority, types.PriorityMedium),
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		Color:       orDefault(req.Color, types.DefaultProjectColor),
		Settings:    DefaultProjectSettings(),
		OwnerID:     owner.ID,
	}
	if req.Progress != nil {
		project.Progress = *req.Progress
	}
	if req.Budget != nil {
		project.Budget = decimal.NewNullDecimal(*req.Budget)
	}
	for k, v := range req.Settings {
		project.Settings[k] = v
	}

	if err := s.repos.ProjectRepo.Create(ctx, project); err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}

	if err := s.repos.MemberRepo.Add(ctx, &repository.ProjectMember{
		ProjectID: project.ID,
		UserID:    owner.ID,
		Role:      types.RoleOwner,
	}); err != nil && !errors.Is(err, repository.ErrDuplicate) {
		return nil, fmt.Errorf("failed to add owner membership: %w", err)
	}
	s.analytics.Invalidate(ctx)

	resp := toProjectResponse(project, owner, repository.TaskCounts{}, []string{owner.Name})
	s.broadcaster.BroadcastProjectCreated(resp)

	s.record(ctx, ActivityInput{
		Type:        types.ActivityProjectCreated,
		Title:       "New project created",
		Description: fmt.Sprintf("Project %q was created", project.Name),
		UserID:      actorID,
		ProjectID:   project.ID,
	})

	return resp, nil
}

func (s *projectService) List(ctx context.Context) ([]*models.ProjectResponse, error) {
	projects, err := s.repos.ProjectRepo.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	return s.responses(ctx, projects)
}

func (s *projectService) Get(ctx context.Context, id string) (*models.ProjectResponse, error) {
	project, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	resp, err := s.responses(ctx, []*repository.Project{project})
	if err != nil {
		return nil, err
	}
	return resp[0], nil
}

func (s *projectService) Update(ctx context.Context, actorID, id string, req *models.UpdateProjectRequest) (*models.ProjectResponse, error) {
	if req.Name != nil {
		trimmed := strings.TrimSpace(*req.Name)
		req.Name = &trimmed
	}
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	if err := checkAmount("budget", req.Budget, maxBudget); err != nil {
		return nil, err
	}

	patch := &repository.ProjectPatch{
		Name:        req.Name,
		Description: req.Description,
		Status:      req.Status,
		Priority:    req.Priority,
		Progress:    req.Progress,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		Budget:      req.Budget,
		Color:       req.Color,
		IsArchived:  req.IsArchived,
	}
	if req.Settings != nil || req.StartDate != nil || req.EndDate != nil {
		current, err := s.find(ctx, id)
		if err != nil {
			return nil, err
		}
		start, end := current.StartDate, current.EndDate
		if req.StartDate != nil {
			start = req.StartDate
		}
		if req.EndDate != nil {
			end = req.EndDate
		}
		if err := checkDates(start, end); err != nil {
			return nil, err
		}
		if req.Settings != nil {
			merged := current.Settings.Clone()
			for k, v := range req.Settings {
				merged[k] = v
			}
			patch.Settings = merged
		}
	}

	result, err := s.repos.ProjectRepo.Update(ctx, id, patch)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to update project: %w", err)
	}
	project := result.Project
	s.analytics.Invalidate(ctx)

	resp, err := s.Get(ctx, project.ID)
	if err != nil {
		return nil, err
	}
	s.broadcaster.BroadcastProjectUpdated(resp)

	in := ActivityInput{
		Type:        types.ActivityProjectUpdated,
		Title:       "Project updated",
		Description: fmt.Sprintf("Project %q was updated", project.Name),
		UserID:      actorID,
		ProjectID:   project.ID,
	}
	if project.Status != result.PreviousStatus {
		in.Metadata = map[string]interface{}{"from": result.PreviousStatus, "to": project.Status}
		if project.Status == types.ProjectCompleted {
			in.Type = types.ActivityProjectCompleted
			in.Title = "Project completed"
			in.Description = fmt.Sprintf("Project %q was completed", project.Name)
		} else {
			in.Description = fmt.Sprintf("Project %q status changed to %s", project.Name, project.Status)
		}
	}
	s.record(ctx, in)

	return resp, nil
}

func (s *projectService) Delete(ctx context.Context, actorID, id string) error {
	project, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	if err := s.requireManager(ctx, actorID, project); err != nil {
		return err
	}

	if err := s.repos.ProjectRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete project: %w", err)
	}
	s.analytics.Invalidate(ctx)

	s.broadcaster.BroadcastProjectDeleted(id)
	s.record(ctx, ActivityInput{
		Type:        types.ActivityProjectDeleted,
		Title:       "Project deleted",
		Description: fmt.Sprintf("Project %q was deleted", project.Name),
		Metadata:    map[string]interface{}{"name": project.Name},
		UserID:      actorID,
		ProjectID:   id,
	})
	return nil
}

// ============================================
// Members
// ============================================

func (s *projectService) AddMember(ctx context.Context, actorID, projectID string, req *models.AddProjectMemberRequest) (*models.ProjectMemberResponse, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	project, err := s.find(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if err := s.requireManager(ctx, actorID, project); err != nil {
		return nil, err
	}

	user, err := s.repos.UserRepo.FindByID(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil {
		return nil, invalid("userId", "user does not exist")
	}

	member := &repository.ProjectMember{
		ProjectID: projectID,
		UserID:    user.ID,
		Role:      orDefault(req.Role, types.RoleMember),
	}
	if err := s.repos.MemberRepo.Add(ctx, member); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, fmt.Errorf("%w: user is already a member", ErrConflict)
		}
		return nil, fmt.Errorf("failed to add member: %w", err)
	}

	s.announceTeamChange(ctx, projectID)
	s.record(ctx, ActivityInput{
		Type:        types.ActivityUserJoined,
		Title:       "Member joined",
		Description: fmt.Sprintf("%s joined project %q", user.Name, project.Name),
		Metadata:    map[string]interface{}{"memberId": user.ID, "role": member.Role},
		UserID:      actorID,
		ProjectID:   projectID,
	})

	return toMemberResponse(member, user), nil
}

func (s *projectService) RemoveMember(ctx context.Context, actorID, projectID, userID string) error {
	project, err := s.find(ctx, projectID)
	if err != nil {
		return err
	}
	if actorID != userID {
		if err := s.requireManager(ctx, actorID, project); err != nil {
			return err
		}
	}
	if userID == project.OwnerID {
		return ErrOwnerMembership
	}

	if err := s.repos.MemberRepo.Remove(ctx, projectID, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to remove member: %w", err)
	}

	name := userID
	if user, err := s.repos.UserRepo.FindByID(ctx, userID); err == nil && user != nil {
		name = user.Name
	}

	s.announceTeamChange(ctx, projectID)
	s.record(ctx, ActivityInput{
		Type:        types.ActivityUserLeft,
		Title:       "Member left",
		Description: fmt.Sprintf("%s left project %q", name, project.Name),
		Metadata:    map[string]interface{}{"memberId": userID},
		UserID:      actorID,
		ProjectID:   projectID,
	})
	return nil
}

func (s *projectService) ListMembers(ctx context.Context, projectID string) ([]*models.ProjectMemberResponse, error) {
	if _, err := s.find(ctx, projectID); err != nil {
		return nil, err
	}

	members, err := s.repos.MemberRepo.FindByProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}

	var ids idSet
	for _, m := range members {
		uid := m.UserID
		ids.add(&uid)
	}
	users, err := s.repos.UserRepo.FindByIDs(ctx, ids.ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load members: %w", err)
	}
	userMap := usersByID(users)

	out := make([]*models.ProjectMemberResponse, 0, len(members))
	for _, m := range members {
		out = append(out, toMemberResponse(m, userMap[m.UserID]))
	}
	return out, nil
}

// ============================================
// Scheduled
// ============================================

func (s *projectService) AutoArchive(ctx context.Context, cutoff time.Time) ([]string, error) {
	candidates, err := s.repos.ProjectRepo.FindAutoArchiveCandidates(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to find archive candidates: %w", err)
	}

	archived := true
	var ids []string
	for _, p := range candidates {
		if _, err := s.repos.ProjectRepo.Update(ctx, p.ID, &repository.ProjectPatch{IsArchived: &archived}); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				continue // deleted meanwhile
			}
			return ids, fmt.Errorf("failed to archive project %s: %w", p.ID, err)
		}
		ids = append(ids, p.ID)
		if resp, err := s.Get(ctx, p.ID); err == nil {
			s.broadcaster.BroadcastProjectUpdated(resp)
		}
	}
	if len(ids) > 0 {
		s.analytics.Invalidate(ctx)
	}
	return ids, nil
}

// ============================================
// Helpers
// ============================================

func (s *projectService) find(ctx context.Context, id string) (*repository.Project, error) {
	project, err := s.repos.ProjectRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load project: %w", err)
	}
	if project == nil {
		return nil, ErrNotFound
	}
	return project, nil
}

// requireManager allows the owner, workspace admins and managers, and project
// members with the owner or admin role.
func (s *projectService) requireManager(ctx context.Context, actorID string, project *repository.Project) error {
	if actorID == project.OwnerID {
		return nil
	}
	actor, err := s.repos.UserRepo.FindByID(ctx, actorID)
	if err != nil {
		return fmt.Errorf("failed to load user: %w", err)
	}
	if actor == nil {
		return ErrUnauthorized
	}
	if actor.Role == types.UserRoleAdmin || actor.Role == types.UserRoleManager {
		return nil
	}
	member, err := s.repos.MemberRepo.FindMember(ctx, project.ID, actorID)
	if err != nil {
		return fmt.Errorf("failed to load membership: %w", err)
	}
	if member != nil && (member.Role == types.RoleOwner || member.Role == types.RoleAdmin) {
		return nil
	}
	return ErrForbidden
}

// responses joins owners, task counts and team names with one query per concern.
func (s *projectService) responses(ctx context.Context, projects []*repository.Project) ([]*models.ProjectResponse, error) {
	var ownerIDs idSet
	for _, p := range projects {
		oid := p.OwnerID
		ownerIDs.add(&oid)
	}
	owners, err := s.repos.UserRepo.FindByIDs(ctx, ownerIDs.ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load owners: %w", err)
	}
	counts, err := s.repos.TaskRepo.CountByProject(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count tasks: %w", err)
	}
	teams, err := s.repos.MemberRepo.FindTeamNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load teams: %w", err)
	}

	ownerMap := usersByID(owners)
	out := make([]*models.ProjectResponse, 0, len(projects))
	for _, p := range projects {
		out = append(out, toProjectResponse(p, ownerMap[p.OwnerID], counts[p.ID], teams[p.ID]))
	}
	return out, nil
}

func (s *projectService) announceTeamChange(ctx context.Context, projectID string) {
	if resp, err := s.Get(ctx, projectID); err == nil {
		s.broadcaster.BroadcastProjectUpdated(resp)
	}
}

// record logs failures instead of returning them: the mutation is already committed.
func (s *projectService) record(ctx context.Context, in ActivityInput) {
	recordBestEffort(ctx, s.recorder, in)
}

func recordBestEffort(ctx context.Context, recorder ActivityRecorder, in ActivityInput) {
	if _, err := recorder.Record(ctx, in); err != nil {
		log := logger.Component("activity")
		log.Error().Err(err).Str("type", in.Type).Str("user", in.UserID).Msg("Failed to record activity")
	}
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func checkDates(start, end *time.Time) error {
	if start != nil && end != nil && end.Before(*start) {
		return invalid("endDate", "must not be before startDate")
	}
	return nil
}

// Column bounds: budget is NUMERIC(12,2), hours are NUMERIC(8,2).
var (
	maxBudget = decimal.New(1, 10)
	maxHours  = decimal.New(1, 6)
)

// checkAmount rejects negative values and values that do not fit below limit.
func checkAmount(field string, d *decimal.Decimal, limit decimal.Decimal) error {
	if d == nil {
		return nil
	}
	if d.IsNegative() {
		return invalid(field, "must not be negative")
	}
	if d.GreaterThanOrEqual(limit) {
		return invalid(field, "must be less than "+limit.String())
	}
	return nil
}
