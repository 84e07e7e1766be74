package service

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Marga-Ghale/aurora-pm-backend/internal/models"
	"github.com/Marga-Ghale/aurora-pm-backend/internal/types"
)

func (s *ServiceTestSuite) TestCreateProject_Defaults() {
	project, err := s.svc.Project.Create(s.ctx, s.alice.ID, &models.CreateProjectRequest{
		Name:   "  Website  ",
		Budget: ptr(decimal.RequireFromString("1250.50")),
	})
	s.Require().NoError(err)

	s.Equal("Website", project.Name)
	s.Equal(types.ProjectPlanning, project.Status)
	s.Equal(types.PriorityMedium, project.Priority)
	s.Equal(types.DefaultProjectColor, project.Color)
	s.Equal(0, project.Progress)
	s.False(project.IsArchived)
	s.Equal(s.alice.ID, project.OwnerID)
	s.Equal([]string{"Alice"}, project.Team)
	s.Equal("team", project.Settings["visibility"])
	s.Equal(false, project.Settings["autoArchive"])
	s.Require().NotNil(project.Budget)
	s.True(decimal.RequireFromString("1250.5").Equal(*project.Budget))

	s.Equal([]string{"project_created", "activity_added"}, s.broadcaster.Events())

	feed := s.activities()
	s.Require().Len(feed, 1)
	s.Equal(types.ActivityProjectCreated, feed[0].Type)
	s.Equal("New project created", feed[0].Title)
	s.Equal(`Project "Website" was created`, *feed[0].Description)
	s.Equal(project.ID, feed[0].Project.ID)

	members, err := s.svc.Project.ListMembers(s.ctx, project.ID)
	s.Require().NoError(err)
	s.Require().Len(members, 1)
	s.Equal(types.RoleOwner, members[0].Role)
}

func (s *ServiceTestSuite) TestCreateProject_Validation() {
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, -1)

	cases := []struct {
		name  string
		req   *models.CreateProjectRequest
		field string
	}{
		{"blank name", &models.CreateProjectRequest{Name: "  "}, "name"},
		{"bad status", &models.CreateProjectRequest{Name: "P", Status: "done"}, "status"},
		{"bad color", &models.CreateProjectRequest{Name: "P", Color: "blue"}, "color"},
		{"end before start", &models.CreateProjectRequest{Name: "P", StartDate: &start, EndDate: &end}, "endDate"},
		{"negative budget", &models.CreateProjectRequest{Name: "P", Budget: ptr(decimal.NewFromInt(-5))}, "budget"},
		{"unknown owner", &models.CreateProjectRequest{Name: "P", OwnerID: "ghost"}, "ownerId"},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			_, err := s.svc.Project.Create(s.ctx, s.alice.ID, tc.req)
			ve, ok := IsValidation(err)
			s.Require().True(ok, "expected validation error, got %v", err)
			s.Equal(tc.field, ve.Field)
		})
	}

	projects, err := s.svc.Project.List(s.ctx)
	s.NoError(err)
	s.Empty(projects)
	s.Empty(s.broadcaster.Events())
}

func (s *ServiceTestSuite) TestListProjects_CountsAndOrder() {
	older := s.createProject(s.alice.ID, "Older")
	newer := s.createProject(s.bob.ID, "Newer")
	s.createTask(s.alice.ID, older.ID, "a")
	done := s.createTask(s.alice.ID, older.ID, "b")
	_, err := s.svc.Task.Update(s.ctx, s.alice.ID, done.ID, &models.UpdateTaskRequest{Status: ptr(types.StatusDone)})
	s.Require().NoError(err)

	projects, err := s.svc.Project.List(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(projects, 2)
	s.Equal(newer.ID, projects[0].ID)
	s.Equal("Bob", projects[0].Owner.Name)

	s.Equal(older.ID, projects[1].ID)
	s.Equal(2, projects[1].Tasks)
	s.Equal(1, projects[1].Completed)
}

func (s *ServiceTestSuite) TestUpdateProject_StatusTransitions() {
	project := s.createProject(s.alice.ID, "Launch")
	s.broadcaster.Reset()

	updated, err := s.svc.Project.Update(s.ctx, s.bob.ID, project.ID, &models.UpdateProjectRequest{
		Status:   ptr(types.ProjectActive),
		Settings: map[string]interface{}{"autoArchive": true},
	})
	s.Require().NoError(err)
	s.Equal(types.ProjectActive, updated.Status)
	s.Equal(true, updated.Settings["autoArchive"])
	s.Equal("team", updated.Settings["visibility"], "settings merge with the stored blob")
	s.Equal([]string{"project_updated", "activity_added"}, s.broadcaster.Events())

	feed := s.activities()
	s.Equal(types.ActivityProjectUpdated, feed[0].Type)
	s.Equal(`Project "Launch" status changed to active`, *feed[0].Description)
	s.Equal(s.bob.ID, feed[0].UserID)

	_, err = s.svc.Project.Update(s.ctx, s.bob.ID, project.ID, &models.UpdateProjectRequest{Status: ptr(types.ProjectCompleted)})
	s.Require().NoError(err)
	feed = s.activities()
	s.Equal(types.ActivityProjectCompleted, feed[0].Type)
	s.Equal("Project completed", feed[0].Title)
}

func (s *ServiceTestSuite) TestUpdateProject_Errors() {
	_, err := s.svc.Project.Update(s.ctx, s.alice.ID, "missing", &models.UpdateProjectRequest{Name: ptr("x")})
	s.ErrorIs(err, ErrNotFound)

	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	project, err := s.svc.Project.Create(s.ctx, s.alice.ID, &models.CreateProjectRequest{Name: "P", StartDate: &start})
	s.Require().NoError(err)

	before := start.AddDate(0, -1, 0)
	_, err = s.svc.Project.Update(s.ctx, s.alice.ID, project.ID, &models.UpdateProjectRequest{EndDate: &before})
	ve, ok := IsValidation(err)
	s.Require().True(ok)
	s.Equal("endDate", ve.Field)

	_, err = s.svc.Project.Update(s.ctx, s.alice.ID, project.ID, &models.UpdateProjectRequest{Progress: ptr(150)})
	_, ok = IsValidation(err)
	s.True(ok)

	got, err := s.svc.Project.Get(s.ctx, project.ID)
	s.Require().NoError(err)
	s.Nil(got.EndDate)
	s.Equal(0, got.Progress)
}

func (s *ServiceTestSuite) TestDeleteProject_CascadesTasksAndKeepsLog() {
	project := s.createProject(s.alice.ID, "Doomed")
	task := s.createTask(s.alice.ID, project.ID, "t")
	s.broadcaster.Reset()

	s.Require().NoError(s.svc.Project.Delete(s.ctx, s.alice.ID, project.ID))
	s.Equal([]string{"project_deleted", "activity_added"}, s.broadcaster.Events())
	s.Equal(project.ID, s.broadcaster.last["project_deleted"])

	_, err := s.svc.Project.Get(s.ctx, project.ID)
	s.ErrorIs(err, ErrNotFound)
	_, err = s.svc.Task.Get(s.ctx, task.ID)
	s.ErrorIs(err, ErrNotFound)

	// the creation entries survive, pointing at ids that no longer resolve
	feed := s.activities()
	s.Require().Len(feed, 3)
	s.Equal(types.ActivityProjectDeleted, feed[0].Type)
	for _, a := range feed {
		s.Nil(a.Project)
	}

	s.ErrorIs(s.svc.Project.Delete(s.ctx, s.alice.ID, project.ID), ErrNotFound)
}

func (s *ServiceTestSuite) TestDeleteProject_RequiresManager() {
	project := s.createProject(s.alice.ID, "Guarded")

	s.ErrorIs(s.svc.Project.Delete(s.ctx, s.bob.ID, project.ID), ErrForbidden)

	manager := s.createUser("mia@example.com", "Mia", types.UserRoleManager)
	s.NoError(s.svc.Project.Delete(s.ctx, manager.ID, project.ID))
}

func (s *ServiceTestSuite) TestMembers() {
	project := s.createProject(s.alice.ID, "Team")
	s.broadcaster.Reset()

	_, err := s.svc.Project.AddMember(s.ctx, s.bob.ID, project.ID, &models.AddProjectMemberRequest{UserID: s.bob.ID})
	s.ErrorIs(err, ErrForbidden)

	member, err := s.svc.Project.AddMember(s.ctx, s.alice.ID, project.ID, &models.AddProjectMemberRequest{UserID: s.bob.ID})
	s.Require().NoError(err)
	s.Equal(types.RoleMember, member.Role)
	s.Equal([]string{"project_updated", "activity_added"}, s.broadcaster.Events())

	got, err := s.svc.Project.Get(s.ctx, project.ID)
	s.Require().NoError(err)
	s.Equal([]string{"Alice", "Bob"}, got.Team)

	_, err = s.svc.Project.AddMember(s.ctx, s.alice.ID, project.ID, &models.AddProjectMemberRequest{UserID: s.bob.ID})
	s.ErrorIs(err, ErrConflict)

	_, err = s.svc.Project.AddMember(s.ctx, s.alice.ID, project.ID, &models.AddProjectMemberRequest{UserID: "ghost"})
	_, ok := IsValidation(err)
	s.True(ok)

	_, err = s.svc.Project.AddMember(s.ctx, s.alice.ID, project.ID, &models.AddProjectMemberRequest{UserID: s.bob.ID, Role: "owner"})
	_, ok = IsValidation(err)
	s.True(ok, "owner role is reserved for the project owner")

	s.ErrorIs(s.svc.Project.RemoveMember(s.ctx, s.bob.ID, project.ID, s.alice.ID), ErrForbidden)
	s.ErrorIs(s.svc.Project.RemoveMember(s.ctx, s.alice.ID, project.ID, s.alice.ID), ErrOwnerMembership)

	// members may leave on their own
	s.NoError(s.svc.Project.RemoveMember(s.ctx, s.bob.ID, project.ID, s.bob.ID))
	s.ErrorIs(s.svc.Project.RemoveMember(s.ctx, s.alice.ID, project.ID, s.bob.ID), ErrNotFound)

	feed := s.activities()
	s.Equal(types.ActivityUserLeft, feed[0].Type)
	s.Equal(`Bob left project "Team"`, *feed[0].Description)

	_, err = s.svc.Project.ListMembers(s.ctx, "missing")
	s.ErrorIs(err, ErrNotFound)
}

func (s *ServiceTestSuite) TestAutoArchive() {
	keep := s.createProject(s.alice.ID, "Still going")
	archive := s.createProject(s.alice.ID, "Finished")
	optOut := s.createProject(s.alice.ID, "Finished, no opt-in")

	_, err := s.svc.Project.Update(s.ctx, s.alice.ID, archive.ID, &models.UpdateProjectRequest{
		Status:   ptr(types.ProjectCompleted),
		Settings: map[string]interface{}{"autoArchive": true},
	})
	s.Require().NoError(err)
	_, err = s.svc.Project.Update(s.ctx, s.alice.ID, optOut.ID, &models.UpdateProjectRequest{Status: ptr(types.ProjectCompleted)})
	s.Require().NoError(err)
	logged := len(s.activities())
	s.broadcaster.Reset()

	// nothing has been idle long enough yet
	ids, err := s.svc.Project.AutoArchive(s.ctx, time.Now().Add(-time.Hour))
	s.Require().NoError(err)
	s.Empty(ids)

	ids, err = s.svc.Project.AutoArchive(s.ctx, time.Now().Add(time.Minute))
	s.Require().NoError(err)
	s.Equal([]string{archive.ID}, ids)
	s.Equal([]string{"project_updated"}, s.broadcaster.Events())
	s.Len(s.activities(), logged)

	got, err := s.svc.Project.Get(s.ctx, archive.ID)
	s.Require().NoError(err)
	s.True(got.IsArchived)

	got, err = s.svc.Project.Get(s.ctx, keep.ID)
	s.Require().NoError(err)
	s.False(got.IsArchived)

	// archived projects are not picked up twice
	ids, err = s.svc.Project.AutoArchive(s.ctx, time.Now().Add(time.Minute))
	s.Require().NoError(err)
	s.Empty(ids)
}

func (s *ServiceTestSuite) TestProjectMutationsInvalidateAnalytics() {
	_, err := s.svc.Analytics.Overview(s.ctx)
	s.Require().NoError(err)
	deletes := s.cache.deletes

	project := s.createProject(s.alice.ID, "P")
	s.Greater(s.cache.deletes, deletes)

	overview, err := s.svc.Analytics.Overview(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, overview.TotalProjects)

	deletes = s.cache.deletes
	_, err = s.svc.Project.Update(s.ctx, s.alice.ID, project.ID, &models.UpdateProjectRequest{Name: ptr("Renamed")})
	s.Require().NoError(err)
	s.Greater(s.cache.deletes, deletes)
}
