package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/Marga-Ghale/aurora-pm-backend/internal/models"
	"github.com/Marga-Ghale/aurora-pm-backend/internal/types"
)

func (s *ServiceTestSuite) TestRecord_Validation() {
	_, err := s.svc.Recorder.Record(s.ctx, ActivityInput{Type: "task_exploded", Title: "x", UserID: s.alice.ID})
	ve, ok := IsValidation(err)
	s.Require().True(ok)
	s.Equal("type", ve.Field)

	_, err = s.svc.Recorder.Record(s.ctx, ActivityInput{Type: types.ActivityMilestoneReached, Title: "x"})
	_, ok = IsValidation(err)
	s.True(ok)

	_, err = s.svc.Recorder.Record(s.ctx, ActivityInput{Type: types.ActivityMilestoneReached, Title: " ", UserID: s.alice.ID})
	_, ok = IsValidation(err)
	s.True(ok)

	s.Empty(s.activities())
	s.Empty(s.broadcaster.Events())
}

func (s *ServiceTestSuite) TestRecord_UnknownUserRendersPlaceholder() {
	entry, err := s.svc.Recorder.Record(s.ctx, ActivityInput{
		Type: types.ActivityMilestoneReached, Title: "Milestone", UserID: "gone",
	})
	s.Require().NoError(err)
	s.Equal("Unknown User", entry.User)
	s.Nil(entry.Description)
	s.Equal([]string{"activity_added"}, s.broadcaster.Events())
}

func (s *ServiceTestSuite) TestListRecent_CappedNewestFirst() {
	for i := 0; i < 55; i++ {
		_, err := s.svc.Recorder.Record(s.ctx, ActivityInput{
			Type:   types.ActivityMilestoneReached,
			Title:  fmt.Sprintf("m%d", i),
			UserID: s.alice.ID,
		})
		s.Require().NoError(err)
	}

	feed, err := s.svc.Activity.ListRecent(s.ctx, 0)
	s.Require().NoError(err)
	s.Require().Len(feed, types.MaxActivityFeed)
	s.Equal("m54", feed[0].Title)
	s.Equal("m5", feed[len(feed)-1].Title)

	feed, err = s.svc.Activity.ListRecent(s.ctx, 500)
	s.Require().NoError(err)
	s.Len(feed, types.MaxActivityFeed)

	feed, err = s.svc.Activity.ListRecent(s.ctx, 3)
	s.Require().NoError(err)
	s.Len(feed, 3)
}

func (s *ServiceTestSuite) TestListByProject() {
	p1 := s.createProject(s.alice.ID, "P1")
	p2 := s.createProject(s.alice.ID, "P2")
	s.createTask(s.alice.ID, p1.ID, "t1")
	s.createTask(s.alice.ID, p2.ID, "t2")

	feed, err := s.svc.Activity.ListByProject(s.ctx, p1.ID, 0)
	s.Require().NoError(err)
	s.Require().Len(feed, 2)
	s.Equal(types.ActivityTaskCreated, feed[0].Type)
	s.Equal("t1", feed[0].Task.Title)
	s.Equal(types.ActivityProjectCreated, feed[1].Type)
	for _, a := range feed {
		s.Equal(p1.ID, *a.ProjectID)
		s.Equal("P1", a.Project.Name)
	}

	_, err = s.svc.Activity.ListByProject(s.ctx, "missing", 0)
	s.ErrorIs(err, ErrNotFound)
}

func (s *ServiceTestSuite) TestAddComment() {
	project := s.createProject(s.alice.ID, "P1")
	task := s.createTask(s.alice.ID, project.ID, "X")
	s.broadcaster.Reset()

	comment, err := s.svc.Activity.AddComment(s.ctx, s.bob.ID, &models.AddCommentRequest{
		TaskID: task.ID, Content: "  Looks good  ",
	})
	s.Require().NoError(err)
	s.Equal("Looks good", comment.Content)
	s.Equal(project.ID, comment.ProjectID, "project is inferred from the task")
	s.Equal("Bob", comment.User)
	s.Equal([]string{"activity_added", "comment_added"}, s.broadcaster.Events())

	feed := s.activities()
	s.Equal(types.ActivityCommentAdded, feed[0].Type)
	s.Equal(comment.ActivityID, feed[0].ID)
	s.Equal("Looks good", *feed[0].Description)
}

func (s *ServiceTestSuite) TestAddComment_Validation() {
	p1 := s.createProject(s.alice.ID, "P1")
	p2 := s.createProject(s.alice.ID, "P2")
	task := s.createTask(s.alice.ID, p1.ID, "X")
	logged := len(s.activities())

	cases := []struct {
		name  string
		req   *models.AddCommentRequest
		field string
	}{
		{"blank", &models.AddCommentRequest{ProjectID: p1.ID, Content: "   "}, "content"},
		{"too long", &models.AddCommentRequest{ProjectID: p1.ID, Content: strings.Repeat("a", 5001)}, "content"},
		{"unknown task", &models.AddCommentRequest{TaskID: "ghost", Content: "hi"}, "taskId"},
		{"task from another project", &models.AddCommentRequest{ProjectID: p2.ID, TaskID: task.ID, Content: "hi"}, "taskId"},
		{"unknown project", &models.AddCommentRequest{ProjectID: "ghost", Content: "hi"}, "projectId"},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			_, err := s.svc.Activity.AddComment(s.ctx, s.bob.ID, tc.req)
			ve, ok := IsValidation(err)
			s.Require().True(ok, "expected validation error, got %v", err)
			s.Equal(tc.field, ve.Field)
		})
	}
	s.Len(s.activities(), logged)
}

func (s *ServiceTestSuite) TestRecordComment() {
	project := s.createProject(s.alice.ID, "P1")
	s.Require().NoError(s.svc.Activity.RecordComment(s.ctx, s.bob.ID, project.ID, "", "from the socket"))

	feed := s.activities()
	s.Equal(types.ActivityCommentAdded, feed[0].Type)
	s.Equal(s.bob.ID, feed[0].UserID)
}

// ============================================
// Analytics
// ============================================

func (s *ServiceTestSuite) TestOverview_CountsAndRate() {
	p := s.createProject(s.alice.ID, "P1")
	_, err := s.svc.Project.Update(s.ctx, s.alice.ID, p.ID, &models.UpdateProjectRequest{Status: ptr(types.ProjectActive)})
	s.Require().NoError(err)
	s.createProject(s.alice.ID, "P2")

	done := s.createTask(s.alice.ID, p.ID, "a")
	busy := s.createTask(s.alice.ID, p.ID, "b")
	s.createTask(s.alice.ID, p.ID, "c")
	_, err = s.svc.Task.Update(s.ctx, s.alice.ID, done.ID, &models.UpdateTaskRequest{Status: ptr(types.StatusDone)})
	s.Require().NoError(err)
	_, err = s.svc.Task.Update(s.ctx, s.alice.ID, busy.ID, &models.UpdateTaskRequest{Status: ptr(types.StatusInProgress)})
	s.Require().NoError(err)

	overview, err := s.svc.Analytics.Overview(s.ctx)
	s.Require().NoError(err)
	s.Equal(&models.AnalyticsOverview{
		TotalProjects:   2,
		ActiveProjects:  1,
		TotalTasks:      3,
		CompletedTasks:  1,
		InProgressTasks: 1,
		TotalUsers:      2,
		CompletionRate:  33,
	}, overview)
}

func (s *ServiceTestSuite) TestOverview_ServedFromCacheUntilInvalidated() {
	overview, err := s.svc.Analytics.Overview(s.ctx)
	s.Require().NoError(err)
	s.Equal(2, overview.TotalUsers)
	s.Equal(0, overview.CompletionRate)

	// a write that bypasses the services leaves the cached value in place
	s.createUser("dave@example.com", "Dave", types.UserRoleMember)
	overview, err = s.svc.Analytics.Overview(s.ctx)
	s.Require().NoError(err)
	s.Equal(2, overview.TotalUsers)

	s.svc.Analytics.Invalidate(s.ctx)
	overview, err = s.svc.Analytics.Overview(s.ctx)
	s.Require().NoError(err)
	s.Equal(3, overview.TotalUsers)

	s.createUser("erin@example.com", "Erin", types.UserRoleMember)
	s.Require().NoError(s.svc.Analytics.Warm(s.ctx))
	overview, err = s.svc.Analytics.Overview(s.ctx)
	s.Require().NoError(err)
	s.Equal(4, overview.TotalUsers)
}

func (s *ServiceTestSuite) TestOverview_WithoutCache() {
	analytics := NewAnalyticsService(s.repos, nil, 0)
	s.createProject(s.alice.ID, "P1")

	overview, err := analytics.Overview(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, overview.TotalProjects)
	s.NoError(analytics.Warm(s.ctx))
	analytics.Invalidate(s.ctx)
}

func (s *ServiceTestSuite) TestCharts() {
	project := s.createProject(s.alice.ID, "P1")
	s.createTask(s.alice.ID, project.ID, "a")
	done := s.createTask(s.alice.ID, project.ID, "b")
	_, err := s.svc.Task.Update(s.ctx, s.alice.ID, done.ID, &models.UpdateTaskRequest{Status: ptr(types.StatusDone)})
	s.Require().NoError(err)

	// pretend three days have passed so today's work lands mid-window
	shifted := time.Now().UTC().AddDate(0, 0, 3)
	s.svc.Analytics.(*analyticsService).now = func() time.Time { return shifted }

	charts, err := s.svc.Analytics.Charts(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(charts.Labels, 7)
	s.Equal(shifted.Weekday().String()[:3], charts.Labels[6])
	s.Equal([]int{0, 0, 0, 2, 0, 0, 0}, charts.Tasks)
	s.Equal([]int{0, 0, 0, 1, 0, 0, 0}, charts.Completed)
}

func (s *ServiceTestSuite) TestCompletionRate() {
	s.Equal(0, completionRate(0, 0))
	s.Equal(50, completionRate(1, 2))
	s.Equal(67, completionRate(2, 3))
	s.Equal(100, completionRate(4, 4))
}
