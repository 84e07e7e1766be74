package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/Marga-Ghale/aurora-pm-backend/internal/db"
	"github.com/Marga-Ghale/aurora-pm-backend/internal/logger"
	"github.com/Marga-Ghale/aurora-pm-backend/internal/models"
	"github.com/Marga-Ghale/aurora-pm-backend/internal/repository"
	"github.com/Marga-Ghale/aurora-pm-backend/internal/types"
)

const (
	overviewCacheKey = "analytics:overview"
	chartDays        = 7
)

// cacheInvalidator is implemented by the analytics service; mutating services
// call it after every successful write.
type cacheInvalidator interface {
	Invalidate(ctx context.Context)
}

// ============================================
// Analytics Service
// ============================================

type AnalyticsService interface {
	Overview(ctx context.Context) (*models.AnalyticsOverview, error)
	Charts(ctx context.Context) (*models.ChartData, error)
	// Warm recomputes the overview and stores it in the cache.
	Warm(ctx context.Context) error
	Invalidate(ctx context.Context)
}

type analyticsService struct {
	repos *repository.Repositories
	cache Cache
	ttl   time.Duration
	now   func() time.Time
}

func NewAnalyticsService(repos *repository.Repositories, cache Cache, ttl time.Duration) AnalyticsService {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &analyticsService{repos: repos, cache: cache, ttl: ttl, now: time.Now}
}

func (s *analyticsService) Overview(ctx context.Context) (*models.AnalyticsOverview, error) {
	if s.cache != nil {
		var cached models.AnalyticsOverview
		err := s.cache.GetCache(ctx, overviewCacheKey, &cached)
		if err == nil {
			return &cached, nil
		}
		if !errors.Is(err, db.ErrCacheMiss) {
			log := logger.Component("analytics")
			log.Debug().Err(err).Msg("Cache read failed, computing overview")
		}
	}

	overview, err := s.compute(ctx)
	if err != nil {
		return nil, err
	}
	s.store(ctx, overview)
	return overview, nil
}

func (s *analyticsService) Warm(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	overview, err := s.compute(ctx)
	if err != nil {
		return err
	}
	s.store(ctx, overview)
	return nil
}

func (s *analyticsService) Invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteCache(ctx, overviewCacheKey); err != nil {
		log := logger.Component("analytics")
		log.Debug().Err(err).Msg("Cache invalidation failed")
	}
}

func (s *analyticsService) store(ctx context.Context, overview *models.AnalyticsOverview) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetCache(ctx, overviewCacheKey, overview, s.ttl); err != nil {
		log := logger.Component("analytics")
		log.Debug().Err(err).Msg("Cache write failed")
	}
}

func (s *analyticsService) compute(ctx context.Context) (*models.AnalyticsOverview, error) {
	projectCounts, err := s.repos.ProjectRepo.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count projects: %w", err)
	}
	taskCounts, err := s.repos.TaskRepo.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count tasks: %w", err)
	}
	users, err := s.repos.UserRepo.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}

	overview := &models.AnalyticsOverview{
		TotalProjects:   sum(projectCounts),
		ActiveProjects:  projectCounts[types.ProjectActive],
		TotalTasks:      sum(taskCounts),
		CompletedTasks:  taskCounts[types.StatusDone],
		InProgressTasks: taskCounts[types.StatusInProgress],
		TotalUsers:      users,
	}
	overview.CompletionRate = completionRate(overview.CompletedTasks, overview.TotalTasks)
	return overview, nil
}

// completionRate is the rounded percentage of completed tasks, 0 with no tasks.
func completionRate(completed, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(completed) * 100 / float64(total)))
}

func (s *analyticsService) Charts(ctx context.Context) (*models.ChartData, error) {
	today := s.now().UTC().Truncate(24 * time.Hour)
	since := today.AddDate(0, 0, -(chartDays - 1))

	created, err := s.repos.TaskRepo.CountCreatedByDay(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("failed to count created tasks: %w", err)
	}
	completed, err := s.repos.TaskRepo.CountCompletedByDay(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("failed to count completed tasks: %w", err)
	}

	data := &models.ChartData{
		Labels:    make([]string, 0, chartDays),
		Tasks:     make([]int, 0, chartDays),
		Completed: make([]int, 0, chartDays),
	}
	for d := since; !d.After(today); d = d.AddDate(0, 0, 1) {
		key := d.Format(models.DateLayout)
		data.Labels = append(data.Labels, d.Weekday().String()[:3])
		data.Tasks = append(data.Tasks, created[key])
		data.Completed = append(data.Completed, completed[key])
	}
	return data, nil
}

func sum(counts map[string]int) int {
	total := 0
	for _, n := range counts {
		total += n
	}
	return total
}
