package cron

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/Marga-Ghale/aurora-pm-backend/internal/logger"
	"github.com/Marga-Ghale/aurora-pm-backend/internal/metrics"
	"github.com/Marga-Ghale/aurora-pm-backend/internal/service"
)

const jobTimeout = time.Minute

// ClientCounter reports live websocket connections.
type ClientCounter interface {
	GetConnectedClientsCount() int
	GetOnlineUsers() []string
}

// Scheduler handles scheduled tasks
type Scheduler struct {
	cron         *cron.Cron
	projects     service.ProjectService
	analytics    service.AnalyticsService
	clients      ClientCounter
	archiveAfter time.Duration
	now          func() time.Time
	log          zerolog.Logger
}

// NewScheduler creates a new scheduler. clients may be nil.
func NewScheduler(services *service.Services, clients ClientCounter, archiveAfterDays int) *Scheduler {
	if archiveAfterDays <= 0 {
		archiveAfterDays = 30
	}
	return &Scheduler{
		cron:         cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		projects:     services.Project,
		analytics:    services.Analytics,
		clients:      clients,
		archiveAfter: time.Duration(archiveAfterDays) * 24 * time.Hour,
		now:          time.Now,
		log:          logger.Component("cron"),
	}
}

// Start registers the jobs and starts the scheduler
func (s *Scheduler) Start() error {
	jobs := []struct {
		spec string
		name string
		run  func(ctx context.Context)
	}{
		{"*/10 * * * *", "auto-archive", s.archiveCompletedProjects},
		{"* * * * *", "analytics warm-up", s.warmAnalytics},
		{"*/5 * * * *", "hub stats", s.reportHubStats},
	}
	for _, job := range jobs {
		job := job
		if _, err := s.cron.AddFunc(job.spec, func() {
			ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
			defer cancel()
			s.log.Debug().Str("job", job.name).Msg("Running job")
			job.run(ctx)
		}); err != nil {
			return err
		}
	}

	s.cron.Start()
	s.log.Info().Int("jobs", len(jobs)).Msg("Scheduler started")
	return nil
}

// Stop stops the scheduler and waits for running jobs up to ctx.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		s.log.Warn().Msg("Scheduler stopped before running jobs finished")
		return
	}
	s.log.Info().Msg("Scheduler stopped")
}

// archiveCompletedProjects archives completed, opted-in projects idle for
// longer than the configured window.
func (s *Scheduler) archiveCompletedProjects(ctx context.Context) {
	cutoff := s.now().Add(-s.archiveAfter)
	ids, err := s.projects.AutoArchive(ctx, cutoff)
	if err != nil {
		s.log.Error().Err(err).Int("archived", len(ids)).Msg("Auto-archive failed")
		return
	}
	if len(ids) > 0 {
		s.log.Info().Strs("projects", ids).Msg("Archived completed projects")
	}
}

func (s *Scheduler) warmAnalytics(ctx context.Context) {
	if err := s.analytics.Warm(ctx); err != nil {
		s.log.Warn().Err(err).Msg("Analytics warm-up failed")
	}
}

func (s *Scheduler) reportHubStats(context.Context) {
	if s.clients == nil {
		return
	}
	connected := s.clients.GetConnectedClientsCount()
	metrics.WSConnectedClients.Set(float64(connected))
	s.log.Info().
		Int("clients", connected).
		Int("users", len(s.clients.GetOnlineUsers())).
		Msg("Hub stats")
}
