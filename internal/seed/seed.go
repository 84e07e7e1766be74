// internal/seed/seed.go
package seed

import (
	"context"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/Marga-Ghale/aurora-pm-backend/internal/logger"
	"github.com/Marga-Ghale/aurora-pm-backend/internal/models"
	"github.com/Marga-Ghale/aurora-pm-backend/internal/repository"
	"github.com/Marga-Ghale/aurora-pm-backend/internal/service"
	"github.com/Marga-Ghale/aurora-pm-backend/internal/types"
)

const (
	AdminEmail    = "admin@aurora.local"
	AdminPassword = "password123"
)

// SeedData creates a demo admin, project and two tasks when the user table
// is empty. It goes through the services so the seed shows up in the
// activity log like any other change.
func SeedData(ctx context.Context, repos *repository.Repositories, services *service.Services) error {
	log := logger.Component("seed")

	count, err := repos.UserRepo.Count(ctx)
	if err != nil {
		return fmt.Errorf("failed to count users: %w", err)
	}
	if count > 0 {
		log.Info().Int("users", count).Msg("Data already exists, skipping")
		return nil
	}

	log.Info().Msg("🌱 Creating initial data...")

	password, err := bcrypt.GenerateFromPassword([]byte(AdminPassword), service.BcryptCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	admin := &repository.User{
		Email:    AdminEmail,
		Password: string(password),
		Name:     "Aurora Admin",
		Role:     types.UserRoleAdmin,
		IsActive: true,
	}
	if err := repos.UserRepo.Create(ctx, admin); err != nil {
		return fmt.Errorf("failed to create admin: %w", err)
	}

	description := "Sample project created on first start"
	project, err := services.Project.Create(ctx, admin.ID, &models.CreateProjectRequest{
		Name:        "Aurora Launch",
		Description: &description,
		Status:      types.ProjectActive,
		Priority:    types.PriorityHigh,
	})
	if err != nil {
		return fmt.Errorf("failed to create demo project: %w", err)
	}

	tasks := []*models.CreateTaskRequest{
		{
			Title:      "Set up the workspace",
			Status:     types.StatusInProgress,
			Priority:   types.PriorityHigh,
			Tags:       []string{"setup"},
			AssigneeID: &admin.ID,
		},
		{
			Title:    "Invite the team",
			Priority: types.PriorityMedium,
		},
	}
	for _, req := range tasks {
		req.ProjectID = project.ID
		if _, err := services.Task.Create(ctx, admin.ID, req); err != nil {
			return fmt.Errorf("failed to create demo task %q: %w", req.Title, err)
		}
	}

	log.Info().
		Str("admin", AdminEmail).
		Str("project", project.ID).
		Int("tasks", len(tasks)).
		Msg("✅ Seed data created")
	return nil
}
