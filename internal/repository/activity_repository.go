package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/Marga-Ghale/aurora-pm-backend/internal/types"
)

const activityColumns = `id, type, title, description, metadata, user_id, project_id, task_id, created_at`

type pgActivityRepository struct {
	db *sqlx.DB
}

func NewActivityRepository(db *sqlx.DB) ActivityRepository {
	return &pgActivityRepository{db: db}
}

func (r *pgActivityRepository) Create(ctx context.Context, a *Activity) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.Metadata == nil {
		a.Metadata = JSONMap{}
	}
	a.CreatedAt = time.Now().UTC()

	query := `
		INSERT INTO activities (` + activityColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.ExecContext(ctx, query,
		a.ID, a.Type, a.Title, a.Description, a.Metadata, a.UserID, a.ProjectID, a.TaskID, a.CreatedAt,
	)
	return writeError(err)
}

func (r *pgActivityRepository) FindRecent(ctx context.Context, limit int) ([]*Activity, error) {
	activities := []*Activity{}
	query := `SELECT ` + activityColumns + ` FROM activities ORDER BY created_at DESC, id DESC LIMIT $1`
	err := r.db.SelectContext(ctx, &activities, query, ClampLimit(limit, types.MaxActivityFeed))
	return activities, err
}

func (r *pgActivityRepository) FindByProject(ctx context.Context, projectID string, limit int) ([]*Activity, error) {
	activities := []*Activity{}
	query := `
		SELECT ` + activityColumns + `
		FROM activities
		WHERE project_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`
	err := r.db.SelectContext(ctx, &activities, query, projectID, ClampLimit(limit, types.MaxActivityFeed))
	if isInvalidText(err) {
		return []*Activity{}, nil
	}
	return activities, err
}
