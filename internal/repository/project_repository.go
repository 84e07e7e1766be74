package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/Marga-Ghale/aurora-pm-backend/internal/types"
)

const projectColumns = `id, name, description, status, priority, progress, start_date, end_date, budget, color, is_archived, settings, owner_id, created_at, updated_at`

type pgProjectRepository struct {
	db *sqlx.DB
}

func NewProjectRepository(db *sqlx.DB) ProjectRepository {
	return &pgProjectRepository{db: db}
}

func (r *pgProjectRepository) Create(ctx context.Context, p *Project) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now

	query := `
		INSERT INTO projects (` + projectColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	_, err := r.db.ExecContext(ctx, query,
		p.ID, p.Name, p.Description, p.Status, p.Priority, p.Progress, p.StartDate, p.EndDate,
		p.Budget, p.Color, p.IsArchived, p.Settings, p.OwnerID, p.CreatedAt, p.UpdatedAt,
	)
	return writeError(err)
}

func (r *pgProjectRepository) FindByID(ctx context.Context, id string) (*Project, error) {
	p := &Project{}
	err := r.db.GetContext(ctx, p, `SELECT `+projectColumns+` FROM projects WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) || isInvalidText(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *pgProjectRepository) FindByIDs(ctx context.Context, ids []string) ([]*Project, error) {
	projects := []*Project{}
	if len(ids) == 0 {
		return projects, nil
	}
	err := r.db.SelectContext(ctx, &projects, `SELECT `+projectColumns+` FROM projects WHERE id = ANY($1)`, pq.Array(validIDs(ids)))
	return projects, err
}

func (r *pgProjectRepository) FindAll(ctx context.Context) ([]*Project, error) {
	projects := []*Project{}
	err := r.db.SelectContext(ctx, &projects, `SELECT `+projectColumns+` FROM projects ORDER BY created_at DESC`)
	return projects, err
}

// Update writes only the columns present in patch. The previous status is read
// under a row lock so status transitions are detected exactly once.
func (r *pgProjectRepository) Update(ctx context.Context, id string, patch *ProjectPatch) (*ProjectUpdate, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var previous string
	err = tx.GetContext(ctx, &previous, `SELECT status FROM projects WHERE id = $1 FOR UPDATE`, id)
	if errors.Is(err, sql.ErrNoRows) || isInvalidText(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	set := projectPatchSet(patch)
	set.raw("updated_at = NOW()")
	query := fmt.Sprintf(`UPDATE projects SET %s WHERE id = $%d RETURNING %s`, set.String(), set.next(), projectColumns)

	p := &Project{}
	if err := tx.GetContext(ctx, p, query, append(set.args, id)...); err != nil {
		return nil, writeError(err)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &ProjectUpdate{PreviousStatus: previous, Project: p}, nil
}

func projectPatchSet(patch *ProjectPatch) *setClause {
	set := &setClause{}
	if patch == nil {
		return set
	}
	if patch.Name != nil {
		set.add("name", *patch.Name)
	}
	if patch.Description != nil {
		set.add("description", nullIfEmpty(patch.Description))
	}
	if patch.Status != nil {
		set.add("status", *patch.Status)
	}
	if patch.Priority != nil {
		set.add("priority", *patch.Priority)
	}
	if patch.Progress != nil {
		set.add("progress", *patch.Progress)
	}
	if patch.StartDate != nil {
		set.add("start_date", *patch.StartDate)
	}
	if patch.EndDate != nil {
		set.add("end_date", *patch.EndDate)
	}
	if patch.Budget != nil {
		set.add("budget", *patch.Budget)
	}
	if patch.Color != nil {
		set.add("color", *patch.Color)
	}
	if patch.IsArchived != nil {
		set.add("is_archived", *patch.IsArchived)
	}
	if patch.Settings != nil {
		set.add("settings", patch.Settings)
	}
	return set
}

// Delete removes the project; tasks and memberships go with it through ON DELETE CASCADE.
func (r *pgProjectRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return keyError(err)
	}
	return checkAffected(res)
}

func (r *pgProjectRepository) FindAutoArchiveCandidates(ctx context.Context, updatedBefore time.Time) ([]*Project, error) {
	projects := []*Project{}
	query := `
		SELECT ` + projectColumns + `
		FROM projects
		WHERE status = $1
		  AND is_archived = FALSE
		  AND COALESCE((settings->>'autoArchive')::boolean, FALSE) = TRUE
		  AND updated_at < $2
	`
	err := r.db.SelectContext(ctx, &projects, query, types.ProjectCompleted, updatedBefore)
	return projects, err
}

func (r *pgProjectRepository) CountByStatus(ctx context.Context) (map[string]int, error) {
	rows := []struct {
		Status string `db:"status"`
		Count  int    `db:"count"`
	}{}
	if err := r.db.SelectContext(ctx, &rows, `SELECT status, COUNT(*) AS count FROM projects GROUP BY status`); err != nil {
		return nil, err
	}
	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}
