package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const memberColumns = `id, project_id, user_id, role, joined_at`

type pgProjectMemberRepository struct {
	db *sqlx.DB
}

func NewProjectMemberRepository(db *sqlx.DB) ProjectMemberRepository {
	return &pgProjectMemberRepository{db: db}
}

func (r *pgProjectMemberRepository) Add(ctx context.Context, m *ProjectMember) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	m.JoinedAt = time.Now().UTC()

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO project_members (`+memberColumns+`) VALUES ($1, $2, $3, $4, $5)`,
		m.ID, m.ProjectID, m.UserID, m.Role, m.JoinedAt,
	)
	return writeError(err)
}

func (r *pgProjectMemberRepository) Remove(ctx context.Context, projectID, userID string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM project_members WHERE project_id = $1 AND user_id = $2`, projectID, userID)
	if err != nil {
		return keyError(err)
	}
	return checkAffected(res)
}

func (r *pgProjectMemberRepository) FindMember(ctx context.Context, projectID, userID string) (*ProjectMember, error) {
	m := &ProjectMember{}
	err := r.db.GetContext(ctx, m,
		`SELECT `+memberColumns+` FROM project_members WHERE project_id = $1 AND user_id = $2`, projectID, userID)
	if errors.Is(err, sql.ErrNoRows) || isInvalidText(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (r *pgProjectMemberRepository) FindByProject(ctx context.Context, projectID string) ([]*ProjectMember, error) {
	members := []*ProjectMember{}
	err := r.db.SelectContext(ctx, &members,
		`SELECT `+memberColumns+` FROM project_members WHERE project_id = $1 ORDER BY joined_at ASC`, projectID)
	if isInvalidText(err) {
		return []*ProjectMember{}, nil
	}
	return members, err
}

// FindTeamNames returns member display names keyed by project id, in join order.
func (r *pgProjectMemberRepository) FindTeamNames(ctx context.Context) (map[string][]string, error) {
	rows := []struct {
		ProjectID string `db:"project_id"`
		Name      string `db:"name"`
	}{}
	query := `
		SELECT pm.project_id, u.name
		FROM project_members pm
		JOIN users u ON u.id = pm.user_id
		ORDER BY pm.joined_at ASC
	`
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, err
	}
	team := make(map[string][]string)
	for _, row := range rows {
		team[row.ProjectID] = append(team[row.ProjectID], row.Name)
	}
	return team, nil
}
