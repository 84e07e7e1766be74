package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/Marga-Ghale/aurora-pm-backend/internal/types"
)

const taskColumns = `id, title, description, status, priority, progress, estimated_hours, actual_hours, due_date, completed_at, tags, metadata, project_id, assignee_id, created_by_id, parent_task_id, created_at, updated_at`

type pgTaskRepository struct {
	db *sqlx.DB
}

func NewTaskRepository(db *sqlx.DB) TaskRepository {
	return &pgTaskRepository{db: db}
}

func (r *pgTaskRepository) Create(ctx context.Context, t *Task) error {
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

	query := `
		INSERT INTO tasks (` + taskColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`
	_, err := r.db.ExecContext(ctx, query,
		t.ID, t.Title, t.Description, t.Status, t.Priority, t.Progress, t.EstimatedHours, t.ActualHours,
		t.DueDate, t.CompletedAt, t.Tags, t.Metadata, t.ProjectID, t.AssigneeID, t.CreatedByID,
		t.ParentTaskID, t.CreatedAt, t.UpdatedAt,
	)
	return writeError(err)
}

func (r *pgTaskRepository) FindByID(ctx context.Context, id string) (*Task, error) {
	t := &Task{}
	err := r.db.GetContext(ctx, t, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) || isInvalidText(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (r *pgTaskRepository) FindByIDs(ctx context.Context, ids []string) ([]*Task, error) {
	tasks := []*Task{}
	if len(ids) == 0 {
		return tasks, nil
	}
	err := r.db.SelectContext(ctx, &tasks, `SELECT `+taskColumns+` FROM tasks WHERE id = ANY($1)`, pq.Array(validIDs(ids)))
	return tasks, err
}

func (r *pgTaskRepository) FindAll(ctx context.Context, filter TaskFilter) ([]*Task, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.ProjectID != "" {
		args = append(args, filter.ProjectID)
		where = append(where, fmt.Sprintf("project_id = $%d", len(args)))
	}
	if filter.AssigneeID != "" {
		args = append(args, filter.AssigneeID)
		where = append(where, fmt.Sprintf("assignee_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}

	query := `SELECT ` + taskColumns + ` FROM tasks`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC`

	tasks := []*Task{}
	err := r.db.SelectContext(ctx, &tasks, query, args...)
	if isInvalidText(err) {
		return []*Task{}, nil
	}
	return tasks, err
}

func (r *pgTaskRepository) FindSubtasks(ctx context.Context, parentID string) ([]*Task, error) {
	tasks := []*Task{}
	err := r.db.SelectContext(ctx, &tasks,
		`SELECT `+taskColumns+` FROM tasks WHERE parent_task_id = $1 ORDER BY created_at ASC`, parentID)
	if isInvalidText(err) {
		return []*Task{}, nil
	}
	return tasks, err
}

// Update writes only the columns present in patch, so concurrent patches touching
// different fields both survive. completed_at is stamped on the first move to done
// and never cleared.
func (r *pgTaskRepository) Update(ctx context.Context, id string, patch *TaskPatch) (*TaskUpdate, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var previous string
	err = tx.GetContext(ctx, &previous, `SELECT status FROM tasks WHERE id = $1 FOR UPDATE`, id)
	if errors.Is(err, sql.ErrNoRows) || isInvalidText(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	set := taskPatchSet(patch)
	set.raw("updated_at = NOW()")
	if patch != nil && patch.Status != nil && *patch.Status == types.StatusDone {
		set.raw("completed_at = COALESCE(completed_at, NOW())")
	}
	query := fmt.Sprintf(`UPDATE tasks SET %s WHERE id = $%d RETURNING %s`, set.String(), set.next(), taskColumns)

	t := &Task{}
	if err := tx.GetContext(ctx, t, query, append(set.args, id)...); err != nil {
		return nil, writeError(err)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &TaskUpdate{PreviousStatus: previous, Task: t}, nil
}

func taskPatchSet(patch *TaskPatch) *setClause {
	set := &setClause{}
	if patch == nil {
		return set
	}
	if patch.Title != nil {
		set.add("title", *patch.Title)
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
	if patch.EstimatedHours != nil {
		set.add("estimated_hours", *patch.EstimatedHours)
	}
	if patch.ActualHours != nil {
		set.add("actual_hours", *patch.ActualHours)
	}
	if patch.DueDate != nil {
		set.add("due_date", *patch.DueDate)
	}
	if patch.Tags != nil {
		set.add("tags", pq.StringArray(*patch.Tags))
	}
	if patch.Metadata != nil {
		set.add("metadata", patch.Metadata)
	}
	if patch.AssigneeID != nil {
		set.add("assignee_id", nullIfEmpty(patch.AssigneeID))
	}
	if patch.ParentTaskID != nil {
		set.add("parent_task_id", nullIfEmpty(patch.ParentTaskID))
	}
	return set
}

// Delete removes the task tree in one statement so the returned ids match what
// the parent_task_id cascade would take.
func (r *pgTaskRepository) Delete(ctx context.Context, id string) ([]string, error) {
	query := `
		WITH RECURSIVE tree AS (
			SELECT id FROM tasks WHERE id = $1
			UNION ALL
			SELECT t.id FROM tasks t JOIN tree ON t.parent_task_id = tree.id
		)
		DELETE FROM tasks WHERE id IN (SELECT id FROM tree)
		RETURNING id
	`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, id); err != nil {
		return nil, keyError(err)
	}
	if len(ids) == 0 {
		return nil, ErrNotFound
	}
	removed := make([]string, 0, len(ids))
	removed = append(removed, id)
	for _, tid := range ids {
		if tid != id {
			removed = append(removed, tid)
		}
	}
	return removed, nil
}

func (r *pgTaskRepository) CountByProject(ctx context.Context) (map[string]TaskCounts, error) {
	rows := []struct {
		ProjectID string `db:"project_id"`
		Total     int    `db:"total"`
		Completed int    `db:"completed"`
	}{}
	query := `
		SELECT project_id,
		       COUNT(*) AS total,
		       COUNT(*) FILTER (WHERE status = 'done') AS completed
		FROM tasks
		GROUP BY project_id
	`
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, err
	}
	counts := make(map[string]TaskCounts, len(rows))
	for _, row := range rows {
		counts[row.ProjectID] = TaskCounts{Total: row.Total, Completed: row.Completed}
	}
	return counts, nil
}

func (r *pgTaskRepository) CountByStatus(ctx context.Context) (map[string]int, error) {
	rows := []struct {
		Status string `db:"status"`
		Count  int    `db:"count"`
	}{}
	if err := r.db.SelectContext(ctx, &rows, `SELECT status, COUNT(*) AS count FROM tasks GROUP BY status`); err != nil {
		return nil, err
	}
	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

func (r *pgTaskRepository) CountCreatedByDay(ctx context.Context, since time.Time) (map[string]int, error) {
	return r.countByDay(ctx, "created_at", since)
}

func (r *pgTaskRepository) CountCompletedByDay(ctx context.Context, since time.Time) (map[string]int, error) {
	return r.countByDay(ctx, "completed_at", since)
}

func (r *pgTaskRepository) countByDay(ctx context.Context, column string, since time.Time) (map[string]int, error) {
	rows := []struct {
		Day   string `db:"day"`
		Count int    `db:"count"`
	}{}
	query := fmt.Sprintf(`
		SELECT to_char(%[1]s AT TIME ZONE 'UTC', 'YYYY-MM-DD') AS day, COUNT(*) AS count
		FROM tasks
		WHERE %[1]s >= $1
		GROUP BY day
	`, column)
	if err := r.db.SelectContext(ctx, &rows, query, since); err != nil {
		return nil, err
	}
	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		counts[row.Day] = row.Count
	}
	return counts, nil
}
