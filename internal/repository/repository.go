// internal/repository/repository.go
package repository

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("record already exists")

	// ErrInvalidValue reports a value the column type rejects, such as a
	// budget beyond NUMERIC(12,2).
	ErrInvalidValue = errors.New("invalid value")
)

// ============================================
// Models / Entities
// ============================================

type User struct {
	ID          string     `db:"id"`
	Email       string     `db:"email"`
	Password    string     `db:"password"`
	Name        string     `db:"name"`
	Avatar      *string    `db:"avatar"`
	Role        string     `db:"role"`
	IsActive    bool       `db:"is_active"`
	LastLoginAt *time.Time `db:"last_login_at"`
	Preferences JSONMap    `db:"preferences"`
	CreatedAt   time.Time  `db:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at"`
}

type Project struct {
	ID          string              `db:"id"`
	Name        string              `db:"name"`
	Description *string             `db:"description"`
	Status      string              `db:"status"`
	Priority    string              `db:"priority"`
	Progress    int                 `db:"progress"`
	StartDate   *time.Time          `db:"start_date"`
	EndDate     *time.Time          `db:"end_date"`
	Budget      decimal.NullDecimal `db:"budget"`
	Color       string              `db:"color"`
	IsArchived  bool                `db:"is_archived"`
	Settings    JSONMap             `db:"settings"`
	OwnerID     string              `db:"owner_id"`
	CreatedAt   time.Time           `db:"created_at"`
	UpdatedAt   time.Time           `db:"updated_at"`
}

type Task struct {
	ID             string              `db:"id"`
	Title          string              `db:"title"`
	Description    *string             `db:"description"`
	Status         string              `db:"status"`
	Priority       string              `db:"priority"`
	Progress       int                 `db:"progress"`
	EstimatedHours decimal.NullDecimal `db:"estimated_hours"`
	ActualHours    decimal.Decimal     `db:"actual_hours"`
	DueDate        *time.Time          `db:"due_date"`
	CompletedAt    *time.Time          `db:"completed_at"`
	Tags           pq.StringArray      `db:"tags"`
	Metadata       JSONMap             `db:"metadata"`
	ProjectID      string              `db:"project_id"`
	AssigneeID     *string             `db:"assignee_id"`
	CreatedByID    string              `db:"created_by_id"`
	ParentTaskID   *string             `db:"parent_task_id"`
	CreatedAt      time.Time           `db:"created_at"`
	UpdatedAt      time.Time           `db:"updated_at"`
}

// Activity is an append-only audit entry.
type Activity struct {
	ID          string    `db:"id"`
	Type        string    `db:"type"`
	Title       string    `db:"title"`
	Description *string   `db:"description"`
	Metadata    JSONMap   `db:"metadata"`
	UserID      string    `db:"user_id"`
	ProjectID   *string   `db:"project_id"`
	TaskID      *string   `db:"task_id"`
	CreatedAt   time.Time `db:"created_at"`
}

type ProjectMember struct {
	ID        string    `db:"id"`
	ProjectID string    `db:"project_id"`
	UserID    string    `db:"user_id"`
	Role      string    `db:"role"`
	JoinedAt  time.Time `db:"joined_at"`
}

// ============================================
// Patches
// ============================================

// ProjectPatch lists the columns to change. Nil fields are left untouched.
type ProjectPatch struct {
	Name        *string
	Description *string
	Status      *string
	Priority    *string
	Progress    *int
	StartDate   *time.Time
	EndDate     *time.Time
	Budget      *decimal.Decimal
	Color       *string
	IsArchived  *bool
	Settings    JSONMap
}

// TaskPatch lists the columns to change. Nil fields are left untouched;
// an empty AssigneeID or ParentTaskID clears the reference.
type TaskPatch struct {
	Title          *string
	Description    *string
	Status         *string
	Priority       *string
	Progress       *int
	EstimatedHours *decimal.Decimal
	ActualHours    *decimal.Decimal
	DueDate        *time.Time
	Tags           *[]string
	Metadata       JSONMap
	AssigneeID     *string
	ParentTaskID   *string
}

type ProjectUpdate struct {
	PreviousStatus string
	Project        *Project
}

type TaskUpdate struct {
	PreviousStatus string
	Task           *Task
}

type TaskFilter struct {
	ProjectID  string
	AssigneeID string
	Status     string
}

type TaskCounts struct {
	Total     int
	Completed int
}

// ============================================
// Interfaces
// ============================================

type UserRepository interface {
	Create(ctx context.Context, user *User) error
	FindByID(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByIDs(ctx context.Context, ids []string) ([]*User, error)
	FindAll(ctx context.Context) ([]*User, error)
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
	UpdatePreferences(ctx context.Context, id string, prefs JSONMap) error
	SetActive(ctx context.Context, id string, active bool) error
	Count(ctx context.Context) (int, error)
}

type ProjectRepository interface {
	Create(ctx context.Context, project *Project) error
	FindByID(ctx context.Context, id string) (*Project, error)
	FindByIDs(ctx context.Context, ids []string) ([]*Project, error)
	FindAll(ctx context.Context) ([]*Project, error)
	Update(ctx context.Context, id string, patch *ProjectPatch) (*ProjectUpdate, error)
	Delete(ctx context.Context, id string) error
	FindAutoArchiveCandidates(ctx context.Context, updatedBefore time.Time) ([]*Project, error)
	CountByStatus(ctx context.Context) (map[string]int, error)
}

type TaskRepository interface {
	Create(ctx context.Context, task *Task) error
	FindByID(ctx context.Context, id string) (*Task, error)
	FindByIDs(ctx context.Context, ids []string) ([]*Task, error)
	FindAll(ctx context.Context, filter TaskFilter) ([]*Task, error)
	FindSubtasks(ctx context.Context, parentID string) ([]*Task, error)
	Update(ctx context.Context, id string, patch *TaskPatch) (*TaskUpdate, error)
	// Delete removes the task and its subtask tree. It returns every removed
	// id, the requested one first.
	Delete(ctx context.Context, id string) ([]string, error)
	CountByProject(ctx context.Context) (map[string]TaskCounts, error)
	CountByStatus(ctx context.Context) (map[string]int, error)
	CountCreatedByDay(ctx context.Context, since time.Time) (map[string]int, error)
	CountCompletedByDay(ctx context.Context, since time.Time) (map[string]int, error)
}

// ActivityRepository has no update or delete on purpose.
type ActivityRepository interface {
	Create(ctx context.Context, activity *Activity) error
	FindRecent(ctx context.Context, limit int) ([]*Activity, error)
	FindByProject(ctx context.Context, projectID string, limit int) ([]*Activity, error)
}

type ProjectMemberRepository interface {
	Add(ctx context.Context, member *ProjectMember) error
	Remove(ctx context.Context, projectID, userID string) error
	FindMember(ctx context.Context, projectID, userID string) (*ProjectMember, error)
	FindByProject(ctx context.Context, projectID string) ([]*ProjectMember, error)
	FindTeamNames(ctx context.Context) (map[string][]string, error)
}

// ============================================
// JSON columns
// ============================================

// JSONMap maps a jsonb column.
type JSONMap map[string]interface{}

func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (m *JSONMap) Scan(src interface{}) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*m = JSONMap{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into JSONMap", src)
	}
	out := JSONMap{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &out); err != nil {
			return err
		}
	}
	*m = out
	return nil
}

// Clone returns a deep copy through a JSON round trip.
func (m JSONMap) Clone() JSONMap {
	if m == nil {
		return JSONMap{}
	}
	b, err := json.Marshal(m)
	if err != nil {
		return JSONMap{}
	}
	out := JSONMap{}
	_ = json.Unmarshal(b, &out)
	return out
}

// ClampLimit bounds a feed limit to 1..max, defaulting to max.
func ClampLimit(limit, max int) int {
	if limit <= 0 || limit > max {
		return max
	}
	return limit
}
