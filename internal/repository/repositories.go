package repository

import (
	"github.com/jmoiron/sqlx"
)

type Repositories struct {
	UserRepo     UserRepository
	ProjectRepo  ProjectRepository
	TaskRepo     TaskRepository
	ActivityRepo ActivityRepository
	MemberRepo   ProjectMemberRepository
}

// NewPgRepositories builds the PostgreSQL-backed repositories.
func NewPgRepositories(db *sqlx.DB) *Repositories {
	return &Repositories{
		UserRepo:     NewUserRepository(db),
		ProjectRepo:  NewProjectRepository(db),
		TaskRepo:     NewTaskRepository(db),
		ActivityRepo: NewActivityRepository(db),
		MemberRepo:   NewProjectMemberRepository(db),
	}
}

// NewMemoryRepositories builds repositories over a single in-process store.
func NewMemoryRepositories() *Repositories {
	store := newMemoryStore()
	return &Repositories{
		UserRepo:     &memoryUserRepository{store},
		ProjectRepo:  &memoryProjectRepository{store},
		TaskRepo:     &memoryTaskRepository{store},
		ActivityRepo: &memoryActivityRepository{store},
		MemberRepo:   &memoryMemberRepository{store},
	}
}
