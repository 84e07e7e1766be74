package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/Marga-Ghale/aurora-pm-backend/internal/models"
	"github.com/Marga-Ghale/aurora-pm-backend/internal/repository"
	"github.com/Marga-Ghale/aurora-pm-backend/internal/types"
)

// ============================================
// User Service
// ============================================

type UserService interface {
	List(ctx context.Context) ([]*models.UserResponse, error)
	Get(ctx context.Context, id string) (*models.UserResponse, error)
	UpdatePreferences(ctx context.Context, id string, patch models.UpdatePreferencesRequest) (*models.UserResponse, error)
	SetActive(ctx context.Context, actorID, id string, active bool) (*models.UserResponse, error)
}

type userService struct {
	userRepo repository.UserRepository
}

func NewUserService(userRepo repository.UserRepository) UserService {
	return &userService{userRepo: userRepo}
}

func (s *userService) List(ctx context.Context) ([]*models.UserResponse, error) {
	users, err := s.userRepo.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	out := make([]*models.UserResponse, 0, len(users))
	for _, u := range users {
		resp := toUserResponse(u)
		// the roster view does not carry personal settings
		resp.Preferences = nil
		out = append(out, resp)
	}
	return out, nil
}

func (s *userService) Get(ctx context.Context, id string) (*models.UserResponse, error) {
	user, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	return toUserResponse(user), nil
}

func (s *userService) UpdatePreferences(ctx context.Context, id string, patch models.UpdatePreferencesRequest) (*models.UserResponse, error) {
	if len(patch) == 0 {
		return nil, invalid("preferences", "at least one preference is required")
	}

	user, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}

	merged := user.Preferences.Clone()
	for k, v := range patch {
		merged[k] = v
	}

	if err := s.userRepo.UpdatePreferences(ctx, id, merged); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to update preferences: %w", err)
	}
	user.Preferences = merged
	return toUserResponse(user), nil
}

// SetActive soft-disables or re-enables an account. Only admins may do it and
// nobody may disable themselves.
func (s *userService) SetActive(ctx context.Context, actorID, id string, active bool) (*models.UserResponse, error) {
	actor, err := s.find(ctx, actorID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}
	if actor.Role != types.UserRoleAdmin {
		return nil, ErrForbidden
	}
	if actorID == id && !active {
		return nil, invalid("isActive", "you cannot deactivate your own account")
	}

	if err := s.userRepo.SetActive(ctx, id, active); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	return s.Get(ctx, id)
}

func (s *userService) find(ctx context.Context, id string) (*repository.User, error) {
	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil {
		return nil, ErrNotFound
	}
	return user, nil
}
