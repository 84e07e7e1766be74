package service

import (
	"errors"
	"fmt"

	"github.com/Marga-Ghale/aurora-pm-backend/internal/repository"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserExists         = fmt.Errorf("%w: email already registered", ErrConflict)
	ErrInvalidToken       = errors.New("invalid token")
	ErrNotFound           = errors.New("resource not found")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrConflict           = errors.New("resource already exists")
	ErrOwnerMembership    = errors.New("the project owner cannot be removed")
	ErrAccountDisabled    = fmt.Errorf("%w: account disabled", ErrUnauthorized)

	// ErrInvalidValue is a value the store rejected as malformed or out of range.
	ErrInvalidValue = repository.ErrInvalidValue
)

// ValidationError reports a single invalid input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
