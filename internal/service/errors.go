package service

import (
	"errors"
	"strings"
)

var (
	// ErrInvalidCredentials indicates that provided login credentials are incorrect.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrConflict is returned when a write would duplicate an existing username.
	ErrConflict = errors.New("user already exists")
	// ErrNotFound is returned when the referenced user does not exist.
	ErrNotFound = errors.New("user not found")
)

// ValidationError lists every constraint the input violated.
type ValidationError struct {
	Details []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Details, "; ")
}

func newValidationError(details ...string) *ValidationError {
	return &ValidationError{Details: details}
}
