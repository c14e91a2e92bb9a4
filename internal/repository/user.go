package repository

import (
	"context"
	"errors"

	"user-admin/internal/domain"
)

var (
	// ErrNotFound is returned when no user matches the lookup.
	ErrNotFound = errors.New("user not found")
	// ErrDuplicateUsername is returned when a write would break username uniqueness.
	ErrDuplicateUsername = errors.New("username already exists")
)

// UserFilter narrows a listing. An empty Roles slice means every role.
type UserFilter struct {
	Roles            []domain.Role
	UsernameContains string
}

// UserPatch carries a partial update; nil fields are left untouched.
type UserPatch struct {
	Username     *string
	PasswordHash *string
	Role         *domain.Role
	Native       *string
}

// Empty reports whether the patch changes nothing.
func (p UserPatch) Empty() bool {
	return p.Username == nil && p.PasswordHash == nil && p.Role == nil && p.Native == nil
}

// UserRepository defines persistence operations for User entities.
type UserRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, user *domain.User) error
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	GetByID(ctx context.Context, id string) (*domain.User, error)
	List(ctx context.Context, filter UserFilter) ([]domain.User, error)
	Update(ctx context.Context, id string, patch UserPatch) (*domain.User, error)
	Delete(ctx context.Context, id string) (*domain.User, error)
	Snapshot(ctx context.Context, dest string) error
	Ping(ctx context.Context) error
}
