package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"user-admin/internal/auth"
	"user-admin/internal/domain"
	"user-admin/internal/repository"
)

// ListUsersInput filters the user listing.
type ListUsersInput struct {
	Roles       []string `json:"roles" validate:"dive,oneof=super-admin admin user"`
	SearchQuery string   `json:"searchQuery"`
}

// CreateUserInput is the payload used by administrators to add an account.
type CreateUserInput struct {
	Username string `json:"username" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=15"`
	Role     string `json:"roles" validate:"required,oneof=super-admin admin user"`
	Native   string `json:"native" validate:"required,min=2"`
}

// UpdateUserInput is a partial update; nil or empty fields are left unchanged.
type UpdateUserInput struct {
	Username *string `json:"username" validate:"omitempty,email"`
	Password *string `json:"password" validate:"omitempty,min=6,max=15"`
	Role     *string `json:"roles" validate:"omitempty,oneof=super-admin admin user"`
	Native   *string `json:"native"`
}

// UserService describes administrative user lifecycle operations.
type UserService interface {
	List(ctx context.Context, in ListUsersInput) ([]domain.User, error)
	Get(ctx context.Context, id string) (*domain.User, error)
	Create(ctx context.Context, in CreateUserInput) (*domain.User, error)
	Update(ctx context.Context, id string, in UpdateUserInput) (*domain.User, error)
	Delete(ctx context.Context, id string) (*domain.User, error)
	RoleOf(ctx context.Context, id string) (domain.Role, error)
}

type userService struct {
	users  repository.UserRepository
	hasher *auth.PasswordHasher
}

func NewUserService(users repository.UserRepository, hasher *auth.PasswordHasher) UserService {
	return &userService{
		users:  users,
		hasher: hasher,
	}
}

func (s *userService) List(ctx context.Context, in ListUsersInput) ([]domain.User, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}

	filter := repository.UserFilter{UsernameContains: strings.TrimSpace(in.SearchQuery)}
	for _, r := range in.Roles {
		filter.Roles = append(filter.Roles, domain.Role(r))
	}

	users, err := s.users.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	for i := range users {
		users[i].PasswordHash = ""
	}
	return users, nil
}

func (s *userService) Get(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, "get user")
	}
	return sanitizeUser(user), nil
}

func (s *userService) Create(ctx context.Context, in CreateUserInput) (*domain.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	if err := validateInput(in); err != nil {
		return nil, err
	}

	if err := s.ensureUsernameFree(ctx, in.Username, ""); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		Username:     in.Username,
		PasswordHash: hash,
		Role:         domain.Role(in.Role),
		Native:       in.Native,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, mapRepoError(err, "create user")
	}
	return sanitizeUser(user), nil
}

func (s *userService) Update(ctx context.Context, id string, in UpdateUserInput) (*domain.User, error) {
	in = normalizeUpdate(in)
	if err := validateInput(in); err != nil {
		return nil, err
	}

	var patch repository.UserPatch
	if in.Username != nil {
		if err := s.ensureUsernameFree(ctx, *in.Username, id); err != nil {
			return nil, err
		}
		patch.Username = in.Username
	}
	if in.Role != nil {
		role := domain.Role(*in.Role)
		patch.Role = &role
	}
	if in.Native != nil {
		patch.Native = in.Native
	}
	if in.Password != nil {
		hash, err := s.hasher.Hash(*in.Password)
		if err != nil {
			return nil, err
		}
		patch.PasswordHash = &hash
	}

	user, err := s.users.Update(ctx, id, patch)
	if err != nil {
		return nil, mapRepoError(err, "update user")
	}
	return sanitizeUser(user), nil
}

func (s *userService) Delete(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.users.Delete(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, "delete user")
	}
	return sanitizeUser(user), nil
}

// RoleOf returns the role currently stored for the user, ignoring whatever a token claims.
func (s *userService) RoleOf(ctx context.Context, id string) (domain.Role, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return "", mapRepoError(err, "get user role")
	}
	return user.Role, nil
}

// ensureUsernameFree fails with ErrConflict when another user (not exceptID) owns username.
// The store's unique index stays authoritative; this only produces the friendly early error.
func (s *userService) ensureUsernameFree(ctx context.Context, username, exceptID string) error {
	existing, err := s.users.GetByUsername(ctx, username)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return nil
	case err != nil:
		return fmt.Errorf("lookup user: %w", err)
	case existing.ID != exceptID:
		return ErrConflict
	}
	return nil
}

func normalizeUpdate(in UpdateUserInput) UpdateUserInput {
	present := func(p *string, trim bool) *string {
		if p == nil {
			return nil
		}
		v := *p
		if trim {
			v = strings.TrimSpace(v)
		}
		if v == "" {
			return nil
		}
		return &v
	}
	return UpdateUserInput{
		Username: present(in.Username, true),
		Password: present(in.Password, false),
		Role:     present(in.Role, true),
		Native:   present(in.Native, false),
	}
}

func mapRepoError(err error, op string) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, repository.ErrDuplicateUsername):
		return ErrConflict
	}
	return fmt.Errorf("%s: %w", op, err)
}
