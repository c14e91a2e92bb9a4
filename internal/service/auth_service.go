package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"user-admin/internal/auth"
	"user-admin/internal/domain"
	"user-admin/internal/repository"
)

// RegisterInput is the self-registration payload.
type RegisterInput struct {
	Username string `json:"username" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=15"`
}

// LoginInput shares the registration schema.
type LoginInput RegisterInput

// LoginResult carries the issued token and the authenticated user.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	User      *domain.User
}

// AuthService handles the public registration and login flows.
type AuthService interface {
	Register(ctx context.Context, in RegisterInput) (*domain.User, error)
	Login(ctx context.Context, in LoginInput) (*LoginResult, error)
}

type authService struct {
	users  repository.UserRepository
	hasher *auth.PasswordHasher
	tokens *auth.TokenManager

	dummyOnce sync.Once
	dummyHash string
}

func NewAuthService(users repository.UserRepository, hasher *auth.PasswordHasher, tokens *auth.TokenManager) AuthService {
	return &authService{
		users:  users,
		hasher: hasher,
		tokens: tokens,
	}
}

func (s *authService) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	if err := validateInput(in); err != nil {
		return nil, err
	}

	if _, err := s.users.GetByUsername(ctx, in.Username); err == nil {
		return nil, ErrConflict
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		Username:     in.Username,
		PasswordHash: hash,
		Role:         domain.RoleUser,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateUsername) {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	return sanitizeUser(user), nil
}

func (s *authService) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	in.Username = strings.TrimSpace(in.Username)
	if err := validateInput(in); err != nil {
		return nil, err
	}

	user, err := s.users.GetByUsername(ctx, in.Username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// burn the same hashing time as a real comparison
			s.hasher.Verify(in.Password, s.dummyDigest())
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	if !s.hasher.Verify(in.Password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	token, claims, err := s.tokens.Issue(user.ID, user.Username, user.Role)
	if err != nil {
		return nil, err
	}

	return &LoginResult{
		Token:     token,
		ExpiresAt: claims.ExpiresAt.Time,
		User:      sanitizeUser(user),
	}, nil
}

func (s *authService) dummyDigest() string {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = s.hasher.Hash("dummy-password")
	})
	return s.dummyHash
}

func sanitizeUser(user *domain.User) *domain.User {
	if user == nil {
		return nil
	}
	clean := *user
	clean.PasswordHash = ""
	return &clean
}
