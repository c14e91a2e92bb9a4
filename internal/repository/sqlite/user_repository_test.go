package sqlite

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"user-admin/internal/domain"
	"user-admin/internal/repository"
)

func newTestRepository(t *testing.T) repository.UserRepository {
	t.Helper()

	db, err := Open(filepath.Join(t.TempDir(), "users.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repo := NewUserRepository(db)
	require.NoError(t, repo.Init(context.Background()))
	return repo
}

func createUser(t *testing.T, repo repository.UserRepository, username string, role domain.Role) *domain.User {
	t.Helper()
	user := &domain.User{
		Username:     username,
		PasswordHash: "hash-" + username,
		Role:         role,
		Native:       "English",
	}
	require.NoError(t, repo.Create(context.Background(), user))
	return user
}

func strPtr(s string) *string { return &s }

func TestUserRepository_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	created := createUser(t, repo, "a@b.com", domain.RoleAdmin)
	require.NotEmpty(t, created.ID)
	require.False(t, created.CreatedAt.IsZero())

	byName, err := repo.GetByUsername(ctx, "a@b.com")
	require.NoError(t, err)
	require.Equal(t, created.ID, byName.ID)
	require.Equal(t, domain.RoleAdmin, byName.Role)
	require.Equal(t, "hash-a@b.com", byName.PasswordHash)

	byID, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, "a@b.com", byID.Username)
	require.Equal(t, "English", byID.Native)
}

func TestUserRepository_DefaultRole(t *testing.T) {
	repo := newTestRepository(t)
	created := createUser(t, repo, "plain@b.com", "")
	require.Equal(t, domain.RoleUser, created.Role)
}

func TestUserRepository_NotFound(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	_, err := repo.GetByUsername(ctx, "missing@b.com")
	require.ErrorIs(t, err, repository.ErrNotFound)

	_, err = repo.GetByID(ctx, "missing")
	require.ErrorIs(t, err, repository.ErrNotFound)

	_, err = repo.Update(ctx, "missing", repository.UserPatch{Native: strPtr("x")})
	require.ErrorIs(t, err, repository.ErrNotFound)

	_, err = repo.Delete(ctx, "missing")
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestUserRepository_DuplicateUsername(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	createUser(t, repo, "dup@b.com", domain.RoleUser)
	err := repo.Create(ctx, &domain.User{Username: "dup@b.com", PasswordHash: "x", Role: domain.RoleUser})
	require.ErrorIs(t, err, repository.ErrDuplicateUsername)

	other := createUser(t, repo, "other@b.com", domain.RoleUser)
	_, err = repo.Update(ctx, other.ID, repository.UserPatch{Username: strPtr("dup@b.com")})
	require.ErrorIs(t, err, repository.ErrDuplicateUsername)
}

func TestUserRepository_List(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	createUser(t, repo, "root@corp.com", domain.RoleSuperAdmin)
	createUser(t, repo, "Alice@corp.com", domain.RoleAdmin)
	createUser(t, repo, "bob@home.net", domain.RoleUser)
	createUser(t, repo, "under_score@home.net", domain.RoleUser)

	tests := []struct {
		name   string
		filter repository.UserFilter
		want   []string
	}{
		{
			name: "all roles by default",
			want: []string{"root@corp.com", "Alice@corp.com", "bob@home.net", "under_score@home.net"},
		},
		{
			name:   "role subset",
			filter: repository.UserFilter{Roles: []domain.Role{domain.RoleAdmin, domain.RoleSuperAdmin}},
			want:   []string{"root@corp.com", "Alice@corp.com"},
		},
		{
			name:   "case-insensitive substring",
			filter: repository.UserFilter{UsernameContains: "ALICE"},
			want:   []string{"Alice@corp.com"},
		},
		{
			name:   "combined",
			filter: repository.UserFilter{Roles: []domain.Role{domain.RoleUser}, UsernameContains: "home"},
			want:   []string{"bob@home.net", "under_score@home.net"},
		},
		{
			name:   "wildcards are literal",
			filter: repository.UserFilter{UsernameContains: "_"},
			want:   []string{"under_score@home.net"},
		},
		{
			name:   "no match",
			filter: repository.UserFilter{UsernameContains: "nobody"},
			want:   []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users, err := repo.List(ctx, tt.filter)
			require.NoError(t, err)

			got := make([]string, 0, len(users))
			for _, u := range users {
				got = append(got, u.Username)
			}
			require.Equal(t, tt.want, got)
		})
	}
}

func TestUserRepository_UpdatePartial(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	created := createUser(t, repo, "a@b.com", domain.RoleAdmin)

	updated, err := repo.Update(ctx, created.ID, repository.UserPatch{Native: strPtr("French")})
	require.NoError(t, err)
	require.Equal(t, "French", updated.Native)
	require.Equal(t, "a@b.com", updated.Username)
	require.Equal(t, domain.RoleAdmin, updated.Role)
	require.Equal(t, created.PasswordHash, updated.PasswordHash)

	role := domain.RoleUser
	updated, err = repo.Update(ctx, created.ID, repository.UserPatch{Role: &role, PasswordHash: strPtr("new-hash")})
	require.NoError(t, err)
	require.Equal(t, domain.RoleUser, updated.Role)
	require.Equal(t, "new-hash", updated.PasswordHash)
	require.Equal(t, "French", updated.Native)

	same, err := repo.Update(ctx, created.ID, repository.UserPatch{})
	require.NoError(t, err)
	require.Equal(t, updated.Role, same.Role)
}

func TestUserRepository_Delete(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	created := createUser(t, repo, "gone@b.com", domain.RoleUser)

	deleted, err := repo.Delete(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, "gone@b.com", deleted.Username)

	_, err = repo.GetByID(ctx, created.ID)
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestUserRepository_Snapshot(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	createUser(t, repo, "a@b.com", domain.RoleUser)

	dest := filepath.Join(t.TempDir(), "snap", "users.db")
	require.NoError(t, repo.Snapshot(ctx, dest))
	// a second snapshot replaces the first
	require.NoError(t, repo.Snapshot(ctx, dest))

	db, err := Open(dest)
	require.NoError(t, err)
	defer db.Close()

	got, err := NewUserRepository(db).GetByUsername(ctx, "a@b.com")
	require.NoError(t, err)
	require.Equal(t, domain.RoleUser, got.Role)

	info, err := os.Stat(dest)
	require.NoError(t, err)
	require.Positive(t, info.Size())
}

func TestUserRepository_CreateStorageFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO users").WillReturnError(errors.New("disk I/O error"))

	repo := NewUserRepository(db)
	err = repo.Create(context.Background(), &domain.User{Username: "a@b.com", PasswordHash: "x"})
	require.Error(t, err)
	require.NotErrorIs(t, err, repository.ErrDuplicateUsername)
	require.Contains(t, err.Error(), "insert user")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_CreateUniqueViolationFromDriver(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO users").
		WillReturnError(errors.New("constraint failed: UNIQUE constraint failed: users.username (2067)"))

	repo := NewUserRepository(db)
	err = repo.Create(context.Background(), &domain.User{Username: "a@b.com", PasswordHash: "x"})
	require.ErrorIs(t, err, repository.ErrDuplicateUsername)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_ListQueryFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("FROM users").WillReturnError(errors.New("database is locked"))

	_, err = NewUserRepository(db).List(context.Background(), repository.UserFilter{})
	require.Error(t, err)
	require.NotErrorIs(t, err, repository.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
