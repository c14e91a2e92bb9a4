package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	msqlite "modernc.org/sqlite"
	sqlitelib "modernc.org/sqlite/lib"

	"user-admin/internal/domain"
	"user-admin/internal/repository"
)

const userColumns = `id, username, password_hash, role, native, created_at, updated_at`

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) repository.UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Init(ctx context.Context) error {
	if err := applyMigrations(r.db); err != nil {
		return fmt.Errorf("init users schema: %w", err)
	}
	return nil
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	now := time.Now().UTC()
	user.ID = uuid.NewString()
	user.CreatedAt = now
	user.UpdatedAt = now
	if user.Role == "" {
		user.Role = domain.RoleUser
	}

	_, err := r.db.ExecContext(ctx, `
INSERT INTO users (id, username, password_hash, role, native, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Username,
		user.PasswordHash,
		string(user.Role),
		user.Native,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrDuplicateUsername
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+userColumns+`
FROM users
WHERE username = ?`,
		username,
	)
	return scanUser(row)
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+userColumns+`
FROM users
WHERE id = ?`,
		id,
	)
	return scanUser(row)
}

func (r *UserRepository) List(ctx context.Context, filter repository.UserFilter) ([]domain.User, error) {
	roles := filter.Roles
	if len(roles) == 0 {
		roles = domain.AllRoles
	}

	placeholders := make([]string, len(roles))
	args := make([]any, 0, len(roles)+1)
	for i, role := range roles {
		placeholders[i] = "?"
		args = append(args, string(role))
	}

	query := fmt.Sprintf(`
SELECT %s
FROM users
WHERE role IN (%s)`, userColumns, strings.Join(placeholders, ","))

	if filter.UsernameContains != "" {
		query += ` AND username LIKE ? ESCAPE '\'`
		args = append(args, "%"+escapeLike(filter.UsernameContains)+"%")
	}
	query += ` ORDER BY created_at ASC, rowid ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	users := []domain.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return users, nil
}

func (r *UserRepository) Update(ctx context.Context, id string, patch repository.UserPatch) (*domain.User, error) {
	if patch.Empty() {
		return r.GetByID(ctx, id)
	}

	var (
		sets []string
		args []any
	)
	if patch.Username != nil {
		sets = append(sets, "username=?")
		args = append(args, *patch.Username)
	}
	if patch.PasswordHash != nil {
		sets = append(sets, "password_hash=?")
		args = append(args, *patch.PasswordHash)
	}
	if patch.Role != nil {
		sets = append(sets, "role=?")
		args = append(args, string(*patch.Role))
	}
	if patch.Native != nil {
		sets = append(sets, "native=?")
		args = append(args, *patch.Native)
	}
	sets = append(sets, "updated_at=?")
	args = append(args, time.Now().UTC(), id)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `UPDATE users SET `+strings.Join(sets, ", ")+` WHERE id=?`, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, repository.ErrDuplicateUsername
		}
		return nil, fmt.Errorf("update user: %w", err)
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("user update rows affected: %w", err)
	}
	if aff == 0 {
		return nil, repository.ErrNotFound
	}

	user, err := scanUser(tx.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit user update: %w", err)
	}
	return user, nil
}

func (r *UserRepository) Delete(ctx context.Context, id string) (*domain.User, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	user, err := scanUser(tx.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id=?`, id); err != nil {
		return nil, fmt.Errorf("delete user: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit user delete: %w", err)
	}
	return user, nil
}

// Snapshot writes a consistent copy of the database to dest, replacing any existing file.
func (r *UserRepository) Snapshot(ctx context.Context, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	if err := os.Remove(dest); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove stale snapshot: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, `VACUUM INTO ?`, dest); err != nil {
		return fmt.Errorf("vacuum into %s: %w", dest, err)
	}
	return nil
}

func (r *UserRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func scanUser(row interface {
	Scan(dest ...any) error
}) (*domain.User, error) {
	var (
		user domain.User
		role string
	)
	if err := row.Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&role,
		&user.Native,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	user.Role = domain.Role(role)
	return &user, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code() == sqlitelib.SQLITE_CONSTRAINT_UNIQUE ||
			sqliteErr.Code() == sqlitelib.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
