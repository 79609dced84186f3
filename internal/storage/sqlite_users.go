package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/kaira-dev/kaira/internal/models"
)

type sqliteUserRepo struct {
	db *sql.DB
}

func (r *sqliteUserRepo) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, username, password_hash, role, last_login, is_logged_in, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		user.ID, user.Username, user.PasswordHash, user.Role,
		nullTime(user.LastLogin), boolToInt(user.IsLoggedIn),
		user.CreatedAt, user.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *sqliteUserRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	return r.getBy(ctx, "id", id)
}

func (r *sqliteUserRepo) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.getBy(ctx, "username", username)
}

func (r *sqliteUserRepo) getBy(ctx context.Context, column, value string) (*models.User, error) {
	query := fmt.Sprintf(`
		SELECT id, username, password_hash, role, last_login, is_logged_in, created_at, updated_at
		FROM users WHERE %s = ?
	`, column)

	user := &models.User{}
	var lastLogin sql.NullTime
	var loggedIn int
	err := r.db.QueryRowContext(ctx, query, value).Scan(
		&user.ID, &user.Username, &user.PasswordHash, &user.Role,
		&lastLogin, &loggedIn, &user.CreatedAt, &user.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		//nolint:nilnil
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by %s: %w", column, err)
	}
	if lastLogin.Valid {
		user.LastLogin = &lastLogin.Time
	}
	user.IsLoggedIn = loggedIn != 0
	return user, nil
}

func (r *sqliteUserRepo) SetLoginState(ctx context.Context, id string, loggedIn bool, at time.Time) error {
	var result sql.Result
	var err error
	if loggedIn {
		result, err = r.db.ExecContext(ctx,
			"UPDATE users SET is_logged_in = 1, last_login = ?, updated_at = ? WHERE id = ?",
			at, at, id,
		)
	} else {
		result, err = r.db.ExecContext(ctx,
			"UPDATE users SET is_logged_in = 0, updated_at = ? WHERE id = ?",
			at, id,
		)
	}
	if err != nil {
		return fmt.Errorf("set login state: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *sqliteUserRepo) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?",
		passwordHash, time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *sqliteUserRepo) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return count, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
