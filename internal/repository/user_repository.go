package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/avmironov/project-auth/internal/model"
)

// UserRepo persists accounts in the 'users' table.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

const userColumns = `uuid,email,name,password_hash,is_active,last_login,
failed_login_attempts,locked_until,role_uuid,project_uuid,created_at,updated_at,deleted_at`

func scanUser(row *sql.Row) (model.User, error) {
	var (
		u           model.User
		lastLogin   sql.NullTime
		lockedUntil sql.NullTime
		roleUUID    sql.NullString
		deletedAt   sql.NullTime
	)
	err := row.Scan(&u.UUID, &u.Email, &u.Name, &u.PasswordHash, &u.IsActive,
		&lastLogin, &u.FailedLoginAttempts, &lockedUntil, &roleUUID,
		&u.ProjectUUID, &u.CreatedAt, &u.UpdatedAt, &deletedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, ErrNotFound
		}
		return model.User{}, err
	}
	if lastLogin.Valid {
		u.LastLogin = &lastLogin.Time
	}
	if lockedUntil.Valid {
		u.LockedUntil = &lockedUntil.Time
	}
	if roleUUID.Valid {
		u.RoleUUID = &roleUUID.String
	}
	if deletedAt.Valid {
		u.DeletedAt = &deletedAt.Time
	}
	return u, nil
}

// Create inserts a new account row. The email is normalized to
// lowercase; a duplicate email maps to ErrEmailExists.
func (r *UserRepo) Create(ctx context.Context, u model.User) error {
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO users (uuid,email,name,password_hash,is_active,role_uuid,project_uuid)
		 VALUES (?,?,?,?,?,?,?)`,
		u.UUID, strings.ToLower(strings.TrimSpace(u.Email)), u.Name, u.PasswordHash,
		u.IsActive, u.RoleUUID, u.ProjectUUID)
	if err != nil {
		if isDuplicate(err) {
			return ErrEmailExists
		}
		return err
	}
	return nil
}

// GetActiveByEmail fetches a live account by normalized email. Rows
// that are inactive or soft-deleted are treated as absent.
func (r *UserRepo) GetActiveByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? AND is_active=1 AND deleted_at IS NULL LIMIT 1",
		email))
}

// GetActiveByUUID fetches a live account by id.
func (r *UserRepo) GetActiveByUUID(ctx context.Context, uuid string) (model.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE uuid=? AND is_active=1 AND deleted_at IS NULL LIMIT 1",
		uuid))
}

// GetActiveInProject fetches a live account by id, constrained to the
// project carried in the token. A user resolved outside its project
// would break tenant isolation, so the project is part of the lookup.
func (r *UserRepo) GetActiveInProject(ctx context.Context, uuid, projectUUID string) (model.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE uuid=? AND project_uuid=? AND is_active=1 AND deleted_at IS NULL LIMIT 1",
		uuid, projectUUID))
}

// RecordLoginFailure bumps the failure counter and, when the counter
// reaches maxAttempts, stamps locked_until in the same statement.
// MySQL applies SET assignments left to right, so the IF sees the
// already incremented counter; two concurrent failures can never both
// observe the old count and under-count toward the threshold.
func (r *UserRepo) RecordLoginFailure(ctx context.Context, uuid string, maxAttempts int, lockUntil time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		`UPDATE users
		 SET failed_login_attempts = failed_login_attempts + 1,
		     locked_until = IF(failed_login_attempts >= ?, ?, locked_until)
		 WHERE uuid=? AND deleted_at IS NULL`,
		maxAttempts, lockUntil.UTC(), uuid)
	return err
}

// RecordLoginSuccess resets the failure counter, clears any lock and
// stamps last_login, all in one statement.
func (r *UserRepo) RecordLoginSuccess(ctx context.Context, uuid string, at time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		`UPDATE users
		 SET failed_login_attempts = 0, locked_until = NULL, last_login = ?
		 WHERE uuid=? AND deleted_at IS NULL`,
		at.UTC(), uuid)
	return err
}
