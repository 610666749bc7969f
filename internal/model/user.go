package model

import "time"

// User represents an account record as stored in the `users` table.
// Each field corresponds to a column. Accounts are scoped to exactly
// one project and optionally reference a role in the same project.
//
// Lockout bookkeeping lives on the row itself: FailedLoginAttempts
// counts consecutive failures and LockedUntil, when set and in the
// future, means the account is locked. LockedUntil is only ever set
// once the counter reaches the configured maximum and is cleared to
// NULL by any successful login.
//
// Users are soft-deleted: DeletedAt is stamped instead of removing
// the row, so references from historical data stay intact.
type User struct {
	UUID                string     // users.uuid
	Email               string     // users.email (unique, stored lowercase)
	Name                string     // users.name
	PasswordHash        string     // users.password_hash (bcrypt)
	IsActive            bool       // users.is_active
	LastLogin           *time.Time // users.last_login (nullable)
	FailedLoginAttempts int        // users.failed_login_attempts
	LockedUntil         *time.Time // users.locked_until (nullable)
	RoleUUID            *string    // users.role_uuid (nullable, ON DELETE SET NULL)
	ProjectUUID         string     // users.project_uuid
	CreatedAt           time.Time  // users.created_at
	UpdatedAt           time.Time  // users.updated_at
	DeletedAt           *time.Time // users.deleted_at (soft delete)
}

// Locked reports whether the account is locked at the given moment.
// A LockedUntil in the past means the lock has lapsed; it is cleared
// lazily by the next successful login rather than by a background job.
func (u *User) Locked(now time.Time) bool {
	return u.LockedUntil != nil && u.LockedUntil.After(now)
}
