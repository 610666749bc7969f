package model

import "time"

// RoleType is the closed set of role categories. The type, not the
// role's display name, is what ends up in token claims and what the
// access-control check compares against.
type RoleType string

const (
	RoleAdmin  RoleType = "ADMIN"
	RoleUser   RoleType = "USER"
	RoleClient RoleType = "CLIENT"
)

// ValidRoleType reports whether s is one of the known role types.
func ValidRoleType(s string) bool {
	switch RoleType(s) {
	case RoleAdmin, RoleUser, RoleClient:
		return true
	}
	return false
}

// Role represents a row in the `roles` table: a named bundle of
// permission strings owned by a single project. Key is unique across
// all projects and serves as a stable external reference.
//
// Deleting a project cascades to its roles; deleting a role nulls out
// the role_uuid of referencing users instead of deleting them.
type Role struct {
	UUID        string     // roles.uuid
	Name        string     // roles.name (display name)
	Key         string     // roles.key (globally unique)
	Type        RoleType   // roles.type
	Description string     // roles.description
	Permissions []string   // roles.permissions (JSON array column)
	ProjectUUID string     // roles.project_uuid
	CreatedAt   time.Time  // roles.created_at
	UpdatedAt   time.Time  // roles.updated_at
	DeletedAt   *time.Time // roles.deleted_at (soft delete)
}
