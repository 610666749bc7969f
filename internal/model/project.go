package model

import "time"

// Project is the tenant isolation boundary. Every user and role
// belongs to exactly one project; a user's role, when present, must
// belong to the same project as the user.
type Project struct {
	UUID        string     // projects.uuid
	Name        string     // projects.name (unique)
	Description string     // projects.description
	CreatedAt   time.Time  // projects.created_at
	UpdatedAt   time.Time  // projects.updated_at
	DeletedAt   *time.Time // projects.deleted_at (soft delete)
}
