package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/avmironov/project-auth/internal/model"
)

// RoleRepo persists roles in the 'roles' table. The permissions
// column holds a JSON array of permission strings.
type RoleRepo struct{ DB *sql.DB }

func NewRoleRepo(db *sql.DB) *RoleRepo { return &RoleRepo{DB: db} }

const roleColumns = `uuid,name,` + "`key`" + `,type,description,permissions,project_uuid,created_at,updated_at`

func scanRole(scan func(dest ...any) error) (model.Role, error) {
	var (
		ro    model.Role
		perms []byte
	)
	err := scan(&ro.UUID, &ro.Name, &ro.Key, &ro.Type, &ro.Description,
		&perms, &ro.ProjectUUID, &ro.CreatedAt, &ro.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Role{}, ErrNotFound
		}
		return model.Role{}, err
	}
	if len(perms) > 0 {
		if err := json.Unmarshal(perms, &ro.Permissions); err != nil {
			return model.Role{}, err
		}
	}
	if ro.Permissions == nil {
		ro.Permissions = []string{}
	}
	return ro, nil
}

// GetByUUID fetches a live role by id.
func (r *RoleRepo) GetByUUID(ctx context.Context, uuid string) (model.Role, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+roleColumns+" FROM roles WHERE uuid=? AND deleted_at IS NULL LIMIT 1", uuid)
	return scanRole(row.Scan)
}

// GetByTypeInProject fetches a project's role of the given type. Used
// to resolve the default USER role during registration.
func (r *RoleRepo) GetByTypeInProject(ctx context.Context, projectUUID string, t model.RoleType) (model.Role, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+roleColumns+" FROM roles WHERE project_uuid=? AND type=? AND deleted_at IS NULL LIMIT 1",
		projectUUID, string(t))
	return scanRole(row.Scan)
}

// ListByProject returns all live roles of a project.
func (r *RoleRepo) ListByProject(ctx context.Context, projectUUID string) ([]model.Role, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+roleColumns+" FROM roles WHERE project_uuid=? AND deleted_at IS NULL ORDER BY created_at",
		projectUUID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []model.Role
	for rows.Next() {
		ro, err := scanRole(rows.Scan)
		if err != nil {
			return nil, err
		}
		roles = append(roles, ro)
	}
	return roles, rows.Err()
}

// Create inserts a role. A colliding key maps to ErrKeyExists.
func (r *RoleRepo) Create(ctx context.Context, ro model.Role) error {
	perms, err := json.Marshal(ro.Permissions)
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx,
		"INSERT INTO roles (uuid,name,`key`,type,description,permissions,project_uuid) VALUES (?,?,?,?,?,?,?)",
		ro.UUID, ro.Name, ro.Key, string(ro.Type), ro.Description, perms, ro.ProjectUUID)
	if err != nil {
		if isDuplicate(err) {
			return ErrKeyExists
		}
		return err
	}
	return nil
}

// Update rewrites the mutable fields of a role. The key and owning
// project are stable external references and stay untouched.
func (r *RoleRepo) Update(ctx context.Context, ro model.Role) error {
	perms, err := json.Marshal(ro.Permissions)
	if err != nil {
		return err
	}
	res, err := r.DB.ExecContext(ctx,
		"UPDATE roles SET name=?, type=?, description=?, permissions=?, updated_at=NOW() WHERE uuid=? AND deleted_at IS NULL",
		ro.Name, string(ro.Type), ro.Description, perms, ro.UUID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// SoftDelete marks a role deleted and, in the same transaction, nulls
// out the role reference of every user that pointed at it. Users are
// never deleted with their role.
func (r *RoleRepo) SoftDelete(ctx context.Context, uuid string) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		"UPDATE roles SET deleted_at=NOW() WHERE uuid=? AND deleted_at IS NULL", uuid)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE users SET role_uuid=NULL WHERE role_uuid=?", uuid); err != nil {
		return err
	}
	return tx.Commit()
}
