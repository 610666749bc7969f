package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/avmironov/project-auth/internal/model"
)

// ProjectRepo persists tenants in the 'projects' table.
type ProjectRepo struct{ DB *sql.DB }

func NewProjectRepo(db *sql.DB) *ProjectRepo { return &ProjectRepo{DB: db} }

func scanProject(row *sql.Row) (model.Project, error) {
	var (
		p    model.Project
		desc sql.NullString
	)
	err := row.Scan(&p.UUID, &p.Name, &desc, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Project{}, ErrNotFound
		}
		return model.Project{}, err
	}
	p.Description = desc.String
	return p, nil
}

// GetByUUID fetches a live project by id.
func (r *ProjectRepo) GetByUUID(ctx context.Context, uuid string) (model.Project, error) {
	return scanProject(r.DB.QueryRowContext(ctx,
		"SELECT uuid,name,description,created_at,updated_at FROM projects WHERE uuid=? AND deleted_at IS NULL LIMIT 1",
		uuid))
}

// GetByName fetches a live project by its unique name.
func (r *ProjectRepo) GetByName(ctx context.Context, name string) (model.Project, error) {
	return scanProject(r.DB.QueryRowContext(ctx,
		"SELECT uuid,name,description,created_at,updated_at FROM projects WHERE name=? AND deleted_at IS NULL LIMIT 1",
		name))
}

// Create inserts a project.
func (r *ProjectRepo) Create(ctx context.Context, p model.Project) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO projects (uuid,name,description) VALUES (?,?,?)",
		p.UUID, p.Name, p.Description)
	return err
}
