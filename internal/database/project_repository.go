package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/crabnebula-dev/gitbutler/internal/domain"
	"github.com/crabnebula-dev/gitbutler/internal/metrics"
)

const timeLayout = time.RFC3339Nano

const projectColumns = `id, title, description, path, created_at, updated_at`

type ProjectRepo struct {
	db      *DB
	clock   clockwork.Clock
	metrics *metrics.DatabaseMetrics
}

var _ domain.ProjectRepository = (*ProjectRepo)(nil)

func NewProjectRepo(db *DB, clock clockwork.Clock, m *metrics.DatabaseMetrics) *ProjectRepo {
	return &ProjectRepo{db: db, clock: clock, metrics: m}
}

// track returns a func that records the query outcome when called with the
// final error. Not-found and duplicates are normal results, not failures.
func (r *ProjectRepo) track(query string) func(*error) {
	start := r.clock.Now()
	return func(errp *error) {
		err := *errp
		if errors.Is(err, domain.ErrProjectNotFound) || errors.Is(err, domain.ErrProjectAlreadyExists) {
			err = nil
		}
		r.metrics.Observe(query, r.clock.Since(start), err)
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(row rowScanner) (*domain.Project, error) {
	var (
		p                domain.Project
		id               string
		created, updated string
	)
	if err := row.Scan(&id, &p.Title, &p.Description, &p.Path, &created, &updated); err != nil {
		return nil, err
	}

	var err error
	if p.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("invalid project id %q: %w", id, err)
	}
	if p.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
		return nil, fmt.Errorf("invalid created_at: %w", err)
	}
	if p.UpdatedAt, err = time.Parse(timeLayout, updated); err != nil {
		return nil, fmt.Errorf("invalid updated_at: %w", err)
	}
	return &p, nil
}

// Add registers the project at path. An empty title defaults to the directory name.
func (r *ProjectRepo) Add(ctx context.Context, path, title string) (_ *domain.Project, err error) {
	defer r.track("project_add")(&err)

	if title == "" {
		title = filepath.Base(path)
	}

	var exists int
	err = r.db.QueryRowContext(ctx, `SELECT 1 FROM projects WHERE path = ?`, path).Scan(&exists)
	switch {
	case err == nil:
		return nil, fmt.Errorf("%w: %s", domain.ErrProjectAlreadyExists, path)
	case !errors.Is(err, sql.ErrNoRows):
		return nil, fmt.Errorf("failed to check project path: %w", err)
	}

	now := r.clock.Now().UTC()
	p := &domain.Project{
		ID:        uuid.New(),
		Title:     title,
		Path:      path,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO projects (`+projectColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID.String(), p.Title, p.Description, p.Path, now.Format(timeLayout), now.Format(timeLayout),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert project: %w", err)
	}
	return p, nil
}

func (r *ProjectRepo) Get(ctx context.Context, id uuid.UUID) (_ *domain.Project, err error) {
	defer r.track("project_get")(&err)
	return r.get(ctx, id)
}

func (r *ProjectRepo) get(ctx context.Context, id uuid.UUID) (*domain.Project, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = ?`, id.String())
	p, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrProjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return p, nil
}

func (r *ProjectRepo) List(ctx context.Context) (_ []domain.Project, err error) {
	defer r.track("project_list")(&err)

	rows, err := r.db.QueryContext(ctx, `SELECT `+projectColumns+` FROM projects ORDER BY title, created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	projects := []domain.Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	return projects, nil
}

func (r *ProjectRepo) Update(ctx context.Context, update domain.ProjectUpdate) (_ *domain.Project, err error) {
	defer r.track("project_update")(&err)

	p, err := r.get(ctx, update.ID)
	if err != nil {
		return nil, err
	}

	if update.Title != nil {
		p.Title = *update.Title
	}
	if update.Description != nil {
		p.Description = *update.Description
	}
	p.UpdatedAt = r.clock.Now().UTC()

	_, err = r.db.ExecContext(ctx,
		`UPDATE projects SET title = ?, description = ?, updated_at = ? WHERE id = ?`,
		p.Title, p.Description, p.UpdatedAt.Format(timeLayout), p.ID.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update project: %w", err)
	}
	return p, nil
}

// Delete removes the project. Deleting an unknown project is not an error.
func (r *ProjectRepo) Delete(ctx context.Context, id uuid.UUID) (err error) {
	defer r.track("project_delete")(&err)

	if _, err = r.db.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id.String()); err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	return nil
}
