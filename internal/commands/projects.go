package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/crabnebula-dev/gitbutler/internal/domain"
)

type addProjectParams struct {
	Path string `json:"path"`
}

func (p *addProjectParams) Validate() error {
	if p.Path == "" {
		return errors.New("path is required")
	}
	return nil
}

func addProject(ctx context.Context, app *App, params addProjectParams) (*domain.Project, error) {
	path, err := filepath.Abs(params.Path)
	if err != nil {
		return nil, fmt.Errorf("invalid path %q: %w", params.Path, err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("path not found: %s", path)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", path)
	}
	if !app.Git.IsRepository(ctx, path) {
		return nil, fmt.Errorf("not a git repository: %s", path)
	}

	return app.Projects.Add(ctx, path, "")
}

type projectIDParams struct {
	ProjectID uuid.UUID `json:"projectId"`
}

func (p *projectIDParams) Validate() error {
	if p.ProjectID == uuid.Nil {
		return errors.New("projectId is required")
	}
	return nil
}

type getProjectParams struct {
	projectIDParams
	NoValidation bool `json:"noValidation"`
}

// getProject returns the project. Unless noValidation is set, the project
// directory must still be a git repository.
func getProject(ctx context.Context, app *App, params getProjectParams) (*domain.Project, error) {
	project, err := app.Projects.Get(ctx, params.ProjectID)
	if err != nil {
		return nil, err
	}
	if !params.NoValidation && !app.Git.IsRepository(ctx, project.Path) {
		return nil, fmt.Errorf("project %s is no longer a git repository: %s", project.ID, project.Path)
	}
	return project, nil
}

func listProjects(ctx context.Context, app *App) ([]domain.Project, error) {
	return app.Projects.List(ctx)
}

type projectUpdate struct {
	ID          uuid.UUID `json:"id"`
	Title       *string   `json:"title"`
	Description *string   `json:"description"`
}

type updateProjectParams struct {
	Project projectUpdate `json:"project"`
}

func (p *updateProjectParams) Validate() error {
	if p.Project.ID == uuid.Nil {
		return errors.New("project.id is required")
	}
	if p.Project.Title != nil && *p.Project.Title == "" {
		return errors.New("project.title must not be empty")
	}
	return nil
}

func updateProject(ctx context.Context, app *App, params updateProjectParams) (*domain.Project, error) {
	return app.Projects.Update(ctx, domain.ProjectUpdate{
		ID:          params.Project.ID,
		Title:       params.Project.Title,
		Description: params.Project.Description,
	})
}

func deleteProject(ctx context.Context, app *App, params projectIDParams) (Empty, error) {
	return Empty{}, app.Projects.Delete(ctx, params.ProjectID)
}

type setProjectActiveParams struct {
	ID uuid.UUID `json:"id"`
}

func (p *setProjectActiveParams) Validate() error {
	if p.ID == uuid.Nil {
		return errors.New("id is required")
	}
	return nil
}

// setProjectActive starts the project's watcher. Repeated calls are no-ops.
func setProjectActive(ctx context.Context, app *App, params setProjectActiveParams) (Empty, error) {
	project, err := app.Projects.Get(ctx, params.ID)
	if err != nil {
		return Empty{}, err
	}
	if err := app.Watchers.SetActive(ctx, project.ID.String(), project.Path); err != nil {
		return Empty{}, err
	}
	return Empty{}, nil
}
