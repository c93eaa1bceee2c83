package commands

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/crabnebula-dev/gitbutler/internal/git"
)

// projectPath resolves the working directory of a project.
func projectPath(ctx context.Context, app *App, id uuid.UUID) (string, error) {
	project, err := app.Projects.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return project.Path, nil
}

func gitHead(ctx context.Context, app *App, params projectIDParams) (string, error) {
	dir, err := projectPath(ctx, app, params.ProjectID)
	if err != nil {
		return "", err
	}
	return app.Git.Head(ctx, dir)
}

func gitRemoteBranches(ctx context.Context, app *App, params projectIDParams) ([]string, error) {
	dir, err := projectPath(ctx, app, params.ProjectID)
	if err != nil {
		return nil, err
	}
	return app.Git.RemoteBranches(ctx, dir)
}

func gitIndexSize(ctx context.Context, app *App, params projectIDParams) (int, error) {
	dir, err := projectPath(ctx, app, params.ProjectID)
	if err != nil {
		return 0, err
	}
	return app.Git.IndexSize(ctx, dir)
}

type gitConfigParams struct {
	ID  uuid.UUID `json:"id"`
	Key string    `json:"key"`
}

func (p *gitConfigParams) Validate() error {
	if p.ID == uuid.Nil {
		return errors.New("id is required")
	}
	if p.Key == "" {
		return errors.New("key is required")
	}
	return nil
}

// gitGetLocalConfig returns the repository-local value of key, or null when unset.
func gitGetLocalConfig(ctx context.Context, app *App, params gitConfigParams) (*string, error) {
	dir, err := projectPath(ctx, app, params.ID)
	if err != nil {
		return nil, err
	}
	return app.Git.GetConfig(ctx, dir, params.Key)
}

type gitSetConfigParams struct {
	gitConfigParams
	Value string `json:"value"`
}

func gitSetLocalConfig(ctx context.Context, app *App, params gitSetConfigParams) (Empty, error) {
	dir, err := projectPath(ctx, app, params.ID)
	if err != nil {
		return Empty{}, err
	}
	return Empty{}, app.Git.SetConfig(ctx, dir, params.Key, params.Value)
}

type normalizeBranchNameParams struct {
	Name string `json:"name"`
}

func normalizeBranchName(_ context.Context, _ *App, params normalizeBranchNameParams) (string, error) {
	return git.NormalizeBranchName(params.Name)
}
