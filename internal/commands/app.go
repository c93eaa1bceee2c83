// Package commands is the table of named operations served by the dispatcher.
//
// Every command takes a typed params struct decoded from the request and the
// shared *App holding the collaborators. Table builds the name to handler
// mapping once at startup.
package commands

import (
	"context"

	"github.com/crabnebula-dev/gitbutler/internal/dispatch"
	"github.com/crabnebula-dev/gitbutler/internal/domain"
)

// Git is the subset of repository operations the commands need.
type Git interface {
	IsRepository(ctx context.Context, dir string) bool
	Head(ctx context.Context, dir string) (string, error)
	RemoteBranches(ctx context.Context, dir string) ([]string, error)
	GetConfig(ctx context.Context, dir, key string) (*string, error)
	SetConfig(ctx context.Context, dir, key, value string) error
	IndexSize(ctx context.Context, dir string) (int, error)
}

// Watchers starts the background watcher of a project.
type Watchers interface {
	SetActive(ctx context.Context, projectID, path string) error
}

// App is the shared context handed to every command.
type App struct {
	Projects domain.ProjectRepository
	Watchers Watchers
	Git      Git
}

// Empty is the result of commands that return nothing; it renders as {}.
type Empty struct{}

// Table returns every command keyed by name.
func Table() map[string]dispatch.HandlerFunc[*App] {
	return map[string]dispatch.HandlerFunc[*App]{
		// Projects
		"add_project":        dispatch.Typed(addProject),
		"get_project":        dispatch.Typed(getProject),
		"list_projects":      dispatch.NoParams(listProjects),
		"update_project":     dispatch.Typed(updateProject),
		"delete_project":     dispatch.Typed(deleteProject),
		"set_project_active": dispatch.Typed(setProjectActive),

		// Git
		"git_head":             dispatch.Typed(gitHead),
		"git_remote_branches":  dispatch.Typed(gitRemoteBranches),
		"git_get_local_config": dispatch.Typed(gitGetLocalConfig),
		"git_set_local_config": dispatch.Typed(gitSetLocalConfig),
		"git_index_size":       dispatch.Typed(gitIndexSize),

		// Branches
		"normalize_branch_name": dispatch.Typed(normalizeBranchName),
	}
}
