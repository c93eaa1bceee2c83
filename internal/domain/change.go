package domain

import "io"

type ChangeKind string

const (
	ChangeFetchCompleted  ChangeKind = "fetch_completed"
	ChangeHeadMoved       ChangeKind = "head_moved"
	ChangeGitActivity     ChangeKind = "git_activity"
	ChangeWorktreeChanged ChangeKind = "worktree_changed"
)

// Change is a notification about one watched project. The set of variants is
// closed: only the types in this file implement it.
type Change interface {
	ProjectID() string
	Kind() ChangeKind
	isChange()
}

type FetchCompleted struct {
	Project string
}

type HeadMoved struct {
	Project string
	Head    string
}

type GitActivity struct {
	Project string
}

type WorktreeChanged struct {
	Project string
	Paths   []string
}

func (c FetchCompleted) ProjectID() string  { return c.Project }
func (c HeadMoved) ProjectID() string       { return c.Project }
func (c GitActivity) ProjectID() string     { return c.Project }
func (c WorktreeChanged) ProjectID() string { return c.Project }

func (FetchCompleted) Kind() ChangeKind  { return ChangeFetchCompleted }
func (HeadMoved) Kind() ChangeKind       { return ChangeHeadMoved }
func (GitActivity) Kind() ChangeKind     { return ChangeGitActivity }
func (WorktreeChanged) Kind() ChangeKind { return ChangeWorktreeChanged }

func (FetchCompleted) isChange()  {}
func (HeadMoved) isChange()       {}
func (GitActivity) isChange()     {}
func (WorktreeChanged) isChange() {}

// ChangeSource starts a background watcher for a project directory and calls
// onChange for every change until the returned handle is closed.
type ChangeSource interface {
	OnChange(projectID, path string, onChange func(Change)) (io.Closer, error)
}
