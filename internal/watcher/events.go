package watcher

import (
	"fmt"

	"github.com/crabnebula-dev/gitbutler/internal/domain"
)

// Topic suffixes under project://<id>/.
const (
	TopicFetch           = "git/fetch"
	TopicHead            = "git/head"
	TopicActivity        = "git/activity"
	TopicWorktreeChanges = "worktree_changes"
)

// Topic builds the event name for a project topic.
func Topic(projectID, suffix string) string {
	return fmt.Sprintf("project://%s/%s", projectID, suffix)
}

type emptyPayload struct{}

type headPayload struct {
	Head string `json:"head"`
}

type worktreePayload struct {
	Paths []string `json:"paths"`
}

// ToWireEvent maps a change onto the event clients receive.
func ToWireEvent(change domain.Change) (domain.WireEvent, error) {
	switch c := change.(type) {
	case domain.FetchCompleted:
		return domain.NewWireEvent(Topic(c.Project, TopicFetch), emptyPayload{})
	case domain.HeadMoved:
		return domain.NewWireEvent(Topic(c.Project, TopicHead), headPayload{Head: c.Head})
	case domain.GitActivity:
		return domain.NewWireEvent(Topic(c.Project, TopicActivity), emptyPayload{})
	case domain.WorktreeChanged:
		paths := c.Paths
		if paths == nil {
			paths = []string{}
		}
		return domain.NewWireEvent(Topic(c.Project, TopicWorktreeChanges), worktreePayload{Paths: paths})
	default:
		return domain.WireEvent{}, fmt.Errorf("unsupported change %T", change)
	}
}
