package watcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crabnebula-dev/gitbutler/internal/domain"
)

type unknownChange struct{ domain.GitActivity }

func TestToWireEvent(t *testing.T) {
	tests := []struct {
		name        string
		change      domain.Change
		wantName    string
		wantPayload string
	}{
		{"fetch", domain.FetchCompleted{Project: "42"}, "project://42/git/fetch", `{}`},
		{"head", domain.HeadMoved{Project: "42", Head: "refs/heads/main"}, "project://42/git/head", `{"head":"refs/heads/main"}`},
		{"activity", domain.GitActivity{Project: "7"}, "project://7/git/activity", `{}`},
		{"worktree", domain.WorktreeChanged{Project: "7", Paths: []string{"a.txt", "src/b.go"}}, "project://7/worktree_changes", `{"paths":["a.txt","src/b.go"]}`},
		{"worktree without paths", domain.WorktreeChanged{Project: "7"}, "project://7/worktree_changes", `{"paths":[]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := ToWireEvent(tt.change)
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, ev.Name)
			assert.JSONEq(t, tt.wantPayload, string(ev.Payload))
		})
	}
}

func TestToWireEvent_UnknownVariant(t *testing.T) {
	_, err := ToWireEvent(unknownChange{domain.GitActivity{Project: "1"}})
	assert.Error(t, err)
}

func TestTopic(t *testing.T) {
	assert.Equal(t, "project://abc/git/head", Topic("abc", TopicHead))
}
