package git

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeBranchName(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"feature", "feature"},
		{"my new feature", "my-new-feature"},
		{"  spaced\tout  ", "spaced-out"},
		{"fix: crash|on~start", "fix--crash-on-start"},
		{"a^b<c>d\\e*f?g[h", "a-b-c-d-e-f-g-h"},
		{"-/leading and trailing./-", "leading-and-trailing"},
		{"user/topic", "user/topic"},
		{"Größe ändern", "Größe-ändern"},
		{"bell\arings", "bellrings"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := NormalizeBranchName(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeBranchName_Invalid(t *testing.T) {
	for _, input := range []string{"", "   ", "---", "a..b", "topic/.hidden", "branch.lock", "a//b", "x@{1}", "@"} {
		t.Run(input, func(t *testing.T) {
			_, err := NormalizeBranchName(input)
			assert.Error(t, err)
		})
	}
}
