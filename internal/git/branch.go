package git

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	forbiddenRe = regexp.MustCompile(`[|+^~<>\\:*?\[]`)
	spaceRe     = regexp.MustCompile(`\s+`)
	edgeRe      = regexp.MustCompile(`^[-/.]+|[-/.]+$`)
)

// NormalizeBranchName turns free text into a name usable under refs/heads/.
// Characters git rejects become hyphens, whitespace runs become a single
// hyphen and leading or trailing separators are trimmed.
func NormalizeBranchName(name string) (string, error) {
	t := transform.Chain(norm.NFC, runes.Remove(runes.In(unicode.Cc)))
	result, _, err := transform.String(t, name)
	if err != nil {
		return "", fmt.Errorf("normalize %q: %w", name, err)
	}

	result = forbiddenRe.ReplaceAllString(result, "-")
	result = spaceRe.ReplaceAllString(result, "-")
	result = edgeRe.ReplaceAllString(result, "")

	if err := validateRefName(result); err != nil {
		return "", fmt.Errorf("failed to create valid branch name from %q: %w", name, err)
	}
	return result, nil
}

// validateRefName applies the check-ref-format rules that survive
// normalization.
func validateRefName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("name is empty")
	case name == "@":
		return fmt.Errorf("name cannot be @")
	case strings.Contains(name, ".."):
		return fmt.Errorf("name cannot contain ..")
	case strings.Contains(name, "@{"):
		return fmt.Errorf("name cannot contain @{")
	case strings.Contains(name, "//"):
		return fmt.Errorf("name cannot contain empty components")
	}

	for _, part := range strings.Split(name, "/") {
		if strings.HasPrefix(part, ".") {
			return fmt.Errorf("component %q cannot start with a dot", part)
		}
		if strings.HasSuffix(part, ".lock") {
			return fmt.Errorf("component %q cannot end with .lock", part)
		}
	}
	return nil
}
