// Package git reads and writes repository state by running the git binary.
package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/crabnebula-dev/gitbutler/internal/platform/retry"
)

// CommandError is returned when git exits unsuccessfully.
type CommandError struct {
	Args     []string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *CommandError) Error() string {
	detail := e.Stderr
	if detail == "" {
		detail = e.Err.Error()
	}
	return fmt.Sprintf("git %s: %s", strings.Join(e.Args, " "), detail)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// Runner executes git in a project directory.
type Runner struct {
	binary    string
	lockRetry retry.Policy
}

func NewRunner(binary string) *Runner {
	if binary == "" {
		binary = "git"
	}
	return &Runner{
		binary: binary,
		lockRetry: retry.Policy{
			MaxAttempts:    5,
			InitialBackoff: 20 * time.Millisecond,
			MaxBackoff:     200 * time.Millisecond,
			OnRetry: func(attempt int, err error, backoff time.Duration) {
				slog.Debug("git lock busy, retrying", "attempt", attempt, "backoff", backoff, "error", err)
			},
		},
	}
}

func (r *Runner) run(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, r.binary, append([]string{"-C", dir}, args...)...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		code := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		}
		return "", &CommandError{
			Args:     args,
			ExitCode: code,
			Stderr:   strings.TrimSpace(stderr.String()),
			Err:      err,
		}
	}
	return stdout.String(), nil
}

// isLockContention reports whether git failed because another process holds
// one of the repository's lock files.
func isLockContention(err error) bool {
	var cmdErr *CommandError
	if !errors.As(err, &cmdErr) {
		return false
	}
	return strings.Contains(cmdErr.Stderr, ".lock") &&
		(strings.Contains(cmdErr.Stderr, "could not lock") || strings.Contains(cmdErr.Stderr, "File exists"))
}

func exitCode(err error) int {
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr.ExitCode
	}
	return -1
}

// IsRepository reports whether dir is inside a git work tree.
func (r *Runner) IsRepository(ctx context.Context, dir string) bool {
	out, err := r.run(ctx, dir, "rev-parse", "--is-inside-work-tree")
	return err == nil && strings.TrimSpace(out) == "true"
}

// Head returns the full ref HEAD points at, or the commit id when detached.
func (r *Runner) Head(ctx context.Context, dir string) (string, error) {
	out, err := r.run(ctx, dir, "symbolic-ref", "-q", "HEAD")
	if err == nil {
		return strings.TrimSpace(out), nil
	}
	if exitCode(err) != 1 {
		return "", err
	}

	out, err = r.run(ctx, dir, "rev-parse", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// RemoteBranches lists remote-tracking branches as "<remote>/<branch>",
// excluding the symbolic <remote>/HEAD entries.
func (r *Runner) RemoteBranches(ctx context.Context, dir string) ([]string, error) {
	out, err := r.run(ctx, dir, "for-each-ref", "--format=%(refname)", "refs/remotes")
	if err != nil {
		return nil, err
	}

	branches := []string{}
	for _, line := range strings.Split(out, "\n") {
		ref := strings.TrimSpace(line)
		if ref == "" || strings.HasSuffix(ref, "/HEAD") {
			continue
		}
		branches = append(branches, strings.TrimPrefix(ref, "refs/remotes/"))
	}
	return branches, nil
}

// GetConfig reads a key from the repository's local config. A missing key
// yields nil.
func (r *Runner) GetConfig(ctx context.Context, dir, key string) (*string, error) {
	out, err := r.run(ctx, dir, "config", "--local", "--get", key)
	if err != nil {
		if exitCode(err) == 1 {
			return nil, nil
		}
		return nil, err
	}
	value := strings.TrimRight(out, "\n")
	return &value, nil
}

// SetConfig writes a key to the repository's local config. Writes that race
// another writer for config.lock are retried.
func (r *Runner) SetConfig(ctx context.Context, dir, key, value string) error {
	return retry.DoVoid(ctx, r.lockRetry, isLockContention, func(ctx context.Context) error {
		_, err := r.run(ctx, dir, "config", "--local", key, value)
		return err
	})
}

// IndexSize returns the number of entries in the index.
func (r *Runner) IndexSize(ctx context.Context, dir string) (int, error) {
	out, err := r.run(ctx, dir, "ls-files", "--cached", "-z")
	if err != nil {
		return 0, err
	}

	n := 0
	for _, entry := range strings.Split(out, "\x00") {
		if entry != "" {
			n++
		}
	}
	return n, nil
}
