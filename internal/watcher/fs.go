package watcher

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/jonboulle/clockwork"

	"github.com/crabnebula-dev/gitbutler/internal/domain"
)

const gitDirName = ".git"

// FSSource watches project directories with fsnotify. The worktree is watched
// recursively, .git only at its top level, which is where HEAD, FETCH_HEAD,
// the index and the ref logs live.
type FSSource struct {
	clock    clockwork.Clock
	debounce time.Duration
}

// NewFSSource creates a source that coalesces bursts of file events per
// change kind over the debounce window.
func NewFSSource(clock clockwork.Clock, debounce time.Duration) *FSSource {
	return &FSSource{clock: clock, debounce: debounce}
}

// OnChange starts watching path and returns once the watch is in place.
func (s *FSSource) OnChange(projectID, path string, onChange func(domain.Change)) (io.Closer, error) {
	root, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat project dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", root)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	w := &projectWatcher{
		projectID: projectID,
		root:      root,
		gitDir:    filepath.Join(root, gitDirName),
		fsw:       fsw,
		clock:     s.clock,
		debounce:  s.debounce,
		onChange:  onChange,
		timers:    make(map[domain.ChangeKind]clockwork.Timer),
		paths:     make(map[string]struct{}),
		done:      make(chan struct{}),
	}

	if err := w.addTree(root); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	if fi, err := os.Stat(w.gitDir); err == nil && fi.IsDir() {
		if err := fsw.Add(w.gitDir); err != nil {
			_ = fsw.Close()
			return nil, fmt.Errorf("watch %s: %w", w.gitDir, err)
		}
	}

	w.wg.Add(1)
	go w.run()
	return w, nil
}

type projectWatcher struct {
	projectID string
	root      string
	gitDir    string
	fsw       *fsnotify.Watcher
	clock     clockwork.Clock
	debounce  time.Duration
	onChange  func(domain.Change)

	mu     sync.Mutex
	timers map[domain.ChangeKind]clockwork.Timer
	paths  map[string]struct{}

	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
	wg        sync.WaitGroup
}

// addTree watches dir and every directory below it except .git.
func (w *projectWatcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == dir {
				return fmt.Errorf("walk %s: %w", p, err)
			}
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if d.Name() == gitDirName {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(p); err != nil {
			if p == dir {
				return fmt.Errorf("watch %s: %w", p, err)
			}
			slog.Debug("Skipping unwatchable directory", "project_id", w.projectID, "path", p, "error", err)
		}
		return nil
	})
}

func (w *projectWatcher) run() {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			slog.Warn("File watcher error", "project_id", w.projectID, "error", err)
		}
	}
}

func (w *projectWatcher) handle(event fsnotify.Event) {
	if event.Op == fsnotify.Chmod {
		return
	}

	rel, err := filepath.Rel(w.root, event.Name)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return
	}

	gitPrefix := gitDirName + string(filepath.Separator)
	if rel == gitDirName || strings.HasPrefix(rel, gitPrefix) {
		name := strings.TrimPrefix(rel, gitPrefix)
		switch {
		case name == "HEAD":
			w.schedule(domain.ChangeHeadMoved)
		case name == "FETCH_HEAD":
			w.schedule(domain.ChangeFetchCompleted)
		case strings.HasSuffix(name, ".lock"):
			// Transient lock files are followed by a rename onto the real file.
		default:
			w.schedule(domain.ChangeGitActivity)
		}
		return
	}

	if event.Has(fsnotify.Create) {
		if fi, err := os.Stat(event.Name); err == nil && fi.IsDir() {
			if err := w.addTree(event.Name); err != nil {
				slog.Debug("Failed to watch new directory", "project_id", w.projectID, "path", event.Name, "error", err)
			}
		}
	}

	w.mu.Lock()
	w.paths[filepath.ToSlash(rel)] = struct{}{}
	w.mu.Unlock()
	w.schedule(domain.ChangeWorktreeChanged)
}

// schedule (re)arms the debounce timer for kind.
func (w *projectWatcher) schedule(kind domain.ChangeKind) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.timers[kind]; ok {
		t.Stop()
	}
	w.timers[kind] = w.clock.AfterFunc(w.debounce, func() { w.flush(kind) })
}

func (w *projectWatcher) flush(kind domain.ChangeKind) {
	select {
	case <-w.done:
		return
	default:
	}

	w.mu.Lock()
	delete(w.timers, kind)
	var paths []string
	if kind == domain.ChangeWorktreeChanged {
		paths = slices.Sorted(maps.Keys(w.paths))
		clear(w.paths)
	}
	w.mu.Unlock()

	var change domain.Change
	switch kind {
	case domain.ChangeHeadMoved:
		head, err := readHead(w.gitDir)
		if err != nil {
			slog.Warn("Failed to read HEAD", "project_id", w.projectID, "error", err)
			return
		}
		change = domain.HeadMoved{Project: w.projectID, Head: head}
	case domain.ChangeFetchCompleted:
		change = domain.FetchCompleted{Project: w.projectID}
	case domain.ChangeGitActivity:
		change = domain.GitActivity{Project: w.projectID}
	case domain.ChangeWorktreeChanged:
		if len(paths) == 0 {
			return
		}
		change = domain.WorktreeChanged{Project: w.projectID, Paths: paths}
	}

	w.onChange(change)
}

// readHead returns the symbolic ref HEAD points at, or the commit id when
// HEAD is detached.
func readHead(gitDir string) (string, error) {
	data, err := os.ReadFile(filepath.Join(gitDir, "HEAD"))
	if err != nil {
		return "", err
	}
	head := strings.TrimSpace(string(data))
	if head == "" {
		return "", errors.New("HEAD is empty")
	}
	return strings.TrimPrefix(head, "ref: "), nil
}

// Close stops the watcher and any pending debounce timers.
func (w *projectWatcher) Close() error {
	w.closeOnce.Do(func() {
		close(w.done)
		w.closeErr = w.fsw.Close()

		w.mu.Lock()
		for kind, t := range w.timers {
			t.Stop()
			delete(w.timers, kind)
		}
		w.mu.Unlock()

		w.wg.Wait()
	})
	return w.closeErr
}
