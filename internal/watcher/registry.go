// Package watcher keeps at most one background watcher per project and turns
// the changes it reports into events on the hub.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/crabnebula-dev/gitbutler/internal/domain"
	"github.com/crabnebula-dev/gitbutler/internal/metrics"
	apperrors "github.com/crabnebula-dev/gitbutler/internal/platform/errors"
)

// Registry maps project IDs to running watchers. A project moves from
// absent to starting (an in-flight singleflight call) to active; entries
// are only removed by Close at shutdown.
type Registry struct {
	source  domain.ChangeSource
	hub     domain.Broadcaster
	metrics *metrics.WatcherMetrics

	mu      sync.Mutex
	active  map[string]io.Closer
	closed  bool
	startup singleflight.Group
}

// NewRegistry creates a registry that starts watchers through source and
// sends their events to hub. m may be nil.
func NewRegistry(source domain.ChangeSource, hub domain.Broadcaster, m *metrics.WatcherMetrics) *Registry {
	return &Registry{
		source:  source,
		hub:     hub,
		metrics: m,
		active:  make(map[string]io.Closer),
	}
}

var errRegistryClosed = errors.New("watcher registry is closed")

// SetActive ensures a watcher is running for projectID. Concurrent calls for
// the same project share one start attempt. A failed start leaves no entry,
// so a later call retries.
func (r *Registry) SetActive(ctx context.Context, projectID, path string) error {
	if r.IsActive(projectID) {
		return nil
	}

	_, err, shared := r.startup.Do(projectID, func() (any, error) {
		return nil, r.start(projectID, path)
	})
	if err != nil {
		return err
	}

	slog.DebugContext(ctx, "Project watcher active", "project_id", projectID, "shared_start", shared)
	return nil
}

func (r *Registry) start(projectID, path string) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return apperrors.WatcherStart(projectID, errRegistryClosed)
	}
	if _, ok := r.active[projectID]; ok {
		r.mu.Unlock()
		return nil
	}
	r.mu.Unlock()

	handle, err := r.source.OnChange(projectID, path, r.forward)
	if err != nil {
		r.metrics.StartFailed()
		slog.Error("Failed to start project watcher", "project_id", projectID, "path", path, "error", err)
		return apperrors.WatcherStart(projectID, err)
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		_ = handle.Close()
		return apperrors.WatcherStart(projectID, errRegistryClosed)
	}
	r.active[projectID] = handle
	n := len(r.active)
	r.mu.Unlock()

	r.metrics.SetActive(n)
	slog.Info("Project watcher started", "project_id", projectID, "path", path)
	return nil
}

// forward is the callback handed to every watcher.
func (r *Registry) forward(change domain.Change) {
	ev, err := ToWireEvent(change)
	if err != nil {
		slog.Warn("Dropping unmappable change", "project_id", change.ProjectID(), "error", err)
		return
	}
	r.metrics.Change(string(change.Kind()))
	r.hub.Send(ev)
}

// IsActive reports whether a watcher is running for projectID.
func (r *Registry) IsActive(projectID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.active[projectID]
	return ok
}

// Active returns the IDs of watched projects, sorted.
func (r *Registry) Active() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Sorted(maps.Keys(r.active))
}

// Close stops every watcher. It is meant for process shutdown; SetActive
// fails afterwards.
func (r *Registry) Close() error {
	r.mu.Lock()
	handles := r.active
	r.active = make(map[string]io.Closer)
	r.closed = true
	r.mu.Unlock()

	var errs []error
	for id, h := range handles {
		if err := h.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close watcher for project %s: %w", id, err))
		}
	}
	r.metrics.SetActive(0)
	return errors.Join(errs...)
}
