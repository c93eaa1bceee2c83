package watcher

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crabnebula-dev/gitbutler/internal/domain"
	"github.com/crabnebula-dev/gitbutler/internal/metrics"
	apperrors "github.com/crabnebula-dev/gitbutler/internal/platform/errors"
)

type fakeHandle struct {
	closed atomic.Bool
}

func (h *fakeHandle) Close() error {
	h.closed.Store(true)
	return nil
}

// fakeSource records starts and lets tests trigger changes.
type fakeSource struct {
	mu        sync.Mutex
	starts    map[string]int
	callbacks map[string]func(domain.Change)
	handles   []*fakeHandle
	delay     time.Duration
	err       error
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		starts:    make(map[string]int),
		callbacks: make(map[string]func(domain.Change)),
	}
}

func (s *fakeSource) OnChange(projectID, _ string, onChange func(domain.Change)) (io.Closer, error) {
	time.Sleep(s.delay)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.starts[projectID]++
	if s.err != nil {
		return nil, s.err
	}
	s.callbacks[projectID] = onChange
	h := &fakeHandle{}
	s.handles = append(s.handles, h)
	return h, nil
}

func (s *fakeSource) startCount(projectID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.starts[projectID]
}

func (s *fakeSource) emit(t *testing.T, projectID string, change domain.Change) {
	t.Helper()
	s.mu.Lock()
	cb, ok := s.callbacks[projectID]
	s.mu.Unlock()
	require.True(t, ok, "no watcher for %s", projectID)
	cb(change)
}

type recordingHub struct {
	mu     sync.Mutex
	events []domain.WireEvent
}

func (h *recordingHub) Send(ev domain.WireEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, ev)
}

func (h *recordingHub) names() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	names := make([]string, len(h.events))
	for i, ev := range h.events {
		names[i] = ev.Name
	}
	return names
}

func TestSetActive_StartsOnce(t *testing.T) {
	source := newFakeSource()
	r := NewRegistry(source, &recordingHub{}, nil)

	require.NoError(t, r.SetActive(context.Background(), "42", "/repo"))
	require.NoError(t, r.SetActive(context.Background(), "42", "/repo"))

	assert.Equal(t, 1, source.startCount("42"))
	assert.True(t, r.IsActive("42"))
}

func TestSetActive_ConcurrentCallsStartOnce(t *testing.T) {
	source := newFakeSource()
	source.delay = 50 * time.Millisecond
	r := NewRegistry(source, &recordingHub{}, nil)

	const callers = 16
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	start := make(chan struct{})
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			errs <- r.SetActive(context.Background(), "42", "/repo")
		}()
	}
	close(start)
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, 1, source.startCount("42"))
	assert.Equal(t, []string{"42"}, r.Active())
}

func TestSetActive_IndependentProjects(t *testing.T) {
	source := newFakeSource()
	r := NewRegistry(source, &recordingHub{}, nil)

	require.NoError(t, r.SetActive(context.Background(), "b", "/b"))
	require.NoError(t, r.SetActive(context.Background(), "a", "/a"))

	assert.Equal(t, []string{"a", "b"}, r.Active())
	assert.Equal(t, 1, source.startCount("a"))
	assert.Equal(t, 1, source.startCount("b"))
}

func TestSetActive_StartFailureLeavesNoEntry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewWatcherMetrics(reg)
	source := newFakeSource()
	source.err = errors.New("no such directory")
	r := NewRegistry(source, &recordingHub{}, m)

	err := r.SetActive(context.Background(), "42", "/missing")
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.TypeWatcherStart))
	assert.False(t, r.IsActive("42"))
	assert.InDelta(t, 1, testutil.ToFloat64(m.StartFailures), 0)

	// A later call retries the start.
	source.mu.Lock()
	source.err = nil
	source.mu.Unlock()

	require.NoError(t, r.SetActive(context.Background(), "42", "/missing"))
	assert.Equal(t, 2, source.startCount("42"))
	assert.True(t, r.IsActive("42"))
}

func TestRegistry_ForwardsChangesToHub(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewWatcherMetrics(reg)
	source := newFakeSource()
	hub := &recordingHub{}
	r := NewRegistry(source, hub, m)

	require.NoError(t, r.SetActive(context.Background(), "42", "/repo"))
	source.emit(t, "42", domain.HeadMoved{Project: "42", Head: "refs/heads/main"})
	source.emit(t, "42", domain.FetchCompleted{Project: "42"})
	source.emit(t, "42", unknownChange{domain.GitActivity{Project: "42"}})

	assert.Equal(t, []string{"project://42/git/head", "project://42/git/fetch"}, hub.names())
	assert.InDelta(t, 1, testutil.ToFloat64(m.ChangesTotal.WithLabelValues("head_moved")), 0)
}

func TestRegistry_Close(t *testing.T) {
	source := newFakeSource()
	r := NewRegistry(source, &recordingHub{}, nil)

	require.NoError(t, r.SetActive(context.Background(), "1", "/1"))
	require.NoError(t, r.SetActive(context.Background(), "2", "/2"))

	require.NoError(t, r.Close())
	for _, h := range source.handles {
		assert.True(t, h.closed.Load())
	}
	assert.Empty(t, r.Active())

	err := r.SetActive(context.Background(), "3", "/3")
	assert.True(t, apperrors.IsType(err, apperrors.TypeWatcherStart))
}
