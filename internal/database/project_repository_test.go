package database

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crabnebula-dev/gitbutler/internal/domain"
	"github.com/crabnebula-dev/gitbutler/internal/metrics"
)

func newTestRepo(t *testing.T) (*ProjectRepo, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	return NewProjectRepo(openTestDB(t), clock, nil), clock
}

func TestProjectRepo_AddAndGet(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	p, err := repo.Add(ctx, "/work/gitbutler", "GitButler")
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, p.ID)
	assert.Equal(t, "GitButler", p.Title)
	assert.Equal(t, "/work/gitbutler", p.Path)
	assert.Equal(t, p.CreatedAt, p.UpdatedAt)

	got, err := repo.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestProjectRepo_AddDefaultsTitleToDirectoryName(t *testing.T) {
	repo, _ := newTestRepo(t)

	p, err := repo.Add(context.Background(), "/work/my-repo", "")
	require.NoError(t, err)
	assert.Equal(t, "my-repo", p.Title)
}

func TestProjectRepo_AddDuplicatePath(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	_, err := repo.Add(ctx, "/work/dup", "")
	require.NoError(t, err)

	_, err = repo.Add(ctx, "/work/dup", "other")
	assert.ErrorIs(t, err, domain.ErrProjectAlreadyExists)
}

func TestProjectRepo_GetNotFound(t *testing.T) {
	repo, _ := newTestRepo(t)

	_, err := repo.Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrProjectNotFound)
}

func TestProjectRepo_List(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	empty, err := repo.List(ctx)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	_, err = repo.Add(ctx, "/work/zeta", "")
	require.NoError(t, err)
	_, err = repo.Add(ctx, "/work/alpha", "")
	require.NoError(t, err)

	projects, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, projects, 2)
	assert.Equal(t, "alpha", projects[0].Title)
	assert.Equal(t, "zeta", projects[1].Title)
}

func TestProjectRepo_Update(t *testing.T) {
	repo, clock := newTestRepo(t)
	ctx := context.Background()

	p, err := repo.Add(ctx, "/work/proj", "before")
	require.NoError(t, err)

	clock.Advance(time.Minute)
	title := "after"
	updated, err := repo.Update(ctx, domain.ProjectUpdate{ID: p.ID, Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "after", updated.Title)
	assert.Empty(t, updated.Description)
	assert.Equal(t, p.CreatedAt, updated.CreatedAt)
	assert.Equal(t, p.UpdatedAt.Add(time.Minute), updated.UpdatedAt)

	desc := "a description"
	updated, err = repo.Update(ctx, domain.ProjectUpdate{ID: p.ID, Description: &desc})
	require.NoError(t, err)
	assert.Equal(t, "after", updated.Title)
	assert.Equal(t, "a description", updated.Description)

	got, err := repo.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, updated, got)
}

func TestProjectRepo_UpdateNotFound(t *testing.T) {
	repo, _ := newTestRepo(t)

	_, err := repo.Update(context.Background(), domain.ProjectUpdate{ID: uuid.New()})
	assert.ErrorIs(t, err, domain.ErrProjectNotFound)
}

func TestProjectRepo_Delete(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	p, err := repo.Add(ctx, "/work/gone", "")
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, p.ID))
	_, err = repo.Get(ctx, p.ID)
	assert.ErrorIs(t, err, domain.ErrProjectNotFound)

	assert.NoError(t, repo.Delete(ctx, p.ID))
}

func TestProjectRepo_RecordsMetrics(t *testing.T) {
	m := metrics.NewDatabaseMetrics(prometheus.NewRegistry())
	repo := NewProjectRepo(openTestDB(t), clockwork.NewRealClock(), m)
	ctx := context.Background()

	_, err := repo.Add(ctx, "/work/m", "")
	require.NoError(t, err)
	_, err = repo.Get(ctx, uuid.New())
	require.ErrorIs(t, err, domain.ErrProjectNotFound)

	assert.Equal(t, 2, testutil.CollectAndCount(m.QueryDuration))
	assert.Equal(t, 0, testutil.CollectAndCount(m.ErrorsTotal))
}
