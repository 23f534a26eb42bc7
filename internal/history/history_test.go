package history_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/docscraper/internal/domain"
	"github.com/jonesrussell/docscraper/internal/history"
)

func openStore(t *testing.T) *history.Store {
	t.Helper()
	store, err := history.Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func report(id string, started time.Time) *domain.Report {
	return &domain.Report{
		RunID:        id,
		StartedAt:    started,
		FinishedAt:   started.Add(2 * time.Second),
		MaxDownloads: 5,
		CapReached:   true,
		Documents: []domain.Document{
			{Index: 1, Title: "SQL Basics", URL: "https://a.test/sql.pdf", SourceName: "A", Kind: domain.DocumentKind,
				Status: domain.StatusDownloaded, Path: "/out/SQL Basics.pdf", Size: 10, SHA256: "ff"},
			{Index: 2, Title: "Broken", URL: "https://a.test/broken.pdf", SourceName: "A", Kind: domain.DocumentKind,
				Status: domain.StatusFailed, Error: "status 500"},
		},
		Failures: []domain.Failure{{Stage: domain.StageDownload, Kind: "status"}},
		Stats:    domain.Stats{Downloaded: 1, Accepted: 2, PagesFetched: 3, BytesDownloaded: 10},
	}
}

func TestStore_SaveAndList(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := openStore(t)

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, store.SaveRun(ctx, report("old", base)))
	require.NoError(t, store.SaveRun(ctx, report("new", base.Add(time.Hour))))

	runs, err := store.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "new", runs[0].ID)
	assert.Equal(t, "old", runs[1].ID)

	got := runs[1]
	assert.Equal(t, 1, got.Downloaded)
	assert.Equal(t, 2, got.Accepted)
	assert.Equal(t, 3, got.PagesFetched)
	assert.Equal(t, 1, got.Failures)
	assert.Equal(t, int64(10), got.Bytes)
	assert.True(t, got.CapReached)
	assert.False(t, got.Cancelled)
	assert.True(t, got.StartedAt.Equal(base))
	assert.Equal(t, 2*time.Second, got.Duration())

	limited, err := store.ListRuns(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestStore_Documents(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := openStore(t)

	r := report("run-1", time.Now().UTC())
	require.NoError(t, store.SaveRun(ctx, r))

	docs, err := store.Documents(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, r.Documents, docs)
}

func TestStore_UnknownRun(t *testing.T) {
	t.Parallel()
	store := openStore(t)

	_, err := store.Documents(context.Background(), "missing")
	require.ErrorIs(t, err, history.ErrRunNotFound)
}

func TestStore_DuplicateRunRollsBack(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := openStore(t)

	r := report("dup", time.Now().UTC())
	require.NoError(t, store.SaveRun(ctx, r))
	require.Error(t, store.SaveRun(ctx, r))

	runs, err := store.ListRuns(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestStore_MigrateIsIdempotent(t *testing.T) {
	t.Parallel()
	store := openStore(t)
	require.NoError(t, store.Migrate(context.Background()))
}
