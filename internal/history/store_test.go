package history

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestNewStore_AppliesMigrations(t *testing.T) {
	store := newTestStore(t)

	version, err := store.GetLatestVersion()
	require.NoError(t, err)
	assert.Equal(t, migrations[len(migrations)-1].Version, version)

	// Re-applying is a no-op
	require.NoError(t, store.ApplyMigrations(context.Background()))
	version, err = store.GetLatestVersion()
	require.NoError(t, err)
	assert.Equal(t, migrations[len(migrations)-1].Version, version)
}

func TestNewStore_CreatesDirectory(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "history", "scans.db")

	store, err := NewStore(dbPath)
	require.NoError(t, err)
	defer store.Close()

	assert.FileExists(t, dbPath)
	assert.Equal(t, dbPath, store.Path())
}

func TestRecordScan_AssignsIDAndTime(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rec := &ScanRecord{
		Workspace: "/ws",
		Pattern:   "**/*.md",
		Encoding:  "UTF-8",
		Processor: "markdown",
		Found:     3,
		Processed: 2,
		HasErrors: true,
		Duration:  1500 * time.Millisecond,
		InfoMessages: []string{
			"Successfully processed file 'a.md'",
			"Successfully processed file 'b.md'",
		},
		ErrorMessages: []string{
			"Errors during parsing",
			"Skipping file 'c.md' because it is empty",
		},
		SkippedErrors: 4,
	}
	require.NoError(t, store.RecordScan(ctx, rec))
	assert.Len(t, rec.ID, 36)
	assert.False(t, rec.StartedAt.IsZero())

	got, err := store.GetScan(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, "/ws", got.Workspace)
	assert.Equal(t, "markdown", got.Processor)
	assert.Equal(t, 3, got.Found)
	assert.Equal(t, 2, got.Processed)
	assert.True(t, got.HasErrors)
	assert.Equal(t, 1500*time.Millisecond, got.Duration)
	assert.True(t, rec.StartedAt.Equal(got.StartedAt))
	assert.Equal(t, rec.InfoMessages, got.InfoMessages)
	assert.Equal(t, rec.ErrorMessages, got.ErrorMessages)
	assert.Equal(t, 4, got.SkippedErrors)
}

func TestRecordScan_NilMessages(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rec := &ScanRecord{Workspace: "/ws", Pattern: "*", Encoding: "UTF-8", Processor: "lines"}
	require.NoError(t, store.RecordScan(ctx, rec))

	got, err := store.GetScan(ctx, rec.ID)
	require.NoError(t, err)
	assert.Empty(t, got.InfoMessages)
	assert.Empty(t, got.ErrorMessages)
}

func TestRecordScan_DuplicateID(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rec := &ScanRecord{ID: "fixed", Workspace: "/ws", Pattern: "*", Encoding: "UTF-8", Processor: "lines"}
	require.NoError(t, store.RecordScan(ctx, rec))
	assert.Error(t, store.RecordScan(ctx, rec))
}

func TestListScans_NewestFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	for i, ws := range []string{"/one", "/two", "/three"} {
		rec := &ScanRecord{
			Workspace:    ws,
			Pattern:      "*",
			Encoding:     "UTF-8",
			Processor:    "lines",
			StartedAt:    base.Add(time.Duration(i) * time.Minute),
			InfoMessages: []string{"not listed"},
		}
		require.NoError(t, store.RecordScan(ctx, rec))
	}

	scans, err := store.ListScans(ctx, 0)
	require.NoError(t, err)
	require.Len(t, scans, 3)
	assert.Equal(t, "/three", scans[0].Workspace)
	assert.Equal(t, "/two", scans[1].Workspace)
	assert.Equal(t, "/one", scans[2].Workspace)
	assert.Nil(t, scans[0].InfoMessages)

	limited, err := store.ListScans(ctx, 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, "/three", limited[0].Workspace)
}

func TestGetScan(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"abc-111", "abd-222"} {
		require.NoError(t, store.RecordScan(ctx, &ScanRecord{ID: id, Workspace: "/ws", Pattern: "*", Encoding: "UTF-8", Processor: "lines"}))
	}

	tests := []struct {
		name     string
		id       string
		wantID   string
		wantErr  bool
		notFound bool
	}{
		{name: "full id", id: "abc-111", wantID: "abc-111"},
		{name: "unique prefix", id: "abd", wantID: "abd-222"},
		{name: "ambiguous prefix", id: "ab", wantErr: true},
		{name: "unknown", id: "zzz", wantErr: true, notFound: true},
		{name: "empty", id: "", wantErr: true, notFound: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.GetScan(ctx, tt.id)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, tt.notFound, errors.Is(err, ErrScanNotFound))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, got.ID)
		})
	}
}

func TestGetScan_WildcardsMatchLiterally(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.RecordScan(ctx, &ScanRecord{ID: "abc-111", Workspace: "/ws", Pattern: "*", Encoding: "UTF-8", Processor: "lines"}))
	require.NoError(t, store.RecordScan(ctx, &ScanRecord{ID: "x_y%z", Workspace: "/ws", Pattern: "*", Encoding: "UTF-8", Processor: "lines"}))

	for _, id := range []string{"_", "%", "a_c", "ab%", `\`} {
		_, err := store.GetScan(ctx, id)
		assert.True(t, errors.Is(err, ErrScanNotFound), "id %q must not act as a wildcard", id)
	}

	got, err := store.GetScan(ctx, "x_y%")
	require.NoError(t, err)
	assert.Equal(t, "x_y%z", got.ID)
}

func TestDeleteOlderThan(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, store.RecordScan(ctx, &ScanRecord{ID: "old", Workspace: "/ws", Pattern: "*", Encoding: "UTF-8", Processor: "lines", StartedAt: now.Add(-48 * time.Hour)}))
	require.NoError(t, store.RecordScan(ctx, &ScanRecord{ID: "new", Workspace: "/ws", Pattern: "*", Encoding: "UTF-8", Processor: "lines", StartedAt: now}))

	n, err := store.DeleteOlderThan(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	scans, err := store.ListScans(ctx, 0)
	require.NoError(t, err)
	require.Len(t, scans, 1)
	assert.Equal(t, "new", scans[0].ID)
}
