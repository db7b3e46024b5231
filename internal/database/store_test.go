package database_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgard/channelpost/internal/database"
)

func newStore(t *testing.T) database.Store {
	t.Helper()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.CloseDB(db) })
	return database.NewStore(db, nil)
}

func TestStore_SaveAndHasPublication(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newStore(t)

	require.NoError(t, store.Ping(ctx))

	has, err := store.HasPublication(ctx, "-1001:10")
	require.NoError(t, err)
	assert.False(t, has)

	p := &database.Publication{
		SourceKey:   "-1001:10",
		Permalink:   "https://t.me/c/1/10",
		GroupID:     "g1",
		ContentHash: "abc",
		ImageCount:  2,
	}
	require.NoError(t, store.SavePublication(ctx, p))
	assert.NotZero(t, p.ID)

	has, err = store.HasPublication(ctx, "-1001:10")
	require.NoError(t, err)
	assert.True(t, has)

	got, err := store.GetPublication(ctx, "-1001:10")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "https://t.me/c/1/10", got.Permalink)
	assert.Equal(t, 2, got.ImageCount)

	// Saving the same key again is a no-op.
	require.NoError(t, store.SavePublication(ctx, &database.Publication{SourceKey: "-1001:10", ContentHash: "other"}))
	got, err = store.GetPublication(ctx, "-1001:10")
	require.NoError(t, err)
	assert.Equal(t, "abc", got.ContentHash)
}

func TestStore_GetPublication_Missing(t *testing.T) {
	t.Parallel()

	got, err := newStore(t).GetPublication(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStore_SavePublication_Invalid(t *testing.T) {
	t.Parallel()
	store := newStore(t)

	assert.Error(t, store.SavePublication(context.Background(), nil))
	assert.Error(t, store.SavePublication(context.Background(), &database.Publication{}))
}

func TestStore_PrunePublications(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newStore(t)

	now := time.Now().UTC()
	require.NoError(t, store.SavePublication(ctx, &database.Publication{SourceKey: "old", ContentHash: "x", PublishedAt: now.Add(-48 * time.Hour)}))
	require.NoError(t, store.SavePublication(ctx, &database.Publication{SourceKey: "new", ContentHash: "y", PublishedAt: now}))

	removed, err := store.PrunePublications(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	has, err := store.HasPublication(ctx, "old")
	require.NoError(t, err)
	assert.False(t, has)
	has, err = store.HasPublication(ctx, "new")
	require.NoError(t, err)
	assert.True(t, has)

	require.NoError(t, store.RunSQLMaintenance(ctx))
}
