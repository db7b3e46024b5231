package tasks

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgard/channelpost/internal/database"
	"github.com/edgard/channelpost/internal/telegram"
)

func newTestStore(t *testing.T) database.Store {
	t.Helper()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.CloseDB(db) })
	return database.NewStore(db, nil)
}

func TestRegisterAllTasks(t *testing.T) {
	tasks := RegisterAllTasks(TaskDeps{Logger: slog.Default()})
	assert.Len(t, tasks, 3)
	for _, name := range []string{"sql_maintenance", "journal_prune", "temp_sweep"} {
		assert.Contains(t, tasks, name)
	}
}

func TestSQLMaintenanceTask(t *testing.T) {
	task := newSQLMaintenanceTask(TaskDeps{Logger: slog.Default(), Store: newTestStore(t)})
	assert.NoError(t, task(context.Background()))
}

func TestJournalPruneTask(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	now := time.Now().UTC()

	require.NoError(t, store.SavePublication(ctx, &database.Publication{SourceKey: "-1:1", PublishedAt: now.Add(-48 * time.Hour)}))
	require.NoError(t, store.SavePublication(ctx, &database.Publication{SourceKey: "-1:2", PublishedAt: now}))

	task := newJournalPruneTask(TaskDeps{
		Logger:           slog.Default(),
		Store:            store,
		JournalRetention: 24 * time.Hour,
		Now:              func() time.Time { return now },
	})
	require.NoError(t, task(ctx))

	has, err := store.HasPublication(ctx, "-1:1")
	require.NoError(t, err)
	assert.False(t, has)
	has, err = store.HasPublication(ctx, "-1:2")
	require.NoError(t, err)
	assert.True(t, has)
}

func TestJournalPruneTaskDisabled(t *testing.T) {
	task := newJournalPruneTask(TaskDeps{Logger: slog.Default()})
	assert.NoError(t, task(context.Background()))
}

func TestTempSweepTask(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()

	stale := filepath.Join(dir, telegram.TempFilePrefix+"old.jpg")
	fresh := filepath.Join(dir, telegram.TempFilePrefix+"new.jpg")
	foreign := filepath.Join(dir, "keep.txt")
	for _, p := range []string{stale, fresh, foreign} {
		require.NoError(t, os.WriteFile(p, []byte("data"), 0o600))
	}
	old := now.Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(stale, old, old))
	require.NoError(t, os.Chtimes(foreign, old, old))

	task := newTempSweepTask(TaskDeps{
		Logger:      slog.Default(),
		DownloadDir: dir,
		TempMaxAge:  time.Hour,
		Now:         func() time.Time { return now },
	})
	require.NoError(t, task(context.Background()))

	assert.NoFileExists(t, stale)
	assert.FileExists(t, fresh)
	assert.FileExists(t, foreign)
}

func TestTempSweepTaskMissingDir(t *testing.T) {
	task := newTempSweepTask(TaskDeps{Logger: slog.Default(), DownloadDir: filepath.Join(t.TempDir(), "nope")})
	assert.NoError(t, task(context.Background()))
}
