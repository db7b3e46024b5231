package tasks

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/edgard/channelpost/internal/telegram"
)

// newTempSweepTask removes downloads left behind by failed runs. Successful
// runs delete their files right after upload.
func newTempSweepTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "temp_sweep")

	return func(ctx context.Context) error {
		dir := deps.DownloadDir
		if dir == "" {
			dir = os.TempDir()
		}

		entries, err := os.ReadDir(dir)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil
			}
			return fmt.Errorf("failed to list download directory: %w", err)
		}

		cutoff := deps.now().Add(-deps.TempMaxAge)
		var removed int
		var freed uint64
		for _, e := range entries {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if e.IsDir() || !strings.HasPrefix(e.Name(), telegram.TempFilePrefix) {
				continue
			}
			info, err := e.Info()
			if err != nil || info.ModTime().After(cutoff) {
				continue
			}
			if err := os.Remove(filepath.Join(dir, e.Name())); err != nil && !errors.Is(err, os.ErrNotExist) {
				log.WarnContext(ctx, "Failed to remove stale download", "file", e.Name(), "error", err)
				continue
			}
			removed++
			freed += uint64(info.Size())
		}

		if removed > 0 {
			log.InfoContext(ctx, "Removed stale downloads", "count", removed, "freed", humanize.Bytes(freed))
		}
		return nil
	}
}
