// Package tasks implements the bridge's scheduled maintenance tasks.
package tasks

import (
	"log/slog"
	"time"

	"github.com/edgard/channelpost/internal/database"
)

// TaskDeps contains all dependencies required by scheduled tasks.
type TaskDeps struct {
	Logger *slog.Logger
	Store  database.Store
	// JournalRetention is how long publications are kept; zero disables pruning.
	JournalRetention time.Duration
	// DownloadDir holds downloaded attachments awaiting upload.
	DownloadDir string
	// TempMaxAge is the age after which a leftover download is removed.
	TempMaxAge time.Duration
	// Now defaults to time.Now.
	Now func() time.Time
}

func (d TaskDeps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}
