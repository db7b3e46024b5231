package relay

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/edgard/channelpost/internal/resilience"
)

// Uploader re-hosts every photo and sticker of a group on the image host.
type Uploader struct {
	source  Source
	images  ImageHost
	retrier *resilience.Retrier
	logger  *slog.Logger
}

// NewUploader creates an Uploader. Each attachment's download and upload form
// one unit retried by retrier.
func NewUploader(source Source, images ImageHost, retrier *resilience.Retrier, logger *slog.Logger) *Uploader {
	if logger == nil {
		logger = slog.Default()
	}
	if retrier == nil {
		retrier = resilience.NewRetrier(resilience.DefaultPolicy(), logger)
	}
	return &Uploader{
		source:  source,
		images:  images,
		retrier: retrier,
		logger:  logger.With("component", "uploader"),
	}
}

// Upload returns one URL per uploadable attachment, in group order. The first
// attachment that exhausts its retries aborts the whole group. Local files are
// removed only after a successful upload.
func (u *Uploader) Upload(ctx context.Context, group Group) ([]string, error) {
	var urls []string
	for _, msg := range group {
		if !msg.Attachment.Uploadable() {
			continue
		}
		att := *msg.Attachment

		var url, path string
		err := u.retrier.Do(ctx, "image_upload", func(ctx context.Context) error {
			if path == "" {
				p, err := u.source.Download(ctx, att)
				if err != nil {
					return fmt.Errorf("download %s: %w", att.FileID, err)
				}
				path = p
			}
			uploaded, err := u.images.Upload(ctx, path)
			if err != nil {
				return fmt.Errorf("upload %s: %w", att.FileID, err)
			}
			url = uploaded
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("message %d: %w", msg.ID, err)
		}

		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			u.logger.WarnContext(ctx, "Failed to remove downloaded file", "path", path, "error", err)
		}
		u.logger.DebugContext(ctx, "Attachment re-hosted", "message_id", msg.ID, "kind", att.Kind, "url", url)
		urls = append(urls, url)
	}
	return urls, nil
}
