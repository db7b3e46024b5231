package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/google/uuid"

	"github.com/edgard/channelpost/internal/relay"
)

// TempFilePrefix prefixes every downloaded attachment.
const TempFilePrefix = "channelpost-"

// FileGetter resolves file ids to download links. *bot.Bot satisfies it.
type FileGetter interface {
	GetFile(ctx context.Context, params *bot.GetFileParams) (*models.File, error)
	FileDownloadLink(f *models.File) string
}

// SourceConfig tunes a ChannelSource.
type SourceConfig struct {
	// Settle is how long a media group must stay quiet before it is
	// considered complete.
	Settle time.Duration
	// Retention bounds how long an idle group buffer is kept.
	Retention time.Duration
	// DownloadDir receives downloaded attachments.
	DownloadDir string
}

type groupBuffer struct {
	members  map[int]relay.Message
	lastSeen time.Time
}

// ChannelSource buffers channel posts by media group and downloads their
// attachments. The Bot API has no call returning a whole media group, so
// members are collected as they arrive.
type ChannelSource struct {
	files     FileGetter
	client    *http.Client
	settle    time.Duration
	retention time.Duration
	dir       string
	logger    *slog.Logger
	now       func() time.Time

	mu     sync.Mutex
	groups map[string]*groupBuffer
}

// NewChannelSource creates a ChannelSource.
func NewChannelSource(files FileGetter, client *http.Client, cfg SourceConfig, logger *slog.Logger) *ChannelSource {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	retention := cfg.Retention
	if retention < 10*cfg.Settle {
		retention = 10 * cfg.Settle
	}
	if retention < time.Minute {
		retention = time.Minute
	}
	dir := cfg.DownloadDir
	if dir == "" {
		dir = os.TempDir()
	}
	return &ChannelSource{
		files:     files,
		client:    client,
		settle:    cfg.Settle,
		retention: retention,
		dir:       dir,
		logger:    logger.With("component", "channel_source"),
		now:       time.Now,
		groups:    make(map[string]*groupBuffer),
	}
}

// Observe records msg as a member of its media group. Messages outside a
// group are ignored.
func (s *ChannelSource) Observe(msg relay.Message) {
	if msg.GroupID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.pruneLocked(now)

	buf, ok := s.groups[msg.GroupID]
	if !ok {
		buf = &groupBuffer{members: make(map[int]relay.Message)}
		s.groups[msg.GroupID] = buf
	}
	buf.members[msg.ID] = msg
	buf.lastSeen = now
}

// MediaGroup waits until msg's group has been quiet for the settle period
// and returns its members ordered by message id.
func (s *ChannelSource) MediaGroup(ctx context.Context, msg relay.Message) ([]relay.Message, error) {
	for {
		wait := s.quietRemaining(msg.GroupID)
		if wait <= 0 {
			break
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	return s.snapshot(msg.GroupID), nil
}

func (s *ChannelSource) quietRemaining(groupID string) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	buf, ok := s.groups[groupID]
	if !ok {
		return 0
	}
	return buf.lastSeen.Add(s.settle).Sub(s.now())
}

func (s *ChannelSource) snapshot(groupID string) []relay.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	buf, ok := s.groups[groupID]
	if !ok {
		return nil
	}
	members := make([]relay.Message, 0, len(buf.members))
	for _, m := range buf.members {
		members = append(members, m)
	}
	sort.Slice(members, func(i, j int) bool { return members[i].ID < members[j].ID })
	return members
}

// pruneLocked must be called with mu held.
func (s *ChannelSource) pruneLocked(now time.Time) {
	for id, buf := range s.groups {
		if now.Sub(buf.lastSeen) > s.retention {
			delete(s.groups, id)
		}
	}
}

// Pending returns the number of buffered media groups.
func (s *ChannelSource) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.groups)
}

// Download fetches the attachment into a new private file under the
// download directory and returns its path.
func (s *ChannelSource) Download(ctx context.Context, att relay.Attachment) (string, error) {
	file, err := s.files.GetFile(ctx, &bot.GetFileParams{FileID: att.FileID})
	if err != nil {
		return "", fmt.Errorf("failed to resolve file %s: %w", att.FileID, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.files.FileDownloadLink(file), nil)
	if err != nil {
		return "", fmt.Errorf("failed to build download request: %w", redactURL(err))
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to download file %s: %w", att.FileID, redactURL(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to download file %s: status %d", att.FileID, resp.StatusCode)
	}

	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return "", fmt.Errorf("failed to create download directory: %w", err)
	}
	path := filepath.Join(s.dir, TempFilePrefix+uuid.NewString()+filepath.Ext(file.FilePath))
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return "", fmt.Errorf("failed to create local file: %w", err)
	}

	n, copyErr := io.Copy(f, resp.Body)
	closeErr := f.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("failed to write file %s: %w", att.FileID, err)
	}

	s.logger.DebugContext(ctx, "Downloaded attachment", "file_id", att.FileID, "path", path, "size", humanize.Bytes(uint64(n)))
	return path, nil
}

// redactURL drops the request URL from transport errors; download links
// embed the bot token.
func redactURL(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Err
	}
	return err
}
