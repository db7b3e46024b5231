package relay

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/edgard/channelpost/internal/database"
)

var errFake = errors.New("fake failure")

type fakeSource struct {
	dir      string
	members  []Message
	groupErr error

	mu        sync.Mutex
	downloads []string
	paths     []string
}

func newFakeSource(t *testing.T, members ...Message) *fakeSource {
	t.Helper()
	return &fakeSource{dir: t.TempDir(), members: members}
}

func (s *fakeSource) MediaGroup(_ context.Context, _ Message) ([]Message, error) {
	if s.groupErr != nil {
		return nil, s.groupErr
	}
	return s.members, nil
}

func (s *fakeSource) Download(_ context.Context, att Attachment) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.downloads = append(s.downloads, att.FileID)
	path := filepath.Join(s.dir, att.FileID+".bin")
	if err := os.WriteFile(path, []byte(att.FileID), 0o600); err != nil {
		return "", err
	}
	s.paths = append(s.paths, path)
	return path, nil
}

// fakeHost fails the first failures calls, then returns urls[fileContents].
type fakeHost struct {
	failures int
	urls     map[string]string

	mu    sync.Mutex
	calls int
}

func (h *fakeHost) Upload(_ context.Context, path string) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls++
	if h.calls <= h.failures {
		return "", errFake
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return h.urls[string(data)], nil
}

type fakePublisher struct {
	err      error
	mu       sync.Mutex
	contents []string
}

func (p *fakePublisher) Publish(_ context.Context, content string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.contents = append(p.contents, content)
	return p.err
}

type acceptAll struct{}

func (acceptAll) Accept(string) bool { return true }

type rejectAll struct{}

func (rejectAll) Accept(string) bool { return false }

type fakeJournal struct {
	published map[string]bool
	hasErr    error
	saved     []*database.Publication
}

func (j *fakeJournal) HasPublication(_ context.Context, key string) (bool, error) {
	if j.hasErr != nil {
		return false, j.hasErr
	}
	return j.published[key], nil
}

func (j *fakeJournal) SavePublication(_ context.Context, p *database.Publication) error {
	j.saved = append(j.saved, p)
	return nil
}

func photo(id string) *Attachment {
	return &Attachment{Kind: AttachmentPhoto, FileID: id}
}
