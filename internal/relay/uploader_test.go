package relay

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgard/channelpost/internal/lsky"
	"github.com/edgard/channelpost/internal/resilience"
)

func newTestRetrier() *resilience.Retrier {
	return resilience.NewRetrier(resilience.DefaultPolicy(), nil)
}

func TestUploaderRetriesUntilSuccess(t *testing.T) {
	src := newFakeSource(t)
	host := &fakeHost{failures: 2, urls: map[string]string{"a": "http://img/a.png"}}
	u := NewUploader(src, host, newTestRetrier(), nil)

	urls, err := u.Upload(context.Background(), Group{{ID: 1, Attachment: photo("a")}})
	require.NoError(t, err)
	assert.Equal(t, []string{"http://img/a.png"}, urls)
	assert.Equal(t, 3, host.calls)
	// the file is downloaded once and reused across attempts
	assert.Equal(t, []string{"a"}, src.downloads)
	assert.NoFileExists(t, src.paths[0])
}

func TestUploaderExhaustsRetries(t *testing.T) {
	src := newFakeSource(t)
	host := &fakeHost{failures: 3, urls: map[string]string{"a": "x", "b": "y"}}
	u := NewUploader(src, host, newTestRetrier(), nil)

	group := Group{
		{ID: 1, Attachment: photo("a")},
		{ID: 2, Attachment: photo("b")},
	}
	urls, err := u.Upload(context.Background(), group)
	require.Error(t, err)
	assert.Nil(t, urls)
	assert.True(t, errors.Is(err, resilience.ErrExhaustedRetries))
	assert.True(t, errors.Is(err, errFake))
	assert.Equal(t, 3, host.calls)
	assert.Equal(t, []string{"a"}, src.downloads, "second member must not be attempted")
}

func TestUploaderOrderAndKinds(t *testing.T) {
	src := newFakeSource(t)
	host := &fakeHost{urls: map[string]string{"p1": "u1", "s1": "u2", "p2": "u3"}}
	u := NewUploader(src, host, newTestRetrier(), nil)

	group := Group{
		{ID: 10, Attachment: photo("p1")},
		{ID: 11, Attachment: &Attachment{Kind: AttachmentOther, FileID: "doc"}},
		{ID: 12, Attachment: &Attachment{Kind: AttachmentSticker, FileID: "s1"}},
		{ID: 13},
		{ID: 14, Attachment: photo("p2")},
	}
	urls, err := u.Upload(context.Background(), group)
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u2", "u3"}, urls)
	assert.Equal(t, []string{"p1", "s1", "p2"}, src.downloads)
}

func TestUploaderNoAttachments(t *testing.T) {
	src := newFakeSource(t)
	host := &fakeHost{}
	u := NewUploader(src, host, newTestRetrier(), nil)

	urls, err := u.Upload(context.Background(), Group{{ID: 1, Text: "hi"}})
	require.NoError(t, err)
	assert.Empty(t, urls)
	assert.Zero(t, host.calls)
}

func TestUploaderRetriesHostTimeout(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			select {
			case <-time.After(300 * time.Millisecond):
			case <-r.Context().Done():
			}
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"status":true,"data":{"links":{"url":"http://img/a.png"}}}`)
	}))
	t.Cleanup(srv.Close)

	src := newFakeSource(t)
	host := lsky.NewClient(srv.URL, "tok", &http.Client{Timeout: 100 * time.Millisecond}, nil)
	u := NewUploader(src, host, newTestRetrier(), nil)

	urls, err := u.Upload(context.Background(), Group{{ID: 1, Attachment: photo("a")}})
	require.NoError(t, err)
	assert.Equal(t, []string{"http://img/a.png"}, urls)
	assert.Equal(t, int32(2), calls.Load(), "the timed out upload is retried")
	assert.Equal(t, []string{"a"}, src.downloads)
}
