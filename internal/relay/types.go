// Package relay implements the channel-to-blog pipeline: it filters duplicate
// media-group events, reassembles each logical post, uploads its images,
// composes the final text, and publishes it.
package relay

import (
	"context"
	"strconv"

	"github.com/edgard/channelpost/internal/caption"
)

// AttachmentKind classifies a message attachment.
type AttachmentKind string

const (
	AttachmentPhoto   AttachmentKind = "photo"
	AttachmentSticker AttachmentKind = "sticker"
	AttachmentOther   AttachmentKind = "other"
)

// Attachment references downloadable media carried by a message.
type Attachment struct {
	Kind     AttachmentKind
	FileID   string
	FileSize int64
}

// Uploadable reports whether the attachment is re-hosted on the image host.
func (a *Attachment) Uploadable() bool {
	return a != nil && (a.Kind == AttachmentPhoto || a.Kind == AttachmentSticker)
}

// Message is one incoming channel post.
type Message struct {
	ID            int
	ChatID        int64
	GroupID       string // empty when the post is not part of a media group
	Caption       string
	Text          string
	Spans         []caption.Span
	Attachment    *Attachment
	Permalink     string
	ShowAboveText bool
}

// RawText returns the caption, falling back to the message text.
func (m Message) RawText() string {
	if m.Caption != "" {
		return m.Caption
	}
	return m.Text
}

// SourceKey identifies the message across restarts.
func (m Message) SourceKey() string {
	return strconv.FormatInt(m.ChatID, 10) + ":" + strconv.Itoa(m.ID)
}

// Group is the ordered set of messages forming one logical post.
type Group []Message

// Canonical returns the message whose caption, permalink, and layout apply
// to the whole group.
func (g Group) Canonical() Message {
	if len(g) == 0 {
		return Message{}
	}
	return g[0]
}

// Source is the chat collaborator the pipeline pulls from.
type Source interface {
	// MediaGroup returns every message sharing msg's group identifier.
	MediaGroup(ctx context.Context, msg Message) ([]Message, error)
	// Download saves the attachment to a private local file and returns its path.
	Download(ctx context.Context, att Attachment) (string, error)
}

// ImageHost uploads a local file and returns its public URL.
type ImageHost interface {
	Upload(ctx context.Context, path string) (string, error)
}

// Publisher submits composed text to the blog.
type Publisher interface {
	Publish(ctx context.Context, content string) error
}

// Filter decides whether an event starts a pipeline run.
type Filter interface {
	Accept(groupID string) bool
}
