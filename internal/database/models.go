package database

import "time"

// Publication records one post that the blog accepted. SourceKey identifies
// the canonical channel message ("<chat_id>:<message_id>") and is unique.
type Publication struct {
	ID          uint      `db:"id"`
	SourceKey   string    `db:"source_key"`
	Permalink   string    `db:"permalink"`
	GroupID     string    `db:"group_id"`
	ContentHash string    `db:"content_hash"`
	ImageCount  int       `db:"image_count"`
	PublishedAt time.Time `db:"published_at"`
}
