package telegram

import (
	"strconv"
	"strings"

	"github.com/go-telegram/bot/models"

	"github.com/edgard/channelpost/internal/caption"
	"github.com/edgard/channelpost/internal/relay"
)

// ConvertMessage maps a Bot API channel post onto the pipeline's Message.
func ConvertMessage(m *models.Message) relay.Message {
	if m == nil {
		return relay.Message{}
	}

	entities := m.CaptionEntities
	if m.Caption == "" {
		entities = m.Entities
	}

	return relay.Message{
		ID:            m.ID,
		ChatID:        m.Chat.ID,
		GroupID:       m.MediaGroupID,
		Caption:       m.Caption,
		Text:          m.Text,
		Spans:         convertEntities(entities),
		Attachment:    attachmentOf(m),
		Permalink:     Permalink(m.Chat, m.ID),
		ShowAboveText: m.ShowCaptionAboveMedia,
	}
}

func convertEntities(entities []models.MessageEntity) []caption.Span {
	if len(entities) == 0 {
		return nil
	}
	spans := make([]caption.Span, 0, len(entities))
	for _, e := range entities {
		s := caption.Span{
			Offset:        e.Offset,
			Length:        e.Length,
			Kind:          string(e.Type),
			URL:           e.URL,
			Language:      e.Language,
			CustomEmojiID: e.CustomEmojiID,
		}
		if e.User != nil {
			s.UserID = e.User.ID
		}
		spans = append(spans, s)
	}
	return spans
}

// attachmentOf picks the uploadable media of m. For photos the largest
// size is used.
func attachmentOf(m *models.Message) *relay.Attachment {
	switch {
	case len(m.Photo) > 0:
		best := m.Photo[0]
		for _, p := range m.Photo[1:] {
			if p.Width*p.Height > best.Width*best.Height {
				best = p
			}
		}
		return &relay.Attachment{Kind: relay.AttachmentPhoto, FileID: best.FileID, FileSize: int64(best.FileSize)}
	case m.Sticker != nil:
		return &relay.Attachment{Kind: relay.AttachmentSticker, FileID: m.Sticker.FileID, FileSize: int64(m.Sticker.FileSize)}
	case m.Video != nil:
		return &relay.Attachment{Kind: relay.AttachmentOther, FileID: m.Video.FileID}
	case m.Document != nil:
		return &relay.Attachment{Kind: relay.AttachmentOther, FileID: m.Document.FileID}
	case m.Animation != nil:
		return &relay.Attachment{Kind: relay.AttachmentOther, FileID: m.Animation.FileID}
	case m.Audio != nil:
		return &relay.Attachment{Kind: relay.AttachmentOther, FileID: m.Audio.FileID}
	case m.Voice != nil:
		return &relay.Attachment{Kind: relay.AttachmentOther, FileID: m.Voice.FileID}
	}
	return nil
}

// Permalink returns the public t.me link of a channel message. Channels
// without a username get the private /c/ form.
func Permalink(chat models.Chat, messageID int) string {
	id := strconv.Itoa(messageID)
	if chat.Username != "" {
		return "https://t.me/" + chat.Username + "/" + id
	}
	internal := strings.TrimPrefix(strconv.FormatInt(chat.ID, 10), "-100")
	internal = strings.TrimPrefix(internal, "-")
	return "https://t.me/c/" + internal + "/" + id
}
