// Package caption re-encodes Telegram message text and its entity annotations
// into inline HTML markup.
//
// Telegram delivers formatting as a list of spans over the raw text, each
// given as an offset and length in UTF-16 code units. Render sweeps the text
// once, inserting opening and closing tags at span boundaries while copying
// every original character through unchanged.
package caption

import (
	"fmt"
	"html"
	"sort"
	"strings"
	"unicode/utf8"
)

// Span kinds that produce markup. Kinds not listed here (mention, hashtag,
// url, ...) are carried as plain text.
const (
	KindBold                 = "bold"
	KindItalic               = "italic"
	KindUnderline            = "underline"
	KindStrikethrough        = "strikethrough"
	KindSpoiler              = "spoiler"
	KindCode                 = "code"
	KindPre                  = "pre"
	KindBlockquote           = "blockquote"
	KindExpandableBlockquote = "expandable_blockquote"
	KindTextLink             = "text_link"
	KindTextMention          = "text_mention"
	KindCustomEmoji          = "custom_emoji"
)

// Span is a markup annotation over a contiguous range of text.
type Span struct {
	Offset int // UTF-16 code units
	Length int // UTF-16 code units
	Kind   string

	URL           string // text_link
	Language      string // pre
	UserID        int64  // text_mention
	CustomEmojiID string // custom_emoji
}

type interval struct {
	start, end int
	open       string
	close      string
}

// Render returns text with the markup described by spans inserted inline.
// Spans are ordered by ascending start; on equal starts the longer span is
// the outer one. Overlapping spans that are not properly nested are split so
// the output stays well formed.
func Render(text string, spans []Span) string {
	if text == "" {
		return ""
	}
	byteAt := unitOffsets(text)
	intervals := buildIntervals(spans, byteAt)
	if len(intervals) == 0 {
		return text
	}

	var b strings.Builder
	b.Grow(len(text) + len(intervals)*8)

	var stack []interval
	next := 0
	pos := 0
	n := len(byteAt) - 1

	for {
		stack = closeAt(&b, stack, pos)
		for next < len(intervals) && intervals[next].start == pos {
			b.WriteString(intervals[next].open)
			stack = append(stack, intervals[next])
			next++
		}
		if pos == n {
			break
		}

		boundary := n
		if next < len(intervals) && intervals[next].start < boundary {
			boundary = intervals[next].start
		}
		for _, iv := range stack {
			if iv.end < boundary {
				boundary = iv.end
			}
		}

		b.WriteString(text[byteAt[pos]:byteAt[boundary]])
		pos = boundary
	}

	return b.String()
}

// closeAt closes every open interval ending at pos, innermost first. Inner
// intervals that outlive a closing outer one are reopened after it.
func closeAt(b *strings.Builder, stack []interval, pos int) []interval {
	first := -1
	for i, iv := range stack {
		if iv.end <= pos {
			first = i
			break
		}
	}
	if first < 0 {
		return stack
	}

	closing := append([]interval(nil), stack[first:]...)
	for i := len(closing) - 1; i >= 0; i-- {
		b.WriteString(closing[i].close)
	}

	stack = stack[:first]
	for _, iv := range closing {
		if iv.end > pos {
			b.WriteString(iv.open)
			stack = append(stack, iv)
		}
	}
	return stack
}

// unitOffsets maps each UTF-16 code unit index of text to its byte offset,
// with one extra entry for the end. The trailing unit of a surrogate pair
// maps to -1. Invalid bytes count as one unit each and are kept verbatim.
func unitOffsets(text string) []int {
	byteAt := make([]int, 0, len(text)+1)
	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		byteAt = append(byteAt, i)
		if r >= 0x10000 {
			byteAt = append(byteAt, -1)
		}
		i += size
	}
	return append(byteAt, len(text))
}

func buildIntervals(spans []Span, byteAt []int) []interval {
	n := len(byteAt) - 1
	intervals := make([]interval, 0, len(spans))
	for _, s := range spans {
		open, closeTag := tags(s)
		if open == "" {
			continue
		}
		start := max(s.Offset, 0)
		end := min(s.Offset+s.Length, n)
		// Offsets inside a surrogate pair widen to cover the whole character.
		for start > 0 && start < n && byteAt[start] < 0 {
			start--
		}
		for end < n && end > 0 && byteAt[end] < 0 {
			end++
		}
		if end <= start {
			continue
		}
		intervals = append(intervals, interval{start: start, end: end, open: open, close: closeTag})
	}

	sort.SliceStable(intervals, func(i, j int) bool {
		if intervals[i].start != intervals[j].start {
			return intervals[i].start < intervals[j].start
		}
		return intervals[i].end-intervals[i].start > intervals[j].end-intervals[j].start
	})
	return intervals
}

func tags(s Span) (string, string) {
	switch s.Kind {
	case KindBold:
		return "<b>", "</b>"
	case KindItalic:
		return "<i>", "</i>"
	case KindUnderline:
		return "<u>", "</u>"
	case KindStrikethrough:
		return "<s>", "</s>"
	case KindSpoiler:
		return "<spoiler>", "</spoiler>"
	case KindCode:
		return "<code>", "</code>"
	case KindPre:
		if s.Language != "" {
			return `<pre language="` + html.EscapeString(s.Language) + `">`, "</pre>"
		}
		return "<pre>", "</pre>"
	case KindBlockquote, KindExpandableBlockquote:
		return "<blockquote>", "</blockquote>"
	case KindTextLink:
		return `<a href="` + html.EscapeString(s.URL) + `">`, "</a>"
	case KindTextMention:
		return fmt.Sprintf(`<a href="tg://user?id=%d">`, s.UserID), "</a>"
	case KindCustomEmoji:
		return `<emoji id="` + html.EscapeString(s.CustomEmojiID) + `">`, "</emoji>"
	}
	return "", ""
}
