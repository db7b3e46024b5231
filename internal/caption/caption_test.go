package caption_test

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/edgard/channelpost/internal/caption"
)

func TestRender(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		text     string
		spans    []caption.Span
		expected string
	}{
		{
			name:     "plain text round trip",
			text:     "hello",
			expected: "hello",
		},
		{
			name:     "empty text and no spans",
			text:     "",
			expected: "",
		},
		{
			name:     "spans over empty text",
			text:     "",
			spans:    []caption.Span{{Offset: 0, Length: 3, Kind: caption.KindBold}},
			expected: "",
		},
		{
			name:     "bold over part of text",
			text:     "hello world",
			spans:    []caption.Span{{Offset: 0, Length: 5, Kind: caption.KindBold}},
			expected: "<b>hello</b> world",
		},
		{
			name: "nested spans",
			text: "hello world",
			spans: []caption.Span{
				{Offset: 6, Length: 5, Kind: caption.KindItalic},
				{Offset: 0, Length: 11, Kind: caption.KindBold},
			},
			expected: "<b>hello <i>world</i></b>",
		},
		{
			name: "same start, longer span is outer",
			text: "abc",
			spans: []caption.Span{
				{Offset: 0, Length: 2, Kind: caption.KindItalic},
				{Offset: 0, Length: 3, Kind: caption.KindBold},
			},
			expected: "<b><i>ab</i>c</b>",
		},
		{
			name: "crossing spans stay well formed",
			text: "abcdefgh",
			spans: []caption.Span{
				{Offset: 0, Length: 5, Kind: caption.KindBold},
				{Offset: 3, Length: 5, Kind: caption.KindItalic},
			},
			expected: "<b>abc<i>de</i></b><i>fgh</i>",
		},
		{
			name: "adjacent spans",
			text: "ab",
			spans: []caption.Span{
				{Offset: 0, Length: 1, Kind: caption.KindBold},
				{Offset: 1, Length: 1, Kind: caption.KindItalic},
			},
			expected: "<b>a</b><i>b</i>",
		},
		{
			name:     "offsets are utf-16 code units",
			text:     "😀 hi",
			spans:    []caption.Span{{Offset: 3, Length: 2, Kind: caption.KindBold}},
			expected: "😀 <b>hi</b>",
		},
		{
			name:     "span ending inside a surrogate pair covers the character",
			text:     "😀ab",
			spans:    []caption.Span{{Offset: 0, Length: 1, Kind: caption.KindBold}},
			expected: "<b>😀</b>ab",
		},
		{
			name:     "span starting inside a surrogate pair covers the character",
			text:     "😀ab",
			spans:    []caption.Span{{Offset: 1, Length: 2, Kind: caption.KindBold}},
			expected: "<b>😀a</b>b",
		},
		{
			name:     "invalid utf-8 bytes are copied through",
			text:     "a\xffb",
			spans:    []caption.Span{{Offset: 0, Length: 3, Kind: caption.KindBold}},
			expected: "<b>a\xffb</b>",
		},
		{
			name:     "invalid utf-8 outside spans is copied through",
			text:     "\xfe\xffxy",
			spans:    []caption.Span{{Offset: 2, Length: 1, Kind: caption.KindItalic}},
			expected: "\xfe\xff<i>x</i>y",
		},
		{
			name:     "text link escapes the attribute",
			text:     "see docs",
			spans:    []caption.Span{{Offset: 4, Length: 4, Kind: caption.KindTextLink, URL: "https://example.com/?a=1&b=2"}},
			expected: `see <a href="https://example.com/?a=1&amp;b=2">docs</a>`,
		},
		{
			name:     "text mention",
			text:     "bob",
			spans:    []caption.Span{{Offset: 0, Length: 3, Kind: caption.KindTextMention, UserID: 42}},
			expected: `<a href="tg://user?id=42">bob</a>`,
		},
		{
			name:     "pre with language",
			text:     "x := 1",
			spans:    []caption.Span{{Offset: 0, Length: 6, Kind: caption.KindPre, Language: "go"}},
			expected: `<pre language="go">x := 1</pre>`,
		},
		{
			name:     "custom emoji",
			text:     "👍",
			spans:    []caption.Span{{Offset: 0, Length: 2, Kind: caption.KindCustomEmoji, CustomEmojiID: "5368324170671202286"}},
			expected: `<emoji id="5368324170671202286">👍</emoji>`,
		},
		{
			name:     "unknown kind is plain text",
			text:     "#tag",
			spans:    []caption.Span{{Offset: 0, Length: 4, Kind: "hashtag"}},
			expected: "#tag",
		},
		{
			name:     "span past the end is clamped",
			text:     "abc",
			spans:    []caption.Span{{Offset: 1, Length: 10, Kind: caption.KindBold}},
			expected: "a<b>bc</b>",
		},
		{
			name:     "zero length span is ignored",
			text:     "abc",
			spans:    []caption.Span{{Offset: 1, Length: 0, Kind: caption.KindBold}},
			expected: "abc",
		},
		{
			name:     "literal characters are not escaped",
			text:     "a < b & c",
			spans:    []caption.Span{{Offset: 0, Length: 1, Kind: caption.KindBold}},
			expected: "<b>a</b> < b & c",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, caption.Render(tt.text, tt.spans))
		})
	}
}

var tagRe = regexp.MustCompile(`<[^>]+>`)

func TestRender_PreservesCharacters(t *testing.T) {
	t.Parallel()

	text := "The quick brown fox jumps over the lazy dog"
	spans := []caption.Span{
		{Offset: 4, Length: 15, Kind: caption.KindBold},
		{Offset: 10, Length: 15, Kind: caption.KindItalic},
		{Offset: 10, Length: 5, Kind: caption.KindUnderline},
		{Offset: 20, Length: 30, Kind: caption.KindSpoiler},
		{Offset: 0, Length: 3, Kind: caption.KindCode},
	}

	out := caption.Render(text, spans)
	assert.Equal(t, text, tagRe.ReplaceAllString(out, ""))
}
