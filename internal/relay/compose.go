package relay

import (
	"strings"
)

// DefaultBacklinkLabel is the link text of the line pointing back to the
// channel post.
const DefaultBacklinkLabel = "原文"

// ImageTag renders one uploaded image.
func ImageTag(url string) string {
	return "<img src='" + url + "'/>"
}

// Compose merges the rendered caption and uploaded image URLs into the final
// post text. It returns "" when there is nothing worth posting; otherwise the
// result ends with a backlink line referencing permalink.
func Compose(captionHTML string, urls []string, showAboveText bool, permalink, label string) string {
	var images strings.Builder
	for _, u := range urls {
		images.WriteString(ImageTag(u))
	}

	var text string
	if showAboveText {
		text = captionHTML + "\n\n" + images.String()
	} else {
		text = images.String() + "\n\n" + captionHTML
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}

	if label == "" {
		label = DefaultBacklinkLabel
	}
	return text + "\n\n" + Backlink(permalink, label)
}

// Backlink renders the trailing line pointing back to the channel post.
func Backlink(permalink, label string) string {
	return "> [" + label + "](" + permalink + ")"
}
