package service

import (
	"strings"
)

const (
	maxTitleLength      = 50
	truncatedTitleWidth = 47
)

// TitleFromMessage derives a short display title from a message's text:
// markdown control characters are stripped, the first sentence is taken, and
// anything over 50 characters is cut at 47 with an ellipsis. Lengths are
// counted in runes so multibyte scripts are never cut mid-character. Total
// function; empty input yields an empty title.
func TitleFromMessage(text string) string {
	clean := strings.NewReplacer("#", "", "*", "", "`", "").Replace(text)

	first := clean
	if idx := strings.IndexAny(clean, ".!?"); idx >= 0 {
		first = clean[:idx]
	}
	first = strings.TrimSpace(first)

	runes := []rune(first)
	if len(runes) <= maxTitleLength {
		return first
	}
	return string(runes[:truncatedTitleWidth]) + "..."
}
