package service

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestTitleFromMessage(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"empty", "", ""},
		{"short sentence", "Hello", "Hello"},
		{"first sentence only", "What is Go? Tell me everything.", "What is Go"},
		{"strips markdown", "# How do *pointers* work in `Go`?", "How do pointers work in Go"},
		{"trims whitespace", "   Hello there   ", "Hello there"},
		{"exclamation terminator", "Stop! Don't do that", "Stop"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TitleFromMessage(tt.text))
		})
	}
}

func TestTitleFromMessageTruncatesLongSentence(t *testing.T) {
	long := strings.Repeat("a", 200)

	title := TitleFromMessage(long)

	assert.Len(t, title, 50)
	assert.True(t, strings.HasSuffix(title, "..."))
	assert.Equal(t, strings.Repeat("a", 47), strings.TrimSuffix(title, "..."))
}

func TestTitleFromMessageMultibyte(t *testing.T) {
	// 40 Cyrillic characters encode to 80 bytes; the rune count is what
	// must be compared against the limit, so this passes through untouched.
	short := strings.Repeat("д", 40)
	got := TitleFromMessage(short)
	assert.Equal(t, short, got)
	assert.True(t, utf8.ValidString(got))

	long := strings.Repeat("д", 200)
	title := TitleFromMessage(long)

	assert.True(t, utf8.ValidString(title))
	assert.Equal(t, 50, utf8.RuneCountInString(title))
	assert.True(t, strings.HasSuffix(title, "..."))
	assert.Equal(t, strings.Repeat("д", 47), strings.TrimSuffix(title, "..."))
}

func TestTitleFromMessageBoundary(t *testing.T) {
	exactly50 := strings.Repeat("b", 50)
	assert.Equal(t, exactly50, TitleFromMessage(exactly50))

	over := strings.Repeat("b", 51)
	assert.Len(t, TitleFromMessage(over), 50)
}
