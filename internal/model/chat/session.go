package chat

import (
	"time"
	"unicode/utf8"
)

const (
	titlePrefix    = "Cuộc trò chuyện "
	titleMaxRunes  = 30
	titleEllipsis  = "..."
	titleTimestamp = "02/01/2006 15:04"
)

// ChatSession is one persisted conversation thread.
type ChatSession struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// DefaultTitle is the placeholder title a session carries until its first user message.
func DefaultTitle(createdAt time.Time) string {
	return titlePrefix + createdAt.UTC().Format(titleTimestamp)
}

// HasDefaultTitle reports whether the title is still the creation placeholder.
func (s ChatSession) HasDefaultTitle() bool {
	return s.Title == DefaultTitle(s.CreatedAt)
}

// TitleFromText derives a session title from the first user message.
func TitleFromText(text string) string {
	if utf8.RuneCountInString(text) <= titleMaxRunes {
		return text
	}
	runes := []rune(text)
	return string(runes[:titleMaxRunes]) + titleEllipsis
}

// Clone returns a copy that shares no message storage with s.
func (s ChatSession) Clone() ChatSession {
	out := s
	out.Messages = append([]Message(nil), s.Messages...)
	return out
}
