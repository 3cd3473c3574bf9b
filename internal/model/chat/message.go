package chat

import "time"

// Sender identifies who authored a message.
type Sender string

const (
	SenderUser   Sender = "user"
	SenderBot    Sender = "bot"
	SenderExpert Sender = "expert"
)

// Message is a single chat turn. Bot text grows while a reply streams and is
// fixed once the stream finishes.
type Message struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Sender    Sender    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
	Avatar    string    `json:"avatar,omitempty"`
	// System marks welcome, notice and error messages that never reach the model.
	System bool `json:"system,omitempty"`
}
