package conversation

import (
	"sync"

	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/dadmind/backend/internal/model/chat"
)

// Channel carries the completion history for one session.
type Channel struct {
	sessionID string

	mu      sync.RWMutex
	history []*schema.Message
}

func newChannel(session chat.ChatSession) *Channel {
	return &Channel{
		sessionID: session.ID,
		history:   HistoryFrom(session.Messages),
	}
}

// SessionID returns the session the channel was seeded from.
func (c *Channel) SessionID() string {
	return c.sessionID
}

// History returns a copy of the seeded history.
func (c *Channel) History() []*schema.Message {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]*schema.Message(nil), c.history...)
}

// HistoryFrom maps session messages to completion roles. System messages,
// expert messages and empty bot placeholders are skipped.
func HistoryFrom(messages []chat.Message) []*schema.Message {
	history := make([]*schema.Message, 0, len(messages))
	for _, msg := range messages {
		if msg.System || msg.Text == "" {
			continue
		}
		switch msg.Sender {
		case chat.SenderUser:
			history = append(history, schema.UserMessage(msg.Text))
		case chat.SenderBot:
			history = append(history, schema.AssistantMessage(msg.Text, nil))
		}
	}
	return history
}
