package conversation

import (
	"context"
	"sync"

	"github.com/zhouzirui/dadmind/backend/internal/model/chat"
)

// EventType names a step of a streamed exchange.
type EventType string

const (
	// EventUser reports the stored user message.
	EventUser EventType = "user"
	// EventStart reports the empty bot placeholder.
	EventStart EventType = "start"
	// EventDelta reports a fragment; Message holds the accumulated text.
	EventDelta EventType = "delta"
	// EventMessage reports the finished bot message.
	EventMessage EventType = "message"
	// EventError reports a failure; Message holds the stored error notice, if any.
	EventError EventType = "error"
)

// terminalReserve keeps buffer room for the events that must not be dropped.
const (
	eventBuffer     = 64
	terminalReserve = 4
)

// Event is one update of a streamed exchange.
type Event struct {
	Type      EventType
	SessionID string
	Message   chat.Message
	Delta     string
	Err       error
}

// Subscription is the consumer side of one Send. It is bound to the session
// the message was sent to, whatever the caller views in the meantime.
type Subscription struct {
	sessionID string
	events    chan Event
	cancel    context.CancelCauseFunc
	done      chan struct{}

	mu          sync.Mutex
	err         error
	userMessage chat.Message
}

func newSubscription(sessionID string, cancel context.CancelCauseFunc) *Subscription {
	return &Subscription{
		sessionID: sessionID,
		events:    make(chan Event, eventBuffer),
		cancel:    cancel,
		done:      make(chan struct{}),
	}
}

// SessionID returns the originating session.
func (s *Subscription) SessionID() string {
	return s.sessionID
}

// UserMessage returns the stored user message.
func (s *Subscription) UserMessage() chat.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userMessage
}

// Events is closed after the final event. Intermediate deltas may be
// skipped when the consumer falls behind; every delta carries the full
// accumulated text, so nothing is lost.
func (s *Subscription) Events() <-chan Event {
	return s.events
}

// Done is closed when the exchange has finished.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Cancel stops the exchange. Text received so far is kept.
func (s *Subscription) Cancel() {
	s.cancel(ErrCancelled)
}

// Err returns the failure of a finished exchange, or nil.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Wait blocks until the exchange finishes and returns Err.
func (s *Subscription) Wait() error {
	<-s.done
	return s.Err()
}

func (s *Subscription) setUserMessage(msg chat.Message) {
	s.mu.Lock()
	s.userMessage = msg
	s.mu.Unlock()
}

func (s *Subscription) fail(err error) {
	s.mu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.mu.Unlock()
}

func (s *Subscription) emit(ev Event) {
	ev.SessionID = s.sessionID
	if ev.Type == EventDelta && len(s.events) >= cap(s.events)-terminalReserve {
		return
	}
	s.events <- ev
}

func (s *Subscription) finish() {
	close(s.events)
	close(s.done)
}
