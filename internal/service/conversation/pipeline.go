package conversation

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/dadmind/backend/internal/metrics"
	"github.com/zhouzirui/dadmind/backend/internal/model/chat"
	"github.com/zhouzirui/dadmind/backend/internal/service/ai"
)

var (
	ErrEmptyMessage  = errors.New("message is empty")
	ErrNotConfigured = errors.New("API Key is not configured. Please set your API Key.")
	ErrSendInFlight  = errors.New("a reply is still streaming for this session")
	ErrCancelled     = errors.New("reply cancelled")
	ErrSessionClosed = errors.New("session closed")
)

// ErrorReplyPrefix starts every stored failure notice.
const ErrorReplyPrefix = "Sorry, I encountered an error. AI Error: "

// ErrorText renders err as the notice stored in place of a reply.
func ErrorText(err error) string {
	return ErrorReplyPrefix + err.Error()
}

// Completer produces assistant replies.
type Completer interface {
	StreamingEnabled() bool
	GenerateReply(ctx context.Context, history []*schema.Message, query string) (*schema.Message, error)
	StreamReply(ctx context.Context, history []*schema.Message, query string) (*schema.StreamReader[*schema.Message], error)
}

// SessionStore is the part of the chat store the pipeline writes to.
type SessionStore interface {
	Session(ctx context.Context, id string) (chat.ChatSession, error)
	AppendMessage(ctx context.Context, sessionID string, msg chat.Message) (chat.Message, error)
	SetMessageText(ctx context.Context, sessionID, messageID, text string) error
	FailMessage(ctx context.Context, sessionID, messageID, text string) error
}

// Attachment is document text bound to a session.
type Attachment struct {
	FileName string
	Content  string
}

// Request is one user message.
type Request struct {
	SessionID string
	Text      string
	// File overrides the session attachment for this message only.
	File *Attachment
}

// Option customises a Pipeline.
type Option func(*Pipeline)

// WithLogger attaches a logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(p *Pipeline) { p.logger = logger }
}

// WithExcerptLimit caps how much attached text goes into a prompt.
func WithExcerptLimit(limit int) Option {
	return func(p *Pipeline) { p.excerptLimit = limit }
}

// Pipeline streams assistant replies into sessions. Each session has at
// most one exchange in flight; fragments always land in the session the
// message was sent to.
type Pipeline struct {
	completer    Completer
	logger       zerolog.Logger
	excerptLimit int

	mu          sync.Mutex
	channels    map[string]*Channel
	inflight    map[string]*Subscription
	attachments map[string]Attachment
}

// New returns a pipeline. A nil completer leaves the pipeline unconfigured:
// every Send fails with ErrNotConfigured.
func New(completer Completer, opts ...Option) *Pipeline {
	p := &Pipeline{
		completer:    completer,
		logger:       zerolog.Nop(),
		excerptLimit: 15000,
		channels:     make(map[string]*Channel),
		inflight:     make(map[string]*Subscription),
		attachments:  make(map[string]Attachment),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Configured reports whether replies can be produced.
func (p *Pipeline) Configured() bool {
	return p.completer != nil
}

// Open seeds a fresh channel from the session transcript, replacing any
// previous one.
func (p *Pipeline) Open(session chat.ChatSession) (*Channel, error) {
	if p.completer == nil {
		return nil, ErrNotConfigured
	}
	ch := newChannel(session)
	p.mu.Lock()
	p.channels[session.ID] = ch
	p.mu.Unlock()
	return ch, nil
}

// Close cancels the in-flight exchange of a session and forgets its
// channel and attachment. Used when the session is deleted.
func (p *Pipeline) Close(sessionID string) {
	p.mu.Lock()
	sub := p.inflight[sessionID]
	delete(p.channels, sessionID)
	delete(p.attachments, sessionID)
	p.mu.Unlock()

	if sub != nil {
		sub.cancel(ErrSessionClosed)
	}
}

// Attach binds document text to a session. Later messages are answered
// against it until Detach.
func (p *Pipeline) Attach(sessionID string, file Attachment) {
	p.mu.Lock()
	p.attachments[sessionID] = file
	p.mu.Unlock()
}

// Detach removes the session attachment.
func (p *Pipeline) Detach(sessionID string) {
	p.mu.Lock()
	delete(p.attachments, sessionID)
	p.mu.Unlock()
}

// Attachment returns the document bound to a session.
func (p *Pipeline) Attachment(sessionID string) (Attachment, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	a, ok := p.attachments[sessionID]
	return a, ok
}

// InFlight reports whether a reply is streaming for the session.
func (p *Pipeline) InFlight(sessionID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.inflight[sessionID]
	return ok
}

// Send stores the user message and starts the reply. The reply runs
// detached from ctx so it is persisted even if the caller goes away; use
// Subscription.Cancel to stop it.
func (p *Pipeline) Send(ctx context.Context, store SessionStore, req Request) (*Subscription, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, ErrEmptyMessage
	}
	if p.completer == nil {
		return nil, ErrNotConfigured
	}

	session, err := store.Session(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancelCause(context.WithoutCancel(ctx))
	sub := newSubscription(session.ID, cancel)

	p.mu.Lock()
	if _, busy := p.inflight[session.ID]; busy {
		p.mu.Unlock()
		cancel(nil)
		return nil, ErrSendInFlight
	}
	ch := p.channels[session.ID]
	if ch == nil {
		ch = newChannel(session)
		p.channels[session.ID] = ch
	}
	file := req.File
	if file == nil {
		if a, ok := p.attachments[session.ID]; ok {
			file = &a
		}
	}
	p.inflight[session.ID] = sub
	p.mu.Unlock()

	query := req.Text
	if file != nil && file.Content != "" {
		query = ai.DocumentPrompt(file.FileName, file.Content, req.Text, p.excerptLimit)
	}
	history := ch.History()

	userMsg, err := store.AppendMessage(ctx, session.ID, chat.Message{
		Text:   req.Text,
		Sender: chat.SenderUser,
	})
	if err != nil {
		p.release(sub)
		cancel(nil)
		return nil, err
	}
	sub.setUserMessage(userMsg)
	metrics.MessagesSent.WithLabelValues("assistant").Inc()

	go p.run(runCtx, store, sub, history, query)
	return sub, nil
}

func (p *Pipeline) run(ctx context.Context, store SessionStore, sub *Subscription, history []*schema.Message, query string) {
	started := time.Now()
	sessionID := sub.sessionID
	// store writes outlive a cancelled exchange
	storeCtx := context.WithoutCancel(ctx)
	logger := p.logger.With().Str("session", sessionID).Logger()

	defer func() {
		p.release(sub)
		sub.cancel(nil)
		sub.finish()
	}()

	sub.emit(Event{Type: EventUser, Message: sub.UserMessage()})

	stream, err := p.open(ctx, history, query)
	if err != nil {
		metrics.StreamFailures.WithLabelValues("open").Inc()
		logger.Warn().Err(err).Msg("[conversation] failed to open reply stream")
		sub.fail(err)
		notice, appendErr := store.AppendMessage(storeCtx, sessionID, chat.Message{
			Text:   ErrorText(err),
			Sender: chat.SenderBot,
			System: true,
		})
		if appendErr != nil {
			sub.emit(Event{Type: EventError, Err: err})
			return
		}
		sub.emit(Event{Type: EventError, Message: notice, Err: err})
		p.reseed(storeCtx, store, sessionID)
		return
	}
	defer stream.Close()

	reply, err := store.AppendMessage(storeCtx, sessionID, chat.Message{Sender: chat.SenderBot})
	if err != nil {
		sub.fail(err)
		sub.emit(Event{Type: EventError, Err: err})
		return
	}
	sub.emit(Event{Type: EventStart, Message: reply})

	var text strings.Builder
	for {
		chunk, recvErr := stream.Recv()
		if errors.Is(recvErr, io.EOF) {
			break
		}
		if ctx.Err() != nil {
			p.abort(storeCtx, store, sub, reply, text.String(), context.Cause(ctx))
			return
		}
		if recvErr != nil {
			metrics.StreamFailures.WithLabelValues("recv").Inc()
			logger.Warn().Err(recvErr).Msg("[conversation] reply stream failed")
			sub.fail(recvErr)
			reply.Text = ErrorText(recvErr)
			reply.System = true
			if err := store.FailMessage(storeCtx, sessionID, reply.ID, reply.Text); err != nil {
				logger.Warn().Err(err).Msg("[conversation] failed to store error notice")
			}
			sub.emit(Event{Type: EventError, Message: reply, Err: recvErr})
			p.reseed(storeCtx, store, sessionID)
			return
		}
		if chunk == nil || chunk.Content == "" {
			continue
		}

		text.WriteString(chunk.Content)
		metrics.StreamFragments.Inc()
		if err := store.SetMessageText(storeCtx, sessionID, reply.ID, text.String()); err != nil {
			// 会话已被删除，剩余片段丢弃
			metrics.StreamFailures.WithLabelValues("cancelled").Inc()
			sub.fail(err)
			sub.emit(Event{Type: EventError, Err: err})
			return
		}
		reply.Text = text.String()
		sub.emit(Event{Type: EventDelta, Message: reply, Delta: chunk.Content})
	}

	if ctx.Err() != nil {
		p.abort(storeCtx, store, sub, reply, text.String(), context.Cause(ctx))
		return
	}

	metrics.StreamDuration.Observe(time.Since(started).Seconds())
	sub.emit(Event{Type: EventMessage, Message: reply})
	p.reseed(storeCtx, store, sessionID)
	logger.Debug().Int("chars", len(reply.Text)).Msg("[conversation] reply completed")
}

// abort finishes a cancelled exchange. A closed session gets no further
// writes; a cancelled one keeps the partial text.
func (p *Pipeline) abort(ctx context.Context, store SessionStore, sub *Subscription, reply chat.Message, text string, cause error) {
	metrics.StreamFailures.WithLabelValues("cancelled").Inc()
	if cause == nil {
		cause = ErrCancelled
	}
	sub.fail(cause)
	if errors.Is(cause, ErrSessionClosed) {
		sub.emit(Event{Type: EventError, Err: cause})
		return
	}

	if text == "" {
		reply.Text = ErrorText(cause)
		reply.System = true
		if err := store.FailMessage(ctx, sub.sessionID, reply.ID, reply.Text); err != nil {
			p.logger.Warn().Err(err).Str("session", sub.sessionID).Msg("[conversation] failed to store cancel notice")
		}
	} else {
		reply.Text = text
	}
	sub.emit(Event{Type: EventError, Message: reply, Err: cause})
	p.reseed(ctx, store, sub.sessionID)
}

// open starts a reply. Non-streaming completers are wrapped as a single
// fragment.
func (p *Pipeline) open(ctx context.Context, history []*schema.Message, query string) (*schema.StreamReader[*schema.Message], error) {
	if p.completer.StreamingEnabled() {
		return p.completer.StreamReply(ctx, history, query)
	}
	resp, err := p.completer.GenerateReply(ctx, history, query)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{resp}), nil
}

// reseed rebuilds the channel from the stored transcript after every
// finished exchange, failed ones included, so the history always matches
// what Open would build. An unanswered user turn stays in it.
func (p *Pipeline) reseed(ctx context.Context, store SessionStore, sessionID string) {
	session, err := store.Session(ctx, sessionID)
	if err != nil {
		return
	}
	p.mu.Lock()
	if _, ok := p.channels[sessionID]; ok {
		p.channels[sessionID] = newChannel(session)
	}
	p.mu.Unlock()
}

func (p *Pipeline) release(sub *Subscription) {
	p.mu.Lock()
	if p.inflight[sub.sessionID] == sub {
		delete(p.inflight, sub.sessionID)
	}
	p.mu.Unlock()
}
