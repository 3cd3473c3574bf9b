package chat

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/dadmind/backend/internal/metrics"
	"github.com/zhouzirui/dadmind/backend/internal/model/chat"
	"github.com/zhouzirui/dadmind/backend/internal/storage"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrMessageNotFound = errors.New("message not found")
)

const (
	sessionsKey = "chatSessions"
	activeKey   = "activeChatSessionId"

	defaultRetryInterval = 5 * time.Second

	// WelcomeText opens every new session.
	WelcomeText = "Xin chào! Tôi là DadMind AI. Bạn cần chia sẻ điều gì hôm nay?"
)

// Option customises a Store.
type Option func(*Store)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator overrides session and message id allocation.
func WithIDGenerator(newID func() string) Option {
	return func(s *Store) { s.newID = newID }
}

// WithLogger attaches a logger for persistence warnings.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// WithRetryInterval sets how often an offline store re-reads storage.
func WithRetryInterval(d time.Duration) Option {
	return func(s *Store) { s.retryInterval = d }
}

// WithKeyPrefix namespaces the storage keys.
func WithKeyPrefix(prefix string) Option {
	return func(s *Store) { s.prefix = prefix }
}

// Store owns one user's chat sessions and the active session pointer.
// Sessions are kept newest first. Every mutation is written through to the
// key-value store; storage failures are logged and otherwise ignored so the
// store keeps working from memory.
//
// A store whose restore could not read storage is offline: it serves a
// fresh in-memory session and writes nothing until a later read succeeds,
// so the stored collection is never replaced by one it has not seen.
type Store struct {
	mu       sync.Mutex
	kv       storage.KV
	owner    string
	prefix   string
	sessions []chat.ChatSession
	activeID string

	offline       bool
	lastRead      time.Time
	retryInterval time.Duration

	now    func() time.Time
	newID  func() string
	logger zerolog.Logger
}

// NewStore returns an empty store. Call Restore before serving requests.
func NewStore(kv storage.KV, owner string, opts ...Option) *Store {
	s := &Store{
		kv:            kv,
		owner:         owner,
		prefix:        "dadmind",
		retryInterval: defaultRetryInterval,
		now:           time.Now,
		newID:         newV7,
		logger:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func newV7() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Restore loads persisted sessions. When none are stored, or the stored
// value cannot be parsed, a fresh session is created instead. When storage
// cannot be read the store goes offline (see Store).
func (s *Store) Restore(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.restoreLocked(ctx)
}

// Offline reports whether the store is running from memory only.
func (s *Store) Offline() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.offline
}

// Retry re-reads storage for an offline store, at most once per retry
// interval. Sessions that gained messages while offline are kept in front
// of the restored ones.
func (s *Store) Retry(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.offline || s.now().Sub(s.lastRead) < s.retryInterval {
		return
	}
	s.restoreLocked(ctx)
}

func (s *Store) restoreLocked(ctx context.Context) {
	s.lastRead = s.now()
	stored, err := s.readSessions(ctx)
	if err != nil {
		metrics.StorageErrors.WithLabelValues("restore").Inc()
		s.logger.Warn().Err(err).Str("owner", s.owner).Msg("failed to read chat sessions, serving from memory")
		s.offline = true
		if len(s.sessions) == 0 {
			s.activeID = ""
			s.createLocked()
		}
		return
	}

	var local []chat.ChatSession
	activeLocal := ""
	if s.offline {
		local = unsaved(s.sessions, stored)
		for _, session := range local {
			if session.ID == s.activeID {
				activeLocal = session.ID
			}
		}
		s.offline = false
		s.logger.Info().Str("owner", s.owner).Int("kept", len(local)).Msg("chat session storage is readable again")
	}

	s.sessions = append(local, stored...)
	if len(s.sessions) == 0 {
		s.activeID = ""
		s.createLocked()
		s.persistLocked(ctx)
		return
	}

	s.activeID = s.sessions[0].ID
	if activeLocal != "" {
		s.activeID = activeLocal
	} else if recorded := s.readActiveID(ctx); recorded != "" && s.indexLocked(recorded) >= 0 {
		s.activeID = recorded
	}
	s.persistLocked(ctx)
}

// unsaved returns the sessions of local that storage does not hold and that
// carry at least one non-system message.
func unsaved(local, stored []chat.ChatSession) []chat.ChatSession {
	known := make(map[string]struct{}, len(stored))
	for _, session := range stored {
		known[session.ID] = struct{}{}
	}
	var out []chat.ChatSession
	for _, session := range local {
		if _, ok := known[session.ID]; ok {
			continue
		}
		for _, msg := range session.Messages {
			if !msg.System {
				out = append(out, session)
				break
			}
		}
	}
	return out
}

// readSessions returns nil with no error when nothing usable is stored.
func (s *Store) readSessions(ctx context.Context) ([]chat.ChatSession, error) {
	raw, ok, err := s.kv.Get(ctx, s.key(sessionsKey))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	var stored []chat.ChatSession
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		s.logger.Warn().Err(err).Str("owner", s.owner).Msg("discarding unparseable chat sessions")
		return nil, nil
	}

	seen := make(map[string]struct{}, len(stored))
	sessions := make([]chat.ChatSession, 0, len(stored))
	for _, session := range stored {
		if session.ID == "" {
			continue
		}
		if _, dup := seen[session.ID]; dup {
			continue
		}
		seen[session.ID] = struct{}{}
		sessions = append(sessions, session)
	}
	return sessions, nil
}

func (s *Store) readActiveID(ctx context.Context) string {
	raw, ok, err := s.kv.Get(ctx, s.key(activeKey))
	if err != nil || !ok {
		return ""
	}
	var id string
	if err := json.Unmarshal([]byte(raw), &id); err != nil {
		return ""
	}
	return id
}

// CreateSession prepends a new session holding the welcome message and makes it active.
func (s *Store) CreateSession(ctx context.Context) chat.ChatSession {
	s.mu.Lock()
	defer s.mu.Unlock()

	session := s.createLocked()
	s.persistLocked(ctx)
	return session.Clone()
}

func (s *Store) createLocked() chat.ChatSession {
	now := s.now().UTC()
	session := chat.ChatSession{
		ID:    s.newID(),
		Title: chat.DefaultTitle(now),
		Messages: []chat.Message{{
			ID:        s.newID(),
			Text:      WelcomeText,
			Sender:    chat.SenderBot,
			Timestamp: now,
			System:    true,
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.sessions = append([]chat.ChatSession{session}, s.sessions...)
	s.activeID = session.ID
	metrics.SessionsCreated.Inc()
	return session
}

// LoadSession makes id the active session and returns it.
func (s *Store) LoadSession(ctx context.Context, id string) (chat.ChatSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(id)
	if idx < 0 {
		return chat.ChatSession{}, ErrSessionNotFound
	}
	s.activeID = id
	s.persistLocked(ctx)
	return s.sessions[idx].Clone(), nil
}

// DeleteSession removes a session. Deleting the active session promotes the
// first remaining one, or creates a replacement when none remain.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(id)
	if idx < 0 {
		return ErrSessionNotFound
	}
	s.sessions = append(s.sessions[:idx:idx], s.sessions[idx+1:]...)
	metrics.SessionsDeleted.Inc()

	switch {
	case len(s.sessions) == 0:
		s.activeID = ""
		s.createLocked()
	case s.activeID == id:
		s.activeID = s.sessions[0].ID
	}
	s.persistLocked(ctx)
	return nil
}

// AppendMessage adds msg to the end of a session. Missing ids and
// timestamps are filled in. The first non-system user message replaces the
// placeholder title.
func (s *Store) AppendMessage(ctx context.Context, sessionID string, msg chat.Message) (chat.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(sessionID)
	if idx < 0 {
		return chat.Message{}, ErrSessionNotFound
	}

	if msg.ID == "" {
		msg.ID = s.newID()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = s.now().UTC()
	}

	session := &s.sessions[idx]
	session.Messages = append(session.Messages, msg)
	if msg.Sender == chat.SenderUser && !msg.System && session.HasDefaultTitle() {
		if text := strings.TrimSpace(msg.Text); text != "" {
			session.Title = chat.TitleFromText(text)
		}
	}
	s.touchLocked(session)
	s.persistLocked(ctx)
	return msg, nil
}

// SetMessageText overwrites the text of a bot message, keeping its id and sender.
func (s *Store) SetMessageText(ctx context.Context, sessionID, messageID, text string) error {
	return s.updateBotMessage(ctx, sessionID, messageID, func(m *chat.Message) {
		m.Text = text
	})
}

// FailMessage replaces a bot message with an error notice excluded from history.
func (s *Store) FailMessage(ctx context.Context, sessionID, messageID, text string) error {
	return s.updateBotMessage(ctx, sessionID, messageID, func(m *chat.Message) {
		m.Text = text
		m.System = true
	})
}

func (s *Store) updateBotMessage(ctx context.Context, sessionID, messageID string, update func(*chat.Message)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(sessionID)
	if idx < 0 {
		return ErrSessionNotFound
	}
	session := &s.sessions[idx]
	for i := range session.Messages {
		msg := &session.Messages[i]
		if msg.ID != messageID {
			continue
		}
		if msg.Sender != chat.SenderBot {
			return ErrMessageNotFound
		}
		update(msg)
		s.touchLocked(session)
		s.persistLocked(ctx)
		return nil
	}
	return ErrMessageNotFound
}

// Session returns a copy of the named session.
func (s *Store) Session(_ context.Context, id string) (chat.ChatSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(id)
	if idx < 0 {
		return chat.ChatSession{}, ErrSessionNotFound
	}
	return s.sessions[idx].Clone(), nil
}

// Sessions returns copies of all sessions, newest first.
func (s *Store) Sessions(_ context.Context) []chat.ChatSession {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]chat.ChatSession, len(s.sessions))
	for i, session := range s.sessions {
		out[i] = session.Clone()
	}
	return out
}

// ActiveID returns the active session id, or "" before Restore.
func (s *Store) ActiveID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeID
}

// Active returns the active session.
func (s *Store) Active(_ context.Context) (chat.ChatSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(s.activeID)
	if idx < 0 {
		return chat.ChatSession{}, false
	}
	return s.sessions[idx].Clone(), true
}

// Persist writes the session collection and active id to storage.
func (s *Store) Persist(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.persistLocked(ctx)
}

func (s *Store) persistLocked(ctx context.Context) {
	if s.offline {
		return
	}
	sessions := s.sessions
	if sessions == nil {
		sessions = []chat.ChatSession{}
	}
	sessionsJSON, err := json.Marshal(sessions)
	if err != nil {
		s.logger.Error().Err(err).Str("owner", s.owner).Msg("failed to encode chat sessions")
		return
	}
	activeJSON, err := json.Marshal(s.activeID)
	if err != nil {
		return
	}

	if err := s.kv.Set(ctx, s.key(sessionsKey), string(sessionsJSON)); err != nil {
		metrics.StorageErrors.WithLabelValues("persist").Inc()
		s.logger.Warn().Err(err).Str("owner", s.owner).Msg("failed to persist chat sessions")
		return
	}
	if err := s.kv.Set(ctx, s.key(activeKey), string(activeJSON)); err != nil {
		metrics.StorageErrors.WithLabelValues("persist").Inc()
		s.logger.Warn().Err(err).Str("owner", s.owner).Msg("failed to persist active session id")
	}
}

func (s *Store) touchLocked(session *chat.ChatSession) {
	now := s.now().UTC()
	if !now.After(session.UpdatedAt) {
		now = session.UpdatedAt.Add(time.Millisecond)
	}
	session.UpdatedAt = now
}

func (s *Store) indexLocked(id string) int {
	if id == "" {
		return -1
	}
	for i := range s.sessions {
		if s.sessions[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) key(name string) string {
	return s.prefix + ":" + s.owner + ":" + name
}
