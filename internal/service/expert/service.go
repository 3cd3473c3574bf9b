package expert

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/dadmind/backend/internal/metrics"
	"github.com/zhouzirui/dadmind/backend/internal/model/chat"
	"github.com/zhouzirui/dadmind/backend/internal/model/expert"
)

var (
	ErrExpertNotFound       = errors.New("expert not found")
	ErrConversationNotFound = errors.New("conversation not found")
	ErrEmptyMessage         = errors.New("message is empty")
)

// DefaultReplyDelay 专家自动回复的默认延迟
const DefaultReplyDelay = 1500 * time.Millisecond

const subscriberBuffer = 16

// Conversation 与一位专家的对话快照
type Conversation struct {
	ID       string         `json:"id"`
	Expert   expert.Expert  `json:"expert"`
	Messages []chat.Message `json:"messages"`
}

type conversation struct {
	id          string
	expert      expert.Expert
	messages    []chat.Message
	subscribers map[int]chan chat.Message
	nextSub     int
	timers      []*time.Timer
}

// Option 自定义 Service
type Option func(*Service)

// WithLogger 设置日志
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithClock 替换时间源
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// Service 模拟专家对话：开场白加上延迟的固定回复
type Service struct {
	experts expert.Store
	delay   time.Duration
	now     func() time.Time
	logger  zerolog.Logger

	mu    sync.Mutex
	convs map[string]*conversation
}

// NewService 创建专家对话服务
func NewService(experts expert.Store, delay time.Duration, opts ...Option) *Service {
	if delay < 0 {
		delay = DefaultReplyDelay
	}
	s := &Service{
		experts: experts,
		delay:   delay,
		now:     time.Now,
		logger:  zerolog.Nop(),
		convs:   make(map[string]*conversation),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Experts 返回专家目录
func (s *Service) Experts() []expert.Expert {
	return s.experts.List()
}

// Start 开启对话，首条消息为专家开场白
func (s *Service) Start(expertID string) (Conversation, error) {
	e, ok := s.experts.FindByID(expertID)
	if !ok {
		return Conversation{}, ErrExpertNotFound
	}

	conv := &conversation{
		id:          uuid.NewString(),
		expert:      e,
		subscribers: make(map[int]chan chat.Message),
	}
	conv.messages = append(conv.messages, s.newMessage(chat.SenderExpert, e.Intro, e.AvatarURL))

	s.mu.Lock()
	s.convs[conv.id] = conv
	s.mu.Unlock()

	s.logger.Debug().Str("conversation", conv.id).Str("expert", e.ID).Msg("[expert] conversation started")
	return snapshot(conv), nil
}

// Send 追加用户消息，并在延迟后追加专家回复
func (s *Service) Send(conversationID, text string) (chat.Message, error) {
	if strings.TrimSpace(text) == "" {
		return chat.Message{}, ErrEmptyMessage
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.convs[conversationID]
	if !ok {
		return chat.Message{}, ErrConversationNotFound
	}

	msg := s.newMessage(chat.SenderUser, text, "")
	s.appendLocked(conv, msg)
	metrics.MessagesSent.WithLabelValues("expert").Inc()

	reply := conv.expert.Reply
	avatar := conv.expert.AvatarURL
	conv.timers = append(conv.timers, time.AfterFunc(s.delay, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		// 对话可能已结束
		if current, ok := s.convs[conversationID]; ok && current == conv {
			s.appendLocked(conv, s.newMessage(chat.SenderExpert, reply, avatar))
		}
	}))
	return msg, nil
}

// Subscribe 订阅之后追加的消息，返回取消函数
func (s *Service) Subscribe(conversationID string) (<-chan chat.Message, func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.convs[conversationID]
	if !ok {
		return nil, nil, ErrConversationNotFound
	}

	id := conv.nextSub
	conv.nextSub++
	ch := make(chan chat.Message, subscriberBuffer)
	conv.subscribers[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if sub, ok := conv.subscribers[id]; ok {
				delete(conv.subscribers, id)
				close(sub)
			}
		})
	}
	return ch, cancel, nil
}

// Conversation 返回对话快照
func (s *Service) Conversation(conversationID string) (Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.convs[conversationID]
	if !ok {
		return Conversation{}, ErrConversationNotFound
	}
	return snapshot(conv), nil
}

// End 结束对话，停止未发出的回复并关闭订阅
func (s *Service) End(conversationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.convs[conversationID]
	if !ok {
		return
	}
	delete(s.convs, conversationID)
	for _, t := range conv.timers {
		t.Stop()
	}
	for id, sub := range conv.subscribers {
		delete(conv.subscribers, id)
		close(sub)
	}
}

func (s *Service) appendLocked(conv *conversation, msg chat.Message) {
	conv.messages = append(conv.messages, msg)
	for _, sub := range conv.subscribers {
		select {
		case sub <- msg:
		default:
			s.logger.Warn().Str("conversation", conv.id).Msg("[expert] subscriber is full, dropping message")
		}
	}
}

func (s *Service) newMessage(sender chat.Sender, text, avatar string) chat.Message {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return chat.Message{
		ID:        id.String(),
		Text:      text,
		Sender:    sender,
		Timestamp: s.now().UTC(),
		Avatar:    avatar,
	}
}

func snapshot(conv *conversation) Conversation {
	return Conversation{
		ID:       conv.id,
		Expert:   conv.expert,
		Messages: append([]chat.Message(nil), conv.messages...),
	}
}
