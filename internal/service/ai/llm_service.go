package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/dadmind/backend/internal/config"
)

// Service wraps the hosted completion model behind two compiled chains:
// a conversational one seeded with history, and a one-shot advice chain.
type Service struct {
	chatModel model.BaseChatModel
	cfg       config.AIConfig
	chain     compose.Runnable[map[string]any, *schema.Message]
	advice    compose.Runnable[map[string]any, *schema.Message]
	logger    zerolog.Logger
}

// NewService creates the service from configuration.
func NewService(ctx context.Context, cfg config.AIConfig, logger zerolog.Logger) (*Service, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}
	return NewServiceWithModel(ctx, chatModel, cfg, logger)
}

// NewServiceWithModel builds the chains around an existing model.
func NewServiceWithModel(ctx context.Context, chatModel model.BaseChatModel, cfg config.AIConfig, logger zerolog.Logger) (*Service, error) {
	chatTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(chatTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	adviceTemplate := prompt.FromMessages(
		schema.FString,
		schema.UserMessage("{query}"),
	)

	adviceChain := compose.NewChain[map[string]any, *schema.Message]()
	adviceChain.AppendChatTemplate(adviceTemplate)
	adviceChain.AppendChatModel(chatModel)

	adviceRunnable, err := adviceChain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile advice chain: %w", err)
	}

	return &Service{
		chatModel: chatModel,
		cfg:       cfg,
		chain:     runnable,
		advice:    adviceRunnable,
		logger:    logger,
	}, nil
}

// StreamingEnabled 指示是否开启流式输出。
func (s *Service) StreamingEnabled() bool {
	return s.cfg.StreamResponse
}

// GenerateReply returns a complete assistant reply.
func (s *Service) GenerateReply(ctx context.Context, history []*schema.Message, query string) (*schema.Message, error) {
	response, err := s.chain.Invoke(ctx, buildChainInput(history, query))
	if err != nil {
		return nil, fmt.Errorf("failed to run AI chain: %w", err)
	}

	s.logger.Debug().Int("history", len(history)).Int("length", len(response.Content)).Msg("generated reply")
	return response, nil
}

// StreamReply streams assistant reply fragments.
func (s *Service) StreamReply(ctx context.Context, history []*schema.Message, query string) (*schema.StreamReader[*schema.Message], error) {
	if !s.StreamingEnabled() {
		return nil, fmt.Errorf("streaming disabled in configuration")
	}

	stream, err := s.chain.Stream(ctx, buildChainInput(history, query))
	if err != nil {
		return nil, fmt.Errorf("failed to stream AI chain output: %w", err)
	}
	return stream, nil
}

// GenerateAdvice asks for short stress-management advice for a quiz result.
func (s *Service) GenerateAdvice(ctx context.Context, percentage int) (string, error) {
	response, err := s.advice.Invoke(ctx, map[string]any{"query": AdvicePrompt(percentage)})
	if err != nil {
		return "", fmt.Errorf("failed to generate advice: %w", err)
	}
	return strings.TrimSpace(response.Content), nil
}

func buildChainInput(history []*schema.Message, query string) map[string]any {
	return map[string]any{
		"system":  SystemInstruction,
		"history": history,
		"query":   query,
	}
}
