package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/dadmind/backend/internal/config"
	"github.com/zhouzirui/dadmind/backend/internal/handler"
	"github.com/zhouzirui/dadmind/backend/internal/model/expert"
	"github.com/zhouzirui/dadmind/backend/internal/model/quiz"
	"github.com/zhouzirui/dadmind/backend/internal/service/ai"
	"github.com/zhouzirui/dadmind/backend/internal/service/auth"
	"github.com/zhouzirui/dadmind/backend/internal/service/chat"
	"github.com/zhouzirui/dadmind/backend/internal/service/conversation"
	"github.com/zhouzirui/dadmind/backend/internal/service/document"
	expertservice "github.com/zhouzirui/dadmind/backend/internal/service/expert"
	quizservice "github.com/zhouzirui/dadmind/backend/internal/service/quiz"
	"github.com/zhouzirui/dadmind/backend/internal/storage"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		bootLogger := zerolog.New(os.Stderr)
		bootLogger.Fatal().Err(err).Msg("failed to load configuration")
	}

	logger := newLogger(cfg.Server)
	if envErr != nil {
		logger.Debug().Err(envErr).Msg("no .env file, continuing with system environment variables only")
	}

	kv, err := storage.Open(ctx, cfg.Storage, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.Storage.Driver).Msg("failed to open session storage")
	}
	defer kv.Close()

	registry := chat.NewRegistry(kv,
		chat.WithLogger(logger),
		chat.WithKeyPrefix(cfg.Storage.KeyPrefix),
	)

	// Initialize AI service
	var (
		completer conversation.Completer
		adviser   quizservice.Adviser
	)
	if cfg.AI.Enabled() {
		aiService, err := ai.NewService(ctx, cfg.AI, logger)
		if err != nil {
			logger.Warn().Err(err).Str("provider", cfg.AI.Provider).Msg("failed to initialize AI service, continuing without AI functionality")
		} else {
			completer = aiService
			adviser = aiService
			logger.Info().Str("provider", cfg.AI.Provider).Str("model", cfg.AI.Model).Msg("AI service initialized")
		}
	} else {
		logger.Warn().Msg("API Key is not configured, AI chat and advice are disabled")
	}

	pipeline := conversation.New(completer,
		conversation.WithLogger(logger),
		conversation.WithExcerptLimit(cfg.Document.PromptExcerpt),
	)

	ingester, err := document.NewIngester(ctx, cfg.Document.MaxChars, document.WithLogger(logger))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize document parsers")
	}

	router := handler.NewRouter(handler.Services{
		Registry:  registry,
		Pipeline:  pipeline,
		Ingester:  ingester,
		Quiz:      quizservice.NewService(quiz.Seed(), adviser, logger),
		Experts:   expertservice.NewService(expert.NewMemoryStore(expert.Seed()), cfg.Expert.ReplyDelay, expertservice.WithLogger(logger)),
		Auth:      auth.NewService(cfg.Auth),
		MaxUpload: cfg.Document.MaxUploadBytes,
		Logger:    logger,
	})

	startServer(ctx, cfg.Server, router, logger)
}

func newLogger(serverCfg config.ServerConfig) zerolog.Logger {
	if serverCfg.IsDevelopment() {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			With().
			Timestamp().
			Logger()
	}
	return zerolog.New(os.Stdout).
		With().
		Timestamp().
		Logger()
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler, logger zerolog.Logger) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logger.Info().Str("addr", addr).Msg("DadMind backend listening")
	if err := runServer(ctx, srv); err != nil {
		logger.Fatal().Err(err).Msg("server error")
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
