package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	authHandler "github.com/zhouzirui/dadmind/backend/internal/handler/auth"
	"github.com/zhouzirui/dadmind/backend/internal/handler/chat"
	expertHandler "github.com/zhouzirui/dadmind/backend/internal/handler/expert"
	markdownHandler "github.com/zhouzirui/dadmind/backend/internal/handler/markdown"
	quizHandler "github.com/zhouzirui/dadmind/backend/internal/handler/quiz"
	"github.com/zhouzirui/dadmind/backend/internal/handler/stream"
	middlewarePkg "github.com/zhouzirui/dadmind/backend/internal/middleware"
	authService "github.com/zhouzirui/dadmind/backend/internal/service/auth"
	chatService "github.com/zhouzirui/dadmind/backend/internal/service/chat"
	"github.com/zhouzirui/dadmind/backend/internal/service/conversation"
	"github.com/zhouzirui/dadmind/backend/internal/service/document"
	expertService "github.com/zhouzirui/dadmind/backend/internal/service/expert"
	quizService "github.com/zhouzirui/dadmind/backend/internal/service/quiz"
	"github.com/zhouzirui/dadmind/backend/pkg/utils"
)

// Services 汇总路由需要的服务
type Services struct {
	Registry  *chatService.Registry
	Pipeline  *conversation.Pipeline
	Ingester  *document.Ingester
	Quiz      *quizService.Service
	Experts   *expertService.Service
	Auth      *authService.Service
	MaxUpload int64
	Logger    zerolog.Logger
}

// NewRouter wires HTTP routes to core services.
func NewRouter(s Services) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewarePkg.Metrics)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]any{
			"status": "ok",
			"ai":     s.Pipeline.Configured(),
		})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(api chi.Router) {
		api.Use(middlewarePkg.Identify(s.Auth))
		api.Use(middlewarePkg.Logger(s.Logger))

		authHandler.New(s.Auth).RegisterRoutes(api)
		chat.New(s.Registry, s.Pipeline, s.Ingester, s.MaxUpload, s.Logger).RegisterRoutes(api)
		stream.New(s.Registry, s.Pipeline, s.Logger).RegisterRoutes(api)
		quizHandler.New(s.Quiz).RegisterRoutes(api)
		expertHandler.New(s.Experts, s.Logger).RegisterRoutes(api)
		markdownHandler.RegisterRoutes(api)
	})

	return r
}
