package auth

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/dadmind/backend/internal/middleware"
	authService "github.com/zhouzirui/dadmind/backend/internal/service/auth"
	"github.com/zhouzirui/dadmind/backend/pkg/utils"
)

// Handler 模拟登录的HTTP处理器
type Handler struct {
	svc *authService.Service
}

// New 创建登录处理器
func New(svc *authService.Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes 注册登录相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/auth/login", h.handleLogin)
	r.Post("/auth/register", h.handleRegister)
	r.Get("/auth/me", h.handleMe)
}

type credentials struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var payload credentials
	if err := utils.DecodeJSON(w, r, 4<<10, &payload); err != nil {
		utils.RespondErrorCode(w, http.StatusBadRequest, "validation", "invalid request body")
		return
	}

	session, err := h.svc.Login(payload.Email, payload.Password)
	if err != nil {
		respondAuthError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, session)
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var payload credentials
	if err := utils.DecodeJSON(w, r, 4<<10, &payload); err != nil {
		utils.RespondErrorCode(w, http.StatusBadRequest, "validation", "invalid request body")
		return
	}

	session, err := h.svc.Register(payload.Name, payload.Email, payload.Password)
	if err != nil {
		respondAuthError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusCreated, session)
}

// handleMe 返回当前用户，未登录时返回 401
func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	u, ok := middleware.UserFrom(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "not logged in")
		return
	}
	utils.RespondJSON(w, http.StatusOK, u)
}

func respondAuthError(w http.ResponseWriter, err error) {
	if errors.Is(err, authService.ErrMissingCredentials) || errors.Is(err, authService.ErrMissingFields) {
		utils.RespondErrorCode(w, http.StatusBadRequest, "validation", err.Error())
		return
	}
	utils.RespondError(w, http.StatusInternalServerError, err.Error())
}
