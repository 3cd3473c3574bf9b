package chat

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/dadmind/backend/internal/metrics"
	"github.com/zhouzirui/dadmind/backend/internal/middleware"
	"github.com/zhouzirui/dadmind/backend/internal/model/chat"
	chatService "github.com/zhouzirui/dadmind/backend/internal/service/chat"
	"github.com/zhouzirui/dadmind/backend/internal/service/conversation"
	"github.com/zhouzirui/dadmind/backend/internal/service/document"
	"github.com/zhouzirui/dadmind/backend/pkg/utils"
)

// Handler 聊天会话的HTTP处理器
type Handler struct {
	registry  *chatService.Registry
	pipeline  *conversation.Pipeline
	ingester  *document.Ingester
	maxUpload int64
	logger    zerolog.Logger
}

// New 创建聊天处理器
func New(registry *chatService.Registry, pipeline *conversation.Pipeline, ingester *document.Ingester, maxUpload int64, logger zerolog.Logger) *Handler {
	return &Handler{
		registry:  registry,
		pipeline:  pipeline,
		ingester:  ingester,
		maxUpload: maxUpload,
		logger:    logger,
	}
}

// RegisterRoutes 注册聊天相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/chat", func(r chi.Router) {
		r.Get("/sessions", h.handleListSessions)
		r.Post("/sessions", h.handleCreateSession)
		r.Get("/active", h.handleActiveSession)
		r.Get("/sessions/{id}", h.handleLoadSession)
		r.Delete("/sessions/{id}", h.handleDeleteSession)
		r.Post("/sessions/{id}/attachment", h.handleAttach)
		r.Delete("/sessions/{id}/attachment", h.handleDetach)
	})
}

type sessionList struct {
	Sessions []chat.ChatSession `json:"sessions"`
	ActiveID string             `json:"activeId"`
	// Offline 表示存储暂不可读，改动只保存在内存中
	Offline bool `json:"offline,omitempty"`
}

type sessionView struct {
	chat.ChatSession
	Attachment *attachmentView `json:"attachment,omitempty"`
	Streaming  bool            `json:"streaming"`
}

type attachmentView struct {
	FileName string `json:"fileName"`
	Chars    int    `json:"chars"`
}

func (h *Handler) store(r *http.Request) *chatService.Store {
	return h.registry.Store(r.Context(), middleware.OwnerFrom(r.Context()))
}

func (h *Handler) view(session chat.ChatSession) sessionView {
	v := sessionView{ChatSession: session, Streaming: h.pipeline.InFlight(session.ID)}
	if a, ok := h.pipeline.Attachment(session.ID); ok {
		v.Attachment = &attachmentView{FileName: a.FileName, Chars: len([]rune(a.Content))}
	}
	return v
}

// openChannel 切换会话时重建对话通道；未配置模型时跳过
func (h *Handler) openChannel(session chat.ChatSession) {
	if _, err := h.pipeline.Open(session); err != nil && !errors.Is(err, conversation.ErrNotConfigured) {
		h.logger.Warn().Err(err).Str("session", session.ID).Msg("[chat] failed to open channel")
	}
}

// handleListSessions 列出会话
func (h *Handler) handleListSessions(w http.ResponseWriter, r *http.Request) {
	store := h.store(r)
	utils.RespondJSON(w, http.StatusOK, sessionList{
		Sessions: store.Sessions(r.Context()),
		ActiveID: store.ActiveID(),
		Offline:  store.Offline(),
	})
}

// handleCreateSession 创建会话并设为当前会话
func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	session := h.store(r).CreateSession(r.Context())
	h.openChannel(session)
	utils.RespondJSON(w, http.StatusCreated, h.view(session))
}

// handleActiveSession 返回当前会话
func (h *Handler) handleActiveSession(w http.ResponseWriter, r *http.Request) {
	session, ok := h.store(r).Active(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusNotFound, chatService.ErrSessionNotFound.Error())
		return
	}
	utils.RespondJSON(w, http.StatusOK, h.view(session))
}

// handleLoadSession 切换到指定会话
func (h *Handler) handleLoadSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.store(r).LoadSession(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondStoreError(w, err)
		return
	}
	h.openChannel(session)
	utils.RespondJSON(w, http.StatusOK, h.view(session))
}

// handleDeleteSession 删除会话，进行中的回复随之取消
func (h *Handler) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	store := h.store(r)
	if err := store.DeleteSession(r.Context(), id); err != nil {
		respondStoreError(w, err)
		return
	}
	h.pipeline.Close(id)

	if active, ok := store.Active(r.Context()); ok {
		h.openChannel(active)
	}
	utils.RespondJSON(w, http.StatusOK, sessionList{
		Sessions: store.Sessions(r.Context()),
		ActiveID: store.ActiveID(),
		Offline:  store.Offline(),
	})
}

type attachResponse struct {
	Document document.Document `json:"document"`
	Notices  []chat.Message    `json:"notices"`
}

// handleAttach 上传文档并绑定到会话，之后的提问会基于文档内容
func (h *Handler) handleAttach(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	store := h.store(r)
	if _, err := store.Session(r.Context(), id); err != nil {
		respondStoreError(w, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	file, header, err := r.FormFile("file")
	if err != nil {
		utils.RespondErrorCode(w, http.StatusBadRequest, "validation", "file is required")
		return
	}
	defer file.Close()

	if !h.ingester.Supported(header.Filename) {
		metrics.DocumentsIngested.WithLabelValues("rejected").Inc()
		utils.RespondErrorCode(w, http.StatusUnsupportedMediaType, "document", "Định dạng tệp không được hỗ trợ: "+header.Filename)
		return
	}

	doc, err := h.ingester.Ingest(r.Context(), header.Filename, file)
	if err != nil {
		h.logger.Warn().Err(err).Str("session", id).Str("file", header.Filename).Msg("[chat] document ingestion failed")
		status := http.StatusUnprocessableEntity
		if errors.Is(err, document.ErrUnsupportedType) {
			status = http.StatusUnsupportedMediaType
		}
		utils.RespondErrorCode(w, status, "document", "Không thể đọc tệp: "+header.Filename)
		return
	}

	h.pipeline.Attach(id, conversation.Attachment{FileName: doc.FileName, Content: doc.Content})

	texts := append([]string{"Đã tải lên tài liệu: " + doc.FileName}, doc.Notices...)
	notices := make([]chat.Message, 0, len(texts))
	for _, text := range texts {
		msg, err := store.AppendMessage(r.Context(), id, chat.Message{
			Text:   text,
			Sender: chat.SenderBot,
			System: true,
		})
		if err != nil {
			respondStoreError(w, err)
			return
		}
		notices = append(notices, msg)
	}
	utils.RespondJSON(w, http.StatusCreated, attachResponse{Document: doc, Notices: notices})
}

// handleDetach 解除会话的文档绑定
func (h *Handler) handleDetach(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.store(r).Session(r.Context(), id); err != nil {
		respondStoreError(w, err)
		return
	}
	h.pipeline.Detach(id)
	w.WriteHeader(http.StatusNoContent)
}

func respondStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, chatService.ErrSessionNotFound) {
		utils.RespondError(w, http.StatusNotFound, err.Error())
		return
	}
	utils.RespondError(w, http.StatusInternalServerError, err.Error())
}
