package stream

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/dadmind/backend/internal/middleware"
	"github.com/zhouzirui/dadmind/backend/internal/model/chat"
	chatService "github.com/zhouzirui/dadmind/backend/internal/service/chat"
	"github.com/zhouzirui/dadmind/backend/internal/service/conversation"
	"github.com/zhouzirui/dadmind/backend/pkg/utils"
)

// Handler manages streaming AI responses via Server-Sent Events
type Handler struct {
	registry *chatService.Registry
	pipeline *conversation.Pipeline
	logger   zerolog.Logger
}

// New creates a new stream handler
func New(registry *chatService.Registry, pipeline *conversation.Pipeline, logger zerolog.Logger) *Handler {
	return &Handler{
		registry: registry,
		pipeline: pipeline,
		logger:   logger,
	}
}

// RegisterRoutes mounts the SSE endpoint.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/chat/sessions/{id}/stream", h.handleStream)
}

// StreamResponse represents a streaming response chunk
type StreamResponse struct {
	Event     string        `json:"event"`
	SessionID string        `json:"sessionId"`
	Content   string        `json:"content,omitempty"`
	Message   *chat.Message `json:"message,omitempty"`
	Finished  bool          `json:"finished,omitempty"`
	Error     string        `json:"error,omitempty"`
}

// handleStream sends the message and relays the reply as SSE events.
// A client that disconnects does not stop the reply; it is still stored.
func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	ctx := r.Context()
	sessionID := chi.URLParam(r, "id")
	store := h.registry.Store(ctx, middleware.OwnerFrom(ctx))

	sub, err := h.pipeline.Send(ctx, store, conversation.Request{
		SessionID: sessionID,
		Text:      r.URL.Query().Get("message"),
	})
	if err != nil {
		respondSendError(w, err)
		return
	}

	utils.SetupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	logger := h.logger.With().Str("session", sessionID).Logger()
	for {
		select {
		case <-ctx.Done():
			logger.Debug().Msg("[stream] client went away, reply continues in background")
			return
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			if err := utils.SendSSEEvent(w, flusher, string(ev.Type), toResponse(ev)); err != nil {
				logger.Debug().Err(err).Msg("[stream] write failed")
				return
			}
		}
	}
}

func toResponse(ev conversation.Event) StreamResponse {
	msg := ev.Message
	resp := StreamResponse{
		Event:     string(ev.Type),
		SessionID: ev.SessionID,
		Content:   ev.Delta,
		Finished:  ev.Type == conversation.EventMessage || ev.Type == conversation.EventError,
	}
	if msg.ID != "" {
		resp.Message = &msg
	}
	if ev.Err != nil {
		resp.Error = ev.Err.Error()
	}
	return resp
}

func respondSendError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, conversation.ErrEmptyMessage):
		utils.RespondErrorCode(w, http.StatusBadRequest, "validation", "message query parameter is required")
	case errors.Is(err, conversation.ErrNotConfigured):
		utils.RespondErrorCode(w, http.StatusServiceUnavailable, "configuration", err.Error())
	case errors.Is(err, conversation.ErrSendInFlight):
		utils.RespondErrorCode(w, http.StatusConflict, "validation", err.Error())
	case errors.Is(err, chatService.ErrSessionNotFound):
		utils.RespondError(w, http.StatusNotFound, err.Error())
	default:
		utils.RespondError(w, http.StatusInternalServerError, "streaming failed")
	}
}
