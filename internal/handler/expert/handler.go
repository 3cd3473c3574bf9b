package expert

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/dadmind/backend/internal/model/chat"
	expertService "github.com/zhouzirui/dadmind/backend/internal/service/expert"
	"github.com/zhouzirui/dadmind/backend/pkg/utils"
)

const (
	readTimeout  = 60 * time.Second
	pingInterval = 54 * time.Second
	writeTimeout = 10 * time.Second
)

// Handler 专家对话的HTTP与WebSocket处理器
type Handler struct {
	svc      *expertService.Service
	logger   zerolog.Logger
	upgrader websocket.Upgrader
}

// New 创建专家处理器
func New(svc *expertService.Service, logger zerolog.Logger) *Handler {
	return &Handler{
		svc:    svc,
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes 注册专家相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/experts", h.handleList)
	r.Get("/experts/{id}/ws", h.handleWebSocket)
}

type inboundMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type outgoingMessage struct {
	Type           string      `json:"type"`
	ConversationID string      `json:"conversationId,omitempty"`
	Data           interface{} `json:"data,omitempty"`
	Timestamp      int64       `json:"timestamp"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, map[string]any{"experts": h.svc.Experts()})
}

// handleWebSocket 每个连接对应一次专家对话，连接断开即结束对话
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conv, err := h.svc.Start(chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, expertService.ErrExpertNotFound) {
			utils.RespondError(w, http.StatusNotFound, err.Error())
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer h.svc.End(conv.ID)

	updates, unsubscribe, err := h.svc.Subscribe(conv.ID)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer unsubscribe()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("[expert] websocket upgrade failed")
		return
	}
	defer conn.Close()

	logger := h.logger.With().Str("conversation", conv.ID).Logger()
	logger.Debug().Msg("[expert] websocket connected")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	out := make(chan outgoingMessage, 8)
	out <- outgoingMessage{Type: "conversation", ConversationID: conv.ID, Data: conv, Timestamp: time.Now().Unix()}
	go h.writeLoop(ctx, cancel, conn, conv.ID, updates, out, logger)

	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug().Err(err).Msg("[expert] read error")
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))

		if msg.Type != "message" {
			h.enqueue(ctx, out, errorMessage(conv.ID, "unsupported message type"))
			continue
		}
		if _, err := h.svc.Send(conv.ID, msg.Text); err != nil {
			h.enqueue(ctx, out, errorMessage(conv.ID, err.Error()))
		}
	}
}

// writeLoop 是唯一的写入者，负责消息推送与心跳
func (h *Handler) writeLoop(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, conversationID string, updates <-chan chat.Message, out <-chan outgoingMessage, logger zerolog.Logger) {
	defer cancel()
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	write := func(v interface{}) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteJSON(v); err != nil {
			logger.Debug().Err(err).Msg("[expert] write failed")
			return false
		}
		return true
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case msg, ok := <-updates:
			if !ok {
				return
			}
			if !write(outgoingMessage{Type: "message", ConversationID: conversationID, Data: msg, Timestamp: time.Now().Unix()}) {
				return
			}
		case msg := <-out:
			if !write(msg) {
				return
			}
		}
	}
}

func (h *Handler) enqueue(ctx context.Context, out chan<- outgoingMessage, msg outgoingMessage) {
	select {
	case out <- msg:
	case <-ctx.Done():
	}
}

func errorMessage(conversationID, message string) outgoingMessage {
	return outgoingMessage{
		Type:           "error",
		ConversationID: conversationID,
		Data:           map[string]string{"message": message},
		Timestamp:      time.Now().Unix(),
	}
}
