package quiz

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	quizService "github.com/zhouzirui/dadmind/backend/internal/service/quiz"
	"github.com/zhouzirui/dadmind/backend/pkg/utils"
)

// Handler 心理测试的HTTP处理器
type Handler struct {
	svc *quizService.Service
}

// New 创建测试处理器
func New(svc *quizService.Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes 注册测试相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/quiz/questions", h.handleQuestions)
	r.Post("/quiz/submit", h.handleSubmit)
	r.Post("/quiz/result", h.handleResult)
}

func (h *Handler) handleQuestions(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, map[string]any{"questions": h.svc.Questions()})
}

// handleSubmit 按答案计分并生成建议
func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Answers map[string]string `json:"answers"`
	}
	if err := utils.DecodeJSON(w, r, 64<<10, &payload); err != nil {
		utils.RespondErrorCode(w, http.StatusBadRequest, "validation", "invalid request body")
		return
	}

	result, err := h.svc.Submit(r.Context(), payload.Answers)
	if err != nil {
		var unanswered *quizService.UnansweredError
		if errors.As(err, &unanswered) {
			utils.RespondJSON(w, http.StatusBadRequest, map[string]string{
				"error":      err.Error(),
				"code":       "validation",
				"questionId": unanswered.QuestionID,
			})
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusOK, result)
}

// handleResult 根据已有分数重新计算结果，maxScore 缺失时按题目数估算
func (h *Handler) handleResult(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Score        int `json:"score"`
		MaxScore     int `json:"maxScore"`
		NumQuestions int `json:"numQuestions"`
	}
	if err := utils.DecodeJSON(w, r, 4<<10, &payload); err != nil {
		utils.RespondErrorCode(w, http.StatusBadRequest, "validation", "invalid request body")
		return
	}

	result := quizService.NewResult(payload.Score, payload.MaxScore, payload.NumQuestions)
	h.svc.Advise(r.Context(), &result)
	utils.RespondJSON(w, http.StatusOK, result)
}
