package markdown

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/dadmind/backend/internal/markdown"
	"github.com/zhouzirui/dadmind/backend/pkg/utils"
)

// RegisterRoutes 注册 markdown 渲染路由
func RegisterRoutes(r chi.Router) {
	r.Post("/markdown/render", handleRender)
}

type renderResponse struct {
	HTML  string `json:"html"`
	Plain string `json:"plain"`
}

// handleRender 把助手回复渲染成 HTML 与纯文本
func handleRender(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Text string `json:"text"`
	}
	if err := utils.DecodeJSON(w, r, 256<<10, &payload); err != nil {
		utils.RespondErrorCode(w, http.StatusBadRequest, "validation", "invalid request body")
		return
	}

	doc := markdown.Parse(payload.Text)
	utils.RespondJSON(w, http.StatusOK, renderResponse{
		HTML:  markdown.HTML(doc),
		Plain: markdown.Plain(doc),
	})
}
