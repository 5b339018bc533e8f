package handler

import (
	"net/http"

	"github.com/hitoshi/tubenote/internal/middleware"
	"github.com/hitoshi/tubenote/internal/model"
	"github.com/hitoshi/tubenote/internal/view"
)

// HomeHandler はトップページのハンドラー。
type HomeHandler struct {
	renderer PageRenderer
}

// NewHomeHandler はHomeHandlerを生成する。
func NewHomeHandler(renderer PageRenderer) *HomeHandler {
	return &HomeHandler{renderer: renderer}
}

// Index はログイン状態とerrorクエリのメッセージを表示する。
// GET /
func (h *HomeHandler) Index(w http.ResponseWriter, r *http.Request) {
	_, authenticated := middleware.SessionFromContext(r.Context()).Current()

	h.renderer.Index(w, http.StatusOK, view.IndexData{
		IsAuthenticated: authenticated,
		CSRFToken:       middleware.CSRFTokenFromContext(r.Context()),
		Error:           model.LookupUIError(r.URL.Query().Get("error")),
	})
}

// NotFound は未定義のルートに404画面を返す。
func (h *HomeHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	h.renderer.Error(w, http.StatusNotFound, "ページが見つかりません。")
}
