// Package view はサーバーサイドでレンダリングするHTML画面を提供する。
package view

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/tubenote/internal/model"
	"github.com/hitoshi/tubenote/internal/security"
)

//go:embed templates/*.html
var templatesFS embed.FS

// CommentView は表示用に本文をサニタイズしたコメント。
type CommentView struct {
	ID          string
	AuthorName  string
	Text        template.HTML
	LikeCount   int64
	PublishedAt time.Time
}

// CommentThreadView は表示用のコメントスレッド。
type CommentThreadView struct {
	ID              string
	TopLevel        CommentView
	TotalReplyCount int64
	Replies         []CommentView
}

// IndexData はindex画面の表示内容。
type IndexData struct {
	IsAuthenticated bool
	Video           *model.Video
	Comments        []CommentThreadView
	Notes           []*model.Note
	VideoID         string
	SearchTag       string
	CSRFToken       string
	Error           *model.UIError
}

// errorData はerror画面の表示内容。
type errorData struct {
	IsAuthenticated bool
	Error           *model.UIError
	Status          int
	Message         string
}

// Renderer はテンプレートを描画する。
type Renderer struct {
	pages     map[string]*template.Template
	sanitizer security.CommentSanitizer
}

// NewRenderer は埋め込みテンプレートを解析してRendererを生成する。
func NewRenderer(sanitizer security.CommentSanitizer) (*Renderer, error) {
	pages := map[string]*template.Template{}
	for _, name := range []string{"index", "error"} {
		t, err := template.ParseFS(templatesFS, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s template: %w", name, err)
		}
		pages[name] = t
	}
	return &Renderer{pages: pages, sanitizer: sanitizer}, nil
}

// CommentThreads はAPIのコメントスレッドを表示用に変換する。
func (r *Renderer) CommentThreads(threads []model.CommentThread) []CommentThreadView {
	views := make([]CommentThreadView, 0, len(threads))
	for _, t := range threads {
		v := CommentThreadView{
			ID:              t.ID,
			TopLevel:        r.comment(t.TopLevel),
			TotalReplyCount: t.TotalReplyCount,
		}
		for _, reply := range t.Replies {
			v.Replies = append(v.Replies, r.comment(reply))
		}
		views = append(views, v)
	}
	return views
}

func (r *Renderer) comment(c model.Comment) CommentView {
	return CommentView{
		ID:          c.ID,
		AuthorName:  c.AuthorName,
		Text:        template.HTML(r.sanitizer.Sanitize(c.TextDisplay)),
		LikeCount:   c.LikeCount,
		PublishedAt: c.PublishedAt,
	}
}

// Index はindex画面を描画する。
func (r *Renderer) Index(w http.ResponseWriter, status int, data IndexData) {
	r.render(w, "index", status, data)
}

// Error はerror画面を描画する。
func (r *Renderer) Error(w http.ResponseWriter, status int, message string) {
	r.render(w, "error", status, errorData{Status: status, Message: message})
}

// render はバッファに描画してから書き出す。描画に失敗した場合は500を返す。
func (r *Renderer) render(w http.ResponseWriter, page string, status int, data any) {
	var buf bytes.Buffer
	if err := r.pages[page].ExecuteTemplate(&buf, "layout", data); err != nil {
		slog.Error("failed to render template",
			slog.String("page", page),
			slog.String("error", err.Error()),
		)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}
