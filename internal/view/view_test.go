package view

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hitoshi/tubenote/internal/model"
	"github.com/hitoshi/tubenote/internal/security"
)

func newTestRenderer(t *testing.T) *Renderer {
	t.Helper()
	r, err := NewRenderer(security.NewCommentSanitizer())
	require.NoError(t, err)
	return r
}

func TestRenderer_Index_Landing(t *testing.T) {
	r := newTestRenderer(t)
	w := httptest.NewRecorder()

	r.Index(w, http.StatusOK, IndexData{Error: model.LookupUIError(model.ErrSlugAuthExpired)})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/html; charset=utf-8", w.Header().Get("Content-Type"))
	body := w.Body.String()
	assert.Contains(t, body, `href="/auth/login"`)
	assert.Contains(t, body, "認証の有効期限が切れました。")
	assert.Contains(t, body, `data-slug="auth_expired"`)
}

func TestRenderer_Index_VideoPage(t *testing.T) {
	r := newTestRenderer(t)
	w := httptest.NewRecorder()

	threads := r.CommentThreads([]model.CommentThread{{
		ID: "t1",
		TopLevel: model.Comment{
			ID:          "c1",
			AuthorName:  "Alice",
			TextDisplay: `great<br><script>alert(1)</script>`,
		},
		Replies: []model.Comment{{ID: "c1.r1", AuthorName: "Bob", TextDisplay: "thanks"}},
	}})

	r.Index(w, http.StatusOK, IndexData{
		IsAuthenticated: true,
		Video:           &model.Video{ID: "v1", Title: "<My Video>", ViewCount: 42},
		Comments:        threads,
		Notes: []*model.Note{{
			ID: "n1", Content: "memo", Tags: []string{"a", "b"}, CreatedAt: time.Date(2026, 1, 2, 3, 4, 0, 0, time.UTC),
		}},
		VideoID:   "v1",
		CSRFToken: "csrf-abc",
	})

	body := w.Body.String()
	assert.Contains(t, body, "&lt;My Video&gt;", "title must be escaped")
	assert.Contains(t, body, "great<br>", "sanitized comment HTML is rendered as HTML")
	assert.NotContains(t, body, "<script>alert(1)</script>")
	assert.Contains(t, body, `action="/youtube/comment/delete/v1/c1"`)
	assert.Contains(t, body, `action="/youtube/comment/reply/v1/c1"`)
	assert.Contains(t, body, `action="/youtube/comment/delete/v1/c1.r1"`)
	assert.Contains(t, body, `action="/youtube/note/search/v1"`)
	assert.Contains(t, body, `value="csrf-abc"`)
	assert.Contains(t, body, "2026-01-02 03:04")
	assert.Equal(t, 2, strings.Count(body, `class="tag"`))
}

func TestRenderer_Error(t *testing.T) {
	r := newTestRenderer(t)
	w := httptest.NewRecorder()

	r.Error(w, http.StatusNotFound, "ページが見つかりません。")

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "ページが見つかりません。")
	assert.Contains(t, w.Body.String(), "404")
}
