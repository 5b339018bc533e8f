package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/tubenote/internal/middleware"
	"github.com/hitoshi/tubenote/internal/model"
	"github.com/hitoshi/tubenote/internal/view"
)

var errVideoNotFound = errors.New("video not found")

// VideoGateway はYouTube Data APIへの呼び出しを表すインターフェース。
// youtube.Serviceが実装する。
type VideoGateway interface {
	GetVideo(ctx context.Context, tokens model.TokenSet, videoID string) (*model.Video, error)
	ListComments(ctx context.Context, tokens model.TokenSet, videoID string) ([]model.CommentThread, error)
	AddComment(ctx context.Context, tokens model.TokenSet, videoID, text string) error
	ReplyComment(ctx context.Context, tokens model.TokenSet, parentID, text string) error
	DeleteComment(ctx context.Context, tokens model.TokenSet, commentID string) error
	UpdateVideo(ctx context.Context, tokens model.TokenSet, videoID, title, description string) error
}

// NoteServiceInterface はメモ操作のサービスインターフェース。
// note.Serviceが実装する。
type NoteServiceInterface interface {
	Create(ctx context.Context, userID, videoID, content, rawTags string) (*model.Note, error)
	List(ctx context.Context, videoID string) ([]*model.Note, error)
	Search(ctx context.Context, videoID, tag string) ([]*model.Note, error)
}

// YouTubeHandler は /youtube 配下のハンドラー。
// AuthGuardの後に配置し、コンテキストのTokenSetで上流を呼び出す。
type YouTubeHandler struct {
	gateway  VideoGateway
	notes    NoteServiceInterface
	recorder EventRecorder
	renderer PageRenderer
}

// NewYouTubeHandler はYouTubeHandlerを生成する。
func NewYouTubeHandler(gateway VideoGateway, notes NoteServiceInterface, recorder EventRecorder, renderer PageRenderer) *YouTubeHandler {
	return &YouTubeHandler{
		gateway:  gateway,
		notes:    notes,
		recorder: recorder,
		renderer: renderer,
	}
}

// Lookup はフォームから入力された動画IDの動画ページへリダイレクトする。
// GET /youtube/video?videoId=xxx
func (h *YouTubeHandler) Lookup(w http.ResponseWriter, r *http.Request) {
	videoID := strings.TrimSpace(r.URL.Query().Get("videoId"))
	if videoID == "" {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	redirectToVideo(w, r, videoID, "")
}

// ShowVideo は動画情報、コメントスレッド、メモを表示する。
// メモの取得に失敗した場合も動画の取得失敗として扱う。
// GET /youtube/video/{videoID}
func (h *YouTubeHandler) ShowVideo(w http.ResponseWriter, r *http.Request) {
	videoID := chi.URLParam(r, "videoID")
	data := h.pageData(r, videoID)
	details := map[string]any{"videoId": videoID}

	notes, err := h.notes.List(r.Context(), videoID)
	if err != nil {
		h.videoFetchFailed(w, r, data, details, fmt.Errorf("list notes: %w", err), http.StatusInternalServerError)
		return
	}

	video, threads, err := h.fetchVideo(r, videoID)
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, errVideoNotFound) {
			status = http.StatusNotFound
		}
		h.videoFetchFailed(w, r, data, details, err, status)
		return
	}
	h.recorder.Record(r.Context(), model.EventVideoFetch, details)

	data.Notes = notes
	h.renderVideo(w, data, video, threads)
}

// AddComment は動画にトップレベルコメントを投稿する。
// POST /youtube/comment/{videoID}
func (h *YouTubeHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	videoID := chi.URLParam(r, "videoID")
	text := r.PostFormValue("comment")
	details := map[string]any{"videoId": videoID, "comment": text}

	err := h.call(r, func(ctx context.Context, tokens model.TokenSet) error {
		if strings.TrimSpace(text) == "" {
			return model.NewValidationError("comment")
		}
		return h.gateway.AddComment(ctx, tokens, videoID, text)
	})
	completeAction(w, r, h.recorder, actionCommentAdd, videoID, details, err)
}

// ReplyComment はコメントに返信する。
// POST /youtube/comment/reply/{videoID}/{commentID}
func (h *YouTubeHandler) ReplyComment(w http.ResponseWriter, r *http.Request) {
	videoID := chi.URLParam(r, "videoID")
	commentID := chi.URLParam(r, "commentID")
	text := r.PostFormValue("reply")
	details := map[string]any{"videoId": videoID, "commentId": commentID, "reply": text}

	err := h.call(r, func(ctx context.Context, tokens model.TokenSet) error {
		if strings.TrimSpace(text) == "" {
			return model.NewValidationError("reply")
		}
		return h.gateway.ReplyComment(ctx, tokens, commentID, text)
	})
	completeAction(w, r, h.recorder, actionCommentReply, videoID, details, err)
}

// DeleteComment はコメントを削除する。
// POST /youtube/comment/delete/{videoID}/{commentID}
func (h *YouTubeHandler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	videoID := chi.URLParam(r, "videoID")
	commentID := chi.URLParam(r, "commentID")
	details := map[string]any{"commentId": commentID}

	err := h.call(r, func(ctx context.Context, tokens model.TokenSet) error {
		return h.gateway.DeleteComment(ctx, tokens, commentID)
	})
	completeAction(w, r, h.recorder, actionCommentDelete, videoID, details, err)
}

// UpdateVideo は動画のタイトルと説明を更新する。空欄の項目は現在の値を維持する。
// POST /youtube/video/update/{videoID}
func (h *YouTubeHandler) UpdateVideo(w http.ResponseWriter, r *http.Request) {
	videoID := chi.URLParam(r, "videoID")
	title := r.PostFormValue("title")
	if strings.TrimSpace(title) == "" {
		title = ""
	}
	description := r.PostFormValue("description")
	details := map[string]any{"videoId": videoID, "title": title, "description": description}

	err := h.call(r, func(ctx context.Context, tokens model.TokenSet) error {
		return h.gateway.UpdateVideo(ctx, tokens, videoID, title, description)
	})
	completeAction(w, r, h.recorder, actionVideoUpdate, videoID, details, err)
}

// AddNote は動画にタグ付きメモを保存する。
// POST /youtube/note/{videoID}
func (h *YouTubeHandler) AddNote(w http.ResponseWriter, r *http.Request) {
	videoID := chi.URLParam(r, "videoID")
	content := r.PostFormValue("content")
	rawTags := r.PostFormValue("tags")
	details := map[string]any{"videoId": videoID, "content": content, "tags": rawTags}

	userID, _ := middleware.UserIDFromContext(r.Context())
	_, err := h.notes.Create(r.Context(), userID, videoID, content, rawTags)
	completeAction(w, r, h.recorder, actionNoteAdd, videoID, details, err)
}

// SearchNotes はタグに完全一致するメモに絞り込んで動画ページを表示する。
// メモの検索か動画の取得に失敗した場合はsearch_failedでリダイレクトする。
// POST /youtube/note/search/{videoID}
func (h *YouTubeHandler) SearchNotes(w http.ResponseWriter, r *http.Request) {
	videoID := chi.URLParam(r, "videoID")
	tag := strings.TrimSpace(r.PostFormValue("tag"))
	details := map[string]any{"videoId": videoID, "tag": tag}

	notes, err := h.notes.Search(r.Context(), videoID, tag)
	var (
		video   *model.Video
		threads []model.CommentThread
	)
	if err == nil {
		video, threads, err = h.fetchVideo(r, videoID)
	}
	if err != nil {
		slog.Warn("note search failed",
			slog.String("video_id", videoID),
			slog.String("error", err.Error()),
		)
		h.recorder.RecordError(r.Context(), model.EventNoteSearchError, details, err)
		redirectToVideo(w, r, videoID, model.ErrSlugSearchFailed)
		return
	}
	h.recorder.Record(r.Context(), model.EventNoteSearch, details)

	data := h.pageData(r, videoID)
	data.Notes = notes
	data.SearchTag = tag
	h.renderVideo(w, data, video, threads)
}

// call はコンテキストのTokenSetを取り出してfnを実行する。
func (h *YouTubeHandler) call(r *http.Request, fn func(ctx context.Context, tokens model.TokenSet) error) error {
	tokens, ok := middleware.TokenSetFromContext(r.Context())
	if !ok {
		return fmt.Errorf("%w: no token set in context", model.ErrAuthorization)
	}
	return fn(r.Context(), tokens)
}

// fetchVideo は動画とコメントスレッドを上流から取得する。
func (h *YouTubeHandler) fetchVideo(r *http.Request, videoID string) (*model.Video, []model.CommentThread, error) {
	var (
		video   *model.Video
		threads []model.CommentThread
	)
	err := h.call(r, func(ctx context.Context, tokens model.TokenSet) error {
		var err error
		video, err = h.gateway.GetVideo(ctx, tokens, videoID)
		if err != nil {
			return err
		}
		if video == nil {
			return errVideoNotFound
		}
		threads, err = h.gateway.ListComments(ctx, tokens, videoID)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return video, threads, nil
}

func (h *YouTubeHandler) pageData(r *http.Request, videoID string) view.IndexData {
	return view.IndexData{
		IsAuthenticated: true,
		VideoID:         videoID,
		CSRFToken:       middleware.CSRFTokenFromContext(r.Context()),
		Error:           model.LookupUIError(r.URL.Query().Get("error")),
	}
}

// videoFetchFailed はVIDEO_FETCH_ERRORを記録し、video_fetch_failedを表示する。
func (h *YouTubeHandler) videoFetchFailed(w http.ResponseWriter, r *http.Request, data view.IndexData, details map[string]any, err error, status int) {
	slog.Warn("video fetch failed",
		slog.String("video_id", data.VideoID),
		slog.String("error", err.Error()),
	)
	h.recorder.RecordError(r.Context(), model.EventVideoFetchError, details, err)

	data.Error = model.LookupUIError(model.ErrSlugVideoFetchFailed)
	h.renderer.Index(w, status, data)
}

func (h *YouTubeHandler) renderVideo(w http.ResponseWriter, data view.IndexData, video *model.Video, threads []model.CommentThread) {
	data.Video = video
	data.Comments = h.renderer.CommentThreads(threads)
	h.renderer.Index(w, http.StatusOK, data)
}
