// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/hitoshi/tubenote/internal/model"
	"github.com/hitoshi/tubenote/internal/view"
)

// EventRecorder はイベントログを記録するインターフェース。
// eventlog.Recorderが実装する。
type EventRecorder interface {
	Record(ctx context.Context, eventType model.EventType, details map[string]any)
	RecordError(ctx context.Context, eventType model.EventType, details map[string]any, cause error)
}

// PageRenderer はHTML画面を描画するインターフェース。
// view.Rendererが実装する。
type PageRenderer interface {
	Index(w http.ResponseWriter, status int, data view.IndexData)
	Error(w http.ResponseWriter, status int, message string)
	CommentThreads(threads []model.CommentThread) []view.CommentThreadView
}

// action は書き込み系ルートの成功・失敗イベントと失敗時のスラッグの組。
type action struct {
	event      model.EventType
	errorEvent model.EventType
	slug       string
}

var (
	actionCommentAdd    = action{model.EventCommentAdd, model.EventCommentAddError, model.ErrSlugCommentFailed}
	actionCommentReply  = action{model.EventCommentReply, model.EventCommentReplyError, model.ErrSlugReplyFailed}
	actionCommentDelete = action{model.EventCommentDelete, model.EventCommentDeleteError, model.ErrSlugDeleteCommentFailed}
	actionVideoUpdate   = action{model.EventVideoUpdate, model.EventVideoUpdateError, model.ErrSlugUpdateFailed}
	actionNoteAdd       = action{model.EventNoteAdd, model.EventNoteAddError, model.ErrSlugNoteFailed}
)

// completeAction は書き込み系ルートの結果をイベントログに記録し、動画ページへリダイレクトする。
// 失敗時はerrorクエリにスラッグを付ける。
func completeAction(w http.ResponseWriter, r *http.Request, recorder EventRecorder, a action, videoID string, details map[string]any, err error) {
	if err != nil {
		slog.Warn("request failed",
			slog.String("event_type", string(a.errorEvent)),
			slog.String("video_id", videoID),
			slog.String("error", err.Error()),
		)
		recorder.RecordError(r.Context(), a.errorEvent, details, err)
		redirectToVideo(w, r, videoID, a.slug)
		return
	}

	recorder.Record(r.Context(), a.event, details)
	redirectToVideo(w, r, videoID, "")
}

// videoPath は動画ページのパスを返す。
func videoPath(videoID string) string {
	return "/youtube/video/" + url.PathEscape(videoID)
}

// redirectToVideo は動画ページへ302リダイレクトする。slugが空でなければerrorクエリを付ける。
func redirectToVideo(w http.ResponseWriter, r *http.Request, videoID, slug string) {
	target := videoPath(videoID)
	if slug != "" {
		target += "?error=" + url.QueryEscape(slug)
	}
	http.Redirect(w, r, target, http.StatusFound)
}
