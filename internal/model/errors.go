// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// エラー分類。呼び出し側はerrors.Isで判定する。
var (
	// ErrAuthorization は認可コードが空、または上流で交換が拒否されたことを表す。
	ErrAuthorization = errors.New("authorization failed")
	// ErrRefreshUnavailable はリフレッシュトークンを保持していないことを表す。
	ErrRefreshUnavailable = errors.New("refresh token unavailable")
	// ErrRefreshRejected は上流がトークン更新を拒否したことを表す。
	ErrRefreshRejected = errors.New("token refresh rejected")
	// ErrUpstreamAPI はYouTube Data API呼び出しの失敗を表す。原因は細分化しない。
	ErrUpstreamAPI = errors.New("upstream api error")
	// ErrValidation は必須項目の欠落を表す。
	ErrValidation = errors.New("validation error")
)

// NewValidationError は欠落した項目名を含むErrValidationを生成する。
func NewValidationError(field string) error {
	return fmt.Errorf("%w: %s is required", ErrValidation, field)
}

// UIError は画面に表示するエラー情報を表す。
// リダイレクトのerrorクエリ（スラッグ）から引き当てる。
type UIError struct {
	Slug     string // errorクエリの値
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, youtube, note, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *UIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Slug, e.Message)
}

// 定義済みエラースラッグ
const (
	ErrSlugUnauthorized        = "unauthorized"
	ErrSlugAuthExpired         = "auth_expired"
	ErrSlugAuthFailed          = "auth_failed"
	ErrSlugVideoFetchFailed    = "video_fetch_failed"
	ErrSlugCommentFailed       = "comment_failed"
	ErrSlugReplyFailed         = "reply_failed"
	ErrSlugDeleteCommentFailed = "delete_comment_failed"
	ErrSlugUpdateFailed        = "update_failed"
	ErrSlugNoteFailed          = "note_failed"
	ErrSlugSearchFailed        = "search_failed"
)

var uiErrors = map[string]*UIError{
	ErrSlugUnauthorized: {
		Message:  "ログインが必要です。",
		Category: "auth",
		Action:   "Googleアカウントでログインしてください。",
	},
	ErrSlugAuthExpired: {
		Message:  "認証の有効期限が切れました。",
		Category: "auth",
		Action:   "再度ログインしてください。",
	},
	ErrSlugAuthFailed: {
		Message:  "Googleアカウントでの認証に失敗しました。",
		Category: "auth",
		Action:   "しばらく待ってから再度ログインしてください。",
	},
	ErrSlugVideoFetchFailed: {
		Message:  "動画の取得に失敗しました。",
		Category: "youtube",
		Action:   "動画IDを確認して再度お試しください。",
	},
	ErrSlugCommentFailed: {
		Message:  "コメントの投稿に失敗しました。",
		Category: "youtube",
		Action:   "コメント本文を入力して再度お試しください。",
	},
	ErrSlugReplyFailed: {
		Message:  "返信の投稿に失敗しました。",
		Category: "youtube",
		Action:   "返信本文を入力して再度お試しください。",
	},
	ErrSlugDeleteCommentFailed: {
		Message:  "コメントの削除に失敗しました。",
		Category: "youtube",
		Action:   "削除権限のあるコメントか確認してください。",
	},
	ErrSlugUpdateFailed: {
		Message:  "動画情報の更新に失敗しました。",
		Category: "youtube",
		Action:   "自分がアップロードした動画か確認してください。",
	},
	ErrSlugNoteFailed: {
		Message:  "メモの保存に失敗しました。",
		Category: "note",
		Action:   "メモ本文を入力して再度お試しください。",
	},
	ErrSlugSearchFailed: {
		Message:  "メモの検索に失敗しました。",
		Category: "note",
		Action:   "しばらく待ってから再度お試しください。",
	},
}

// LookupUIError はスラッグに対応するUIErrorを返す。
// 空文字列の場合はnilを返す。未定義のスラッグは汎用エラーとして扱う。
func LookupUIError(slug string) *UIError {
	if slug == "" {
		return nil
	}
	if e, ok := uiErrors[slug]; ok {
		return &UIError{
			Slug:     slug,
			Message:  e.Message,
			Category: e.Category,
			Action:   e.Action,
		}
	}
	return &UIError{
		Slug:     slug,
		Message:  "エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
