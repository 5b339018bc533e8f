// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"

	"github.com/hitoshi/tubenote/internal/model"
)

// ErrVersionConflict は楽観ロックのバージョン不一致を表す。
// 同一セッションへの並行したトークン更新で発生する。
var ErrVersionConflict = errors.New("version conflict")

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// UpsertByGoogleID はgoogle_idをキーにユーザーを作成または更新する。
	// 既存ユーザーの場合はuser.IDを既存のIDで上書きする。
	// 新しいリフレッシュトークンが空の場合は保存済みの値を維持する。
	UpsertByGoogleID(ctx context.Context, user *model.User) error

	// UpdateTokens はユーザーのトークン一式を更新する。
	// RefreshToken・IDTokenが空の場合は保存済みの値を維持する。
	UpdateTokens(ctx context.Context, userID string, tokens model.TokenSet) error
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// Update はセッションのTokenSetを保存する。
	// session.Versionが保存済みの値と異なる場合はErrVersionConflictを返す。
	Update(ctx context.Context, session *model.Session) error
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteExpired は期限切れセッションを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context) (int64, error)
}

// NoteRepository は動画メモの永続化インターフェース。
type NoteRepository interface {
	// Create はメモを作成する。
	Create(ctx context.Context, note *model.Note) error
	// ListByVideo は動画のメモを新しい順に返す。
	ListByVideo(ctx context.Context, videoID string, limit int) ([]*model.Note, error)
	// ListByVideoAndTag は指定タグを含む動画のメモを新しい順に返す。
	ListByVideoAndTag(ctx context.Context, videoID, tag string, limit int) ([]*model.Note, error)
}

// EventRepository はイベントログの永続化インターフェース。追記のみ。
type EventRepository interface {
	// Append はイベントログを1件追記する。
	Append(ctx context.Context, event *model.EventLog) error
}
