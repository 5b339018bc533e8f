package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/tubenote/internal/model"
)

// AuthState は保護されたルートに対するリクエストの認可状態。
type AuthState int

const (
	// StateUnauthenticated はセッションまたはTokenSetがない状態。
	StateUnauthenticated AuthState = iota
	// StateAuthenticated はアクセストークンが使える状態。
	StateAuthenticated
	// StateExpired はリフレッシュトークンがなく更新できない状態。
	StateExpired
	// StateRefreshFailed は上流がトークン更新を拒否した、または更新中にエラーが起きた状態。
	StateRefreshFailed
)

func (s AuthState) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticated:
		return "authenticated"
	case StateExpired:
		return "expired"
	case StateRefreshFailed:
		return "refresh_failed"
	default:
		return "unknown"
	}
}

// TokenRefresher はセッションのアクセストークンを更新するインターフェース。
// auth.Serviceが実装する。
type TokenRefresher interface {
	RefreshSession(ctx context.Context, sess *model.Session) (model.TokenSet, error)
}

// EventRecorder はイベントログを記録するインターフェース。
// eventlog.Recorderが実装する。
type EventRecorder interface {
	Record(ctx context.Context, eventType model.EventType, details map[string]any)
}

// EvaluateAuth はセッションの認可状態を判定し、必要ならアクセストークンを更新する。
func EvaluateAuth(ctx context.Context, sess *model.Session, refresher TokenRefresher) (AuthState, model.TokenSet, error) {
	if _, ok := sess.Current(); !ok {
		return StateUnauthenticated, model.TokenSet{}, nil
	}

	tokens, err := refresher.RefreshSession(ctx, sess)
	switch {
	case err == nil:
		return StateAuthenticated, tokens, nil
	case errors.Is(err, model.ErrRefreshUnavailable):
		return StateExpired, model.TokenSet{}, err
	default:
		return StateRefreshFailed, model.TokenSet{}, err
	}
}

// NewAuthGuard はログイン必須のルートを保護するミドルウェアを返す。
// 認可済みの場合はTokenSetとユーザーIDをコンテキストに注入して次に渡す。
// それ以外はトップページにerrorクエリ付きでリダイレクトし、ハンドラーは呼ばない。
func NewAuthGuard(refresher TokenRefresher, recorder EventRecorder) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := SessionFromContext(r.Context())

			state, tokens, err := EvaluateAuth(r.Context(), sess, refresher)
			switch state {
			case StateAuthenticated:
				ctx := ContextWithTokenSet(r.Context(), tokens)
				ctx = ContextWithUserID(ctx, sess.UserID())
				next.ServeHTTP(w, r.WithContext(ctx))

			case StateUnauthenticated:
				redirectWithError(w, r, "/", model.ErrSlugUnauthorized)

			case StateExpired:
				slog.Info("access token cannot be refreshed",
					slog.String("user_id", sess.UserID()),
				)
				redirectWithError(w, r, "/", model.ErrSlugAuthExpired)

			default:
				slog.Warn("token refresh failed",
					slog.String("user_id", sess.UserID()),
					slog.String("error", err.Error()),
				)
				recorder.Record(r.Context(), model.EventTokenRefreshError, map[string]any{
					"userId": sess.UserID(),
					"error":  err.Error(),
				})
				redirectWithError(w, r, "/", model.ErrSlugAuthExpired)
			}
		})
	}
}

// redirectWithError はerrorクエリを付けて302リダイレクトする。
func redirectWithError(w http.ResponseWriter, r *http.Request, path, slug string) {
	http.Redirect(w, r, path+"?error="+slug, http.StatusFound)
}
