package handler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/tubenote/internal/model"
)

const oauthStateCookie = "oauth_state"

var errStateMismatch = errors.New("oauth state mismatch")

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	AuthorizationURL(state string) string
	HandleCallback(ctx context.Context, code string) (*model.Session, error)
}

// SessionCookieWriter はセッションCookieを書き込むインターフェース。
// session.Managerが実装する。
type SessionCookieWriter interface {
	SetCookie(w http.ResponseWriter, sess *model.Session) error
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	CookieSecure bool
}

// AuthHandler はOAuth認証関連のHTTPハンドラー。
type AuthHandler struct {
	service  AuthServiceInterface
	cookies  SessionCookieWriter
	recorder EventRecorder
	config   AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, cookies SessionCookieWriter, recorder EventRecorder, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		service:  service,
		cookies:  cookies,
		recorder: recorder,
		config:   config,
	}
}

// Login はGoogle OAuthフローを開始する。
// GET /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	state, err := generateState()
	if err != nil {
		slog.Error("failed to generate oauth state", slog.String("error", err.Error()))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	// stateをCookieに保存（CSRF対策）
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600, // 10分
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.service.AuthorizationURL(state), http.StatusFound)
}

// Callback はOAuthコールバックを処理する。
// 成功時は / へ、失敗時は /?error=auth_failed へリダイレクトする。
// GET /auth/callback?code=xxx&state=yyy
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	// 1. stateの検証（CSRF対策）
	state := r.URL.Query().Get("state")
	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil || state == "" || stateCookie.Value != state {
		h.fail(w, r, errStateMismatch)
		return
	}

	// stateクッキーを削除
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	// 2. 認可コードの交換とセッション発行。コードが空の場合は上流を呼ばずに失敗する
	sess, err := h.service.HandleCallback(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	// 3. セッションCookieを設定
	if err := h.cookies.SetCookie(w, sess); err != nil {
		h.fail(w, r, err)
		return
	}

	h.recorder.Record(r.Context(), model.EventAuthLogin, map[string]any{
		"userId": sess.UserID(),
	})
	http.Redirect(w, r, "/", http.StatusFound)
}

func (h *AuthHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	slog.Warn("oauth callback failed", slog.String("error", err.Error()))
	h.recorder.RecordError(r.Context(), model.EventAuthLoginError, map[string]any{}, err)
	http.Redirect(w, r, "/?error="+model.ErrSlugAuthFailed, http.StatusFound)
}

// generateState はCSRF対策用のランダムなstate値を生成する。
func generateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
