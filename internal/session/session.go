// Package session はDBに保存するログインセッションと、その署名付きCookieを管理する。
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hitoshi/tubenote/internal/model"
	"github.com/hitoshi/tubenote/internal/repository"
)

// CookieName はセッションCookieの名前。
const CookieName = "session_id"

// ErrConflict は保存中に別のリクエストがセッションを更新していたことを表す。
// このエラーを返すとき、渡したセッションは保存済みの最新内容で上書きされている。
var ErrConflict = errors.New("session was updated concurrently")

// Config はセッション管理の設定。
type Config struct {
	Secret       []byte
	MaxAge       time.Duration
	CookieSecure bool
	CookieDomain string
}

// cookieClaims はセッションCookieに格納するJWTのクレーム。
type cookieClaims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// Manager はセッションの作成・読み込み・保存とCookieの発行を行う。
type Manager struct {
	repo   repository.SessionRepository
	config Config
	now    func() time.Time
}

// NewManager はManagerを生成する。
func NewManager(repo repository.SessionRepository, config Config) *Manager {
	return &Manager{repo: repo, config: config, now: time.Now}
}

// Create はTokenSetを保持する新しいセッションを作成する。
func (m *Manager) Create(ctx context.Context, userID string, tokens model.TokenSet) (*model.Session, error) {
	id, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	sess := &model.Session{
		ID:        id,
		ExpiresAt: m.now().Add(m.config.MaxAge),
	}
	sess.Attach(tokens, userID)

	if err := m.repo.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}
	return sess, nil
}

// Load はリクエストのCookieからセッションを読み込む。
// Cookieがない、署名が不正、期限切れの場合はnilを返す。
func (m *Manager) Load(r *http.Request) (*model.Session, error) {
	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return nil, nil
	}

	sid, err := m.verify(cookie.Value)
	if err != nil {
		return nil, nil
	}

	sess, err := m.repo.FindByID(r.Context(), sid)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	return sess, nil
}

// Save はセッションのTokenSetを保存する。
// 読み込み後に他のリクエストが保存していた場合は、保存済みの内容を読み直してErrConflictを返す。
func (m *Manager) Save(ctx context.Context, sess *model.Session) error {
	err := m.repo.Update(ctx, sess)
	if err == nil {
		return nil
	}
	if !errors.Is(err, repository.ErrVersionConflict) {
		return err
	}

	stored, findErr := m.repo.FindByID(ctx, sess.ID)
	if findErr != nil {
		return fmt.Errorf("%w: reload failed: %w", ErrConflict, findErr)
	}
	if stored != nil {
		if tokens, ok := stored.Current(); ok {
			sess.Attach(tokens, stored.UserID())
		}
		sess.Version = stored.Version
	}
	return ErrConflict
}

// DeleteExpired は期限切れセッションを削除する。
func (m *Manager) DeleteExpired(ctx context.Context) (int64, error) {
	return m.repo.DeleteExpired(ctx)
}

// SetCookie はセッションIDを署名したCookieを設定する。
func (m *Manager) SetCookie(w http.ResponseWriter, sess *model.Session) error {
	token, err := m.sign(sess.ID, sess.ExpiresAt)
	if err != nil {
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		Domain:   m.config.CookieDomain,
		Expires:  sess.ExpiresAt,
		MaxAge:   int(m.config.MaxAge.Seconds()),
		HttpOnly: true,
		Secure:   m.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// sign はセッションIDをHS256で署名したJWTを返す。
func (m *Manager) sign(sessionID string, expiresAt time.Time) (string, error) {
	claims := cookieClaims{
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(m.now()),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.config.Secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session cookie: %w", err)
	}
	return signed, nil
}

// verify は署名と有効期限を検証し、セッションIDを返す。
func (m *Manager) verify(raw string) (string, error) {
	claims := &cookieClaims{}
	_, err := jwt.ParseWithClaims(raw, claims,
		func(*jwt.Token) (any, error) { return m.config.Secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return "", fmt.Errorf("invalid session cookie: %w", err)
	}
	if claims.SessionID == "" {
		return "", errors.New("session cookie has no sid")
	}
	return claims.SessionID, nil
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
