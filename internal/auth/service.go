// Package auth はOAuth認可フロー、トークンの取得・更新を提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/tubenote/internal/metrics"
	"github.com/hitoshi/tubenote/internal/model"
	"github.com/hitoshi/tubenote/internal/repository"
	"github.com/hitoshi/tubenote/internal/session"
)

// Profile は認可したGoogleアカウントの情報を表す。
type Profile struct {
	Subject string // Googleの`sub`
	Name    string
	Email   string
}

// Grant は認可コード交換の結果を表す。
type Grant struct {
	Tokens  model.TokenSet
	Profile Profile
}

// TokenManager は認可サーバーとのトークン取得・更新のインターフェース。
type TokenManager interface {
	// AuthorizationURL は認可画面のURLを生成する。副作用はない。
	AuthorizationURL(state string) string
	// ExchangeCode は認可コードをトークンに交換し、アカウント情報を取得する。
	ExchangeCode(ctx context.Context, code string) (*Grant, error)
	// Refresh はリフレッシュトークンでアクセストークンを更新する。
	Refresh(ctx context.Context, tokens model.TokenSet) (model.TokenSet, error)
}

// SessionStore はセッションの作成・保存のインターフェース。
type SessionStore interface {
	Create(ctx context.Context, userID string, tokens model.TokenSet) (*model.Session, error)
	Save(ctx context.Context, sess *model.Session) error
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	// RefreshMargin はアクセストークンの残り有効期間がこれを下回ったら更新する。
	// 0の場合はリクエストごとに必ず更新する。
	RefreshMargin time.Duration
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	tokens   TokenManager
	userRepo repository.UserRepository
	sessions SessionStore
	metrics  metrics.MetricsCollector
	config   ServiceConfig
	now      func() time.Time
}

// NewService はServiceを生成する。
func NewService(
	tokens TokenManager,
	userRepo repository.UserRepository,
	sessions SessionStore,
	mc metrics.MetricsCollector,
	config ServiceConfig,
) *Service {
	if mc == nil {
		mc = metrics.Nop{}
	}
	return &Service{
		tokens:   tokens,
		userRepo: userRepo,
		sessions: sessions,
		metrics:  mc,
		config:   config,
		now:      time.Now,
	}
}

// AuthorizationURL は認可画面のURLを生成する。
func (s *Service) AuthorizationURL(state string) string {
	return s.tokens.AuthorizationURL(state)
}

// HandleCallback は認可コールバックを処理し、セッションを発行する。
// 未登録のGoogleアカウントはusersレコードを自動作成する。
func (s *Service) HandleCallback(ctx context.Context, code string) (*model.Session, error) {
	// 1. 認可コードをトークンに交換し、アカウント情報を取得
	grant, err := s.tokens.ExchangeCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}

	// 2. google_idでユーザーを作成または更新
	user := &model.User{
		ID:       uuid.New().String(),
		GoogleID: grant.Profile.Subject,
		Name:     grant.Profile.Name,
		Email:    grant.Profile.Email,
		Tokens:   grant.Tokens,
	}
	if err := s.userRepo.UpsertByGoogleID(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to save user: %w", err)
	}

	// 3. セッションを発行。保存済みのリフレッシュトークンを引き継ぐ
	tokens := grant.Tokens
	if !tokens.HasRefreshToken() {
		tokens.RefreshToken = user.Tokens.RefreshToken
	}
	sess, err := s.sessions.Create(ctx, user.ID, tokens)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	slog.Info("user authorized",
		slog.String("user_id", user.ID),
		slog.Bool("has_refresh_token", tokens.HasRefreshToken()),
	)
	return sess, nil
}

// NeedsRefresh はアクセストークンを更新すべきかを返す。
func (s *Service) NeedsRefresh(tokens model.TokenSet) bool {
	if s.config.RefreshMargin <= 0 {
		return true
	}
	return tokens.ExpiresWithin(s.config.RefreshMargin, s.now())
}

// RefreshSession はセッションのアクセストークンを更新し、セッションとユーザーに保存する。
// 保存に失敗しても更新済みのTokenSetを返す。
// 並行リクエストが先に更新していた場合は保存済みのTokenSetを採用する。
func (s *Service) RefreshSession(ctx context.Context, sess *model.Session) (model.TokenSet, error) {
	current, ok := sess.Current()
	if !ok {
		return model.TokenSet{}, model.ErrRefreshUnavailable
	}
	if !s.NeedsRefresh(current) {
		return current, nil
	}

	fresh, err := s.tokens.Refresh(ctx, current)
	if err != nil {
		if !errors.Is(err, model.ErrRefreshUnavailable) {
			s.metrics.RecordTokenRefresh(metrics.OutcomeFailure)
		}
		return model.TokenSet{}, err
	}
	s.metrics.RecordTokenRefresh(metrics.OutcomeSuccess)

	userID := sess.UserID()
	sess.Attach(fresh, userID)

	if err := s.sessions.Save(ctx, sess); err != nil {
		if errors.Is(err, session.ErrConflict) {
			if stored, ok := sess.Current(); ok {
				slog.Info("session refreshed concurrently, adopting stored token",
					slog.String("user_id", userID),
				)
				return stored, nil
			}
		}
		slog.Error("failed to save refreshed session",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}

	if err := s.userRepo.UpdateTokens(ctx, userID, fresh); err != nil {
		slog.Error("failed to save refreshed user tokens",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}

	return fresh, nil
}
