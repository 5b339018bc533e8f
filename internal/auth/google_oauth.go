package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/hitoshi/tubenote/internal/model"
)

const defaultGoogleUserInfoURL = "https://www.googleapis.com/oauth2/v3/userinfo"

// YouTubeScopes はYouTubeの読み書きと本人確認に必要なスコープ。
var YouTubeScopes = []string{
	"https://www.googleapis.com/auth/youtube.force-ssl",
	"openid",
	"profile",
}

// GoogleOAuthConfig はGoogle OAuthプロバイダーの設定。
type GoogleOAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Timeout      time.Duration

	// テスト用にオーバーライド可能なURL
	AuthURL     string
	TokenURL    string
	UserInfoURL string
}

// GoogleTokenManager はGoogleの認可サーバーとのトークン取得・更新を担う。
type GoogleTokenManager struct {
	oauth       *oauth2.Config
	userInfoURL string
	httpClient  *http.Client
}

// NewGoogleTokenManager はGoogleTokenManagerを生成する。
func NewGoogleTokenManager(config GoogleOAuthConfig) *GoogleTokenManager {
	endpoint := google.Endpoint
	if config.AuthURL != "" {
		endpoint.AuthURL = config.AuthURL
	}
	if config.TokenURL != "" {
		endpoint.TokenURL = config.TokenURL
	}
	userInfoURL := config.UserInfoURL
	if userInfoURL == "" {
		userInfoURL = defaultGoogleUserInfoURL
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &GoogleTokenManager{
		oauth: &oauth2.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			RedirectURL:  config.RedirectURL,
			Endpoint:     endpoint,
			Scopes:       YouTubeScopes,
		},
		userInfoURL: userInfoURL,
		httpClient:  &http.Client{Timeout: timeout},
	}
}

// AuthorizationURL はGoogleの認可画面のURLを生成する。
// リフレッシュトークンを毎回受け取るためoffline + consentを指定する。
func (m *GoogleTokenManager) AuthorizationURL(state string) string {
	return m.oauth.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	)
}

// googleUserInfo はGoogleのユーザー情報エンドポイントのレスポンス。
type googleUserInfo struct {
	Sub   string `json:"sub"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// ExchangeCode は認可コードをトークンに交換し、ユーザー情報を取得する。
func (m *GoogleTokenManager) ExchangeCode(ctx context.Context, code string) (*Grant, error) {
	if code == "" {
		return nil, fmt.Errorf("%w: empty authorization code", model.ErrAuthorization)
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, m.httpClient)

	// 1. 認可コードをトークンに交換
	tok, err := m.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: token exchange: %w", model.ErrAuthorization, err)
	}
	if tok.AccessToken == "" {
		return nil, fmt.Errorf("%w: empty access token in response", model.ErrAuthorization)
	}
	tokens := tokenSetFromOAuth2(tok)

	// 2. アクセストークンでユーザー情報を取得
	info, err := m.fetchUserInfo(ctx, tok)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrAuthorization, err)
	}

	profile := Profile{Subject: info.Sub, Name: info.Name, Email: info.Email}
	if profile.Name == "" || profile.Email == "" {
		if claims, err := ParseIDToken(tokens.IDToken); err == nil {
			if profile.Name == "" {
				profile.Name = claims.Name
			}
			if profile.Email == "" {
				profile.Email = claims.Email
			}
		}
	}

	return &Grant{Tokens: tokens, Profile: profile}, nil
}

// Refresh はリフレッシュトークンでアクセストークンを更新する。
// リフレッシュトークンを保持していない場合は上流に問い合わせずErrRefreshUnavailableを返す。
func (m *GoogleTokenManager) Refresh(ctx context.Context, tokens model.TokenSet) (model.TokenSet, error) {
	if !tokens.HasRefreshToken() {
		return model.TokenSet{}, model.ErrRefreshUnavailable
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, m.httpClient)

	// アクセストークンを空にして期限切れ扱いにし、必ず更新させる
	src := m.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: tokens.RefreshToken})
	tok, err := src.Token()
	if err != nil {
		return model.TokenSet{}, fmt.Errorf("%w: %w", model.ErrRefreshRejected, err)
	}

	fresh := tokenSetFromOAuth2(tok)
	if fresh.RefreshToken == "" {
		fresh.RefreshToken = tokens.RefreshToken
	}
	if fresh.IDToken == "" {
		fresh.IDToken = tokens.IDToken
	}
	return fresh, nil
}

// fetchUserInfo はアクセストークンでGoogleのユーザー情報を取得する。
func (m *GoogleTokenManager) fetchUserInfo(ctx context.Context, tok *oauth2.Token) (*googleUserInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.userInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create user info request: %w", err)
	}

	resp, err := m.oauth.Client(ctx, tok).Do(req)
	if err != nil {
		return nil, fmt.Errorf("user info request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read user info response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("user info fetch failed with status %d: %s", resp.StatusCode, string(body))
	}

	var info googleUserInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("failed to parse user info response: %w", err)
	}

	if info.Sub == "" {
		return nil, errors.New("empty sub in user info response")
	}

	return &info, nil
}

func tokenSetFromOAuth2(tok *oauth2.Token) model.TokenSet {
	idToken, _ := tok.Extra("id_token").(string)
	return model.TokenSet{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.Type(),
		Expiry:       tok.Expiry,
		IDToken:      idToken,
	}
}

// compile-time interface check
var _ TokenManager = (*GoogleTokenManager)(nil)
