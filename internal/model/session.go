package model

import "time"

// Session はブラウザごとのログインセッションを表す。
// TokenSetとユーザーIDはAttach/Current経由でのみ読み書きする。
type Session struct {
	ID        string
	Version   int
	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time

	userID string
	tokens *TokenSet
}

// Attach はTokenSetと解決済みユーザーIDでセッションの内容を上書きする。
func (s *Session) Attach(tokens TokenSet, userID string) {
	t := tokens
	s.tokens = &t
	s.userID = userID
}

// Current は現在のTokenSetを返す。未設定の場合はfalseを返す。
func (s *Session) Current() (TokenSet, bool) {
	if s == nil || s.tokens == nil {
		return TokenSet{}, false
	}
	return *s.tokens, true
}

// UserID はセッションに紐づくユーザーIDを返す。
func (s *Session) UserID() string {
	if s == nil {
		return ""
	}
	return s.userID
}
