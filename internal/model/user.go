// Package model はドメインモデルを定義する。
package model

import "time"

// User はGoogleアカウントで認可したユーザーを表す。
// GoogleIDはGoogleの`sub`で、usersテーブル上で一意。
type User struct {
	ID        string
	GoogleID  string
	Name      string
	Email     string
	Tokens    TokenSet
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TokenSet はOAuth2認可サーバーが発行したトークン一式を表す。
// RefreshTokenは初回同意時（prompt=consent時）にのみ発行される。
type TokenSet struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	TokenType    string    `json:"token_type,omitempty"`
	Expiry       time.Time `json:"expiry,omitempty"`
	IDToken      string    `json:"id_token,omitempty"`
}

// HasRefreshToken はリフレッシュトークンを保持しているかを返す。
// 保持していないTokenSetはアクセストークン失効後に更新できない。
func (t TokenSet) HasRefreshToken() bool {
	return t.RefreshToken != ""
}

// ExpiresWithin はアクセストークンが指定時間内に失効するかを返す。
// 有効期限が不明な場合は失効間近として扱う。
func (t TokenSet) ExpiresWithin(d time.Duration, now time.Time) bool {
	if t.Expiry.IsZero() {
		return true
	}
	return !now.Add(d).Before(t.Expiry)
}
