package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// IDTokenClaims はGoogleのid_tokenから読み取るクレーム。
type IDTokenClaims struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// ParseIDToken はid_tokenのクレームを署名検証なしで読み取る。
// id_tokenはTLS越しにトークンエンドポイントから直接受け取ったものに限って使うこと。
// 表示名の補完にのみ使い、認可の判断には使わない。
func ParseIDToken(raw string) (*IDTokenClaims, error) {
	if raw == "" {
		return nil, errors.New("empty id_token")
	}

	claims := &IDTokenClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return nil, fmt.Errorf("failed to parse id_token: %w", err)
	}
	return claims, nil
}
