package visitor

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// DefaultCookieName は訪問者セッションIDを格納するクッキー名。
	DefaultCookieName = "rails_visitor"
	// cookieIssuer はセッションクッキーのJWTに設定する発行者。
	cookieIssuer = "rails-gateway"
)

// ErrInvalidCookie はクッキーの署名または内容が不正であることを表す。
var ErrInvalidCookie = errors.New("invalid visitor cookie")

// cookieClaims はセッションクッキーのJWTクレーム。
// セッションIDはjti（ID）に格納する。
type cookieClaims struct {
	jwt.RegisteredClaims
}

// CookieCodec はセッションIDをHS256で署名したJWTとしてクッキーに格納する。
type CookieCodec struct {
	// Name はクッキー名。
	Name string
	// Secret はJWT署名用の秘密鍵。
	Secret []byte
	// TTL はクッキーとJWTの有効期間。
	TTL time.Duration
	// Secure はクッキーにSecure属性を付けるかどうか。
	Secure bool
}

// NewCookieCodec はデフォルト名のCookieCodecを生成する。
func NewCookieCodec(secret string, ttl time.Duration, secure bool) CookieCodec {
	return CookieCodec{
		Name:   DefaultCookieName,
		Secret: []byte(secret),
		TTL:    ttl,
		Secure: secure,
	}
}

// NewID は新しいセッションIDを生成する。
func NewID() string {
	return uuid.New().String()
}

// Encode はセッションIDを署名済みのクッキーに変換する。
func (c CookieCodec) Encode(sessionID string) (*http.Cookie, error) {
	now := time.Now()
	claims := cookieClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sessionID,
			Issuer:    cookieIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.TTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.Secret)
	if err != nil {
		return nil, fmt.Errorf("セッションクッキーの署名に失敗: %w", err)
	}

	return &http.Cookie{
		Name:     c.Name,
		Value:    signed,
		Path:     "/",
		MaxAge:   int(c.TTL.Seconds()),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	}, nil
}

// Decode はクッキーの値を検証してセッションIDを返す。
func (c CookieCodec) Decode(value string) (string, error) {
	claims := &cookieClaims{}
	token, err := jwt.ParseWithClaims(value, claims, func(_ *jwt.Token) (any, error) {
		return c.Secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(cookieIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return "", errors.Join(ErrInvalidCookie, err)
	}

	if _, err := uuid.Parse(claims.ID); err != nil {
		return "", fmt.Errorf("%w: セッションIDが不正", ErrInvalidCookie)
	}
	return claims.ID, nil
}
