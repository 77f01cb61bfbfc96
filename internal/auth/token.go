package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const issuer = "carman"

// ErrInvalidToken はトークンが検証に失敗したことを示す。
var ErrInvalidToken = errors.New("invalid token")

// ErrTokenExpired はトークンの有効期限が切れていることを示す。
// 失効はクライアント側のリフレッシュ再試行の起点となるため、
// その他の検証失敗と区別する。
var ErrTokenExpired = errors.New("token expired")

// Claims はアクセストークンのJWTクレームを表す。
type Claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// TokenIssuer はアクセストークン（HS256署名のJWT）の発行と検証を行う。
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenIssuer はTokenIssuerを生成する。
func NewTokenIssuer(secret string, ttl time.Duration) (*TokenIssuer, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("auth secret is required")
	}
	if ttl <= 0 {
		return nil, errors.New("token ttl must be greater than zero")
	}
	return &TokenIssuer{secret: []byte(secret), ttl: ttl}, nil
}

// TTL はアクセストークンの有効期間を返す。
func (ti *TokenIssuer) TTL() time.Duration {
	return ti.ttl
}

// Generate は指定ユーザーのアクセストークンを発行する。
func (ti *TokenIssuer) Generate(userID, email, role string) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", errors.New("userID is required")
	}

	now := time.Now().UTC()
	claims := Claims{
		Email: email,
		Role:  role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ti.ttl)),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(ti.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ParseAndValidate はトークンの署名と必須クレームを検証する。
// 有効期限切れの場合はErrTokenExpiredを返す。
func (ti *TokenIssuer) ParseAndValidate(token string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidToken
	}

	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return ti.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if err := validateClaims(claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// validateClaims は発行者・subject・時刻クレームの妥当性を検証する。
func validateClaims(claims *Claims) error {
	if claims.Issuer != issuer {
		return ErrInvalidToken
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return ErrInvalidToken
	}
	if claims.ExpiresAt == nil || claims.IssuedAt == nil {
		return ErrInvalidToken
	}
	now := time.Now().UTC()
	if now.After(claims.ExpiresAt.Time) {
		return ErrTokenExpired
	}
	// 発行時刻の検証では5秒のクロックスキューを許容する
	if claims.IssuedAt.Time.After(now.Add(5 * time.Second)) {
		return ErrInvalidToken
	}
	if claims.ExpiresAt.Time.Before(claims.IssuedAt.Time) {
		return ErrInvalidToken
	}
	return nil
}
