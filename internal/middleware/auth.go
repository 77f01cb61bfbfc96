// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/hitoshi/carman/internal/auth"
	"github.com/hitoshi/carman/internal/model"
)

const accessTokenCookieName = "access_token"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// identityContextKey はリクエストコンテキストに認証情報を格納するためのキー。
var identityContextKey = contextKey("identity")

// TokenVerifier はアクセストークン検証のインターフェース。
// auth.Serviceの部分集合として定義する。
type TokenVerifier interface {
	VerifyAccessToken(tokenString string) (*model.Identity, error)
}

// NewAuthMiddleware はHTTP Only Cookieからアクセストークンを読み取り、
// 検証するミドルウェアを返す。
// 認証済みの利用者情報をリクエストコンテキストに注入する。
// トークンが存在しない・不正な場合は401を返す。
// トークンが期限切れの場合はTOKEN_EXPIREDコード付きの403を返す。
// この403がクライアント側のリフレッシュ再試行の契機となる。
func NewAuthMiddleware(verifier TokenVerifier) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(accessTokenCookieName)
			if err != nil || cookie.Value == "" {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewInvalidCredentialsError())
				return
			}

			identity, err := verifier.VerifyAccessToken(cookie.Value)
			if err != nil {
				if errors.Is(err, auth.ErrTokenExpired) {
					WriteErrorResponse(w, http.StatusForbidden, model.NewTokenExpiredError())
					return
				}
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewInvalidCredentialsError())
				return
			}

			ctx := ContextWithIdentity(r.Context(), identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// NewRequireAdminMiddleware は管理者ロールを要求するミドルウェアを返す。
// 認証ミドルウェアの後段に配置する。管理者以外には403を返す。
func NewRequireAdminMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := IdentityFromContext(r.Context())
			if err != nil {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewInvalidCredentialsError())
				return
			}
			if !identity.IsAdmin() {
				WriteErrorResponse(w, http.StatusForbidden, model.NewForbiddenError())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// IdentityFromContext はリクエストコンテキストから認証情報を取得する。
// 認証ミドルウェアを通過したリクエストでのみ有効。
func IdentityFromContext(ctx context.Context) (*model.Identity, error) {
	identity, ok := ctx.Value(identityContextKey).(*model.Identity)
	if !ok || identity == nil {
		return nil, fmt.Errorf("identity not found in context")
	}
	return identity, nil
}

// ContextWithIdentity はコンテキストに認証情報を注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithIdentity(ctx context.Context, identity *model.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, identity)
}
