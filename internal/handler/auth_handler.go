// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/hitoshi/carman/internal/auth"
	"github.com/hitoshi/carman/internal/metrics"
	"github.com/hitoshi/carman/internal/middleware"
	"github.com/hitoshi/carman/internal/model"
)

const (
	accessTokenCookieName  = "access_token"
	refreshTokenCookieName = "refresh_token"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Login(ctx context.Context, email, password string) (*auth.Credentials, error)
	Refresh(ctx context.Context, refreshTokenID string) (*auth.Credentials, error)
	Logout(ctx context.Context, refreshTokenID string) error
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	CookieDomain       string
	CookieSecure       bool
	AccessTokenMaxAge  int // アクセストークンCookieの有効期間（秒）
	RefreshTokenMaxAge int // リフレッシュトークンCookieの有効期間（秒）
}

// AuthHandler はトークン認証関連のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	config  AuthHandlerConfig
	metrics metrics.MetricsCollector
}

// NewAuthHandler はAuthHandlerを生成する。metricsはnilでもよい。
func NewAuthHandler(service AuthServiceInterface, config AuthHandlerConfig, collector metrics.MetricsCollector) *AuthHandler {
	return &AuthHandler{
		service: service,
		config:  config,
		metrics: collector,
	}
}

// loginRequest はログインリクエストのボディ。
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// identityResponse は認証済みユーザー情報のAPIレスポンス。
type identityResponse struct {
	User model.Identity `json:"user"`
}

// Login はメールアドレスとパスワードによるログインを処理する。
// POST /auth/users/login
// 成功時はアクセストークンとリフレッシュトークンをHTTP Only Cookieに設定する。
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "リクエストボディの解析に失敗しました。",
			Category: "validation",
			Action:   "正しいJSON形式でリクエストしてください。",
		})
		return
	}

	creds, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if h.metrics != nil {
			h.metrics.RecordLoginFailure()
		}
		handleServiceError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordLoginSuccess()
	}

	h.setAuthCookies(w, creds)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(identityResponse{User: creds.Identity})
}

// Refresh はリフレッシュトークンによるトークン再発行を処理する。
// POST /auth/users/refresh-token
// トークンはローテーションされ、古いリフレッシュトークンは無効化される。
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(refreshTokenCookieName)
	if err != nil || cookie.Value == "" {
		if h.metrics != nil {
			h.metrics.RecordTokenRefresh(false)
		}
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewRefreshFailedError())
		return
	}

	creds, err := h.service.Refresh(r.Context(), cookie.Value)
	if err != nil {
		if h.metrics != nil {
			h.metrics.RecordTokenRefresh(false)
		}
		// リフレッシュ失敗時はCookieをクリアして再ログインを促す
		h.clearAuthCookies(w)
		handleServiceError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordTokenRefresh(true)
	}

	h.setAuthCookies(w, creds)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(identityResponse{User: creds.Identity})
}

// Profile は現在のログインユーザー情報を返す。
// GET /auth/users/profile
// 認証ミドルウェアの後段に配置する。
func (h *AuthHandler) Profile(w http.ResponseWriter, r *http.Request) {
	identity, err := middleware.IdentityFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewInvalidCredentialsError())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(identityResponse{User: *identity})
}

// Logout はリフレッシュトークンを破棄し、認証Cookieをクリアする。
// POST /auth/users/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(refreshTokenCookieName)
	if err == nil && cookie.Value != "" {
		if logoutErr := h.service.Logout(r.Context(), cookie.Value); logoutErr != nil {
			slog.Error("failed to logout", slog.String("error", logoutErr.Error()))
			// ログアウト失敗してもCookieはクリアする
		}
	}

	h.clearAuthCookies(w)

	w.WriteHeader(http.StatusNoContent)
}

// setAuthCookies はアクセストークンとリフレッシュトークンをHTTP Only Cookieに設定する。
func (h *AuthHandler) setAuthCookies(w http.ResponseWriter, creds *auth.Credentials) {
	http.SetCookie(w, &http.Cookie{
		Name:     accessTokenCookieName,
		Value:    creds.AccessToken,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   h.config.AccessTokenMaxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     refreshTokenCookieName,
		Value:    creds.RefreshToken,
		Path:     "/auth/users",
		Domain:   h.config.CookieDomain,
		MaxAge:   h.config.RefreshTokenMaxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// clearAuthCookies は認証Cookieを無効化する。
func (h *AuthHandler) clearAuthCookies(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     accessTokenCookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     refreshTokenCookieName,
		Value:    "",
		Path:     "/auth/users",
		Domain:   h.config.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}
