package middleware

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/hitoshi/carman/internal/model"
)

const (
	// csrfCookieName はCSRFトークンを保持するCookieの名前。
	// 管理クライアントがヘッダーへミラーするため、HttpOnlyにはしない。
	csrfCookieName = "csrf_token"

	// csrfHeaderName はCookieのミラー先となるリクエストヘッダー名。
	csrfHeaderName = "X-CSRF-Token"

	// csrfTokenBytes はトークンの乱数長（hexエンコード前）。
	csrfTokenBytes = 32

	// csrfCookieMaxAge はトークンCookieの有効期間（秒）。
	csrfCookieMaxAge = 24 * 60 * 60
)

// CSRFConfig はCSRF保護の設定。
type CSRFConfig struct {
	CookieSecure bool
	CookieDomain string
}

// NewCSRFMiddleware は二重送信Cookie方式のCSRF保護を返す。
// 読み取り系メソッド（GET, HEAD, OPTIONS）は検証せず、未設定なら
// トークンCookieを発行する。状態変更メソッドはCookieとヘッダーの
// トークン一致を必須とし、不一致は在庫APIの統一エラー形式で拒否する。
func NewCSRFMiddleware(config CSRFConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isSafeMethod(r.Method) {
				ensureCSRFCookie(w, r, config)
				next.ServeHTTP(w, r)
				return
			}

			if reason := validateCSRFToken(r); reason != "" {
				slog.Warn("CSRFトークン検証失敗",
					slog.String("reason", reason),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
				)
				WriteErrorResponse(w, http.StatusForbidden, model.NewForbiddenError())
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// validateCSRFToken はCookieとヘッダーのトークン一致を確認する。
// 検証に通った場合は空文字列を、失敗した場合はログ用の理由を返す。
func validateCSRFToken(r *http.Request) string {
	cookie, err := r.Cookie(csrfCookieName)
	if err != nil || cookie.Value == "" {
		return "cookie missing"
	}
	header := r.Header.Get(csrfHeaderName)
	if header == "" {
		return "header missing"
	}
	if cookie.Value != header {
		return "token mismatch"
	}
	return ""
}

// NewCSRFTokenHandler はGET /api/csrf-tokenのハンドラーを返す。
// 既存のトークンCookieがあればそれを、なければ新規発行したトークンを
// JSONで返す。管理クライアントはこのCookieを以降の変更リクエストで
// ヘッダーへミラーする。
func NewCSRFTokenHandler(config CSRFConfig) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := ""
		if cookie, err := r.Cookie(csrfCookieName); err == nil && cookie.Value != "" {
			token = cookie.Value
		} else {
			generated, err := generateCSRFToken()
			if err != nil {
				slog.Error("CSRFトークンの生成に失敗", slog.String("error", err.Error()))
				WriteInternalServerError(w)
				return
			}
			token = generated
			setCSRFCookie(w, token, config)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"token": token,
		})
	})
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	default:
		return false
	}
}

// ensureCSRFCookie は読み取り系リクエストの応答でトークンCookieを種まきする。
// 生成に失敗してもリクエスト自体は通す。
func ensureCSRFCookie(w http.ResponseWriter, r *http.Request, config CSRFConfig) {
	if _, err := r.Cookie(csrfCookieName); err == nil {
		return
	}

	token, err := generateCSRFToken()
	if err != nil {
		slog.Error("CSRFトークンの生成に失敗", slog.String("error", err.Error()))
		return
	}
	setCSRFCookie(w, token, config)
}

func setCSRFCookie(w http.ResponseWriter, token string, config CSRFConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     csrfCookieName,
		Value:    token,
		Path:     "/",
		Domain:   config.CookieDomain,
		MaxAge:   csrfCookieMaxAge,
		HttpOnly: false,
		Secure:   config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func generateCSRFToken() (string, error) {
	b := make([]byte, csrfTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
