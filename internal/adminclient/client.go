// Package adminclient は在庫管理APIの認証付きHTTPクライアントを提供する。
package adminclient

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"
)

const (
	refreshTokenPath = "/auth/users/refresh-token"
	csrfTokenPath    = "/api/csrf-token"
	csrfCookieName   = "csrf_token"
	csrfHeaderName   = "X-CSRF-Token"
	defaultTimeout   = 30 * time.Second
	tokenExpiredCode = "TOKEN_EXPIRED"
)

// Client は在庫管理APIの認証付きクライアント。
// 認証はHTTP Only Cookieで行われ、Cookie jarが透過的に管理する。
// アクセストークン失効による403（TOKEN_EXPIREDコード）を受け取った場合は
// トークンをリフレッシュしてから同じリクエストを一度だけ再試行する。
type Client struct {
	httpClient *http.Client
	baseURL    *url.URL
}

// NewClient は指定されたベースURLに対するClientを生成する。
func NewClient(baseURL string) (*Client, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	return &Client{
		httpClient: &http.Client{
			Jar:     jar,
			Timeout: defaultTimeout,
		},
		baseURL: parsed,
	}, nil
}

// do はリクエストを送信し、レスポンスを返す。
// 403（TOKEN_EXPIRED）を受け取った場合はリフレッシュ後に一度だけ再試行する。
// リフレッシュ自体が失敗した場合は、元の403ではなくリフレッシュのエラーを返す。
// リフレッシュエンドポイントへのリクエストは再試行の対象外。
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body []byte, contentType string) (*http.Response, error) {
	retried := false

	for {
		resp, err := c.send(ctx, method, path, query, body, contentType)
		if err != nil {
			return nil, err
		}

		if resp.StatusCode == http.StatusForbidden && !retried && path != refreshTokenPath {
			statusErr := newAPIStatusError(resp)
			resp.Body.Close()

			if statusErr.Code != tokenExpiredCode {
				return nil, statusErr
			}

			if err := c.refresh(ctx); err != nil {
				return nil, err
			}

			retried = true
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			statusErr := newAPIStatusError(resp)
			resp.Body.Close()
			return nil, statusErr
		}

		return resp, nil
	}
}

// send は単一のHTTPリクエストを送信する。
// 再試行のたびにボディを再構築するため、ボディはバイト列で受け取る。
// クエリ文字列はパスに混ぜるとJoinPathが「?」をエスケープしてしまうため、
// url.Valuesとして別引数で受け取りRawQueryに設定する。
func (c *Client) send(ctx context.Context, method, path string, query url.Values, body []byte, contentType string) (*http.Response, error) {
	target := c.baseURL.JoinPath(path)
	if len(query) > 0 {
		target.RawQuery = query.Encode()
	}

	var reader *bytes.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	// CSRFトークンCookieをヘッダーにミラーする（二重送信方式）
	if token := c.csrfToken(); token != "" {
		req.Header.Set(csrfHeaderName, token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}

// refresh はリフレッシュトークンでアクセストークンを再発行する。
// 新しいトークンはCookie jarに透過的に反映される。
func (c *Client) refresh(ctx context.Context) error {
	resp, err := c.send(ctx, http.MethodPost, refreshTokenPath, nil, nil, "")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newAPIStatusError(resp)
	}
	return nil
}

// csrfToken はCookie jarからCSRFトークンを読み取る。未取得の場合は空文字列。
func (c *Client) csrfToken() string {
	for _, cookie := range c.httpClient.Jar.Cookies(c.baseURL) {
		if cookie.Name == csrfCookieName {
			return cookie.Value
		}
	}
	return ""
}
