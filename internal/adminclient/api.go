package adminclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"

	"github.com/hitoshi/carman/internal/model"
)

// identityPayload は認証系エンドポイントのレスポンスボディ。
type identityPayload struct {
	User model.Identity `json:"user"`
}

// Login はメールアドレスとパスワードでログインする。
// 成功するとアクセストークンとリフレッシュトークンのCookieがjarに保存される。
func (c *Client) Login(ctx context.Context, email, password string) (*model.Identity, error) {
	body, err := json.Marshal(map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode login request: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, "/auth/users/login", nil, body, "application/json")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var payload identityPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode login response: %w", err)
	}
	return &payload.User, nil
}

// Logout はサーバー側のリフレッシュトークンを破棄し、セッションを終了する。
func (c *Client) Logout(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodPost, "/auth/users/logout", nil, nil, "")
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// Profile は現在のログインユーザー情報を取得する。
// 既存のCookieによるセッション復元の確認に使用する。
func (c *Client) Profile(ctx context.Context) (*model.Identity, error) {
	resp, err := c.do(ctx, http.MethodGet, "/auth/users/profile", nil, nil, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var payload identityPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode profile response: %w", err)
	}
	return &payload.User, nil
}

// EnsureCSRFToken はCSRFトークンCookieを取得する。
// 状態変更リクエストの前に一度呼び出しておく。
func (c *Client) EnsureCSRFToken(ctx context.Context) error {
	if c.csrfToken() != "" {
		return nil
	}

	resp, err := c.do(ctx, http.MethodGet, csrfTokenPath, nil, nil, "")
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// ListCars は車両一覧をページング付きで取得する。
// レスポンスは正規化前の生データとして返す。欠損フィールドの補完は呼び出し側で行う。
func (c *Client) ListCars(ctx context.Context, page, limit int, category string) (map[string]any, error) {
	query := url.Values{}
	if page > 0 {
		query.Set("page", strconv.Itoa(page))
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	if category != "" {
		query.Set("category", category)
	}

	resp, err := c.do(ctx, http.MethodGet, "/admin/cars", query, nil, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var raw map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode list response: %w", err)
	}
	return raw, nil
}

// CreateCar は車両を登録する。フォームフィールドとリモート画像URLを
// multipart/form-dataで送信する。
func (c *Client) CreateCar(ctx context.Context, fields map[string]string, imageURLs []string) (map[string]any, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for key, val := range fields {
		if err := mw.WriteField(key, val); err != nil {
			return nil, fmt.Errorf("failed to build form: %w", err)
		}
	}
	for _, imageURL := range imageURLs {
		if err := mw.WriteField("imageUrls", imageURL); err != nil {
			return nil, fmt.Errorf("failed to build form: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to build form: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, "/api/cars", nil, buf.Bytes(), mw.FormDataContentType())
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var raw map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode create response: %w", err)
	}
	return raw, nil
}

// UpdateCar は車両情報を更新する。
func (c *Client) UpdateCar(ctx context.Context, carID string, fields map[string]any) (map[string]any, error) {
	body, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to encode update request: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPut, "/admin/cars/"+url.PathEscape(carID), nil, body, "application/json")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var raw map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode update response: %w", err)
	}
	return raw, nil
}

// DeleteCar は車両を削除する。
func (c *Client) DeleteCar(ctx context.Context, carID string) error {
	resp, err := c.do(ctx, http.MethodDelete, "/admin/cars/"+url.PathEscape(carID), nil, nil, "")
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}
