package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/carman/internal/auth"
	"github.com/hitoshi/carman/internal/middleware"
	"github.com/hitoshi/carman/internal/model"
)

// mockTokenVerifier はmiddleware.TokenVerifierのモック実装。
type mockTokenVerifier struct {
	verifyFn func(tokenString string) (*model.Identity, error)
}

func (m *mockTokenVerifier) VerifyAccessToken(tokenString string) (*model.Identity, error) {
	if m.verifyFn != nil {
		return m.verifyFn(tokenString)
	}
	return nil, auth.ErrInvalidToken
}

// newTestRouter はテスト用の依存関係一式でルーターを構築するヘルパー。
func newTestRouter(t *testing.T, deps *RouterDeps) http.Handler {
	t.Helper()

	if deps.TokenVerifier == nil {
		deps.TokenVerifier = &mockTokenVerifier{
			verifyFn: func(tokenString string) (*model.Identity, error) {
				if tokenString == "valid-admin-token" {
					identity := testAdminIdentity
					return &identity, nil
				}
				if tokenString == "valid-viewer-token" {
					return &model.Identity{ID: "user-2", Email: "viewer@example.com", Role: model.RoleViewer}, nil
				}
				if tokenString == "expired-token" {
					return nil, auth.ErrTokenExpired
				}
				return nil, auth.ErrInvalidToken
			},
		}
	}
	if deps.CORSAllowedOrigin == "" {
		deps.CORSAllowedOrigin = "http://localhost:3000"
	}
	if deps.RateLimiter == nil {
		rl := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
		t.Cleanup(rl.Stop)
		deps.RateLimiter = rl
	}
	if deps.AuthService == nil {
		deps.AuthService = &mockAuthService{}
	}
	if deps.AuthConfig == (AuthHandlerConfig{}) {
		deps.AuthConfig = testAuthConfig
	}
	if deps.CarService == nil {
		deps.CarService = &mockCarService{}
	}
	if deps.CarConfig == (CarHandlerConfig{}) {
		deps.CarConfig = testCarConfig
	}

	return NewRouter(deps)
}

// withAuthCookies はアクセストークンとCSRFトークンを揃えたリクエストを返すヘルパー。
func withAuthCookies(req *http.Request, accessToken string) *http.Request {
	req.AddCookie(&http.Cookie{Name: "access_token", Value: accessToken})
	req.AddCookie(&http.Cookie{Name: "csrf_token", Value: "test-csrf-token"})
	req.Header.Set("X-CSRF-Token", "test-csrf-token")
	return req
}

func TestRouter_Login_ReachableWithoutAuth(t *testing.T) {
	router := newTestRouter(t, &RouterDeps{
		AuthService: &mockAuthService{
			loginFn: func(ctx context.Context, email, password string) (*auth.Credentials, error) {
				return &auth.Credentials{
					AccessToken:  "access-1",
					RefreshToken: "refresh-1",
					Identity:     testAdminIdentity,
				}, nil
			},
		},
	})

	body := `{"email": "admin@example.com", "password": "secret"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/users/login", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("POST /auth/users/login status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
}

func TestRouter_RefreshToken_ReachableWithoutAuth(t *testing.T) {
	router := newTestRouter(t, &RouterDeps{
		AuthService: &mockAuthService{
			refreshFn: func(ctx context.Context, refreshTokenID string) (*auth.Credentials, error) {
				return &auth.Credentials{
					AccessToken:  "access-2",
					RefreshToken: "refresh-2",
					Identity:     testAdminIdentity,
				}, nil
			},
		},
	})

	// アクセストークンが失効していてもリフレッシュは到達できる
	req := httptest.NewRequest(http.MethodPost, "/auth/users/refresh-token", nil)
	req.AddCookie(&http.Cookie{Name: "refresh_token", Value: "refresh-1"})
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("POST /auth/users/refresh-token status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
}

func TestRouter_CSRFTokenEndpoint_ReachableWithoutAuth(t *testing.T) {
	router := newTestRouter(t, &RouterDeps{})

	req := httptest.NewRequest(http.MethodGet, "/api/csrf-token", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("GET /api/csrf-token status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var result map[string]string
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if result["token"] == "" {
		t.Error("expected token in response")
	}
}

func TestRouter_ListCars_NoCookie_ReturnsUnauthorized(t *testing.T) {
	router := newTestRouter(t, &RouterDeps{})

	req := httptest.NewRequest(http.MethodGet, "/admin/cars", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("GET /admin/cars status = %d, want %d", resp.StatusCode, http.StatusUnauthorized)
	}
}

func TestRouter_ListCars_ExpiredToken_Returns403TokenExpired(t *testing.T) {
	router := newTestRouter(t, &RouterDeps{})

	req := httptest.NewRequest(http.MethodGet, "/admin/cars", nil)
	req.AddCookie(&http.Cookie{Name: "access_token", Value: "expired-token"})
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("GET /admin/cars status = %d, want %d", resp.StatusCode, http.StatusForbidden)
	}

	errResp := parseAPIErrorResponse(t, w)
	if errResp["code"] != model.ErrCodeTokenExpired {
		t.Errorf("code = %q, want %q", errResp["code"], model.ErrCodeTokenExpired)
	}
}

func TestRouter_ListCars_AdminToken_Succeeds(t *testing.T) {
	router := newTestRouter(t, &RouterDeps{
		CarService: &mockCarService{
			listFn: func(ctx context.Context, query model.CarListQuery) (*model.CarPage, error) {
				return &model.CarPage{Page: 1, Pages: 1, Total: 0, Cars: []*model.Car{}}, nil
			},
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/admin/cars", nil)
	req.AddCookie(&http.Cookie{Name: "access_token", Value: "valid-admin-token"})
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("GET /admin/cars status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
}

func TestRouter_ListCars_ViewerToken_ReturnsForbidden(t *testing.T) {
	router := newTestRouter(t, &RouterDeps{})

	req := httptest.NewRequest(http.MethodGet, "/admin/cars", nil)
	req.AddCookie(&http.Cookie{Name: "access_token", Value: "valid-viewer-token"})
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("GET /admin/cars status = %d, want %d", resp.StatusCode, http.StatusForbidden)
	}

	errResp := parseAPIErrorResponse(t, w)
	if errResp["code"] != model.ErrCodeForbidden {
		t.Errorf("code = %q, want %q", errResp["code"], model.ErrCodeForbidden)
	}
}

func TestRouter_DeleteCar_WithoutCSRFToken_ReturnsForbidden(t *testing.T) {
	deleteCalled := false
	router := newTestRouter(t, &RouterDeps{
		CarService: &mockCarService{
			deleteFn: func(ctx context.Context, id string) error {
				deleteCalled = true
				return nil
			},
		},
	})

	req := httptest.NewRequest(http.MethodDelete, "/admin/cars/car-1", nil)
	req.AddCookie(&http.Cookie{Name: "access_token", Value: "valid-admin-token"})
	// CSRFトークンを付与しない
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("DELETE /admin/cars/car-1 status = %d, want %d", resp.StatusCode, http.StatusForbidden)
	}

	if deleteCalled {
		t.Error("expected Delete not to be called without CSRF token")
	}
}

func TestRouter_DeleteCar_WithCSRFToken_Succeeds(t *testing.T) {
	router := newTestRouter(t, &RouterDeps{
		CarService: &mockCarService{
			deleteFn: func(ctx context.Context, id string) error {
				if id != "car-1" {
					t.Errorf("id = %q, want %q", id, "car-1")
				}
				return nil
			},
		},
	})

	req := httptest.NewRequest(http.MethodDelete, "/admin/cars/car-1", nil)
	req = withAuthCookies(req, "valid-admin-token")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("DELETE /admin/cars/car-1 status = %d, want %d", resp.StatusCode, http.StatusNoContent)
	}
}

func TestRouter_Profile_AuthenticatedViewer_Succeeds(t *testing.T) {
	// 参照系のセッション操作は管理者ロールを要求しない
	router := newTestRouter(t, &RouterDeps{})

	req := httptest.NewRequest(http.MethodGet, "/auth/users/profile", nil)
	req.AddCookie(&http.Cookie{Name: "access_token", Value: "valid-viewer-token"})
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("GET /auth/users/profile status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
}

func TestRouter_CORSHeaders_AppliedToAllRoutes(t *testing.T) {
	router := newTestRouter(t, &RouterDeps{CORSAllowedOrigin: "http://localhost:3000"})

	req := httptest.NewRequest(http.MethodGet, "/api/csrf-token", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	resp := w.Result()
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, "http://localhost:3000")
	}
	if got := resp.Header.Get("Access-Control-Allow-Credentials"); got != "true" {
		t.Errorf("Access-Control-Allow-Credentials = %q, want %q", got, "true")
	}
}

func TestRouter_UnknownRoute_Returns404(t *testing.T) {
	router := newTestRouter(t, &RouterDeps{})

	req := httptest.NewRequest(http.MethodGet, "/api/unknown", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("GET /api/unknown status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
}

type fakeHealthChecker struct {
	err error
}

func (f *fakeHealthChecker) PingContext(ctx context.Context) error { return f.err }

func TestRouter_Health_ReturnsOK(t *testing.T) {
	router := newTestRouter(t, &RouterDeps{HealthChecker: &fakeHealthChecker{}})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("GET /health status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("レスポンスのデコードに失敗: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status = %q, want %q", body["status"], "ok")
	}
}

func TestRouter_Health_DBUnavailable_Returns503(t *testing.T) {
	router := newTestRouter(t, &RouterDeps{
		HealthChecker: &fakeHealthChecker{err: errors.New("connection refused")},
	})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("GET /health status = %d, want %d", resp.StatusCode, http.StatusServiceUnavailable)
	}
}
