package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/carman/internal/model"
)

func newCSRFHandler(t *testing.T, called *bool) http.Handler {
	t.Helper()
	mw := NewCSRFMiddleware(CSRFConfig{})
	return mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if called != nil {
			*called = true
		}
		w.WriteHeader(http.StatusOK)
	}))
}

func findCSRFCookie(resp *http.Response) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == csrfCookieName {
			return c
		}
	}
	return nil
}

func TestCSRFMiddleware_SafeMethods_SkipValidation(t *testing.T) {
	for _, method := range []string{http.MethodGet, http.MethodHead, http.MethodOptions} {
		t.Run(method, func(t *testing.T) {
			called := false
			handler := newCSRFHandler(t, &called)

			req := httptest.NewRequest(method, "/api/cars", nil)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if !called {
				t.Fatalf("%s request must pass through without token", method)
			}
			if w.Result().StatusCode != http.StatusOK {
				t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
			}
		})
	}
}

func TestCSRFMiddleware_MutatingMethods_RequireToken(t *testing.T) {
	methods := []string{http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete}

	for _, method := range methods {
		t.Run(method, func(t *testing.T) {
			mw := NewCSRFMiddleware(CSRFConfig{})
			handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Fatalf("%s without token must not reach the handler", method)
			}))

			req := httptest.NewRequest(method, "/api/cars", nil)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Result().StatusCode != http.StatusForbidden {
				t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusForbidden)
			}
		})
	}
}

func TestCSRFMiddleware_ValidationFailures_ReturnStructuredError(t *testing.T) {
	tests := []struct {
		name     string
		decorate func(*http.Request)
	}{
		{
			name:     "cookie missing",
			decorate: func(r *http.Request) { r.Header.Set(csrfHeaderName, "token-abc") },
		},
		{
			name:     "header missing",
			decorate: func(r *http.Request) { r.AddCookie(&http.Cookie{Name: csrfCookieName, Value: "token-abc"}) },
		},
		{
			name: "token mismatch",
			decorate: func(r *http.Request) {
				r.AddCookie(&http.Cookie{Name: csrfCookieName, Value: "token-abc"})
				r.Header.Set(csrfHeaderName, "token-xyz")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mw := NewCSRFMiddleware(CSRFConfig{})
			handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Fatal("invalid token must not reach the handler")
			}))

			req := httptest.NewRequest(http.MethodPost, "/api/cars", nil)
			tt.decorate(req)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			resp := w.Result()
			if resp.StatusCode != http.StatusForbidden {
				t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusForbidden)
			}

			var body ErrorResponseBody
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode error body: %v", err)
			}
			if body.Code != model.ErrCodeForbidden {
				t.Errorf("code = %q, want %q", body.Code, model.ErrCodeForbidden)
			}
		})
	}
}

func TestCSRFMiddleware_MatchingToken_PassesThrough(t *testing.T) {
	for _, method := range []string{http.MethodPost, http.MethodPut} {
		t.Run(method, func(t *testing.T) {
			called := false
			handler := newCSRFHandler(t, &called)

			req := httptest.NewRequest(method, "/api/cars", nil)
			req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: "valid-token"})
			req.Header.Set(csrfHeaderName, "valid-token")
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if !called {
				t.Fatalf("%s with matching token must reach the handler", method)
			}
		})
	}
}

func TestCSRFMiddleware_SafeMethod_SeedsTokenCookie(t *testing.T) {
	handler := newCSRFHandler(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/admin/cars", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	cookie := findCSRFCookie(w.Result())
	if cookie == nil {
		t.Fatal("expected CSRF cookie to be seeded on safe method")
	}
	if cookie.Value == "" {
		t.Error("seeded CSRF cookie must carry a token")
	}
	if cookie.HttpOnly {
		t.Error("CSRF cookie must be readable by the client for header mirroring")
	}
	if cookie.SameSite != http.SameSiteLaxMode {
		t.Errorf("SameSite = %v, want %v", cookie.SameSite, http.SameSiteLaxMode)
	}
	if cookie.Path != "/" {
		t.Errorf("Path = %q, want %q", cookie.Path, "/")
	}
}

func TestCSRFMiddleware_ExistingCookie_NotReseeded(t *testing.T) {
	handler := newCSRFHandler(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/admin/cars", nil)
	req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: "existing-token"})
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if cookie := findCSRFCookie(w.Result()); cookie != nil {
		t.Error("CSRF cookie must not be replaced when already present")
	}
}

func TestCSRFTokenHandler_IssuesTokenAndCookie(t *testing.T) {
	h := NewCSRFTokenHandler(CSRFConfig{CookieDomain: "example.com"})

	req := httptest.NewRequest(http.MethodGet, "/api/csrf-token", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want %q", ct, "application/json")
	}

	var body struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Token == "" {
		t.Fatal("expected non-empty token")
	}

	cookie := findCSRFCookie(resp)
	if cookie == nil {
		t.Fatal("expected CSRF cookie to be set")
	}
	if cookie.Value != body.Token {
		t.Errorf("cookie value = %q, response token = %q; must match", cookie.Value, body.Token)
	}
}

func TestCSRFTokenHandler_ReturnsExistingToken(t *testing.T) {
	h := NewCSRFTokenHandler(CSRFConfig{})

	req := httptest.NewRequest(http.MethodGet, "/api/csrf-token", nil)
	req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: "existing-csrf-token"})
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	resp := w.Result()
	var body struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Token != "existing-csrf-token" {
		t.Errorf("token = %q, want %q", body.Token, "existing-csrf-token")
	}
	if findCSRFCookie(resp) != nil {
		t.Error("existing token must be returned without issuing a new cookie")
	}
}
