package adminclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
)

// ワイヤー形状のテスト。各操作がサーバーに届くパス・クエリ・ボディの
// 形をルーター側の視点で検証する。

func TestListCars_SendsQueryParamsSeparateFromPath(t *testing.T) {
	var gotPath string
	var gotQuery url.Values

	mux := http.NewServeMux()
	mux.HandleFunc("GET /admin/cars", func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query()
		json.NewEncoder(w).Encode(map[string]any{"cars": []any{}, "page": 1, "pages": 1, "total": 0})
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	client, err := NewClient(srv.URL)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	// クエリがパス側に漏れるとルーターにマッチせずここに到達しない
	if _, err := client.ListCars(context.Background(), 1, 12, "SUV"); err != nil {
		t.Fatalf("ListCars: %v", err)
	}

	if gotPath != "/admin/cars" {
		t.Errorf("path = %q, want %q", gotPath, "/admin/cars")
	}
	if got := gotQuery.Get("page"); got != "1" {
		t.Errorf("page = %q, want %q", got, "1")
	}
	if got := gotQuery.Get("limit"); got != "12" {
		t.Errorf("limit = %q, want %q", got, "12")
	}
	if got := gotQuery.Get("category"); got != "SUV" {
		t.Errorf("category = %q, want %q", got, "SUV")
	}
}

func TestListCars_OmitsUnsetParams(t *testing.T) {
	var gotRawQuery string

	mux := http.NewServeMux()
	mux.HandleFunc("GET /admin/cars", func(w http.ResponseWriter, r *http.Request) {
		gotRawQuery = r.URL.RawQuery
		json.NewEncoder(w).Encode(map[string]any{"cars": []any{}, "page": 1, "pages": 1, "total": 0})
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	client, err := NewClient(srv.URL)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	if _, err := client.ListCars(context.Background(), 0, 0, ""); err != nil {
		t.Fatalf("ListCars: %v", err)
	}

	if gotRawQuery != "" {
		t.Errorf("raw query = %q, want empty", gotRawQuery)
	}
}

func TestCreateCar_SendsMultipartFieldsAndImageURLs(t *testing.T) {
	var gotName, gotPrice string
	var gotImageURLs []string

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/cars", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("ParseMultipartForm: %v", err)
			writeJSONError(w, http.StatusBadRequest, "VALIDATION_FAILED")
			return
		}
		gotName = r.FormValue("name")
		gotPrice = r.FormValue("price")
		gotImageURLs = r.MultipartForm.Value["imageUrls"]
		json.NewEncoder(w).Encode(map[string]any{"id": "car-1"})
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	client, err := NewClient(srv.URL)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	fields := map[string]string{"name": "Civic", "price": "2500000"}
	urls := []string{"https://img.example.com/a.jpg", "https://img.example.com/b.jpg"}
	if _, err := client.CreateCar(context.Background(), fields, urls); err != nil {
		t.Fatalf("CreateCar: %v", err)
	}

	if gotName != "Civic" {
		t.Errorf("name = %q, want %q", gotName, "Civic")
	}
	if gotPrice != "2500000" {
		t.Errorf("price = %q, want %q", gotPrice, "2500000")
	}
	if len(gotImageURLs) != 2 || gotImageURLs[0] != urls[0] || gotImageURLs[1] != urls[1] {
		t.Errorf("imageUrls = %v, want %v", gotImageURLs, urls)
	}
}

func TestUpdateCar_SendsJSONBodyToEscapedPath(t *testing.T) {
	var gotID string
	var gotBody map[string]any

	mux := http.NewServeMux()
	mux.HandleFunc("PUT /admin/cars/{id}", func(w http.ResponseWriter, r *http.Request) {
		gotID = r.PathValue("id")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{"id": gotID})
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	client, err := NewClient(srv.URL)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	// 空白を含むIDはパスセグメントとしてエスケープされたまま届く
	if _, err := client.UpdateCar(context.Background(), "car 1", map[string]any{"price": 2000000}); err != nil {
		t.Fatalf("UpdateCar: %v", err)
	}

	if gotID != "car 1" {
		t.Errorf("id = %q, want %q", gotID, "car 1")
	}
	if got, ok := gotBody["price"].(float64); !ok || got != 2000000 {
		t.Errorf("body price = %v, want %v", gotBody["price"], 2000000)
	}
}

func TestDeleteCar_SendsDeleteToCarPath(t *testing.T) {
	var gotMethod, gotID string

	mux := http.NewServeMux()
	mux.HandleFunc("DELETE /admin/cars/{id}", func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotID = r.PathValue("id")
		w.WriteHeader(http.StatusNoContent)
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	client, err := NewClient(srv.URL)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	if err := client.DeleteCar(context.Background(), "car-9"); err != nil {
		t.Fatalf("DeleteCar: %v", err)
	}

	if gotMethod != http.MethodDelete {
		t.Errorf("method = %q, want %q", gotMethod, http.MethodDelete)
	}
	if gotID != "car-9" {
		t.Errorf("id = %q, want %q", gotID, "car-9")
	}
}
