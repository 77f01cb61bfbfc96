package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/carman/internal/car"
	"github.com/hitoshi/carman/internal/metrics"
	"github.com/hitoshi/carman/internal/model"
)

// CarServiceInterface は車両ハンドラーが必要とするサービスインターフェース。
type CarServiceInterface interface {
	List(ctx context.Context, query model.CarListQuery) (*model.CarPage, error)
	Get(ctx context.Context, id string) (*model.Car, error)
	Create(ctx context.Context, in *car.Input, uploads []car.Upload, imageURLs []string) (*model.Car, error)
	Update(ctx context.Context, id string, in *car.Input) (*model.Car, error)
	Delete(ctx context.Context, id string) error
}

// CarHandlerConfig は車両ハンドラーの設定。
type CarHandlerConfig struct {
	MaxUploadBodyBytes int64 // multipartリクエストボディの上限
	MaxImagesPerCar    int   // 1台あたりの登録画像の上限
}

// CarHandler は在庫車両管理のHTTPハンドラー。
type CarHandler struct {
	service CarServiceInterface
	config  CarHandlerConfig
	metrics metrics.MetricsCollector
}

// NewCarHandler はCarHandlerを生成する。metricsはnilでもよい。
func NewCarHandler(service CarServiceInterface, config CarHandlerConfig, collector metrics.MetricsCollector) *CarHandler {
	return &CarHandler{
		service: service,
		config:  config,
		metrics: collector,
	}
}

// carResponse は車両情報のAPIレスポンス。
type carResponse struct {
	ID           string   `json:"id"`
	Make         string   `json:"make"`
	Model        string   `json:"model"`
	Year         int      `json:"year"`
	Price        int64    `json:"price"`
	Color        string   `json:"color"`
	Category     string   `json:"category"`
	Seats        int      `json:"seats"`
	Transmission string   `json:"transmission"`
	FuelType     string   `json:"fuelType"`
	Engine       string   `json:"engine"`
	Horsepower   int      `json:"horsepower"`
	Description  string   `json:"description"`
	Images       []string `json:"images"`
	PrimaryImage string   `json:"primaryImage"`
}

// carPageResponse は車両一覧のページング付きAPIレスポンス。
type carPageResponse struct {
	Cars  []carResponse `json:"cars"`
	Page  int           `json:"page"`
	Pages int           `json:"pages"`
	Total int           `json:"total"`
}

// ListCars は車両一覧をページング付きで返す。
// GET /admin/cars?page=1&limit=12&category=SUV
func (h *CarHandler) ListCars(w http.ResponseWriter, r *http.Request) {
	query, err := parseListQuery(r.URL.Query())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	start := time.Now()
	page, err := h.service.List(r.Context(), query)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if h.metrics != nil {
		h.metrics.RecordListLatency(time.Since(start))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toCarPageResponse(page))
}

// GetCar は車両詳細を返す。
// GET /admin/cars/{id}
func (h *CarHandler) GetCar(w http.ResponseWriter, r *http.Request) {
	carID := chi.URLParam(r, "id")

	c, err := h.service.Get(r.Context(), carID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toCarResponse(c))
}

// CreateCar は車両を登録する。
// POST /api/cars
// multipart/form-data を受け付ける。フォームフィールドに加えて、
// images（複数のファイル）と imageUrls（複数のリモートURL）を受け付ける。
func (h *CarHandler) CreateCar(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.config.MaxUploadBodyBytes)
	if err := r.ParseMultipartForm(h.config.MaxUploadBodyBytes); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "multipartフォームの解析に失敗しました。",
			Category: "validation",
			Action:   "フォームの内容とサイズを確認してください。",
		})
		return
	}

	in, err := car.ParseInput(r.MultipartForm.Value)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	uploads, err := h.readUploads(r)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	imageURLs := collectImageURLs(r.MultipartForm.Value)
	if len(uploads)+len(imageURLs) > h.config.MaxImagesPerCar {
		handleServiceError(w, model.NewValidationError(
			fmt.Sprintf("画像は1台あたり%d枚までです", h.config.MaxImagesPerCar)))
		return
	}

	created, err := h.service.Create(r.Context(), in, uploads, imageURLs)
	if err != nil {
		var apiErr *model.APIError
		if h.metrics != nil && errors.As(err, &apiErr) && apiErr.Code == model.ErrCodeImageFetchFailed {
			h.metrics.RecordImageFetchFailure()
		}
		handleServiceError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordCarMutation("create")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toCarResponse(created))
}

// UpdateCar は車両情報を更新する。
// PUT /admin/cars/{id}
// ボディはJSONで、数値フィールドは文字列でも数値でも受け付ける。
func (h *CarHandler) UpdateCar(w http.ResponseWriter, r *http.Request) {
	carID := chi.URLParam(r, "id")

	var raw map[string]any
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "リクエストボディの解析に失敗しました。",
			Category: "validation",
			Action:   "正しいJSON形式でリクエストしてください。",
		})
		return
	}

	in, err := car.ParseInput(valuesFromJSON(raw))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	updated, err := h.service.Update(r.Context(), carID, in)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordCarMutation("update")
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toCarResponse(updated))
}

// DeleteCar は車両を削除する。
// DELETE /admin/cars/{id}
func (h *CarHandler) DeleteCar(w http.ResponseWriter, r *http.Request) {
	carID := chi.URLParam(r, "id")

	if err := h.service.Delete(r.Context(), carID); err != nil {
		handleServiceError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordCarMutation("delete")
	}

	w.WriteHeader(http.StatusNoContent)
}

// readUploads はmultipartフォームのimagesフィールドからアップロード画像を読み取る。
func (h *CarHandler) readUploads(r *http.Request) ([]car.Upload, error) {
	files := r.MultipartForm.File["images"]
	uploads := make([]car.Upload, 0, len(files))

	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			return nil, model.NewValidationError("アップロード画像を読み取れませんでした")
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, model.NewValidationError("アップロード画像を読み取れませんでした")
		}

		ext := strings.ToLower(filepath.Ext(fh.Filename))
		if !isAllowedImageExt(ext) {
			return nil, model.NewValidationError(fmt.Sprintf("対応していない画像形式です: %s", fh.Filename))
		}

		uploads = append(uploads, car.Upload{Data: data, Ext: ext})
	}

	return uploads, nil
}

// isAllowedImageExt はアップロードを受け付ける画像拡張子かを判定する。
func isAllowedImageExt(ext string) bool {
	switch ext {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp", ".bmp":
		return true
	}
	return false
}

// collectImageURLs はフォーム値からリモート画像URLのリストを取り出す。
// 空値は無視する。
func collectImageURLs(values url.Values) []string {
	var urls []string
	for _, raw := range values["imageUrls"] {
		raw = strings.TrimSpace(raw)
		if raw != "" {
			urls = append(urls, raw)
		}
	}
	return urls
}

// parseListQuery は一覧取得のクエリパラメータを解釈する。
// page・limitが数値として解釈できない場合はINVALID_PAGEエラーを返す。
func parseListQuery(values url.Values) (model.CarListQuery, error) {
	query := model.CarListQuery{
		Category: strings.TrimSpace(values.Get("category")),
	}

	if raw := values.Get("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil {
			return query, model.NewInvalidPageError(-1)
		}
		query.Page = page
	}

	if raw := values.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			return query, model.NewValidationError("limitは数値で指定してください")
		}
		query.Limit = limit
	}

	return query, nil
}

// valuesFromJSON はJSONオブジェクトをフォーム値形式に変換する。
// 数値・真偽値は文字列化され、car.ParseInputの数値解釈に委ねる。
func valuesFromJSON(raw map[string]any) url.Values {
	values := url.Values{}
	for key, val := range raw {
		switch v := val.(type) {
		case string:
			values.Set(key, v)
		case float64:
			// 整数値は小数点なしで文字列化する
			values.Set(key, strconv.FormatInt(int64(v), 10))
		case nil:
			// 無視
		default:
			values.Set(key, fmt.Sprint(v))
		}
	}
	return values
}

// toCarResponse はmodel.CarからAPIレスポンスに変換する。
func toCarResponse(c *model.Car) carResponse {
	images := c.Images
	if images == nil {
		images = []string{}
	}
	return carResponse{
		ID:           c.ID,
		Make:         c.Make,
		Model:        c.Model,
		Year:         c.Year,
		Price:        c.Price,
		Color:        c.Color,
		Category:     c.Category,
		Seats:        c.Seats,
		Transmission: c.Transmission,
		FuelType:     c.FuelType,
		Engine:       c.Engine,
		Horsepower:   c.Horsepower,
		Description:  c.Description,
		Images:       images,
		PrimaryImage: c.PrimaryImage(),
	}
}

// toCarPageResponse はmodel.CarPageからAPIレスポンスに変換する。
func toCarPageResponse(page *model.CarPage) carPageResponse {
	cars := make([]carResponse, len(page.Cars))
	for i, c := range page.Cars {
		cars[i] = toCarResponse(c)
	}
	return carPageResponse{
		Cars:  cars,
		Page:  page.Page,
		Pages: page.Pages,
		Total: page.Total,
	}
}

// --- ヘルパー関数 ---

// apiErrorResponse は統一エラーフォーマットのレスポンス。
type apiErrorResponse struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(apiErrorResponse{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		statusCode := mapAPIErrorToHTTPStatus(apiErr)
		writeAPIErrorResponse(w, statusCode, apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	writeAPIErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
// TOKEN_EXPIREDの403はクライアント側のリフレッシュ再試行のトリガーとして予約されている。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeInvalidCredentials, model.ErrCodeRefreshFailed:
		return http.StatusUnauthorized
	case model.ErrCodeTokenExpired, model.ErrCodeForbidden:
		return http.StatusForbidden
	case model.ErrCodeCarNotFound:
		return http.StatusNotFound
	case model.ErrCodeValidationFailed, model.ErrCodeInvalidPage:
		return http.StatusBadRequest
	case model.ErrCodeImageBlocked:
		return http.StatusForbidden
	case model.ErrCodeImageFetchFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
