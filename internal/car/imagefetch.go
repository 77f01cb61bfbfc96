// Package car は在庫車両管理のドメインロジックを提供する。
package car

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hitoshi/carman/internal/model"
	"github.com/hitoshi/carman/internal/security"
)

// defaultMaxImageSize はリモート取得する車両画像の最大サイズのデフォルト（10MB）。
const defaultMaxImageSize = 10 * 1024 * 1024

// ImageFetcherService はリモート画像取得のインターフェース。
type ImageFetcherService interface {
	// FetchImage は指定URLから車両画像を取得する。
	// URLがセキュリティポリシーに違反する場合はIMAGE_BLOCKED、
	// 取得に失敗した場合はIMAGE_FETCH_FAILEDのAPIErrorを返す。
	FetchImage(ctx context.Context, imageURL string) (data []byte, ext string, err error)
}

// ImageFetcher はリモート画像取得機能の実装。
// favicon等と異なり取得失敗は管理者に提示するため、エラーを握りつぶさない。
type ImageFetcher struct {
	ssrfGuard security.SSRFGuardService
	timeout   time.Duration
	maxSize   int64
}

// NewImageFetcher はImageFetcherの新しいインスタンスを生成する。
// maxSizeに0以下を指定するとデフォルトの上限（10MB）を使用する。
func NewImageFetcher(ssrfGuard security.SSRFGuardService, timeout time.Duration, maxSize int64) *ImageFetcher {
	if maxSize <= 0 {
		maxSize = defaultMaxImageSize
	}
	return &ImageFetcher{
		ssrfGuard: ssrfGuard,
		timeout:   timeout,
		maxSize:   maxSize,
	}
}

// FetchImage は指定URLから車両画像を取得する。
func (f *ImageFetcher) FetchImage(ctx context.Context, imageURL string) ([]byte, string, error) {
	// SSRF検証（静的チェック）
	if err := f.ssrfGuard.ValidateURL(imageURL); err != nil {
		slog.Warn("画像取得: SSRFブロック", "url", imageURL, "error", err)
		return nil, "", model.NewImageBlockedError()
	}

	client := f.ssrfGuard.NewSafeClient(f.timeout)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, "", model.NewImageFetchFailedError("リクエストを作成できません")
	}
	req.Header.Set("User-Agent", "Carman/1.0 Inventory Manager")

	resp, err := client.Do(req)
	if err != nil {
		// Dialer検証で弾かれたケースもここに到達する
		slog.Warn("画像取得: HTTPリクエスト失敗", "url", imageURL, "error", err)
		return nil, "", model.NewImageFetchFailedError("接続できませんでした")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		slog.Warn("画像取得: HTTPステータス異常", "url", imageURL, "status", resp.StatusCode)
		return nil, "", model.NewImageFetchFailedError(resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxSize+1))
	if err != nil {
		return nil, "", model.NewImageFetchFailedError("レスポンスを読み取れませんでした")
	}
	if int64(len(body)) > f.maxSize {
		slog.Warn("画像取得: サイズ超過", "url", imageURL, "size", len(body))
		return nil, "", model.NewImageFetchFailedError("画像サイズが上限を超えています")
	}

	ext := extFromContentType(resp.Header.Get("Content-Type"))
	if ext == "" {
		slog.Warn("画像取得: 画像以外のContent-Type", "url", imageURL, "contentType", resp.Header.Get("Content-Type"))
		return nil, "", model.NewImageFetchFailedError("画像形式ではありません")
	}

	return body, ext, nil
}

// extFromContentType はContent-Typeヘッダーから保存用の拡張子を決定する。
// 対応しないメディアタイプの場合は空文字列を返す。
func extFromContentType(contentType string) string {
	mimeType := contentType
	if idx := strings.Index(mimeType, ";"); idx >= 0 {
		mimeType = mimeType[:idx]
	}
	mimeType = strings.TrimSpace(strings.ToLower(mimeType))

	switch mimeType {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "image/bmp":
		return ".bmp"
	}
	return ""
}

// compile-time interface check
var _ ImageFetcherService = (*ImageFetcher)(nil)
