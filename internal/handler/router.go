package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/carman/internal/metrics"
	"github.com/hitoshi/carman/internal/middleware"
)

// HealthChecker はDB疎通確認を抽象化するインターフェース。
// *sql.DB がそのまま満たす。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	TokenVerifier     middleware.TokenVerifier
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	CSRFConfig        middleware.CSRFConfig

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// 車両在庫
	CarService CarServiceInterface
	CarConfig  CarHandlerConfig

	// メトリクス（nil可）
	Metrics metrics.MetricsCollector

	// Prometheusスクレイプ用ハンドラー（nil可）
	MetricsHandler http.Handler

	// ヘルスチェック用のDB疎通確認（nil可）
	HealthChecker HealthChecker

	// アップロード画像の保存ディレクトリ
	UploadDir string
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → SecurityHeaders → CORS → Auth → CSRF → RateLimit(General)
//
// ログイン・リフレッシュと静的ファイル配信はミドルウェアチェーンの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	// 全ルートに効くミドルウェア。panic回復を最上位に置く
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(slog.Default()))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig, deps.Metrics)
	carHandler := NewCarHandler(deps.CarService, deps.CarConfig, deps.Metrics)

	// --- 認証不要のルート ---

	// ログインとトークンリフレッシュ。リフレッシュはアクセストークン失効後にも
	// 呼ばれるため、認証ミドルウェアの外に置く。
	r.Post("/auth/users/login", authHandler.Login)
	r.Post("/auth/users/refresh-token", authHandler.Refresh)

	// CSRFトークン発行
	r.Method(http.MethodGet, "/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig))

	// ヘルスチェック（Dockerヘルスチェック・死活監視用）
	r.Get("/health", newHealthHandler(deps.HealthChecker))

	// Prometheusメトリクス
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	// アップロード画像の静的配信
	if deps.UploadDir != "" {
		fileServer := http.StripPrefix("/uploads/", http.FileServer(http.Dir(deps.UploadDir)))
		r.Handle("/uploads/*", fileServer)
	}

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Auth → CSRF → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewAuthMiddleware(deps.TokenVerifier))
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// セッション管理
		r.Get("/auth/users/profile", authHandler.Profile)
		r.Post("/auth/users/logout", authHandler.Logout)

		// 車両在庫管理（管理者のみ）
		r.Group(func(r chi.Router) {
			r.Use(middleware.NewRequireAdminMiddleware())

			r.Route("/admin/cars", func(r chi.Router) {
				r.Get("/", carHandler.ListCars)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", carHandler.GetCar)
					r.Put("/", carHandler.UpdateCar)
					r.Delete("/", carHandler.DeleteCar)
				})
			})

			// POST /api/cars - 車両登録（変更操作専用レート制限を追加）
			r.With(deps.RateLimiter.MutationMiddleware()).Post("/api/cars", carHandler.CreateCar)
		})
	})

	return r
}

// newHealthHandler はヘルスチェックエンドポイントのハンドラーを返す。
// checkerがnilの場合はDB疎通確認を省略してokを返す。
func newHealthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker != nil {
			if err := checker.PingContext(r.Context()); err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusServiceUnavailable)
				json.NewEncoder(w).Encode(map[string]string{"status": "unavailable"})
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}
