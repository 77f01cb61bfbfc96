// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ハンドラーやサービス層から利用する。
type MetricsCollector interface {
	RecordLoginSuccess()
	RecordLoginFailure()
	RecordTokenRefresh(success bool)
	RecordHTTPStatus(statusCode int)
	RecordListLatency(duration time.Duration)
	RecordCarMutation(operation string)
	RecordImageFetchFailure()
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	loginSuccess     prometheus.Counter
	loginFail        prometheus.Counter
	tokenRefresh     *prometheus.CounterVec
	httpStatus       *prometheus.CounterVec
	listLatency      prometheus.Histogram
	carMutations     *prometheus.CounterVec
	imageFetchFailed prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		loginSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "carman_login_success_total",
			Help: "ログイン成功の合計数",
		}),
		loginFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "carman_login_fail_total",
			Help: "ログイン失敗の合計数",
		}),
		tokenRefresh: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "carman_token_refresh_total",
			Help: "トークンリフレッシュの結果別合計数",
		}, []string{"result"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "carman_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		listLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "carman_list_latency_seconds",
			Help:    "車両一覧取得のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		carMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "carman_car_mutations_total",
			Help: "車両の登録・更新・削除の操作別合計数",
		}, []string{"operation"}),
		imageFetchFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "carman_image_fetch_fail_total",
			Help: "リモート画像取得失敗の合計数",
		}),
	}

	reg.MustRegister(
		c.loginSuccess,
		c.loginFail,
		c.tokenRefresh,
		c.httpStatus,
		c.listLatency,
		c.carMutations,
		c.imageFetchFailed,
	)

	return c
}

// RecordLoginSuccess はログイン成功を記録する。
func (c *Collector) RecordLoginSuccess() {
	c.loginSuccess.Inc()
}

// RecordLoginFailure はログイン失敗を記録する。
func (c *Collector) RecordLoginFailure() {
	c.loginFail.Inc()
}

// RecordTokenRefresh はトークンリフレッシュの結果を記録する。
func (c *Collector) RecordTokenRefresh(success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	c.tokenRefresh.WithLabelValues(result).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordListLatency は車両一覧取得のレイテンシを記録する。
func (c *Collector) RecordListLatency(duration time.Duration) {
	c.listLatency.Observe(duration.Seconds())
}

// RecordCarMutation は車両の変更操作（create/update/delete）を記録する。
func (c *Collector) RecordCarMutation(operation string) {
	c.carMutations.WithLabelValues(operation).Inc()
}

// RecordImageFetchFailure はリモート画像取得の失敗を記録する。
func (c *Collector) RecordImageFetchFailure() {
	c.imageFetchFailed.Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
