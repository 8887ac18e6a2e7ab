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
// サービス層とミドルウェアから利用する。
type MetricsCollector interface {
	RecordGeneration(kind, platform string)
	RecordValidationScore(score int)
	RecordStoreOperation(operation, mode string)
	RecordPostsImported(count int)
	RecordImportFailure(reason string)
	RecordImportLatency(duration time.Duration)
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	generations     *prometheus.CounterVec
	validationScore prometheus.Histogram
	storeOperations *prometheus.CounterVec
	postsImported   prometheus.Counter
	importFail      *prometheus.CounterVec
	importLatency   prometheus.Histogram
	httpStatus      *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		generations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "socialgen_generations_total",
			Help: "種類・プラットフォーム別の生成リクエスト数",
		}, []string{"kind", "platform"}),
		validationScore: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "socialgen_validation_score",
			Help:    "投稿バリデーションのスコア分布",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		}),
		storeOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "socialgen_store_operations_total",
			Help: "操作・モード（live/mock）別の投稿ストア操作数",
		}, []string{"operation", "mode"}),
		postsImported: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "socialgen_posts_imported_total",
			Help: "フィードからインポートされた投稿の合計数",
		}),
		importFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "socialgen_import_fail_total",
			Help: "原因別のインポート失敗数",
		}, []string{"reason"}),
		importLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "socialgen_import_latency_seconds",
			Help:    "フィード取得のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "socialgen_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.generations,
		c.validationScore,
		c.storeOperations,
		c.postsImported,
		c.importFail,
		c.importLatency,
		c.httpStatus,
	)

	return c
}

// RecordGeneration はテキスト・画像生成の実行を記録する。
func (c *Collector) RecordGeneration(kind, platform string) {
	c.generations.WithLabelValues(kind, platform).Inc()
}

// RecordValidationScore はバリデーションスコアを記録する。
func (c *Collector) RecordValidationScore(score int) {
	c.validationScore.Observe(float64(score))
}

// RecordStoreOperation は投稿ストア操作を記録する。
func (c *Collector) RecordStoreOperation(operation, mode string) {
	c.storeOperations.WithLabelValues(operation, mode).Inc()
}

// RecordPostsImported はインポートされた投稿数を記録する。
func (c *Collector) RecordPostsImported(count int) {
	c.postsImported.Add(float64(count))
}

// RecordImportFailure はインポート失敗を記録する。
func (c *Collector) RecordImportFailure(reason string) {
	c.importFail.WithLabelValues(reason).Inc()
}

// RecordImportLatency はフィード取得のレイテンシを記録する。
func (c *Collector) RecordImportLatency(duration time.Duration) {
	c.importLatency.Observe(duration.Seconds())
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// compile-time interface check
var _ MetricsCollector = (*Collector)(nil)
