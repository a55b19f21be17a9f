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
// ミューテーションコーディネーターやハンドラー層から利用する。
type MetricsCollector interface {
	RecordMutationSuccess(op string)
	RecordMutationFailure(op string)
	RecordRollback(op string)
	RecordUndo()
	RecordRemoteLatency(op string, duration time.Duration)
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	mutationSuccess *prometheus.CounterVec
	mutationFail    *prometheus.CounterVec
	rollbacks       *prometheus.CounterVec
	undos           prometheus.Counter
	remoteLatency   *prometheus.HistogramVec
	httpStatus      *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		mutationSuccess: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "userdesk_mutation_success_total",
			Help: "ミューテーション成功の合計数（操作別）",
		}, []string{"op"}),
		mutationFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "userdesk_mutation_fail_total",
			Help: "ミューテーション失敗の合計数（操作別）",
		}, []string{"op"}),
		rollbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "userdesk_rollback_total",
			Help: "楽観的適用のロールバック回数（操作別）",
		}, []string{"op"}),
		undos: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "userdesk_undo_total",
			Help: "削除アンドゥの実行回数",
		}),
		remoteLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "userdesk_remote_latency_seconds",
			Help:    "ユーザーストア呼び出しのレイテンシ（秒、操作別）",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "userdesk_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.mutationSuccess,
		c.mutationFail,
		c.rollbacks,
		c.undos,
		c.remoteLatency,
		c.httpStatus,
	)

	return c
}

// RecordMutationSuccess はミューテーション成功を記録する。
func (c *Collector) RecordMutationSuccess(op string) {
	c.mutationSuccess.WithLabelValues(op).Inc()
}

// RecordMutationFailure はミューテーション失敗を記録する。
func (c *Collector) RecordMutationFailure(op string) {
	c.mutationFail.WithLabelValues(op).Inc()
}

// RecordRollback はロールバック実行を記録する。
func (c *Collector) RecordRollback(op string) {
	c.rollbacks.WithLabelValues(op).Inc()
}

// RecordUndo は削除アンドゥの実行を記録する。
func (c *Collector) RecordUndo() {
	c.undos.Inc()
}

// RecordRemoteLatency はユーザーストア呼び出しのレイテンシを記録する。
func (c *Collector) RecordRemoteLatency(op string, duration time.Duration) {
	c.remoteLatency.WithLabelValues(op).Observe(duration.Seconds())
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
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
