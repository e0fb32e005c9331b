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
// 取り込みエンジン、評価サービス、HTTPミドルウェアから利用する。
type MetricsCollector interface {
	RecordRefreshSuccess(stored, skipped int)
	RecordRefreshFailure(reason string)
	RecordRefreshLatency(duration time.Duration)
	RecordReaction(state string)
	RecordReactionCleared(bulk bool)
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	refreshSuccess  prometheus.Counter
	refreshFail     *prometheus.CounterVec
	refreshLatency  prometheus.Histogram
	itemsStored     prometheus.Gauge
	itemsSkipped    prometheus.Counter
	reactions       *prometheus.CounterVec
	reactionCleared *prometheus.CounterVec
	httpStatus      *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		refreshSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hnreact_refresh_success_total",
			Help: "リフレッシュ成功の合計数",
		}),
		refreshFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hnreact_refresh_fail_total",
			Help: "リフレッシュ失敗の合計数",
		}, []string{"reason"}),
		refreshLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "hnreact_refresh_latency_seconds",
			Help:    "リフレッシュ1回あたりの所要時間（秒）",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		itemsStored: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hnreact_items_stored",
			Help: "直近のリフレッシュで保存された記事数",
		}),
		itemsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hnreact_items_skipped_total",
			Help: "取得に失敗して読み飛ばした記事の合計数",
		}),
		reactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hnreact_reactions_total",
			Help: "評価の登録数（状態別）",
		}, []string{"state"}),
		reactionCleared: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hnreact_reactions_cleared_total",
			Help: "評価の取り消し数（scope=own|item）",
		}, []string{"scope"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hnreact_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.refreshSuccess,
		c.refreshFail,
		c.refreshLatency,
		c.itemsStored,
		c.itemsSkipped,
		c.reactions,
		c.reactionCleared,
		c.httpStatus,
	)

	return c
}

// RecordRefreshSuccess はリフレッシュ成功と保存件数を記録する。
func (c *Collector) RecordRefreshSuccess(stored, skipped int) {
	c.refreshSuccess.Inc()
	c.itemsStored.Set(float64(stored))
	c.itemsSkipped.Add(float64(skipped))
}

// RecordRefreshFailure はリフレッシュ失敗を記録する。
func (c *Collector) RecordRefreshFailure(reason string) {
	c.refreshFail.WithLabelValues(reason).Inc()
}

// RecordRefreshLatency はリフレッシュの所要時間を記録する。
func (c *Collector) RecordRefreshLatency(duration time.Duration) {
	c.refreshLatency.Observe(duration.Seconds())
}

// RecordReaction は評価の登録を記録する。
func (c *Collector) RecordReaction(state string) {
	c.reactions.WithLabelValues(state).Inc()
}

// RecordReactionCleared は評価の取り消しを記録する。
// bulkは管理者による記事単位の一括削除を表す。
func (c *Collector) RecordReactionCleared(bulk bool) {
	scope := "own"
	if bulk {
		scope = "item"
	}
	c.reactionCleared.WithLabelValues(scope).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Noop は何も記録しないMetricsCollector。
// メトリクスが不要なコマンドやテストで使用する。
type Noop struct{}

func (Noop) RecordRefreshSuccess(int, int) {}
func (Noop) RecordRefreshFailure(string) {}
func (Noop) RecordRefreshLatency(time.Duration) {}
func (Noop) RecordReaction(string) {}
func (Noop) RecordReactionCleared(bool) {}
func (Noop) RecordHTTPStatus(int) {}
