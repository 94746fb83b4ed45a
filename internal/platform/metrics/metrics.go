// Package metrics はPrometheusメトリクスの収集とエクスポートを提供します。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"photo_backend/internal/feature/sceneinsight/usecase"
)

// Metrics はHTTPリクエストと画像解析パイプラインのメトリクスを保持します。
type Metrics struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	stageDuration   *prometheus.HistogramVec
	retries         prometheus.Counter
}

// MetricsがStageObserverを実装していることをコンパイル時に検証します。
var _ usecase.StageObserver = (*Metrics)(nil)

// New は専用のレジストリに登録されたMetricsを生成します。
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "path", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "scene_pipeline_stage_duration_seconds",
			Help:    "Duration of each image insight pipeline stage in seconds.",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"stage", "outcome"}),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scene_generation_retries_total",
			Help: "Total number of suggestion generation retries.",
		}),
	}
	reg.MustRegister(
		m.requests, m.requestDuration, m.stageDuration, m.retries,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Middleware はリクエスト数とレイテンシを記録するGinミドルウェアを返します。
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		// 未登録パスでラベルが増え続けないようにルートのパターンを使う
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		method := c.Request.Method
		m.requests.WithLabelValues(method, path, strconv.Itoa(c.Writer.Status())).Inc()
		m.requestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	}
}

// ObserveStage はパイプライン段階の所要時間を記録します。
func (m *Metrics) ObserveStage(stage, outcome string, d time.Duration) {
	m.stageDuration.WithLabelValues(stage, outcome).Observe(d.Seconds())
}

// ObserveRetry はアドバイス生成の再試行回数を加算します。
func (m *Metrics) ObserveRetry() {
	m.retries.Inc()
}

// Handler は /metrics 用のHTTPハンドラーを返します。
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
