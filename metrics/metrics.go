// Package metrics 定义服务的 Prometheus 指标，使用独立 Registry。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rushteam/recipekit/pipeline"
)

const namespace = "recipekit"

type Metrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	recommendTotal    *prometheus.CounterVec
	recommendDuration prometheus.Histogram
	recommendResults  prometheus.Histogram
	nodeDuration      *prometheus.HistogramVec
	cacheTotal        *prometheus.CounterVec

	catalogRecipes  prometheus.Gauge
	catalogClusters prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		}, []string{"method", "route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		requestInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
		}),
		recommendTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "recommend",
			Name:      "requests_total",
			Help:      "Recommendations served, by outcome.",
		}, []string{"outcome"}),
		recommendDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "recommend",
			Name:      "duration_seconds",
			Help:      "Recommendation latency in seconds.",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		}),
		recommendResults: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "recommend",
			Name:      "results",
			Help:      "Number of recipes returned per recommendation.",
			Buckets:   []float64{0, 1, 5, 10, 20, 50, 100},
		}),
		nodeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "node_duration_seconds",
			Help:      "Pipeline node latency in seconds.",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5},
		}, []string{"node", "kind", "error"}),
		cacheTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Result cache lookups, by result.",
		}, []string{"result"}),
		catalogRecipes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "catalog",
			Name:      "recipes",
			Help:      "Recipes in the loaded catalog.",
		}),
		catalogClusters: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "catalog",
			Name:      "clusters",
			Help:      "Non-empty clusters in the loaded catalog.",
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requestTotal, m.requestDuration, m.requestInFlight,
		m.recommendTotal, m.recommendDuration, m.recommendResults,
		m.nodeDuration, m.cacheTotal,
		m.catalogRecipes, m.catalogClusters,
	)
	return m
}

// Registry 返回底层 Registry。
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler 返回 /metrics 处理器。
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) RequestStarted()  { m.requestInFlight.Inc() }
func (m *Metrics) RequestFinished() { m.requestInFlight.Dec() }

// ObserveHTTP 记录一次 HTTP 请求。route 应为路由模板而非原始路径。
func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	m.requestTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// ObserveRecommend 记录一次推荐；outcome 如 ok / not_found / invalid / error。
func (m *Metrics) ObserveRecommend(outcome string, d time.Duration, results int) {
	m.recommendTotal.WithLabelValues(outcome).Inc()
	m.recommendDuration.Observe(d.Seconds())
	if outcome == "ok" {
		m.recommendResults.Observe(float64(results))
	}
}

func (m *Metrics) CacheHit()  { m.cacheTotal.WithLabelValues("hit").Inc() }
func (m *Metrics) CacheMiss() { m.cacheTotal.WithLabelValues("miss").Inc() }

// SetCatalog 更新目录规模。
func (m *Metrics) SetCatalog(recipes, clusters int) {
	m.catalogRecipes.Set(float64(recipes))
	m.catalogClusters.Set(float64(clusters))
}

// PipelineObserver 返回记录各 Node 耗时的 pipeline.Observer。
func (m *Metrics) PipelineObserver() pipeline.Observer {
	return func(node pipeline.Node, _, _ int, d time.Duration, err error) {
		m.nodeDuration.WithLabelValues(node.Name(), string(node.Kind()), strconv.FormatBool(err != nil)).Observe(d.Seconds())
	}
}
