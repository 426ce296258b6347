package observability

import (
	"context"
	"database/sql"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/yungbote/unravel-backend/internal/platform/envutil"
	"github.com/yungbote/unravel-backend/internal/platform/logger"
)

const namespace = "unravel"

// Metrics is nil-safe: every method is a no-op on a nil receiver so callers
// never branch on whether metrics are enabled.
type Metrics struct {
	registry *prometheus.Registry

	apiRequests *prometheus.CounterVec
	apiLatency  *prometheus.HistogramVec
	apiInflight prometheus.Gauge

	chatTurns       *prometheus.CounterVec
	activeStreams   prometheus.Gauge
	firstFragment   prometheus.Histogram
	retrievalTotal  *prometheus.CounterVec
	retrievalLat    *prometheus.HistogramVec
	retrievalCache  *prometheus.CounterVec
	llmRequests     *prometheus.CounterVec
	llmLatency      *prometheus.HistogramVec
	cleanupFailures *prometheus.CounterVec
	redisUp         prometheus.Gauge

	vectorStoreOps    *prometheus.HistogramVec
	providerBootstrap *prometheus.CounterVec
}

var (
	initOnce sync.Once
	instance *Metrics
)

func Enabled() bool {
	return envutil.Bool("METRICS_ENABLED", false)
}

func Current() *Metrics {
	return instance
}

// Init builds the process metrics once. It returns nil when METRICS_ENABLED
// is off.
func Init(log *logger.Logger) *Metrics {
	if !Enabled() {
		return nil
	}
	initOnce.Do(func() {
		instance = New()
		if log != nil {
			log.Info("metrics initialized", "namespace", namespace)
		}
	})
	return instance
}

// New returns metrics on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		apiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "api", Name: "requests_total",
			Help: "Total API requests by method/route/status.",
		}, []string{"method", "route", "status"}),
		apiLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "api", Name: "request_duration_seconds",
			Help:    "API request latency in seconds by method/route/status.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"method", "route", "status"}),
		apiInflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "api", Name: "inflight_requests",
			Help: "In-flight API requests.",
		}),
		chatTurns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "chat", Name: "turns_total",
			Help: "Chat turns by outcome (canned, completed, aborted, stream_failed, generation_error, persistence_error).",
		}, []string{"outcome"}),
		activeStreams: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "chat", Name: "active_streams",
			Help: "Chat responses currently streaming.",
		}),
		firstFragment: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "chat", Name: "first_fragment_seconds",
			Help:    "Time from turn start to the first streamed fragment.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30},
		}),
		retrievalTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "retrieval", Name: "requests_total",
			Help: "Retrieval attempts by provider and outcome (ok, empty, error, timeout).",
		}, []string{"provider", "outcome"}),
		retrievalLat: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "retrieval", Name: "duration_seconds",
			Help:    "Retrieval latency in seconds by provider.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"provider"}),
		retrievalCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "retrieval", Name: "cache_total",
			Help: "Retrieval cache lookups by result (hit, miss, error).",
		}, []string{"result"}),
		llmRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "llm", Name: "requests_total",
			Help: "LLM stream requests by model and status.",
		}, []string{"model", "status"}),
		llmLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "llm", Name: "stream_duration_seconds",
			Help:    "Full LLM stream duration in seconds by model.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 40, 80, 160},
		}, []string{"model"}),
		cleanupFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "cleanup", Name: "failures_total",
			Help: "Best-effort cleanup steps that failed, by step.",
		}, []string{"step"}),
		redisUp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "redis", Name: "up",
			Help: "1 when the last redis ping succeeded.",
		}),
		vectorStoreOps: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "vector_store", Name: "operation_duration_seconds",
			Help:    "Vector store calls by provider/operation/status.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		}, []string{"provider", "operation", "status"}),
		providerBootstrap: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "provider", Name: "bootstrap_total",
			Help: "Startup provider selection by kind/provider/status/code.",
		}, []string{"kind", "provider", "status", "code"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.apiRequests, m.apiLatency, m.apiInflight,
		m.chatTurns, m.activeStreams, m.firstFragment,
		m.retrievalTotal, m.retrievalLat, m.retrievalCache,
		m.llmRequests, m.llmLatency,
		m.cleanupFailures, m.redisUp,
		m.vectorStoreOps, m.providerBootstrap,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveAPI(method, route string, status int, dur time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "UNKNOWN"
	}
	if route == "" {
		route = "unknown"
	}
	code := strconv.Itoa(status)
	m.apiRequests.WithLabelValues(method, route, code).Inc()
	m.apiLatency.WithLabelValues(method, route, code).Observe(dur.Seconds())
}

func (m *Metrics) APIInflightInc() {
	if m == nil {
		return
	}
	m.apiInflight.Inc()
}

func (m *Metrics) APIInflightDec() {
	if m == nil {
		return
	}
	m.apiInflight.Dec()
}

func (m *Metrics) IncChatTurn(outcome string) {
	if m == nil {
		return
	}
	m.chatTurns.WithLabelValues(outcome).Inc()
}

func (m *Metrics) StreamStarted() {
	if m == nil {
		return
	}
	m.activeStreams.Inc()
}

func (m *Metrics) StreamFinished() {
	if m == nil {
		return
	}
	m.activeStreams.Dec()
}

func (m *Metrics) ObserveFirstFragment(dur time.Duration) {
	if m == nil {
		return
	}
	m.firstFragment.Observe(dur.Seconds())
}

func (m *Metrics) ObserveRetrieval(provider, outcome string, dur time.Duration) {
	if m == nil {
		return
	}
	m.retrievalTotal.WithLabelValues(provider, outcome).Inc()
	m.retrievalLat.WithLabelValues(provider).Observe(dur.Seconds())
}

func (m *Metrics) IncRetrievalCache(result string) {
	if m == nil {
		return
	}
	m.retrievalCache.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveLLMStream(model, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.llmRequests.WithLabelValues(model, status).Inc()
	m.llmLatency.WithLabelValues(model).Observe(dur.Seconds())
}

func (m *Metrics) ObserveVectorStoreOperation(provider, operation, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.vectorStoreOps.WithLabelValues(provider, operation, status).Observe(dur.Seconds())
}

// ObserveProviderBootstrap records how a backing provider came up at startup.
// kind is "storage" or "retrieval".
func (m *Metrics) ObserveProviderBootstrap(kind, provider, status, code string) {
	if m == nil {
		return
	}
	m.providerBootstrap.WithLabelValues(kind, provider, status, code).Inc()
}

func (m *Metrics) IncCleanupFailure(step string) {
	if m == nil {
		return
	}
	m.cleanupFailures.WithLabelValues(step).Inc()
}

// RegisterDB exports connection pool stats for the given pool.
func (m *Metrics) RegisterDB(db *sql.DB, name string) {
	if m == nil || db == nil {
		return
	}
	m.registry.MustRegister(collectors.NewDBStatsCollector(db, name))
}

func scrapeInterval() time.Duration {
	d := envutil.Duration("METRICS_SCRAPE_INTERVAL", 15*time.Second)
	if d < time.Second {
		return time.Second
	}
	return d
}

// StartRedisCollector pings rdb on an interval until ctx is done.
func (m *Metrics) StartRedisCollector(ctx context.Context, log *logger.Logger, rdb redis.UniversalClient) {
	if m == nil || rdb == nil {
		return
	}
	interval := scrapeInterval()
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := rdb.Ping(ctx).Err(); err != nil {
					m.redisUp.Set(0)
					if log != nil {
						log.Warn("metrics: redis ping failed", "error", err)
					}
					continue
				}
				m.redisUp.Set(1)
			}
		}
	}()
}
