package observability

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/yungbote/cms-backend/internal/platform/logger"
)

// Metrics holds the service's Prometheus collectors. All methods are safe on a
// nil receiver so callers never branch on whether metrics are enabled.
type Metrics struct {
	registry *prometheus.Registry

	apiRequests *prometheus.CounterVec
	apiLatency  *prometheus.HistogramVec
	apiInflight prometheus.Gauge

	aggregateOps       *prometheus.CounterVec
	aggregateLatency   *prometheus.HistogramVec
	aggregateConflicts *prometheus.CounterVec
	aggregateRetries   *prometheus.CounterVec

	cacheLookups *prometheus.CounterVec

	treeBuilds    *prometheus.CounterVec
	treeBuildTime *prometheus.HistogramVec
	treeNodes     *prometheus.GaugeVec

	routeCompiles    *prometheus.CounterVec
	routeTableRoutes prometheus.Gauge

	cascadeSteps     *prometheus.CounterVec
	cascadeAffected  prometheus.Histogram
	cascadeDuration  *prometheus.HistogramVec
	reservedLookups  *prometheus.CounterVec
	dbStats          *prometheus.GaugeVec
	redisUp          prometheus.Gauge
	redisPingSeconds prometheus.Gauge
}

// NewMetrics registers every collector on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,

		apiRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cms_api_requests_total",
			Help: "Total API requests by method/route/status.",
		}, []string{"method", "route", "status"}),
		apiLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cms_api_request_duration_seconds",
			Help:    "API request latency in seconds by method/route/status.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		}, []string{"method", "route", "status"}),
		apiInflight: f.NewGauge(prometheus.GaugeOpts{
			Name: "cms_api_inflight_requests",
			Help: "In-flight API requests.",
		}),

		aggregateOps: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cms_aggregate_operations_total",
			Help: "Aggregate write operations by operation and status.",
		}, []string{"operation", "status"}),
		aggregateLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cms_aggregate_operation_duration_seconds",
			Help:    "Aggregate write latency including the transaction.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"operation"}),
		aggregateConflicts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cms_aggregate_conflicts_total",
			Help: "Aggregate writes rejected with a conflict.",
		}, []string{"operation"}),
		aggregateRetries: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cms_aggregate_retryable_total",
			Help: "Aggregate writes that failed with a retryable error.",
		}, []string{"operation"}),

		cacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cms_cache_lookups_total",
			Help: "Cache lookups by key family and result.",
		}, []string{"family", "result"}),

		treeBuilds: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cms_route_tree_builds_total",
			Help: "Route tree assemblies from storage by variant.",
		}, []string{"variant"}),
		treeBuildTime: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cms_route_tree_build_duration_seconds",
			Help:    "Time to load and assemble the route tree.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"variant"}),
		treeNodes: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cms_route_tree_nodes",
			Help: "Nodes in the last assembled route tree.",
		}, []string{"variant"}),

		routeCompiles: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cms_route_table_compiles_total",
			Help: "Route table compilations by status.",
		}, []string{"status"}),
		routeTableRoutes: f.NewGauge(prometheus.GaugeOpts{
			Name: "cms_route_table_routes",
			Help: "Routes mounted by the active route table.",
		}),

		cascadeSteps: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cms_blueprint_cascade_steps_total",
			Help: "Blueprint cascade steps by outcome (rematerialized, guarded, failed).",
		}, []string{"outcome"}),
		cascadeAffected: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "cms_blueprint_cascade_affected_blueprints",
			Help:    "Blueprints re-materialized per cascade.",
			Buckets: []float64{0, 1, 2, 4, 8, 16, 32, 64},
		}),
		cascadeDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cms_blueprint_cascade_duration_seconds",
			Help:    "Wall time of one cascade by dispatcher.",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
		}, []string{"dispatcher"}),
		reservedLookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cms_reserved_path_checks_total",
			Help: "Reserved path checks by kind and result.",
		}, []string{"kind", "reserved"}),

		dbStats: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cms_db_pool_stats",
			Help: "database/sql pool statistics.",
		}, []string{"stat"}),
		redisUp: f.NewGauge(prometheus.GaugeOpts{
			Name: "cms_redis_up",
			Help: "1 when the last Redis ping succeeded.",
		}),
		redisPingSeconds: f.NewGauge(prometheus.GaugeOpts{
			Name: "cms_redis_ping_seconds",
			Help: "Latency of the last Redis ping.",
		}),
	}
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) StartServer(ctx context.Context, log *logger.Logger, addr string) {
	if m == nil {
		return
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = srv.Shutdown(shutdownCtx)
		cancel()
	}()
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if log != nil {
				log.Error("metrics server failed", "error", err, "addr", addr)
			}
		}
	}()
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "UNKNOWN"
	}
	if route == "" {
		route = "unknown"
	}
	if status == "" {
		status = "0"
	}
	m.apiRequests.WithLabelValues(method, route, status).Inc()
	m.apiLatency.WithLabelValues(method, route, status).Observe(dur.Seconds())
}

func (m *Metrics) ApiInflightInc() {
	if m == nil {
		return
	}
	m.apiInflight.Inc()
}

func (m *Metrics) ApiInflightDec() {
	if m == nil {
		return
	}
	m.apiInflight.Dec()
}

func (m *Metrics) ObserveAggregateOperation(op, status string, dur time.Duration) {
	if m == nil {
		return
	}
	if op == "" {
		op = "unknown"
	}
	if status == "" {
		status = "unknown"
	}
	m.aggregateOps.WithLabelValues(op, status).Inc()
	m.aggregateLatency.WithLabelValues(op).Observe(dur.Seconds())
}

func (m *Metrics) IncAggregateConflict(op string) {
	if m == nil {
		return
	}
	m.aggregateConflicts.WithLabelValues(op).Inc()
}

func (m *Metrics) IncAggregateRetry(op string) {
	if m == nil {
		return
	}
	m.aggregateRetries.WithLabelValues(op).Inc()
}

// CacheHit and CacheMiss satisfy cache.Observer. Keys are reduced to their
// family (text before the first ':') to bound label cardinality.
func (m *Metrics) CacheHit(key string) {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues(keyFamily(key), "hit").Inc()
}

func (m *Metrics) CacheMiss(key string) {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues(keyFamily(key), "miss").Inc()
}

func keyFamily(key string) string {
	key = strings.TrimSpace(key)
	if i := strings.IndexByte(key, ':'); i > 0 {
		return key[:i]
	}
	if key == "" {
		return "unknown"
	}
	return key
}

func (m *Metrics) ObserveTreeBuild(variant string, nodes int, dur time.Duration) {
	if m == nil {
		return
	}
	m.treeBuilds.WithLabelValues(variant).Inc()
	m.treeBuildTime.WithLabelValues(variant).Observe(dur.Seconds())
	m.treeNodes.WithLabelValues(variant).Set(float64(nodes))
}

func (m *Metrics) ObserveRouteCompile(status string, routes int) {
	if m == nil {
		return
	}
	m.routeCompiles.WithLabelValues(status).Inc()
	if status == "success" {
		m.routeTableRoutes.Set(float64(routes))
	}
}

func (m *Metrics) IncCascadeStep(outcome string) {
	if m == nil {
		return
	}
	m.cascadeSteps.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveCascade(dispatcher string, affected int, dur time.Duration) {
	if m == nil {
		return
	}
	m.cascadeAffected.Observe(float64(affected))
	m.cascadeDuration.WithLabelValues(dispatcher).Observe(dur.Seconds())
}

func (m *Metrics) IncReservedCheck(kind string, reserved bool) {
	if m == nil {
		return
	}
	v := "false"
	if reserved {
		v = "true"
	}
	m.reservedLookups.WithLabelValues(kind, v).Inc()
}

func (m *Metrics) StartDBCollector(ctx context.Context, log *logger.Logger, db *gorm.DB, interval time.Duration) {
	if m == nil || db == nil {
		return
	}
	if interval <= 0 {
		interval = 10 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sqlDB, err := db.DB()
				if err != nil {
					if log != nil {
						log.Warn("metrics: db stats unavailable", "error", err)
					}
					continue
				}
				stats := sqlDB.Stats()
				m.dbStats.WithLabelValues("open_connections").Set(float64(stats.OpenConnections))
				m.dbStats.WithLabelValues("in_use").Set(float64(stats.InUse))
				m.dbStats.WithLabelValues("idle").Set(float64(stats.Idle))
				m.dbStats.WithLabelValues("wait_count").Set(float64(stats.WaitCount))
				m.dbStats.WithLabelValues("wait_duration_seconds").Set(stats.WaitDuration.Seconds())
				m.dbStats.WithLabelValues("max_open_connections").Set(float64(stats.MaxOpenConnections))
			}
		}
	}()
}

// StartRedisCollector pings through the given client; it does not close it.
func (m *Metrics) StartRedisCollector(ctx context.Context, log *logger.Logger, rdb redis.UniversalClient, interval time.Duration) {
	if m == nil || rdb == nil {
		return
	}
	if interval <= 0 {
		interval = 10 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				start := time.Now()
				if err := rdb.Ping(ctx).Err(); err != nil {
					m.redisUp.Set(0)
					if log != nil {
						log.Warn("metrics: redis ping failed", "error", err)
					}
					continue
				}
				m.redisUp.Set(1)
				m.redisPingSeconds.Set(time.Since(start).Seconds())
			}
		}
	}()
}
