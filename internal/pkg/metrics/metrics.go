package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mapcam",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "mapcam",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"method", "path"})

	httpResponseSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "mapcam",
		Subsystem: "http",
		Name:      "response_size_bytes",
		Help:      "HTTP response size in bytes",
		Buckets:   prometheus.ExponentialBuckets(100, 10, 6),
	}, []string{"method", "path"})

	// Camera metrics
	AnimationsStarted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mapcam",
		Subsystem: "camera",
		Name:      "animations_started_total",
		Help:      "Total camera transitions started",
	}, []string{"kind"})

	AnimationsInterrupted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mapcam",
		Subsystem: "camera",
		Name:      "animations_interrupted_total",
		Help:      "Camera transitions stopped before reaching their target",
	}, []string{"kind"})

	AnimationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "mapcam",
		Subsystem: "camera",
		Name:      "animation_duration_seconds",
		Help:      "Time from movestart to moveend of camera transitions",
		Buckets:   []float64{0, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	}, []string{"kind"})

	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "mapcam",
		Subsystem: "camera",
		Name:      "active_sessions",
		Help:      "Current number of camera sessions",
	})

	// Dispatch metrics
	PooledWorkersAllocated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mapcam",
		Subsystem: "dispatch",
		Name:      "pooled_workers_allocated_total",
		Help:      "Total logical workers allocated, by body",
	}, []string{"body"})

	DispatchMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mapcam",
		Subsystem: "dispatch",
		Name:      "messages_total",
		Help:      "Messages exchanged with background contexts",
	}, []string{"direction"})

	DispatchDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mapcam",
		Subsystem: "dispatch",
		Name:      "messages_dropped_total",
		Help:      "Messages addressed to a logical worker nobody owns",
	}, []string{"side"})

	// Tile pipeline metrics
	TilesRequested = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "mapcam",
		Subsystem: "tiles",
		Name:      "requested_total",
		Help:      "Tiles requested from the tile loader",
	})

	TilesLoaded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mapcam",
		Subsystem: "tiles",
		Name:      "loaded_total",
		Help:      "Tile loader results",
	}, []string{"result"})

	TileBytes = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "mapcam",
		Subsystem: "tiles",
		Name:      "size_bytes",
		Help:      "Size of loaded tiles",
		Buckets:   prometheus.ExponentialBuckets(256, 4, 8),
	})

	ActiveWebSockets = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "mapcam",
		Subsystem: "ws",
		Name:      "active_connections",
		Help:      "Current number of active WebSocket connections",
	})

	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mapcam",
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Total cache hits",
	}, []string{"operation"})

	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mapcam",
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Total cache misses",
	}, []string{"operation"})

	// Database pool metrics
	DBPoolConnsOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "mapcam",
		Subsystem: "db",
		Name:      "pool_conns_open",
		Help:      "Total connections open in the database pool",
	})

	DBPoolConnsAcquired = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "mapcam",
		Subsystem: "db",
		Name:      "pool_conns_acquired",
		Help:      "Connections currently acquired from the database pool",
	})

	DBPoolConnsIdle = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "mapcam",
		Subsystem: "db",
		Name:      "pool_conns_idle",
		Help:      "Idle connections in the database pool",
	})
)

// Middleware records request metrics.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Response().StatusCode())
		path := c.Route().Path
		if path == "" {
			path = c.Path()
		}
		method := c.Method()

		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpRequestDuration.WithLabelValues(method, path).Observe(duration)
		httpResponseSize.WithLabelValues(method, path).Observe(float64(len(c.Response().Body())))

		return err
	}
}

// Handler returns a Fiber handler serving Prometheus /metrics endpoint.
func Handler() fiber.Handler {
	handler := promhttp.Handler()
	return func(c *fiber.Ctx) error {
		fasthttpadaptor.NewFastHTTPHandler(handler)(c.Context())
		return nil
	}
}

// poolStat is the part of *pgxpool.Stat the pool gauges read.
type poolStat interface {
	AcquiredConns() int32
	IdleConns() int32
	TotalConns() int32
}

// UpdateDBPoolMetrics copies pool stats into the gauges. stat is normally a
// *pgxpool.Stat; anything else is ignored.
func UpdateDBPoolMetrics(stat interface{}) {
	s, ok := stat.(poolStat)
	if !ok {
		return
	}
	DBPoolConnsAcquired.Set(float64(s.AcquiredConns()))
	DBPoolConnsIdle.Set(float64(s.IdleConns()))
	DBPoolConnsOpen.Set(float64(s.TotalConns()))
}
