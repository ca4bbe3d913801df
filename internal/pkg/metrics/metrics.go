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
		Namespace: "geoplotter",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "geoplotter",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"method", "path"})

	httpResponseSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "geoplotter",
		Subsystem: "http",
		Name:      "response_size_bytes",
		Help:      "HTTP response size in bytes",
		Buckets:   prometheus.ExponentialBuckets(100, 10, 6),
	}, []string{"method", "path"})

	// Pipeline metrics
	PipelineRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "geoplotter",
		Subsystem: "pipeline",
		Name:      "runs_total",
		Help:      "Total pipeline runs by outcome",
	}, []string{"outcome"})

	PipelineDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "geoplotter",
		Subsystem: "pipeline",
		Name:      "run_duration_seconds",
		Help:      "Duration of a full ingest, aggregate and render run",
		Buckets:   []float64{0.005, 0.025, 0.1, 0.5, 1, 2, 5, 10, 30},
	})

	CodesDecoded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "geoplotter",
		Subsystem: "pipeline",
		Name:      "codes_decoded_total",
		Help:      "Total geohash occurrences decoded",
	})

	DecodeErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "geoplotter",
		Subsystem: "pipeline",
		Name:      "decode_errors_total",
		Help:      "Total geohash codes dropped as invalid",
	})

	SourceFetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "geoplotter",
		Subsystem: "source",
		Name:      "fetch_duration_seconds",
		Help:      "Duration of remote source fetches",
		Buckets:   []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
	})

	SourceFetchErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "geoplotter",
		Subsystem: "source",
		Name:      "fetch_errors_total",
		Help:      "Total remote source fetch failures",
	})

	SurfaceUpserts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "geoplotter",
		Subsystem: "surface",
		Name:      "upserts_total",
		Help:      "Total source upserts by operation (create, update)",
	}, []string{"op"})

	ActiveViews = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "geoplotter",
		Subsystem: "views",
		Name:      "active",
		Help:      "Current number of mounted views",
	})

	ActiveWebSockets = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "geoplotter",
		Subsystem: "ws",
		Name:      "active_connections",
		Help:      "Current number of active WebSocket connections",
	})

	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "geoplotter",
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Total cache hits",
	}, []string{"operation"})

	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "geoplotter",
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Total cache misses",
	}, []string{"operation"})
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
