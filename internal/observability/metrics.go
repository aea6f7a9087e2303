package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application collectors exposed on /metrics.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "lumen",
		Subsystem: "http",
		Name:      "inflight_requests",
		Help:      "Current number of in-flight HTTP requests.",
	})

	httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lumen",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of HTTP requests handled.",
	}, []string{"method", "route", "status"})

	httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "lumen",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Duration of HTTP requests.",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
	}, []string{"method", "route"})

	applicationTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lumen",
		Subsystem: "applications",
		Name:      "transitions_total",
		Help:      "Approval chain transitions by role, action and resulting status.",
	}, []string{"role", "action", "status"})

	cleanupDeleted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lumen",
		Subsystem: "cleanup",
		Name:      "objects_deleted_total",
		Help:      "Storage objects removed by retention cleanup and purge.",
	}, []string{"job", "bucket"})

	wsSubscriptions = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "lumen",
		Subsystem: "ws",
		Name:      "subscriptions",
		Help:      "Open websocket channel subscriptions.",
	})

	outboxProcessed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lumen",
		Subsystem: "outbox",
		Name:      "jobs_total",
		Help:      "Outbox jobs processed by outcome.",
	}, []string{"topic", "outcome"})
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		applicationTransitions,
		cleanupDeleted,
		wsSubscriptions,
		outboxProcessed,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// GinMetrics records request counts and latency keyed by the matched route
// template so path parameters do not explode label cardinality.
func GinMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}
		start := time.Now()
		httpInFlight.Inc()
		defer httpInFlight.Dec()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		httpRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		httpDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

func RecordTransition(role, action, status string) {
	applicationTransitions.WithLabelValues(role, action, status).Inc()
}

func RecordDeleted(job, bucket string, n int) {
	if n <= 0 {
		return
	}
	cleanupDeleted.WithLabelValues(job, bucket).Add(float64(n))
}

func RecordOutbox(topic, outcome string) {
	outboxProcessed.WithLabelValues(topic, outcome).Inc()
}

func AddSubscriptions(delta int) {
	wsSubscriptions.Add(float64(delta))
}
