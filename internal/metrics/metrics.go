package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors exported by the server.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	AuthAttemptsTotal   *prometheus.CounterVec
	RateLimitedTotal    prometheus.Counter
	BackupsTotal        *prometheus.CounterVec
}

// New creates the collectors and registers them on registry.
// A nil registry gets a fresh one with the Go and process collectors attached.
func New(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	m := &Metrics{
		registry: registry,
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "useradmin_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "useradmin_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		AuthAttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "useradmin_auth_attempts_total",
				Help: "Registration and login attempts by outcome",
			},
			[]string{"operation", "result"},
		),
		RateLimitedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "useradmin_rate_limited_total",
				Help: "Requests rejected by the auth rate limiter",
			},
		),
		BackupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "useradmin_backups_total",
				Help: "Database backups by result",
			},
			[]string{"result"},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.AuthAttemptsTotal,
		m.RateLimitedTotal,
		m.BackupsTotal,
	)
	return m
}

// Middleware records request count and latency keyed by the matched route.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		m.HTTPRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// RecordAuthAttempt counts a register or login outcome.
func (m *Metrics) RecordAuthAttempt(operation, result string) {
	m.AuthAttemptsTotal.WithLabelValues(operation, result).Inc()
}

func (m *Metrics) RecordRateLimited() {
	m.RateLimitedTotal.Inc()
}

func (m *Metrics) RecordBackup(err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.BackupsTotal.WithLabelValues(result).Inc()
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
