package middleware

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	activeRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_active_requests",
			Help: "Number of in-flight HTTP requests",
		},
	)

	messagesGenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messages_generated_total",
			Help: "Total number of message generation attempts",
		},
		[]string{"outcome"},
	)

	generationTokens = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "generation_tokens_total",
			Help: "Total number of language model tokens reported as used",
		},
	)

	bulkRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bulk_generation_leads_total",
			Help: "Leads processed by bulk generation runs",
		},
		[]string{"outcome"},
	)

	rateLimited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limited_requests_total",
			Help: "Requests rejected by the rate limiter",
		},
		[]string{"path"},
	)
)

// Metrics records request counts and latency per route template.
func Metrics() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		activeRequests.Inc()
		defer activeRequests.Dec()

		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			status = fiber.StatusInternalServerError
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			}
		}

		path := c.Route().Path
		httpRequestsTotal.WithLabelValues(c.Method(), path, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(c.Method(), path).Observe(time.Since(start).Seconds())
		return err
	}
}

// MetricsHandler exposes the default prometheus registry.
func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}

// RecordGeneration counts one generation attempt. outcome is saved, unsaved or failed.
func RecordGeneration(outcome string, tokens int) {
	messagesGenerated.WithLabelValues(outcome).Inc()
	if tokens > 0 {
		generationTokens.Add(float64(tokens))
	}
}

func RecordBulkResult(success bool) {
	if success {
		bulkRuns.WithLabelValues("success").Inc()
		return
	}
	bulkRuns.WithLabelValues("failure").Inc()
}

func RecordRateLimited(path string) {
	rateLimited.WithLabelValues(path).Inc()
}
