package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tricket/tricket-integrations/internal/pkg/apperror"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tricket_http_requests_total",
			Help: "Total number of inbound HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tricket_http_request_duration_seconds",
			Help:    "Duration of inbound HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	GatewayCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tricket_gateway_calls_total",
			Help: "Outbound calls to external services by outcome (ok, upstream_error, transport_error).",
		},
		[]string{"service", "outcome"},
	)

	WebhookDeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tricket_webhook_deliveries_total",
			Help: "Inbound webhook deliveries by source and result.",
		},
		[]string{"source", "result"},
	)

	PipelineItemsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tricket_pipeline_items_total",
			Help: "Product enrichment items by stage and result.",
		},
		[]string{"stage", "result"},
	)

	ReconciledRowsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tricket_reconciled_rows_total",
			Help: "Rows reconciled into the local mirror by entity and action.",
		},
		[]string{"entity", "action"},
	)
)

var registerOnce sync.Once

// MustRegister registers every collector with the default registry once.
func MustRegister() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			HTTPRequestsTotal,
			HTTPRequestDurationSeconds,
			GatewayCallsTotal,
			WebhookDeliveriesTotal,
			PipelineItemsTotal,
			ReconciledRowsTotal,
		)
	})
}

// Middleware records request counts and latency per matched route.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		route := c.Route().Path
		status := c.Response().StatusCode()
		if err != nil {
			if appErr, ok := apperror.As(err); ok {
				status = appErr.HTTPStatus()
			} else if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else if status < 400 {
				status = fiber.StatusInternalServerError
			}
		}
		HTTPRequestsTotal.WithLabelValues(c.Method(), route, strconv.Itoa(status)).Inc()
		HTTPRequestDurationSeconds.WithLabelValues(c.Method(), route).Observe(time.Since(start).Seconds())
		return err
	}
}
