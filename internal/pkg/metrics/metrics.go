// Package metrics exposes business and HTTP counters in Prometheus format.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "backoffice"

// Collector owns a private registry. All recording methods are no-ops on a nil Collector.
type Collector struct {
	registry *prometheus.Registry

	PaymentsRecorded    *prometheus.CounterVec
	OverpaymentsSeen    *prometheus.CounterVec
	CyclesGenerated     *prometheus.CounterVec
	ProofFailures       prometheus.Counter
	LeadsCaptured       prometheus.Counter
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

func New() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		registry: reg,
		PaymentsRecorded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payments_recorded_total",
			Help:      "Payments committed to a billing cycle",
		}, []string{"kind", "carried_forward"}),
		OverpaymentsSeen: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "overpayments_detected_total",
			Help:      "Submissions that exceeded the active cycle balance",
		}, []string{"kind"}),
		CyclesGenerated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_generated_total",
			Help:      "Billing cycles created by catch-up generation",
		}, []string{"kind"}),
		ProofFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "proof_upload_failures_total",
			Help:      "Proof uploads that failed after the payment was stored",
		}),
		LeadsCaptured: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "leads_captured_total",
			Help:      "Contact form leads stored",
		}),
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status_code"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	reg.MustRegister(
		c.PaymentsRecorded,
		c.OverpaymentsSeen,
		c.CyclesGenerated,
		c.ProofFailures,
		c.LeadsCaptured,
		c.HTTPRequestsTotal,
		c.HTTPRequestDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) PaymentRecorded(kind string, carriedForward bool) {
	if c == nil {
		return
	}
	c.PaymentsRecorded.WithLabelValues(kind, strconv.FormatBool(carriedForward)).Inc()
}

func (c *Collector) OverpaymentDetected(kind string) {
	if c == nil {
		return
	}
	c.OverpaymentsSeen.WithLabelValues(kind).Inc()
}

func (c *Collector) CyclesCreated(kind string, n int) {
	if c == nil || n <= 0 {
		return
	}
	c.CyclesGenerated.WithLabelValues(kind).Add(float64(n))
}

func (c *Collector) ProofFailed() {
	if c == nil {
		return
	}
	c.ProofFailures.Inc()
}

func (c *Collector) LeadCaptured() {
	if c == nil {
		return
	}
	c.LeadsCaptured.Inc()
}

// Middleware records request counts and latency per matched route
func (c *Collector) Middleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		start := time.Now()
		err := ctx.Next()

		status := ctx.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			}
		}
		route := ctx.Route().Path
		c.HTTPRequestsTotal.WithLabelValues(ctx.Method(), route, strconv.Itoa(status)).Inc()
		c.HTTPRequestDuration.WithLabelValues(ctx.Method(), route).Observe(time.Since(start).Seconds())
		return err
	}
}
