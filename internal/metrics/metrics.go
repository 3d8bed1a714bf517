// Package metrics exposes Prometheus counters for payments, pinning and HTTP traffic.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeCompleted   = "completed"
	OutcomeFailed      = "failed"
	OutcomePending     = "pending"
	OutcomeNotRecorded = "not_recorded"
	OutcomeSideEffect  = "side_effect_failed"
	OutcomeUploaded    = "uploaded"
	OutcomeRejected    = "rejected"
)

type Metrics struct {
	payments     *prometheus.CounterVec
	paymentUSDC  *prometheus.CounterVec
	pins         *prometheus.CounterVec
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// New registers the collectors on registerer (the default registerer when nil).
func New(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		payments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "campusconnect_payments_total",
			Help: "Payments processed by purpose and outcome.",
		}, []string{"purpose", "outcome"}),
		paymentUSDC: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "campusconnect_payments_usdc_total",
			Help: "USDC amount of completed payments by purpose.",
		}, []string{"purpose"}),
		pins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "campusconnect_ipfs_pins_total",
			Help: "Files submitted for pinning by outcome.",
		}, []string{"outcome"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "campusconnect_http_requests_total",
			Help: "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "campusconnect_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}
	registerer.MustRegister(m.payments, m.paymentUSDC, m.pins, m.httpRequests, m.httpDuration)
	return m
}

func (m *Metrics) PaymentOutcome(purpose, outcome string) {
	if m == nil {
		return
	}
	m.payments.WithLabelValues(purpose, outcome).Inc()
}

func (m *Metrics) PaymentAmount(purpose string, amount float64) {
	if m == nil {
		return
	}
	m.paymentUSDC.WithLabelValues(purpose).Add(amount)
}

func (m *Metrics) PinOutcome(outcome string) {
	if m == nil {
		return
	}
	m.pins.WithLabelValues(outcome).Inc()
}

// Middleware records request counts and latency keyed by the route pattern.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.httpRequests.WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}
