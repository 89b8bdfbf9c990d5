// Package metrics exposes prometheus collectors for the tippit service.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the service collectors behind one registry so tests can
// construct isolated instances.
type Metrics struct {
	registry *prometheus.Registry

	tipsRecorded         prometheus.Counter
	tipsRejected         *prometheus.CounterVec
	tipAmountUSD         prometheus.Counter
	verificationDuration prometheus.Histogram
	httpRequests         *prometheus.CounterVec
	httpDuration         *prometheus.HistogramVec
}

// New creates and registers all collectors.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		tipsRecorded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tippit_tips_recorded_total",
			Help: "Number of tips verified and recorded.",
		}),
		tipsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tippit_tips_rejected_total",
			Help: "Number of tip submissions rejected, by reason.",
		}, []string{"reason"}),
		tipAmountUSD: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tippit_tip_amount_usd_total",
			Help: "Cumulative USD value of recorded tips.",
		}),
		verificationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tippit_verification_duration_seconds",
			Help:    "Latency of on-chain transfer verification.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tippit_http_requests_total",
			Help: "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tippit_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}

	registry.MustRegister(
		m.tipsRecorded,
		m.tipsRejected,
		m.tipAmountUSD,
		m.verificationDuration,
		m.httpRequests,
		m.httpDuration,
	)
	return m
}

// TipRecorded counts a successful tip of the given USD amount.
func (m *Metrics) TipRecorded(amountUSD float64) {
	m.tipsRecorded.Inc()
	m.tipAmountUSD.Add(amountUSD)
}

// TipRejected counts a rejected tip by taxonomy reason.
func (m *Metrics) TipRejected(reason string) {
	m.tipsRejected.WithLabelValues(reason).Inc()
}

// ObserveVerification records the duration of one ledger verification.
func (m *Metrics) ObserveVerification(d time.Duration) {
	m.verificationDuration.Observe(d.Seconds())
}

// RecordHTTPRequest records one served request.
func (m *Metrics) RecordHTTPRequest(method, route, status string, d time.Duration) {
	m.httpRequests.WithLabelValues(method, route, status).Inc()
	m.httpDuration.WithLabelValues(route).Observe(d.Seconds())
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
