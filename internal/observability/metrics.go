package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Sign-in outcomes.
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
)

// Metrics provides Prometheus counters for the service. All methods are
// safe on a nil receiver.
type Metrics struct {
	registry        *prometheus.Registry
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	errorsTotal     *prometheus.CounterVec
	signInsTotal    *prometheus.CounterVec
	tokenRejections *prometheus.CounterVec
	accessDenials   *prometheus.CounterVec
}

// NewMetrics creates a private registry with Go runtime collectors and the
// service metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		registry: registry,
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "user_service_http_requests_total",
			Help: "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "user_service_http_request_duration_seconds",
			Help:    "HTTP request latency by route and method.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
		errorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "user_service_http_errors_total",
			Help: "HTTP error responses by route, method and error code.",
		}, []string{"route", "method", "code"}),
		signInsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "user_service_sign_ins_total",
			Help: "Password sign-in attempts by outcome.",
		}, []string{"outcome"}),
		tokenRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "user_service_token_rejections_total",
			Help: "Bearer tokens rejected during identity resolution, by reason.",
		}, []string{"reason"}),
		accessDenials: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "user_service_access_denials_total",
			Help: "Authorization decisions that denied access, by gate.",
		}, []string{"gate"}),
	}

	registry.MustRegister(
		m.requestsTotal,
		m.requestDuration,
		m.errorsTotal,
		m.signInsTotal,
		m.tokenRejections,
		m.accessDenials,
	)
	return m
}

// Gatherer exposes the registry for the /metrics handler.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	if m == nil {
		return prometheus.NewRegistry()
	}
	return m.registry
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(route, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(route, method).Observe(duration.Seconds())
}

// RecordError increments error counters.
func (m *Metrics) RecordError(route, method, code string) {
	if m == nil {
		return
	}
	m.errorsTotal.WithLabelValues(route, method, code).Inc()
}

// RecordSignIn counts a sign-in attempt.
func (m *Metrics) RecordSignIn(outcome string) {
	if m == nil {
		return
	}
	m.signInsTotal.WithLabelValues(outcome).Inc()
}

// RecordTokenRejected counts a token refused by identity resolution.
func (m *Metrics) RecordTokenRejected(reason string) {
	if m == nil {
		return
	}
	m.tokenRejections.WithLabelValues(reason).Inc()
}

// RecordAccessDenied counts a denied authorization decision.
func (m *Metrics) RecordAccessDenied(gate string) {
	if m == nil {
		return
	}
	m.accessDenials.WithLabelValues(gate).Inc()
}
