package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the application collectors
type Metrics struct {
	AuthOutcomes      *prometheus.CounterVec
	RateLimitDecision *prometheus.CounterVec
	LoginAttempts     *prometheus.CounterVec
	RequestDuration   *prometheus.HistogramVec
	registry          *prometheus.Registry
}

// NewMetrics registers the collectors with reg. A nil reg creates a fresh
// registry that also carries the Go runtime and process collectors.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	factory := promauto.With(reg)

	return &Metrics{
		AuthOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "banking_api_auth_outcomes_total",
			Help: "Authentication and authorization outcomes by result code",
		}, []string{"stage", "code"}),

		RateLimitDecision: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "banking_api_rate_limit_decisions_total",
			Help: "Rate limiter admission decisions",
		}, []string{"decision"}),

		LoginAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "banking_api_login_attempts_total",
			Help: "Login attempts by outcome",
		}, []string{"outcome"}),

		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "banking_api_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.ExponentialBuckets(0.001, 2.0, 14), // 1ms to ~8s
		}, []string{"method", "status"}),

		registry: reg,
	}
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordAuth counts an authentication or authorization outcome.
// An empty code records success.
func (m *Metrics) RecordAuth(stage, code string) {
	if m == nil {
		return
	}
	if code == "" {
		code = "ok"
	}
	m.AuthOutcomes.WithLabelValues(stage, code).Inc()
}

// RecordRateLimit counts a limiter decision
func (m *Metrics) RecordRateLimit(allowed bool) {
	if m == nil {
		return
	}
	decision := "denied"
	if allowed {
		decision = "allowed"
	}
	m.RateLimitDecision.WithLabelValues(decision).Inc()
}

// RecordLogin counts a login attempt outcome
func (m *Metrics) RecordLogin(outcome string) {
	if m == nil {
		return
	}
	m.LoginAttempts.WithLabelValues(outcome).Inc()
}

// ObserveRequest records request latency
func (m *Metrics) ObserveRequest(method string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.WithLabelValues(method, strconv.Itoa(status)).Observe(elapsed.Seconds())
}
