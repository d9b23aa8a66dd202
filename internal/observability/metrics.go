package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects request, error and authentication counters.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	requests     *prometheus.CounterVec
	latency      *prometheus.HistogramVec
	errors       *prometheus.CounterVec
	authAttempts *prometheus.CounterVec
	logins       *prometheus.CounterVec
	gatherer     prometheus.Gatherer
}

// NewMetrics registers the collectors on reg. gatherer serves /metrics.
func NewMetrics(reg prometheus.Registerer, gatherer prometheus.Gatherer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "druginsight_http_requests_total",
			Help: "HTTP requests by route, method and status.",
		}, []string{"path", "method", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "druginsight_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"path", "method"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "druginsight_http_errors_total",
			Help: "Error responses by route, method and error code.",
		}, []string{"path", "method", "code"}),
		authAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "druginsight_auth_attempts_total",
			Help: "Credential verification attempts by method and outcome.",
		}, []string{"method", "outcome"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "druginsight_logins_total",
			Help: "Login attempts by method and result.",
		}, []string{"method", "result"}),
		gatherer: gatherer,
	}

	reg.MustRegister(m.requests, m.latency, m.errors, m.authAttempts, m.logins)
	return m
}

// RecordRequest counts a served request.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(path, method, strconv.Itoa(status)).Inc()
	m.latency.WithLabelValues(path, method).Observe(duration.Seconds())
}

// RecordError counts an error response.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(path, method, code).Inc()
}

// RecordAuthAttempt counts one verifier outcome.
func (m *Metrics) RecordAuthAttempt(method, outcome string) {
	if m == nil {
		return
	}
	m.authAttempts.WithLabelValues(method, outcome).Inc()
}

// RecordLogin counts a login by method ("local", "federated") and result.
func (m *Metrics) RecordLogin(method, result string) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(method, result).Inc()
}

// Handler serves the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
