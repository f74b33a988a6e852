package audit

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics tracks decision-engine metrics and serves them in Prometheus text
// format. It uses a custom prometheus.Registry for isolation and testability.
type Metrics struct {
	registry *prometheus.Registry

	decisionsTotal   *prometheus.CounterVec
	pendingApprovals prometheus.Gauge
	approvalLatency  prometheus.Histogram
	scheduledChecks  *prometheus.CounterVec
	vaultSaves       *prometheus.CounterVec
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	rateLimitHits    prometheus.Counter
	buildInfo        *prometheus.GaugeVec
}

// NewMetrics creates a Metrics collector with a custom Prometheus registry.
// All metric families are pre-registered with HELP and TYPE metadata.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,

		decisionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "factsentry_decisions_total",
			Help: "Total number of terminal decisions by outcome.",
		}, []string{"decision"}),

		pendingApprovals: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "factsentry_pending_approvals",
			Help: "Number of approval challenges currently awaiting resolution.",
		}),

		approvalLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "factsentry_approval_resolution_seconds",
			Help:    "Time from challenge creation to resolution in seconds.",
			Buckets: []float64{1, 5, 15, 60, 180, 600, 900},
		}),

		scheduledChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "factsentry_scheduled_checks_total",
			Help: "Total number of scheduled trigger evaluations by result.",
		}, []string{"result"}),

		vaultSaves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "factsentry_vault_saves_total",
			Help: "Total number of vault persistence attempts.",
		}, []string{"result"}),

		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "factsentry_requests_total",
			Help: "Total number of HTTP API requests.",
		}, []string{"endpoint", "status"}),

		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "factsentry_request_duration_seconds",
			Help:    "HTTP API request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),

		rateLimitHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "factsentry_rate_limit_hits_total",
			Help: "Total number of requests rejected by rate limiting.",
		}),

		buildInfo: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "factsentry_build_info",
			Help: "Build information about the factsentry binary. Value is always 1.",
		}, []string{"version", "go_version"}),
	}

	reg.MustRegister(
		m.decisionsTotal,
		m.pendingApprovals,
		m.approvalLatency,
		m.scheduledChecks,
		m.vaultSaves,
		m.requestsTotal,
		m.requestDuration,
		m.rateLimitHits,
		m.buildInfo,
	)

	return m
}

// RecordDecision increments the decision counter for the given outcome.
func (m *Metrics) RecordDecision(decision string) {
	m.decisionsTotal.WithLabelValues(decision).Inc()
}

// SetPendingApprovals sets the current pending-challenge count.
func (m *Metrics) SetPendingApprovals(n int) {
	m.pendingApprovals.Set(float64(n))
}

// RecordApprovalLatency records how long a challenge waited for resolution.
func (m *Metrics) RecordApprovalLatency(d time.Duration) {
	m.approvalLatency.Observe(d.Seconds())
}

// RecordScheduledCheck records a scheduled trigger evaluation.
// Result is "allow", "deny", or "no_data".
func (m *Metrics) RecordScheduledCheck(result string) {
	m.scheduledChecks.WithLabelValues(result).Inc()
}

// RecordVaultSave records a vault persistence attempt.
// Pass true for a successful save, false for a failure.
func (m *Metrics) RecordVaultSave(success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	m.vaultSaves.WithLabelValues(result).Inc()
}

// RecordRequest increments the API request counter for the given endpoint
// and status code.
func (m *Metrics) RecordRequest(endpoint string, status int) {
	m.requestsTotal.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
}

// RecordRequestDuration records an API request duration.
func (m *Metrics) RecordRequestDuration(endpoint string, d time.Duration) {
	m.requestDuration.WithLabelValues(endpoint).Observe(d.Seconds())
}

// RecordRateLimitHit records a request rejected by rate limiting.
func (m *Metrics) RecordRateLimitHit() {
	m.rateLimitHits.Inc()
}

// SetBuildInfo sets the build information gauge. The gauge value is always 1;
// version and Go version are exposed as labels.
func (m *Metrics) SetBuildInfo(version, goVersion string) {
	m.buildInfo.WithLabelValues(version, goVersion).Set(1)
}

// Handler returns an HTTP handler that serves /metrics in Prometheus text
// format.
func (m *Metrics) Handler() http.HandlerFunc {
	h := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return func(w http.ResponseWriter, r *http.Request) {
		h.ServeHTTP(w, r)
	}
}
