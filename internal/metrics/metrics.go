// Package metrics provides Prometheus metrics for ACMEWeaver.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace is the prefix for all ACMEWeaver metric names.
const Namespace = "acmeweaver"

var (
	// BuildInfo exposes the binary version as a constant gauge.
	BuildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "build_info",
		Help:      "Build information, constant 1 labeled by version and Go version.",
	}, []string{"version", "go_version"})

	// ChallengesTotal counts challenge operations by outcome.
	ChallengesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "challenges_total",
		Help:      "Challenge operations processed, labeled by operation and status.",
	}, []string{"operation", "status"})

	// ChallengeDuration observes wall time per challenge operation.
	// Set and remove include propagation checks, so the buckets run
	// well past typical API latency.
	ChallengeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "challenge_duration_seconds",
		Help:      "Duration of challenge operations in seconds.",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	}, []string{"operation"})

	// RecordsCreatedTotal counts TXT records created per zone.
	RecordsCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "records_created_total",
		Help:      "TXT challenge records created, labeled by zone.",
	}, []string{"zone"})

	// RecordsDeletedTotal counts TXT records deleted per zone.
	RecordsDeletedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "records_deleted_total",
		Help:      "TXT challenge records deleted, labeled by zone.",
	}, []string{"zone"})

	// PropagationChecksTotal counts propagation verifications by outcome.
	PropagationChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "propagation_checks_total",
		Help:      "Propagation verifications, labeled by mode (present/absent) and outcome.",
	}, []string{"mode", "outcome"})

	// PropagationSeconds observes how long propagation took to confirm.
	PropagationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "propagation_seconds",
		Help:      "Time until public DNS reflected a record change, in seconds.",
		Buckets:   []float64{1, 5, 10, 30, 60, 120, 300},
	}, []string{"mode"})

	// APIRequestsTotal counts provider API round-trips. Status is the HTTP
	// status code, or "error" when the request never produced a response.
	APIRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "api_requests_total",
		Help:      "Provider API requests, labeled by HTTP method and status code.",
	}, []string{"method", "status"})

	// ProviderHealthy reports provider API reachability (1 healthy, 0 not).
	ProviderHealthy = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "provider_healthy",
		Help:      "Whether the DNS provider API is reachable (1 = healthy, 0 = unhealthy).",
	}, []string{"provider"})

	// ACMEOrdersTotal counts certificate orders completed by the solver.
	ACMEOrdersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "acme_orders_total",
		Help:      "ACME orders attempted, labeled by status.",
	}, []string{"status"})

	// HTTPRequestsTotal counts challenge endpoint requests in serve mode.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "http_requests_total",
		Help:      "Challenge HTTP endpoint requests, labeled by endpoint and status code.",
	}, []string{"endpoint", "status"})
)

// SetBuildInfo records build information as a constant gauge.
// Call once at startup.
func SetBuildInfo(version, goVersion string) {
	BuildInfo.WithLabelValues(version, goVersion).Set(1)
}

// ObserveAPIRequest records one provider API round-trip. A status of zero
// means the request failed before any response arrived.
func ObserveAPIRequest(method string, statusCode int) {
	label := "error"
	if statusCode > 0 {
		label = strconv.Itoa(statusCode)
	}
	APIRequestsTotal.WithLabelValues(method, label).Inc()
}

// ObserveChallenge records the outcome and duration of a challenge operation.
func ObserveChallenge(operation string, duration time.Duration, err error) {
	ChallengesTotal.WithLabelValues(operation, status(err)).Inc()
	ChallengeDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// ObservePropagation records the outcome and duration of a propagation check.
// Mode is "present" or "absent".
func ObservePropagation(mode string, duration time.Duration, err error) {
	outcome := "verified"
	if err != nil {
		outcome = "failed"
	}
	PropagationChecksTotal.WithLabelValues(mode, outcome).Inc()
	PropagationSeconds.WithLabelValues(mode).Observe(duration.Seconds())
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
